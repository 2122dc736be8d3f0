package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/gateway"
)

type slotDecision int

const (
	decisionApply slotDecision = iota
	decisionReplay
	decisionIgnore
)

// transition describes what an apply did to an entity.
type transition struct {
	Applied        bool
	OldState       string
	NewState       string
	NewlySucceeded bool
}

func newSnapshot(fields gateway.Fields, resultCode, state string, verified bool, now time.Time) *entity.ResultSnapshot {
	payload := make(map[string]string, len(fields))
	for k, v := range fields {
		if k == gateway.FieldSign {
			continue
		}
		payload[k] = v
	}
	return &entity.ResultSnapshot{
		ResultCode: resultCode,
		State:      state,
		Verified:   verified,
		Payload:    payload,
		ReceivedAt: now,
	}
}

// decide applies the replay rule: a slot that already holds a success is not
// rewritten by a result with the same code and state. With protectSuccess a
// later non-success result never replaces a recorded success.
func decide(existing *entity.ResultSnapshot, incoming *entity.ResultSnapshot, protectSuccess bool) slotDecision {
	if !existing.Succeeded() {
		return decisionApply
	}
	if existing.ResultCode == incoming.ResultCode && existing.State == incoming.State {
		return decisionReplay
	}
	if protectSuccess {
		return decisionIgnore
	}
	return decisionApply
}

// resubmission turns a placement replay into an apply when a later slot has
// moved the entity to another state: the placement belongs to a new attempt.
func resubmission(decision slotDecision, slot entity.ResultSlot, currentState, incomingState string) slotDecision {
	if decision == decisionReplay && slot == entity.SlotPlacement && currentState != incomingState {
		return decisionApply
	}
	return decision
}

// amountDiffers reports whether fields carries key with a value other than
// expected. A missing key is not a mismatch.
func amountDiffers(fields gateway.Fields, key string, expected int64) (bool, string) {
	raw, ok := fields[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return false, ""
	}
	got, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || got != expected {
		return true, raw
	}
	return false, raw
}

func orderSlotState(order *entity.Order, slot entity.ResultSlot, fields gateway.Fields) string {
	code := fields.ResultCode()
	switch slot {
	case entity.SlotPlacement:
		if code == gateway.ResultSuccess {
			if order.TradeType == entity.TradeTypeMicropay {
				return entity.TradeStateSuccess
			}
			return entity.TradeStateNotPay
		}
		if order.TradeType == entity.TradeTypeMicropay {
			switch fields[gateway.FieldErrCode] {
			case "USERPAYING", "SYSTEMERROR", "BANKERROR":
				return entity.TradeStateUserPaying
			}
		}
		return entity.OrderStatePlaceFailed
	case entity.SlotQuery:
		if code == gateway.ResultSuccess {
			return strings.TrimSpace(fields["trade_state"])
		}
		return ""
	case entity.SlotNotify:
		if code == gateway.ResultSuccess {
			return entity.TradeStateSuccess
		}
		return entity.TradeStatePayError
	}
	return ""
}

func refundSlotState(refund *entity.Refund, slot entity.ResultSlot, fields gateway.Fields) string {
	switch slot {
	case entity.SlotPlacement:
		if fields.ResultCode() == gateway.ResultSuccess {
			return entity.RefundStateProcessing
		}
		return entity.RefundStateApplyFailed
	case entity.SlotQuery:
		if fields.ResultCode() != gateway.ResultSuccess {
			return ""
		}
		idx, ok := refundIndex(fields, refund.OutRefundNo)
		if !ok {
			return ""
		}
		return strings.TrimSpace(fields["refund_status_"+idx])
	case entity.SlotNotify:
		return strings.TrimSpace(fields["refund_status"])
	}
	return ""
}

// refundNotifyCode maps the decrypted refund notification, which carries no
// result_code of its own, onto the SUCCESS/FAIL vocabulary of the other slots.
func refundNotifyCode(fields gateway.Fields) string {
	if strings.TrimSpace(fields["refund_status"]) == entity.RefundStateSuccess {
		return gateway.ResultSuccess
	}
	return gateway.ResultFail
}

// refundIndex finds N such that out_refund_no_N equals outRefundNo in a
// refund query response.
func refundIndex(fields gateway.Fields, outRefundNo string) (string, bool) {
	for key, value := range fields {
		if !strings.HasPrefix(key, "out_refund_no_") || value != outRefundNo {
			continue
		}
		idx := strings.TrimPrefix(key, "out_refund_no_")
		if _, err := strconv.Atoi(idx); err != nil {
			continue
		}
		return idx, true
	}
	return "", false
}

func payoutSlotState(slot entity.ResultSlot, fields gateway.Fields) string {
	switch slot {
	case entity.SlotPlacement:
		if fields.ResultCode() == gateway.ResultSuccess {
			return entity.PayoutStateSuccess
		}
		return entity.PayoutStateFailed
	case entity.SlotQuery:
		if fields.ResultCode() == gateway.ResultSuccess {
			return strings.TrimSpace(fields["status"])
		}
	}
	return ""
}

func redPacketSlotState(slot entity.ResultSlot, fields gateway.Fields) string {
	switch slot {
	case entity.SlotPlacement:
		if fields.ResultCode() == gateway.ResultSuccess {
			return entity.RedPacketStateSent
		}
		return entity.RedPacketStateFailed
	case entity.SlotQuery:
		if fields.ResultCode() == gateway.ResultSuccess {
			return strings.TrimSpace(fields["status"])
		}
	}
	return ""
}

func setIfPresent(target **string, fields gateway.Fields, key string) {
	if value := strings.TrimSpace(fields[key]); value != "" {
		*target = &value
	}
}
