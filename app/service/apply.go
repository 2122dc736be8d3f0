package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/gateway"
)

func lockKey(entityType, reference string) string {
	return entityType + ":" + reference
}

// applyWithRetry runs one read-evaluate-write cycle under the reference lock
// and repeats it when the conditional write lost a race.
func (s *PaymentService) applyWithRetry(ctx context.Context, key string, fn func() error) error {
	return s.withLock(ctx, key, func() error {
		var err error
		for attempt := 0; attempt < maxApplyAttempts; attempt++ {
			if err = fn(); !errors.Is(err, ErrConcurrentUpdate) {
				return err
			}
		}
		return err
	})
}

func eventPayload(label string, fields gateway.Fields) *string {
	body, err := json.Marshal(map[string]interface{}{
		"slot":   label,
		"fields": fields,
	})
	if err != nil {
		return nil
	}
	payload := truncate(string(body), 4096)
	return &payload
}

// ApplyOrderResult records a gateway result for the order in the given slot.
func (s *PaymentService) ApplyOrderResult(ctx context.Context, outTradeNo string, slot entity.ResultSlot, fields gateway.Fields, verified bool) (*entity.Order, error) {
	order, _, err := s.applyOrderResult(ctx, outTradeNo, slot, fields, verified)
	return order, err
}

func (s *PaymentService) applyOrderResult(ctx context.Context, outTradeNo string, slot entity.ResultSlot, fields gateway.Fields, verified bool) (*entity.Order, transition, error) {
	if !verified {
		s.logger.WithFields(logrus.Fields{"out_trade_no": outTradeNo, "slot": slot.String()}).Warn("Rejected unverified order result")
		return nil, transition{}, ErrUnverifiedPayload
	}

	var (
		order *entity.Order
		tr    transition
	)
	err := s.applyWithRetry(ctx, lockKey(entity.EntityOrder, outTradeNo), func() error {
		var err error
		order, tr, err = s.tryApplyOrder(ctx, outTradeNo, slot, fields, nil)
		return err
	})
	if err != nil {
		return order, tr, err
	}

	if slot == entity.SlotNotify && tr.NewlySucceeded {
		s.fulfill(ctx, order)
	}
	return order, tr, nil
}

// tryApplyOrder runs one read-evaluate-write cycle. A non-nil guard vets the
// freshly read order before anything is decided.
func (s *PaymentService) tryApplyOrder(ctx context.Context, outTradeNo string, slot entity.ResultSlot, fields gateway.Fields, guard func(*entity.Order) error) (*entity.Order, transition, error) {
	current, err := s.orderRepo.FindByOutTradeNo(ctx, outTradeNo)
	if err != nil {
		return nil, transition{}, err
	}
	if current == nil {
		return nil, transition{}, ErrOrderNotFound
	}
	if guard != nil {
		if err := guard(current); err != nil {
			return current, transition{}, err
		}
	}

	now := s.now()
	logger := s.logger.WithFields(logrus.Fields{"out_trade_no": outTradeNo, "slot": slot.String()})
	incoming := newSnapshot(fields, fields.ResultCode(), orderSlotState(current, slot, fields), true, now)
	existing := orderSnapshot(current, slot)

	switch decide(existing, incoming, slot == entity.SlotNotify) {
	case decisionReplay:
		logger.Debug("Order result replayed, nothing to apply")
		return current, transition{OldState: current.State, NewState: current.State}, nil
	case decisionIgnore:
		logger.WithField("result_code", incoming.ResultCode).Warn("Ignoring result that would downgrade a successful notification")
		return current, transition{OldState: current.State, NewState: current.State}, nil
	}

	if mismatch, got := amountDiffers(fields, "total_fee", current.TotalFee); mismatch {
		logger.WithFields(logrus.Fields{"recorded": current.TotalFee, "incoming": got}).Error("Order amount mismatch")
		s.alert(ctx, entity.EntityOrder, outTradeNo, "amount_mismatch", current.State,
			fmt.Sprintf("slot=%s recorded=%d incoming=%s", slot, current.TotalFee, got))
		return current, transition{}, ErrAmountMismatch
	}

	next := current.Clone()
	switch slot {
	case entity.SlotPlacement:
		next.Placement = incoming
		if incoming.Succeeded() {
			setIfPresent(&next.PrepayID, fields, "prepay_id")
			setIfPresent(&next.MwebURL, fields, "mweb_url")
			setIfPresent(&next.CodeURL, fields, "code_url")
			setIfPresent(&next.TransactionID, fields, "transaction_id")
		}
	case entity.SlotQuery:
		next.Query = incoming
		if incoming.Succeeded() {
			setIfPresent(&next.TransactionID, fields, "transaction_id")
			setIfPresent(&next.TradeState, fields, "trade_state")
			setIfPresent(&next.TradeStateDesc, fields, "trade_state_desc")
		}
	case entity.SlotNotify:
		next.Notify = incoming
		setIfPresent(&next.TransactionID, fields, "transaction_id")
	}
	next.RecomputeState()
	next.UpdatedAt = now

	if err := s.orderRepo.UpdateIfVersion(ctx, next); err != nil {
		return current, transition{}, err
	}

	tr := transition{
		Applied:        true,
		OldState:       current.State,
		NewState:       next.State,
		NewlySucceeded: !existing.Succeeded() && incoming.Succeeded(),
	}
	s.recordEvent(ctx, entity.EntityOrder, outTradeNo, slot.String()+"_applied", strPtr(current.State), next.State, eventPayload(slot.String(), fields))
	if tr.OldState != tr.NewState {
		s.transitioned(entity.EntityOrder, next.State)
	}
	return next, tr, nil
}

// sameInitiation rejects an order whose payment-initiation attributes no
// longer match the ones sent to the gateway.
func sameInitiation(sent *entity.Order) func(*entity.Order) error {
	return func(current *entity.Order) error {
		if current.TotalFee != sent.TotalFee || current.TradeType != sent.TradeType {
			return ErrOrderChanged
		}
		return nil
	}
}

func orderSnapshot(order *entity.Order, slot entity.ResultSlot) *entity.ResultSnapshot {
	switch slot {
	case entity.SlotPlacement:
		return order.Placement
	case entity.SlotQuery:
		return order.Query
	case entity.SlotNotify:
		return order.Notify
	}
	return nil
}

// applyOrderCancel records a close or reversal response. Cancel results do
// not take part in the state merge.
func (s *PaymentService) applyOrderCancel(ctx context.Context, outTradeNo string, fields gateway.Fields) (*entity.Order, error) {
	var order *entity.Order
	err := s.applyWithRetry(ctx, lockKey(entity.EntityOrder, outTradeNo), func() error {
		current, err := s.orderRepo.FindByOutTradeNo(ctx, outTradeNo)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrOrderNotFound
		}

		now := s.now()
		next := current.Clone()
		next.Cancel = newSnapshot(fields, fields.ResultCode(), "", true, now)
		next.Recall = nil
		setIfPresent(&next.Recall, fields, "recall")
		next.UpdatedAt = now

		if err := s.orderRepo.UpdateIfVersion(ctx, next); err != nil {
			order = current
			return err
		}
		order = next
		s.recordEvent(ctx, entity.EntityOrder, outTradeNo, "cancel_applied", strPtr(current.State), next.State, eventPayload("cancel", fields))
		return nil
	})
	return order, err
}

func (s *PaymentService) fulfill(ctx context.Context, order *entity.Order) {
	if s.fulfiller == nil {
		return
	}
	if err := s.fulfiller.Fulfill(ctx, order); err != nil {
		s.logger.WithError(err).WithField("out_trade_no", order.OutTradeNo).Error("Order fulfillment failed")
		s.alert(ctx, entity.EntityOrder, order.OutTradeNo, "fulfillment_failed", order.State, err.Error())
		return
	}
	s.recordEvent(ctx, entity.EntityOrder, order.OutTradeNo, "fulfilled", nil, order.State, nil)
}

func (s *PaymentService) ApplyRefundResult(ctx context.Context, outRefundNo string, slot entity.ResultSlot, fields gateway.Fields, verified bool) (*entity.Refund, error) {
	refund, _, err := s.applyRefundResult(ctx, outRefundNo, slot, fields, verified)
	return refund, err
}

func (s *PaymentService) applyRefundResult(ctx context.Context, outRefundNo string, slot entity.ResultSlot, fields gateway.Fields, verified bool) (*entity.Refund, transition, error) {
	if !verified {
		s.logger.WithFields(logrus.Fields{"out_refund_no": outRefundNo, "slot": slot.String()}).Warn("Rejected unverified refund result")
		return nil, transition{}, ErrUnverifiedPayload
	}

	var (
		refund *entity.Refund
		tr     transition
	)
	err := s.applyWithRetry(ctx, lockKey(entity.EntityRefund, outRefundNo), func() error {
		var err error
		refund, tr, err = s.tryApplyRefund(ctx, outRefundNo, slot, fields)
		return err
	})
	return refund, tr, err
}

func (s *PaymentService) tryApplyRefund(ctx context.Context, outRefundNo string, slot entity.ResultSlot, fields gateway.Fields) (*entity.Refund, transition, error) {
	current, err := s.refundRepo.FindByOutRefundNo(ctx, outRefundNo)
	if err != nil {
		return nil, transition{}, err
	}
	if current == nil {
		return nil, transition{}, ErrRefundNotFound
	}

	now := s.now()
	logger := s.logger.WithFields(logrus.Fields{"out_refund_no": outRefundNo, "slot": slot.String()})

	code := fields.ResultCode()
	amountKey := "refund_fee"
	refundIDKey := "refund_id"
	switch slot {
	case entity.SlotNotify:
		code = refundNotifyCode(fields)
	case entity.SlotQuery:
		if idx, ok := refundIndex(fields, outRefundNo); ok {
			amountKey = "refund_fee_" + idx
			refundIDKey = "refund_id_" + idx
		} else {
			amountKey = ""
			refundIDKey = ""
		}
	}

	incoming := newSnapshot(fields, code, refundSlotState(current, slot, fields), true, now)
	existing := refundSnapshot(current, slot)

	switch resubmission(decide(existing, incoming, slot == entity.SlotNotify), slot, current.Status, incoming.State) {
	case decisionReplay:
		logger.Debug("Refund result replayed, nothing to apply")
		return current, transition{OldState: current.Status, NewState: current.Status}, nil
	case decisionIgnore:
		logger.WithField("refund_status", incoming.State).Warn("Ignoring result that would downgrade a successful refund notification")
		return current, transition{OldState: current.Status, NewState: current.Status}, nil
	}

	if amountKey != "" {
		if mismatch, got := amountDiffers(fields, amountKey, current.RefundFee); mismatch {
			logger.WithFields(logrus.Fields{"recorded": current.RefundFee, "incoming": got}).Error("Refund amount mismatch")
			s.alert(ctx, entity.EntityRefund, outRefundNo, "amount_mismatch", current.Status,
				fmt.Sprintf("slot=%s recorded=%d incoming=%s", slot, current.RefundFee, got))
			return current, transition{}, ErrAmountMismatch
		}
	}

	next := current.Clone()
	switch slot {
	case entity.SlotPlacement:
		next.ApplyResult = incoming
		// a new application starts a new attempt; older downstream results no longer describe it
		next.QueryResult = nil
		if !next.NotifyResult.Succeeded() {
			next.NotifyResult = nil
		}
	case entity.SlotQuery:
		next.QueryResult = incoming
	case entity.SlotNotify:
		next.NotifyResult = incoming
	}
	if refundIDKey != "" {
		setIfPresent(&next.RefundID, fields, refundIDKey)
	}
	next.RecomputeState()
	next.UpdatedAt = now

	if err := s.refundRepo.UpdateIfVersion(ctx, next); err != nil {
		return current, transition{}, err
	}

	tr := transition{
		Applied:        true,
		OldState:       current.Status,
		NewState:       next.Status,
		NewlySucceeded: current.Status != entity.RefundStateSuccess && next.Status == entity.RefundStateSuccess,
	}
	s.recordEvent(ctx, entity.EntityRefund, outRefundNo, slot.String()+"_applied", strPtr(current.Status), next.Status, eventPayload(slot.String(), fields))
	if tr.OldState != tr.NewState {
		s.transitioned(entity.EntityRefund, next.Status)
	}
	return next, tr, nil
}

func refundSnapshot(refund *entity.Refund, slot entity.ResultSlot) *entity.ResultSnapshot {
	switch slot {
	case entity.SlotPlacement:
		return refund.ApplyResult
	case entity.SlotQuery:
		return refund.QueryResult
	case entity.SlotNotify:
		return refund.NotifyResult
	}
	return nil
}

func (s *PaymentService) ApplyPayoutResult(ctx context.Context, partnerTradeNo string, slot entity.ResultSlot, fields gateway.Fields, verified bool) (*entity.Payout, error) {
	if !verified {
		s.logger.WithFields(logrus.Fields{"partner_trade_no": partnerTradeNo, "slot": slot.String()}).Warn("Rejected unverified payout result")
		return nil, ErrUnverifiedPayload
	}
	if slot == entity.SlotNotify {
		return nil, ErrInvalidRequest
	}

	var payout *entity.Payout
	err := s.applyWithRetry(ctx, lockKey(entity.EntityPayout, partnerTradeNo), func() error {
		var err error
		payout, err = s.tryApplyPayout(ctx, partnerTradeNo, slot, fields)
		return err
	})
	return payout, err
}

func (s *PaymentService) tryApplyPayout(ctx context.Context, partnerTradeNo string, slot entity.ResultSlot, fields gateway.Fields) (*entity.Payout, error) {
	current, err := s.payoutRepo.FindByPartnerTradeNo(ctx, partnerTradeNo)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrPayoutNotFound
	}

	now := s.now()
	logger := s.logger.WithFields(logrus.Fields{"partner_trade_no": partnerTradeNo, "slot": slot.String()})
	incoming := newSnapshot(fields, fields.ResultCode(), payoutSlotState(slot, fields), true, now)
	existing := current.PayResult
	if slot == entity.SlotQuery {
		existing = current.QueryResult
	}

	if resubmission(decide(existing, incoming, false), slot, current.Status, incoming.State) == decisionReplay {
		logger.Debug("Payout result replayed, nothing to apply")
		return current, nil
	}

	if slot == entity.SlotQuery {
		if mismatch, got := amountDiffers(fields, "payment_amount", current.Amount); mismatch {
			logger.WithFields(logrus.Fields{"recorded": current.Amount, "incoming": got}).Error("Payout amount mismatch")
			s.alert(ctx, entity.EntityPayout, partnerTradeNo, "amount_mismatch", current.Status,
				fmt.Sprintf("slot=%s recorded=%d incoming=%s", slot, current.Amount, got))
			return current, ErrAmountMismatch
		}
	}

	next := current.Clone()
	if slot == entity.SlotPlacement {
		next.PayResult = incoming
		next.QueryResult = nil
		if incoming.Succeeded() {
			setIfPresent(&next.PaymentNo, fields, "payment_no")
		}
	} else {
		next.QueryResult = incoming
		if incoming.Succeeded() {
			setIfPresent(&next.PaymentNo, fields, "detail_id")
		}
	}
	next.RecomputeState()
	next.UpdatedAt = now

	if err := s.payoutRepo.UpdateIfVersion(ctx, next); err != nil {
		return current, err
	}

	s.recordEvent(ctx, entity.EntityPayout, partnerTradeNo, slot.String()+"_applied", strPtr(current.Status), next.Status, eventPayload(slot.String(), fields))
	if current.Status != next.Status {
		s.transitioned(entity.EntityPayout, next.Status)
	}
	return next, nil
}

func (s *PaymentService) ApplyRedPacketResult(ctx context.Context, mchBillno string, slot entity.ResultSlot, fields gateway.Fields, verified bool) (*entity.RedPacket, error) {
	if !verified {
		s.logger.WithFields(logrus.Fields{"mch_billno": mchBillno, "slot": slot.String()}).Warn("Rejected unverified red packet result")
		return nil, ErrUnverifiedPayload
	}
	if slot == entity.SlotNotify {
		return nil, ErrInvalidRequest
	}

	var packet *entity.RedPacket
	err := s.applyWithRetry(ctx, lockKey(entity.EntityRedPacket, mchBillno), func() error {
		var err error
		packet, err = s.tryApplyRedPacket(ctx, mchBillno, slot, fields)
		return err
	})
	return packet, err
}

func (s *PaymentService) tryApplyRedPacket(ctx context.Context, mchBillno string, slot entity.ResultSlot, fields gateway.Fields) (*entity.RedPacket, error) {
	current, err := s.packetRepo.FindByMchBillno(ctx, mchBillno)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrRedPacketNotFound
	}

	now := s.now()
	logger := s.logger.WithFields(logrus.Fields{"mch_billno": mchBillno, "slot": slot.String()})
	incoming := newSnapshot(fields, fields.ResultCode(), redPacketSlotState(slot, fields), true, now)
	existing := current.SendResult
	if slot == entity.SlotQuery {
		existing = current.QueryResult
	}

	if resubmission(decide(existing, incoming, false), slot, current.Status, incoming.State) == decisionReplay {
		logger.Debug("Red packet result replayed, nothing to apply")
		return current, nil
	}

	if mismatch, got := amountDiffers(fields, "total_amount", current.TotalAmount); mismatch {
		logger.WithFields(logrus.Fields{"recorded": current.TotalAmount, "incoming": got}).Error("Red packet amount mismatch")
		s.alert(ctx, entity.EntityRedPacket, mchBillno, "amount_mismatch", current.Status,
			fmt.Sprintf("slot=%s recorded=%d incoming=%s", slot, current.TotalAmount, got))
		return current, ErrAmountMismatch
	}

	next := current.Clone()
	if slot == entity.SlotPlacement {
		next.SendResult = incoming
		next.QueryResult = nil
		if incoming.Succeeded() {
			setIfPresent(&next.SendListID, fields, "send_listid")
		}
	} else {
		next.QueryResult = incoming
		if incoming.Succeeded() {
			setIfPresent(&next.SendListID, fields, "detail_id")
		}
	}
	next.RecomputeState()
	next.UpdatedAt = now

	if err := s.packetRepo.UpdateIfVersion(ctx, next); err != nil {
		return current, err
	}

	s.recordEvent(ctx, entity.EntityRedPacket, mchBillno, slot.String()+"_applied", strPtr(current.Status), next.Status, eventPayload(slot.String(), fields))
	if current.Status != next.Status {
		s.transitioned(entity.EntityRedPacket, next.Status)
	}
	return next, nil
}
