package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/gateway"
	"github.com/vibast-solutions/ms-go-wxpay/app/types"
)

func TestCreatePayout(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.svc.CreatePayout(ctx, &types.CreatePayoutRequest{
		Openid: "oxTWIuGaIt6gTKsQRLau2M0yL16E", CheckName: "force_check", Amount: 100, Desc: "bonus", SpbillCreateIp: "10.2.3.10",
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest without re_user_name, got %v", err)
	}

	payout, err := env.svc.CreatePayout(ctx, &types.CreatePayoutRequest{
		Openid: "oxTWIuGaIt6gTKsQRLau2M0yL16E", Amount: 100, Desc: "bonus", SpbillCreateIp: "10.2.3.10",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payout.CheckName != entity.CheckNameNone || payout.Status != entity.PayoutStateCreated {
		t.Fatalf("unexpected payout: %+v", payout)
	}
	if len(payout.PartnerTradeNo) != 28 || !strings.HasPrefix(payout.PartnerTradeNo, testMchID+"20261018") {
		t.Fatalf("unexpected partner_trade_no %q", payout.PartnerTradeNo)
	}
}

func TestSendPayoutGuards(t *testing.T) {
	env := newTestEnv()
	payout := env.seedPayout(entity.PayoutStateCreated, nil)
	ctx := context.Background()

	sent, err := env.svc.SendPayout(ctx, payout.PartnerTradeNo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent.Status != entity.PayoutStateSuccess || sent.PaymentNo == nil {
		t.Fatalf("unexpected payout: %+v", sent)
	}
	if _, err := env.svc.SendPayout(ctx, payout.PartnerTradeNo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.gateway.count("payout") != 1 {
		t.Fatalf("expected successful payout not to be resent, got %d", env.gateway.count("payout"))
	}
}

func TestSendPayoutBusinessFailure(t *testing.T) {
	env := newTestEnv()
	payout := env.seedPayout(entity.PayoutStateCreated, nil)
	env.gateway.payoutFn = func(*entity.Payout) (gateway.Fields, error) {
		return failFields("NOTENOUGH", nil), nil
	}

	sent, err := env.svc.SendPayout(context.Background(), payout.PartnerTradeNo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent.Status != entity.PayoutStateFailed {
		t.Fatalf("expected FAILED, got %s", sent.Status)
	}
}

func TestPayoutResultsHaveNoNotifySlot(t *testing.T) {
	env := newTestEnv()
	payout := env.seedPayout(entity.PayoutStateCreated, nil)

	if _, err := env.svc.ApplyPayoutResult(context.Background(), payout.PartnerTradeNo, entity.SlotNotify, okFields(nil), true); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := env.svc.ApplyRedPacketResult(context.Background(), "any", entity.SlotNotify, okFields(nil), true); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
