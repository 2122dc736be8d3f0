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

func TestCreateRefundValidatesAmount(t *testing.T) {
	env := newTestEnv()
	env.seedOrder(testOutTradeNo, 100)
	ctx := context.Background()

	for _, fee := range []int64{0, -1, 101} {
		_, err := env.svc.CreateRefund(ctx, &types.CreateRefundRequest{OutTradeNo: testOutTradeNo, RefundFee: fee})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("fee %d: expected ErrInvalidRequest, got %v", fee, err)
		}
	}
	if _, err := env.svc.CreateRefund(ctx, &types.CreateRefundRequest{OutTradeNo: "missing", RefundFee: 1}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	refund, err := env.svc.CreateRefund(ctx, &types.CreateRefundRequest{OutTradeNo: testOutTradeNo, RefundFee: 100, RefundDesc: "damaged"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refund.OutRefundNo) != 32 || !strings.HasPrefix(refund.OutRefundNo, testOutTradeNo) {
		t.Fatalf("unexpected out_refund_no %q", refund.OutRefundNo)
	}
	if refund.Status != entity.RefundStateCreated {
		t.Fatalf("expected CREATED, got %s", refund.Status)
	}

	refunds, err := env.svc.ListRefunds(ctx, testOutTradeNo)
	if err != nil || len(refunds) != 1 {
		t.Fatalf("expected one listed refund, got %d (%v)", len(refunds), err)
	}
}

func TestApplyForRefundSubmitsOnce(t *testing.T) {
	env := newTestEnv()
	env.seedOrder(testOutTradeNo, 100)
	env.seedRefund(entity.RefundStateCreated)
	ctx := context.Background()

	refund, err := env.svc.ApplyForRefund(ctx, testOutRefundNo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refund.Status != entity.RefundStateProcessing || refund.RefundID == nil {
		t.Fatalf("unexpected refund: %+v", refund)
	}

	if _, err := env.svc.ApplyForRefund(ctx, testOutRefundNo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.gateway.count("refund") != 1 {
		t.Fatalf("expected processing refund not to be resubmitted, got %d submissions", env.gateway.count("refund"))
	}
}

func TestApplyForRefundRejected(t *testing.T) {
	env := newTestEnv()
	env.seedOrder(testOutTradeNo, 100)
	env.seedRefund(entity.RefundStateCreated)
	env.gateway.refundFn = func(*entity.Refund) (gateway.Fields, error) {
		return failFields("NOTENOUGH", nil), nil
	}

	refund, err := env.svc.ApplyForRefund(context.Background(), testOutRefundNo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refund.Status != entity.RefundStateApplyFailed {
		t.Fatalf("expected APPLY_FAILED, got %s", refund.Status)
	}
}

func TestQueryRefundIgnoresOtherRefundsOfTheOrder(t *testing.T) {
	env := newTestEnv()
	env.seedOrder(testOutTradeNo, 100)
	env.seedRefund(entity.RefundStateProcessing)
	env.gateway.queryRefundFn = func(outRefundNo string) (gateway.Fields, error) {
		return okFields(map[string]string{
			"out_refund_no_0": "another",
			"refund_status_0": entity.RefundStateClosed,
			"refund_fee_0":    "10",
			"out_refund_no_1": outRefundNo,
			"refund_status_1": entity.RefundStateSuccess,
			"refund_fee_1":    "50",
			"refund_id_1":     "50000408942018111907145868882",
		}), nil
	}

	refund, err := env.svc.QueryRefund(context.Background(), testOutRefundNo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refund.Status != entity.RefundStateSuccess || refund.RefundID == nil || *refund.RefundID != "50000408942018111907145868882" {
		t.Fatalf("unexpected refund: %+v", refund)
	}
}
