package service

import (
	"regexp"
	"testing"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/gateway"
)

func TestDecide(t *testing.T) {
	success := &entity.ResultSnapshot{ResultCode: gateway.ResultSuccess, State: entity.TradeStateSuccess}
	same := &entity.ResultSnapshot{ResultCode: gateway.ResultSuccess, State: entity.TradeStateSuccess}
	failed := &entity.ResultSnapshot{ResultCode: gateway.ResultFail, State: entity.TradeStatePayError}

	if decide(nil, failed, true) != decisionApply {
		t.Fatal("expected empty slot to accept any result")
	}
	if decide(success, same, false) != decisionReplay {
		t.Fatal("expected identical success to be a replay")
	}
	if decide(success, failed, true) != decisionIgnore {
		t.Fatal("expected protected success to ignore a failure")
	}
	if decide(success, failed, false) != decisionApply {
		t.Fatal("expected unprotected slot to accept a newer result")
	}
	if resubmission(decisionReplay, entity.SlotPlacement, entity.RefundStateClosed, entity.RefundStateProcessing) != decisionApply {
		t.Fatal("expected placement after a later state change to apply")
	}
	if resubmission(decisionReplay, entity.SlotQuery, entity.RefundStateClosed, entity.RefundStateProcessing) != decisionReplay {
		t.Fatal("expected query replays to stay replays")
	}
}

func TestAmountDiffers(t *testing.T) {
	cases := []struct {
		value    string
		present  bool
		mismatch bool
	}{
		{present: false, mismatch: false},
		{value: "100", present: true, mismatch: false},
		{value: " 100 ", present: true, mismatch: false},
		{value: "99", present: true, mismatch: true},
		{value: "abc", present: true, mismatch: true},
	}
	for _, tc := range cases {
		fields := gateway.Fields{}
		if tc.present {
			fields["total_fee"] = tc.value
		}
		if got, _ := amountDiffers(fields, "total_fee", 100); got != tc.mismatch {
			t.Fatalf("value %q: expected mismatch=%v", tc.value, tc.mismatch)
		}
	}
}

func TestRefundIndex(t *testing.T) {
	fields := gateway.Fields{"out_refund_no_0": "a", "out_refund_no_x": "b", "out_refund_no_2": "b"}
	if idx, ok := refundIndex(fields, "b"); !ok || idx != "2" {
		t.Fatalf("expected index 2, got %q %v", idx, ok)
	}
	if _, ok := refundIndex(fields, "c"); ok {
		t.Fatal("expected no index for unknown refund")
	}
}

func TestRefundNotifyCode(t *testing.T) {
	if refundNotifyCode(gateway.Fields{"refund_status": "SUCCESS"}) != gateway.ResultSuccess {
		t.Fatal("expected SUCCESS")
	}
	if refundNotifyCode(gateway.Fields{"refund_status": "REFUNDCLOSE"}) != gateway.ResultFail {
		t.Fatal("expected FAIL")
	}
}

func TestReferenceFormats(t *testing.T) {
	digits := regexp.MustCompile(`^[0-9]+$`)

	outTradeNo, err := newOutTradeNo(testNow)
	if err != nil || len(outTradeNo) != outTradeNoLength || outTradeNo[:8] != "20261018" || !digits.MatchString(outTradeNo) {
		t.Fatalf("unexpected out_trade_no %q (%v)", outTradeNo, err)
	}
	outRefundNo, err := newOutRefundNo(outTradeNo)
	if err != nil || len(outRefundNo) != outRefundNoLength || outRefundNo[:len(outTradeNo)] != outTradeNo {
		t.Fatalf("unexpected out_refund_no %q (%v)", outRefundNo, err)
	}
	mchRef, err := newMchReference(testMchID, testNow)
	if err != nil || len(mchRef) != mchReferenceLength || !digits.MatchString(mchRef) {
		t.Fatalf("unexpected merchant reference %q (%v)", mchRef, err)
	}
	long, err := referenceWithPrefix("123456789012345678901234567890", 32)
	if err != nil || len(long) != 30+minReferenceDigits {
		t.Fatalf("expected minimum random suffix, got %q", long)
	}
}
