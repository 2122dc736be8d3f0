package entity

import "time"

const (
	RefundStateCreated     = "CREATED"
	RefundStateApplyFailed = "APPLY_FAILED"
	RefundStateProcessing  = "PROCESSING"
	RefundStateSuccess     = "SUCCESS"
	RefundStateChange      = "CHANGE"
	RefundStateClosed      = "REFUNDCLOSE"
)

// Refund belongs to exactly one Order; removing the order removes its refunds.
type Refund struct {
	ID uint64

	OrderID    uint64
	OutTradeNo string

	OutRefundNo   string
	RefundFee     int64
	RefundFeeType *string
	RefundDesc    *string
	RefundAccount *string

	ApplyResult *ResultSnapshot
	RefundID    *string

	NotifyResult *ResultSnapshot
	QueryResult  *ResultSnapshot

	Status  string
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Refund) RecomputeState() {
	r.Status = MergeAuthoritative(RefundStateCreated,
		slotState(SlotPlacement, r.ApplyResult),
		slotState(SlotQuery, r.QueryResult),
		slotState(SlotNotify, r.NotifyResult),
	)
}

func (r *Refund) Clone() *Refund {
	if r == nil {
		return nil
	}
	c := *r
	c.ApplyResult = cloneSnapshot(r.ApplyResult)
	c.NotifyResult = cloneSnapshot(r.NotifyResult)
	c.QueryResult = cloneSnapshot(r.QueryResult)
	return &c
}
