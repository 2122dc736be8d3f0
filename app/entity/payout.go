package entity

import "time"

const (
	CheckNameNone     = "NO_CHECK"
	CheckNameForce    = "FORCE_CHECK"
	CheckNameOptional = "OPTION_CHECK"
)

const (
	PayoutStateCreated    = "CREATED"
	PayoutStateSuccess    = "SUCCESS"
	PayoutStateProcessing = "PROCESSING"
	PayoutStateFailed     = "FAILED"
)

// Payout is a merchant transfer to a user's wallet.
type Payout struct {
	ID uint64

	PartnerTradeNo string
	OpenID         string
	CheckName      string
	ReUserName     *string
	Amount         int64
	Desc           string
	SpbillCreateIP string
	DeviceInfo     *string

	PayResult *ResultSnapshot
	PaymentNo *string

	QueryResult *ResultSnapshot

	Status  string
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Payout) RecomputeState() {
	p.Status = MergeAuthoritative(PayoutStateCreated,
		slotState(SlotPlacement, p.PayResult),
		slotState(SlotQuery, p.QueryResult),
	)
}

func (p *Payout) Clone() *Payout {
	if p == nil {
		return nil
	}
	c := *p
	c.PayResult = cloneSnapshot(p.PayResult)
	c.QueryResult = cloneSnapshot(p.QueryResult)
	return &c
}
