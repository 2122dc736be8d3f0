package entity

import "time"

const (
	TradeTypeJSAPI    = "JSAPI"
	TradeTypeMWEB     = "MWEB"
	TradeTypeNative   = "NATIVE"
	TradeTypeApp      = "APP"
	TradeTypeMicropay = "MICROPAY"
)

const (
	OrderStateCreated     = "CREATED"
	OrderStatePlaceFailed = "PLACE_FAILED"

	TradeStateNotPay     = "NOTPAY"
	TradeStateSuccess    = "SUCCESS"
	TradeStateRefund     = "REFUND"
	TradeStateUserPaying = "USERPAYING"
	TradeStatePayError   = "PAYERROR"
	TradeStateClosed     = "CLOSED"
	TradeStateRevoked    = "REVOKED"
)

const RecallYes = "Y"

type Order struct {
	ID uint64

	OutTradeNo     string
	Body           string
	TotalFee       int64
	SpbillCreateIP string
	TradeType      string

	DeviceInfo *string
	Detail     *string
	Attach     *string
	FeeType    *string
	TimeStart  *string
	TimeExpire *string
	GoodsTag   *string
	ProductID  *string
	LimitPay   *string
	OpenID     *string
	SceneInfo  *string
	AuthCode   *string

	Placement     *ResultSnapshot
	PrepayID      *string
	MwebURL       *string
	CodeURL       *string
	TransactionID *string

	Notify *ResultSnapshot

	Query          *ResultSnapshot
	TradeState     *string
	TradeStateDesc *string

	Cancel *ResultSnapshot
	Recall *string

	State   string
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the payment-initiation attributes are frozen.
func (o *Order) Locked() bool {
	return o.Placement.Succeeded()
}

func (o *Order) RecomputeState() {
	o.State = MergeAuthoritative(OrderStateCreated,
		slotState(SlotPlacement, o.Placement),
		slotState(SlotQuery, o.Query),
		slotState(SlotNotify, o.Notify),
	)
}

// Clone returns a copy that shares no snapshot pointers with o.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Placement = cloneSnapshot(o.Placement)
	c.Notify = cloneSnapshot(o.Notify)
	c.Query = cloneSnapshot(o.Query)
	c.Cancel = cloneSnapshot(o.Cancel)
	return &c
}

func cloneSnapshot(s *ResultSnapshot) *ResultSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.Payload != nil {
		c.Payload = make(map[string]string, len(s.Payload))
		for k, v := range s.Payload {
			c.Payload[k] = v
		}
	}
	return &c
}
