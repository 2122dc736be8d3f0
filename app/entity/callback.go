package entity

import "time"

const (
	CallbackKindOrderNotify  = "order_notify"
	CallbackKindRefundNotify = "refund_notify"

	CallbackStatusProcessed int32 = 10
	CallbackStatusRejected  int32 = 20
)

// GatewayCallback records every inbound webhook body, accepted or not.
type GatewayCallback struct {
	ID uint64

	Kind      string
	Reference *string
	Payload   string
	Status    int32
	Error     *string

	CreatedAt time.Time
}
