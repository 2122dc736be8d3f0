package entity

import "time"

const (
	EntityOrder     = "order"
	EntityRefund    = "refund"
	EntityPayout    = "payout"
	EntityRedPacket = "red_packet"
)

// Event is an audit row for a state transition or an operator alert.
type Event struct {
	ID uint64

	EntityType string
	Reference  string

	EventType string

	OldState *string
	NewState string

	PayloadJSON *string

	CreatedAt time.Time
}
