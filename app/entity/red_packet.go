package entity

import "time"

const (
	RedPacketStateCreated   = "CREATED"
	RedPacketStateSending   = "SENDING"
	RedPacketStateSent      = "SENT"
	RedPacketStateFailed    = "FAILED"
	RedPacketStateReceived  = "RECEIVED"
	RedPacketStateRefunding = "RFUND_ING"
	RedPacketStateRefund    = "REFUND"
)

const AmtTypeAllRand = "ALL_RAND"

// RedPacket is a cash gift; TotalNum > 1 makes it a group (fission) packet.
type RedPacket struct {
	ID uint64

	MchBillno    string
	SendName     string
	ReOpenID     string
	TotalAmount  int64
	TotalNum     int32
	Wishing      string
	ActName      string
	Remark       string
	AmtType      *string
	ClientIP     *string
	SceneID      *string
	RiskInfo     *string
	ConsumeMchID *string

	SendResult *ResultSnapshot
	SendListID *string

	QueryResult *ResultSnapshot

	Status  string
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *RedPacket) Group() bool {
	return r.TotalNum > 1
}

func (r *RedPacket) RecomputeState() {
	r.Status = MergeAuthoritative(RedPacketStateCreated,
		slotState(SlotPlacement, r.SendResult),
		slotState(SlotQuery, r.QueryResult),
	)
}

func (r *RedPacket) Clone() *RedPacket {
	if r == nil {
		return nil
	}
	c := *r
	c.SendResult = cloneSnapshot(r.SendResult)
	c.QueryResult = cloneSnapshot(r.QueryResult)
	return &c
}
