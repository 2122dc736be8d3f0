package entity

import "time"

const (
	ResultSuccess = "SUCCESS"
	ResultFail    = "FAIL"
)

// ResultSlot is an independent channel through which a gateway outcome
// reaches an entity. Higher values are more authoritative.
type ResultSlot int

const (
	SlotPlacement ResultSlot = iota + 1
	SlotQuery
	SlotNotify
)

func (s ResultSlot) String() string {
	switch s {
	case SlotPlacement:
		return "placement"
	case SlotQuery:
		return "query"
	case SlotNotify:
		return "notify"
	default:
		return "unknown"
	}
}

// ResultSnapshot is the last payload received through one slot.
type ResultSnapshot struct {
	ResultCode string            `json:"result_code"`
	State      string            `json:"state,omitempty"`
	Verified   bool              `json:"verified"`
	Payload    map[string]string `json:"payload,omitempty"`
	ReceivedAt time.Time         `json:"received_at"`
}

func (s *ResultSnapshot) Succeeded() bool {
	return s != nil && s.ResultCode == ResultSuccess
}

// Code returns the result code, or "" when nothing was received yet.
func (s *ResultSnapshot) Code() string {
	if s == nil {
		return ""
	}
	return s.ResultCode
}

func (s *ResultSnapshot) StateValue() string {
	if s == nil {
		return ""
	}
	return s.State
}

// SlotState pairs a slot with the state its latest snapshot implies.
type SlotState struct {
	Slot  ResultSlot
	State string
}

// MergeAuthoritative returns the state carried by the most authoritative
// slot (notify > query > placement) that has one, or fallback.
func MergeAuthoritative(fallback string, candidates ...SlotState) string {
	best := fallback
	bestSlot := ResultSlot(0)
	for _, c := range candidates {
		if c.State == "" {
			continue
		}
		if c.Slot > bestSlot {
			best = c.State
			bestSlot = c.Slot
		}
	}
	return best
}

func slotState(slot ResultSlot, snapshot *ResultSnapshot) SlotState {
	return SlotState{Slot: slot, State: snapshot.StateValue()}
}
