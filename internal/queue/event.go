// Package queue defines message payloads exchanged over the message broker
// and the background consumer that drains them.
package queue

// StateChangedEvent is published after every successfully applied
// transition.  It carries enough for downstream consumers to notify, log
// or feed analytics without querying the primary database.
type StateChangedEvent struct {
	EventType    string `json:"event_type"`
	TransitionID string `json:"transition_id"`
	BookingID    uint64 `json:"booking_id"`
	Domain       string `json:"domain"`
	Action       string `json:"action"`
	From         string `json:"from"`
	To           string `json:"to"`
	OccurredAt   string `json:"occurred_at"`
}
