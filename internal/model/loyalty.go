package model

import "time"

// LoyaltyCredit is one row of the append-only loyalty ledger.  The
// (BookingID, Trigger) pair is unique, which is what makes point accrual
// idempotent: re-dispatching the same trigger for a booking is a no-op.
//
// Fields:
//  ID        – primary key identifier.
//  BookingID – booking the points were earned on.
//  Trigger   – what earned the points (e.g. "stay_completed").
//  Points    – points credited.
//  CreatedAt – creation timestamp.
type LoyaltyCredit struct {
	ID        uint64    // loyalty_credits.id
	BookingID uint64    // loyalty_credits.booking_id
	Trigger   string    // loyalty_credits.trigger
	Points    int       // loyalty_credits.points
	CreatedAt time.Time // loyalty_credits.created_at
}

// Side-effect kinds tracked in the retry queue.
const (
	EffectLoyaltyAccrual = "loyalty_accrual"
	EffectNotification   = "notification"
)

// Side-effect statuses.
const (
	EffectPending = "PENDING"
	EffectDone    = "DONE"
	EffectFailed  = "FAILED"
)

// SideEffect is a queued side effect whose dispatch failed or timed out
// after its transition committed.  The sweeper retries PENDING rows; the
// committed state change is never rolled back on side-effect failure.
//
// Fields:
//  ID           – primary key identifier.
//  TransitionID – transition that triggered the effect (idempotency key).
//  BookingID    – booking the effect belongs to.
//  Kind         – effect kind (loyalty_accrual, notification).
//  Status       – PENDING, DONE or FAILED.
//  Attempts     – delivery attempts so far.
//  LastError    – message from the most recent failure.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type SideEffect struct {
	ID           uint64    // side_effects.id
	TransitionID string    // side_effects.transition_id
	BookingID    uint64    // side_effects.booking_id
	Kind         string    // side_effects.kind
	Status       string    // side_effects.status
	Attempts     uint32    // side_effects.attempts
	LastError    string    // side_effects.last_error
	CreatedAt    time.Time // side_effects.created_at
	UpdatedAt    time.Time // side_effects.updated_at
}
