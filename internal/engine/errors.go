// Package engine implements the state transition and validation engine for
// the three booking domains: the cross-domain validator, the transition
// service with its cascades and side effects, and the per-booking locking
// that serializes mutations.
package engine

import (
	"errors"
	"fmt"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
)

// ErrConcurrentModification is returned by the store when a commit's
// version guards no longer match the loaded snapshot.  Apply retries the
// whole unit of work once before surfacing it.
var ErrConcurrentModification = errors.New("concurrent modification")

// ErrCascadeLimit signals that a transition cascaded deeper than the
// configured maximum.  This is a configuration defect (a malformed
// transition or cascade table), never caller input; it aborts the whole
// unit of work and must be surfaced to operators.
var ErrCascadeLimit = errors.New("cascade depth limit exceeded")

// ErrDependencyTimeout marks a side-effect failure caused by a slow
// external collaborator.  It never rolls back a committed transition; the
// effect is queued for retry instead.
var ErrDependencyTimeout = errors.New("external dependency timeout")

// ErrTokenConsumed is returned when an approval token from the validator
// is used more than once.
var ErrTokenConsumed = errors.New("approval token already consumed")

// InvalidTransitionError reports an action that is not legal from the
// entity's current state.  It is a client error, not a rule violation.
type InvalidTransitionError struct {
	Domain model.Domain
	From   string
	Action model.Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: action %q not legal from %s state %q", e.Action, e.Domain, e.From)
}

// Machine-readable denial reason codes produced by the validator.
const (
	ReasonBookingNotConfirmed = "booking_not_confirmed"
	ReasonPaymentNotConfirmed = "payment_not_confirmed"
	ReasonGuestCheckedIn      = "guest_checked_in"
	ReasonBookingTerminal     = "booking_terminal"
	ReasonFraudHold           = "fraud_hold"
	ReasonLodgingMissing      = "lodging_missing"
)

// DeniedError reports a cross-domain invariant violation.  Reason is one of
// the reason codes above and is safe to expose to clients.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("transition denied: %s", e.Reason)
}
