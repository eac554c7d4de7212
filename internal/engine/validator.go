package engine

import (
	"sync/atomic"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
)

// Decision is the validator's answer for one proposed transition.  On
// approval it carries a one-shot token: the transition service must
// consume it within the same unit of work, so a decision computed against
// one snapshot can never authorize a commit against another.
type Decision struct {
	Allowed bool
	Reason  string // machine-readable code, set on denial
	used    atomic.Bool
}

// Consume spends the approval token.  It returns ErrTokenConsumed on a
// second use and a DeniedError when the decision was a denial.
func (d *Decision) Consume() error {
	if !d.Allowed {
		return &DeniedError{Reason: d.Reason}
	}
	if d.used.Swap(true) {
		return ErrTokenConsumed
	}
	return nil
}

func allow() *Decision             { return &Decision{Allowed: true} }
func deny(reason string) *Decision { return &Decision{Reason: reason} }

// Validator is the single authority for cross-domain consistency.  It
// inspects the consistent snapshot of all three domains and applies the
// invariant rules in priority order; the first violated rule wins.  It has
// no side effects: denials are audited by the transition service.
type Validator struct{}

// NewValidator returns the cross-domain validator.
func NewValidator() *Validator { return &Validator{} }

// Validate checks the proposed transition against the invariant set.
// override marks a privileged request; it relaxes only the rules that are
// documented as overridable and the service records its use in the audit
// entry.
func (v *Validator) Validate(snap *Snapshot, req *Request) *Decision {
	switch req.Domain {
	case model.DomainLodging:
		return v.validateLodging(snap, req)
	case model.DomainBooking:
		return v.validateBooking(snap, req)
	case model.DomainPayment:
		return v.validatePayment(snap, req)
	}
	return allow()
}

func (v *Validator) validateLodging(snap *Snapshot, req *Request) *Decision {
	if req.Action != model.ActionCheckIn {
		return allow()
	}
	if snap.Lodging == nil {
		return deny(ReasonLodgingMissing)
	}
	// A guest cannot check in before the booking is confirmed and at
	// least one payment has cleared.
	if snap.Booking.Status != model.BookingConfirmed {
		return deny(ReasonBookingNotConfirmed)
	}
	if !snap.HasConfirmedPayment() {
		return deny(ReasonPaymentNotConfirmed)
	}
	return allow()
}

func (v *Validator) validateBooking(snap *Snapshot, req *Request) *Decision {
	switch req.Action {
	case model.ActionCancel, model.ActionExpire, model.ActionMarkNoShow:
		// Terminalizing the booking while the guest is physically checked
		// in requires a check-out first, or the privileged override.
		if snap.Lodging != nil && snap.Lodging.Status == model.LodgingCheckedIn && !req.Override {
			return deny(ReasonGuestCheckedIn)
		}
	}
	return allow()
}

func (v *Validator) validatePayment(snap *Snapshot, req *Request) *Decision {
	if req.Action != model.ActionApprove {
		return allow()
	}
	// Money must never clear against a dead booking.
	switch snap.Booking.Status {
	case model.BookingCancelled, model.BookingNoShow:
		return deny(ReasonBookingTerminal)
	}
	// A flagged fraud operation holds the payment until an admin clears
	// it.  The flag is set by the scoring policy on a previous attempt.
	if op := snap.latestFraudFor(req.PaymentID); op != nil && op.Status == model.FraudFlagged {
		return deny(ReasonFraudHold)
	}
	return allow()
}
