package model

// Domain identifies one of the three independent state axes of a booking.
// The commercial state lives on the booking itself, the financial state on
// its payments and the operational state on the lodging record.  The three
// evolve asynchronously but are kept consistent by the transition engine.
type Domain string

const (
	DomainBooking Domain = "booking" // commercial state of the reservation
	DomainPayment Domain = "payment" // financial state of a payment
	DomainLodging Domain = "lodging" // operational state of the stay
)

// Valid reports whether d names one of the three known domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainBooking, DomainPayment, DomainLodging:
		return true
	}
	return false
}

// Action names a requested transition within a domain.  The set of legal
// actions per domain is defined by the transition tables in internal/state.
type Action string

// Booking domain actions.
const (
	ActionPaymentSubmitted Action = "payment_submitted"
	ActionBeginReview      Action = "begin_review"
	ActionConfirm          Action = "confirm"
	ActionCancel           Action = "cancel"
	ActionExpire           Action = "expire"
	ActionMarkNoShow       Action = "mark_no_show"
)

// Payment domain actions.  ActionBeginReview and ActionCancel are shared
// with the booking domain; the tables keep their meanings separate.
const (
	ActionSubmitProof Action = "submit_proof"
	ActionApprove     Action = "approve"
	ActionRefuse      Action = "refuse"
)

// Lodging domain actions.
const (
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"
)
