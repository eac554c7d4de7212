package state

import "github.com/iliyamo/hotel-booking-lifecycle/internal/model"

// The three canonical transition tables.  Terminal states (CANCELLED,
// NO_SHOW, CONFIRMED payments, CHECKED_OUT) have no entry, so every action
// on them fails the table lookup.

// NewBookingMachine builds the commercial state machine.
func NewBookingMachine() *Machine[model.BookingState] {
	return &Machine[model.BookingState]{
		domain:  model.DomainBooking,
		initial: model.BookingPendingPayment,
		table: map[model.BookingState]map[model.Action]model.BookingState{
			model.BookingPendingPayment: {
				model.ActionPaymentSubmitted: model.BookingAwaitingProof,
				model.ActionConfirm:          model.BookingConfirmed,
				model.ActionCancel:           model.BookingCancelled,
				model.ActionExpire:           model.BookingCancelled,
			},
			model.BookingAwaitingProof: {
				model.ActionBeginReview: model.BookingInReview,
				model.ActionConfirm:     model.BookingConfirmed,
				model.ActionCancel:      model.BookingCancelled,
				model.ActionExpire:      model.BookingCancelled,
			},
			model.BookingInReview: {
				model.ActionConfirm: model.BookingConfirmed,
				model.ActionCancel:  model.BookingCancelled,
			},
			model.BookingConfirmed: {
				model.ActionCancel:     model.BookingCancelled,
				model.ActionMarkNoShow: model.BookingNoShow,
			},
		},
	}
}

// NewPaymentMachine builds the financial state machine.
func NewPaymentMachine() *Machine[model.PaymentState] {
	return &Machine[model.PaymentState]{
		domain:  model.DomainPayment,
		initial: model.PaymentPending,
		table: map[model.PaymentState]map[model.Action]model.PaymentState{
			model.PaymentPending: {
				model.ActionSubmitProof: model.PaymentAwaitingProof,
				model.ActionApprove:     model.PaymentConfirmed,
				model.ActionCancel:      model.PaymentCancelled,
			},
			model.PaymentAwaitingProof: {
				model.ActionBeginReview: model.PaymentInReview,
				model.ActionApprove:     model.PaymentConfirmed,
				model.ActionCancel:      model.PaymentCancelled,
			},
			model.PaymentInReview: {
				model.ActionApprove: model.PaymentConfirmed,
				model.ActionRefuse:  model.PaymentRefused,
				model.ActionCancel:  model.PaymentCancelled,
			},
		},
	}
}

// NewLodgingMachine builds the operational state machine.
func NewLodgingMachine() *Machine[model.LodgingState] {
	return &Machine[model.LodgingState]{
		domain:  model.DomainLodging,
		initial: model.LodgingNotStarted,
		table: map[model.LodgingState]map[model.Action]model.LodgingState{
			model.LodgingNotStarted: {
				model.ActionCheckIn: model.LodgingCheckedIn,
			},
			model.LodgingCheckedIn: {
				model.ActionCheckOut: model.LodgingCheckedOut,
			},
		},
	}
}
