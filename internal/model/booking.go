package model

import "time"

// BookingState is the commercial state of a reservation.
type BookingState string

const (
	BookingPendingPayment BookingState = "PENDING_PAYMENT"
	BookingAwaitingProof  BookingState = "AWAITING_PROOF"
	BookingInReview       BookingState = "IN_REVIEW"
	BookingConfirmed      BookingState = "CONFIRMED"
	BookingCancelled      BookingState = "CANCELLED"
	BookingNoShow         BookingState = "NO_SHOW"
)

// Booking records a customer's reservation of a room for a date range.
// It is created on the booking request and never deleted; terminal
// commercial states (CANCELLED, NO_SHOW) end its lifecycle.  The Status
// field is mutated only by the transition engine.
//
// Fields:
//  ID               – primary key identifier.
//  CustomerID       – customer who made the booking.
//  RoomID           – room being reserved.
//  RoomCategory     – category used by the loyalty rate table.
//  CheckInDate      – first night of the stay.
//  CheckOutDate     – day of departure.
//  Status           – commercial state of the booking.
//  TotalAmountCents – total price in cents for the stay.
//  PaymentDeadline  – when an unpaid booking expires.
//  Version          – optimistic locking field to handle concurrent
//                     updates.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Booking struct {
	ID               uint64       // bookings.id
	CustomerID       uint64       // bookings.customer_id
	RoomID           uint64       // bookings.room_id
	RoomCategory     string       // bookings.room_category
	CheckInDate      time.Time    // bookings.check_in_date
	CheckOutDate     time.Time    // bookings.check_out_date
	Status           BookingState // bookings.status
	TotalAmountCents uint32       // bookings.total_amount_cents
	PaymentDeadline  time.Time    // bookings.payment_deadline
	Version          uint32       // bookings.version
	CreatedAt        time.Time    // bookings.created_at
	UpdatedAt        time.Time    // bookings.updated_at
}

// Nights returns the number of nights covered by the stay.  A zero or
// negative date range counts as zero nights.
func (b *Booking) Nights() int {
	n := int(b.CheckOutDate.Sub(b.CheckInDate).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}
