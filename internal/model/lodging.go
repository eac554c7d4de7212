package model

import "time"

// LodgingState is the operational state of the physical stay.
type LodgingState string

const (
	LodgingNotStarted LodgingState = "NOT_STARTED"
	LodgingCheckedIn  LodgingState = "CHECKED_IN"
	LodgingCheckedOut LodgingState = "CHECKED_OUT"
)

// Lodging tracks the physical stay attached to a booking.  Exactly one
// lodging record exists per booking once the booking is confirmed; it is
// created by the engine as a cascade of the confirmation and never
// independently.
//
// Fields:
//  ID           – primary key identifier.
//  BookingID    – owning booking (1:1).
//  Status       – operational state of the stay.
//  CheckedInAt  – when the guest checked in (nullable).
//  CheckedInBy  – actor who performed the check-in (nullable).
//  CheckedOutAt – when the guest checked out (nullable).
//  CheckedOutBy – actor who performed the check-out (nullable).
//  GuestCount   – number of guests occupying the room.
//  Version      – optimistic locking field.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Lodging struct {
	ID           uint64       // lodgings.id
	BookingID    uint64       // lodgings.booking_id
	Status       LodgingState // lodgings.status
	CheckedInAt  *time.Time   // lodgings.checked_in_at (nullable)
	CheckedInBy  *string      // lodgings.checked_in_by (nullable)
	CheckedOutAt *time.Time   // lodgings.checked_out_at (nullable)
	CheckedOutBy *string      // lodgings.checked_out_by (nullable)
	GuestCount   uint32       // lodgings.guest_count
	Version      uint32       // lodgings.version
	CreatedAt    time.Time    // lodgings.created_at
	UpdatedAt    time.Time    // lodgings.updated_at
}
