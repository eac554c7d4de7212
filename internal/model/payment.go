package model

import "time"

// PaymentState is the financial state of a single payment attempt.
type PaymentState string

const (
	PaymentPending       PaymentState = "PENDING"
	PaymentAwaitingProof PaymentState = "AWAITING_PROOF"
	PaymentInReview      PaymentState = "IN_REVIEW"
	PaymentConfirmed     PaymentState = "CONFIRMED"
	PaymentRefused       PaymentState = "REFUSED"
	PaymentCancelled     PaymentState = "CANCELLED"
)

// Payment records one payment attempt against a booking.  A booking may
// accumulate several payments through retries or partial payments; under
// normal flow at most one of them reaches CONFIRMED.
//
// Fields:
//  ID          – primary key identifier.
//  BookingID   – booking the payment belongs to.
//  Status      – financial state of the payment.
//  AmountCents – amount in cents.
//  Method      – payment method (e.g. "card", "transfer").
//  RiskScore   – fraud risk score 0–100, once scored (nullable).
//  ProofRef    – reference to an uploaded proof of payment (nullable).
//  GatewayRef  – external payment gateway reference (nullable).
//  Version     – optimistic locking field.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Payment struct {
	ID          uint64       // payments.id
	BookingID   uint64       // payments.booking_id
	Status      PaymentState // payments.status
	AmountCents uint32       // payments.amount_cents
	Method      string       // payments.method
	RiskScore   *uint8       // payments.risk_score (nullable)
	ProofRef    *string      // payments.proof_ref (nullable)
	GatewayRef  *string      // payments.gateway_ref (nullable)
	Version     uint32       // payments.version
	CreatedAt   time.Time    // payments.created_at
	UpdatedAt   time.Time    // payments.updated_at
}
