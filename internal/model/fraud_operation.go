package model

import "time"

// FraudStatus is the review status of a fraud operation.
type FraudStatus string

const (
	FraudPending FraudStatus = "PENDING"
	FraudCleared FraudStatus = "CLEARED"
	FraudFlagged FraudStatus = "FLAGGED"
)

// FraudOperation records the outcome of a fraud-risk evaluation for a
// payment.  Operations are created as side effects of payment transitions;
// they never block a transition on their own, but a FLAGGED operation puts
// a hold on payment approval until an admin clears it.
//
// Fields:
//  ID        – primary key identifier.
//  BookingID – booking the scored payment belongs to.
//  PaymentID – payment that was scored.
//  RiskScore – risk score 0–100 returned by the scorer.
//  Status    – review status (PENDING, CLEARED, FLAGGED).
//  Reason    – free-text reason recorded with the score.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type FraudOperation struct {
	ID        uint64      // fraud_operations.id
	BookingID uint64      // fraud_operations.booking_id
	PaymentID uint64      // fraud_operations.payment_id
	RiskScore uint8       // fraud_operations.risk_score
	Status    FraudStatus // fraud_operations.status
	Reason    string      // fraud_operations.reason
	CreatedAt time.Time   // fraud_operations.created_at
	UpdatedAt time.Time   // fraud_operations.updated_at
}
