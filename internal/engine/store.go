package engine

import (
	"context"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
)

// Snapshot is a single consistent read of all three domains for one
// booking, plus the fraud operations the validator needs for its risk
// gate.  The validator must never mix states read at different times, so
// the store produces the whole snapshot from one transaction/read view.
type Snapshot struct {
	Booking  model.Booking
	Payments []model.Payment
	Lodging  *model.Lodging // nil until the booking is confirmed
	Fraud    []model.FraudOperation
}

// PaymentByID returns the payment with the given ID, or nil.
func (s *Snapshot) PaymentByID(id uint64) *model.Payment {
	for i := range s.Payments {
		if s.Payments[i].ID == id {
			return &s.Payments[i]
		}
	}
	return nil
}

// HasConfirmedPayment reports whether at least one payment is CONFIRMED.
func (s *Snapshot) HasConfirmedPayment() bool {
	for i := range s.Payments {
		if s.Payments[i].Status == model.PaymentConfirmed {
			return true
		}
	}
	return false
}

// latestFraudFor returns the most recent fraud operation for a payment,
// or nil when the payment has never been scored.
func (s *Snapshot) latestFraudFor(paymentID uint64) *model.FraudOperation {
	var latest *model.FraudOperation
	for i := range s.Fraud {
		if s.Fraud[i].PaymentID != paymentID {
			continue
		}
		if latest == nil || s.Fraud[i].ID > latest.ID {
			latest = &s.Fraud[i]
		}
	}
	return latest
}

// Mutation is one state change staged for an atomic commit.  FromVersion
// is the optimistic guard: the store must refuse the commit with
// ErrConcurrentModification when the stored version has moved on.
type Mutation struct {
	Domain      model.Domain
	EntityID    uint64 // booking, payment or lodging row id
	FromState   string
	ToState     string
	FromVersion uint32
	Actor       string // recorded on lodging check-in/check-out columns
}

// Commit is the full unit of work for one Apply call: every staged
// mutation (the requested transition plus its cascades), the lodging
// record to create if the booking just confirmed, fraud operations
// recorded along the way, and the audit entries.  The store applies all
// of it atomically or not at all.
type Commit struct {
	BookingID     uint64
	Mutations     []Mutation
	EnsureLodging bool // create the lodging row in NOT_STARTED, idempotently
	FraudOps      []model.FraudOperation
	Audits        []model.AuditEntry
}

// Store is the persistence collaborator consumed by the engine.  The
// MySQL implementation lives in internal/repository; tests use an
// in-memory fake.
type Store interface {
	// LoadSnapshot reads all three domain states for a booking from a
	// single consistent read view.
	LoadSnapshot(ctx context.Context, bookingID uint64) (*Snapshot, error)

	// CommitUnit applies a commit atomically, guarding every mutation
	// with its FromVersion.  Returns ErrConcurrentModification when any
	// guard fails.
	CommitUnit(ctx context.Context, c *Commit) error

	// WriteAudit records an audit entry outside a commit.  Used for
	// denials and failures, which also must leave a forensic trace.
	WriteAudit(ctx context.Context, entry model.AuditEntry) error

	// UpdateFraudStatus moves a fraud operation to a new review status.
	UpdateFraudStatus(ctx context.Context, opID uint64, status model.FraudStatus, reason string) error

	// EnqueueEffect queues a side effect whose dispatch failed after its
	// transition committed, for retry by the sweeper.
	EnqueueEffect(ctx context.Context, eff model.SideEffect) error
}
