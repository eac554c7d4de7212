// Package effects holds the side-effect dispatchers invoked by the
// transition engine: fraud-risk scoring and loyalty-point accrual.  The
// scorer heuristic and the rate table are external collaborators behind
// interfaces; this package owns the dispatch policy around them (timeouts,
// thresholds, idempotency).
package effects

import "context"

// Features is the input vector handed to the fraud scorer.  It carries the
// reservation, customer and payment attributes the heuristic needs without
// exposing the full domain entities.
type Features struct {
	BookingID   uint64
	PaymentID   uint64
	CustomerID  uint64
	AmountCents uint32
	Method      string
	Nights      int
}

// Scorer evaluates the fraud risk of a payment.  Implementations return a
// score between 0 and 100; higher means riskier.
type Scorer interface {
	Score(ctx context.Context, f Features) (uint8, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, f Features) (uint8, error)

func (fn ScorerFunc) Score(ctx context.Context, f Features) (uint8, error) { return fn(ctx, f) }
