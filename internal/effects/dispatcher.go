package effects

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
)

// TriggerStayCompleted is the loyalty ledger trigger for a finished stay.
// The (booking, trigger) pair is the ledger's unique key, so retrying a
// checkout can never credit the points twice.
const TriggerStayCompleted = "stay_completed"

// Ledger is the append-only loyalty ledger.  Credit returns false when the
// (booking, trigger) key already exists, i.e. the points were credited by
// an earlier attempt.
type Ledger interface {
	CreditLoyalty(ctx context.Context, credit model.LoyaltyCredit) (bool, error)
}

// Notifier is the fire-and-forget notification dispatcher.
type Notifier interface {
	Notify(ctx context.Context, eventType string, payload map[string]any) error
}

// Dispatcher applies the side-effect policy for the engine.  Scoring runs
// with a bounded timeout and fails safe: an unreachable scorer flags the
// payment for manual review instead of letting it through unscored.
type Dispatcher struct {
	Scorer         Scorer
	Rates          RateTable
	Ledger         Ledger
	Notifier       Notifier
	FraudThreshold uint8         // scores strictly above this are flagged
	ScoreTimeout   time.Duration // budget for one scorer call
	EffectTimeout  time.Duration // budget for ledger and notification calls
}

// ScorePayment calls the external scorer for a payment and translates the
// outcome into a fraud operation.  A score above the threshold, a scorer
// error or a timeout all produce a FLAGGED operation; the engine downgrades
// the transition accordingly.
func (d *Dispatcher) ScorePayment(ctx context.Context, b *model.Booking, p *model.Payment) model.FraudOperation {
	op := model.FraudOperation{
		BookingID: b.ID,
		PaymentID: p.ID,
		Status:    model.FraudCleared,
	}
	sctx, cancel := context.WithTimeout(ctx, d.ScoreTimeout)
	defer cancel()

	score, err := d.Scorer.Score(sctx, Features{
		BookingID:   b.ID,
		PaymentID:   p.ID,
		CustomerID:  b.CustomerID,
		AmountCents: p.AmountCents,
		Method:      p.Method,
		Nights:      b.Nights(),
	})
	if err != nil {
		log.Printf("effects: fraud scorer failed for payment %d: %v", p.ID, err)
		op.Status = model.FraudFlagged
		op.Reason = fmt.Sprintf("scorer unavailable: %v", err)
		return op
	}
	op.RiskScore = score
	if score > d.FraudThreshold {
		op.Status = model.FraudFlagged
		op.Reason = fmt.Sprintf("risk score %d above threshold %d", score, d.FraudThreshold)
	}
	return op
}

// AccruePoints credits loyalty points for a completed stay.  It returns
// the points credited and whether the ledger accepted the entry; false
// with a nil error means the credit already existed.
func (d *Dispatcher) AccruePoints(ctx context.Context, b *model.Booking) (int, bool, error) {
	season := SeasonFor(b.CheckInDate)
	points := d.Rates.PointsFor(b.RoomCategory, season, b.Nights())
	if points <= 0 {
		return 0, false, nil
	}
	ectx, cancel := context.WithTimeout(ctx, d.EffectTimeout)
	defer cancel()

	credited, err := d.Ledger.CreditLoyalty(ectx, model.LoyaltyCredit{
		BookingID: b.ID,
		Trigger:   TriggerStayCompleted,
		Points:    points,
	})
	if err != nil {
		return points, false, err
	}
	return points, credited, nil
}

// Publish sends a state-change notification.  Failures are returned so the
// caller can queue a retry; they never affect the committed transition.
func (d *Dispatcher) Publish(ctx context.Context, eventType string, payload map[string]any) error {
	if d.Notifier == nil {
		return nil
	}
	ectx, cancel := context.WithTimeout(ctx, d.EffectTimeout)
	defer cancel()
	return d.Notifier.Notify(ectx, eventType, payload)
}
