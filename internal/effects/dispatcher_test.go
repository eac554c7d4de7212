package effects_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/effects"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
)

type fakeLedger struct {
	credits map[string]int
	err     error
}

func (l *fakeLedger) CreditLoyalty(_ context.Context, c model.LoyaltyCredit) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	key := fmt.Sprintf("%d:%s", c.BookingID, c.Trigger)
	if _, ok := l.credits[key]; ok {
		return false, nil
	}
	l.credits[key] = c.Points
	return true, nil
}

func testBooking() *model.Booking {
	return &model.Booking{
		ID:           1,
		CustomerID:   7,
		RoomCategory: "deluxe",
		CheckInDate:  time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		CheckOutDate: time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestSeasonFor(t *testing.T) {
	assert.Equal(t, effects.SeasonHigh, effects.SeasonFor(time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, effects.SeasonHigh, effects.SeasonFor(time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, effects.SeasonLow, effects.SeasonFor(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, effects.SeasonLow, effects.SeasonFor(time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC)))
}

func TestStaticRateTable(t *testing.T) {
	table := &effects.StaticRateTable{
		PerNight: map[string]map[string]int{
			"deluxe": {effects.SeasonHigh: 30, effects.SeasonLow: 20},
		},
		DefaultRate: 10,
	}
	assert.Equal(t, 120, table.PointsFor("deluxe", effects.SeasonHigh, 4))
	assert.Equal(t, 60, table.PointsFor("deluxe", effects.SeasonLow, 3))
	assert.Equal(t, 20, table.PointsFor("unknown", effects.SeasonHigh, 2), "unknown categories use the default rate")
	assert.Equal(t, 0, table.PointsFor("deluxe", effects.SeasonHigh, 0))
}

func TestScorePaymentThreshold(t *testing.T) {
	d := &effects.Dispatcher{
		Scorer: effects.ScorerFunc(func(context.Context, effects.Features) (uint8, error) {
			return 80, nil
		}),
		FraudThreshold: 75,
		ScoreTimeout:   time.Second,
	}
	b := testBooking()
	p := &model.Payment{ID: 11, BookingID: 1, AmountCents: 40_000, Method: "card"}

	op := d.ScorePayment(context.Background(), b, p)
	assert.Equal(t, model.FraudFlagged, op.Status)
	assert.Equal(t, uint8(80), op.RiskScore)
	assert.NotEmpty(t, op.Reason)

	// A score exactly at the threshold is not flagged.
	d.Scorer = effects.ScorerFunc(func(context.Context, effects.Features) (uint8, error) {
		return 75, nil
	})
	op = d.ScorePayment(context.Background(), b, p)
	assert.Equal(t, model.FraudCleared, op.Status)
}

func TestScorePaymentFailsSafeOnError(t *testing.T) {
	d := &effects.Dispatcher{
		Scorer: effects.ScorerFunc(func(context.Context, effects.Features) (uint8, error) {
			return 0, errors.New("connection refused")
		}),
		FraudThreshold: 75,
		ScoreTimeout:   time.Second,
	}
	op := d.ScorePayment(context.Background(), testBooking(), &model.Payment{ID: 11})
	assert.Equal(t, model.FraudFlagged, op.Status)
	assert.Contains(t, op.Reason, "scorer unavailable")
}

func TestScorePaymentFailsSafeOnTimeout(t *testing.T) {
	d := &effects.Dispatcher{
		Scorer: effects.ScorerFunc(func(ctx context.Context, _ effects.Features) (uint8, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		}),
		FraudThreshold: 75,
		ScoreTimeout:   10 * time.Millisecond,
	}
	op := d.ScorePayment(context.Background(), testBooking(), &model.Payment{ID: 11})
	assert.Equal(t, model.FraudFlagged, op.Status)
}

func TestAccruePointsIdempotent(t *testing.T) {
	ledger := &fakeLedger{credits: make(map[string]int)}
	d := &effects.Dispatcher{
		Rates: &effects.StaticRateTable{
			PerNight:    map[string]map[string]int{"deluxe": {effects.SeasonHigh: 30}},
			DefaultRate: 10,
		},
		Ledger:        ledger,
		EffectTimeout: time.Second,
	}
	b := testBooking() // four high-season nights in a deluxe room

	points, credited, err := d.AccruePoints(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, credited)
	assert.Equal(t, 120, points)

	// The second accrual for the same stay is a no-op.
	points, credited, err = d.AccruePoints(context.Background(), b)
	require.NoError(t, err)
	assert.False(t, credited)
	assert.Equal(t, 120, points)
	assert.Len(t, ledger.credits, 1)
}

func TestAccruePointsSkipsZeroNights(t *testing.T) {
	ledger := &fakeLedger{credits: make(map[string]int)}
	d := &effects.Dispatcher{
		Rates:         &effects.StaticRateTable{DefaultRate: 10},
		Ledger:        ledger,
		EffectTimeout: time.Second,
	}
	b := testBooking()
	b.CheckOutDate = b.CheckInDate

	points, credited, err := d.AccruePoints(context.Background(), b)
	require.NoError(t, err)
	assert.False(t, credited)
	assert.Zero(t, points)
	assert.Empty(t, ledger.credits)
}

func TestHeuristicScorerBounds(t *testing.T) {
	s := effects.NewHeuristicScorer()

	low, err := s.Score(context.Background(), effects.Features{
		AmountCents: 20_000, Nights: 3, Method: "card",
	})
	require.NoError(t, err)

	high, err := s.Score(context.Background(), effects.Features{
		AmountCents: 600_000, Nights: 1, Method: "crypto",
	})
	require.NoError(t, err)

	assert.Less(t, low, high)
	assert.LessOrEqual(t, high, uint8(100))
}
