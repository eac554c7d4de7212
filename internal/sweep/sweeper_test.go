package sweep_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/effects"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/engine"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/sweep"
)

// sweepStore backs the engine with one in-memory booking.
type sweepStore struct {
	snap   *engine.Snapshot
	audits []model.AuditEntry
}

func (s *sweepStore) LoadSnapshot(_ context.Context, bookingID uint64) (*engine.Snapshot, error) {
	if s.snap.Booking.ID != bookingID {
		return nil, fmt.Errorf("booking %d not found", bookingID)
	}
	cp := *s.snap
	cp.Payments = append([]model.Payment(nil), s.snap.Payments...)
	cp.Fraud = append([]model.FraudOperation(nil), s.snap.Fraud...)
	if s.snap.Lodging != nil {
		l := *s.snap.Lodging
		cp.Lodging = &l
	}
	return &cp, nil
}

func (s *sweepStore) CommitUnit(_ context.Context, c *engine.Commit) error {
	for _, m := range c.Mutations {
		switch m.Domain {
		case model.DomainBooking:
			s.snap.Booking.Status = model.BookingState(m.ToState)
			s.snap.Booking.Version++
		case model.DomainPayment:
			if p := s.snap.PaymentByID(m.EntityID); p != nil {
				p.Status = model.PaymentState(m.ToState)
				p.Version++
			}
		case model.DomainLodging:
			s.snap.Lodging.Status = model.LodgingState(m.ToState)
			s.snap.Lodging.Version++
		}
	}
	s.audits = append(s.audits, c.Audits...)
	return nil
}

func (s *sweepStore) WriteAudit(_ context.Context, entry model.AuditEntry) error {
	s.audits = append(s.audits, entry)
	return nil
}

func (s *sweepStore) UpdateFraudStatus(context.Context, uint64, model.FraudStatus, string) error {
	return nil
}

func (s *sweepStore) EnqueueEffect(context.Context, model.SideEffect) error { return nil }

// fakeExpiry returns a fixed listing.
type fakeExpiry struct{ ids []uint64 }

func (f *fakeExpiry) ListExpired(context.Context, time.Time) ([]uint64, error) {
	return f.ids, nil
}

// fakeQueue records what the sweeper did with each queued effect.
type fakeQueue struct {
	pending []model.SideEffect
	entries map[string]*model.AuditEntry
	done    []uint64
	failed  []string
}

func (q *fakeQueue) ListPendingEffects(context.Context, int) ([]model.SideEffect, error) {
	return q.pending, nil
}

func (q *fakeQueue) MarkEffectDone(_ context.Context, id uint64) error {
	q.done = append(q.done, id)
	return nil
}

func (q *fakeQueue) RecordEffectFailure(_ context.Context, id uint64, lastError string, _ uint32) error {
	q.failed = append(q.failed, fmt.Sprintf("%d:%s", id, lastError))
	return nil
}

func (q *fakeQueue) GetAuditEntry(_ context.Context, transitionID string) (*model.AuditEntry, error) {
	entry, ok := q.entries[transitionID]
	if !ok {
		return nil, fmt.Errorf("audit entry %s not found", transitionID)
	}
	return entry, nil
}

type recordingLedger struct{ credits map[string]int }

func (l *recordingLedger) CreditLoyalty(_ context.Context, c model.LoyaltyCredit) (bool, error) {
	key := fmt.Sprintf("%d:%s", c.BookingID, c.Trigger)
	if _, ok := l.credits[key]; ok {
		return false, nil
	}
	l.credits[key] = c.Points
	return true, nil
}

type recordingNotifier struct {
	events []map[string]any
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, payload map[string]any) error {
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, payload)
	return nil
}

func overdueBooking() *engine.Snapshot {
	return &engine.Snapshot{
		Booking: model.Booking{
			ID:              1,
			Status:          model.BookingPendingPayment,
			CheckInDate:     time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			CheckOutDate:    time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC),
			PaymentDeadline: time.Now().UTC().Add(-time.Hour),
		},
		Payments: []model.Payment{{ID: 11, BookingID: 1, Status: model.PaymentPending, Method: "card"}},
	}
}

func newSweeper(store *sweepStore, lister sweep.ExpirySource, queue sweep.EffectQueue, notifier *recordingNotifier, ledger *recordingLedger) *sweep.Sweeper {
	d := &effects.Dispatcher{
		Scorer: effects.ScorerFunc(func(context.Context, effects.Features) (uint8, error) {
			return 10, nil
		}),
		Rates:          &effects.StaticRateTable{DefaultRate: 10},
		Ledger:         ledger,
		Notifier:       notifier,
		FraudThreshold: 75,
		ScoreTimeout:   time.Second,
		EffectTimeout:  time.Second,
	}
	return &sweep.Sweeper{
		Engine:      engine.New(store, d, engine.Config{}),
		Bookings:    lister,
		Effects:     queue,
		Dispatcher:  d,
		MaxAttempts: 5,
		BackoffBase: time.Nanosecond,
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	s := &sweep.Sweeper{Schedule: "not a cron expression"}
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse sweep schedule")
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &sweep.Sweeper{} // default schedule; cancellation wins before the first tick
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestSweepExpiredCancelsOverdueBookings(t *testing.T) {
	store := &sweepStore{snap: overdueBooking()}
	notifier := &recordingNotifier{}
	s := newSweeper(store, &fakeExpiry{ids: []uint64{1}}, &fakeQueue{}, notifier, &recordingLedger{credits: map[string]int{}})

	s.RunOnce(context.Background())

	assert.Equal(t, model.BookingCancelled, store.snap.Booking.Status)
	assert.Equal(t, model.PaymentCancelled, store.snap.Payments[0].Status, "expiry cascades to the open payment")
	require.NotEmpty(t, store.audits)
	assert.Equal(t, "system:sweeper", store.audits[0].Actor)
}

func TestSweepSkipsBookingsThatMovedOn(t *testing.T) {
	// The booking paid between the listing and the lock; the expiry is no
	// longer a legal transition and the sweeper moves on.
	snap := overdueBooking()
	snap.Booking.Status = model.BookingConfirmed
	snap.Payments[0].Status = model.PaymentConfirmed
	snap.Lodging = &model.Lodging{ID: 900, BookingID: 1, Status: model.LodgingNotStarted}
	store := &sweepStore{snap: snap}
	s := newSweeper(store, &fakeExpiry{ids: []uint64{1}}, &fakeQueue{}, &recordingNotifier{}, &recordingLedger{credits: map[string]int{}})

	s.RunOnce(context.Background())

	assert.Equal(t, model.BookingConfirmed, store.snap.Booking.Status)
	assert.Equal(t, model.PaymentConfirmed, store.snap.Payments[0].Status)
}

func TestRetryNotificationEffect(t *testing.T) {
	store := &sweepStore{snap: overdueBooking()}
	queue := &fakeQueue{
		pending: []model.SideEffect{{
			ID: 5, TransitionID: "t-1", BookingID: 1,
			Kind: model.EffectNotification, Status: model.EffectPending, Attempts: 1,
		}},
		entries: map[string]*model.AuditEntry{
			"t-1": {
				TransitionID: "t-1", BookingID: 1, Domain: model.DomainBooking,
				Action: model.ActionCancel, OldState: "PENDING_PAYMENT", NewState: "CANCELLED",
			},
		},
	}
	notifier := &recordingNotifier{}
	s := newSweeper(store, &fakeExpiry{}, queue, notifier, &recordingLedger{credits: map[string]int{}})

	s.RunOnce(context.Background())

	assert.Equal(t, []uint64{5}, queue.done)
	assert.Empty(t, queue.failed)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "t-1", notifier.events[0]["transition_id"], "payload is rebuilt from the audit entry")
	assert.Equal(t, "CANCELLED", notifier.events[0]["to"])
}

func TestRetryNotificationFailureRecorded(t *testing.T) {
	store := &sweepStore{snap: overdueBooking()}
	queue := &fakeQueue{
		pending: []model.SideEffect{{
			ID: 6, TransitionID: "t-2", BookingID: 1,
			Kind: model.EffectNotification, Status: model.EffectPending, Attempts: 2,
		}},
		entries: map[string]*model.AuditEntry{
			"t-2": {TransitionID: "t-2", BookingID: 1, Domain: model.DomainBooking, Action: model.ActionCancel},
		},
	}
	notifier := &recordingNotifier{err: errors.New("broker down")}
	s := newSweeper(store, &fakeExpiry{}, queue, notifier, &recordingLedger{credits: map[string]int{}})

	s.RunOnce(context.Background())

	assert.Empty(t, queue.done)
	require.Len(t, queue.failed, 1)
	assert.Contains(t, queue.failed[0], "broker down")
}

func TestRetryLoyaltyEffect(t *testing.T) {
	snap := overdueBooking()
	snap.Booking.Status = model.BookingConfirmed
	snap.Payments[0].Status = model.PaymentConfirmed
	snap.Lodging = &model.Lodging{ID: 900, BookingID: 1, Status: model.LodgingCheckedOut}
	store := &sweepStore{snap: snap}
	queue := &fakeQueue{
		pending: []model.SideEffect{{
			ID: 7, TransitionID: "t-3", BookingID: 1,
			Kind: model.EffectLoyaltyAccrual, Status: model.EffectPending, Attempts: 1,
		}},
	}
	ledger := &recordingLedger{credits: map[string]int{}}
	s := newSweeper(store, &fakeExpiry{}, queue, &recordingNotifier{}, ledger)

	s.RunOnce(context.Background())

	assert.Equal(t, []uint64{7}, queue.done)
	// Two nights at the default rate of 10 points per night.
	assert.Equal(t, 20, ledger.credits["1:stay_completed"])
}

func TestRetryLoyaltyIneligibleRecordsFailure(t *testing.T) {
	// The stay never completed; the accrual cannot be replayed.
	snap := overdueBooking()
	snap.Booking.Status = model.BookingConfirmed
	snap.Payments[0].Status = model.PaymentConfirmed
	snap.Lodging = &model.Lodging{ID: 900, BookingID: 1, Status: model.LodgingNotStarted}
	store := &sweepStore{snap: snap}
	queue := &fakeQueue{
		pending: []model.SideEffect{{
			ID: 8, TransitionID: "t-4", BookingID: 1,
			Kind: model.EffectLoyaltyAccrual, Status: model.EffectPending, Attempts: 3,
		}},
	}
	ledger := &recordingLedger{credits: map[string]int{}}
	s := newSweeper(store, &fakeExpiry{}, queue, &recordingNotifier{}, ledger)

	s.RunOnce(context.Background())

	assert.Empty(t, queue.done)
	require.Len(t, queue.failed, 1)
	assert.Contains(t, queue.failed[0], "no longer eligible")
	assert.Empty(t, ledger.credits)
}
