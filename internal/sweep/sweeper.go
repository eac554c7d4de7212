// Package sweep runs the scheduled background work: expiring bookings whose
// payment deadline has passed and retrying side effects that failed after
// their transition committed.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LerianStudio/lib-uncommons/v2/uncommons/backoff"
	"github.com/LerianStudio/lib-uncommons/v2/uncommons/cron"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/effects"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/engine"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/intake"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
)

// DefaultSchedule runs the sweep every five minutes.
const DefaultSchedule = "*/5 * * * *"

// ExpirySource lists bookings whose payment deadline has passed.
// Implemented by repository.BookingRepo.
type ExpirySource interface {
	ListExpired(ctx context.Context, now time.Time) ([]uint64, error)
}

// EffectQueue is the persisted retry queue for side effects, plus the
// audit lookup needed to rebuild a notification payload.  Implemented by
// repository.StateRepo.
type EffectQueue interface {
	ListPendingEffects(ctx context.Context, limit int) ([]model.SideEffect, error)
	MarkEffectDone(ctx context.Context, id uint64) error
	RecordEffectFailure(ctx context.Context, id uint64, lastError string, maxAttempts uint32) error
	GetAuditEntry(ctx context.Context, transitionID string) (*model.AuditEntry, error)
}

// Sweeper drives both background duties on one cron schedule.  Expiry goes
// through the engine like any other transition, so it is validated, audited
// and cascaded the same way; effect retries replay the queued work the
// engine could not finish inline.
type Sweeper struct {
	Engine      *engine.Engine
	Bookings    ExpirySource
	Effects     EffectQueue
	Dispatcher  *effects.Dispatcher
	Schedule    string // cron expression, DefaultSchedule when empty
	EffectBatch int    // max queued effects retried per run
	MaxAttempts uint32 // attempts before an effect is parked as FAILED

	// BackoffBase scales the per-effect retry delay; one second when zero.
	BackoffBase time.Duration
}

// Run blocks until the context is cancelled, waking on the cron schedule.
// A failed run is logged and the loop keeps going; the next tick retries.
func (s *Sweeper) Run(ctx context.Context) error {
	expr := s.Schedule
	if expr == "" {
		expr = DefaultSchedule
	}
	sched, err := cron.Parse(expr)
	if err != nil {
		return fmt.Errorf("parse sweep schedule %q: %w", expr, err)
	}

	log.Printf("sweeper: started with schedule %q", expr)
	for {
		next, err := sched.Next(time.Now())
		if err != nil {
			return fmt.Errorf("compute next sweep run: %w", err)
		}
		if err := backoff.WaitContext(ctx, time.Until(next)); err != nil {
			return err
		}
		s.RunOnce(ctx)
	}
}

// RunOnce performs one sweep cycle: expirations first, then effect retries.
func (s *Sweeper) RunOnce(ctx context.Context) {
	s.sweepExpired(ctx)
	s.retryEffects(ctx)
}

// sweepExpired expires every booking still waiting on payment past its
// deadline.  Each expiry is an ordinary engine request under the booking's
// lock; a booking that moved on since the listing simply fails the
// transition check and is skipped.
func (s *Sweeper) sweepExpired(ctx context.Context) {
	ids, err := s.Bookings.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("sweeper: list expired bookings failed: %v", err)
		return
	}
	for _, id := range ids {
		if _, err := s.Engine.Apply(ctx, intake.ExpireRequest(id)); err != nil {
			var invalid *engine.InvalidTransitionError
			if errors.As(err, &invalid) {
				// Raced with a payment or cancellation between the
				// listing and the lock.  Nothing to do.
				continue
			}
			log.Printf("sweeper: expire booking %d failed: %v", id, err)
			continue
		}
		log.Printf("sweeper: expired booking %d", id)
	}
}

// retryEffects replays queued side effects oldest first.  Each retry waits
// a jittered delay scaled to the effect's attempt count so a struggling
// collaborator is not hammered by the whole batch at once.
func (s *Sweeper) retryEffects(ctx context.Context) {
	batch := s.EffectBatch
	if batch <= 0 {
		batch = 50
	}
	pending, err := s.Effects.ListPendingEffects(ctx, batch)
	if err != nil {
		log.Printf("sweeper: list pending effects failed: %v", err)
		return
	}
	base := s.BackoffBase
	if base == 0 {
		base = time.Second
	}
	for _, eff := range pending {
		delay := backoff.ExponentialWithJitter(base, int(eff.Attempts))
		if err := backoff.WaitContext(ctx, delay); err != nil {
			return
		}
		if err := s.retryOne(ctx, eff); err != nil {
			log.Printf("sweeper: retry of %s effect %d failed: %v", eff.Kind, eff.ID, err)
			if rerr := s.Effects.RecordEffectFailure(ctx, eff.ID, err.Error(), s.MaxAttempts); rerr != nil {
				log.Printf("sweeper: record effect failure %d: %v", eff.ID, rerr)
			}
			continue
		}
		if err := s.Effects.MarkEffectDone(ctx, eff.ID); err != nil {
			log.Printf("sweeper: mark effect %d done: %v", eff.ID, err)
		}
	}
}

func (s *Sweeper) retryOne(ctx context.Context, eff model.SideEffect) error {
	switch eff.Kind {
	case model.EffectLoyaltyAccrual:
		return s.retryLoyalty(ctx, eff)
	case model.EffectNotification:
		return s.retryNotification(ctx, eff)
	}
	return fmt.Errorf("unknown effect kind %q", eff.Kind)
}

// retryLoyalty re-runs the accrual against the current state.  The ledger's
// unique key makes this safe to repeat: a credit that slipped through on an
// earlier attempt reports as already credited and the effect closes.
func (s *Sweeper) retryLoyalty(ctx context.Context, eff model.SideEffect) error {
	snap, err := s.Engine.GetState(ctx, eff.BookingID)
	if err != nil {
		return err
	}
	if snap.Lodging == nil || snap.Lodging.Status != model.LodgingCheckedOut || !snap.HasConfirmedPayment() {
		return fmt.Errorf("booking %d no longer eligible for accrual", eff.BookingID)
	}
	points, credited, err := s.Dispatcher.AccruePoints(ctx, &snap.Booking)
	if err != nil {
		return err
	}
	if credited {
		log.Printf("sweeper: credited %d loyalty points to booking %d", points, eff.BookingID)
	}
	return nil
}

// retryNotification rebuilds the event payload from the transition's audit
// entry and publishes it again.
func (s *Sweeper) retryNotification(ctx context.Context, eff model.SideEffect) error {
	entry, err := s.Effects.GetAuditEntry(ctx, eff.TransitionID)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"transition_id": entry.TransitionID,
		"booking_id":    entry.BookingID,
		"domain":        string(entry.Domain),
		"action":        string(entry.Action),
		"from":          entry.OldState,
		"to":            entry.NewState,
	}
	return s.Dispatcher.Publish(ctx, engine.EventStateChanged, payload)
}
