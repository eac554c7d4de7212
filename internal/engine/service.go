package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/effects"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/state"
)

// ErrPaymentNotFound is returned when a payment-domain request names a
// payment that does not belong to the booking.
var ErrPaymentNotFound = errors.New("payment not found on booking")

// EventStateChanged is the notification event type published after every
// successfully applied transition.
const EventStateChanged = "booking.state-changed"

// actionClearFraudHold is the pseudo-action recorded in the audit trail
// when an admin lifts a fraud hold.  It is not a state transition.
const actionClearFraudHold = model.Action("clear_fraud_hold")

// Request describes one transition to apply.  PaymentID is required for
// the payment domain and ignored elsewhere.  Override marks a privileged
// request; the validator relaxes only its overridable rules and the audit
// entry records the flag.
type Request struct {
	BookingID uint64
	Domain    model.Domain
	PaymentID uint64
	Action    model.Action
	Actor     string
	Override  bool
	Metadata  map[string]string

	// AcceptDuplicate marks a request from a source that redelivers, like
	// a payment gateway retrying a callback.  When the payment already
	// sits in the terminal state the action produces, Apply answers with
	// an empty success instead of an invalid-transition error.  The check
	// runs under the booking lock, so concurrent redeliveries cannot race
	// each other into a conflict.
	AcceptDuplicate bool
}

func (r *Request) validate() error {
	if r.BookingID == 0 {
		return fmt.Errorf("booking id is required")
	}
	if !r.Domain.Valid() {
		return fmt.Errorf("unknown domain %q", r.Domain)
	}
	if r.Action == "" {
		return fmt.Errorf("action is required")
	}
	if r.Domain == model.DomainPayment && r.PaymentID == 0 {
		return fmt.Errorf("payment id is required for payment transitions")
	}
	if r.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	return nil
}

// AppliedTransition is one state change that was committed, either the
// requested transition or a cascade it triggered.
type AppliedTransition struct {
	TransitionID string       `json:"transition_id"`
	Domain       model.Domain `json:"domain"`
	EntityID     uint64       `json:"entity_id"`
	Action       model.Action `json:"action"`
	From         string       `json:"from"`
	To           string       `json:"to"`
}

// Result reports the outcome of an Apply call: the final consistent state
// of all three domains and every transition that was committed, requested
// first and cascades in order.
type Result struct {
	Snapshot *Snapshot
	Applied  []AppliedTransition
}

// Config is the engine's process-wide tuning, built once at startup.
type Config struct {
	MaxCascadeDepth int
}

// Engine is the transition service.  All domain state mutations in the
// system go through Apply; no other code path writes domain state.
type Engine struct {
	store      Store
	bookings   *state.Machine[model.BookingState]
	payments   *state.Machine[model.PaymentState]
	lodgings   *state.Machine[model.LodgingState]
	validator  *Validator
	dispatcher *effects.Dispatcher
	locks      *lockTable
	maxCascade int
}

// New builds the engine around a store and a side-effect dispatcher.  The
// transition tables are constructed here and immutable afterwards.
func New(store Store, dispatcher *effects.Dispatcher, cfg Config) *Engine {
	if cfg.MaxCascadeDepth <= 0 {
		cfg.MaxCascadeDepth = 4
	}
	return &Engine{
		store:      store,
		bookings:   state.NewBookingMachine(),
		payments:   state.NewPaymentMachine(),
		lodgings:   state.NewLodgingMachine(),
		validator:  NewValidator(),
		dispatcher: dispatcher,
		locks:      newLockTable(),
		maxCascade: cfg.MaxCascadeDepth,
	}
}

// Apply runs one transition end to end: per-booking lock, consistent
// snapshot, FSM legality check, cross-domain validation, atomic commit
// with audit, synchronous cascades, side-effect dispatch.  A version
// conflict on commit is retried once with a fresh snapshot before being
// surfaced as ErrConcurrentModification.
func (e *Engine) Apply(ctx context.Context, req *Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	release := e.locks.Acquire(req.BookingID)
	defer release()

	res, err := e.applyLocked(ctx, req)
	if errors.Is(err, ErrConcurrentModification) {
		log.Printf("engine: concurrent modification on booking %d, retrying once", req.BookingID)
		res, err = e.applyLocked(ctx, req)
	}
	return res, err
}

func (e *Engine) applyLocked(ctx context.Context, req *Request) (*Result, error) {
	snap, err := e.store.LoadSnapshot(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	if req.AcceptDuplicate {
		if res, ok := e.redeliveryNoOp(snap, req); ok {
			return res, nil
		}
	}

	commit := &Commit{BookingID: req.BookingID}
	var applied []AppliedTransition
	if err := e.stage(ctx, snap, req, 0, commit, &applied); err != nil {
		e.auditRejection(ctx, req, snap, err)
		return nil, err
	}

	if err := e.store.CommitUnit(ctx, commit); err != nil {
		e.auditRejection(ctx, req, snap, err)
		return nil, err
	}

	e.dispatchEffects(ctx, snap, applied)
	return &Result{Snapshot: snap, Applied: applied}, nil
}

// redeliveryNoOp recognizes a redelivered payment request whose terminal
// outcome already happened: the payment is in a terminal state and the
// requested action is one that produces exactly that state.  Nothing is
// staged, mutated or audited; the caller gets the current snapshot and an
// empty applied list.
func (e *Engine) redeliveryNoOp(snap *Snapshot, req *Request) (*Result, bool) {
	if req.Domain != model.DomainPayment {
		return nil, false
	}
	p := snap.PaymentByID(req.PaymentID)
	if p == nil || !e.payments.IsTerminal(p.Status) || !e.payments.Produces(req.Action, p.Status) {
		return nil, false
	}
	return &Result{Snapshot: snap}, true
}

// stage validates one transition against the in-memory snapshot, appends
// its mutation and audit entry to the commit, applies it to the snapshot
// so later cascades see the new state, and recurses into the cascades it
// triggers.  Nothing is persisted here.
func (e *Engine) stage(ctx context.Context, snap *Snapshot, req *Request, depth int, commit *Commit, applied *[]AppliedTransition) error {
	if depth > e.maxCascade {
		return ErrCascadeLimit
	}
	switch req.Domain {
	case model.DomainBooking:
		return e.stageBooking(ctx, snap, req, depth, commit, applied)
	case model.DomainPayment:
		return e.stagePayment(ctx, snap, req, depth, commit, applied)
	case model.DomainLodging:
		return e.stageLodging(snap, req, commit, applied)
	}
	return fmt.Errorf("unknown domain %q", req.Domain)
}

func (e *Engine) stageBooking(ctx context.Context, snap *Snapshot, req *Request, depth int, commit *Commit, applied *[]AppliedTransition) error {
	from := snap.Booking.Status
	to, ok := e.bookings.Next(from, req.Action)
	if !ok {
		return &InvalidTransitionError{Domain: req.Domain, From: string(from), Action: req.Action}
	}
	if err := e.validator.Validate(snap, req).Consume(); err != nil {
		return err
	}

	tid := uuid.NewString()
	commit.Mutations = append(commit.Mutations, Mutation{
		Domain:      model.DomainBooking,
		EntityID:    snap.Booking.ID,
		FromState:   string(from),
		ToState:     string(to),
		FromVersion: snap.Booking.Version,
		Actor:       req.Actor,
	})
	commit.Audits = append(commit.Audits, e.auditEntry(tid, req, string(from), string(to), ""))
	snap.Booking.Status = to
	snap.Booking.Version++
	*applied = append(*applied, AppliedTransition{
		TransitionID: tid, Domain: model.DomainBooking, EntityID: snap.Booking.ID,
		Action: req.Action, From: string(from), To: string(to),
	})

	// Cascades out of the commercial domain.
	if to == model.BookingConfirmed {
		e.ensureLodging(snap, commit)
	}
	if to == model.BookingCancelled || to == model.BookingNoShow {
		// A dead booking takes its open payments with it.
		for i := range snap.Payments {
			p := &snap.Payments[i]
			if e.payments.IsTerminal(p.Status) {
				continue
			}
			cascade := &Request{
				BookingID: req.BookingID,
				Domain:    model.DomainPayment,
				PaymentID: p.ID,
				Action:    model.ActionCancel,
				Actor:     req.Actor,
				Metadata:  cascadeMeta(tid),
			}
			if err := e.stage(ctx, snap, cascade, depth+1, commit, applied); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) stagePayment(ctx context.Context, snap *Snapshot, req *Request, depth int, commit *Commit, applied *[]AppliedTransition) error {
	p := snap.PaymentByID(req.PaymentID)
	if p == nil {
		return fmt.Errorf("%w: payment %d, booking %d", ErrPaymentNotFound, req.PaymentID, req.BookingID)
	}
	from := p.Status
	to, ok := e.payments.Next(from, req.Action)
	if !ok {
		return &InvalidTransitionError{Domain: req.Domain, From: string(from), Action: req.Action}
	}
	if err := e.validator.Validate(snap, req).Consume(); err != nil {
		return err
	}

	tid := uuid.NewString()
	reason := ""
	if req.Action == model.ActionApprove || req.Action == model.ActionBeginReview {
		op := e.dispatcher.ScorePayment(ctx, &snap.Booking, p)
		commit.FraudOps = append(commit.FraudOps, op)
		e.rememberFraudOp(snap, op)
		if op.Status == model.FraudFlagged && req.Action == model.ActionApprove {
			// Downgrade: the payment goes to manual review instead of
			// confirming, and stays held until an admin clears the flag.
			to = model.PaymentInReview
			reason = ReasonFraudHold
			log.Printf("engine: payment %d flagged by fraud policy, downgrading approve to review", p.ID)
		}
	}

	changed := to != from
	if changed {
		commit.Mutations = append(commit.Mutations, Mutation{
			Domain:      model.DomainPayment,
			EntityID:    p.ID,
			FromState:   string(from),
			ToState:     string(to),
			FromVersion: p.Version,
			Actor:       req.Actor,
		})
		p.Version++
	}
	commit.Audits = append(commit.Audits, e.auditEntry(tid, req, string(from), string(to), reason))
	p.Status = to
	if !changed {
		// A downgrade that lands on the state the payment is already in
		// audits the held attempt but moved nothing: no applied
		// transition, no cascades, no notification.
		return nil
	}
	*applied = append(*applied, AppliedTransition{
		TransitionID: tid, Domain: model.DomainPayment, EntityID: p.ID,
		Action: req.Action, From: string(from), To: string(to),
	})

	// Cascades that keep the commercial state in step with the payment:
	// a confirmed payment advances a not-yet-confirmed booking, and the
	// proof/review stages mirror onto a booking still waiting for them.
	var follow model.Action
	switch {
	case to == model.PaymentConfirmed &&
		snap.Booking.Status != model.BookingConfirmed &&
		!e.bookings.IsTerminal(snap.Booking.Status):
		follow = model.ActionConfirm
	case to == model.PaymentAwaitingProof && snap.Booking.Status == model.BookingPendingPayment:
		follow = model.ActionPaymentSubmitted
	case to == model.PaymentInReview && snap.Booking.Status == model.BookingAwaitingProof:
		follow = model.ActionBeginReview
	}
	if follow != "" {
		cascade := &Request{
			BookingID: req.BookingID,
			Domain:    model.DomainBooking,
			Action:    follow,
			Actor:     req.Actor,
			Metadata:  cascadeMeta(tid),
		}
		if err := e.stage(ctx, snap, cascade, depth+1, commit, applied); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) stageLodging(snap *Snapshot, req *Request, commit *Commit, applied *[]AppliedTransition) error {
	if snap.Lodging == nil {
		return &DeniedError{Reason: ReasonLodgingMissing}
	}
	from := snap.Lodging.Status
	to, ok := e.lodgings.Next(from, req.Action)
	if !ok {
		return &InvalidTransitionError{Domain: req.Domain, From: string(from), Action: req.Action}
	}
	if err := e.validator.Validate(snap, req).Consume(); err != nil {
		return err
	}

	tid := uuid.NewString()
	commit.Mutations = append(commit.Mutations, Mutation{
		Domain:      model.DomainLodging,
		EntityID:    snap.Lodging.ID,
		FromState:   string(from),
		ToState:     string(to),
		FromVersion: snap.Lodging.Version,
		Actor:       req.Actor,
	})
	commit.Audits = append(commit.Audits, e.auditEntry(tid, req, string(from), string(to), ""))
	snap.Lodging.Status = to
	snap.Lodging.Version++
	*applied = append(*applied, AppliedTransition{
		TransitionID: tid, Domain: model.DomainLodging, EntityID: snap.Lodging.ID,
		Action: req.Action, From: string(from), To: string(to),
	})
	return nil
}

// ensureLodging stages the idempotent creation of the lodging record when
// the booking confirms.  Re-confirming never creates a duplicate: the
// store inserts with a unique booking key and the snapshot check skips the
// mutation when the record already exists.
func (e *Engine) ensureLodging(snap *Snapshot, commit *Commit) {
	if snap.Lodging != nil {
		return
	}
	commit.EnsureLodging = true
	snap.Lodging = &model.Lodging{
		BookingID:  snap.Booking.ID,
		Status:     model.LodgingNotStarted,
		GuestCount: 1,
	}
}

// rememberFraudOp mirrors a staged fraud operation into the snapshot with
// a synthetic ID so later validation in the same unit of work sees it as
// the latest.
func (e *Engine) rememberFraudOp(snap *Snapshot, op model.FraudOperation) {
	for i := range snap.Fraud {
		if snap.Fraud[i].ID >= op.ID {
			op.ID = snap.Fraud[i].ID + 1
		}
	}
	snap.Fraud = append(snap.Fraud, op)
}

func (e *Engine) auditEntry(tid string, req *Request, from, to, reason string) model.AuditEntry {
	return model.AuditEntry{
		TransitionID: tid,
		BookingID:    req.BookingID,
		Domain:       req.Domain,
		Action:       req.Action,
		Actor:        req.Actor,
		OldState:     from,
		NewState:     to,
		Override:     req.Override,
		Outcome:      model.AuditOutcomeApplied,
		Reason:       reason,
		Metadata:     req.Metadata,
		CreatedAt:    time.Now().UTC(),
	}
}

// auditRejection leaves a forensic trace for denied and invalid requests.
// Best effort: a failure to audit is logged, not surfaced.
func (e *Engine) auditRejection(ctx context.Context, req *Request, snap *Snapshot, cause error) {
	entry := model.AuditEntry{
		TransitionID: uuid.NewString(),
		BookingID:    req.BookingID,
		Domain:       req.Domain,
		Action:       req.Action,
		Actor:        req.Actor,
		OldState:     e.currentState(snap, req),
		Override:     req.Override,
		Outcome:      model.AuditOutcomeFailed,
		Reason:       cause.Error(),
		Metadata:     req.Metadata,
		CreatedAt:    time.Now().UTC(),
	}
	var denied *DeniedError
	if errors.As(cause, &denied) {
		entry.Outcome = model.AuditOutcomeDenied
		entry.Reason = denied.Reason
	}
	if err := e.store.WriteAudit(ctx, entry); err != nil {
		log.Printf("engine: failed to audit rejection for booking %d: %v", req.BookingID, err)
	}
}

func (e *Engine) currentState(snap *Snapshot, req *Request) string {
	switch req.Domain {
	case model.DomainBooking:
		return string(snap.Booking.Status)
	case model.DomainPayment:
		if p := snap.PaymentByID(req.PaymentID); p != nil {
			return string(p.Status)
		}
	case model.DomainLodging:
		if snap.Lodging != nil {
			return string(snap.Lodging.Status)
		}
	}
	return ""
}

// dispatchEffects runs the post-commit side effects for every applied
// transition.  The state change is already durable; a slow or failing
// collaborator queues the effect for retry and never unwinds the commit.
func (e *Engine) dispatchEffects(ctx context.Context, snap *Snapshot, applied []AppliedTransition) {
	for _, tr := range applied {
		if tr.Domain == model.DomainLodging && tr.To == string(model.LodgingCheckedOut) && snap.HasConfirmedPayment() {
			points, credited, err := e.dispatcher.AccruePoints(ctx, &snap.Booking)
			switch {
			case err != nil:
				log.Printf("engine: loyalty accrual failed for booking %d: %v", snap.Booking.ID, err)
				e.queueEffect(ctx, snap.Booking.ID, tr, model.EffectLoyaltyAccrual, err)
			case credited:
				log.Printf("engine: credited %d loyalty points to booking %d", points, snap.Booking.ID)
			}
		}

		payload := map[string]any{
			"transition_id": tr.TransitionID,
			"booking_id":    snap.Booking.ID,
			"domain":        string(tr.Domain),
			"action":        string(tr.Action),
			"from":          tr.From,
			"to":            tr.To,
		}
		if err := e.dispatcher.Publish(ctx, EventStateChanged, payload); err != nil {
			log.Printf("engine: notification publish failed for transition %s: %v", tr.TransitionID, err)
			e.queueEffect(ctx, snap.Booking.ID, tr, model.EffectNotification, err)
		}
	}
}

func (e *Engine) queueEffect(ctx context.Context, bookingID uint64, tr AppliedTransition, kind string, cause error) {
	msg := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) {
		msg = ErrDependencyTimeout.Error()
	}
	eff := model.SideEffect{
		TransitionID: tr.TransitionID,
		BookingID:    bookingID,
		Kind:         kind,
		Status:       model.EffectPending,
		Attempts:     1,
		LastError:    msg,
	}
	if err := e.store.EnqueueEffect(ctx, eff); err != nil {
		log.Printf("engine: failed to queue %s retry for transition %s: %v", kind, tr.TransitionID, err)
	}
}

// GetState returns the aggregate state of all three domains from one
// consistent snapshot.  Read only; no lock is held beyond the read.
func (e *Engine) GetState(ctx context.Context, bookingID uint64) (*Snapshot, error) {
	return e.store.LoadSnapshot(ctx, bookingID)
}

// CanTransition is the dry-run preview: it reports whether the action
// would pass both the transition table and the cross-domain validator
// against the current snapshot.  Nothing is mutated or locked.
func (e *Engine) CanTransition(ctx context.Context, req *Request) (bool, error) {
	if err := req.validate(); err != nil {
		return false, err
	}
	snap, err := e.store.LoadSnapshot(ctx, req.BookingID)
	if err != nil {
		return false, err
	}
	var legal bool
	switch req.Domain {
	case model.DomainBooking:
		legal = e.bookings.CanTransition(snap.Booking.Status, req.Action)
	case model.DomainPayment:
		p := snap.PaymentByID(req.PaymentID)
		legal = p != nil && e.payments.CanTransition(p.Status, req.Action)
	case model.DomainLodging:
		legal = snap.Lodging != nil && e.lodgings.CanTransition(snap.Lodging.Status, req.Action)
	}
	if !legal {
		return false, nil
	}
	return e.validator.Validate(snap, req).Allowed, nil
}

// ClearFraudHold lifts a FLAGGED fraud operation so the held payment can
// be approved again.  The clearance is audited with the acting admin.
func (e *Engine) ClearFraudHold(ctx context.Context, bookingID, opID uint64, actor string) error {
	release := e.locks.Acquire(bookingID)
	defer release()

	if err := e.store.UpdateFraudStatus(ctx, opID, model.FraudCleared, "cleared by "+actor); err != nil {
		return err
	}
	entry := model.AuditEntry{
		TransitionID: uuid.NewString(),
		BookingID:    bookingID,
		Domain:       model.DomainPayment,
		Action:       actionClearFraudHold,
		Actor:        actor,
		Outcome:      model.AuditOutcomeApplied,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.WriteAudit(ctx, entry); err != nil {
		log.Printf("engine: failed to audit fraud clearance for booking %d: %v", bookingID, err)
	}
	return nil
}

func cascadeMeta(parent string) map[string]string {
	return map[string]string{"cascade_of": parent}
}
