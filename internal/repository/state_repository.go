package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/engine"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
)

// StateRepo is the MySQL implementation of the engine's store contract and
// of the loyalty ledger.  All timestamp columns are stored in UTC.  Every
// state-bearing row carries a version column; commits guard their updates
// with it so a stale snapshot can never overwrite a newer state.
type StateRepo struct {
	db *sql.DB
}

// NewStateRepo returns a new StateRepo bound to the given database.
func NewStateRepo(db *sql.DB) *StateRepo { return &StateRepo{db: db} }

// DB exposes the underlying handle for callers that manage their own
// transactions.
func (r *StateRepo) DB() *sql.DB { return r.db }

// LoadSnapshot reads the booking, its payments, its lodging record and its
// fraud operations inside one transaction, so the engine validates against
// a single consistent view of all three domains.  Returns
// ErrBookingNotFound when the booking does not exist.
func (r *StateRepo) LoadSnapshot(ctx context.Context, bookingID uint64) (*engine.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	snap := &engine.Snapshot{}

	const bq = `SELECT id, customer_id, room_id, room_category, check_in_date, check_out_date,
                       status, total_amount_cents, payment_deadline, version, created_at, updated_at
                FROM bookings WHERE id = ?`
	var status string
	err = tx.QueryRowContext(ctx, bq, bookingID).Scan(
		&snap.Booking.ID, &snap.Booking.CustomerID, &snap.Booking.RoomID, &snap.Booking.RoomCategory,
		&snap.Booking.CheckInDate, &snap.Booking.CheckOutDate,
		&status, &snap.Booking.TotalAmountCents, &snap.Booking.PaymentDeadline,
		&snap.Booking.Version, &snap.Booking.CreatedAt, &snap.Booking.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	snap.Booking.Status = model.BookingState(status)

	const pq = `SELECT id, booking_id, status, amount_cents, method, risk_score, proof_ref, gateway_ref,
                       version, created_at, updated_at
                FROM payments WHERE booking_id = ? ORDER BY id`
	rows, err := tx.QueryContext(ctx, pq, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p model.Payment
		var pStatus string
		var risk sql.NullInt64
		var proof, gateway sql.NullString
		if err := rows.Scan(
			&p.ID, &p.BookingID, &pStatus, &p.AmountCents, &p.Method, &risk, &proof, &gateway,
			&p.Version, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.Status = model.PaymentState(pStatus)
		if risk.Valid {
			score := uint8(risk.Int64)
			p.RiskScore = &score
		}
		if proof.Valid {
			v := proof.String
			p.ProofRef = &v
		}
		if gateway.Valid {
			v := gateway.String
			p.GatewayRef = &v
		}
		snap.Payments = append(snap.Payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const lq = `SELECT id, booking_id, status, checked_in_at, checked_in_by, checked_out_at, checked_out_by,
                       guest_count, version, created_at, updated_at
                FROM lodgings WHERE booking_id = ?`
	var l model.Lodging
	var lStatus string
	var inAt, outAt sql.NullTime
	var inBy, outBy sql.NullString
	err = tx.QueryRowContext(ctx, lq, bookingID).Scan(
		&l.ID, &l.BookingID, &lStatus, &inAt, &inBy, &outAt, &outBy,
		&l.GuestCount, &l.Version, &l.CreatedAt, &l.UpdatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Lodging does not exist until the booking confirms.
	case err != nil:
		return nil, err
	default:
		l.Status = model.LodgingState(lStatus)
		if inAt.Valid {
			t := inAt.Time
			l.CheckedInAt = &t
		}
		if inBy.Valid {
			v := inBy.String
			l.CheckedInBy = &v
		}
		if outAt.Valid {
			t := outAt.Time
			l.CheckedOutAt = &t
		}
		if outBy.Valid {
			v := outBy.String
			l.CheckedOutBy = &v
		}
		snap.Lodging = &l
	}

	const fq = `SELECT id, booking_id, payment_id, risk_score, status, reason, created_at, updated_at
                FROM fraud_operations WHERE booking_id = ? ORDER BY id`
	frows, err := tx.QueryContext(ctx, fq, bookingID)
	if err != nil {
		return nil, err
	}
	defer frows.Close()
	for frows.Next() {
		var op model.FraudOperation
		var fStatus string
		if err := frows.Scan(&op.ID, &op.BookingID, &op.PaymentID, &op.RiskScore, &fStatus, &op.Reason,
			&op.CreatedAt, &op.UpdatedAt); err != nil {
			return nil, err
		}
		op.Status = model.FraudStatus(fStatus)
		snap.Fraud = append(snap.Fraud, op)
	}
	if err := frows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return snap, nil
}

// CommitUnit applies one engine unit of work atomically: every staged
// state mutation, the lodging creation if the booking just confirmed,
// fraud operations and audit entries.  Each mutation's UPDATE is guarded
// by the version the snapshot was loaded at; when any guard misses, the
// whole transaction rolls back with engine.ErrConcurrentModification.
func (r *StateRepo) CommitUnit(ctx context.Context, c *engine.Commit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, m := range c.Mutations {
		if err := applyMutationTx(ctx, tx, m); err != nil {
			return err
		}
	}

	if c.EnsureLodging {
		// booking_id is unique, so re-confirming is a no-op here.
		const q = `INSERT IGNORE INTO lodgings (booking_id, status, guest_count) VALUES (?, ?, 1)`
		if _, err := tx.ExecContext(ctx, q, c.BookingID, string(model.LodgingNotStarted)); err != nil {
			return err
		}
	}

	for _, op := range c.FraudOps {
		const q = `INSERT INTO fraud_operations (booking_id, payment_id, risk_score, status, reason)
                   VALUES (?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, q, op.BookingID, op.PaymentID, op.RiskScore, string(op.Status), op.Reason); err != nil {
			return err
		}
		// Mirror the score onto the payment row for reporting queries.
		const uq = `UPDATE payments SET risk_score = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, uq, op.RiskScore, op.PaymentID); err != nil {
			return err
		}
	}

	for _, entry := range c.Audits {
		if err := insertAuditTx(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func applyMutationTx(ctx context.Context, tx *sql.Tx, m engine.Mutation) error {
	var res sql.Result
	var err error
	switch m.Domain {
	case model.DomainBooking:
		const q = `UPDATE bookings SET status = ?, version = version + 1, updated_at = UTC_TIMESTAMP()
                   WHERE id = ? AND version = ?`
		res, err = tx.ExecContext(ctx, q, m.ToState, m.EntityID, m.FromVersion)
	case model.DomainPayment:
		const q = `UPDATE payments SET status = ?, version = version + 1, updated_at = UTC_TIMESTAMP()
                   WHERE id = ? AND version = ?`
		res, err = tx.ExecContext(ctx, q, m.ToState, m.EntityID, m.FromVersion)
	case model.DomainLodging:
		switch model.LodgingState(m.ToState) {
		case model.LodgingCheckedIn:
			const q = `UPDATE lodgings SET status = ?, checked_in_at = UTC_TIMESTAMP(), checked_in_by = ?,
                              version = version + 1, updated_at = UTC_TIMESTAMP()
                       WHERE id = ? AND version = ?`
			res, err = tx.ExecContext(ctx, q, m.ToState, m.Actor, m.EntityID, m.FromVersion)
		case model.LodgingCheckedOut:
			const q = `UPDATE lodgings SET status = ?, checked_out_at = UTC_TIMESTAMP(), checked_out_by = ?,
                              version = version + 1, updated_at = UTC_TIMESTAMP()
                       WHERE id = ? AND version = ?`
			res, err = tx.ExecContext(ctx, q, m.ToState, m.Actor, m.EntityID, m.FromVersion)
		default:
			const q = `UPDATE lodgings SET status = ?, version = version + 1, updated_at = UTC_TIMESTAMP()
                       WHERE id = ? AND version = ?`
			res, err = tx.ExecContext(ctx, q, m.ToState, m.EntityID, m.FromVersion)
		}
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrConcurrentModification
	}
	return nil
}

func insertAuditTx(ctx context.Context, tx *sql.Tx, entry model.AuditEntry) error {
	meta, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}
	const q = `INSERT INTO audit_entries
               (transition_id, booking_id, domain, action, actor, old_state, new_state, override, outcome, reason, metadata)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		entry.TransitionID, entry.BookingID, string(entry.Domain), string(entry.Action), entry.Actor,
		entry.OldState, entry.NewState, entry.Override, entry.Outcome, entry.Reason, meta,
	)
	return err
}

// WriteAudit records a single audit entry outside a commit, used for
// denied and failed transition attempts.
func (r *StateRepo) WriteAudit(ctx context.Context, entry model.AuditEntry) error {
	meta, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}
	const q = `INSERT INTO audit_entries
               (transition_id, booking_id, domain, action, actor, old_state, new_state, override, outcome, reason, metadata)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q,
		entry.TransitionID, entry.BookingID, string(entry.Domain), string(entry.Action), entry.Actor,
		entry.OldState, entry.NewState, entry.Override, entry.Outcome, entry.Reason, meta,
	)
	return err
}

// GetAuditEntry returns the audit entry of one transition attempt.  The
// sweeper uses it to rebuild notification payloads when retrying queued
// side effects.
func (r *StateRepo) GetAuditEntry(ctx context.Context, transitionID string) (*model.AuditEntry, error) {
	const q = `SELECT id, transition_id, booking_id, domain, action, actor, old_state, new_state,
                      override, outcome, reason, created_at
               FROM audit_entries WHERE transition_id = ? ORDER BY id LIMIT 1`
	var entry model.AuditEntry
	var domain, action string
	err := r.db.QueryRowContext(ctx, q, transitionID).Scan(
		&entry.ID, &entry.TransitionID, &entry.BookingID, &domain, &action, &entry.Actor,
		&entry.OldState, &entry.NewState, &entry.Override, &entry.Outcome, &entry.Reason, &entry.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAuditEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	entry.Domain = model.Domain(domain)
	entry.Action = model.Action(action)
	return &entry, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// UpdateFraudStatus moves a fraud operation to a new review status.
func (r *StateRepo) UpdateFraudStatus(ctx context.Context, opID uint64, status model.FraudStatus, reason string) error {
	const q = `UPDATE fraud_operations SET status = ?, reason = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, string(status), reason, opID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFraudOperationNotFound
	}
	return nil
}

// GetFraudOperation returns a fraud operation by ID.
func (r *StateRepo) GetFraudOperation(ctx context.Context, opID uint64) (*model.FraudOperation, error) {
	const q = `SELECT id, booking_id, payment_id, risk_score, status, reason, created_at, updated_at
               FROM fraud_operations WHERE id = ?`
	var op model.FraudOperation
	var status string
	err := r.db.QueryRowContext(ctx, q, opID).Scan(
		&op.ID, &op.BookingID, &op.PaymentID, &op.RiskScore, &status, &op.Reason, &op.CreatedAt, &op.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFraudOperationNotFound
	}
	if err != nil {
		return nil, err
	}
	op.Status = model.FraudStatus(status)
	return &op, nil
}

// CreditLoyalty appends one credit to the loyalty ledger.  The ledger has
// a unique key on (booking_id, trigger); INSERT IGNORE makes a repeated
// credit a no-op and the false return tells the caller the points were
// already credited by an earlier attempt.
func (r *StateRepo) CreditLoyalty(ctx context.Context, credit model.LoyaltyCredit) (bool, error) {
	const q = `INSERT IGNORE INTO loyalty_credits (booking_id, trigger_name, points) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, credit.BookingID, credit.Trigger, credit.Points)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// EnqueueEffect records a side effect whose dispatch failed after its
// transition committed, for retry by the sweeper.
func (r *StateRepo) EnqueueEffect(ctx context.Context, eff model.SideEffect) error {
	const q = `INSERT INTO side_effects (transition_id, booking_id, kind, status, attempts, last_error)
               VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		eff.TransitionID, eff.BookingID, eff.Kind, eff.Status, eff.Attempts, eff.LastError)
	return err
}

func scanEffect(rows *sql.Rows) (model.SideEffect, error) {
	var eff model.SideEffect
	err := rows.Scan(&eff.ID, &eff.TransitionID, &eff.BookingID, &eff.Kind, &eff.Status,
		&eff.Attempts, &eff.LastError, &eff.CreatedAt, &eff.UpdatedAt)
	return eff, err
}

// ListPendingEffects returns up to limit queued side effects, oldest
// first, for the sweeper to retry.
func (r *StateRepo) ListPendingEffects(ctx context.Context, limit int) ([]model.SideEffect, error) {
	const q = `SELECT id, transition_id, booking_id, kind, status, attempts, last_error, created_at, updated_at
               FROM side_effects WHERE status = ? ORDER BY id LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, model.EffectPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var effects []model.SideEffect
	for rows.Next() {
		eff, err := scanEffect(rows)
		if err != nil {
			return nil, err
		}
		effects = append(effects, eff)
	}
	return effects, rows.Err()
}

// MarkEffectDone closes a queued side effect after a successful retry.
func (r *StateRepo) MarkEffectDone(ctx context.Context, id uint64) error {
	const q = `UPDATE side_effects SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, model.EffectDone, id)
	return err
}

// RecordEffectFailure bumps the attempt counter after a failed retry and
// gives up (FAILED) once maxAttempts is reached.
func (r *StateRepo) RecordEffectFailure(ctx context.Context, id uint64, lastError string, maxAttempts uint32) error {
	const q = `UPDATE side_effects
               SET attempts = attempts + 1,
                   last_error = ?,
                   status = IF(attempts + 1 >= ?, ?, status),
                   updated_at = UTC_TIMESTAMP()
               WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, lastError, maxAttempts, model.EffectFailed, id)
	return err
}
