package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
)

// BookingRepo creates bookings and answers the sweeper's expiry queries.
// State mutations never go through this repository; they belong to the
// engine and StateRepo.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateWithPayment inserts a booking in PENDING_PAYMENT together with its
// initial PENDING payment in one transaction.  Generated IDs are populated
// on the provided records.
func (r *BookingRepo) CreateWithPayment(ctx context.Context, b *model.Booking, p *model.Payment) error {
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

	const bq = `INSERT INTO bookings
                (customer_id, room_id, room_category, check_in_date, check_out_date, status,
                 total_amount_cents, payment_deadline)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, bq,
		b.CustomerID, b.RoomID, b.RoomCategory, b.CheckInDate, b.CheckOutDate,
		string(model.BookingPendingPayment), b.TotalAmountCents, b.PaymentDeadline,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.Status = model.BookingPendingPayment

	const pq = `INSERT INTO payments (booking_id, status, amount_cents, method) VALUES (?, ?, ?, ?)`
	pres, err := tx.ExecContext(ctx, pq, b.ID, string(model.PaymentPending), p.AmountCents, p.Method)
	if err != nil {
		return err
	}
	pid, err := pres.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(pid)
	p.BookingID = b.ID
	p.Status = model.PaymentPending

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// AddPayment inserts an additional PENDING payment for an existing booking
// (retries and partial payments).
func (r *BookingRepo) AddPayment(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (booking_id, status, amount_cents, method) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, p.BookingID, string(model.PaymentPending), p.AmountCents, p.Method)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.Status = model.PaymentPending
	return nil
}

// ListExpired returns the IDs of bookings still waiting on payment whose
// payment deadline has passed.  Only the states the expire action is legal
// from are considered, so the sweeper never produces invalid transitions.
func (r *BookingRepo) ListExpired(ctx context.Context, now time.Time) ([]uint64, error) {
	const q = `SELECT id FROM bookings
               WHERE status IN (?, ?) AND payment_deadline < ?
               ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q,
		string(model.BookingPendingPayment), string(model.BookingAwaitingProof), now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
