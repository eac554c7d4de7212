package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/effects"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/engine"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/handler"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
)

// stubStore holds one booking in memory for handler tests.  Commits are
// applied without version bookkeeping beyond what the engine stages.
type stubStore struct {
	snap   *engine.Snapshot
	audits []model.AuditEntry
}

func (s *stubStore) LoadSnapshot(_ context.Context, bookingID uint64) (*engine.Snapshot, error) {
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

func (s *stubStore) CommitUnit(_ context.Context, c *engine.Commit) error {
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
	if c.EnsureLodging && s.snap.Lodging == nil {
		s.snap.Lodging = &model.Lodging{ID: 900, BookingID: c.BookingID, Status: model.LodgingNotStarted}
	}
	for i, op := range c.FraudOps {
		op.ID = uint64(len(s.snap.Fraud) + i + 1)
		s.snap.Fraud = append(s.snap.Fraud, op)
	}
	s.audits = append(s.audits, c.Audits...)
	return nil
}

func (s *stubStore) WriteAudit(_ context.Context, entry model.AuditEntry) error {
	s.audits = append(s.audits, entry)
	return nil
}

func (s *stubStore) UpdateFraudStatus(context.Context, uint64, model.FraudStatus, string) error {
	return nil
}

func (s *stubStore) EnqueueEffect(context.Context, model.SideEffect) error { return nil }

func newWebhookTest(t *testing.T, paymentStatus model.PaymentState) (*stubStore, *handler.WebhookHandler) {
	t.Helper()
	store := &stubStore{snap: &engine.Snapshot{
		Booking: model.Booking{
			ID:           1,
			Status:       model.BookingPendingPayment,
			CheckInDate:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			CheckOutDate: time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC),
		},
		Payments: []model.Payment{{ID: 11, BookingID: 1, Status: paymentStatus, Method: "card"}},
	}}
	d := &effects.Dispatcher{
		Scorer: effects.ScorerFunc(func(context.Context, effects.Features) (uint8, error) {
			return 10, nil
		}),
		Rates:          &effects.StaticRateTable{DefaultRate: 10},
		FraudThreshold: 75,
		ScoreTimeout:   time.Second,
		EffectTimeout:  time.Second,
	}
	return store, handler.NewWebhookHandler(engine.New(store, d, engine.Config{}))
}

func postCallback(t *testing.T, h *handler.WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment-gateway", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.PaymentCallback(e.NewContext(req, rec)))
	return rec
}

func TestPaymentCallbackAppliesTransition(t *testing.T) {
	store, h := newWebhookTest(t, model.PaymentPending)

	rec := postCallback(t, h, `{"booking_id":1,"payment_id":11,"status":"approved","gateway_ref":"gw-1","event_id":"evt-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PaymentConfirmed, store.snap.Payments[0].Status)
	assert.Equal(t, model.BookingConfirmed, store.snap.Booking.Status)
	assert.Contains(t, rec.Body.String(), `"applied"`)

	// The gateway payload lands in the audit metadata.
	require.NotEmpty(t, store.audits)
	assert.Equal(t, "evt-1", store.audits[0].Metadata["event_id"])
}

func TestPaymentCallbackDuplicateDelivery(t *testing.T) {
	store, h := newWebhookTest(t, model.PaymentConfirmed)
	auditsBefore := len(store.audits)

	rec := postCallback(t, h, `{"booking_id":1,"payment_id":11,"status":"approved","event_id":"evt-2"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already applied")
	assert.Len(t, store.audits, auditsBefore, "a redelivery is a no-op under the booking lock")
}

func TestPaymentCallbackUnknownStatus(t *testing.T) {
	_, h := newWebhookTest(t, model.PaymentPending)
	rec := postCallback(t, h, `{"booking_id":1,"payment_id":11,"status":"chargeback"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentCallbackInvalidTransitionConflicts(t *testing.T) {
	_, h := newWebhookTest(t, model.PaymentRefused)
	rec := postCallback(t, h, `{"booking_id":1,"payment_id":11,"status":"approved"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
