package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/engine"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
)

// StateHandler serves the read-only surface: the aggregate three-domain
// state of a booking and the dry-run transition preview.  Neither endpoint
// holds a lock beyond the snapshot read.
type StateHandler struct {
	Engine *engine.Engine
}

// NewStateHandler constructs a StateHandler.
func NewStateHandler(e *engine.Engine) *StateHandler {
	if e == nil {
		panic("nil engine passed to NewStateHandler")
	}
	return &StateHandler{Engine: e}
}

// GetState handles GET /v1/bookings/:id/state.
func (h *StateHandler) GetState(c echo.Context) error {
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	snap, err := h.Engine.GetState(c.Request().Context(), bookingID)
	if err != nil {
		return transitionError(c, err)
	}
	return c.JSON(http.StatusOK, snapshotBody(snap))
}

// CanTransition handles GET /v1/bookings/:id/can-transition.  Query
// parameters name the domain, action and (for payments) the payment ID.
// The answer combines the transition table with the cross-domain
// validator; nothing is mutated.
func (h *StateHandler) CanTransition(c echo.Context) error {
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	domain := model.Domain(c.QueryParam("domain"))
	if !domain.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown domain"})
	}
	action := model.Action(c.QueryParam("action"))
	if action == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action is required"})
	}
	var paymentID uint64
	if raw := c.QueryParam("payment_id"); raw != "" {
		paymentID, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment id"})
		}
	}
	if domain == model.DomainPayment && paymentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_id is required for the payment domain"})
	}

	req := &engine.Request{
		BookingID: bookingID,
		Domain:    domain,
		PaymentID: paymentID,
		Action:    action,
		Actor:     "system:preview",
	}
	allowed, err := h.Engine.CanTransition(c.Request().Context(), req)
	if err != nil {
		return transitionError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"domain":  domain,
		"action":  action,
		"allowed": allowed,
	})
}
