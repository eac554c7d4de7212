package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/engine"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/intake"
)

// WebhookHandler receives payment gateway callbacks and turns them into
// payment transitions.  Gateways retry deliveries, so the handler answers
// a callback for an already-reached terminal state with 200 instead of an
// error.
type WebhookHandler struct {
	Engine *engine.Engine
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(e *engine.Engine) *WebhookHandler {
	if e == nil {
		panic("nil engine passed to NewWebhookHandler")
	}
	return &WebhookHandler{Engine: e}
}

// PaymentCallback handles POST /v1/webhooks/payment-gateway.  The body
// carries the gateway's view of one payment; the status is mapped onto a
// payment action and applied with the system gateway actor.
func (h *WebhookHandler) PaymentCallback(c echo.Context) error {
	var body struct {
		BookingID  uint64 `json:"booking_id"`
		PaymentID  uint64 `json:"payment_id"`
		Status     string `json:"status"`
		GatewayRef string `json:"gateway_ref"`
		EventID    string `json:"event_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.BookingID == 0 || body.PaymentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id and payment_id are required"})
	}
	action, ok := intake.ActionForGatewayStatus(body.Status)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown gateway status", "status": body.Status})
	}

	req := intake.GatewayRequest(body.BookingID, body.PaymentID, action, map[string]string{
		"gateway_ref": body.GatewayRef,
		"event_id":    body.EventID,
		"status":      body.Status,
	})
	res, err := h.Engine.Apply(c.Request().Context(), req)
	if err != nil {
		return transitionError(c, err)
	}
	if len(res.Applied) == 0 {
		// Redelivered callback for an outcome the payment already
		// reached; the engine decided that under the booking lock.
		return c.JSON(http.StatusOK, echo.Map{"status": "already applied"})
	}
	out := snapshotBody(res.Snapshot)
	out["applied"] = res.Applied
	return c.JSON(http.StatusOK, out)
}
