package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/engine"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/repository"
)

// getActor extracts the authenticated actor from the context, where the
// JWT middleware stored the token's subject claim.  The claim type depends
// on how the token was issued, so both strings and numbers are accepted.
func getActor(c echo.Context) (string, error) {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", errors.New("missing actor identity")
}

// transitionError maps engine and repository errors onto HTTP responses.
// Invalid transitions and rule denials are client errors carrying the
// machine-readable reason; concurrency that survived the engine's retry
// surfaces as a conflict the caller may retry.
func transitionError(c echo.Context, err error) error {
	var invalid *engine.InvalidTransitionError
	if errors.As(err, &invalid) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":  "invalid transition",
			"domain": invalid.Domain,
			"from":   invalid.From,
			"action": invalid.Action,
		})
	}
	var denied *engine.DeniedError
	if errors.As(err, &denied) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":  "transition denied",
			"reason": denied.Reason,
		})
	}
	switch {
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrFraudOperationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "fraud operation not found"})
	case errors.Is(err, engine.ErrPaymentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
	case errors.Is(err, engine.ErrConcurrentModification):
		return c.JSON(http.StatusConflict, echo.Map{"error": "concurrent modification, retry"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// snapshotBody shapes the aggregate three-domain state for responses.
func snapshotBody(snap *engine.Snapshot) echo.Map {
	payments := make([]echo.Map, 0, len(snap.Payments))
	for _, p := range snap.Payments {
		payments = append(payments, echo.Map{
			"id":           p.ID,
			"status":       p.Status,
			"amount_cents": p.AmountCents,
			"method":       p.Method,
		})
	}
	body := echo.Map{
		"booking": echo.Map{
			"id":     snap.Booking.ID,
			"status": snap.Booking.Status,
		},
		"payments": payments,
	}
	if snap.Lodging != nil {
		body["lodging"] = echo.Map{
			"id":     snap.Lodging.ID,
			"status": snap.Lodging.Status,
		}
	}
	return body
}
