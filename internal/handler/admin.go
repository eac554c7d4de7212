package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/engine"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/intake"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/model"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/repository"
)

// AdminHandler exposes the manual transition entry point and fraud-hold
// management.  Routes using it are guarded by JWT auth and the ADMIN role;
// the acting admin's identity lands in the audit trail.
type AdminHandler struct {
	Engine    *engine.Engine
	StateRepo *repository.StateRepo
}

// NewAdminHandler constructs an AdminHandler with the given dependencies.
func NewAdminHandler(e *engine.Engine, stateRepo *repository.StateRepo) *AdminHandler {
	if e == nil || stateRepo == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Engine: e, StateRepo: stateRepo}
}

// ApplyTransition handles POST /v1/admin/bookings/:id/transitions.  The
// body names the domain and action; override marks a privileged request
// and is recorded in the audit entry.
func (h *AdminHandler) ApplyTransition(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		Domain    string            `json:"domain"`
		Action    string            `json:"action"`
		PaymentID uint64            `json:"payment_id"`
		Override  bool              `json:"override"`
		Metadata  map[string]string `json:"metadata"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	domain := model.Domain(body.Domain)
	if !domain.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown domain", "domain": body.Domain})
	}
	if body.Action == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action is required"})
	}

	req := intake.AdminRequest(bookingID, body.PaymentID, domain, model.Action(body.Action), actor, body.Override, body.Metadata)
	res, err := h.Engine.Apply(c.Request().Context(), req)
	if err != nil {
		return transitionError(c, err)
	}
	out := snapshotBody(res.Snapshot)
	out["applied"] = res.Applied
	return c.JSON(http.StatusOK, out)
}

// ClearFraudHold handles POST /v1/admin/fraud-operations/:id/clear.  It
// lifts a flagged fraud operation so the held payment can be approved on
// the next attempt.
func (h *AdminHandler) ClearFraudHold(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	opID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || opID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid fraud operation id"})
	}
	ctx := c.Request().Context()
	op, err := h.StateRepo.GetFraudOperation(ctx, opID)
	if err != nil {
		return transitionError(c, err)
	}
	if op.Status != model.FraudFlagged {
		return c.JSON(http.StatusConflict, echo.Map{"error": "fraud operation is not flagged"})
	}
	if err := h.Engine.ClearFraudHold(ctx, op.BookingID, opID, actor); err != nil {
		return transitionError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "cleared"})
}
