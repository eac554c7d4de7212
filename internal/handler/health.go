package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health answers load-balancer probes.  It reports only process liveness;
// the database and broker surface their own failures through the
// transition endpoints.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
