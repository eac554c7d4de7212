// Package router wires the HTTP surfaces onto the Echo instance: the
// public booking endpoints, the gateway webhook and the admin group.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hotel-booking-lifecycle/internal/config"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/handler"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/middleware"
)

// RegisterRoutes registers the unauthenticated liveness probe.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterBookings registers the booking creation and read endpoints.  The
// read endpoints are cacheable; creation and payment retries are rate
// limited per caller.  When rdb is nil both middlewares degrade to no-ops.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, s *handler.StateHandler, rdb *redis.Client) {
	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	g := e.Group("/v1/bookings")
	g.POST("", b.CreateBooking, rl)
	g.POST("/:id/payments", b.AddPayment, rl)
	g.GET("/:id/state", s.GetState, cache)
	g.GET("/:id/can-transition", s.CanTransition)
}

// RegisterWebhooks registers the payment gateway callback endpoint.  The
// gateway retries aggressively on anything but 2xx, so the endpoint is rate
// limited to protect the engine from redelivery storms.
func RegisterWebhooks(e *echo.Echo, w *handler.WebhookHandler, rdb *redis.Client) {
	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	e.POST("/v1/webhooks/payment-gateway", w.PaymentCallback, rl)
}

// RegisterAdmin registers the manual transition and fraud management
// endpoints under JWT authentication with the ADMIN role.  The acting
// admin's token subject becomes the audit actor.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN"))
	g.POST("/bookings/:id/transitions", a.ApplyTransition)
	g.POST("/fraud-operations/:id/clear", a.ClearFraudHold)
}
