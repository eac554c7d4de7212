package main // Entry point package

import (
	"context" // Context for background workers
	"log"     // Logging library

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/hotel-booking-lifecycle/internal/config"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/database"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/effects"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/engine"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/handler"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/queue"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/repository"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/router"
	queuepub "github.com/iliyamo/hotel-booking-lifecycle/internal/service"
	"github.com/iliyamo/hotel-booking-lifecycle/internal/sweep"
)

func main() {
	_ = godotenv.Load() // Load .env if present; real env vars win

	cfg := config.Load() // Load environment config

	// Open MySQL and fail fast when the database is unreachable.
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	// Redis backs rate limiting and response caching.  A nil client is
	// tolerated: both middlewares degrade to pass-through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and caching disabled")
	}

	stateRepo := repository.NewStateRepo(db)
	bookingRepo := repository.NewBookingRepo(db)

	// Side-effect dispatcher: fraud scoring, loyalty accrual, notifications.
	dispatcher := &effects.Dispatcher{
		Scorer: effects.NewHeuristicScorer(),
		Rates: &effects.StaticRateTable{
			PerNight: map[string]map[string]int{
				"standard": {effects.SeasonLow: 10, effects.SeasonHigh: 15},
				"deluxe":   {effects.SeasonLow: 20, effects.SeasonHigh: 30},
				"suite":    {effects.SeasonLow: 40, effects.SeasonHigh: 60},
			},
			DefaultRate: 10,
		},
		Ledger:         stateRepo,
		Notifier:       queuepub.NewPublisher(),
		FraudThreshold: uint8(cfg.FraudThreshold),
		ScoreTimeout:   cfg.ScoreTimeout,
		EffectTimeout:  cfg.EffectTimeout,
	}

	eng := engine.New(stateRepo, dispatcher, engine.Config{MaxCascadeDepth: cfg.MaxCascadeDepth})

	e := echo.New()          // Create Echo instance
	router.RegisterRoutes(e) // Health check
	router.RegisterBookings(e, handler.NewBookingHandler(bookingRepo), handler.NewStateHandler(eng), rdb)
	router.RegisterWebhooks(e, handler.NewWebhookHandler(eng), rdb)
	router.RegisterAdmin(e, handler.NewAdminHandler(eng, stateRepo), cfg.JWTSecret)

	ctx := context.Background()

	// Background consumer writes lifecycle events to logs/notifications.log.
	go func() {
		if err := queue.StartLifecycleConsumer(ctx); err != nil {
			log.Printf("lifecycle consumer stopped: %v", err)
		}
	}()

	// Background sweeper expires overdue bookings and retries queued effects.
	sweeper := &sweep.Sweeper{
		Engine:      eng,
		Bookings:    bookingRepo,
		Effects:     stateRepo,
		Dispatcher:  dispatcher,
		Schedule:    cfg.SweepSchedule,
		MaxAttempts: uint32(cfg.EffectAttempts),
	}
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			log.Printf("sweeper stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
