package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-reservation/internal/analytics"
	analytics_api "ms-reservation/internal/analytics/api"
	"ms-reservation/internal/auth"
	berthdb "ms-reservation/internal/berths/db"
	berthcache "ms-reservation/internal/berths/redis"
	"ms-reservation/internal/booking"
	"ms-reservation/internal/booking/booking_api"
	bookingdb "ms-reservation/internal/booking/db"
	bookingkafka "ms-reservation/internal/booking/kafka"
	qr "ms-reservation/internal/booking/qr_generator"
	"ms-reservation/internal/config"
	"ms-reservation/internal/database"
	"ms-reservation/internal/database/migrations"
	"ms-reservation/internal/kafka"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/metrics"
	"ms-reservation/internal/middleware"
	"ms-reservation/internal/sse"
	"ms-reservation/internal/utils"
	"ms-reservation/internal/validation"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	bunDB, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Redis only backs the availability cache and rate limiter.
		log.Warn("REDIS", fmt.Sprintf("Redis not reachable at %s, continuing degraded: %v", cfg.Redis.Addr, err))
	} else {
		log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, redisClient.Options().DB))
	}

	return bunDB, redisClient
}

// prepareInventory applies migrations and seeds the train and its berths on
// first start. Returns the train id bookings are admitted against.
func prepareInventory(ctx context.Context, bunDB *bun.DB, cfg *config.Config, log *logger.Logger) int64 {
	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: cfg.Database.MigrationsDir,
		AutoMigrate:   cfg.Database.AutoMigrate,
	}, log)
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("MIGRATE", fmt.Sprintf("Migration failed: %v", err))
	}

	berths := berthdb.New(bunDB)
	train, err := berths.EnsureTrain(ctx, cfg.Inventory.TrainName, cfg.Inventory.TrainNumber)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to ensure train: %v", err))
	}
	seeded, err := berths.Seed(ctx, cfg.Inventory)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to seed berths: %v", err))
	}
	if seeded > 0 {
		log.LogDatabase("SEED", "berths", fmt.Sprintf("Seeded %d berths for train %s", seeded, train.Number))
	}
	return train.ID
}

const AdminRole = "ADMIN"

type routerDeps struct {
	cfg       *config.Config
	log       *logger.Logger
	redis     *redis.Client
	metrics   *metrics.Metrics
	handler   *booking_api.Handler
	analytics *analytics_api.Handler
	dbHealth  func(ctx context.Context) error
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(d.log, d.metrics))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "redis": "connected", "database": "connected"}
		code := http.StatusOK
		if err := d.redis.Ping(r.Context()).Err(); err != nil {
			status["redis"] = "disconnected"
		}
		if d.dbHealth != nil {
			if err := d.dbHealth(r.Context()); err != nil {
				status["database"] = "disconnected"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		utils.WriteJSON(w, code, status)
	})
	r.Handle("/metrics", d.metrics.Handler())

	guards := booking_api.Guards{
		Idempotency: middleware.Idempotency(d.redis, d.cfg.Redis.IdempotencyTTL, d.log),
	}
	if secret := d.cfg.Auth.JWTSecret; secret != "" {
		guards.Cancel = chainAuth(secret, d.log)
		guards.Scanner = chainAuth(secret, d.log, booking_api.ScannerRole)
		d.log.Info("AUTH", "JWT auth applied to cancel and QR verification routes")
	} else {
		d.log.Warn("AUTH", "JWT_SECRET not set, cancel route is unauthenticated")
	}

	r.Route("/api/v1", func(r chi.Router) {
		if d.cfg.RateLimit.Enabled {
			r.Use(middleware.RateLimit(d.redis, d.cfg.RateLimit.Requests, d.cfg.RateLimit.Window, d.log))
		}
		r.Mount("/tickets", d.handler.Routes(guards))

		r.Group(func(r chi.Router) {
			if secret := d.cfg.Auth.JWTSecret; secret != "" {
				r.Use(chainAuth(secret, d.log, AdminRole))
			}
			d.analytics.RegisterRoutes(r)
		})
	})
	d.log.Info("ROUTER", "Ticket routes registered under /api/v1/tickets, analytics under /api/v1/analytics")

	return r
}

func chainAuth(secret string, log *logger.Logger, roles ...string) func(http.Handler) http.Handler {
	authenticate := auth.Authenticate(secret, log)
	authorize := auth.Authorize(log, roles...)
	return func(next http.Handler) http.Handler {
		return authenticate(authorize(next))
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println(".env file not found, using environment variables")
	}
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Dir, cfg.Log.Service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("APP", "Starting Reservation Service initialization")
	ctx := context.Background()

	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	trainID := prepareInventory(ctx, bunDB, cfg, log)

	m := metrics.New()
	service := booking.NewBookingService(
		bookingdb.New(bunDB, cfg.Database.LockTimeout),
		berthcache.NewCache(redisClient, cfg.Redis.CacheTTL),
		nil,
		validation.New(),
		log,
		booking.Options{
			TrainID:           trainID,
			BaseFare:          cfg.Booking.BaseFare,
			ConfirmedCapacity: cfg.Inventory.ConfirmedCapacity(),
			RACCapacity:       cfg.Booking.RACCapacity,
			WaitingCapacity:   cfg.Booking.WaitingCapacity,
			MaxAttempts:       cfg.Booking.MaxAttempts,
			RetryInitial:      cfg.Booking.RetryInitial,
			RetryMax:          cfg.Booking.RetryMax,
			PNRAttempts:       cfg.Booking.PNRAttempts,
		},
	)
	service.Metrics = m

	emitter := sse.NewTicketEventEmitter()
	publishers := booking.Publishers{emitter}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Kafka.Brokers))

		topics := []string{cfg.Kafka.Topics.TicketBooked, cfg.Kafka.Topics.TicketCancelled, cfg.Kafka.Topics.TicketPromoted}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		publishers = append(publishers, bookingkafka.NewPublisher(producer, cfg.Kafka.Topics, log))
	} else {
		log.Info("KAFKA", "Kafka disabled, ticket events go to SSE clients only")
	}
	service.Events = publishers

	handler := booking_api.NewHandler(service, qr.NewQRGenerator(cfg.Booking.QRSecret), log)
	handler.Events = emitter
	r := newRouter(routerDeps{
		cfg:       cfg,
		log:       log,
		redis:     redisClient,
		metrics:   m,
		handler:   handler,
		analytics: analytics_api.NewHandler(analytics.NewService(bunDB), trainID, log),
		dbHealth:  bunDB.PingContext,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Reservation Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Reservation Service shutdown complete")
	}
}
