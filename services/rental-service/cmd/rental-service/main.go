package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/billboardrent/libs/auth"
	"github.com/md-rashed-zaman/billboardrent/libs/config"
	"github.com/md-rashed-zaman/billboardrent/libs/db"
	"github.com/md-rashed-zaman/billboardrent/libs/httpx"
	"github.com/md-rashed-zaman/billboardrent/libs/kafkax"
	otelx "github.com/md-rashed-zaman/billboardrent/libs/otel"
	"github.com/md-rashed-zaman/billboardrent/libs/runtime"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/biweek"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/calendar"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/handlers"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/outbox"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/period"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/proposals"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/reconcile"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/rentals"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage/memory"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage/postgres"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// backend bundles what one store driver provides.
type backend struct {
	store     storage.Store
	calendar  storage.CalendarRepository
	directory storage.Directory
	outbox    outbox.Source
	checks    []runtime.ReadyCheck
	close     func()
}

func openBackend(ctx context.Context, logger *slog.Logger) (backend, error) {
	driver := strings.ToLower(strings.TrimSpace(config.String("STORE_DRIVER", "postgres")))
	if driver == "memory" {
		logger.Warn("using in-memory store; state is lost on restart")
		mem := memory.New()
		return backend{store: mem, calendar: mem, directory: mem, outbox: mem, close: func() {}}, nil
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return backend{}, err
	}
	pool, err := db.Open(ctx, dbURL, db.DefaultPoolOptions())
	if err != nil {
		return backend{}, err
	}
	outboxRepo := outbox.NewRepository(pool)
	pg := postgres.NewStore(pool, outboxRepo)
	if config.Bool("APPLY_SCHEMA", true) {
		if err := pg.ApplySchema(ctx); err != nil {
			pool.Close()
			return backend{}, err
		}
	}
	return backend{
		store:     pg,
		calendar:  pg,
		directory: pg,
		outbox:    outboxRepo,
		checks:    []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}},
		close:     pool.Close,
	}, nil
}

func main() {
	service := config.String("SERVICE_NAME", "rental-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	be, err := openBackend(ctx, logger)
	if err != nil {
		logger.Error("store init failed", "err", err)
		panic(err)
	}
	defer be.close()

	cacheCfg, err := calendar.CacheConfigFromEnv()
	if err != nil {
		panic(err)
	}
	calendarRepo, closeCache := calendar.WithRedisCache(be.calendar, cacheCfg, logger)
	defer closeCache()

	minYear, err := config.Int("CALENDAR_MIN_YEAR", biweek.DefaultYearBounds.Min)
	if err != nil {
		panic(err)
	}
	maxYear, err := config.Int("CALENDAR_MAX_YEAR", biweek.DefaultYearBounds.Max)
	if err != nil {
		panic(err)
	}
	txTimeout, err := config.Duration("RENTAL_TX_TIMEOUT", 5*time.Second)
	if err != nil {
		panic(err)
	}
	maxAttempts, err := config.Int("RENTAL_TX_MAX_ATTEMPTS", 3)
	if err != nil {
		panic(err)
	}
	pollEvery, err := config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		panic(err)
	}
	reconcileEvery, err := config.Duration("RECONCILE_INTERVAL", time.Hour)
	if err != nil {
		panic(err)
	}

	calendarService := calendar.NewService(calendarRepo, logger, biweek.YearBounds{Min: minYear, Max: maxYear})
	resolver := period.NewResolver(calendarService)
	engine := rentals.NewEngine(be.store, logger, rentals.Config{
		TxTimeout:   txTimeout,
		MaxAttempts: maxAttempts,
	})
	synchronizer := proposals.NewSynchronizer(engine, logger)

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(be.outbox, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: pollEvery,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	worker := reconcile.NewWorker(engine, logger, reconcile.WorkerConfig{Interval: reconcileEvery})
	go worker.Run(ctx)

	checks := append(be.checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	mux := runtime.NewBaseMuxWithReady(checks...)
	api := http.NewServeMux()
	handlers.New(calendarService, resolver, engine, synchronizer, be.directory, logger).Register(api)
	var apiHandler http.Handler = api
	if secret := strings.TrimSpace(config.String("JWT_SECRET", "")); secret != "" {
		apiHandler = auth.RequireTenant(secret)(api)
		logger.Info("bearer token auth enabled")
	}
	mux.Handle("/api/", apiHandler)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "rental")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := startGrpcServer(ctx, logger); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	if err := runtime.ServeHTTP(ctx, logger, srv, 10*time.Second); err != nil {
		stop()
	}
}
