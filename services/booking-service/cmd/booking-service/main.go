package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cabinbook/cabinbook/libs/config"
	"github.com/cabinbook/cabinbook/libs/db"
	"github.com/cabinbook/cabinbook/libs/httpx"
	"github.com/cabinbook/cabinbook/libs/kafkax"
	otelx "github.com/cabinbook/cabinbook/libs/otel"
	"github.com/cabinbook/cabinbook/libs/runtime"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/batch"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/guard"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/handlers"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/identity"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/outbox"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/overrides"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/pricing"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/slotgrid"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	var (
		store       storage.Store
		readyChecks []runtime.ReadyCheck
	)
	if strings.EqualFold(config.String("STORE", "postgres"), "memory") {
		// Dev mode: in-process store, no outbox delivery.
		logger.Warn("using in-memory store; bookings will not survive a restart")
		store = storage.NewMemory()
	} else {
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			panic(err)
		}
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository(pool)
		store = storage.NewPostgres(pool, outboxRepo)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		brokers := config.String("KAFKA_BROKERS", "")
		if brokers != "" {
			readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		}
		outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go outboxPublisher.Run(ctx)
	}

	overrideStore := overrides.New(store)
	resolver := pricing.NewResolver(store)
	conflictGuard := guard.New(store, overrideStore, logger)
	coordinator := batch.New(conflictGuard, resolver, logger)
	grid := slotgrid.New(store)

	bookingHandler := handlers.NewBookingHandler(coordinator, conflictGuard, store, logger)
	cabinHandler := handlers.NewCabinHandler(store, overrideStore, resolver, logger)
	slotsHandler := handlers.NewSlotsHandler(grid, logger)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/v1/slots", slotsHandler.Grid)
	mux.HandleFunc("/v1/bookings/batch", bookingHandler.Batch)
	mux.HandleFunc("/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/v1/bookings", bookingHandler.List)
	mux.HandleFunc("POST /v1/cabins/closure", cabinHandler.Closure)
	mux.HandleFunc("POST /v1/cabins/price", cabinHandler.Price)
	mux.HandleFunc("POST /v1/cabins", cabinHandler.Create)
	mux.HandleFunc("GET /v1/cabins/{id}", cabinHandler.Get)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithTimeout(30 * time.Second),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitCSV(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         10 * time.Minute,
		}),
		identity.Middleware(jwtSecret),
	}
	middlewares = append(middlewares, rateLimitMiddleware(logger)...)
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// rateLimitMiddleware prefers the Redis fixed-window limiter so replicas
// share one quota; without REDIS_ADDR it falls back to a per-process limiter.
func rateLimitMiddleware(logger *slog.Logger) []httpx.Middleware {
	limit := 120
	if raw := config.String("RATE_LIMIT_PER_MINUTE", ""); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		limiter := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, "booking")
		return []httpx.Middleware{limiter.Middleware(logger, true)}
	}
	return []httpx.Middleware{httpx.NewRateLimiter(limit, time.Minute).Middleware()}
}
