package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/arafat-hossain/barberbook/internal/catalog"
	"github.com/arafat-hossain/barberbook/internal/consumer"
	"github.com/arafat-hossain/barberbook/internal/handlers"
	"github.com/arafat-hossain/barberbook/internal/inbox"
	"github.com/arafat-hossain/barberbook/internal/outbox"
	"github.com/arafat-hossain/barberbook/internal/scheduling"
	"github.com/arafat-hossain/barberbook/internal/storage"
	"github.com/arafat-hossain/barberbook/libs/auth"
	"github.com/arafat-hossain/barberbook/libs/config"
	"github.com/arafat-hossain/barberbook/libs/db"
	"github.com/arafat-hossain/barberbook/libs/httpx"
	"github.com/arafat-hossain/barberbook/libs/kafkax"
	otelx "github.com/arafat-hossain/barberbook/libs/otel"
	"github.com/arafat-hossain/barberbook/libs/runtime"
	"github.com/arafat-hossain/barberbook/migrations"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8080")
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

	var (
		ledger       scheduling.Ledger
		availability scheduling.AvailabilityStore
		readyChecks  []runtime.ReadyCheck
	)

	// STORE_BACKEND=memory runs the whole engine without Postgres, Kafka or
	// Redis; used for local development and demos.
	if config.String("STORE_BACKEND", "postgres") == "memory" {
		store := storage.NewMemoryStore()
		ledger, availability = store, store
		logger.Warn("running with in-memory storage; all state is lost on restart")
	} else {
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			panic(err)
		}

		if config.Bool("RUN_MIGRATIONS", true) {
			migrateDB, err := sql.Open("pgx", dbURL)
			if err != nil {
				logger.Error("migration connection failed", "err", err)
				panic(err)
			}
			if err := migrations.Up(migrateDB); err != nil {
				logger.Error("migrations failed", "err", err)
				panic(err)
			}
			_ = migrateDB.Close()
			logger.Info("migrations applied")
		}

		pool, err := db.Open(ctx, dbURL, db.Options{
			MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository(pool)
		ledger = storage.NewPostgresLedger(pool, outboxRepo)
		availRepo := storage.NewAvailabilityRepository(pool)
		availability = availRepo

		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		if addr := config.String("REDIS_ADDR", ""); addr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: addr})
			ttl := time.Duration(config.Int("AVAILABILITY_CACHE_TTL_SECONDS", 300)) * time.Second
			availability = storage.NewCachedAvailability(availRepo, rdb, ttl, logger)
		}

		brokers := config.String("KAFKA_BROKERS", "")
		outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go outboxPublisher.Run(ctx)

		if brokers != "" {
			readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})

			inboxRepo := inbox.NewRepository(pool)
			providerConsumer := consumer.New(logger, inboxRepo, consumer.Config{
				Brokers: brokers,
				GroupID: config.String("KAFKA_GROUP_ID", service),
				Topic:   config.String("KAFKA_PROVIDER_TOPIC", consumer.TopicProviderUpdated),
			}, consumer.ProviderUpdatedHandler(availRepo, logger))
			go providerConsumer.Run(ctx)
		}
	}

	var prices scheduling.PriceResolver
	pricing, err := catalog.NewPricing(config.String("CATALOG_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("catalog pricing init failed; bookings will carry zero totals", "err", err)
	} else if pricing != nil {
		prices = pricing
	}

	svc := scheduling.NewService(ledger, availability, prices, logger)
	schedHandler := handlers.NewSchedulingHandler(svc, logger)

	api := http.NewServeMux()
	schedHandler.Register(api)
	var apiHandler http.Handler = api

	// With AUTH_JWT_SECRET (or JWKS_URL) set the service verifies tokens
	// itself; unset, it trusts the gateway's X-User-Id/X-Role headers.
	jwtSecret := config.String("AUTH_JWT_SECRET", "")
	jwksURL := config.String("JWKS_URL", "")
	if jwtSecret != "" || jwksURL != "" {
		var jwksClient *auth.JWKSClient
		if jwksURL != "" {
			ttl := time.Duration(config.Int("JWKS_CACHE_SECONDS", 300)) * time.Second
			jwksClient = auth.NewJWKSClient(jwksURL, ttl)
		}
		apiHandler = requireAuth(apiHandler, jwtSecret, jwksClient)
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/api/", apiHandler)
	// Slot browsing stays public so customers can see availability before
	// signing in.
	mux.HandleFunc("GET /api/v1/providers/{id}/slots", schedHandler.Slots)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		corsMiddleware(),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
		rateLimitMiddleware(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
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

func corsMiddleware() httpx.Middleware {
	origins := config.String("CORS_ALLOWED_ORIGINS", "")
	if origins == "" {
		return nil
	}
	return httpx.WithCORS(httpx.CORSPolicy{
		AllowedOrigins: strings.Split(origins, ","),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id", "Idempotency-Key"},
		MaxAge:         10 * time.Minute,
	})
}

// rateLimitMiddleware prefers a Redis-backed limiter shared across replicas
// and falls back to the in-process one. Nil disables limiting entirely.
func rateLimitMiddleware(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if limit <= 0 {
		return nil
	}
	if addr := config.String("RATE_LIMIT_REDIS_ADDR", config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		return httpx.NewRedisRateLimiter(rdb, limit, time.Minute, "scheduling").Middleware(logger, true)
	}
	return httpx.NewRateLimiter(limit, time.Minute).Middleware()
}
