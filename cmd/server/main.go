// Package main is the entrypoint for the reportgate API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/reportgate/internal/ai"
	"github.com/kiranshivaraju/reportgate/internal/api"
	"github.com/kiranshivaraju/reportgate/internal/api/handler"
	mw "github.com/kiranshivaraju/reportgate/internal/api/middleware"
	"github.com/kiranshivaraju/reportgate/internal/api/response"
	"github.com/kiranshivaraju/reportgate/internal/billing"
	"github.com/kiranshivaraju/reportgate/internal/cache"
	"github.com/kiranshivaraju/reportgate/internal/config"
	"github.com/kiranshivaraju/reportgate/internal/events"
	"github.com/kiranshivaraju/reportgate/internal/gateway"
	"github.com/kiranshivaraju/reportgate/internal/identity"
	"github.com/kiranshivaraju/reportgate/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(newLogger(cfg.Logging, os.Stdout))
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Event publisher
	publisher, err := newPublisher(cfg.Events)
	if err != nil {
		return fmt.Errorf("create event publisher: %w", err)
	}
	defer publisher.Close()

	// 6. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name(), "model", aiProvider.Model())

	// 7. Create store, gateway client and services
	pgStore := store.NewPostgresStore(pool, store.WithTxMaxRetries(cfg.Database.TxMaxRetries))
	razorpay := gateway.NewRazorpayClient(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.Timeout)

	billingSvc := billing.NewService(billing.Config{
		WebhookSecret:   cfg.Gateway.WebhookSecret,
		PriceMinorUnits: cfg.Billing.PriceMinorUnits,
		Currency:        cfg.Billing.Currency,
		TxTimeout:       cfg.Database.TxTimeout,
		GatewayTimeout:  cfg.Gateway.Timeout,
	}, pgStore, razorpay, redisCache, publisher)
	generateSvc := ai.NewGenerateService(aiProvider, cfg.AI.InferenceTimeout)

	// 8. Build router with dependencies
	var jwtOpts []identity.JWTOption
	if cfg.Auth.JWTIssuer != "" {
		jwtOpts = append(jwtOpts, identity.WithIssuer(cfg.Auth.JWTIssuer))
	}
	if cfg.Auth.JWTAudience != "" {
		jwtOpts = append(jwtOpts, identity.WithAudience(cfg.Auth.JWTAudience))
	}
	verifier := identity.NewJWTVerifier(cfg.Auth.JWTSecret, jwtOpts...)

	if cfg.Auth.AdminAPIKeyHash == "" {
		slog.Warn("ADMIN_API_KEY_HASH not set, admin routes are disabled")
	}

	deps := api.Dependencies{
		Auth:      mw.NewAuth(verifier, cfg.Auth.AdminAPIKeyHash),
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMinute),

		HealthHandler:          healthHandler(pgStore, redisCache),
		CreateJobHandler:       handler.NewCreateJobHandler(billingSvc),
		GetJobHandler:          handler.NewGetJobHandler(billingSvc),
		CreateOrderHandler:     handler.NewCreateOrderHandler(billingSvc),
		GenerateHandler:        handler.NewGenerateHandler(generateSvc),
		RazorpayWebhookHandler: handler.NewRazorpayWebhookHandler(billingSvc),
		ListPaymentsHandler:    handler.NewListPaymentsHandler(billingSvc),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.InferenceTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newPublisher connects to the broker when one is configured. Without
// AMQP_URL unlock events are dropped.
func newPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		slog.Info("AMQP_URL not set, job events disabled")
		return events.NoopPublisher{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	slog.Info("event publisher connected", "exchange", cfg.Exchange)
	return p, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database and cache connectivity.
func healthHandler(db, c pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
