// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis_rate/v10"

	"github.com/carterperez-dev/payroll-ledger/internal/admin"
	"github.com/carterperez-dev/payroll-ledger/internal/config"
	"github.com/carterperez-dev/payroll-ledger/internal/core"
	"github.com/carterperez-dev/payroll-ledger/internal/credential"
	"github.com/carterperez-dev/payroll-ledger/internal/health"
	"github.com/carterperez-dev/payroll-ledger/internal/ledger"
	"github.com/carterperez-dev/payroll-ledger/internal/metrics"
	"github.com/carterperez-dev/payroll-ledger/internal/middleware"
	"github.com/carterperez-dev/payroll-ledger/internal/notify"
	"github.com/carterperez-dev/payroll-ledger/internal/policy"
	"github.com/carterperez-dev/payroll-ledger/internal/server"
	"github.com/carterperez-dev/payroll-ledger/internal/session"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	generateKeys := flag.Bool(
		"generate-keys",
		false,
		"write a fresh ES256 key pair to the configured paths and exit",
	)
	flag.Parse()

	if *generateKeys {
		if err := writeKeys(*configPath); err != nil {
			slog.Error("key generation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func writeKeys(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := session.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath); err != nil {
		return err
	}

	slog.Info("key pair written",
		"private", cfg.JWT.PrivateKeyPath,
		"public", cfg.JWT.PublicKeyPath,
	)
	return nil
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	if err := policy.Sync(ctx, db.DB); err != nil {
		return err
	}
	logger.Info("schema migrated", "grants", len(policy.Matrix()))

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	tokens, err := session.NewTokenManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("token manager initialized",
		"algorithm", "ES256",
		"key_id", tokens.GetKeyID(),
	)

	sessions := session.NewManager(
		tokens,
		session.NewRedisRevocations(redis.Client),
		logger,
	)

	codec, err := core.NewFieldCodecFromBase64(cfg.Security.FieldKey)
	if err != nil {
		return fmt.Errorf("field encryption key: %w", err)
	}

	var transport notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Notify.Enabled {
		transport = notify.NewSMTPNotifier(cfg.Notify)
		logger.Info("smtp notifications enabled",
			"host", cfg.Notify.SMTPHost,
			"port", cfg.Notify.SMTPPort,
		)
	}

	dispatcher := notify.NewDispatcher(
		cfg.Notify.Workers,
		cfg.Notify.QueueSize,
		transport,
		logger,
	)
	dispatcher.Start(context.WithoutCancel(ctx))

	credentials := credential.NewService(
		credential.NewStore(db.DB),
		dispatcher,
		sessions,
		logger,
		credential.WithLockoutThreshold(cfg.Security.LockoutThreshold),
		credential.WithResetTokenTTL(cfg.Security.ResetTokenTTL),
		credential.WithResetTokenLength(cfg.Security.ResetTokenLength),
	)

	created, err := credentials.Bootstrap(
		ctx,
		cfg.Security.Admin.Username,
		cfg.Security.Admin.Email,
		cfg.Security.Admin.Password,
	)
	if err != nil {
		return err
	}
	if created {
		logger.Warn("bootstrap admin created; change its password",
			"username", cfg.Security.Admin.Username,
		)
	}

	payroll := ledger.NewService(
		ledger.NewStore(db.DB),
		codec,
		dispatcher,
		credentials,
		logger,
	)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.DB.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Ledger:     payroll,
		Queue:      dispatcher,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(chimw.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: redis_rate.Limit{
				Rate:   cfg.RateLimit.Requests,
				Burst:  cfg.RateLimit.Burst,
				Period: cfg.RateLimit.Window,
			},
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	strictLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit: middleware.PerMinute(
			cfg.RateLimit.LoginRequests,
			cfg.RateLimit.LoginBurst,
		),
		KeyFunc: middleware.KeyByIPAndEndpoint,
	}).Handler

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", tokens.GetJWKSHandler())

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// The global limiter runs before any session is known and so keys on
	// the client IP. The per-user budget is applied after authentication.
	userLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit: middleware.PerMinute(
			cfg.RateLimit.UserRequests,
			cfg.RateLimit.UserBurst,
		),
		KeyFunc:  middleware.KeyByUser,
		FailOpen: true,
	}).Handler
	authenticate := middleware.Authenticator(sessions)
	authenticator := func(next http.Handler) http.Handler {
		return authenticate(userLimiter(next))
	}
	manageUsers := middleware.RequirePermission(policy.ManageUsers)

	sessionHandler := session.NewHandler(sessions, credentials)
	credentialHandler := credential.NewHandler(credentials)
	ledgerHandler := ledger.NewHandler(payroll)

	router.Route("/v1", func(r chi.Router) {
		sessionHandler.RegisterRoutes(r, authenticator, strictLimiter)
		credentialHandler.RegisterRoutes(r, authenticator, strictLimiter)
		credentialHandler.RegisterAdminRoutes(r, authenticator, manageUsers)
		ledgerHandler.RegisterRoutes(r, authenticator)
		adminHandler.RegisterRoutes(r, authenticator, manageUsers)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	dispatcher.Close()
	logger.Info("notification queue drained")

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
