// Package main is the entrypoint for the TableMate API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/tablemate/tablemate/internal/activity"
	"github.com/tablemate/tablemate/internal/auth"
	"github.com/tablemate/tablemate/internal/cache"
	"github.com/tablemate/tablemate/internal/config"
	"github.com/tablemate/tablemate/internal/handler"
	"github.com/tablemate/tablemate/internal/media"
	"github.com/tablemate/tablemate/internal/metrics"
	"github.com/tablemate/tablemate/internal/middleware"
	"github.com/tablemate/tablemate/internal/repository"
	"github.com/tablemate/tablemate/internal/server"
	"github.com/tablemate/tablemate/internal/service"
)

// store is satisfied by both the Postgres repository and the in-memory store.
type store interface {
	service.UserStore
	service.MealStore
	service.EventStore
	service.ParticipationStore
	Ping(ctx context.Context) error
}

// redisDeps holds the optional Redis-backed collaborators. Every field stays
// a nil interface when Redis is not configured.
type redisDeps struct {
	health      handler.HealthChecker
	revocations middleware.RevocationChecker
	revoker     handler.TokenRevoker
	limiter     middleware.RateLimiter
	titles      service.MealTitleCache
	publisher   service.ActivityPublisher
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var shutdown []func(*server.Server)

	db, closeDB, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closeDB != nil {
		shutdown = append(shutdown, func(s *server.Server) {
			s.OnShutdown("database", func(context.Context) error {
				closeDB()
				return nil
			})
		})
	}

	recorder := metrics.NewInMemory()

	var deps redisDeps
	if cfg.RedisURL != "" {
		cacheClient, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return err
		}
		logger.Info("connected to Redis")

		publisher := activity.NewPublisher(cacheClient.Client(), logger, recorder)
		deps = redisDeps{
			health:      cacheClient,
			revocations: cacheClient,
			revoker:     cacheClient,
			limiter:     cacheClient,
			titles:      cacheClient,
			publisher:   publisher,
		}
		shutdown = append(shutdown, func(s *server.Server) {
			s.OnShutdown("redis", func(context.Context) error { return cacheClient.Close() })
			s.OnShutdown("activity", publisher.Drain)
		})
	} else {
		logger.Warn("REDIS_URL not set, running without rate limits, token revocation or activity feed")
	}

	disk, err := media.NewDiskStore(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		return err
	}
	uploader := media.NewUploader(disk)

	hasher := auth.NewArgon2Hasher(auth.DefaultArgon2Params)
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	users, err := service.NewUserService(db, hasher, uploader, recorder)
	if err != nil {
		return err
	}
	meals := service.NewMealService(db, db, deps.titles, uploader, recorder, logger)
	events := service.NewEventService(service.EventServiceDeps{
		Events:    db,
		Meals:     db,
		Users:     db,
		Titles:    meals,
		Uploader:  uploader,
		Publisher: deps.publisher,
		Metrics:   recorder,
		Logger:    logger,
	})
	participation := service.NewParticipationService(service.ParticipationServiceDeps{
		Ledger:    db,
		Events:    db,
		Users:     db,
		Titles:    meals,
		Publisher: deps.publisher,
		Metrics:   recorder,
		Logger:    logger,
	})

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	router := handler.NewRouter(handler.RouterConfig{
		Logger:  logger,
		Health:  handler.NewHealthHandler(db, deps.health),
		Metrics: handler.NewMetricsHandler(recorder),
		Auth:    handler.NewAuthHandler(users, issuer, deps.revoker, logger),
		Users:   handler.NewUserHandler(users, meals, participation, logger),
		Meals:   handler.NewMealHandler(meals, logger),
		Events:  handler.NewEventHandler(events, participation, logger),
		Admin:   handler.NewAdminHandler(participation, logger),
		AuthConfig: middleware.AuthConfig{
			Logger:      logger,
			Tokens:      issuer,
			Revocations: deps.revocations,
		},
		RateLimitConfig: middleware.RateLimitConfig{
			Logger:        logger,
			Limiter:       deps.limiter,
			UserPerMinute: cfg.RateLimitUserPerMinute,
			UserBurst:     cfg.RateLimitUserBurst,
			IPPerMinute:   cfg.RateLimitAuthPerMinute,
			IPBurst:       cfg.RateLimitAuthBurst,
		},
		CORSConfig:     corsCfg,
		SecurityConfig: middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()},
		AdminUserIDs:   cfg.GetAdminUserIDs(),
		MaxBodySize:    cfg.MaxRequestBodySize,
		MediaDir:       cfg.MediaDir,
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	for _, register := range shutdown {
		register(srv)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"storage", cfg.StorageDriver,
		"media_base_url", cfg.MediaBaseURL,
	)

	return srv.Run(ctx)
}

// openStore connects the configured storage driver. The returned close
// function is nil for the in-memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store, func(), error) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryStore(), nil, nil
	}

	if cfg.AutoMigrate {
		status, err := repository.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath)
		if err != nil {
			logger.Error("failed to run migrations",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			)
			return nil, nil, err
		}
		logger.Info("migrations applied",
			"version", status.Version,
			"dirty", status.Dirty,
		)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return nil, nil, err
	}
	logger.Info("connected to database")

	return repo, repo.Close, nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "tablemate")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL drops the password from a connection URL so it can be logged.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if username := parsed.User.Username(); username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError strips connection secrets out of driver error messages.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
