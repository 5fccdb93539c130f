package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/review-analyzer/internal/analyzer"
	"github.com/maltedev/review-analyzer/internal/api"
	"github.com/maltedev/review-analyzer/internal/config"
	"github.com/maltedev/review-analyzer/internal/crawler"
	"github.com/maltedev/review-analyzer/internal/database"
	"github.com/maltedev/review-analyzer/internal/logging"
	"github.com/maltedev/review-analyzer/internal/ratelimit"
	"github.com/maltedev/review-analyzer/internal/review"
	"github.com/maltedev/review-analyzer/internal/stats"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, analyses will fail")
	}

	sets, err := crawler.LoadSelectorSets(cfg.Crawler.SelectorsFile)
	if err != nil {
		return fmt.Errorf("failed to load selector sets: %w", err)
	}

	buildOpts := cfg.CrawlerOptions(sets)
	buildOpts.Logger = logger
	registry, err := crawler.Build(buildOpts)
	if err != nil {
		return fmt.Errorf("failed to build extractors: %w", err)
	}

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	store, closeStore, err := openStats(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	limiter, err := newDailyLimiter(cfg, redisClient)
	if err != nil {
		return err
	}

	client := analyzer.NewClient(cfg.AnalyzerConfig(), logger)
	service := review.NewService(registry, client, store, logger)

	loc, err := ratelimit.LoadLocation(cfg.Limits.TimeZone)
	if err != nil {
		return err
	}
	handlers := api.NewHandlers(service, store, loc, logger)
	router := api.NewRouter(handlers, api.RouterConfig{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		PerMinute:      cfg.Limits.PerMinute,
		Daily:          limiter,
	}, logger)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout * 2,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting",
		"addr", server.Addr,
		"stats_backend", cfg.Stats.Backend,
		"rate_limit_backend", cfg.Limits.Backend,
		"daily_limit", cfg.Limits.Daily,
		"model", cfg.Gemini.Model,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openStats(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) (stats.Store, func(), error) {
	switch cfg.Stats.Backend {
	case "memory":
		s := stats.NewMemoryStore()
		return s, func() { _ = s.Close() }, nil
	case "redis":
		s := stats.NewRedisStore(redisClient, "")
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		db, err := database.New(ctx, cfg.DatabaseConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s := stats.NewPostgresStore(db)
		if err := s.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to prepare stats table: %w", err)
		}
		return s, db.Close, nil
	default:
		s, err := stats.NewFileStore(cfg.Stats.File, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open stats file: %w", err)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Error("failed to close stats file", "error", err)
			}
		}, nil
	}
}

func newDailyLimiter(cfg *config.Config, redisClient *redis.Client) (ratelimit.DailyLimiter, error) {
	if cfg.Limits.Daily == 0 {
		return ratelimit.Unlimited{}, nil
	}

	loc, err := ratelimit.LoadLocation(cfg.Limits.TimeZone)
	if err != nil {
		return nil, err
	}

	if cfg.Limits.Backend == "redis" {
		return ratelimit.NewRedisDailyLimiter(redisClient, cfg.Limits.Daily, loc, ""), nil
	}
	return ratelimit.NewMemoryDailyLimiter(cfg.Limits.Daily, loc), nil
}
