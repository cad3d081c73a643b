// Command leaderboardd serves agent rankings over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DansiDanutz/nervix-leaderboard/infrastructure/cache"
	"github.com/DansiDanutz/nervix-leaderboard/infrastructure/httpapi"
	"github.com/DansiDanutz/nervix-leaderboard/infrastructure/middleware"
	"github.com/DansiDanutz/nervix-leaderboard/infrastructure/storage"
	"github.com/DansiDanutz/nervix-leaderboard/internal/application"
	"github.com/DansiDanutz/nervix-leaderboard/internal/config"
	"github.com/DansiDanutz/nervix-leaderboard/internal/ports"
	"github.com/DansiDanutz/nervix-leaderboard/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		return 1
	}

	logger := newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("leaderboard starting", "version", version, "port", cfg.Port, "source", cfg.Source)

	otelShutdown, err := telemetry.Init(ctx, telemetry.Options{
		Endpoint:       cfg.OTELEndpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Insecure:       cfg.OTELInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("snapshot source: %w", err)
	}
	defer src.close()

	metrics := middleware.NewPrometheusMetrics()
	loader := middleware.Chain(src.loader,
		middleware.Tracing(nil),
		middleware.Retry(cfg.LoadRetries, 100*time.Millisecond, 2*time.Second),
		middleware.Breaker(middleware.NewCircuitBreaker(5, 30*time.Second)),
		middleware.Timeout(cfg.LoadTimeout),
	)

	svc, err := application.NewLeaderboardService(loader,
		application.WithCache(cache.NewTTLCache(cfg.CacheSize, cfg.CacheTTL), cfg.CacheTTL),
		application.WithMetrics(metrics),
		application.WithLogger(logger),
		application.WithMaxLimit(cfg.MaxLimit),
	)
	if err != nil {
		return fmt.Errorf("leaderboard service: %w", err)
	}

	if src.notifier != nil {
		go func() {
			if err := svc.WatchChanges(ctx, src.notifier); err != nil {
				logger.Error("change watcher stopped; relying on cache TTL", "error", err)
			}
		}()
	}

	srv := httpapi.New(httpapi.ServerConfig{
		Service:      svc,
		Health:       src.health,
		Logger:       logger,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Version:      version,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	logger.Info("leaderboard stopped")
	return nil
}

// source bundles the configured snapshot backend with its optional change
// notifier and health check.
type source struct {
	loader   ports.SnapshotLoader
	notifier ports.ChangeNotifier
	health   httpapi.HealthCheck
	close    func()
}

func openSource(ctx context.Context, cfg config.Config, logger *slog.Logger) (*source, error) {
	switch cfg.Source {
	case config.SourceSQLite:
		store, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &source{
			loader: store,
			health: func(ctx context.Context) error {
				_, err := store.LoadCohort(ctx)
				return err
			},
			close: func() { _ = store.Close() },
		}, nil

	case config.SourcePostgres:
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.NotifyURL, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close(context.Background())
			return nil, err
		}
		src := &source{
			loader: store,
			health: store.Ping,
			close:  func() { store.Close(context.Background()) },
		}
		if cfg.NotifyURL != "" {
			if err := store.Listen(ctx); err != nil {
				store.Close(context.Background())
				return nil, err
			}
			src.notifier = store
		}
		return src, nil

	default:
		fl := storage.NewFileLoader(cfg.SnapshotFile).WithPollInterval(cfg.PollInterval)
		return &source{
			loader:   fl,
			notifier: fl,
			health: func(context.Context) error {
				_, err := os.Stat(cfg.SnapshotFile)
				return err
			},
			close: func() {},
		}, nil
	}
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
