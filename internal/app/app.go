// Package app wires configured components for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/irontracks/musclemap/internal/ai"
	"github.com/irontracks/musclemap/internal/config"
	"github.com/irontracks/musclemap/internal/engine"
	"github.com/irontracks/musclemap/internal/litestore"
	"github.com/irontracks/musclemap/internal/metrics"
	"github.com/irontracks/musclemap/internal/models"
	"github.com/irontracks/musclemap/internal/ratelimit"
	"github.com/irontracks/musclemap/internal/storage"
)

// Store is the persistence every binary uses. *storage.DB and
// *litestore.DB satisfy it.
type Store interface {
	engine.Store
	UpsertWorkout(ctx context.Context, w models.Workout) (bool, error)
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*storage.DB)(nil)
	_ Store = (*litestore.DB)(nil)
)

// OpenStore applies migrations and connects the configured database. The
// collector is non-nil for PostgreSQL only.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, migrationsPath string) (Store, prometheus.Collector, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := litestore.Open(ctx, cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, nil, nil
	default:
		dsn := cfg.DSN()
		if err := storage.RunMigrations(dsn, migrationsPath); err != nil {
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Collector(cfg.Name), nil
	}
}

// NewLimiter returns the Redis-backed limiter when Redis is configured and
// reachable, else the in-process one. Close the returned closer on exit.
func NewLimiter(ctx context.Context, cfg config.Config, log *slog.Logger) (ratelimit.Limiter, io.Closer) {
	perMinute := cfg.AI.RateLimitPerMinute
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, using in-process rate limiter", "addr", cfg.Redis.Addr, "error", err)
			_ = rdb.Close()
		} else {
			log.Info("rate limiter", "backend", "redis", "per_minute", perMinute)
			return ratelimit.NewRedis(redis_rate.NewLimiter(rdb), perMinute), rdb
		}
	}
	local := ratelimit.NewLocal(perMinute)
	log.Info("rate limiter", "backend", "local", "per_minute", perMinute)
	return local, closerFunc(func() error { local.Close(); return nil })
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// NewCompleter returns the configured AI model, or nil when no API key is
// set.
func NewCompleter(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (ai.Completer, error) {
	g, err := ai.NewGemini(ctx, cfg.APIKey, cfg.Model, time.Duration(cfg.Timeout))
	if errors.Is(err, ai.ErrMissingAPIKey) {
		log.Warn("ai disabled: no api key configured")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// NewEngine builds the engine with the configured model, limiter and
// cache. The closer releases the limiter.
func NewEngine(ctx context.Context, cfg config.Config, store engine.Store, m *metrics.Manager, log *slog.Logger) (*engine.Engine, io.Closer, error) {
	completer, err := NewCompleter(ctx, cfg.AI, log)
	if err != nil {
		return nil, nil, fmt.Errorf("creating ai client: %w", err)
	}
	limiter, closer := NewLimiter(ctx, cfg, log)
	eng := engine.New(store, log, engine.Options{
		Completer: completer,
		Limiter:   limiter,
		Metrics:   m,
		CacheMB:   cfg.Cache.MemoryMB,
		Freshness: time.Duration(cfg.Cache.Freshness),
	})
	return eng, closer, nil
}
