// Package engine runs the muscle-volume pipeline: load the sessions of a
// period, resolve exercise mappings, aggregate set-equivalents and, for
// weeks, cache the result with optional AI insights.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/irontracks/musclemap/internal/ai"
	"github.com/irontracks/musclemap/internal/exercise"
	"github.com/irontracks/musclemap/internal/mapping"
	"github.com/irontracks/musclemap/internal/metrics"
	"github.com/irontracks/musclemap/internal/models"
	"github.com/irontracks/musclemap/internal/ratelimit"
	"github.com/irontracks/musclemap/internal/session"
	"github.com/irontracks/musclemap/internal/summary"
)

// ErrInvalidInput marks requests that cannot be served as given.
var ErrInvalidInput = errors.New("invalid input")

// Store is the persistence the engine needs.
type Store interface {
	mapping.Store
	summary.Store
	ListWorkouts(ctx context.Context, userID int, from, to time.Time, limit, offset int) ([]models.Workout, error)
}

// Options configures optional collaborators. Zero values disable them.
type Options struct {
	// Completer is the AI model; nil reports missing_api_key on AI requests.
	Completer ai.Completer
	// Limiter bounds on-demand AI requests per user.
	Limiter ratelimit.Limiter
	Metrics *metrics.Manager
	// CacheMB sizes the in-process summary cache.
	CacheMB   int
	Freshness time.Duration
}

// Engine serves week, day, classification and backfill requests.
type Engine struct {
	store     Store
	cache     *summary.Cache
	completer ai.Completer
	limiter   ratelimit.Limiter
	metrics   *metrics.Manager
	log       *slog.Logger

	// Now is the clock used for week resolution and backfill windows.
	Now func() time.Time
}

// New creates an engine over store.
func New(store Store, log *slog.Logger, opts Options) *Engine {
	e := &Engine{
		store:     store,
		cache:     summary.NewCache(store, opts.CacheMB, opts.Freshness, log),
		completer: opts.Completer,
		limiter:   opts.Limiter,
		metrics:   opts.Metrics,
		log:       log,
		Now:       time.Now,
	}
	e.cache.Now = func() time.Time { return e.Now() }
	return e
}

// AI call purposes, used as metric labels.
const (
	purposeMapping  = "mapping"
	purposeInsights = "insights"
)

// model returns the completer for purpose, or nil when AI is not configured.
func (e *Engine) model(purpose string) ai.Completer {
	if e.completer == nil {
		return nil
	}
	if e.metrics == nil {
		return e.completer
	}
	return instrumented{next: e.completer, purpose: purpose, m: e.metrics}
}

// allowAI asks the limiter whether userID may make an on-demand AI request.
// Limiter failures let the request through.
func (e *Engine) allowAI(ctx context.Context, userID int) bool {
	if e.limiter == nil {
		return true
	}
	ok, retry, err := e.limiter.Allow(ctx, strconv.Itoa(userID))
	if err != nil {
		e.log.Warn("rate limiter unavailable", "user_id", userID, "error", err)
		return true
	}
	if !ok {
		e.log.Info("ai request rate limited", "user_id", userID, "retry_after", retry)
		if e.metrics != nil {
			e.metrics.CounterRateLimited.Inc()
		}
	}
	return ok
}

// loaded is the decoded content of a period.
type loaded struct {
	sessions []*session.Session
	items    []mapping.Item
}

// load decodes the workouts of a period and collects their distinct
// exercises. Undecodable session documents are skipped.
func (e *Engine) load(ctx context.Context, userID int, from, to time.Time, limit int) (*loaded, error) {
	workouts, err := e.store.ListWorkouts(ctx, userID, from, to, limit, 0)
	if err != nil {
		return nil, err
	}
	out := &loaded{}
	seen := map[string]bool{}
	for _, w := range workouts {
		s, err := session.Decode(w.Notes)
		if err != nil {
			e.log.Debug("skipping workout", "workout_id", w.ID, "error", err)
			continue
		}
		out.sessions = append(out.sessions, s)
		for _, ex := range s.Exercises {
			canonical, key := exercise.Resolve(ex.Name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out.items = append(out.items, mapping.Item{Key: key, CanonicalName: canonical})
		}
	}
	return out, nil
}

// resolve runs the mapping pipeline and records per-strategy counts.
func (e *Engine) resolve(ctx context.Context, userID int, items []mapping.Item, strategies ...mapping.Strategy) *mapping.Resolution {
	res := mapping.NewResolver(e.store, e.log, strategies...).Resolve(ctx, userID, items)
	if e.metrics != nil {
		for name, n := range res.Resolved {
			e.metrics.CounterMappings.WithLabelValues(name).Add(float64(n))
		}
	}
	return res
}

// clampInt floors v and clamps it to [lo, hi]; nil or non-finite means def.
func clampInt(v *float64, lo, hi, def int) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return def
	}
	return min(max(int(math.Floor(*v)), lo), hi)
}
