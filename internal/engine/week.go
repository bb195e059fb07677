package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/irontracks/musclemap/internal/ai"
	"github.com/irontracks/musclemap/internal/insight"
	"github.com/irontracks/musclemap/internal/mapping"
	"github.com/irontracks/musclemap/internal/summary"
	"github.com/irontracks/musclemap/internal/volume"
)

// Week limits.
const (
	weekWorkoutLimit = 120
	weekAIBatch      = 20
	refreshAIBatch   = 60
)

// WeekRequest selects a week. Refresh is the legacy name of RefreshCache.
type WeekRequest struct {
	WeekStart    string `json:"weekStart"`
	RefreshCache bool   `json:"refreshCache"`
	Refresh      bool   `json:"refresh,omitempty"`
	RefreshAI    bool   `json:"refreshAi"`
}

// WeekAI reports what happened to the AI part of a week request.
type WeekAI struct {
	Requested     bool   `json:"requested"`
	Status        string `json:"status"`
	InsightsStale bool   `json:"insightsStale"`
}

// WeekResult is the weekly payload; it is also what the summary cache
// stores.
type WeekResult struct {
	OK            bool   `json:"ok"`
	WeekStartDate string `json:"weekStartDate"`
	WeekEndDate   string `json:"weekEndDate"`
	WorkoutsCount int    `json:"workoutsCount"`
	volume.Result
	Insights insight.Insights `json:"insights"`
	AI       WeekAI           `json:"ai"`
}

// Week returns the muscle volume of a week. A fresh cached payload is
// returned as is unless the request asks for a cache or AI refresh.
func (e *Engine) Week(ctx context.Context, userID int, req WeekRequest) (*WeekResult, error) {
	start := summary.ParseWeek(req.WeekStart, e.Now())
	weekKey := start.Format(summary.DateLayout)
	refreshCache := req.RefreshCache || req.Refresh

	bypass := refreshCache || req.RefreshAI
	cached, cachedAt, fresh := e.cached(ctx, userID, weekKey, bypass)
	if cached != nil && fresh && !bypass {
		return cached, nil
	}

	end := summary.WeekEnd(start)
	data, err := e.load(ctx, userID, start, end.Add(24*time.Hour-time.Second), weekWorkoutLimit)
	if err != nil {
		return nil, fmt.Errorf("loading week sessions: %w", err)
	}

	out := &WeekResult{
		OK:            true,
		WeekStartDate: weekKey,
		WeekEndDate:   end.Format(summary.DateLayout),
		WorkoutsCount: len(data.sessions),
		AI:            WeekAI{Requested: req.RefreshAI, Status: ai.StatusSkipped},
	}

	allowed := !req.RefreshAI || e.allowAI(ctx, userID)
	batch := weekAIBatch
	if req.RefreshAI && allowed {
		batch = refreshAIBatch
	}
	strategies := []mapping.Strategy{mapping.NewCached(e.store), mapping.Heuristic{}}
	if c := e.model(purposeMapping); c != nil {
		strategies = append(strategies, mapping.NewClassifier(c, batch, batch))
	}
	res := e.resolve(ctx, userID, data.items, strategies...)

	agg := volume.NewAggregator(volume.DefaultUnknownLimit)
	for _, s := range data.sessions {
		agg.AddSession(s, res)
	}
	out.Result = *agg.Result()

	var generated *insight.Insights
	if req.RefreshAI {
		switch {
		case e.completer == nil:
			out.AI.Status = ai.StatusMissingAPIKey
		case !allowed:
			out.AI.Status = ai.StatusRateLimited
		default:
			in := insight.NewInput(weekKey, &out.Result, out.WorkoutsCount)
			got, err := insight.NewComposer(e.model(purposeInsights)).Compose(ctx, in)
			out.AI.Status = ai.StatusFor(err)
			if err != nil {
				e.log.Warn("weekly insights failed", "user_id", userID, "week", weekKey, "error", err)
			} else {
				generated = &got
			}
		}
	}
	// a mapping failure shows unless insights already report one
	if err := res.Errors[mapping.StrategyAI]; err != nil && (out.AI.Status == ai.StatusSkipped || out.AI.Status == ai.StatusOK) {
		out.AI.Status = ai.StatusFor(err)
	}
	switch {
	case generated != nil:
		out.Insights = *generated
	case cached != nil && !cached.Insights.IsZero():
		out.Insights = normalizeLists(cached.Insights)
		out.AI.InsightsStale = !cachedAt.IsZero()
	default:
		out.Insights = insight.Empty()
	}

	if payload, err := json.Marshal(out); err != nil {
		e.log.Warn("encoding weekly summary", "user_id", userID, "week", weekKey, "error", err)
	} else if _, err := e.cache.Put(ctx, userID, weekKey, payload); err != nil {
		e.log.Warn("caching weekly summary", "user_id", userID, "week", weekKey, "error", err)
	}
	return out, nil
}

// cached loads the stored payload of a week with its write time and
// freshness. It returns nil when there is none or it cannot be read. bypass
// only affects the cache metric.
func (e *Engine) cached(ctx context.Context, userID int, weekKey string, bypass bool) (*WeekResult, time.Time, bool) {
	payload, updatedAt, fresh, err := e.cache.Fetch(ctx, userID, weekKey)
	result := "miss"
	defer func() {
		if e.metrics != nil {
			e.metrics.CounterSummaryCache.WithLabelValues(result).Inc()
		}
	}()
	if err != nil {
		result = "error"
		e.log.Warn("reading weekly summary", "user_id", userID, "week", weekKey, "error", err)
		return nil, time.Time{}, false
	}
	if payload == nil {
		return nil, time.Time{}, false
	}
	var r WeekResult
	if err := json.Unmarshal(payload, &r); err != nil {
		result = "error"
		e.log.Warn("decoding weekly summary", "user_id", userID, "week", weekKey, "error", err)
		return nil, time.Time{}, false
	}
	switch {
	case bypass:
		result = "bypass"
	case fresh:
		result = "hit"
	default:
		result = "stale"
	}
	return &r, updatedAt, fresh
}

func normalizeLists(in insight.Insights) insight.Insights {
	out := insight.Empty()
	out.Summary = append(out.Summary, in.Summary...)
	out.ImbalanceAlerts = append(out.ImbalanceAlerts, in.ImbalanceAlerts...)
	out.Recommendations = append(out.Recommendations, in.Recommendations...)
	return out
}
