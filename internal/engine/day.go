package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/irontracks/musclemap/internal/ai"
	"github.com/irontracks/musclemap/internal/mapping"
	"github.com/irontracks/musclemap/internal/muscle"
	"github.com/irontracks/musclemap/internal/summary"
	"github.com/irontracks/musclemap/internal/volume"
)

// Day limits.
const (
	dayWorkoutLimit = 300
	dayUnknownLimit = 80
	maxTZOffset     = 840
	defaultDayMaxAI = 300
	maxDayMaxAI     = 800
	defaultDayBatch = 40
	minDayBatch     = 10
	maxDayBatch     = 80
)

// DayRequest selects a local calendar day. TZOffsetMinutes follows the
// browser convention: minutes to add to local time to get UTC.
type DayRequest struct {
	Date            string   `json:"date"`
	TZOffsetMinutes *float64 `json:"tzOffsetMinutes"`
	RefreshAI       bool     `json:"refreshAi"`
	MaxAI           *float64 `json:"maxAi"`
	BatchLimit      *float64 `json:"batchLimit"`
}

// DayAI reports the AI mapping round of a day request.
type DayAI struct {
	Requested bool   `json:"requested"`
	Status    string `json:"status"`
	Mapped    int    `json:"mapped"`
	Remaining int    `json:"remaining"`
	Error     string `json:"error,omitempty"`
}

// DayDiagnostics is the reduced diagnostics block of a day.
type DayDiagnostics struct {
	EstimatedSetsUsed  int `json:"estimatedSetsUsed"`
	SessionsWithNoLogs int `json:"sessionsWithNoLogs"`
}

// DayResult is the muscle volume of one day. It is never cached.
type DayResult struct {
	OK               bool                              `json:"ok"`
	Date             string                            `json:"date"`
	WorkoutsCount    int                               `json:"workoutsCount"`
	Muscles          map[muscle.ID]volume.MuscleVolume `json:"muscles"`
	UnknownExercises []string                          `json:"unknownExercises"`
	Diagnostics      DayDiagnostics                    `json:"diagnostics"`
	AI               DayAI                             `json:"ai"`
}

// DayRange returns the UTC instants bounding a local day.
func DayRange(date string, tzOffsetMinutes int) (from, to time.Time, err error) {
	d, err := time.Parse(summary.DateLayout, date)
	if err != nil || len(date) != len(summary.DateLayout) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	from = d.Add(time.Duration(tzOffsetMinutes) * time.Minute)
	return from, from.Add(24*time.Hour - time.Millisecond), nil
}

// Day aggregates a single local day. With RefreshAI, unmapped exercises are
// classified in batches until the budget is spent or a batch fails.
func (e *Engine) Day(ctx context.Context, userID int, req DayRequest) (*DayResult, error) {
	offset := 0
	if req.TZOffsetMinutes != nil && !math.IsNaN(*req.TZOffsetMinutes) && !math.IsInf(*req.TZOffsetMinutes, 0) {
		offset = int(math.Max(-maxTZOffset, math.Min(maxTZOffset, *req.TZOffsetMinutes)))
	}
	from, to, err := DayRange(req.Date, offset)
	if err != nil {
		return nil, err
	}
	maxAI := clampInt(req.MaxAI, 0, maxDayMaxAI, defaultDayMaxAI)
	batch := clampInt(req.BatchLimit, minDayBatch, maxDayBatch, defaultDayBatch)

	data, err := e.load(ctx, userID, from, to, dayWorkoutLimit)
	if err != nil {
		return nil, fmt.Errorf("loading day sessions: %w", err)
	}

	out := &DayResult{
		OK:            true,
		Date:          req.Date,
		WorkoutsCount: len(data.sessions),
		AI:            DayAI{Requested: req.RefreshAI, Status: ai.StatusSkipped},
	}

	strategies := []mapping.Strategy{mapping.NewCached(e.store), mapping.Heuristic{}}
	if req.RefreshAI {
		switch {
		case e.completer == nil:
			out.AI.Status = ai.StatusMissingAPIKey
		case !e.allowAI(ctx, userID):
			out.AI.Status = ai.StatusRateLimited
		default:
			out.AI.Status = ai.StatusOK
			if maxAI > 0 {
				strategies = append(strategies, mapping.NewClassifier(e.model(purposeMapping), batch, maxAI))
			}
		}
	}
	res := e.resolve(ctx, userID, data.items, strategies...)
	if err := res.Errors[mapping.StrategyAI]; err != nil {
		out.AI.Status = ai.StatusFor(err)
		out.AI.Error = err.Error()
	}
	out.AI.Mapped = res.Resolved[mapping.StrategyAI]
	out.AI.Remaining = len(res.Unresolved)

	agg := volume.NewAggregator(dayUnknownLimit)
	for _, s := range data.sessions {
		agg.AddSession(s, res)
	}
	r := agg.Result()
	out.Muscles = r.Muscles
	out.UnknownExercises = r.UnknownExercises
	out.Diagnostics = DayDiagnostics{
		EstimatedSetsUsed:  r.Diagnostics.EstimatedSetsUsed,
		SessionsWithNoLogs: r.Diagnostics.SessionsWithNoLogs,
	}
	return out, nil
}
