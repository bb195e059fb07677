package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/irontracks/musclemap/internal/ai"
	"github.com/irontracks/musclemap/internal/exercise"
	"github.com/irontracks/musclemap/internal/mapping"
	"github.com/irontracks/musclemap/internal/session"
)

// Classification and backfill limits.
const (
	maxClassifyNames    = 60
	backfillAIBatch     = 60
	backfillPage        = 1000
	backfillMaxScan     = 3000
	defaultBackfillDays = 365
	minBackfillDays     = 7
	maxBackfillDays     = 3650
	defaultBackfillAI   = 240
	maxBackfillAI       = 600
	maxRemainingListed  = 50
)

// ClassifyResult lists the mappings produced for the requested names.
type ClassifyResult struct {
	OK         bool            `json:"ok"`
	Items      []mapping.Entry `json:"items"`
	Unresolved []string        `json:"unresolved"`
	AI         struct {
		Status string `json:"status"`
	} `json:"ai"`
}

// Classify maps up to 60 distinct names: heuristics first, then the model
// for the rest. Stored mappings are not consulted; every result is
// persisted.
func (e *Engine) Classify(ctx context.Context, userID int, names []string) (*ClassifyResult, error) {
	var items []mapping.Item
	seen := map[string]bool{}
	keys := map[string]bool{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		if len(seen) == maxClassifyNames {
			break
		}
		seen[n] = true
		canonical, key := exercise.Resolve(n)
		if key == "" || keys[key] {
			continue
		}
		keys[key] = true
		items = append(items, mapping.Item{Key: key, CanonicalName: canonical})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: names required", ErrInvalidInput)
	}

	out := &ClassifyResult{OK: true, Items: []mapping.Entry{}, Unresolved: []string{}}
	strategies := []mapping.Strategy{mapping.Heuristic{}}
	out.AI.Status = e.aiStage(ctx, userID, &strategies, maxClassifyNames, maxClassifyNames)

	res := e.resolve(ctx, userID, items, strategies...)
	if err := res.Errors[mapping.StrategyAI]; err != nil {
		out.AI.Status = ai.StatusFor(err)
	}
	for _, it := range items {
		if en, ok := res.Entries[it.Key]; ok {
			out.Items = append(out.Items, en)
		}
	}
	for _, it := range res.Unresolved {
		out.Unresolved = append(out.Unresolved, it.CanonicalName)
	}
	return out, nil
}

// aiStage appends the classifier to strategies when the model is
// configured and the user is within the rate limit, and returns the
// resulting AI status.
func (e *Engine) aiStage(ctx context.Context, userID int, strategies *[]mapping.Strategy, batch, budget int) string {
	switch {
	case e.completer == nil:
		return ai.StatusMissingAPIKey
	case budget <= 0:
		return ai.StatusSkipped
	case !e.allowAI(ctx, userID):
		return ai.StatusRateLimited
	}
	*strategies = append(*strategies, mapping.NewClassifier(e.model(purposeMapping), batch, budget))
	return ai.StatusOK
}

// BackfillRequest bounds a backfill run. Nil fields take defaults.
type BackfillRequest struct {
	Days  *float64 `json:"days"`
	MaxAI *float64 `json:"maxAi"`
}

// BackfillResult summarizes a backfill run.
type BackfillResult struct {
	OK                bool     `json:"ok"`
	Days              int      `json:"days"`
	ScannedWorkouts   int      `json:"scannedWorkouts"`
	UniqueExercises   int      `json:"uniqueExercises"`
	HeuristicMapped   int      `json:"heuristicMapped"`
	AIMapped          int      `json:"aiMapped"`
	RemainingUnmapped []string `json:"remainingUnmapped"`
	AIStatus          string   `json:"aiStatus"`
}

// Backfill maps every exercise seen in the user's recent workouts that has
// no stored mapping yet.
func (e *Engine) Backfill(ctx context.Context, userID int, req BackfillRequest) (*BackfillResult, error) {
	days := clampInt(req.Days, minBackfillDays, maxBackfillDays, defaultBackfillDays)
	maxAI := clampInt(req.MaxAI, 0, maxBackfillAI, defaultBackfillAI)
	from := e.Now().Add(-time.Duration(days) * 24 * time.Hour)

	out := &BackfillResult{OK: true, Days: days, RemainingUnmapped: []string{}}

	var items []mapping.Item
	seen := map[string]bool{}
	for offset := 0; offset < backfillMaxScan; offset += backfillPage {
		page, err := e.store.ListWorkouts(ctx, userID, from, time.Time{}, backfillPage, offset)
		if err != nil {
			return nil, fmt.Errorf("scanning workouts: %w", err)
		}
		if len(page) == 0 {
			break
		}
		out.ScannedWorkouts += len(page)
		for _, w := range page {
			s, err := session.Decode(w.Notes)
			if err != nil {
				continue
			}
			for _, ex := range s.Exercises {
				canonical, key := exercise.Resolve(ex.Name)
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true
				items = append(items, mapping.Item{Key: key, CanonicalName: canonical})
			}
		}
		if len(page) < backfillPage {
			break
		}
	}
	out.UniqueExercises = len(items)

	missing, err := e.unmapped(ctx, userID, items)
	if err != nil {
		return nil, err
	}

	strategies := []mapping.Strategy{mapping.Heuristic{}}
	out.AIStatus = e.aiStage(ctx, userID, &strategies, backfillAIBatch, maxAI)
	res := e.resolve(ctx, userID, missing, strategies...)
	if err := res.Errors[mapping.StrategyAI]; err != nil {
		out.AIStatus = ai.StatusFor(err)
	}
	out.HeuristicMapped = res.Resolved[mapping.StrategyHeuristic]
	out.AIMapped = res.Resolved[mapping.StrategyAI]
	for _, it := range res.Unresolved {
		if len(out.RemainingUnmapped) == maxRemainingListed {
			break
		}
		out.RemainingUnmapped = append(out.RemainingUnmapped, it.CanonicalName)
	}
	return out, nil
}

// unmapped returns the items without a stored mapping row that still has
// usable contributions.
func (e *Engine) unmapped(ctx context.Context, userID int, items []mapping.Item) ([]mapping.Item, error) {
	const chunk = 400
	var out []mapping.Item
	for i := 0; i < len(items); i += chunk {
		part := items[i:min(i+chunk, len(items))]
		keys := make([]string, len(part))
		for j, it := range part {
			keys[j] = it.Key
		}
		rows, err := e.store.GetMappings(ctx, userID, keys)
		if err != nil {
			return nil, fmt.Errorf("loading mappings: %w", err)
		}
		for _, it := range part {
			row, ok := rows[it.Key]
			if !ok || len(mapping.Sanitize(row.Mapping.Contributions, true)) == 0 {
				out = append(out, it)
			}
		}
	}
	return out, nil
}
