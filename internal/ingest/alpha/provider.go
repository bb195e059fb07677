package alpha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/irontracks/musclemap/internal/ingest"
	"github.com/irontracks/musclemap/internal/models"
	"github.com/irontracks/musclemap/internal/session"
)

// WorkoutWriter stores imported workouts.
type WorkoutWriter interface {
	UpsertWorkout(ctx context.Context, w models.Workout) (bool, error)
}

// Provider turns Alpha Progression CSV exports into stored sessions.
type Provider struct {
	store WorkoutWriter
	log   *slog.Logger
	loc   *time.Location
}

// NewProvider creates an Alpha Progression provider. Export times are read
// in loc; nil means UTC.
func NewProvider(store WorkoutWriter, loc *time.Location, log *slog.Logger) *Provider {
	return &Provider{store: store, log: log, loc: loc}
}

// Ingest parses an export and upserts one workout per session. Workout ids
// derive from user, date and name, so re-importing the same export updates
// rows in place.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID int) (*ingest.Result, error) {
	sessions, err := Parse(r, p.loc)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	result := &ingest.Result{SessionsReceived: len(sessions)}
	for _, s := range sessions {
		notes, err := json.Marshal(ToSession(s))
		if err != nil {
			return nil, fmt.Errorf("encoding session %q: %w", s.Name, err)
		}
		inserted, err := p.store.UpsertWorkout(ctx, models.Workout{
			ID:     models.WorkoutID(userID, models.SourceAlpha, s.Date, s.Name),
			UserID: userID,
			Name:   s.Name,
			Date:   s.Date,
			Source: models.SourceAlpha,
			Notes:  notes,
		})
		if err != nil {
			return nil, fmt.Errorf("storing session %s: %w", s.Date.Format("2006-01-02"), err)
		}
		if inserted {
			result.WorkoutsInserted++
		} else {
			result.WorkoutsUpdated++
		}
		for _, ex := range s.Exercises {
			result.SetsReceived += len(ex.Sets)
		}
	}
	p.log.Info("alpha import",
		"user_id", userID,
		"sessions", result.SessionsReceived,
		"inserted", result.WorkoutsInserted,
		"updated", result.WorkoutsUpdated,
	)
	return result, nil
}

// ToSession converts an exported session to the stored session form.
// Every exported set was performed, warm-ups included; warm-ups keep their
// flag so they never count as volume.
func ToSession(s models.AlphaSession) session.Session {
	out := session.Session{}
	for _, ex := range s.Exercises {
		e := session.Exercise{Name: ex.Name, Planned: ex.WorkingSets()}
		for i, set := range ex.Sets {
			weight := set.WeightKg
			reps := float64(set.Reps)
			e.SetLogAt(i, session.SetLog{
				Weight: &weight,
				Reps:   &reps,
				RIR:    set.RIR,
				Done:   true,
				Warmup: set.IsWarmup,
			})
			out.LogEntries++
		}
		out.Exercises = append(out.Exercises, e)
	}
	return out
}
