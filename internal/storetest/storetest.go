// Package storetest checks that a store implementation honors the
// contract the engine relies on.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irontracks/musclemap/internal/mapping"
	"github.com/irontracks/musclemap/internal/models"
)

// Store is the full persistence surface.
type Store interface {
	mapping.Store
	GetWeeklySummary(ctx context.Context, userID int, weekStart string) ([]byte, time.Time, error)
	PutWeeklySummary(ctx context.Context, userID int, weekStart string, payload []byte, updatedAt time.Time) error
	ListWorkouts(ctx context.Context, userID int, from, to time.Time, limit, offset int) ([]models.Workout, error)
	UpsertWorkout(ctx context.Context, w models.Workout) (bool, error)
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

// Run exercises s. The store must start empty apart from migrations.
func Run(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		id, err := s.GetOrCreateUser(ctx, "ana@example.com", "Ana")
		require.NoError(t, err)
		again, err := s.GetOrCreateUser(ctx, "ana@example.com", "")
		require.NoError(t, err)
		assert.Equal(t, id, again)

		local, err := s.GetOrCreateUser(ctx, "local", "")
		require.NoError(t, err)
		assert.Equal(t, 1, local)
	})

	userID, err := s.GetOrCreateUser(ctx, "lifter@example.com", "Lifter")
	require.NoError(t, err)

	t.Run("workouts", func(t *testing.T) {
		base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
		for i, name := range []string{"Peito", "Costas", "Pernas"} {
			w := models.Workout{
				ID:     models.WorkoutID(userID, models.SourceApp, base.AddDate(0, 0, i*3), name),
				UserID: userID,
				Name:   name,
				Date:   base.AddDate(0, 0, i*3),
				Source: models.SourceApp,
				Notes:  []byte(`{"exercises":[]}`),
			}
			inserted, err := s.UpsertWorkout(ctx, w)
			require.NoError(t, err)
			assert.True(t, inserted)
		}
		template := models.Workout{
			ID: models.WorkoutID(userID, models.SourceApp, base, "Modelo"), UserID: userID,
			Name: "Modelo", Date: base, Source: models.SourceApp, IsTemplate: true,
		}
		_, err := s.UpsertWorkout(ctx, template)
		require.NoError(t, err)

		got, err := s.ListWorkouts(ctx, userID, base, base.AddDate(0, 0, 6).Add(24*time.Hour-time.Second), 120, 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Costas", got[0].Name)
		assert.Equal(t, "Peito", got[1].Name)
		assert.True(t, got[1].Date.Equal(base))
		assert.JSONEq(t, `{"exercises":[]}`, string(got[1].Notes))

		open, err := s.ListWorkouts(ctx, userID, base, time.Time{}, 10, 1)
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, "Costas", open[0].Name)

		// re-import replaces the document
		w := got[1]
		w.Notes = []byte(`{"exercises":[{"name":"Supino"}]}`)
		inserted, err := s.UpsertWorkout(ctx, w)
		require.NoError(t, err)
		assert.False(t, inserted)
		got, err = s.ListWorkouts(ctx, userID, base, base, 1, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Contains(t, string(got[0].Notes), "Supino")
	})

	t.Run("mappings never downgrade", func(t *testing.T) {
		heuristic := mapping.Entry{
			Key:           "supino reto",
			CanonicalName: "Supino reto",
			Source:        mapping.SourceHeuristic,
			Mapping: mapping.Mapping{
				Contributions: []mapping.Contribution{{MuscleID: "chest", Weight: 1, Role: mapping.Primary}},
				Confidence:    0.55,
			},
		}
		ai := heuristic
		ai.Source = mapping.SourceAI
		ai.Mapping = mapping.Mapping{
			Contributions: []mapping.Contribution{
				{MuscleID: "chest", Weight: 0.7, Role: mapping.Primary},
				{MuscleID: "triceps", Weight: 0.3, Role: mapping.Secondary},
			},
			Confidence: 0.9,
			Notes:      "ai",
		}

		require.NoError(t, s.UpsertMapping(ctx, userID, heuristic))
		require.NoError(t, s.UpsertMapping(ctx, userID, ai))
		require.NoError(t, s.UpsertMapping(ctx, userID, heuristic))

		got, err := s.GetMappings(ctx, userID, []string{"supino reto", "missing"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		e := got["supino reto"]
		assert.Equal(t, mapping.SourceAI, e.Source)
		assert.Equal(t, "Supino reto", e.CanonicalName)
		assert.Len(t, e.Mapping.Contributions, 2)
		assert.InDelta(t, 0.9, e.Mapping.Confidence, 1e-9)
		assert.False(t, e.UpdatedAt.IsZero())

		other, err := s.GetMappings(ctx, userID+1000, []string{"supino reto"})
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("weekly summaries", func(t *testing.T) {
		payload, at, err := s.GetWeeklySummary(ctx, userID, "2025-03-10")
		require.NoError(t, err)
		assert.Nil(t, payload)
		assert.True(t, at.IsZero())

		first := time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)
		require.NoError(t, s.PutWeeklySummary(ctx, userID, "2025-03-10", []byte(`{"v":1}`), first))
		require.NoError(t, s.PutWeeklySummary(ctx, userID, "2025-03-10", []byte(`{"v":2}`), first.Add(time.Hour)))

		payload, at, err = s.GetWeeklySummary(ctx, userID, "2025-03-10")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(payload))
		assert.True(t, at.Equal(first.Add(time.Hour)), "updated_at = %v", at)
	})
}
