package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/irontracks/musclemap/internal/models"
)

// UpsertWorkout inserts a workout or replaces the session document of an
// existing one. Returns true if a new row was inserted.
func (db *DB) UpsertWorkout(ctx context.Context, w models.Workout) (bool, error) {
	var inserted bool
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO workouts (id, user_id, name, date, source, notes, is_template)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, date = EXCLUDED.date, notes = EXCLUDED.notes
		 RETURNING (xmax = 0)`,
		w.ID, w.UserID, w.Name, w.Date, w.Source, string(w.Notes), w.IsTemplate,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upserting workout: %w", err)
	}
	return inserted, nil
}

// ListWorkouts returns non-template workouts of a user dated in [from, to],
// newest first. A zero to leaves the range open-ended.
func (db *DB) ListWorkouts(ctx context.Context, userID int, from, to time.Time, limit, offset int) ([]models.Workout, error) {
	var toArg any
	if !to.IsZero() {
		toArg = to
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, name, date, source, COALESCE(notes, ''), is_template, created_at
		 FROM workouts
		 WHERE user_id = $1 AND NOT is_template
		   AND date >= $2 AND ($3::timestamptz IS NULL OR date <= $3)
		 ORDER BY date DESC, created_at DESC
		 LIMIT $4 OFFSET $5`,
		userID, from, toArg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var result []models.Workout
	for rows.Next() {
		var w models.Workout
		var notes string
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.Date, &w.Source, &notes, &w.IsTemplate, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		w.Notes = []byte(notes)
		result = append(result, w)
	}
	return result, rows.Err()
}
