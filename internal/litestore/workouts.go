package litestore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/irontracks/musclemap/internal/models"
)

// UpsertWorkout inserts a workout or replaces the session document of an
// existing one. Returns true if a new row was inserted.
func (s *DB) UpsertWorkout(ctx context.Context, w models.Workout) (bool, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workouts WHERE id = ?`, w.ID.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking workout: %w", err)
	}
	created := w.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workouts (id, user_id, name, date, source, notes, is_template, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE
			SET name = excluded.name, date = excluded.date, notes = excluded.notes`,
		w.ID.String(), w.UserID, w.Name, millis(w.Date), w.Source, string(w.Notes), w.IsTemplate, millis(created))
	if err != nil {
		return false, fmt.Errorf("upserting workout: %w", err)
	}
	return exists == 0, nil
}

// ListWorkouts returns non-template workouts of a user dated in [from, to],
// newest first. A zero to leaves the range open-ended.
func (s *DB) ListWorkouts(ctx context.Context, userID int, from, to time.Time, limit, offset int) ([]models.Workout, error) {
	upper := int64(math.MaxInt64)
	if !to.IsZero() {
		upper = millis(to)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, date, source, COALESCE(notes, ''), is_template, created_at
		 FROM workouts
		 WHERE user_id = ? AND is_template = 0 AND date >= ? AND date <= ?
		 ORDER BY date DESC, created_at DESC
		 LIMIT ? OFFSET ?`,
		userID, millis(from), upper, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var result []models.Workout
	for rows.Next() {
		var (
			w             models.Workout
			id, notes     string
			date, created int64
		)
		if err := rows.Scan(&id, &w.UserID, &w.Name, &date, &w.Source, &notes, &w.IsTemplate, &created); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		if w.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing workout id %q: %w", id, err)
		}
		w.Date = fromMillis(date)
		w.CreatedAt = fromMillis(created)
		w.Notes = []byte(notes)
		result = append(result, w)
	}
	return result, rows.Err()
}
