package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetWeeklySummary returns the cached payload for a user and week start
// (YYYY-MM-DD). A missing row yields a nil payload and no error.
func (db *DB) GetWeeklySummary(ctx context.Context, userID int, weekStart string) ([]byte, time.Time, error) {
	var (
		payload   []byte
		updatedAt time.Time
	)
	err := db.Pool.QueryRow(ctx,
		`SELECT payload, updated_at FROM muscle_weekly_summaries
		 WHERE user_id = $1 AND week_start_date = $2::date`,
		userID, weekStart).Scan(&payload, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("querying weekly summary: %w", err)
	}
	return payload, updatedAt, nil
}

// PutWeeklySummary upserts the payload for a user and week. The last
// writer wins.
func (db *DB) PutWeeklySummary(ctx context.Context, userID int, weekStart string, payload []byte, updatedAt time.Time) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO muscle_weekly_summaries (user_id, week_start_date, payload, updated_at)
		 VALUES ($1, $2::date, $3, $4)
		 ON CONFLICT (user_id, week_start_date) DO UPDATE
			SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		userID, weekStart, payload, updatedAt)
	if err != nil {
		return fmt.Errorf("upserting weekly summary: %w", err)
	}
	return nil
}
