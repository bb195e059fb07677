package litestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetWeeklySummary returns the cached payload for a user and week start. A
// missing row yields a nil payload and no error.
func (s *DB) GetWeeklySummary(ctx context.Context, userID int, weekStart string) ([]byte, time.Time, error) {
	var (
		payload string
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, updated_at FROM muscle_weekly_summaries WHERE user_id = ? AND week_start_date = ?`,
		userID, weekStart).Scan(&payload, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("querying weekly summary: %w", err)
	}
	return []byte(payload), fromMillis(updated), nil
}

// PutWeeklySummary upserts the payload for a user and week.
func (s *DB) PutWeeklySummary(ctx context.Context, userID int, weekStart string, payload []byte, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO muscle_weekly_summaries (user_id, week_start_date, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, week_start_date) DO UPDATE
			SET payload = excluded.payload, updated_at = excluded.updated_at`,
		userID, weekStart, string(payload), millis(updatedAt))
	if err != nil {
		return fmt.Errorf("upserting weekly summary: %w", err)
	}
	return nil
}
