package litestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/irontracks/musclemap/internal/mapping"
)

// GetMappings returns the stored mappings of a user for the given keys.
func (s *DB) GetMappings(ctx context.Context, userID int, keys []string) (map[string]mapping.Entry, error) {
	out := make(map[string]mapping.Entry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(keys)+1)
	args = append(args, userID)
	for _, k := range keys {
		args = append(args, k)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")

	rows, err := s.db.QueryContext(ctx,
		`SELECT exercise_key, canonical_name, mapping, source, updated_at
		 FROM exercise_muscle_maps
		 WHERE user_id = ? AND exercise_key IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e        mapping.Entry
			raw, src string
			updated  int64
		)
		if err := rows.Scan(&e.Key, &e.CanonicalName, &raw, &src, &updated); err != nil {
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &e.Mapping); err != nil {
			continue
		}
		e.Source = mapping.Source(src)
		e.UpdatedAt = fromMillis(updated)
		out[e.Key] = e
	}
	return out, rows.Err()
}

// UpsertMapping stores a mapping row. A heuristic row never replaces an ai
// row.
func (s *DB) UpsertMapping(ctx context.Context, userID int, e mapping.Entry) error {
	raw, err := json.Marshal(e.Mapping)
	if err != nil {
		return fmt.Errorf("encoding mapping: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO exercise_muscle_maps (user_id, exercise_key, canonical_name, mapping, confidence, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, exercise_key) DO UPDATE
			SET canonical_name = excluded.canonical_name,
			    mapping = excluded.mapping,
			    confidence = excluded.confidence,
			    source = excluded.source,
			    updated_at = excluded.updated_at
			WHERE excluded.source = 'ai' OR exercise_muscle_maps.source <> 'ai'`,
		userID, e.Key, e.CanonicalName, string(raw), e.Mapping.Confidence, string(e.Source), millis(time.Now()))
	if err != nil {
		return fmt.Errorf("upserting mapping %q: %w", e.Key, err)
	}
	return nil
}
