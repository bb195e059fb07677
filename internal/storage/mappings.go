package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/irontracks/musclemap/internal/mapping"
)

// upsertMappingSQL never lets a heuristic row replace an ai row.
const upsertMappingSQL = `
	INSERT INTO exercise_muscle_maps (user_id, exercise_key, canonical_name, mapping, confidence, source, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	ON CONFLICT (user_id, exercise_key) DO UPDATE
		SET canonical_name = EXCLUDED.canonical_name,
		    mapping = EXCLUDED.mapping,
		    confidence = EXCLUDED.confidence,
		    source = EXCLUDED.source,
		    updated_at = NOW()
		WHERE EXCLUDED.source = 'ai' OR exercise_muscle_maps.source <> 'ai'`

// GetMappings returns the stored mappings of a user for the given keys.
// Keys without a row are absent from the result.
func (db *DB) GetMappings(ctx context.Context, userID int, keys []string) (map[string]mapping.Entry, error) {
	out := make(map[string]mapping.Entry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT exercise_key, canonical_name, mapping, source, updated_at
		 FROM exercise_muscle_maps
		 WHERE user_id = $1 AND exercise_key = ANY($2)`,
		userID, keys)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e   mapping.Entry
			raw []byte
			src string
		)
		if err := rows.Scan(&e.Key, &e.CanonicalName, &raw, &src, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Mapping); err != nil {
			// Unreadable rows behave like missing ones.
			continue
		}
		e.Source = mapping.Source(src)
		out[e.Key] = e
	}
	return out, rows.Err()
}

// UpsertMapping stores a mapping row.
func (db *DB) UpsertMapping(ctx context.Context, userID int, e mapping.Entry) error {
	raw, err := json.Marshal(e.Mapping)
	if err != nil {
		return fmt.Errorf("encoding mapping: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, upsertMappingSQL,
		userID, e.Key, e.CanonicalName, raw, e.Mapping.Confidence, string(e.Source)); err != nil {
		return fmt.Errorf("upserting mapping %q: %w", e.Key, err)
	}
	return nil
}
