// Package summary caches computed weekly results per user and week.
package summary

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/coocood/freecache"
)

// Freshness is how long a stored summary is served without recomputing.
const Freshness = 6 * time.Hour

// Store persists weekly summaries. GetWeeklySummary returns a nil payload
// when no row exists.
type Store interface {
	GetWeeklySummary(ctx context.Context, userID int, weekStart string) ([]byte, time.Time, error)
	PutWeeklySummary(ctx context.Context, userID int, weekStart string, payload []byte, updatedAt time.Time) error
}

// Cache reads through an in-process L1 to the store. Freshness is judged at
// read time; rows are never expired proactively.
type Cache struct {
	store     Store
	l1        *freecache.Cache
	freshness time.Duration
	log       *slog.Logger

	// Now is the clock used for freshness and write timestamps.
	Now func() time.Time
}

// NewCache creates a cache over store. l1MB sizes the in-process layer; zero
// disables it. A non-positive freshness means Freshness.
func NewCache(store Store, l1MB int, freshness time.Duration, log *slog.Logger) *Cache {
	if freshness <= 0 {
		freshness = Freshness
	}
	c := &Cache{
		store:     store,
		freshness: freshness,
		log:       log,
		Now:       time.Now,
	}
	if l1MB > 0 {
		c.l1 = freecache.NewCache(l1MB * 1024 * 1024)
	}
	return c
}

// Fetch returns the stored payload for the week with its write time and
// whether it is still fresh. A missing row yields a nil payload.
func (c *Cache) Fetch(ctx context.Context, userID int, weekStart string) (payload []byte, updatedAt time.Time, fresh bool, err error) {
	if payload, updatedAt, ok := c.getL1(userID, weekStart); ok {
		return payload, updatedAt, c.fresh(updatedAt), nil
	}

	payload, updatedAt, err = c.store.GetWeeklySummary(ctx, userID, weekStart)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("loading weekly summary: %w", err)
	}
	if payload == nil {
		return nil, time.Time{}, false, nil
	}
	c.setL1(userID, weekStart, payload, updatedAt)
	return payload, updatedAt, c.fresh(updatedAt), nil
}

// Put stores payload as the week's summary, stamped with the current time.
// The last writer wins.
func (c *Cache) Put(ctx context.Context, userID int, weekStart string, payload []byte) (time.Time, error) {
	now := c.Now().UTC()
	if err := c.store.PutWeeklySummary(ctx, userID, weekStart, payload, now); err != nil {
		c.delL1(userID, weekStart)
		return time.Time{}, fmt.Errorf("saving weekly summary: %w", err)
	}
	c.setL1(userID, weekStart, payload, now)
	return now, nil
}

func (c *Cache) fresh(updatedAt time.Time) bool {
	return !updatedAt.IsZero() && c.Now().Sub(updatedAt) < c.freshness
}

func l1Key(userID int, weekStart string) []byte {
	return fmt.Appendf(nil, "week::%d::%s", userID, weekStart)
}

// L1 values are the write time in unix nanoseconds followed by the payload.
func (c *Cache) getL1(userID int, weekStart string) ([]byte, time.Time, bool) {
	if c.l1 == nil {
		return nil, time.Time{}, false
	}
	v, err := c.l1.Get(l1Key(userID, weekStart))
	if err != nil || len(v) < 8 {
		return nil, time.Time{}, false
	}
	ts := time.Unix(0, int64(binary.BigEndian.Uint64(v[:8]))).UTC()
	return v[8:], ts, true
}

func (c *Cache) setL1(userID int, weekStart string, payload []byte, updatedAt time.Time) {
	if c.l1 == nil {
		return
	}
	v := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint64(v, uint64(updatedAt.UnixNano()))
	v = append(v, payload...)
	if err := c.l1.Set(l1Key(userID, weekStart), v, int(c.freshness.Seconds())); err != nil {
		c.log.Debug("weekly summary l1 set failed", "user_id", userID, "week", weekStart, "error", err)
	}
}

func (c *Cache) delL1(userID int, weekStart string) {
	if c.l1 != nil {
		c.l1.Del(l1Key(userID, weekStart))
	}
}
