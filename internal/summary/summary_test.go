package summary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type memStore struct {
	rows    map[string]row
	reads   int
	failPut bool
}

type row struct {
	payload   []byte
	updatedAt time.Time
}

func newMemStore() *memStore { return &memStore{rows: map[string]row{}} }

func key(userID int, week string) string { return string(l1Key(userID, week)) }

func (s *memStore) GetWeeklySummary(_ context.Context, userID int, week string) ([]byte, time.Time, error) {
	s.reads++
	r, ok := s.rows[key(userID, week)]
	if !ok {
		return nil, time.Time{}, nil
	}
	return r.payload, r.updatedAt, nil
}

func (s *memStore) PutWeeklySummary(_ context.Context, userID int, week string, payload []byte, at time.Time) error {
	if s.failPut {
		return errors.New("read-only")
	}
	s.rows[key(userID, week)] = row{payload: payload, updatedAt: at}
	return nil
}

func newTestCache(store Store, l1MB int, now *time.Time) *Cache {
	c := NewCache(store, l1MB, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.Now = func() time.Time { return *now }
	return c
}

func TestFreshness(t *testing.T) {
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		age   time.Duration
		fresh bool
	}{
		{"just written", 0, true},
		{"five hours", 5 * time.Hour, true},
		{"at the window", Freshness, false},
		{"seven hours", 7 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.rows[key(1, "2025-03-10")] = row{payload: []byte(`{"ok":true}`), updatedAt: base}
			now := base.Add(tt.age)

			payload, updatedAt, fresh, err := newTestCache(store, 0, &now).Fetch(context.Background(), 1, "2025-03-10")
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if string(payload) != `{"ok":true}` {
				t.Errorf("payload = %s", payload)
			}
			if !updatedAt.Equal(base) {
				t.Errorf("updatedAt = %v, want %v", updatedAt, base)
			}
			if fresh != tt.fresh {
				t.Errorf("fresh = %v, want %v", fresh, tt.fresh)
			}
		})
	}
}

func TestFetchMissing(t *testing.T) {
	now := time.Now()
	payload, updatedAt, fresh, err := newTestCache(newMemStore(), 1, &now).Fetch(context.Background(), 1, "2025-03-10")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if payload != nil || !updatedAt.IsZero() || fresh {
		t.Errorf("got %s %v %v, want empty", payload, updatedAt, fresh)
	}
}

func TestPutThenFetchUsesL1(t *testing.T) {
	store := newMemStore()
	now := time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)
	c := newTestCache(store, 1, &now)

	at, err := c.Put(context.Background(), 7, "2025-03-10", []byte(`{"v":1}`))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !at.Equal(now) {
		t.Errorf("Put time = %v, want %v", at, now)
	}

	now = now.Add(time.Hour)
	payload, updatedAt, fresh, err := c.Fetch(context.Background(), 7, "2025-03-10")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if store.reads != 0 {
		t.Errorf("store reads = %d, want 0", store.reads)
	}
	if string(payload) != `{"v":1}` || !updatedAt.Equal(at) || !fresh {
		t.Errorf("got %s %v %v", payload, updatedAt, fresh)
	}

	// another user misses L1
	if _, _, _, err := c.Fetch(context.Background(), 8, "2025-03-10"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if store.reads != 1 {
		t.Errorf("store reads = %d, want 1", store.reads)
	}
}

func TestPutLastWriterWins(t *testing.T) {
	store := newMemStore()
	now := time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)
	c := newTestCache(store, 0, &now)

	for _, p := range []string{`{"v":1}`, `{"v":2}`} {
		if _, err := c.Put(context.Background(), 1, "2025-03-10", []byte(p)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	payload, _, _, _ := c.Fetch(context.Background(), 1, "2025-03-10")
	if string(payload) != `{"v":2}` {
		t.Errorf("payload = %s", payload)
	}
}

func TestPutFailureDropsL1(t *testing.T) {
	store := newMemStore()
	now := time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)
	c := newTestCache(store, 1, &now)

	if _, err := c.Put(context.Background(), 1, "2025-03-10", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	store.failPut = true
	if _, err := c.Put(context.Background(), 1, "2025-03-10", []byte(`{"v":2}`)); err == nil {
		t.Fatal("expected error")
	}
	payload, _, _, _ := c.Fetch(context.Background(), 1, "2025-03-10")
	if string(payload) != `{"v":1}` {
		t.Errorf("payload = %s, want the stored row", payload)
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "2025-03-10"},   // Monday
		{time.Date(2025, 3, 16, 23, 59, 0, 0, time.UTC), "2025-03-10"}, // Sunday
		{time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC), "2025-03-10"},
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2024-12-30"},
		// 01:00 Monday in UTC+3 is still Sunday in UTC
		{time.Date(2025, 3, 17, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)), "2025-03-10"},
	}
	for _, tt := range tests {
		if got := WeekKey(tt.in); got != tt.want {
			t.Errorf("WeekKey(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if got := WeekEnd(WeekStart(tests[0].in)).Format(DateLayout); got != "2025-03-16" {
		t.Errorf("WeekEnd = %s", got)
	}
}

func TestParseWeek(t *testing.T) {
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want string
	}{
		{"", "2025-03-10"},
		{"2025-02-05", "2025-02-03"},
		{"2025-02-05T10:00:00Z", "2025-02-03"},
		{"2025-03-09T22:00:00-05:00", "2025-03-10"},
		{"2025-03-10T01:00:00+03:00", "2025-03-03"},
		{"2025-02-05T10:00:00", "2025-02-03"},
		{"not a date", "2025-03-10"},
	}
	for _, tt := range tests {
		if got := ParseWeek(tt.in, now).Format(DateLayout); got != tt.want {
			t.Errorf("ParseWeek(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
