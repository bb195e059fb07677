// Package ratelimit bounds how often a user may trigger AI work.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v9"
)

// Limiter decides whether key may proceed. retryAfter is meaningful only
// when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RequestRateLimiter is the subset of *redis_rate.Limiter used here.
type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// Redis limits per key with a shared GCRA limiter, so all instances see the
// same budget.
type Redis struct {
	limiter RequestRateLimiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedis creates a limiter allowing perMinute calls per key.
func NewRedis(limiter RequestRateLimiter, perMinute int) *Redis {
	return &Redis{limiter: limiter, limit: redis_rate.PerMinute(perMinute), prefix: "musclemap:ai:"}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := r.limiter.Allow(ctx, r.prefix+key, r.limit)
	if err != nil {
		return false, 0, fmt.Errorf("checking rate limit: %w", err)
	}
	if res.Allowed > 0 {
		return true, 0, nil
	}
	return false, res.RetryAfter, nil
}

// Local is an in-memory per-key token bucket for single-instance setups.
// Stale buckets are dropped by a background sweep until Close is called.
type Local struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64 // tokens per second
	capacity float64
	now      func() time.Time

	done chan struct{}
	once sync.Once
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLocal creates a limiter allowing perMinute calls per key with bursts
// of up to perMinute.
func NewLocal(perMinute int) *Local {
	l := &Local{
		buckets:  map[string]*bucket{},
		rate:     float64(perMinute) / 60,
		capacity: float64(perMinute),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go l.sweep(5*time.Minute, 10*time.Minute)
	return l
}

func (l *Local) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.buckets[key] = b
	}
	b.tokens = min(b.tokens+now.Sub(b.last).Seconds()*l.rate, l.capacity)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0, nil
	}
	if l.rate <= 0 {
		return false, 0, nil
	}
	wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	return false, wait, nil
}

// Close stops the background sweep.
func (l *Local) Close() {
	l.once.Do(func() { close(l.done) })
}

func (l *Local) sweep(every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.mu.Lock()
			cutoff := l.now().Add(-idle)
			for key, b := range l.buckets {
				if b.last.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
