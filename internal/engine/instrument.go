package engine

import (
	"context"
	"time"

	"github.com/irontracks/musclemap/internal/ai"
	"github.com/irontracks/musclemap/internal/metrics"
)

type instrumented struct {
	next    ai.Completer
	purpose string
	m       *metrics.Manager
}

func (c instrumented) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := c.next.Complete(ctx, prompt)
	c.m.HistogramAIDuration.WithLabelValues(c.purpose).Observe(time.Since(start).Seconds())
	c.m.CounterAICalls.WithLabelValues(c.purpose, ai.StatusFor(err)).Inc()
	return text, err
}
