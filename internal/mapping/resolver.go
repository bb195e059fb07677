package mapping

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"
)

// Store persists mapping rows. UpsertMapping must never replace an ai row
// with a heuristic one.
type Store interface {
	GetMappings(ctx context.Context, userID int, keys []string) (map[string]Entry, error)
	UpsertMapping(ctx context.Context, userID int, e Entry) error
}

// Item is an exercise waiting for a mapping.
type Item struct {
	Key           string
	CanonicalName string
}

// Strategy resolves some of the pending items. It returns what it found
// even when it also returns an error.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, userID int, items []Item) (map[string]Entry, error)
}

// Strategy names.
const (
	StrategyCache     = "cache"
	StrategyHeuristic = "heuristic"
	StrategyAI        = "ai"
)

// Resolution is the outcome of one pipeline run.
type Resolution struct {
	Entries    map[string]Entry
	Unresolved []Item
	// Resolved counts items settled by each strategy.
	Resolved map[string]int
	// Errors holds the error, if any, reported by each strategy.
	Errors map[string]error
}

// Contributions returns the contributions for key, or nil.
func (r *Resolution) Contributions(key string) []Contribution {
	return r.Entries[key].Mapping.Contributions
}

// Resolver runs strategies in order; the first strategy to resolve an item
// wins. Results of every strategy except the cache lookup are persisted.
type Resolver struct {
	store      Store
	log        *slog.Logger
	strategies []Strategy
}

// NewResolver creates a pipeline over the given strategies.
func NewResolver(store Store, log *slog.Logger, strategies ...Strategy) *Resolver {
	return &Resolver{store: store, log: log, strategies: strategies}
}

// Resolve settles as many items as the strategies allow. Strategy and
// persistence failures are recorded and logged but never abort the run.
func (r *Resolver) Resolve(ctx context.Context, userID int, items []Item) *Resolution {
	res := &Resolution{
		Entries:  map[string]Entry{},
		Resolved: map[string]int{},
		Errors:   map[string]error{},
	}

	pending := dedupe(items)
	for _, s := range r.strategies {
		if len(pending) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			res.Errors[s.Name()] = err
			break
		}

		found, err := s.Resolve(ctx, userID, pending)
		if err != nil {
			res.Errors[s.Name()] = err
			r.log.Warn("mapping strategy failed", "strategy", s.Name(), "pending", len(pending), "error", err)
		}

		var settled []Entry
		next := make([]Item, 0, len(pending))
		for _, it := range pending {
			e, ok := found[it.Key]
			if !ok || e.Mapping.Empty() {
				next = append(next, it)
				continue
			}
			res.Entries[it.Key] = e
			settled = append(settled, e)
		}
		pending = next
		res.Resolved[s.Name()] += len(settled)

		if s.Name() != StrategyCache {
			r.persist(ctx, userID, s.Name(), settled)
		}
	}
	res.Unresolved = pending
	return res
}

func (r *Resolver) persist(ctx context.Context, userID int, strategy string, entries []Entry) {
	if r.store == nil || len(entries) == 0 {
		return
	}
	var errs error
	for _, e := range entries {
		if err := r.store.UpsertMapping(ctx, userID, e); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", e.Key, err))
		}
	}
	if errs != nil {
		r.log.Warn("persisting mappings",
			"strategy", strategy,
			"failed", len(multierr.Errors(errs)),
			"total", len(entries),
			"error", errs,
		)
	}
}

func dedupe(items []Item) []Item {
	seen := make(map[string]bool, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Key == "" || seen[it.Key] {
			continue
		}
		seen[it.Key] = true
		out = append(out, it)
	}
	return out
}

// lookupChunk bounds the number of keys per cache query.
const lookupChunk = 400

// Cached resolves items from previously stored mappings.
type Cached struct {
	store Store
}

// NewCached creates the cache lookup strategy.
func NewCached(store Store) *Cached {
	return &Cached{store: store}
}

func (c *Cached) Name() string { return StrategyCache }

// Resolve returns stored rows that still carry at least one valid
// contribution once legacy muscle ids are coerced.
func (c *Cached) Resolve(ctx context.Context, userID int, items []Item) (map[string]Entry, error) {
	found := map[string]Entry{}
	for i := 0; i < len(items); i += lookupChunk {
		chunk := items[i:min(i+lookupChunk, len(items))]
		keys := make([]string, len(chunk))
		for j, it := range chunk {
			keys[j] = it.Key
		}
		rows, err := c.store.GetMappings(ctx, userID, keys)
		if err != nil {
			return found, fmt.Errorf("loading mappings: %w", err)
		}
		for k, e := range rows {
			e.Mapping.Contributions = Sanitize(e.Mapping.Contributions, true)
			if e.Mapping.Empty() {
				continue
			}
			found[k] = e
		}
	}
	return found, nil
}

// Heuristic resolves items with the built-in keyword rules.
type Heuristic struct{}

func (Heuristic) Name() string { return StrategyHeuristic }

func (Heuristic) Resolve(_ context.Context, _ int, items []Item) (map[string]Entry, error) {
	found := map[string]Entry{}
	for _, it := range items {
		m, ok := Classify(it.CanonicalName)
		if !ok {
			continue
		}
		found[it.Key] = Entry{
			Key:           it.Key,
			CanonicalName: it.CanonicalName,
			Mapping:       m,
			Source:        SourceHeuristic,
		}
	}
	return found, nil
}
