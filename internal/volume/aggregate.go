package volume

import (
	"cmp"
	"math"
	"slices"

	"github.com/irontracks/musclemap/internal/exercise"
	"github.com/irontracks/musclemap/internal/mapping"
	"github.com/irontracks/musclemap/internal/muscle"
	"github.com/irontracks/musclemap/internal/session"
)

// Result list limits.
const (
	TopMuscles          = 8
	TopExercises        = 5
	DefaultUnknownLimit = 25
	DiagnosticsLimit    = 40
)

// Mappings looks up the contributions for an exercise key.
// *mapping.Resolution satisfies it.
type Mappings interface {
	Contributions(key string) []mapping.Contribution
}

// MuscleVolume is one muscle's weekly total with its display attributes.
type MuscleVolume struct {
	Label   string      `json:"label"`
	Sets    float64     `json:"sets"`
	MinSets int         `json:"minSets"`
	MaxSets int         `json:"maxSets"`
	Ratio   float64     `json:"ratio"`
	Color   string      `json:"color"`
	View    muscle.View `json:"view"`
}

// RankedMuscle is an entry of the top muscles list.
type RankedMuscle struct {
	ID    muscle.ID `json:"id"`
	Label string    `json:"label"`
	Sets  float64   `json:"sets"`
}

// ExerciseShare is one exercise's contribution to a muscle.
type ExerciseShare struct {
	Name   string  `json:"name"`
	SetsEq float64 `json:"setsEq"`
}

// Diagnostics explains how much of the result was estimated or left out.
type Diagnostics struct {
	EstimatedSetsUsed          int      `json:"estimatedSetsUsed"`
	SessionsWithNoLogs         int      `json:"sessionsWithNoLogs"`
	ExercisesWithoutMapping    []string `json:"exercisesWithoutMapping"`
	ExercisesWithEstimatedSets []string `json:"exercisesWithEstimatedSets"`
}

// Result is the aggregated volume of a period.
type Result struct {
	Muscles              map[muscle.ID]MuscleVolume    `json:"muscles"`
	TopMuscles           []RankedMuscle                `json:"topMuscles"`
	TopExercisesByMuscle map[muscle.ID][]ExerciseShare `json:"topExercisesByMuscle"`
	UnknownExercises     []string                      `json:"unknownExercises"`
	Diagnostics          Diagnostics                   `json:"diagnostics"`
}

// Aggregator accumulates set-equivalents at full precision; rounding only
// happens in Result.
type Aggregator struct {
	unknownLimit int

	sets map[muscle.ID]float64
	// byExercise is keyed by exercise key; names holds the first display
	// name seen for each key.
	byExercise map[muscle.ID]map[string]float64
	names      map[string]string

	unknown        orderedSet
	withoutMapping orderedSet
	withEstimated  orderedSet
	estimated      int
	noLogs         int
}

// NewAggregator creates an empty aggregator. unknownLimit caps the unknown
// exercise list; non-positive means DefaultUnknownLimit.
func NewAggregator(unknownLimit int) *Aggregator {
	if unknownLimit <= 0 {
		unknownLimit = DefaultUnknownLimit
	}
	return &Aggregator{
		unknownLimit: unknownLimit,
		sets:         map[muscle.ID]float64{},
		byExercise:   map[muscle.ID]map[string]float64{},
		names:        map[string]string{},
	}
}

// AddSession adds the performed and remaining planned sets of s.
// Exercises with an empty name are skipped. Exercises without a mapping
// contribute nothing and are listed as unknown.
func (a *Aggregator) AddSession(s *session.Session, m Mappings) {
	if s == nil {
		return
	}
	if s.NoLogs() {
		a.noLogs++
	}
	for _, w := range s.Work() {
		if len(w.Done) == 0 && w.Remaining == 0 {
			continue
		}
		name, key := exercise.Resolve(w.Name)
		if key == "" {
			continue
		}
		if _, ok := a.names[key]; !ok {
			a.names[key] = name
		}
		name = a.names[key]
		contribs := m.Contributions(key)
		if len(contribs) == 0 {
			a.unknown.add(key, name)
			a.withoutMapping.add(key, name)
			continue
		}
		for _, l := range w.Done {
			a.add(key, contribs, Effort(l))
		}
		if w.Remaining > 0 {
			a.estimated += w.Remaining
			a.withEstimated.add(key, name)
			a.add(key, contribs, float64(w.Remaining)*EstimatedEffort)
		}
	}
}

func (a *Aggregator) add(key string, contribs []mapping.Contribution, factor float64) {
	for _, c := range contribs {
		if _, ok := muscle.Lookup(c.MuscleID); !ok {
			continue
		}
		v := factor * c.Weight
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			continue
		}
		a.sets[c.MuscleID] += v
		ex := a.byExercise[c.MuscleID]
		if ex == nil {
			ex = map[string]float64{}
			a.byExercise[c.MuscleID] = ex
		}
		ex[key] += v
	}
}

// Result rounds and ranks the accumulated totals. Every catalog muscle is
// present in Muscles and TopExercisesByMuscle.
func (a *Aggregator) Result() *Result {
	r := &Result{
		Muscles:              make(map[muscle.ID]MuscleVolume, len(muscle.Groups)),
		TopExercisesByMuscle: make(map[muscle.ID][]ExerciseShare, len(muscle.Groups)),
		UnknownExercises:     a.unknown.first(a.unknownLimit),
		Diagnostics: Diagnostics{
			EstimatedSetsUsed:          a.estimated,
			SessionsWithNoLogs:         a.noLogs,
			ExercisesWithoutMapping:    a.withoutMapping.first(DiagnosticsLimit),
			ExercisesWithEstimatedSets: a.withEstimated.first(DiagnosticsLimit),
		},
	}

	ranked := make([]RankedMuscle, 0, len(muscle.Groups))
	for _, g := range muscle.Groups {
		sets := a.sets[g.ID]
		ratio := muscle.Ratio(sets, g)
		r.Muscles[g.ID] = MuscleVolume{
			Label:   g.Label,
			Sets:    round(sets, 1),
			MinSets: g.MinSets,
			MaxSets: g.MaxSets,
			Ratio:   round(ratio, 2),
			Color:   muscle.Color(ratio),
			View:    g.View,
		}
		ranked = append(ranked, RankedMuscle{ID: g.ID, Label: g.Label, Sets: sets})
		r.TopExercisesByMuscle[g.ID] = topExercises(a.byExercise[g.ID], a.names)
	}

	// stable: ties keep catalog order
	slices.SortStableFunc(ranked, func(x, y RankedMuscle) int {
		return cmp.Compare(y.Sets, x.Sets)
	})
	ranked = ranked[:min(TopMuscles, len(ranked))]
	for i := range ranked {
		ranked[i].Sets = round(ranked[i].Sets, 1)
	}
	r.TopMuscles = ranked
	return r
}

func topExercises(m map[string]float64, names map[string]string) []ExerciseShare {
	out := make([]ExerciseShare, 0, len(m))
	for key, v := range m {
		out = append(out, ExerciseShare{Name: names[key], SetsEq: v})
	}
	slices.SortFunc(out, func(x, y ExerciseShare) int {
		if c := cmp.Compare(y.SetsEq, x.SetsEq); c != 0 {
			return c
		}
		return cmp.Compare(x.Name, y.Name)
	})
	out = out[:min(TopExercises, len(out))]
	for i := range out {
		out[i].SetsEq = round(out[i].SetsEq, 1)
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// orderedSet keeps the names of distinct keys in first-seen order.
type orderedSet struct {
	seen  map[string]bool
	items []string
}

func (s *orderedSet) add(key, name string) {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.items = append(s.items, name)
}

func (s *orderedSet) first(n int) []string {
	out := make([]string, 0, min(n, len(s.items)))
	return append(out, s.items[:min(n, len(s.items))]...)
}
