// Package mapping resolves exercises to weighted muscle contributions.
package mapping

import (
	"math"
	"strings"
	"time"

	"github.com/irontracks/musclemap/internal/muscle"
)

// Role describes how a muscle participates in an exercise.
type Role string

const (
	Primary    Role = "primary"
	Secondary  Role = "secondary"
	Stabilizer Role = "stabilizer"
)

// Source records which strategy produced a stored mapping.
type Source string

const (
	SourceHeuristic Source = "heuristic"
	SourceAI        Source = "ai"
)

// DefaultConfidence is used when a classifier gives no usable confidence.
const DefaultConfidence = 0.6

// maxNotes bounds the free-text notes kept on a mapping.
const maxNotes = 240

// Contribution is one muscle's share of an exercise.
type Contribution struct {
	MuscleID muscle.ID `json:"muscleId"`
	Weight   float64   `json:"weight"`
	Role     Role      `json:"role"`
}

// Mapping is the stored classification of one exercise. Weights of a
// non-empty mapping sum to 1.
type Mapping struct {
	Contributions []Contribution `json:"contributions"`
	Unilateral    bool           `json:"unilateral"`
	Confidence    float64        `json:"confidence"`
	Notes         string         `json:"notes,omitempty"`
}

// Empty reports a mapping with no contributions.
func (m Mapping) Empty() bool {
	return len(m.Contributions) == 0
}

// Entry is a mapping row keyed by (user, exercise key).
type Entry struct {
	Key           string    `json:"exercise_key"`
	CanonicalName string    `json:"canonical_name"`
	Mapping       Mapping   `json:"mapping"`
	Source        Source    `json:"source"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

// Sanitize drops contributions with unknown muscles or non-positive,
// non-finite weights, merges duplicates, and renormalizes weights to sum to
// 1. With coerce set, alias ids are mapped onto catalog ids first; without
// it, only exact catalog ids survive. The result is nil when nothing is left.
func Sanitize(in []Contribution, coerce bool) []Contribution {
	valid := make([]Contribution, 0, len(in))
	peak := 0.0
	for _, c := range in {
		id := c.MuscleID
		if coerce {
			var ok bool
			if id, ok = muscle.Coerce(string(c.MuscleID)); !ok {
				continue
			}
		} else if !muscle.Valid(string(id)) {
			continue
		}
		if math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) || c.Weight <= 0 {
			continue
		}
		role := Role(strings.ToLower(strings.TrimSpace(string(c.Role))))
		if role == "" {
			role = Primary
		}
		valid = append(valid, Contribution{MuscleID: id, Weight: c.Weight, Role: role})
		peak = math.Max(peak, c.Weight)
	}
	if len(valid) == 0 {
		return nil
	}

	// weights are scaled by the largest one first so huge finite inputs
	// cannot overflow the sum
	var out []Contribution
	index := map[muscle.ID]int{}
	sum := 0.0
	for _, c := range valid {
		w := c.Weight / peak
		if i, seen := index[c.MuscleID]; seen {
			out[i].Weight += w
		} else {
			index[c.MuscleID] = len(out)
			out = append(out, Contribution{MuscleID: c.MuscleID, Weight: w, Role: c.Role})
		}
		sum += w
	}
	if sum <= 0 {
		return nil
	}
	for i := range out {
		out[i].Weight /= sum
	}
	return out
}

// clampConfidence returns c when it lies in [0,1], else DefaultConfidence.
func clampConfidence(c *float64) float64 {
	if c == nil || math.IsNaN(*c) || *c < 0 || *c > 1 {
		return DefaultConfidence
	}
	return *c
}
