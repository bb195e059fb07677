// Package volume turns decoded sessions and exercise mappings into weekly
// per-muscle set-equivalents.
package volume

import (
	"math"

	"github.com/irontracks/musclemap/internal/session"
)

// EstimatedEffort is the effort assumed for planned sets that were never
// logged.
const EstimatedEffort = 0.70

// Effort returns the intensity multiplier for a completed set. RIR wins
// over RPE when both are present; a set with neither counts in full.
func Effort(l session.SetLog) float64 {
	if v, ok := finite(l.RIR); ok {
		switch {
		case v <= 1:
			return 1.0
		case v <= 3:
			return 0.85
		case v <= 4:
			return 0.70
		default:
			return 0.50
		}
	}
	if v, ok := finite(l.RPE); ok {
		switch {
		case v >= 9:
			return 1.0
		case v >= 8:
			return 0.90
		case v >= 7:
			return 0.80
		case v >= 6:
			return 0.70
		default:
			return 0.60
		}
	}
	return 1.0
}

func finite(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}
