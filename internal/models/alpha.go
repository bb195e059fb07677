package models

import "time"

// AlphaSession is one session of an Alpha Progression CSV export.
type AlphaSession struct {
	Name      string
	Date      time.Time
	Duration  string
	Exercises []AlphaExercise
}

// AlphaExercise is an exercise block of a session. TargetReps is the rep
// goal from the header, not a set count.
type AlphaExercise struct {
	Number     int
	Name       string
	Equipment  string
	TargetReps int
	Sets       []AlphaSet
}

// WorkingSets counts the non-warm-up sets of the exercise.
func (e AlphaExercise) WorkingSets() int {
	n := 0
	for _, s := range e.Sets {
		if !s.IsWarmup {
			n++
		}
	}
	return n
}

// AlphaSet is a single logged set. Warm-ups come from the header line and
// carry no RIR; RIR is nil when the cell was empty.
type AlphaSet struct {
	Number           int
	WeightKg         float64
	IsBodyweightPlus bool
	Reps             int
	RIR              *float64
	IsWarmup         bool
}
