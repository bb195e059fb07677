// Package session models a workout session log: the exercises that were
// planned and the sets that were logged against them.
package session

// maxSetIndex bounds set positions accepted from stored logs.
const maxSetIndex = 256

// SetLog is one logged set. Numeric fields are nil when absent; absence is
// not the same as zero.
type SetLog struct {
	Weight *float64
	Reps   *float64
	RPE    *float64
	RIR    *float64
	Done   bool
	Warmup bool
}

// Completed reports whether the set counts as performed: an explicit done
// flag, or a positive rep count.
func (l SetLog) Completed() bool {
	return l.Done || (l.Reps != nil && *l.Reps > 0)
}

// Exercise is one exercise of a session with its logged sets, indexed by
// set position. A nil entry is a set that was never logged.
type Exercise struct {
	Name    string
	Planned int
	Sets    []*SetLog
}

// Log returns the set at position i, or nil.
func (e *Exercise) Log(i int) *SetLog {
	if i < 0 || i >= len(e.Sets) {
		return nil
	}
	return e.Sets[i]
}

// SetLogAt stores l at position i, growing Sets as needed.
func (e *Exercise) SetLogAt(i int, l SetLog) {
	if i < 0 || i >= maxSetIndex {
		return
	}
	for len(e.Sets) <= i {
		e.Sets = append(e.Sets, nil)
	}
	e.Sets[i] = &l
}

// Session is a decoded workout session.
type Session struct {
	Exercises []Exercise
	// LogEntries counts entries in the stored log map, including entries
	// that point at no exercise.
	LogEntries int
}

// NoLogs reports a session that has exercises but an empty log map.
func (s *Session) NoLogs() bool {
	return len(s.Exercises) > 0 && s.LogEntries == 0
}

// Work is the per-exercise outcome of a session.
type Work struct {
	Index int
	Name  string
	// Done holds completed, non-warm-up sets in position order.
	Done []SetLog
	// Logged counts non-warm-up sets present in the log, completed or not.
	Logged int
	// Remaining is planned minus logged, never negative.
	Remaining int
}

// Work splits every exercise into performed sets and remaining planned sets.
// Warm-ups are excluded from both sides.
func (s *Session) Work() []Work {
	out := make([]Work, 0, len(s.Exercises))
	for i := range s.Exercises {
		ex := &s.Exercises[i]
		w := Work{Index: i, Name: ex.Name}
		for _, l := range ex.Sets {
			if l == nil || l.Warmup {
				continue
			}
			w.Logged++
			if l.Completed() {
				w.Done = append(w.Done, *l)
			}
		}
		w.Remaining = max(0, ex.Planned-w.Logged)
		out = append(out, w)
	}
	return out
}
