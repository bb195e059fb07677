package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decode parses a stored session document. The document is the JSON object
// kept in a workout's notes column; a JSON string wrapping that object is
// accepted too. Malformed exercises and log entries are skipped rather than
// failing the whole session.
func Decode(raw []byte) (*Session, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty session document")
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decoding wrapped session: %w", err)
		}
		raw = []byte(strings.TrimSpace(inner))
	}

	var doc struct {
		Exercises json.RawMessage `json:"exercises"`
		Logs      json.RawMessage `json:"logs"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}

	s := &Session{}

	var exercises []json.RawMessage
	if json.Unmarshal(doc.Exercises, &exercises) == nil {
		for _, rawEx := range exercises {
			var ex wireExercise
			if json.Unmarshal(rawEx, &ex) != nil {
				s.Exercises = append(s.Exercises, Exercise{})
				continue
			}
			s.Exercises = append(s.Exercises, Exercise{
				Name:    strings.TrimSpace(string(ex.Name)),
				Planned: ex.planned(),
			})
		}
	}

	var logs map[string]json.RawMessage
	if json.Unmarshal(doc.Logs, &logs) == nil {
		s.LogEntries = len(logs)
		for key, rawLog := range logs {
			exIdx, setIdx, ok := parseLogKey(key)
			if !ok || exIdx >= len(s.Exercises) {
				continue
			}
			var l wireLog
			if json.Unmarshal(rawLog, &l) != nil {
				continue
			}
			s.Exercises[exIdx].SetLogAt(setIdx, l.setLog())
		}
	}

	return s, nil
}

// UnmarshalJSON implements json.Unmarshaler using Decode.
func (s *Session) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// MarshalJSON writes the stored document form: an exercises array and a
// log map keyed "<exerciseIndex>-<setIndex>".
func (s Session) MarshalJSON() ([]byte, error) {
	type outExercise struct {
		Name string `json:"name"`
		Sets int    `json:"sets"`
	}
	type outLog struct {
		Weight *float64 `json:"weight,omitempty"`
		Reps   *float64 `json:"reps,omitempty"`
		RPE    *float64 `json:"rpe,omitempty"`
		RIR    *float64 `json:"rir,omitempty"`
		Done   bool     `json:"done"`
		Warmup bool     `json:"is_warmup,omitempty"`
	}
	doc := struct {
		Exercises []outExercise     `json:"exercises"`
		Logs      map[string]outLog `json:"logs"`
	}{
		Exercises: make([]outExercise, 0, len(s.Exercises)),
		Logs:      map[string]outLog{},
	}
	for i, ex := range s.Exercises {
		doc.Exercises = append(doc.Exercises, outExercise{Name: ex.Name, Sets: ex.Planned})
		for j, l := range ex.Sets {
			if l == nil {
				continue
			}
			doc.Logs[fmt.Sprintf("%d-%d", i, j)] = outLog{
				Weight: l.Weight,
				Reps:   l.Reps,
				RPE:    l.RPE,
				RIR:    l.RIR,
				Done:   l.Done,
				Warmup: l.Warmup,
			}
		}
	}
	return json.Marshal(doc)
}

// parseLogKey splits "3-1" into (3, 1).
func parseLogKey(key string) (exIdx, setIdx int, ok bool) {
	a, b, found := strings.Cut(strings.TrimSpace(key), "-")
	if !found {
		return 0, 0, false
	}
	exIdx, err := strconv.Atoi(a)
	if err != nil || exIdx < 0 {
		return 0, 0, false
	}
	setIdx, err = strconv.Atoi(b)
	if err != nil || setIdx < 0 || setIdx >= maxSetIndex {
		return 0, 0, false
	}
	return exIdx, setIdx, true
}

type wireExercise struct {
	Name      flexString      `json:"name"`
	Sets      json.RawMessage `json:"sets"`
	SetsCount json.RawMessage `json:"setsCount"`
	SetCount  json.RawMessage `json:"setCount"`
}

// planned counts planned working sets: the length of a sets array (minus
// entries flagged as warm-up), else the first numeric count field present.
func (e wireExercise) planned() int {
	for _, raw := range []json.RawMessage{e.Sets, e.SetsCount, e.SetCount} {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		if raw[0] == '[' {
			var items []json.RawMessage
			if json.Unmarshal(raw, &items) != nil {
				return 0
			}
			n := 0
			for _, it := range items {
				var flags struct {
					Warmup   flexBool `json:"is_warmup"`
					WarmupCC flexBool `json:"isWarmup"`
				}
				if json.Unmarshal(it, &flags) == nil && (flags.Warmup || flags.WarmupCC) {
					continue
				}
				n++
			}
			return n
		}
		var n FlexNumber
		if json.Unmarshal(raw, &n) != nil || n.Value == nil || *n.Value <= 0 {
			return 0
		}
		return int(math.Floor(*n.Value))
	}
	return 0
}

type wireLog struct {
	Weight    FlexNumber `json:"weight"`
	Reps      FlexNumber `json:"reps"`
	RPE       FlexNumber `json:"rpe"`
	RIR       FlexNumber `json:"rir"`
	Done      flexBool   `json:"done"`
	IsDone    flexBool   `json:"isDone"`
	Completed flexBool   `json:"completed"`
	Warmup    flexBool   `json:"is_warmup"`
	WarmupCC  flexBool   `json:"isWarmup"`
}

func (l wireLog) setLog() SetLog {
	return SetLog{
		Weight: l.Weight.Value,
		Reps:   l.Reps.Value,
		RPE:    l.RPE.Value,
		RIR:    l.RIR.Value,
		Done:   bool(l.Done || l.IsDone || l.Completed),
		Warmup: bool(l.Warmup || l.WarmupCC),
	}
}

// FlexNumber accepts a JSON number or a numeric string with either decimal
// separator. Empty, unparseable and non-finite values decode as absent.
type FlexNumber struct {
	Value *float64
}

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	n.Value = nil
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
	} else {
		s = string(data)
	}
	if f, ok := ParseNumber(s); ok {
		n.Value = &f
	}
	return nil
}

// ParseNumber parses s as a decimal number, accepting a comma as decimal
// separator. It reports false for empty or non-finite input.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" || s == "null" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// flexBool accepts booleans, non-zero numbers, and the strings true/1/yes/sim.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	*b = false
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case bool:
		*b = flexBool(t)
	case float64:
		*b = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "sim":
			*b = true
		}
	}
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		*s = flexString(t)
	case float64:
		*s = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	}
	return nil
}
