package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAndWork(t *testing.T) {
	raw := []byte(`{
		"exercises": [
			{"name": "Supino Reto", "sets": 4},
			{"name": "Rosca Direta", "sets": [{"reps": 10}, {"reps": 10}, {"is_warmup": true}]},
			{"name": "Leg Press", "setsCount": "3"}
		],
		"logs": {
			"0-0": {"weight": "80", "reps": "8", "rpe": "8", "done": true},
			"0-1": {"weight": 80, "reps": "7,5"},
			"0-2": {"weight": 80, "reps": 0},
			"1-0": {"weight": 10, "reps": 12, "isWarmup": true},
			"1-1": {"completed": "true"},
			"9-0": {"reps": 5},
			"bad": {"reps": 5},
			"2-x": {"reps": 5}
		}
	}`)

	s, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, s.Exercises, 3)
	assert.Equal(t, 8, s.LogEntries)
	assert.False(t, s.NoLogs())

	work := s.Work()
	require.Len(t, work, 3)

	// Supino: three non-warm-up entries logged, two completed, one planned set left.
	assert.Equal(t, "Supino Reto", work[0].Name)
	assert.Len(t, work[0].Done, 2)
	assert.Equal(t, 3, work[0].Logged)
	assert.Equal(t, 1, work[0].Remaining)
	require.NotNil(t, work[0].Done[0].RPE)
	assert.Equal(t, 8.0, *work[0].Done[0].RPE)
	assert.Equal(t, 7.5, *work[0].Done[1].Reps)

	// Rosca: the planned warm-up object and the logged warm-up are ignored.
	assert.Len(t, work[1].Done, 1)
	assert.Equal(t, 1, work[1].Logged)
	assert.Equal(t, 1, work[1].Remaining)

	// Leg press: nothing logged, everything remains.
	assert.Empty(t, work[2].Done)
	assert.Equal(t, 3, work[2].Remaining)
}

// TestRemainingSeparation covers 4 planned sets with 2 completed: two sets
// remain for estimation and two count as performed.
func TestRemainingSeparation(t *testing.T) {
	s, err := Decode([]byte(`{"exercises":[{"name":"Remada","sets":4}],"logs":{"0-0":{"reps":10,"done":true},"0-1":{"reps":9,"done":true}}}`))
	require.NoError(t, err)
	w := s.Work()[0]
	assert.Len(t, w.Done, 2)
	assert.Equal(t, 2, w.Remaining)
}

func TestRemainingNeverNegative(t *testing.T) {
	s, err := Decode([]byte(`{"exercises":[{"name":"Remada","sets":1}],"logs":{"0-0":{"reps":10},"0-1":{"reps":9},"0-2":{"reps":8}}}`))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Work()[0].Remaining)
}

func TestNoLogs(t *testing.T) {
	s, err := Decode([]byte(`{"exercises":[{"name":"Agachamento","sets":5}],"logs":{}}`))
	require.NoError(t, err)
	assert.True(t, s.NoLogs())

	empty, err := Decode([]byte(`{"exercises":[],"logs":{}}`))
	require.NoError(t, err)
	assert.False(t, empty.NoLogs(), "a session without exercises is not a no-log session")
}

func TestDecodeWrappedString(t *testing.T) {
	inner := `{"exercises":[{"name":"Barra Fixa","sets":3}],"logs":{"0-0":{"reps":"6"}}}`
	wrapped, err := json.Marshal(inner)
	require.NoError(t, err)

	s, err := Decode(wrapped)
	require.NoError(t, err)
	require.Len(t, s.Exercises, 1)
	assert.Equal(t, "Barra Fixa", s.Exercises[0].Name)
	assert.Len(t, s.Work()[0].Done, 1)
}

// TestDecodeTolerant verifies that malformed parts are skipped, not fatal.
func TestDecodeTolerant(t *testing.T) {
	s, err := Decode([]byte(`{"exercises":"nope","logs":[1,2]}`))
	require.NoError(t, err)
	assert.Empty(t, s.Exercises)
	assert.Equal(t, 0, s.LogEntries)

	s, err = Decode([]byte(`{"exercises":[42, {"name": 7, "sets": "abc"}],"logs":{"1-0":"x","1-1":{"reps":"NaN"}}}`))
	require.NoError(t, err)
	require.Len(t, s.Exercises, 2)
	assert.Equal(t, "", s.Exercises[0].Name)
	assert.Equal(t, "7", s.Exercises[1].Name)
	assert.Equal(t, 0, s.Exercises[1].Planned)
	w := s.Work()[1]
	assert.Empty(t, w.Done, "NaN reps are absent, not positive")
	assert.Equal(t, 1, w.Logged)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
	_, err = Decode(nil)
	assert.Error(t, err)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"8", 8, true},
		{"7,5", 7.5, true},
		{" 2.25 ", 2.25, true},
		{"", 0, false},
		{"abc", 0, false},
		{"Inf", 0, false},
		{"NaN", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, "ParseNumber(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseNumber(%q)", tt.in)
	}
}

// TestMarshalProducesStoredForm verifies the encoder writes the keyed log map
// that Decode reads back.
func TestMarshalProducesStoredForm(t *testing.T) {
	reps, rir := 8.0, 2.0
	var ex Exercise
	ex.Name = "Supino Reto"
	ex.Planned = 3
	ex.SetLogAt(1, SetLog{Reps: &reps, RIR: &rir, Done: true})

	data, err := json.Marshal(Session{Exercises: []Exercise{ex}})
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, string(doc["logs"]), `"0-1"`)

	var back Session
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back.Exercises, 1)
	assert.Nil(t, back.Exercises[0].Log(0))
	require.NotNil(t, back.Exercises[0].Log(1))
	assert.Equal(t, 2.0, *back.Exercises[0].Log(1).RIR)
	assert.Equal(t, 2, back.Work()[0].Remaining)
}
