package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHand(t *testing.T) {
	tests := []struct {
		in   string
		want Hand
		ok   bool
	}{
		{"left", HandLeft, true},
		{"r", HandRight, true},
		{"", HandBoth, true},
		{"both", HandBoth, true},
		{"feet", HandBoth, false},
	}
	for _, tt := range tests {
		got, ok := ParseHand(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestHandMatches(t *testing.T) {
	assert := assert.New(t)
	assert.True(HandLeft.Matches(HandBoth))
	assert.True(HandLeft.Matches(HandLeft))
	assert.False(HandLeft.Matches(HandRight))
	// untagged notes are only required when both hands are practiced
	assert.False(HandBoth.Matches(HandRight))
}

func TestNewTimelineSortsAndMeasures(t *testing.T) {
	tl := NewTimeline("t", []NoteEvent{
		{Pitch: 64, StartTime: 1, Duration: 2},
		{Pitch: 60, StartTime: 0, Duration: 0.5},
		{Pitch: 67, StartTime: 1, Duration: 0.5},
	}, nil, nil)

	assert := assert.New(t)
	assert.Equal([]uint8{60, 64, 67}, []uint8{tl.Notes[0].Pitch, tl.Notes[1].Pitch, tl.Notes[2].Pitch})
	assert.Equal(3.0, tl.Duration)
	assert.Equal(1, tl.IndexAtOrAfter(0.5))
	assert.Equal(3, tl.IndexAtOrAfter(1.5))
}

func TestSplitHands(t *testing.T) {
	tl := NewTimeline("t", []NoteEvent{
		{Pitch: 48, StartTime: 0, Duration: 2, Hand: HandLeft},
		{Pitch: 60, StartTime: 0, Duration: 1, Hand: HandRight},
		{Pitch: 62, StartTime: 1, Duration: 1},
	}, []TempoChange{{Bar: 1, SecondsPerBeat: 0.5}}, nil)
	tl.TicksPerBeat = 480

	left, right := SplitHands(tl)

	assert := assert.New(t)
	require.Len(t, left.Notes, 1)
	require.Len(t, right.Notes, 2)
	assert.Equal(uint8(48), left.Notes[0].Pitch)
	assert.Equal(2.0, left.Duration)
	assert.Equal(2.0, right.Duration)
	assert.Equal(480, right.TicksPerBeat)

	left.TempoChanges[0].SecondsPerBeat = 1
	assert.Equal(0.5, tl.TempoChanges[0].SecondsPerBeat)
}

func TestSessionStatsRecord(t *testing.T) {
	var s SessionStats
	n := NoteEvent{Pitch: 60}
	for _, g := range []HitGrade{Perfect, Good, OK, Miss, Perfect} {
		s.Record(HitResult{Grade: g, Expected: &n})
	}
	s.Record(HitResult{Grade: Miss, PlayedPitch: 61})

	assert := assert.New(t)
	assert.Equal(6, s.TotalNotes)
	assert.Equal(2, s.Missed)
	assert.Equal(1, s.Extra)
	assert.Equal(3, s.MaxStreak)
	assert.Equal(0, s.Streak)
	assert.InDelta(66.67, s.Accuracy(), 0.01)
	assert.Equal(0.0, SessionStats{}.Accuracy())
}

func TestHitGradeJSON(t *testing.T) {
	data, err := json.Marshal(map[HitGrade]int{Good: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"GOOD": 2}`, string(data))

	data, err = json.Marshal(HitResult{Grade: Miss, PlayedPitch: -1})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"grade":"MISS"`)
}
