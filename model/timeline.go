package model

import (
	"sort"
)

// TempoChange takes effect at the start of Bar (1-indexed), which begins at
// Time seconds.
type TempoChange struct {
	Bar            int     `json:"bar"`
	Time           float64 `json:"time"`
	SecondsPerBeat float64 `json:"seconds_per_beat"`
}

func (t TempoChange) BPM() float64 {
	if t.SecondsPerBeat <= 0 {
		return 0
	}
	return 60 / t.SecondsPerBeat
}

// TimeSignature starts a region of bars that all have BeatsPerBar beats.
// BeatsPerBar is counted in quarter notes, so 6/8 is 3.
type TimeSignature struct {
	Bar            int     `json:"bar"`
	Time           float64 `json:"time"`
	Numerator      int     `json:"numerator"`
	Denominator    int     `json:"denominator"`
	BeatsPerBar    float64 `json:"beats_per_bar"`
	SecondsPerBeat float64 `json:"seconds_per_beat"`
}

// Timeline is read-only once a session starts. It may be shared between the
// update loop and any number of readers.
type Timeline struct {
	Title          string          `json:"title"`
	Notes          []NoteEvent     `json:"notes"`
	TempoChanges   []TempoChange   `json:"tempo_changes"`
	TimeSignatures []TimeSignature `json:"time_signatures"`
	TicksPerBeat   int             `json:"ticks_per_beat"`
	Duration       float64         `json:"duration"`
}

// NewTimeline sorts its inputs and derives Duration.
func NewTimeline(title string, notes []NoteEvent, tempos []TempoChange, sigs []TimeSignature) *Timeline {
	t := &Timeline{
		Title:          title,
		Notes:          notes,
		TempoChanges:   tempos,
		TimeSignatures: sigs,
	}
	t.Normalize()
	return t
}

// Normalize restores the ordering invariants and recomputes Duration.
func (t *Timeline) Normalize() {
	sort.SliceStable(t.Notes, func(i, j int) bool {
		return t.Notes[i].StartTime < t.Notes[j].StartTime
	})
	sort.SliceStable(t.TempoChanges, func(i, j int) bool {
		return t.TempoChanges[i].Bar < t.TempoChanges[j].Bar
	})
	sort.SliceStable(t.TimeSignatures, func(i, j int) bool {
		return t.TimeSignatures[i].Bar < t.TimeSignatures[j].Bar
	})
	t.Duration = EndOf(t.Notes)
}

// EndOf returns the latest end time among notes, or 0.
func EndOf(notes []NoteEvent) float64 {
	var end float64
	for _, n := range notes {
		if e := n.EndTime(); e > end {
			end = e
		}
	}
	return end
}

// IndexAtOrAfter returns the index of the first note starting at or after
// time (len(Notes) if none).
func (t *Timeline) IndexAtOrAfter(time float64) int {
	return sort.Search(len(t.Notes), func(i int) bool {
		return t.Notes[i].StartTime >= time
	})
}

// SplitHands returns one timeline per hand. Notes without a hand go right.
func SplitHands(t *Timeline) (left *Timeline, right *Timeline) {
	var l, r []NoteEvent
	for _, n := range t.Notes {
		if n.Hand == HandLeft {
			l = append(l, n)
		} else {
			r = append(r, n)
		}
	}
	left = NewTimeline(t.Title, l, append([]TempoChange(nil), t.TempoChanges...), append([]TimeSignature(nil), t.TimeSignatures...))
	right = NewTimeline(t.Title, r, append([]TempoChange(nil), t.TempoChanges...), append([]TimeSignature(nil), t.TimeSignatures...))
	left.TicksPerBeat = t.TicksPerBeat
	right.TicksPerBeat = t.TicksPerBeat
	return left, right
}
