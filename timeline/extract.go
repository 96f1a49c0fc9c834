package timeline

import (
	"errors"
	"fmt"

	"github.com/jsphweid/keyfall/model"
)

var ErrInvalidRange = errors.New("invalid bar range")

// float slack for comparisons against bar lines
const epsilon = 1e-9

// Section is a resolved bar range.
type Section struct {
	StartBar  int
	EndBar    int
	StartTime float64
	EndTime   float64
}

// Resolve clamps [startBar, endBar] to the bars of t and converts it to the
// half-open time range [StartTime, EndTime). startBar > endBar is rejected
// before any clamping.
func (c Converter) Resolve(t *model.Timeline, startBar, endBar int) (Section, error) {
	if startBar > endBar {
		return Section{}, fmt.Errorf("%w: start bar %d is after end bar %d", ErrInvalidRange, startBar, endBar)
	}
	last := c.LastBar(t.Duration)
	s := Section{
		StartBar: clampBar(startBar, last),
		EndBar:   clampBar(endBar, last),
	}
	s.StartTime = c.BarStartTime(s.StartBar)
	s.EndTime = c.BarStartTime(s.EndBar + 1)
	return s, nil
}

func clampBar(bar, last int) int {
	if bar < 1 {
		return 1
	}
	if bar > last {
		return last
	}
	return bar
}

// Extract returns a new timeline holding bars [startBar, endBar] of t,
// re-based so the section starts at zero. Notes starting inside the range are
// copied with their full durations. Tempo and time-signature entries inside
// the range are carried over, plus the tempo and signature in effect at its
// start re-based to bar 1.
// An empty section is not an error. Duration is the end of the last-ending
// note, so a section whose last note has zero length ends exactly at that
// note's start.
func Extract(t *model.Timeline, startBar, endBar int, defaultBeatsPerBar float64) (*model.Timeline, error) {
	c := NewConverter(t, defaultBeatsPerBar)
	s, err := c.Resolve(t, startBar, endBar)
	if err != nil {
		return nil, err
	}
	return c.Cut(t, s), nil
}

// Cut copies the notes and tempo metadata of a resolved section.
func (c Converter) Cut(t *model.Timeline, s Section) *model.Timeline {
	res := &model.Timeline{
		Title:        fmt.Sprintf("%s (bars %d-%d)", t.Title, s.StartBar, s.EndBar),
		TicksPerBeat: t.TicksPerBeat,
	}

	first := t.IndexAtOrAfter(s.StartTime - epsilon)
	for _, n := range t.Notes[first:] {
		if n.StartTime >= s.EndTime-epsilon {
			break
		}
		res.Notes = append(res.Notes, n.Shifted(-s.StartTime))
	}

	barOffset := s.StartBar - 1
	res.TempoChanges = append(res.TempoChanges, model.TempoChange{
		Bar:            1,
		SecondsPerBeat: c.SecondsPerBeat(s.StartBar),
	})
	for _, tc := range t.TempoChanges {
		if tc.Bar > s.StartBar && tc.Bar <= s.EndBar {
			tc.Bar -= barOffset
			tc.Time = c.BarStartTime(tc.Bar+barOffset) - s.StartTime
			res.TempoChanges = append(res.TempoChanges, tc)
		}
	}

	var sigAtStart *model.TimeSignature
	for _, ts := range t.TimeSignatures {
		switch {
		case ts.Bar <= s.StartBar:
			entry := ts
			sigAtStart = &entry
		case ts.Bar <= s.EndBar:
			ts.Bar -= barOffset
			ts.Time = c.BarStartTime(ts.Bar+barOffset) - s.StartTime
			res.TimeSignatures = append(res.TimeSignatures, ts)
		}
	}
	if sigAtStart != nil {
		sigAtStart.Bar = 1
		sigAtStart.Time = 0
		res.TimeSignatures = append([]model.TimeSignature{*sigAtStart}, res.TimeSignatures...)
	}

	res.Duration = model.EndOf(res.Notes)
	return res
}
