// Package timeline maps between bars and seconds and cuts practice sections
// out of a timeline.
package timeline

import (
	"math"
	"sort"

	"github.com/jsphweid/keyfall/constants"
	"github.com/jsphweid/keyfall/model"
)

// region is a run of bars sharing one bar length.
type region struct {
	startBar       int
	startTime      float64
	beatsPerBar    float64
	secondsPerBeat float64
}

func (r region) barLength() float64 {
	return r.beatsPerBar * r.secondsPerBeat
}

// Converter holds the merged tempo / time-signature regions of a timeline.
// It is a value with no shared state; every method is O(regions).
type Converter struct {
	regions []region
}

type change struct {
	bar            int
	order          int
	beatsPerBar    float64
	secondsPerBeat float64
}

// NewConverter builds the region list. Bars before the first time signature
// use defaultBeatsPerBar; seconds per beat before the first tempo entry come
// from the earliest entry that carries one (120 BPM if none does).
func NewConverter(t *model.Timeline, defaultBeatsPerBar float64) Converter {
	if defaultBeatsPerBar <= 0 || math.IsNaN(defaultBeatsPerBar) {
		defaultBeatsPerBar = constants.DefaultBeatsPerBar
	}

	var changes []change
	for _, ts := range t.TimeSignatures {
		changes = append(changes, change{bar: ts.Bar, order: 0, beatsPerBar: ts.BeatsPerBar, secondsPerBeat: ts.SecondsPerBeat})
	}
	for _, tc := range t.TempoChanges {
		changes = append(changes, change{bar: tc.Bar, order: 1, secondsPerBeat: tc.SecondsPerBeat})
	}
	// at the same bar the tempo entry is applied after the signature
	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].bar != changes[j].bar {
			return changes[i].bar < changes[j].bar
		}
		return changes[i].order < changes[j].order
	})

	current := region{
		startBar:       1,
		beatsPerBar:    defaultBeatsPerBar,
		secondsPerBeat: nominalSecondsPerBeat(t),
	}
	var regions []region
	for _, c := range changes {
		bar := c.bar
		if bar < 1 {
			bar = 1
		}
		if bar > current.startBar {
			regions = append(regions, current)
			current.startTime += float64(bar-current.startBar) * current.barLength()
			current.startBar = bar
		}
		if c.beatsPerBar > 0 {
			current.beatsPerBar = c.beatsPerBar
		}
		if c.secondsPerBeat > 0 {
			current.secondsPerBeat = c.secondsPerBeat
		}
	}
	regions = append(regions, current)
	return Converter{regions: regions}
}

func nominalSecondsPerBeat(t *model.Timeline) float64 {
	for _, tc := range t.TempoChanges {
		if tc.SecondsPerBeat > 0 {
			return tc.SecondsPerBeat
		}
	}
	for _, ts := range t.TimeSignatures {
		if ts.SecondsPerBeat > 0 {
			return ts.SecondsPerBeat
		}
	}
	return constants.DefaultSecondsPerBeat
}

// regionForBar returns the last region starting at or before bar.
func (c Converter) regionForBar(bar int) region {
	r := c.regions[0]
	for _, next := range c.regions[1:] {
		if next.startBar > bar {
			break
		}
		r = next
	}
	return r
}

// BarStartTime returns the time in seconds at which bar (1-indexed) starts.
// Bars below 1 map to 0.
func (c Converter) BarStartTime(bar int) float64 {
	if bar <= 1 {
		return 0
	}
	r := c.regionForBar(bar)
	return r.startTime + float64(bar-r.startBar)*r.barLength()
}

// BarAt returns the bar containing time t. Negative times are in bar 1.
func (c Converter) BarAt(t float64) int {
	if t <= 0 || math.IsNaN(t) {
		return 1
	}
	r := c.regions[0]
	for _, next := range c.regions[1:] {
		if next.startTime > t {
			break
		}
		r = next
	}
	length := r.barLength()
	if length <= 0 {
		return r.startBar
	}
	// tolerate float drift when t sits exactly on a bar line
	bars := math.Floor((t-r.startTime)/length + 1e-9)
	return r.startBar + int(bars)
}

// LastBar returns the bar containing the final instant of a timeline that is
// duration seconds long. A timeline ending exactly on a bar line does not
// own the following bar.
func (c Converter) LastBar(duration float64) int {
	bar := c.BarAt(duration)
	if bar > 1 && c.BarStartTime(bar) >= duration-epsilon {
		bar--
	}
	return bar
}

// BeatsPerBar returns the bar length in beats at bar.
func (c Converter) BeatsPerBar(bar int) float64 {
	return c.regionForBar(bar).beatsPerBar
}

// SecondsPerBeat returns the beat length in effect at bar.
func (c Converter) SecondsPerBeat(bar int) float64 {
	return c.regionForBar(bar).secondsPerBeat
}

// BarStartTime is the one-shot form of Converter.BarStartTime.
func BarStartTime(t *model.Timeline, bar int, defaultBeatsPerBar float64) float64 {
	return NewConverter(t, defaultBeatsPerBar).BarStartTime(bar)
}
