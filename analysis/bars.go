// Package analysis looks at a timeline and at graded results after the fact:
// how hard a song is, where a player loses accuracy, what their timing
// habits are, and which bar ranges to loop next.
//
// Bars are 1-indexed and ranges are inclusive, the same convention
// session.SelectBars and session.LoopBars take.
package analysis

import (
	"sort"

	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/timeline"
)

// float slack for comparisons against bar lines
const epsilon = 1e-9

// BarStat is the grading summary of one bar.
type BarStat struct {
	Bar     int `json:"bar"`
	Total   int `json:"total"`
	Perfect int `json:"perfect"`
	Good    int `json:"good"`
	OK      int `json:"ok"`
	Missed  int `json:"missed"`
}

func (b BarStat) Hits() int {
	return b.Perfect + b.Good + b.OK
}

// Accuracy is a ratio in [0, 1]; a bar with nothing graded is 0.
func (b BarStat) Accuracy() float64 {
	if b.Total == 0 {
		return 0
	}
	return float64(b.Hits()) / float64(b.Total)
}

func (b *BarStat) add(o BarStat) {
	b.Total += o.Total
	b.Perfect += o.Perfect
	b.Good += o.Good
	b.OK += o.OK
	b.Missed += o.Missed
}

// BarAccuracy buckets results by the bar of their expected note. Extra
// presses have no note and are left out. Results of several loop passes
// over the same section fold into the same bars.
func BarAccuracy(c timeline.Converter, results []model.HitResult) []BarStat {
	byBar := map[int]*BarStat{}
	for _, r := range results {
		if r.Expected == nil {
			continue
		}
		bar := c.BarAt(r.Expected.StartTime)
		s, ok := byBar[bar]
		if !ok {
			s = &BarStat{Bar: bar}
			byBar[bar] = s
		}
		s.Total++
		switch r.Grade {
		case model.Perfect:
			s.Perfect++
		case model.Good:
			s.Good++
		case model.OK:
			s.OK++
		default:
			s.Missed++
		}
	}

	res := make([]BarStat, 0, len(byBar))
	for _, s := range byBar {
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Bar < res[j].Bar
	})
	return res
}

// RangeAccuracy sums the bars of stats inside [startBar, endBar].
func RangeAccuracy(stats []BarStat, startBar, endBar int) BarStat {
	res := BarStat{Bar: startBar}
	for _, s := range stats {
		if s.Bar >= startBar && s.Bar <= endBar {
			res.add(s)
		}
	}
	return res
}

// notesInBars returns the notes of t starting inside bars [startBar, endBar].
func notesInBars(t *model.Timeline, c timeline.Converter, startBar, endBar int) []model.NoteEvent {
	from := c.BarStartTime(startBar)
	to := c.BarStartTime(endBar + 1)
	var res []model.NoteEvent
	for _, n := range t.Notes[t.IndexAtOrAfter(from-epsilon):] {
		if n.StartTime >= to-epsilon {
			break
		}
		res = append(res, n)
	}
	return res
}

func barLength(c timeline.Converter, startBar, endBar int) float64 {
	return c.BarStartTime(endBar+1) - c.BarStartTime(startBar)
}

// byHand splits notes the way a player's hands see them. Unassigned notes
// belong to both.
func byHand(notes []model.NoteEvent) (left, right []model.NoteEvent) {
	for _, n := range notes {
		switch n.Hand {
		case model.HandLeft:
			left = append(left, n)
		case model.HandRight:
			right = append(right, n)
		default:
			left = append(left, n)
			right = append(right, n)
		}
	}
	return left, right
}
