package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/timeline"
	"github.com/jsphweid/keyfall/util"
)

const (
	MinLevel = 1
	MaxLevel = 18

	hardestBarCount = 5
)

type Factor struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Report rates a timeline on a 1-18 scale, the span of the usual graded
// piano syllabi.
type Report struct {
	Level       int      `json:"level"`
	Label       string   `json:"label"`
	Factors     []Factor `json:"factors"`
	HardestBars []int    `json:"hardest_bars"`
	Description string   `json:"description"`
}

type factorFunc func(t *model.Timeline, c timeline.Converter) float64

// weights sum to 1
var factors = []struct {
	name   string
	weight float64
	score  factorFunc
}{
	{"note density", 0.20, noteDensity},
	{"pitch range", 0.08, pitchRange},
	{"hand independence", 0.18, handIndependence},
	{"interval complexity", 0.12, intervalComplexity},
	{"rhythmic complexity", 0.15, rhythmicComplexity},
	{"tempo", 0.10, tempo},
	{"key complexity", 0.07, keyComplexity},
	{"chord density", 0.10, chordDensity},
}

func Label(level int) string {
	switch {
	case level <= 3:
		return "Beginner"
	case level <= 6:
		return "Early Intermediate"
	case level <= 9:
		return "Intermediate"
	case level <= 12:
		return "Late Intermediate"
	case level <= 15:
		return "Advanced"
	default:
		return "Expert"
	}
}

// Estimate scores every factor in [0, 1], maps their weighted sum onto the
// level scale and picks out the bars that are locally hardest.
func Estimate(t *model.Timeline, c timeline.Converter) Report {
	var r Report
	sum := 0.0
	for _, f := range factors {
		score := util.Clamp(f.score(t, c), 0, 1)
		r.Factors = append(r.Factors, Factor{Name: f.name, Score: score, Weight: f.weight})
		sum += score * f.weight
	}
	r.Level = util.Clamp(int(math.Round(sum*(MaxLevel-MinLevel)))+MinLevel, MinLevel, MaxLevel)
	r.Label = Label(r.Level)
	r.HardestBars = HardestBars(t, c, hardestBarCount)
	r.Description = describe(r)
	return r
}

func describe(r Report) string {
	top := append([]Factor(nil), r.Factors...)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Score > top[j].Score
	})
	var challenges []string
	for _, f := range top[:util.Min(3, len(top))] {
		challenges = append(challenges, fmt.Sprintf("%s (%.0f%%)", f.Name, f.Score*100))
	}
	res := fmt.Sprintf("Level %d/%d (%s). Primary challenges: %s.",
		r.Level, MaxLevel, r.Label, strings.Join(challenges, ", "))
	if len(r.HardestBars) > 0 {
		bars := make([]string, len(r.HardestBars))
		for i, b := range r.HardestBars {
			bars[i] = fmt.Sprint(b)
		}
		res += fmt.Sprintf(" Hardest bars: %s.", strings.Join(bars, ", "))
	}
	return res
}

// HardestBars ranks bars by onsets per second plus their widest leap and
// returns at most n of them, hardest first. Empty bars are never listed.
func HardestBars(t *model.Timeline, c timeline.Converter, n int) []int {
	type scored struct {
		bar   int
		score float64
	}
	var bars []scored
	last := c.LastBar(t.Duration)
	for bar := 1; bar <= last; bar++ {
		notes := notesInBars(t, c, bar, bar)
		length := barLength(c, bar, bar)
		if len(notes) == 0 || length <= 0 {
			continue
		}
		density := float64(len(notes)) / length
		bars = append(bars, scored{bar, density*0.7 + float64(maxStep(notes))/24*0.3})
	}
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].score > bars[j].score
	})

	var res []int
	for _, b := range bars[:util.Min(n, len(bars))] {
		res = append(res, b.bar)
	}
	return res
}

// maxStep is the widest interval between consecutive notes.
func maxStep(notes []model.NoteEvent) int {
	res := 0
	for i := 1; i < len(notes); i++ {
		res = util.Max(res, absInt(int(notes[i].Pitch)-int(notes[i-1].Pitch)))
	}
	return res
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// noteDensity: the busier hand, 1 note/s scores 0 and 8 notes/s scores 1.
func noteDensity(t *model.Timeline, _ timeline.Converter) float64 {
	if t.Duration <= 0 {
		return 0
	}
	left, right := byHand(t.Notes)
	busiest := float64(util.Max(len(left), len(right))) / t.Duration
	return (busiest - 1) / 7
}

// pitchRange: one octave scores 0, five more octaves score 1.
func pitchRange(t *model.Timeline, _ timeline.Converter) float64 {
	if len(t.Notes) == 0 {
		return 0
	}
	lo, hi := t.Notes[0].Pitch, t.Notes[0].Pitch
	for _, n := range t.Notes {
		lo, hi = util.Min(lo, n.Pitch), util.Max(hi, n.Pitch)
	}
	return float64(int(hi)-int(lo)-12) / 48
}

// handIndependence compares the onsets of both hands in 50ms buckets. Both
// hands busy at the same moments with a similar amount of work scores high.
func handIndependence(t *model.Timeline, _ timeline.Converter) float64 {
	left, right := byHand(t.Notes)
	lb, rb := onsetBuckets(left, 0.05), onsetBuckets(right, 0.05)
	if len(lb) == 0 || len(rb) == 0 {
		return 0
	}
	overlap := 0
	union := len(lb)
	for b := range rb {
		if lb[b] > 0 {
			overlap++
		} else {
			union++
		}
	}
	size := float64(util.Min(len(lb), len(rb))) / float64(util.Max(len(lb), len(rb)))
	return float64(overlap) / float64(union) * size * 2
}

func onsetBuckets(notes []model.NoteEvent, width float64) map[int]int {
	res := map[int]int{}
	for _, n := range notes {
		res[int(math.Round(n.StartTime/width))]++
	}
	return res
}

// intervalComplexity: share of leaps wider than an octave within a hand;
// one in five scores 1.
func intervalComplexity(t *model.Timeline, _ timeline.Converter) float64 {
	left, right := byHand(t.Notes)
	leaps, total := 0, 0
	for _, notes := range [][]model.NoteEvent{left, right} {
		for i := 1; i < len(notes); i++ {
			total++
			if absInt(int(notes[i].Pitch)-int(notes[i-1].Pitch)) > 12 {
				leaps++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(leaps) / float64(total) * 5
}

// rhythmicComplexity mixes the variety of note lengths with the share of
// onsets off the beat and off the half beat.
func rhythmicComplexity(t *model.Timeline, c timeline.Converter) float64 {
	if len(t.Notes) == 0 {
		return 0
	}
	lengths := map[int64]bool{}
	offbeat := 0
	for _, n := range t.Notes {
		lengths[int64(math.Round(n.Duration*1000))] = true

		bar := c.BarAt(n.StartTime)
		beat := c.SecondsPerBeat(bar)
		if beat <= 0 {
			continue
		}
		pos := math.Mod(n.StartTime-c.BarStartTime(bar), beat) / beat
		if pos > 0.1 && math.Abs(pos-0.5) > 0.1 && pos < 0.9 {
			offbeat++
		}
	}
	variety := math.Min(1, float64(len(lengths))/12)
	syncopation := float64(offbeat) / float64(len(t.Notes))
	return variety*0.5 + syncopation*0.5
}

// tempo: 60 BPM scores 0, 180 BPM scores 1.
func tempo(_ *model.Timeline, c timeline.Converter) float64 {
	spb := c.SecondsPerBeat(1)
	if spb <= 0 {
		return 0
	}
	return (60/spb - 60) / 120
}

// keyComplexity: seven pitch classes score 0, all twelve score 1.
func keyComplexity(t *model.Timeline, _ timeline.Converter) float64 {
	var classes [12]bool
	distinct := 0
	for _, n := range t.Notes {
		if !classes[n.Pitch%12] {
			classes[n.Pitch%12] = true
			distinct++
		}
	}
	if distinct == 0 {
		return 0
	}
	return float64(distinct-7) / 5
}

// chordDensity: average notes per 10ms onset; single notes score 0 and six
// note chords score 1.
func chordDensity(t *model.Timeline, _ timeline.Converter) float64 {
	onsets := onsetBuckets(t.Notes, 0.01)
	if len(onsets) == 0 {
		return 0
	}
	return (float64(len(t.Notes))/float64(len(onsets)) - 1) / 5
}
