package analysis

import (
	"fmt"
	"sort"

	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/timeline"
	"github.com/jsphweid/keyfall/util"
)

// Section is a bar range worth practicing on its own.
type Section struct {
	StartBar int        `json:"start_bar"`
	EndBar   int        `json:"end_bar"`
	Reason   string     `json:"reason"`
	Hand     model.Hand `json:"hand"`
	// measured accuracy, -1 when the range was picked from the score alone
	Accuracy float64 `json:"accuracy"`
}

type Step struct {
	StartBar    int        `json:"start_bar"`
	EndBar      int        `json:"end_bar"`
	Hand        model.Hand `json:"hand"`
	TempoPct    int        `json:"tempo_pct"`
	Repetitions int        `json:"repetitions"`
	Focus       string     `json:"focus"`
}

// TempoScale is the step's tempo as a playback multiplier.
func (s Step) TempoScale() float64 {
	return float64(s.TempoPct) / 100
}

type Plan struct {
	Title             string  `json:"title"`
	Steps             []Step  `json:"steps"`
	EstimatedSessions int     `json:"estimated_sessions"`
	MasteryPct        float64 `json:"mastery_pct"`
}

type PlanOptions struct {
	// accuracy goal as a ratio
	TargetAccuracy float64
	MaxSteps       int
	// bars per scanned window
	WindowBars int
	// a measured window below this accuracy is weak
	WeakAccuracy float64
	// windows with fewer graded notes are judged by the score alone
	MinGraded int
}

func DefaultPlanOptions() PlanOptions {
	return PlanOptions{
		TargetAccuracy: 0.95,
		MaxSteps:       8,
		WindowBars:     4,
		WeakAccuracy:   0.8,
		MinGraded:      4,
	}
}

const (
	// sessions of history that count towards mastery
	recentSessions = 5
	minTempoPct    = 40
	denseNPS       = 4.0
	wideLeap       = 12
	busyHandNotes  = 2
)

// WeakSections scans t in windows of o.WindowBars bars. Windows the player
// measurably struggles with come first, worst first. The rest are flagged
// from the score: dense passages, wide leaps, or both hands busy.
func WeakSections(t *model.Timeline, c timeline.Converter, bars []BarStat, o PlanOptions) []Section {
	if len(t.Notes) == 0 {
		return nil
	}
	window := util.Max(o.WindowBars, 1)
	last := c.LastBar(t.Duration)

	var measured, scored []Section
	for start := 1; start <= last; start += window {
		end := util.Min(start+window-1, last)
		notes := notesInBars(t, c, start, end)
		if len(notes) == 0 {
			continue
		}

		if acc := RangeAccuracy(bars, start, end); acc.Total >= util.Max(o.MinGraded, 1) && acc.Accuracy() < o.WeakAccuracy {
			measured = append(measured, Section{
				StartBar: start,
				EndBar:   end,
				Reason:   fmt.Sprintf("Low accuracy (%.0f%%)", acc.Accuracy()*100),
				Hand:     model.HandBoth,
				Accuracy: acc.Accuracy(),
			})
			continue
		}
		if s, ok := structural(notes, barLength(c, start, end)); ok {
			s.StartBar, s.EndBar, s.Accuracy = start, end, -1
			scored = append(scored, s)
		}
	}
	sort.SliceStable(measured, func(i, j int) bool {
		return measured[i].Accuracy < measured[j].Accuracy
	})
	return append(measured, scored...)
}

func structural(notes []model.NoteEvent, length float64) (Section, bool) {
	density := float64(len(notes)) / util.Max(length, 0.01)
	if density > denseNPS {
		return Section{Reason: fmt.Sprintf("High note density (%.1f notes/sec)", density), Hand: model.HandBoth}, true
	}

	lo, hi := notes[0].Pitch, notes[0].Pitch
	for _, n := range notes {
		lo, hi = util.Min(lo, n.Pitch), util.Max(hi, n.Pitch)
	}
	if jump := widestGap(notes); jump > wideLeap {
		return Section{Reason: fmt.Sprintf("Large interval leap (%d semitones)", jump), Hand: leapHand(notes, lo, hi)}, true
	}

	left, right := 0, 0
	for _, n := range notes {
		switch n.Hand {
		case model.HandLeft:
			left++
		case model.HandRight:
			right++
		}
	}
	if left > busyHandNotes && right > busyHandNotes {
		return Section{Reason: "Complex hand independence", Hand: model.HandBoth}, true
	}
	return Section{}, false
}

// widestGap is the largest gap between neighboring distinct pitches.
func widestGap(notes []model.NoteEvent) int {
	var used [128]bool
	for _, n := range notes {
		used[n.Pitch%128] = true
	}
	res, prev := 0, -1
	for p, ok := range used {
		if !ok {
			continue
		}
		if prev >= 0 {
			res = util.Max(res, p-prev)
		}
		prev = p
	}
	return res
}

// leapHand blames the hand that owns the bottom or the top of the range.
func leapHand(notes []model.NoteEvent, lo, hi uint8) model.Hand {
	owns := func(h model.Hand, edge uint8) bool {
		for _, n := range notes {
			if absInt(int(n.Pitch)-int(edge)) < 3 && n.Hand != h {
				return false
			}
		}
		return true
	}
	switch {
	case owns(model.HandLeft, lo):
		return model.HandLeft
	case owns(model.HandRight, hi):
		return model.HandRight
	}
	return model.HandBoth
}

// Mastery averages the accuracy of the most recent sessions in history,
// oldest first, as a ratio.
func Mastery(history []model.SessionStats) float64 {
	if len(history) == 0 {
		return 0
	}
	recent := history[util.Max(len(history)-recentSessions, 0):]
	sum := 0.0
	for _, s := range recent {
		sum += s.Accuracy()
	}
	return sum / float64(len(recent)) / 100
}

func baseTempoPct(history []model.SessionStats, mastery, target float64) int {
	switch {
	case len(history) == 0:
		return 60
	case mastery < 0.5:
		return 50
	case mastery < 0.7:
		return 65
	case mastery < 0.85:
		return 80
	case mastery < target:
		return 90
	}
	return 100
}

// BuildPlan orders practice steps for t: weak sections first, split into
// hands when both are involved, then a full run-through, then a run at full
// tempo once the player is close to the goal. history holds earlier sessions
// on the same timeline, oldest first; bars is the per-bar breakdown of the
// latest one and may be empty.
func BuildPlan(t *model.Timeline, c timeline.Converter, history []model.SessionStats, bars []BarStat, o PlanOptions) Plan {
	p := Plan{Title: t.Title}
	if len(t.Notes) == 0 {
		p.Steps = []Step{{StartBar: 1, EndBar: 1, Hand: model.HandBoth, TempoPct: 100, Repetitions: 1, Focus: "No notes found in this song"}}
		return p
	}
	maxSteps := util.Max(o.MaxSteps, 1)

	mastery := Mastery(history)
	p.MasteryPct = mastery * 100
	base := baseTempoPct(history, mastery, o.TargetAccuracy)
	slow := util.Max(base-10, minTempoPct)

	weak := WeakSections(t, c, bars, o)
	for _, s := range weak[:util.Min(maxSteps/2, len(weak))] {
		where := fmt.Sprintf("(bars %d-%d)", s.StartBar, s.EndBar)
		if s.Hand != model.HandBoth {
			p.Steps = append(p.Steps, Step{s.StartBar, s.EndBar, s.Hand, slow, 4, fmt.Sprintf("%s %s", s.Reason, where)})
			continue
		}
		p.Steps = append(p.Steps,
			Step{s.StartBar, s.EndBar, model.HandRight, slow, 3, fmt.Sprintf("RH alone: %s %s", s.Reason, where)},
			Step{s.StartBar, s.EndBar, model.HandLeft, slow, 3, fmt.Sprintf("LH alone: %s %s", s.Reason, where)},
			Step{s.StartBar, s.EndBar, model.HandBoth, base, 3, fmt.Sprintf("Hands together: %s %s", s.Reason, where)},
		)
	}

	last := c.LastBar(t.Duration)
	if len(p.Steps) < maxSteps {
		p.Steps = append(p.Steps, Step{1, last, model.HandBoth, base, 2, "Full run-through at practice tempo"})
	}
	if mastery >= o.TargetAccuracy*0.85 && len(p.Steps) < maxSteps {
		p.Steps = append(p.Steps, Step{1, last, model.HandBoth, 100, 1, "Performance run at full tempo"})
	}
	p.Steps = p.Steps[:util.Min(maxSteps, len(p.Steps))]

	if mastery < o.TargetAccuracy {
		p.EstimatedSessions = util.Max(1, int((o.TargetAccuracy-mastery)/0.05)+1)
	}
	return p
}
