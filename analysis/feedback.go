package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/jsphweid/keyfall/model"
)

type Category string

const (
	Timing       Category = "timing"
	Dynamics     Category = "dynamics"
	Evenness     Category = "evenness"
	Articulation Category = "articulation"
)

// Insight is one observation about how a passage was played. Hand is
// HandBoth when it concerns the whole session.
type Insight struct {
	Category Category   `json:"category"`
	Severity float64    `json:"severity"`
	Message  string     `json:"message"`
	Hand     model.Hand `json:"hand"`
}

const (
	minTimedHits     = 10
	driftMs          = 15.0
	unsteadyMs       = 30.0
	minHalvesHits    = 20
	rushMs           = 20.0
	minGroupNotes    = 5
	weakGroupRate    = 0.3
	minRunLength     = 5
	runStep          = 2
	unevenRunMs      = 40.0
	staccatoSeconds  = 0.2
	staccatoMissRate = 0.4
	softVelocity     = 60
	loudVelocity     = 100
)

// Analyze looks for timing and touch habits in results, given in the order
// they were graded. Insights come back most severe first.
func Analyze(results []model.HitResult) []Insight {
	var graded []model.HitResult
	for _, r := range results {
		if r.Expected != nil {
			graded = append(graded, r)
		}
	}
	if len(graded) == 0 {
		return nil
	}

	var res []Insight
	add := func(in Insight, ok bool) {
		if ok {
			res = append(res, in)
		}
	}

	left, right := resultsByHand(graded)
	for _, h := range []struct {
		hand    model.Hand
		results []model.HitResult
	}{{model.HandLeft, left}, {model.HandRight, right}} {
		add(timingDrift(h.results, h.hand))
		add(timingVariance(h.results, h.hand))
		add(unevenRuns(h.results, h.hand))
	}
	add(rushOrDrag(graded))
	res = append(res, dynamics(graded)...)
	add(articulation(graded))

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Severity > res[j].Severity
	})
	return res
}

func resultsByHand(results []model.HitResult) (left, right []model.HitResult) {
	for _, r := range results {
		switch r.Expected.Hand {
		case model.HandLeft:
			left = append(left, r)
		case model.HandRight:
			right = append(right, r)
		default:
			left = append(left, r)
			right = append(right, r)
		}
	}
	return left, right
}

// timed keeps the results that carry a meaningful offset.
func timed(results []model.HitResult) []model.HitResult {
	var res []model.HitResult
	for _, r := range results {
		if r.Grade != model.Miss && r.PitchMatched() {
			res = append(res, r)
		}
	}
	return res
}

func offsets(results []model.HitResult) []float64 {
	res := make([]float64, len(results))
	for i, r := range results {
		res[i] = r.OffsetMs
	}
	return res
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func stdDev(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := mean(v)
	sum := 0.0
	for _, x := range v {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(v)))
}

func handName(h model.Hand) string {
	if h == model.HandLeft {
		return "Left hand"
	}
	return "Right hand"
}

// timingDrift flags a hand that is consistently early or late.
func timingDrift(results []model.HitResult, hand model.Hand) (Insight, bool) {
	hits := timed(results)
	if len(hits) < minTimedHits {
		return Insight{}, false
	}
	m := mean(offsets(hits))
	if math.Abs(m) < driftMs {
		return Insight{}, false
	}
	direction := "late"
	if m < 0 {
		direction = "early"
	}
	return Insight{
		Category: Timing,
		Severity: math.Min(1, math.Abs(m)/80),
		Message:  fmt.Sprintf("%s is consistently %.0fms %s", handName(hand), math.Abs(m), direction),
		Hand:     hand,
	}, true
}

// timingVariance flags a hand whose offsets scatter even if they center on
// the beat.
func timingVariance(results []model.HitResult, hand model.Hand) (Insight, bool) {
	hits := timed(results)
	if len(hits) < minTimedHits {
		return Insight{}, false
	}
	sd := stdDev(offsets(hits))
	if sd < unsteadyMs {
		return Insight{}, false
	}
	return Insight{
		Category: Timing,
		Severity: math.Min(1, sd/100),
		Message:  fmt.Sprintf("%s timing is unsteady (±%.0fms)", handName(hand), sd),
		Hand:     hand,
	}, true
}

// rushOrDrag compares the mean offset of the second half of the session to
// the first.
func rushOrDrag(results []model.HitResult) (Insight, bool) {
	hits := timed(results)
	if len(hits) < minHalvesHits {
		return Insight{}, false
	}
	mid := len(hits) / 2
	drift := mean(offsets(hits[mid:])) - mean(offsets(hits[:mid]))
	if math.Abs(drift) < rushMs {
		return Insight{}, false
	}
	in := Insight{Category: Timing, Severity: math.Min(1, math.Abs(drift)/80)}
	if drift < 0 {
		in.Message = fmt.Sprintf("Rushing: timing drifts %.0fms earlier by the end of the passage", -drift)
	} else {
		in.Message = fmt.Sprintf("Dragging: timing drifts %.0fms later by the end of the passage", drift)
	}
	return in, true
}

// dynamics flags soft or loud passages that are graded OK or missed more
// often than not.
func dynamics(results []model.HitResult) []Insight {
	var soft, loud []model.HitResult
	for _, r := range results {
		switch v := r.Expected.Velocity; {
		case v < softVelocity:
			soft = append(soft, r)
		case v > loudVelocity:
			loud = append(loud, r)
		}
	}

	var res []Insight
	if rate, ok := weakRate(soft); ok {
		res = append(res, Insight{
			Category: Dynamics,
			Severity: math.Min(1, rate),
			Message:  "Struggling in soft passages, try a lighter touch",
		})
	}
	if rate, ok := weakRate(loud); ok {
		res = append(res, Insight{
			Category: Dynamics,
			Severity: math.Min(1, rate),
			Message:  "Struggling in loud passages, attack with more confidence",
		})
	}
	return res
}

func weakRate(results []model.HitResult) (float64, bool) {
	if len(results) < minGroupNotes {
		return 0, false
	}
	weak := 0
	for _, r := range results {
		if r.Grade >= model.OK {
			weak++
		}
	}
	rate := float64(weak) / float64(len(results))
	return rate, rate > weakGroupRate
}

// unevenRuns finds stepwise runs of at least five notes and flags the first
// one whose average timing error is large.
func unevenRuns(results []model.HitResult, hand model.Hand) (Insight, bool) {
	hits := timed(results)
	start := 0
	for i := 1; i <= len(hits); i++ {
		if i < len(hits) && absInt(int(hits[i].Expected.Pitch)-int(hits[i-1].Expected.Pitch)) <= runStep {
			continue
		}
		if run := hits[start:i]; len(run) >= minRunLength {
			errs := make([]float64, len(run))
			for j, r := range run {
				errs[j] = math.Abs(r.OffsetMs)
			}
			if m := mean(errs); m > unevenRunMs {
				return Insight{
					Category: Evenness,
					Severity: math.Min(1, m/100),
					Message:  fmt.Sprintf("%s runs are uneven, %.0fms average timing error in stepwise passages", handName(hand), m),
					Hand:     hand,
				}, true
			}
		}
		start = i
	}
	return Insight{}, false
}

// articulation flags short notes that are mostly missed.
func articulation(results []model.HitResult) (Insight, bool) {
	var short []model.HitResult
	for _, r := range results {
		if r.Expected.Duration < staccatoSeconds {
			short = append(short, r)
		}
	}
	if len(short) < minGroupNotes {
		return Insight{}, false
	}
	missed := 0
	for _, r := range short {
		if r.Grade == model.Miss {
			missed++
		}
	}
	rate := float64(missed) / float64(len(short))
	if rate <= staccatoMissRate {
		return Insight{}, false
	}
	return Insight{
		Category: Articulation,
		Severity: math.Min(1, rate),
		Message:  "Short notes are mostly missed, release them more crisply",
	}, true
}
