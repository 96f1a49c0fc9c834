// Package hit grades played notes against expected ones.
package hit

import (
	"errors"
	"fmt"
	"math"

	"github.com/jsphweid/keyfall/model"
)

var ErrInvalidThresholds = errors.New("invalid grading thresholds")

// Thresholds are the grading windows in milliseconds of song time.
type Thresholds struct {
	Perfect float64 `json:"perfect"`
	Good    float64 `json:"good"`
	OK      float64 `json:"ok"`
}

// Validate requires non-negative, ascending windows with a positive OK window.
func (t Thresholds) Validate() error {
	// written so that NaN fails every comparison
	if !(t.Perfect >= 0 && t.Good >= t.Perfect && t.OK >= t.Good && t.OK > 0) || math.IsInf(t.OK, 1) {
		return fmt.Errorf("%w: %v/%v/%v ms", ErrInvalidThresholds, t.Perfect, t.Good, t.OK)
	}
	return nil
}

// window is the OK window in seconds.
func (t Thresholds) window() float64 {
	return t.OK / 1000
}

// Grade classifies an absolute offset in milliseconds.
func (t Thresholds) Grade(absOffsetMs float64) model.HitGrade {
	switch {
	case absOffsetMs <= t.Perfect:
		return model.Perfect
	case absOffsetMs <= t.Good:
		return model.Good
	case absOffsetMs <= t.OK:
		return model.OK
	}
	return model.Miss
}

// Evaluate grades one press against one expected note. A wrong pitch is a
// MISS whose offset carries no meaning. Negative offsets are early.
func Evaluate(expected model.NoteEvent, playedPitch uint8, playedTime float64, th Thresholds) model.HitResult {
	res := model.HitResult{
		Grade:       model.Miss,
		Expected:    &expected,
		PlayedPitch: int(playedPitch),
	}
	if playedPitch != expected.Pitch {
		return res
	}
	res.OffsetMs = (playedTime - expected.StartTime) * 1000
	if !math.IsNaN(res.OffsetMs) {
		res.Grade = th.Grade(math.Abs(res.OffsetMs))
	}
	return res
}

// AggregateGrade returns the worst grade per onset group. Results for extra
// presses are skipped.
func AggregateGrade(results []model.HitResult) map[int]model.HitGrade {
	res := map[int]model.HitGrade{}
	for _, r := range results {
		if r.Expected == nil {
			continue
		}
		if worst, ok := res[r.Group]; !ok || r.Grade > worst {
			res[r.Group] = r.Grade
		}
	}
	return res
}
