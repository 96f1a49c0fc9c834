// Package playback owns the song position of a practice session. It advances
// the position from elapsed time (normal mode) or from held pitches (wait
// mode) and reports the notes that became due on each update.
//
// An Engine is driven by a single update loop and is not safe for concurrent
// mutation. Readers on other goroutines should work from State snapshots.
package playback

import (
	"errors"
	"fmt"
	"math"

	"github.com/jsphweid/keyfall/chord"
	"github.com/jsphweid/keyfall/constants"
	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/timeline"
	"github.com/jsphweid/keyfall/util"
)

var ErrOutOfRangeTempo = errors.New("tempo scale out of range")

// float slack used when comparing positions against section bounds
const epsilon = 1e-9

type Mode uint8

const (
	Idle Mode = iota
	Playing
	Waiting
	Paused
	Finished
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Waiting:
		return "waiting"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("mode(%d)", m)
}

type Options struct {
	TempoMin  float64
	TempoMax  float64
	TempoStep float64
	// added to the tempo scale on every loop restart, capped at LoopTempoMax
	LoopTempoStep float64
	LoopTempoMax  float64
	// seconds
	SimultaneityTolerance float64
	DefaultBeatsPerBar    float64
	// In wait mode, groups that belong entirely to the other hand normally
	// pass at once. With AutoPlayInTime they wait for their start time,
	// advancing the position from elapsed time, so the other hand keeps its
	// rhythm.
	AutoPlayInTime bool
}

func DefaultOptions() Options {
	return Options{
		TempoMin:              constants.TempoMin,
		TempoMax:              constants.TempoMax,
		TempoStep:             constants.TempoStep,
		LoopTempoStep:         constants.LoopTempoStep,
		LoopTempoMax:          constants.LoopTempoMax,
		SimultaneityTolerance: constants.ChordToleranceMs / 1000.0,
		DefaultBeatsPerBar:    constants.DefaultBeatsPerBar,
	}
}

// State is a copy of everything a renderer needs.
type State struct {
	Position    float64
	Duration    float64
	NoteIndex   int
	Mode        Mode
	PausedMode  Mode
	WaitMode    bool
	TempoScale  float64
	ActiveHand  model.Hand
	LoopEnabled bool
	LoopCount   int
	LoopStart   float64
	LoopEnd     float64
}

type Engine struct {
	opts     Options
	timeline *model.Timeline

	position   float64
	noteIndex  int
	mode       Mode
	pausedMode Mode
	wait       bool
	tempoScale float64
	hand       model.Hand

	loopEnabled bool
	loopCount   int
	// [loopStart, loopEnd) is the playable region. It is the whole timeline
	// unless SetLoopBars narrowed it.
	loopStart  float64
	loopEnd    float64
	startIndex int
	endIndex   int
}

// New returns an idle engine positioned at the start of t.
func New(t *model.Timeline, opts Options) *Engine {
	if opts.TempoMin <= 0 || opts.TempoMax < opts.TempoMin {
		opts.TempoMin, opts.TempoMax = constants.TempoMin, constants.TempoMax
	}
	if opts.SimultaneityTolerance < 0 || math.IsNaN(opts.SimultaneityTolerance) {
		opts.SimultaneityTolerance = 0
	}
	e := &Engine{
		opts:       opts,
		mode:       Idle,
		tempoScale: util.Clamp(1.0, opts.TempoMin, opts.TempoMax),
	}
	e.Load(t)
	return e
}

// Load swaps in a new timeline (usually a freshly extracted section) and
// rewinds to its start. A finished engine resumes its run mode. The loop
// counter starts over.
func (e *Engine) Load(t *model.Timeline) {
	if t == nil {
		t = &model.Timeline{}
	}
	e.timeline = t
	e.loopCount = 0
	e.setRegion(0, t.Duration, false)
	e.rewind()
	if e.mode == Finished {
		e.mode = e.runMode()
	}
}

func (e *Engine) Timeline() *model.Timeline {
	return e.timeline
}

func (e *Engine) Options() Options {
	return e.opts
}

// Start moves an idle engine into PLAYING or WAITING. It is a no-op in any
// other mode.
func (e *Engine) Start() {
	if e.mode == Idle {
		e.mode = e.runMode()
	}
}

func (e *Engine) runMode() Mode {
	if e.wait {
		return Waiting
	}
	return Playing
}

// Update advances the engine by dt seconds of wall-clock time and returns the
// notes that became due. held is the set of pitches currently pressed and is
// only consulted in wait mode. Negative or NaN dt counts as zero.
//
// If the engine finished on a previous update and looping is on, this update
// only rewinds to the loop start; no time is consumed.
func (e *Engine) Update(dt float64, held chord.OnNotes) []model.NoteEvent {
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	switch e.mode {
	case Playing:
		return e.updatePlaying(dt)
	case Waiting:
		return e.updateWaiting(dt, held)
	case Finished:
		if e.loopEnabled {
			e.restartLoop()
		}
	}
	return nil
}

func (e *Engine) updatePlaying(dt float64) []model.NoteEvent {
	e.position += dt * e.tempoScale
	notes := e.timeline.Notes

	var due []model.NoteEvent
	for e.noteIndex < e.endIndex && notes[e.noteIndex].StartTime <= e.position {
		due = append(due, notes[e.noteIndex])
		e.noteIndex++
	}
	if e.position >= e.loopEnd-epsilon {
		e.position = math.Max(e.loopEnd, e.loopStart)
		e.finish()
	}
	return due
}

func (e *Engine) updateWaiting(dt float64, held chord.OnNotes) []model.NoteEvent {
	if e.noteIndex >= e.endIndex {
		e.finish()
		return nil
	}
	group := e.Group()
	end := e.noteIndex + len(group)

	required := e.Required(group)
	if len(required) == 0 {
		if start := group[0].StartTime; e.opts.AutoPlayInTime && e.position < start {
			e.position = math.Min(e.position+dt*e.tempoScale, start)
			if e.position < start {
				return nil
			}
		}
	} else if !chord.Satisfied(chord.Pitches(required), held) {
		return nil
	}

	due := append([]model.NoteEvent(nil), group...)
	e.noteIndex = end
	e.position = math.Max(e.position, model.EndOf(group))
	if e.noteIndex >= e.endIndex {
		e.finish()
	}
	return due
}

// Group returns the onset group at the current note index, or nil once the
// section is exhausted.
func (e *Engine) Group() []model.NoteEvent {
	if e.noteIndex >= e.endIndex {
		return nil
	}
	end := util.Min(chord.GroupEnd(e.timeline.Notes, e.noteIndex, e.opts.SimultaneityTolerance), e.endIndex)
	return e.timeline.Notes[e.noteIndex:end]
}

func (e *Engine) finish() {
	e.mode = Finished
}

func (e *Engine) restartLoop() {
	e.loopCount++
	e.rewind()
	if step := e.opts.LoopTempoStep; step > 0 && e.tempoScale < e.opts.LoopTempoMax {
		ceiling := util.Min(e.opts.LoopTempoMax, e.opts.TempoMax)
		e.tempoScale = util.Clamp(e.tempoScale+step, e.opts.TempoMin, ceiling)
	}
	e.mode = e.runMode()
}

func (e *Engine) rewind() {
	e.position = e.loopStart
	e.noteIndex = e.startIndex
}

// Required returns the members of group the player must press under the
// current hand filter.
func (e *Engine) Required(group []model.NoteEvent) []model.NoteEvent {
	var res []model.NoteEvent
	for _, n := range group {
		if !e.AutoPlayed(n) {
			res = append(res, n)
		}
	}
	return res
}

// AutoPlayed reports whether n belongs to the hand the player is not
// practicing. Such notes are sounded but never graded.
func (e *Engine) AutoPlayed(n model.NoteEvent) bool {
	return !n.Hand.Matches(e.hand)
}

func (e *Engine) Pause() {
	if e.mode == Playing || e.mode == Waiting {
		e.pausedMode = e.mode
		e.mode = Paused
	}
}

// Resume restores the mode that Pause interrupted. Time spent paused is not
// applied; the host must not feed it as dt.
func (e *Engine) Resume() {
	if e.mode == Paused {
		e.mode = e.pausedMode
	}
}

func (e *Engine) TogglePause() {
	if e.mode == Paused {
		e.Resume()
	} else {
		e.Pause()
	}
}

// SetWaitMode switches the progression model. It takes effect immediately,
// or on resume when paused.
func (e *Engine) SetWaitMode(on bool) {
	e.wait = on
	switch e.mode {
	case Playing, Waiting:
		e.mode = e.runMode()
	case Paused:
		e.pausedMode = e.runMode()
	}
}

// SetTempoScale sets the playback speed multiplier. Out of range values are
// clamped to [TempoMin, TempoMax]; the clamped value is applied and returned
// together with ErrOutOfRangeTempo. NaN leaves the scale unchanged.
func (e *Engine) SetTempoScale(scale float64) (float64, error) {
	if math.IsNaN(scale) {
		return e.tempoScale, fmt.Errorf("%w: NaN", ErrOutOfRangeTempo)
	}
	applied := util.Clamp(scale, e.opts.TempoMin, e.opts.TempoMax)
	e.tempoScale = applied
	if applied != scale {
		return applied, fmt.Errorf("%w: %.2f clamped to %.2f", ErrOutOfRangeTempo, scale, applied)
	}
	return applied, nil
}

// NudgeTempo moves the tempo scale by steps increments of TempoStep,
// stopping at the bounds.
func (e *Engine) NudgeTempo(steps int) float64 {
	applied, _ := e.SetTempoScale(e.tempoScale + float64(steps)*e.opts.TempoStep)
	return applied
}

func (e *Engine) SetActiveHand(h model.Hand) {
	e.hand = h
}

func (e *Engine) SetLoop(enabled bool) {
	e.loopEnabled = enabled
}

// SetLoopBars restricts playback to bars [startBar, endBar] of the loaded
// timeline, enables looping and rewinds to the first bar of the region.
func (e *Engine) SetLoopBars(startBar, endBar int) error {
	c := timeline.NewConverter(e.timeline, e.opts.DefaultBeatsPerBar)
	s, err := c.Resolve(e.timeline, startBar, endBar)
	if err != nil {
		return err
	}
	e.setRegion(s.StartTime, s.EndTime, true)
	e.loopEnabled = true
	e.Restart()
	return nil
}

// ClearLoopBars makes the whole timeline playable again. The position is kept.
func (e *Engine) ClearLoopBars() {
	e.setRegion(0, e.timeline.Duration, false)
}

func (e *Engine) setRegion(start, end float64, bounded bool) {
	if end < start {
		end = start
	}
	e.loopStart, e.loopEnd = start, end
	e.startIndex = e.timeline.IndexAtOrAfter(start - epsilon)
	e.endIndex = len(e.timeline.Notes)
	if bounded {
		e.endIndex = util.Max(e.startIndex, e.timeline.IndexAtOrAfter(end-epsilon))
	}
}

// Seek moves to pos seconds, clamped to the playable region. Notes starting
// at or after pos are reported again as they become due. A finished engine
// resumes its run mode.
func (e *Engine) Seek(pos float64) {
	if math.IsNaN(pos) {
		return
	}
	e.position = util.Clamp(pos, e.loopStart, math.Max(e.loopStart, e.loopEnd))
	e.noteIndex = util.Clamp(e.timeline.IndexAtOrAfter(e.position-epsilon), e.startIndex, e.endIndex)
	if e.mode == Finished {
		e.mode = e.runMode()
	}
}

// Restart rewinds to the start of the playable region without counting a
// loop.
func (e *Engine) Restart() {
	e.rewind()
	if e.mode == Finished {
		e.mode = e.runMode()
	}
}

func (e *Engine) Position() float64 {
	return e.position
}

func (e *Engine) Mode() Mode {
	return e.mode
}

func (e *Engine) TempoScale() float64 {
	return e.tempoScale
}

func (e *Engine) State() State {
	return State{
		Position:    e.position,
		Duration:    e.timeline.Duration,
		NoteIndex:   e.noteIndex,
		Mode:        e.mode,
		PausedMode:  e.pausedMode,
		WaitMode:    e.wait,
		TempoScale:  e.tempoScale,
		ActiveHand:  e.hand,
		LoopEnabled: e.loopEnabled,
		LoopCount:   e.loopCount,
		LoopStart:   e.loopStart,
		LoopEnd:     e.loopEnd,
	}
}
