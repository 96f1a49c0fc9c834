// Package session drives one practice run: it feeds wall-clock ticks and
// input events into a playback engine and a hit tracker, and hands due notes
// to an audio sink.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jsphweid/keyfall/chord"
	"github.com/jsphweid/keyfall/constants"
	"github.com/jsphweid/keyfall/hit"
	"github.com/jsphweid/keyfall/logger"
	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/playback"
	"github.com/jsphweid/keyfall/timeline"
	"github.com/jsphweid/keyfall/util"
)

// Sink sounds due notes. salience is 1 for notes the player must play and
// lower for notes played on their behalf. The sink owns note-off timing.
type Sink interface {
	Play(note model.NoteEvent, salience float64)
}

type Options struct {
	Playback playback.Options
	Tracker  hit.Options
}

type TickResult struct {
	Due     []model.NoteEvent
	Results []model.HitResult
	// the engine reached the end during this tick
	Finished      bool
	LoopRestarted bool
}

// Session is safe for concurrent use: Tick and the control methods take the
// write lock, Snapshot and Stats take the read lock.
type Session struct {
	ID string

	mu      sync.RWMutex
	song    *model.Timeline
	engine  *playback.Engine
	tracker *hit.Tracker
	held    chord.OnNotes

	lastTick time.Time
	// song time that passed after the engine finished, so late notes can
	// still be hit or time out, also across a loop restart
	overrun float64
}

func New(song *model.Timeline, opts Options) (*Session, error) {
	tracker, err := hit.New(song.Title, opts.Tracker)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:      uuid.NewString(),
		song:    song,
		engine:  playback.New(song, opts.Playback),
		tracker: tracker,
		held:    chord.OnNotes{},
	}, nil
}

func (s *Session) fields() logger.Fields {
	st := s.engine.State()
	return logger.Fields{
		"session_id": s.ID,
		"title":      s.engine.Timeline().Title,
		"mode":       st.Mode.String(),
		"position":   st.Position,
	}
}

// Start begins playback. now is the reference for the first Tick.
func (s *Session) Start(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Start()
	s.lastTick = now
	logger.Info("Session started", s.fields())
}

// Tick advances the session to now. events are the press/release events
// received since the previous tick, in order. sink may be nil.
func (s *Session) Tick(now time.Time, events []model.InputEvent, sink Sink) TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.lastTick
	dt := 0.0
	if !prev.IsZero() {
		dt = util.Max(now.Sub(prev).Seconds(), 0)
	}
	s.lastTick = now

	before := s.engine.State()
	overrunBefore := s.overrun
	waitingOn := s.engine.Group()
	for _, ev := range events {
		if ev.Press {
			s.held[ev.Pitch] = true
		} else {
			delete(s.held, ev.Pitch)
		}
	}

	var res TickResult
	res.Due = s.engine.Update(dt, s.held)
	after := s.engine.State()

	var required []model.NoteEvent
	for _, n := range res.Due {
		auto := s.engine.AutoPlayed(n)
		if sink != nil {
			salience := 1.0
			if auto {
				salience = constants.AutoPlaySalience
			}
			sink.Play(n, salience)
		}
		if !auto {
			required = append(required, n)
		}
	}
	res.Results = append(res.Results, s.tracker.Add(required...)...)

	switch {
	case before.Mode == playback.Waiting:
		// the group only advanced because every required pitch was held
		for _, n := range required {
			if r, ok := s.tracker.Feed(n.Pitch, n.StartTime); ok {
				res.Results = append(res.Results, r)
			}
		}
		for _, ev := range events {
			if !ev.Press || inGroup(waitingOn, ev.Pitch) {
				continue
			}
			if r, ok := s.tracker.Stray(ev.Pitch); ok {
				res.Results = append(res.Results, r)
			}
		}
	case before.Mode == playback.Playing, before.Mode == playback.Finished && !before.WaitMode:
		base := before.Position + overrunBefore
		for _, ev := range events {
			if !ev.Press {
				continue
			}
			elapsed := 0.0
			if !prev.IsZero() {
				elapsed = util.Clamp(ev.At.Sub(prev).Seconds(), 0, dt)
			}
			if r, ok := s.tracker.Feed(ev.Pitch, base+elapsed*before.TempoScale); ok {
				res.Results = append(res.Results, r)
			}
		}
	}

	res.LoopRestarted = after.LoopCount > before.LoopCount
	switch {
	case res.LoopRestarted:
		// carry the previous pass's clock over so its last notes stay hittable
		clock := before.Position + overrunBefore + dt*before.TempoScale
		s.tracker.Rebase(clock - after.Position)
		s.overrun = 0
		logger.Info("Loop restarted", logger.Fields{
			"session_id": s.ID,
			"loop":       after.LoopCount,
			"tempo":      after.TempoScale,
		})
	case after.Mode == playback.Finished && before.Mode == playback.Finished:
		s.overrun += dt * after.TempoScale
	case after.Mode == playback.Finished:
		res.Finished = true
		if before.Mode == playback.Playing {
			s.overrun = util.Max(before.Position+dt*before.TempoScale-after.Position, 0)
		}
		logger.Info("Section finished", s.fields())
	default:
		s.overrun = 0
	}

	res.Results = append(res.Results, s.tracker.FlushMisses(after.Position+s.overrun)...)
	return res
}

func inGroup(group []model.NoteEvent, pitch uint8) bool {
	for _, n := range group {
		if n.Pitch == pitch {
			return true
		}
	}
	return false
}

// Stop resolves whatever is still pending and returns the final stats.
func (s *Session) Stop() model.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.FlushAll()
	stats := s.tracker.Stats()
	fields := s.fields()
	fields["notes"] = stats.TotalNotes
	fields["accuracy"] = stats.Accuracy()
	fields["max_streak"] = stats.MaxStreak
	logger.Info("Session stopped", fields)
	return stats
}

func (s *Session) Stats() model.SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracker.Stats()
}

// Section is the timeline currently loaded, which is the song or the
// selected bars of it.
func (s *Session) Section() *model.Timeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Timeline()
}

func (s *Session) State() playback.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.State()
}

// Snapshot is what a renderer polls.
func (s *Session) Snapshot() model.StateResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.engine.State()
	return model.StateResponse{
		SessionID:  s.ID,
		Title:      s.engine.Timeline().Title,
		Position:   st.Position,
		Duration:   st.Duration,
		NoteIndex:  st.NoteIndex,
		Mode:       st.Mode.String(),
		TempoScale: st.TempoScale,
		ActiveHand: st.ActiveHand.String(),
		Loop: model.LoopMarkers{
			Enabled: st.LoopEnabled,
			Start:   st.LoopStart,
			End:     st.LoopEnd,
			Count:   st.LoopCount,
		},
		Held:  heldPitches(s.held),
		Stats: s.tracker.Stats(),
	}
}

// HeldKey is the chord key of the pitches currently held.
func (s *Session) HeldKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chord.HeldKey(s.held)
}

// HeldName names the chord currently held, if it is one.
func (s *Session) HeldName() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chord.HeldName(s.held)
}

func (s *Session) TogglePause() playback.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.TogglePause()
	logger.Debug("Pause toggled", s.fields())
	return s.engine.Mode()
}

func (s *Session) SetWaitMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetWaitMode(on)
}

func (s *Session) SetActiveHand(h model.Hand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetActiveHand(h)
}

func (s *Session) SetLoop(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetLoop(on)
}

// SetTempoScale applies a tempo, clamping out of range values with a warning.
func (s *Session) SetTempoScale(scale float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied, err := s.engine.SetTempoScale(scale)
	if err != nil {
		logger.Warn("Tempo clamped", logger.Fields{"session_id": s.ID, "requested": scale, "applied": applied})
	}
	return applied
}

func (s *Session) NudgeTempo(steps int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.NudgeTempo(steps)
}

// SelectBars loads bars [startBar, endBar] of the song as the new section.
// Pending notes are dropped; stats carry on.
func (s *Session) SelectBars(startBar, endBar int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	section, err := timeline.Extract(s.song, startBar, endBar, s.engine.Options().DefaultBeatsPerBar)
	if err != nil {
		return err
	}
	s.engine.Load(section)
	s.tracker.Clear()
	s.overrun = 0
	logger.Info("Section selected", s.fields())
	return nil
}

// LoopBars loops bars [startBar, endBar] of the loaded section in place.
func (s *Session) LoopBars(startBar, endBar int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.SetLoopBars(startBar, endBar); err != nil {
		return err
	}
	s.tracker.Clear()
	s.overrun = 0
	return nil
}

// ClearLoopBars makes the whole section playable again.
func (s *Session) ClearLoopBars() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.ClearLoopBars()
}

func (s *Session) Seek(pos float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Seek(pos)
	s.tracker.Clear()
	s.overrun = 0
}

func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Restart()
	s.tracker.Clear()
	s.overrun = 0
}

func heldPitches(held chord.OnNotes) []int {
	res := []int{}
	for _, p := range chord.Held(held) {
		res = append(res, int(p))
	}
	return res
}
