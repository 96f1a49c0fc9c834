package playback

import (
	"math"
	"testing"

	"github.com/jsphweid/keyfall/chord"
	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(pitch uint8, start, duration float64, hand model.Hand) model.NoteEvent {
	return model.NoteEvent{Pitch: pitch, StartTime: start, Duration: duration, Velocity: 100, Hand: hand}
}

// fourSeconds has one note per second, so it lasts exactly four seconds.
func fourSeconds() *model.Timeline {
	return model.NewTimeline("scale", []model.NoteEvent{
		note(60, 0, 1, model.HandRight),
		note(62, 1, 1, model.HandRight),
		note(64, 2, 1, model.HandRight),
		note(65, 3, 1, model.HandRight),
	}, nil, nil)
}

func chordSong() *model.Timeline {
	return model.NewTimeline("chords", []model.NoteEvent{
		note(60, 1, 0.5, model.HandRight),
		note(64, 1, 0.5, model.HandRight),
		note(67, 1.02, 0.5, model.HandRight),
		note(48, 1, 1, model.HandLeft),
		note(72, 2, 0.5, model.HandRight),
	}, nil, nil)
}

func held(pitches ...uint8) chord.OnNotes {
	res := chord.OnNotes{}
	for _, p := range pitches {
		res[p] = true
	}
	return res
}

func pitches(notes []model.NoteEvent) []uint8 {
	return chord.Pitches(notes)
}

func TestModeString(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("idle", Idle.String())
	assert.Equal("waiting", Waiting.String())
	assert.Equal("mode(9)", Mode(9).String())
}

func TestIdleEngineDoesNotMove(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	due := e.Update(1, nil)

	assert := assert.New(t)
	assert.Nil(due)
	assert.Equal(Idle, e.Mode())
	assert.Equal(0.0, e.Position())
}

func TestNormalModeReportsEachNoteOnce(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	e.Start()

	assert := assert.New(t)
	assert.Equal([]uint8{60}, pitches(e.Update(0.5, nil)))
	assert.Empty(e.Update(0.25, nil))
	assert.Equal([]uint8{62, 64}, pitches(e.Update(1.5, nil)))
	assert.Equal(3, e.State().NoteIndex)
	assert.Equal(Playing, e.Mode())
}

func TestNormalModePositionNeverDecreases(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	e.Start()

	last := e.Position()
	for _, dt := range []float64{0.1, -1, 0, math.NaN(), 0.3, -0.2, 0.016, 2} {
		e.Update(dt, nil)
		assert.GreaterOrEqual(t, e.Position(), last)
		last = e.Position()
	}
	assert.InDelta(t, 2.416, e.Position(), 1e-9)
}

func TestNormalModeFinishesAtDuration(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	e.Start()
	due := e.Update(10, nil)

	assert := assert.New(t)
	assert.Len(due, 4)
	assert.Equal(Finished, e.Mode())
	assert.Equal(4.0, e.Position())
	// without looping a finished engine stays put
	assert.Nil(e.Update(1, nil))
	assert.Equal(Finished, e.Mode())
}

func TestTempoScaleAffectsAdvance(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	e.Start()
	_, err := e.SetTempoScale(0.5)
	require.NoError(t, err)
	e.Update(1, nil)

	assert.Equal(t, 0.5, e.Position())
}

func TestSetTempoScaleClamps(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())

	assert := assert.New(t)
	applied, err := e.SetTempoScale(3)
	assert.ErrorIs(err, ErrOutOfRangeTempo)
	assert.Equal(2.0, applied)
	assert.Equal(2.0, e.TempoScale())

	applied, err = e.SetTempoScale(0.1)
	assert.ErrorIs(err, ErrOutOfRangeTempo)
	assert.Equal(0.25, applied)

	applied, err = e.SetTempoScale(math.NaN())
	assert.ErrorIs(err, ErrOutOfRangeTempo)
	assert.Equal(0.25, applied)

	applied, err = e.SetTempoScale(1.5)
	assert.NoError(err)
	assert.Equal(1.5, applied)
}

func TestNudgeTempo(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())

	assert := assert.New(t)
	assert.InDelta(1.1, e.NudgeTempo(2), 1e-9)
	assert.InDelta(1.05, e.NudgeTempo(-1), 1e-9)
	assert.Equal(2.0, e.NudgeTempo(100))
}

func TestPauseFreezesPosition(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	e.Start()
	e.Update(0.5, nil)
	e.Pause()

	assert := assert.New(t)
	assert.Equal(Paused, e.Mode())
	assert.Nil(e.Update(3, nil))
	assert.Equal(0.5, e.Position())
	assert.Equal(1, e.State().NoteIndex)

	e.Resume()
	assert.Equal(Playing, e.Mode())
	e.TogglePause()
	assert.Equal(Paused, e.Mode())
	e.TogglePause()
	assert.Equal(Playing, e.Mode())
}

func TestWaitModeWaitsForWholeChord(t *testing.T) {
	e := New(chordSong(), DefaultOptions())
	e.SetWaitMode(true)
	e.SetActiveHand(model.HandRight)
	e.Start()
	require.Equal(t, Waiting, e.Mode())

	assert := assert.New(t)
	assert.Nil(e.Update(0.5, held(60, 64)))
	assert.Equal(0, e.State().NoteIndex)
	assert.Equal(0.0, e.Position())

	due := e.Update(0.5, held(60, 64, 67))
	// 67 is 20ms late but still in the group; the left hand note comes along
	assert.ElementsMatch([]uint8{60, 64, 48, 67}, pitches(due))
	assert.Equal(4, e.State().NoteIndex)
	assert.Equal(2.0, e.Position())
	assert.True(e.AutoPlayed(note(48, 1, 1, model.HandLeft)))
	assert.False(e.AutoPlayed(note(60, 1, 1, model.HandRight)))
}

func TestGroupFollowsNoteIndex(t *testing.T) {
	e := New(chordSong(), DefaultOptions())
	e.SetWaitMode(true)
	e.Start()

	assert := assert.New(t)
	assert.ElementsMatch([]uint8{60, 64, 48, 67}, pitches(e.Group()))
	e.Update(0, held(48, 60, 64, 67))
	assert.Equal([]uint8{72}, pitches(e.Group()))
	e.Update(0, held(72))
	assert.Nil(e.Group())
	assert.Equal(Finished, e.Mode())
}

func TestWaitModeBothHandsRequiresEverything(t *testing.T) {
	e := New(chordSong(), DefaultOptions())
	e.SetWaitMode(true)
	e.Start()

	assert := assert.New(t)
	assert.Nil(e.Update(0.1, held(60, 64, 67)))
	assert.Len(e.Update(0.1, held(48, 60, 64, 67)), 4)
}

func TestWaitModeAutoPlaysOtherHandOnTime(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	e.SetWaitMode(true)
	e.SetActiveHand(model.HandLeft)
	e.Start()

	assert := assert.New(t)
	assert.Equal([]uint8{60}, pitches(e.Update(0.1, nil)))
	assert.Equal(1.0, e.Position())
	// the next right hand note starts at 1.0, which the position already reached
	assert.Equal([]uint8{62}, pitches(e.Update(0.1, nil)))
	assert.Equal(2.0, e.Position())
}

func TestWaitModeAutoGroupAhead(t *testing.T) {
	tl := model.NewTimeline("gap", []model.NoteEvent{note(60, 1, 0.5, model.HandRight)}, nil, nil)
	e := New(tl, DefaultOptions())
	e.SetWaitMode(true)
	e.SetActiveHand(model.HandLeft)
	e.Start()

	assert := assert.New(t)
	// nothing to wait for: the group passes without any elapsed time
	assert.Len(e.Update(0, nil), 1)
	assert.Equal(1.5, e.Position())
	assert.Equal(Finished, e.Mode())
}

func TestWaitModeAutoGroupInTime(t *testing.T) {
	tl := model.NewTimeline("gap", []model.NoteEvent{note(60, 1, 0.5, model.HandRight)}, nil, nil)
	opts := DefaultOptions()
	opts.AutoPlayInTime = true
	e := New(tl, opts)
	e.SetWaitMode(true)
	e.SetActiveHand(model.HandLeft)
	e.Start()

	assert := assert.New(t)
	assert.Nil(e.Update(0.5, nil))
	assert.Equal(0.5, e.Position())
	assert.Len(e.Update(0.6, nil), 1)
	assert.Equal(1.5, e.Position())
	assert.Equal(Finished, e.Mode())
}

func TestWaitModeRequiredGroupIgnoresElapsedTime(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	e.SetWaitMode(true)
	e.Start()

	assert := assert.New(t)
	assert.Nil(e.Update(10, nil))
	assert.Equal(0.0, e.Position())
	assert.Equal(Waiting, e.Mode())
}

func TestSwitchingModesWhilePaused(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	e.Start()
	e.Pause()
	e.SetWaitMode(true)

	assert := assert.New(t)
	assert.Equal(Paused, e.Mode())
	e.Resume()
	assert.Equal(Waiting, e.Mode())
	e.SetWaitMode(false)
	assert.Equal(Playing, e.Mode())
}

func TestLoopRestartsOnNextUpdate(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	e.SetLoop(true)
	e.Start()
	e.Update(2, nil)
	e.Update(2.5, nil)
	require.Equal(t, Finished, e.Mode())
	before := e.State()

	due := e.Update(1.0/60, nil)
	after := e.State()

	assert := assert.New(t)
	assert.Nil(due)
	assert.Equal(0, after.NoteIndex)
	assert.Equal(before.LoopCount+1, after.LoopCount)
	assert.Equal(0.0, after.Position)
	assert.Equal(Playing, after.Mode)
}

func TestLoopBars(t *testing.T) {
	tl := model.NewTimeline("bars", []model.NoteEvent{
		note(60, 0, 0.5, model.HandRight),
		note(62, 2, 0.5, model.HandRight),
		note(64, 3, 0.5, model.HandRight),
		note(65, 4, 0.5, model.HandRight),
	}, []model.TempoChange{{Bar: 1, SecondsPerBeat: 0.5}}, nil)
	e := New(tl, DefaultOptions())
	require.NoError(t, e.SetLoopBars(2, 2))
	e.Start()

	assert := assert.New(t)
	assert.Equal(2.0, e.Position())
	assert.Equal(1, e.State().NoteIndex)

	due := e.Update(5, nil)
	assert.Equal([]uint8{62, 64}, pitches(due))
	assert.Equal(Finished, e.Mode())
	assert.Equal(4.0, e.Position())

	e.Update(0.1, nil)
	assert.Equal(1, e.State().NoteIndex)
	assert.Equal(2.0, e.Position())
	assert.Equal(1, e.State().LoopCount)

	assert.ErrorIs(e.SetLoopBars(3, 1), timeline.ErrInvalidRange)

	e.ClearLoopBars()
	assert.Equal(4.5, e.State().LoopEnd)
}

func TestWaitModeLoopsAfterLastGroup(t *testing.T) {
	e := New(chordSong(), DefaultOptions())
	e.SetWaitMode(true)
	e.SetLoop(true)
	e.Start()
	e.Update(0, held(48, 60, 64, 67))
	e.Update(0, held(72))

	assert := assert.New(t)
	assert.Equal(Finished, e.Mode())
	e.Update(0, nil)
	assert.Equal(Waiting, e.Mode())
	assert.Equal(0, e.State().NoteIndex)
	assert.Equal(1, e.State().LoopCount)
}

func TestLoopNudgesTempoUpToCap(t *testing.T) {
	opts := DefaultOptions()
	opts.LoopTempoStep = 0.1
	opts.LoopTempoMax = 1.2
	e := New(fourSeconds(), opts)
	e.SetLoop(true)
	e.Start()

	var scales []float64
	for i := 0; i < 3; i++ {
		e.Update(10, nil)
		e.Update(0, nil)
		scales = append(scales, e.TempoScale())
	}

	assert := assert.New(t)
	assert.InDelta(1.1, scales[0], 1e-9)
	assert.InDelta(1.2, scales[1], 1e-9)
	assert.InDelta(1.2, scales[2], 1e-9)
	assert.Equal(3, e.State().LoopCount)
}

func TestSeekLeavesFinished(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	e.SetWaitMode(true)
	e.SetActiveHand(model.HandLeft)
	e.Start()
	for i := 0; i < 10 && e.Mode() != Finished; i++ {
		e.Update(1, nil)
	}
	require.Equal(t, Finished, e.Mode())

	e.Seek(1.5)

	assert := assert.New(t)
	assert.Equal(Waiting, e.Mode())
	assert.Equal(1.5, e.Position())
	assert.Equal(2, e.State().NoteIndex)

	e.Seek(-3)
	assert.Equal(0.0, e.Position())
	assert.Equal(0, e.State().NoteIndex)
}

func TestLoadSectionRestartsFinishedEngine(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	e.Start()
	e.Update(10, nil)
	require.Equal(t, Finished, e.Mode())

	section, err := timeline.Extract(fourSeconds(), 1, 1, 4)
	require.NoError(t, err)
	e.Load(section)

	assert := assert.New(t)
	assert.Equal(Playing, e.Mode())
	assert.Equal(0.0, e.Position())
	assert.Equal(section, e.Timeline())
	assert.Equal([]uint8{60}, pitches(e.Update(0, nil)))
}

func TestRestartKeepsLoopCount(t *testing.T) {
	e := New(fourSeconds(), DefaultOptions())
	e.SetLoop(true)
	e.Start()
	e.Update(10, nil)
	e.Update(0, nil)
	e.Update(1.5, nil)
	e.Restart()

	assert := assert.New(t)
	assert.Equal(0.0, e.Position())
	assert.Equal(1, e.State().LoopCount)
}

func TestEmptyTimelineFinishes(t *testing.T) {
	e := New(model.NewTimeline("empty", nil, nil, nil), DefaultOptions())
	e.Start()

	assert := assert.New(t)
	assert.Empty(e.Update(0.016, nil))
	assert.Equal(Finished, e.Mode())
}
