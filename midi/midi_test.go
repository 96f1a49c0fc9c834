package midi

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// twoHands is 4/4 at 120 BPM for two bars, then 3/4, with a drop to 60 BPM
// at the start of bar 4. A quarter note is 480 ticks.
func twoHands(t *testing.T) *smf.SMF {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var meta smf.Track
	meta.Add(0, smf.MetaMeter(4, 4))
	meta.Add(0, smf.MetaTempo(120))
	meta.Add(3840, smf.MetaMeter(3, 4))
	meta.Add(1440, smf.MetaTempo(60))
	meta.Close(0)
	require.NoError(t, s.Add(meta))

	var right smf.Track
	right.Add(0, midi.NoteOn(0, 60, 100))
	right.Add(480, midi.NoteOff(0, 60))
	right.Add(3360, midi.NoteOn(0, 64, 90))
	// retriggered before the note-off
	right.Add(240, midi.NoteOn(0, 64, 80))
	right.Add(240, midi.NoteOff(0, 64))
	right.Close(0)
	require.NoError(t, s.Add(right))

	var left smf.Track
	left.Add(0, midi.NoteOn(1, 48, 70))
	// never released
	left.Close(960)
	require.NoError(t, s.Add(left))

	return s
}

func roundTrip(t *testing.T, s *smf.SMF) *smf.SMF {
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	res, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	return res
}

func TestLoadTimelineNotes(t *testing.T) {
	tl, err := LoadTimeline(roundTrip(t, twoHands(t)), "etude", SplitTrack)
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal("etude", tl.Title)
	assert.Equal(480, tl.TicksPerBeat)
	require.Len(t, tl.Notes, 4)

	type got struct {
		pitch    uint8
		start    float64
		duration float64
		hand     model.Hand
	}
	var notes []got
	for _, n := range tl.Notes {
		notes = append(notes, got{n.Pitch, n.StartTime, n.Duration, n.Hand})
	}
	assert.ElementsMatch([]got{
		{60, 0, 0.5, model.HandRight},
		{48, 0, 1, model.HandLeft},
		{64, 4, 0.25, model.HandRight},
		{64, 4.25, 0.25, model.HandRight},
	}, notes)
	assert.Equal(4.5, tl.Duration)
	assert.Equal(uint8(80), tl.Notes[3].Velocity)
}

func TestLoadTimelineTempoMap(t *testing.T) {
	tl, err := LoadTimeline(roundTrip(t, twoHands(t)), "etude", SplitNone)
	require.NoError(t, err)

	assert := assert.New(t)
	require.Len(t, tl.TempoChanges, 2)
	assert.Equal(model.TempoChange{Bar: 1, Time: 0, SecondsPerBeat: 0.5}, tl.TempoChanges[0])
	assert.Equal(4, tl.TempoChanges[1].Bar)
	assert.InDelta(5.5, tl.TempoChanges[1].Time, 1e-6)
	assert.InDelta(1.0, tl.TempoChanges[1].SecondsPerBeat, 1e-9)

	require.Len(t, tl.TimeSignatures, 2)
	assert.Equal(1, tl.TimeSignatures[0].Bar)
	assert.Equal(3, tl.TimeSignatures[1].Bar)
	assert.Equal(3.0, tl.TimeSignatures[1].BeatsPerBar)
	assert.InDelta(4.0, tl.TimeSignatures[1].Time, 1e-6)

	for _, n := range tl.Notes {
		assert.Equal(model.HandBoth, n.Hand)
	}

	// the converter agrees with the file's own clock
	c := timeline.NewConverter(tl, 4)
	assert.InDelta(4.0, c.BarStartTime(3), 1e-6)
	assert.InDelta(5.5, c.BarStartTime(4), 1e-6)
	assert.InDelta(8.5, c.BarStartTime(5), 1e-6)
}

func TestHandSplitByPitchAndChannel(t *testing.T) {
	s := roundTrip(t, twoHands(t))

	byPitch, err := LoadTimeline(s, "etude", SplitPitch)
	require.NoError(t, err)
	byChannel, err := LoadTimeline(s, "etude", SplitChannel)
	require.NoError(t, err)

	assert := assert.New(t)
	for i, n := range byPitch.Notes {
		want := model.HandRight
		if n.Pitch == 48 {
			want = model.HandLeft
		}
		assert.Equal(want, n.Hand)
		assert.Equal(want, byChannel.Notes[i].Hand)
	}
}

func TestLoadTimelineWithoutNotes(t *testing.T) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(960)
	var meta smf.Track
	meta.Add(0, smf.MetaTempo(90))
	meta.Close(0)
	require.NoError(t, s.Add(meta))

	_, err := LoadTimeline(roundTrip(t, s), "silence", SplitNone)
	assert.ErrorIs(t, err, ErrNoNotes)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minuet.mid")
	require.NoError(t, twoHands(t).WriteFile(path))

	tl, err := LoadFile(path, SplitTrack)
	require.NoError(t, err)
	assert.Equal(t, "minuet", tl.Title)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.mid"), SplitNone)
	assert.Error(t, err)
}

func TestParseHandSplit(t *testing.T) {
	assert := assert.New(t)
	split, err := ParseHandSplit("Pitch")
	assert.NoError(err)
	assert.Equal(SplitPitch, split)
	assert.Equal("channel", SplitChannel.String())

	_, err = ParseHandSplit("feet")
	assert.Error(err)
}

func TestSinkSchedulesNoteOff(t *testing.T) {
	var sent []midi.Message
	sink := newSink(func(msg midi.Message) error {
		sent = append(sent, msg)
		return nil
	}, 0)

	sink.Play(model.NoteEvent{Pitch: 60, Velocity: 100, Duration: 60}, 0.5)
	sink.Close()
	// closed sinks stay silent
	sink.Play(model.NoteEvent{Pitch: 62, Velocity: 100, Duration: 1}, 1)

	assert := assert.New(t)
	require.Len(t, sent, 2)
	var ch, key, vel uint8
	assert.True(sent[0].GetNoteOn(&ch, &key, &vel))
	assert.Equal(uint8(60), key)
	assert.Equal(uint8(50), vel)
	assert.True(sent[1].GetNoteOff(&ch, &key, &vel))
	assert.Equal(uint8(60), key)
}
