//go:build e2e
// +build e2e

package e2e_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jsphweid/keyfall/cmd"
	"github.com/jsphweid/keyfall/config"
	"github.com/jsphweid/keyfall/midi"
	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

var songPath string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "keyfall-e2e")
	if err != nil {
		panic(err.Error())
	}
	songPath = filepath.Join(dir, "hands.mid")
	if err := writeSong(songPath); err != nil {
		panic(err.Error())
	}

	exitVal := m.Run()

	os.RemoveAll(dir)
	os.Exit(exitVal)
}

// writeSong writes four bars of 4/4 at 120 BPM: quarter notes in the right
// hand over half-note roots in the left.
func writeSong(path string) error {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var meta smf.Track
	meta.Add(0, smf.MetaMeter(4, 4))
	meta.Add(0, smf.MetaTempo(120))
	meta.Close(0)

	var right, left smf.Track
	for bar := 0; bar < 4; bar++ {
		for beat := 0; beat < 4; beat++ {
			p := uint8(72 + beat)
			right.Add(0, gomidi.NoteOn(0, p, 90))
			right.Add(480, gomidi.NoteOff(0, p))
		}
		for half := 0; half < 2; half++ {
			p := uint8(48 + bar)
			left.Add(0, gomidi.NoteOn(1, p, 70))
			left.Add(960, gomidi.NoteOff(1, p))
		}
	}
	right.Close(0)
	left.Close(0)
	for _, tr := range []smf.Track{meta, right, left} {
		if err := s.Add(tr); err != nil {
			return err
		}
	}
	return s.WriteFile(path)
}

func newSession(t *testing.T) *session.Session {
	c, err := config.Load()
	require.NoError(t, err)
	song, err := midi.LoadFile(songPath, midi.SplitTrack)
	require.NoError(t, err)
	s, err := session.New(song, session.Options{
		Playback: c.PlaybackOptions(),
		Tracker:  c.TrackerOptions(),
	})
	require.NoError(t, err)
	return s
}

func getState(t *testing.T, s *session.Session) model.StateResponse {
	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	w := httptest.NewRecorder()
	cmd.NewRouter(s).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var state model.StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	return state
}

func TestWholeSongBothHandsE2E(t *testing.T) {
	s := newSession(t)
	res := cmd.Simulate(s, cmd.SimOptions{FPS: 120, Seed: 3})
	stats, groups := res.Stats, res.Groups

	assert := assert.New(t)
	assert.Equal(24, stats.TotalNotes)
	assert.Equal(24, stats.Perfect)
	assert.Equal(16, groups[model.Perfect])

	state := getState(t, s)
	assert.Equal("hands", state.Title)
	assert.Equal("finished", state.Mode)
	assert.Equal(8.0, state.Duration)
	assert.Equal(24, state.Stats.Perfect)
}

func TestSelectedBarsRightHandE2E(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.SelectBars(2, 3))
	s.SetActiveHand(model.HandRight)

	stats := cmd.Simulate(s, cmd.SimOptions{FPS: 120, Seed: 3}).Stats

	assert := assert.New(t)
	assert.Equal(8, stats.TotalNotes)
	assert.Equal(8, stats.Perfect)

	state := getState(t, s)
	assert.Equal("hands (bars 2-3)", state.Title)
	assert.Equal(4.0, state.Duration)
	assert.Equal("right", state.ActiveHand)
}

func TestWaitModeE2E(t *testing.T) {
	s := newSession(t)
	s.SetWaitMode(true)

	stats := cmd.Simulate(s, cmd.SimOptions{FPS: 120, JitterMs: 40, Seed: 11}).Stats

	assert := assert.New(t)
	assert.Equal(24, stats.TotalNotes)
	assert.Equal(0, stats.Missed)
	assert.Equal("finished", getState(t, s).Mode)
}
