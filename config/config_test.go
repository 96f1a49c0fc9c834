package config

import (
	"testing"

	"github.com/jsphweid/keyfall/hit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KEYFALL_DIFFICULTY", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal("normal", cfg.Difficulty)
	assert.Equal(hit.Thresholds{Perfect: 50, Good: 100, OK: 200}, cfg.Thresholds)
	assert.Equal(0.25, cfg.TempoMin)
	assert.Equal(2.0, cfg.TempoMax)
	assert.False(cfg.PenalizeExtra)
	assert.False(cfg.PlaybackOptions().AutoPlayInTime)

	opts := cfg.PlaybackOptions()
	assert.Equal(0.05, opts.SimultaneityTolerance)
	assert.Equal(4.0, opts.DefaultBeatsPerBar)
	assert.Equal(0.05, cfg.TrackerOptions().GroupTolerance)
}

func TestLoadDifficultyAndOverrides(t *testing.T) {
	t.Setenv("KEYFALL_DIFFICULTY", "Hard")
	t.Setenv("KEYFALL_OK_MS", "150")
	t.Setenv("KEYFALL_PENALIZE_EXTRA", "true")
	t.Setenv("KEYFALL_WAIT_AUTOPLAY_IN_TIME", "1")
	cfg, err := Load()
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal(hit.Thresholds{Perfect: 30, Good: 60, OK: 150}, cfg.Thresholds)
	assert.True(cfg.TrackerOptions().PenalizeExtra)
	assert.True(cfg.PlaybackOptions().AutoPlayInTime)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"unknown difficulty": {"KEYFALL_DIFFICULTY", "brutal"},
		"not a number":       {"KEYFALL_TEMPO_MAX", "fast"},
		"not a bool":         {"KEYFALL_DEBUG", "sometimes"},
		"inverted tempo":     {"KEYFALL_TEMPO_MIN", "3"},
		"descending windows": {"KEYFALL_PERFECT_MS", "500"},
		"NaN tolerance":      {"KEYFALL_CHORD_TOLERANCE_MS", "NaN"},
		"NaN window":         {"KEYFALL_GOOD_MS", "NaN"},
		"infinite tempo":     {"KEYFALL_TEMPO_MAX", "+Inf"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestUseDifficulty(t *testing.T) {
	cfg := &Config{Thresholds: hit.Thresholds{Perfect: 1, Good: 2, OK: 3}}

	assert := assert.New(t)
	assert.NoError(cfg.UseDifficulty("EASY"))
	assert.Equal("easy", cfg.Difficulty)
	assert.Equal(300.0, cfg.Thresholds.OK)
	assert.Error(cfg.UseDifficulty("nope"))
}
