package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/jsphweid/keyfall/constants"
	"github.com/jsphweid/keyfall/hit"
	"github.com/jsphweid/keyfall/playback"
)

// Config holds the trainer configuration. The core packages never read it
// directly; they get the option structs projected from it.
type Config struct {
	Environment string
	SentryDSN   string
	Debug       bool
	// empty disables the state endpoint
	HTTPAddr string

	Difficulty       string
	Thresholds       hit.Thresholds
	ChordToleranceMs float64
	PenalizeExtra    bool

	TempoMin      float64
	TempoMax      float64
	TempoStep     float64
	LoopTempoStep float64
	LoopTempoMax  float64
	BeatsPerBar   float64
	// wait mode plays the other hand's lone groups at their own time
	WaitAutoPlayInTime bool
}

var Difficulties = map[string]hit.Thresholds{
	"easy":   {Perfect: constants.EasyPerfectMs, Good: constants.EasyGoodMs, OK: constants.EasyOKMs},
	"normal": {Perfect: constants.NormalPerfectMs, Good: constants.NormalGoodMs, OK: constants.NormalOKMs},
	"hard":   {Perfect: constants.HardPerfectMs, Good: constants.HardGoodMs, OK: constants.HardOKMs},
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	difficulty := strings.ToLower(getEnv("KEYFALL_DIFFICULTY", "normal"))
	preset, ok := Difficulties[difficulty]
	if !ok {
		return nil, fmt.Errorf("unknown difficulty %q", difficulty)
	}

	p := parser{}
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
		Debug:       p.bool("KEYFALL_DEBUG", false),
		HTTPAddr:    getEnv("KEYFALL_HTTP_ADDR", ""),

		Difficulty: difficulty,
		Thresholds: hit.Thresholds{
			Perfect: p.float("KEYFALL_PERFECT_MS", preset.Perfect),
			Good:    p.float("KEYFALL_GOOD_MS", preset.Good),
			OK:      p.float("KEYFALL_OK_MS", preset.OK),
		},
		ChordToleranceMs: p.float("KEYFALL_CHORD_TOLERANCE_MS", constants.ChordToleranceMs),
		PenalizeExtra:    p.bool("KEYFALL_PENALIZE_EXTRA", false),

		TempoMin:      p.float("KEYFALL_TEMPO_MIN", constants.TempoMin),
		TempoMax:      p.float("KEYFALL_TEMPO_MAX", constants.TempoMax),
		TempoStep:     p.float("KEYFALL_TEMPO_STEP", constants.TempoStep),
		LoopTempoStep: p.float("KEYFALL_LOOP_TEMPO_STEP", constants.LoopTempoStep),
		LoopTempoMax:  p.float("KEYFALL_LOOP_TEMPO_MAX", constants.LoopTempoMax),
		BeatsPerBar:   p.float("KEYFALL_BEATS_PER_BAR", constants.DefaultBeatsPerBar),

		WaitAutoPlayInTime: p.bool("KEYFALL_WAIT_AUTOPLAY_IN_TIME", false),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	for key, v := range map[string]float64{
		"tempo min":       c.TempoMin,
		"tempo max":       c.TempoMax,
		"tempo step":      c.TempoStep,
		"loop tempo step": c.LoopTempoStep,
		"loop tempo max":  c.LoopTempoMax,
		"chord tolerance": c.ChordToleranceMs,
		"beats per bar":   c.BeatsPerBar,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number, got %v", key, v)
		}
	}
	if c.TempoMin <= 0 || c.TempoMax < c.TempoMin {
		return fmt.Errorf("invalid tempo bounds %v..%v", c.TempoMin, c.TempoMax)
	}
	if c.TempoStep < 0 || c.LoopTempoStep < 0 {
		return fmt.Errorf("tempo steps must not be negative")
	}
	if c.ChordToleranceMs < 0 {
		return fmt.Errorf("chord tolerance must not be negative")
	}
	if c.BeatsPerBar <= 0 {
		return fmt.Errorf("beats per bar must be positive")
	}
	return nil
}

// UseDifficulty swaps in a preset, dropping any threshold overrides.
func (c *Config) UseDifficulty(name string) error {
	th, ok := Difficulties[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown difficulty %q", name)
	}
	c.Difficulty = strings.ToLower(name)
	c.Thresholds = th
	return nil
}

func (c *Config) PlaybackOptions() playback.Options {
	return playback.Options{
		TempoMin:              c.TempoMin,
		TempoMax:              c.TempoMax,
		TempoStep:             c.TempoStep,
		LoopTempoStep:         c.LoopTempoStep,
		LoopTempoMax:          c.LoopTempoMax,
		SimultaneityTolerance: c.ChordToleranceMs / 1000,
		DefaultBeatsPerBar:    c.BeatsPerBar,
		AutoPlayInTime:        c.WaitAutoPlayInTime,
	}
}

func (c *Config) TrackerOptions() hit.Options {
	return hit.Options{
		Thresholds:     c.Thresholds,
		PenalizeExtra:  c.PenalizeExtra,
		GroupTolerance: c.ChordToleranceMs / 1000,
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) float(key string, def float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%s: %w", key, err)
		}
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%s: %w", key, err)
		}
		return def
	}
	return v
}
