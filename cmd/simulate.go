package cmd

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/jsphweid/keyfall/constants"
	"github.com/jsphweid/keyfall/hit"
	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/session"
	"github.com/jsphweid/keyfall/util"
	"github.com/spf13/cobra"
)

// SimOptions describe a scripted player.
type SimOptions struct {
	FPS int
	// presses land uniformly within +-JitterMs of the note
	JitterMs float64
	// fraction of notes never played
	MissRate float64
	Seed     int64
	// extra passes through the section
	Loops int
	// how long to keep ticking after the end so late notes resolve
	Grace time.Duration
}

// SimResult is the outcome of a simulated run.
type SimResult struct {
	Stats model.SessionStats
	// every result in the order it was graded
	Results []model.HitResult
	// onset groups per worst grade
	Groups map[model.HitGrade]int
}

var (
	simSong   songFlags
	simOpts   SimOptions
	asJSON    bool
	simReport bool
)

func init() {
	simSong.register(simulateCmd)
	simulateCmd.Flags().IntVar(&simOpts.FPS, "fps", constants.DefaultFPS, "updates per second")
	simulateCmd.Flags().Float64Var(&simOpts.JitterMs, "jitter", 30, "timing spread of the simulated player in ms")
	simulateCmd.Flags().Float64Var(&simOpts.MissRate, "miss-rate", 0, "fraction of notes the player skips")
	simulateCmd.Flags().Int64Var(&simOpts.Seed, "seed", 1, "random seed")
	simulateCmd.Flags().IntVar(&simOpts.Loops, "loops", 0, "extra passes through the section")
	simulateCmd.Flags().BoolVar(&asJSON, "json", false, "print stats as JSON")
	simulateCmd.Flags().BoolVar(&simReport, "report", false, "also show per-bar accuracy, timing feedback and a practice plan")
	rootCmd.AddCommand(simulateCmd)
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <file.mid>",
	Short: "Run a song against a scripted player",
	Long: `Run a song against a scripted player on a virtual clock and print the
resulting stats. Useful for tuning grading windows without a keyboard.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		song, err := loadSong(args[0], simSong)
		if err != nil {
			return err
		}
		if simOpts.Loops > 0 {
			simSong.loop = true
		}
		s, err := newSession(song, simSong)
		if err != nil {
			return err
		}
		simOpts.Grace = time.Duration(cfg.Thresholds.OK * float64(time.Millisecond))
		res := Simulate(s, simOpts)
		var rev *Review
		if simReport {
			r := review(s.Section(), cfg.BeatsPerBar, res.Stats, res.Results)
			rev = &r
		}
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				model.SessionStats
				Accuracy float64                `json:"accuracy"`
				Groups   map[model.HitGrade]int `json:"groups"`
				Review   *Review                `json:"review,omitempty"`
			}{res.Stats, res.Stats.Accuracy(), res.Groups, rev})
		}
		printStats(os.Stdout, res.Stats)
		for _, g := range []model.HitGrade{model.Perfect, model.Good, model.OK, model.Miss} {
			fmt.Printf("chords %-8s %d\n", g.String(), res.Groups[g])
		}
		if rev != nil {
			printReview(os.Stdout, *rev)
		}
		return nil
	},
}

// Simulate plays s to the end on a virtual clock.
func Simulate(s *session.Session, o SimOptions) SimResult {
	if o.FPS <= 0 {
		o.FPS = constants.DefaultFPS
	}
	if o.Grace <= 0 {
		o.Grace = constants.NormalOKMs * time.Millisecond
	}
	rng := rand.New(rand.NewSource(o.Seed))
	frame := time.Second / time.Duration(o.FPS)
	now := time.Unix(0, 0).UTC()

	var plan []model.InputEvent
	replan := func(from time.Time) {
		plan = planPresses(s, from, o, rng)
	}

	// wait mode can stall on skipped notes, so cap the run
	st := s.State()
	limit := int((st.Duration/st.TempoScale+2)*float64(o.FPS)) * (o.Loops + 1) * 2

	var results []model.HitResult
	var deadline time.Time
	s.Start(now)
	replan(now)
	for i := 0; i < limit; i++ {
		now = now.Add(frame)
		var events []model.InputEvent
		for len(plan) > 0 && !plan[0].At.After(now) {
			events = append(events, plan[0])
			plan = plan[1:]
		}
		res := s.Tick(now, events, nil)
		results = append(results, res.Results...)
		if res.LoopRestarted {
			replan(now)
		}
		if res.Finished && deadline.IsZero() {
			if st := s.State(); !st.LoopEnabled || st.LoopCount >= o.Loops {
				s.SetLoop(false)
				deadline = now.Add(o.Grace + frame)
			}
		}
		if !deadline.IsZero() && now.After(deadline) {
			break
		}
	}

	res := SimResult{Stats: s.Stop(), Results: results, Groups: map[model.HitGrade]int{}}
	for _, g := range hit.AggregateGrade(results) {
		res.Groups[g]++
	}
	return res
}

// planPresses schedules a press and a release for every note the player is
// responsible for in the current section, starting at from.
func planPresses(s *session.Session, from time.Time, o SimOptions, rng *rand.Rand) []model.InputEvent {
	st := s.State()
	section := s.Section()
	at := func(songTime float64) time.Time {
		return from.Add(time.Duration((songTime - st.LoopStart) / st.TempoScale * float64(time.Second)))
	}

	var plan []model.InputEvent
	for _, n := range section.Notes {
		if n.StartTime < st.LoopStart || n.StartTime >= st.LoopEnd && st.LoopEnd > st.LoopStart {
			continue
		}
		if !n.Hand.Matches(st.ActiveHand) {
			continue
		}
		if rng.Float64() < o.MissRate {
			continue
		}
		offset := (rng.Float64()*2 - 1) * o.JitterMs / 1000
		press := util.Max(n.StartTime+offset, st.LoopStart)
		release := press + util.Max(n.Duration*0.9, constants.MinNoteDuration)
		plan = append(plan,
			model.InputEvent{Pitch: n.Pitch, Velocity: n.Velocity, Press: true, At: at(press)},
			model.InputEvent{Pitch: n.Pitch, At: at(release)},
		)
	}
	sort.SliceStable(plan, func(i, j int) bool {
		return plan[i].At.Before(plan[j].At)
	})
	return plan
}
