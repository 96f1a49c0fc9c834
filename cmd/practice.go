package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/bep/debounce"
	"github.com/jsphweid/keyfall/constants"
	"github.com/jsphweid/keyfall/logger"
	"github.com/jsphweid/keyfall/midi"
	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/playback"
	"github.com/jsphweid/keyfall/session"
	"github.com/spf13/cobra"
)

var (
	practiceSong songFlags
	inPort       int
	outPort      int
	httpAddr     string
	fps          int
)

func init() {
	practiceSong.register(practiceCmd)
	practiceCmd.Flags().IntVar(&inPort, "in", 0, "MIDI input port number")
	practiceCmd.Flags().IntVar(&outPort, "out", -1, "MIDI output port number for playback (-1 for silent)")
	practiceCmd.Flags().StringVar(&httpAddr, "http", "", "serve session state on this address, e.g. :8080")
	practiceCmd.Flags().IntVar(&fps, "fps", constants.DefaultFPS, "updates per second")
	rootCmd.AddCommand(practiceCmd)
}

var practiceCmd = &cobra.Command{
	Use:   "practice <file.mid>",
	Short: "Practice a song with a MIDI keyboard",
	Long: `Practice a song with a MIDI keyboard.

While playing, type a command and press enter:
  p  pause / resume       w  toggle wait mode
  +  faster               -  slower
  h  switch hand          l  toggle looping
  r  restart section      b 5-8  select bars
  s 12.5  seek (seconds)  lb 2-3  loop bars of the section (lb alone clears)
  q  quit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return practice(args[0])
	},
}

func practice(path string) error {
	song, err := loadSong(path, practiceSong)
	if err != nil {
		return err
	}
	s, err := newSession(song, practiceSong)
	if err != nil {
		return err
	}
	if fps <= 0 {
		fps = constants.DefaultFPS
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer midi.CloseDriver()

	events := make(chan model.InputEvent, 256)
	stopListening, err := midi.Listen(inPort, events)
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(midi.InPorts(), ", "))
	}
	defer stopListening()

	var sink session.Sink
	var out *midi.Sink
	if outPort >= 0 {
		out, err = midi.NewSink(outPort, 0)
		if err != nil {
			return err
		}
		defer out.Close()
		sink = out
	}

	if httpAddr == "" {
		httpAddr = cfg.HTTPAddr
	}
	if httpAddr != "" {
		go serve(ctx, httpAddr, s)
	}

	commands := make(chan string)
	go readCommands(os.Stdin, commands)

	logHeld := debounce.New(150 * time.Millisecond)
	grace := time.Duration(cfg.Thresholds.OK*float64(time.Millisecond)) + 100*time.Millisecond
	var deadline time.Time

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	s.Start(time.Now())
	var pending []model.InputEvent
	// graded against the section in play; a new section starts over
	var results []model.HitResult
	section := s.Section()
	for {
		select {
		case <-ctx.Done():
			return finish(os.Stdout, s, results)
		case ev := <-events:
			pending = append(pending, ev)
		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if quit := control(s, line); quit {
				return finish(os.Stdout, s, results)
			}
		case now := <-ticker.C:
			res := s.Tick(now, pending, sink)
			if len(pending) > 0 {
				fields := logger.Fields{"chord": s.HeldKey()}
				if name, ok := s.HeldName(); ok {
					fields["name"] = name
				}
				logHeld(func() {
					logger.Debug("Holding", fields)
				})
			}
			pending = nil
			if current := s.Section(); current != section {
				section, results = current, nil
			}
			results = append(results, res.Results...)
			logResults(res.Results)

			st := s.State()
			if out != nil {
				out.SetTempoScale(st.TempoScale)
			}
			if res.Finished && !st.LoopEnabled {
				deadline = now.Add(grace)
			}
			if st.Mode != playback.Finished {
				deadline = time.Time{}
			}
			if !deadline.IsZero() && now.After(deadline) {
				return finish(os.Stdout, s, results)
			}
		}
	}
}

func readCommands(r io.Reader, commands chan<- string) {
	defer close(commands)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		commands <- strings.TrimSpace(scanner.Text())
	}
}

// control applies one typed command. It reports whether to quit.
func control(s *session.Session, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	st := s.State()
	switch cmd {
	case "q":
		return true
	case "p", "":
		logger.Info("Pause toggled", logger.Fields{"mode": s.TogglePause().String()})
	case "+", "=":
		logger.Info("Tempo", logger.Fields{"scale": s.NudgeTempo(1)})
	case "-":
		logger.Info("Tempo", logger.Fields{"scale": s.NudgeTempo(-1)})
	case "w":
		s.SetWaitMode(!st.WaitMode)
		logger.Info("Wait mode", logger.Fields{"on": !st.WaitMode})
	case "l":
		s.SetLoop(!st.LoopEnabled)
		logger.Info("Looping", logger.Fields{"on": !st.LoopEnabled})
	case "h":
		next := nextHand(st.ActiveHand)
		s.SetActiveHand(next)
		logger.Info("Hand", logger.Fields{"hand": next.String()})
	case "r":
		s.Restart()
	case "s":
		pos, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			logger.Warn("Could not seek", logger.Fields{"position": arg, "error": err.Error()})
			break
		}
		s.Seek(pos)
	case "lb":
		start, end, ok, err := parseBars(arg)
		switch {
		case err != nil:
		case !ok:
			s.ClearLoopBars()
		default:
			err = s.LoopBars(start, end)
		}
		if err != nil {
			logger.Warn("Could not loop bars", logger.Fields{"bars": arg, "error": err.Error()})
		}
	case "b":
		start, end, ok, err := parseBars(arg)
		if err == nil && ok {
			err = s.SelectBars(start, end)
		}
		if err != nil {
			logger.Warn("Could not select bars", logger.Fields{"bars": arg, "error": err.Error()})
		}
	default:
		logger.Warn("Unknown command", logger.Fields{"command": line})
	}
	return false
}

func nextHand(h model.Hand) model.Hand {
	switch h {
	case model.HandBoth:
		return model.HandRight
	case model.HandRight:
		return model.HandLeft
	}
	return model.HandBoth
}

func logResults(results []model.HitResult) {
	for _, r := range results {
		fields := logger.Fields{"grade": r.Grade.String(), "played": r.PlayedPitch}
		if r.Expected != nil {
			fields["expected"] = int(r.Expected.Pitch)
			fields["offset_ms"] = r.OffsetMs
		}
		logger.Debug("Graded", fields)
	}
}

func finish(w io.Writer, s *session.Session, results []model.HitResult) error {
	stats := s.Stop()
	printStats(w, stats)
	printReview(w, review(s.Section(), cfg.BeatsPerBar, stats, results))
	return nil
}

func printStats(w io.Writer, stats model.SessionStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "song\t%s\n", stats.SongTitle)
	fmt.Fprintf(tw, "notes\t%d\n", stats.TotalNotes)
	fmt.Fprintf(tw, "perfect\t%d\n", stats.Perfect)
	fmt.Fprintf(tw, "good\t%d\n", stats.Good)
	fmt.Fprintf(tw, "ok\t%d\n", stats.OK)
	fmt.Fprintf(tw, "missed\t%d\n", stats.Missed)
	if stats.Extra > 0 {
		fmt.Fprintf(tw, "extra\t%d\n", stats.Extra)
	}
	fmt.Fprintf(tw, "max streak\t%d\n", stats.MaxStreak)
	fmt.Fprintf(tw, "accuracy\t%.1f%%\n", stats.Accuracy())
	tw.Flush()
}
