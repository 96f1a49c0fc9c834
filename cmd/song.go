package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jsphweid/keyfall/midi"
	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/session"
	"github.com/spf13/cobra"
)

// songFlags are shared by every command that plays a song.
type songFlags struct {
	bars  string
	split string
	hand  string
	tempo float64
	wait  bool
	loop  bool
}

func (f *songFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.bars, "bars", "b", "", "practice only these bars, e.g. 5-8 or 3")
	cmd.Flags().StringVar(&f.split, "split", "track", "hand assignment: none, track, pitch or channel")
	cmd.Flags().StringVar(&f.hand, "hand", "both", "hand to practice: left, right or both")
	cmd.Flags().Float64VarP(&f.tempo, "tempo", "t", 1, "tempo scale")
	cmd.Flags().BoolVarP(&f.wait, "wait", "w", false, "wait for the right keys before moving on")
	cmd.Flags().BoolVarP(&f.loop, "loop", "l", false, "loop the section")
}

// parseBars accepts "a-b" or a single bar. An empty string selects nothing.
func parseBars(s string) (start, end int, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, false, nil
	}
	from, to, found := strings.Cut(s, "-")
	if !found {
		to = from
	}
	start, err = strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return 0, 0, false, fmt.Errorf("bad bar range %q: %w", s, err)
	}
	end, err = strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return 0, 0, false, fmt.Errorf("bad bar range %q: %w", s, err)
	}
	return start, end, true, nil
}

func loadSong(path string, f songFlags) (*model.Timeline, error) {
	split, err := midi.ParseHandSplit(f.split)
	if err != nil {
		return nil, err
	}
	return midi.LoadFile(path, split)
}

func newSession(song *model.Timeline, f songFlags) (*session.Session, error) {
	hand, ok := model.ParseHand(f.hand)
	if !ok {
		return nil, fmt.Errorf("unknown hand %q", f.hand)
	}
	s, err := session.New(song, session.Options{
		Playback: cfg.PlaybackOptions(),
		Tracker:  cfg.TrackerOptions(),
	})
	if err != nil {
		return nil, err
	}
	start, end, ok, err := parseBars(f.bars)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := s.SelectBars(start, end); err != nil {
			return nil, err
		}
	}
	s.SetActiveHand(hand)
	s.SetWaitMode(f.wait)
	s.SetLoop(f.loop)
	s.SetTempoScale(f.tempo)
	return s, nil
}
