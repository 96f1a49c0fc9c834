package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jsphweid/keyfall/analysis"
	"github.com/jsphweid/keyfall/chord"
	"github.com/jsphweid/keyfall/midi"
	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/timeline"
	"github.com/spf13/cobra"
)

var (
	inspectSplit string
	inspectBars  string
	inspectJSON  bool
	inspectRate  bool
)

func init() {
	inspectCmd.Flags().StringVar(&inspectSplit, "split", "track", "hand assignment: none, track, pitch or channel")
	inspectCmd.Flags().StringVarP(&inspectBars, "bars", "b", "", "only these bars, e.g. 5-8")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "dump the (extracted) timeline as JSON")
	inspectCmd.Flags().BoolVar(&inspectRate, "report", false, "rate the difficulty and suggest a practice plan instead")
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(portsCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Show the bars of a song",
	Long: `Show where every bar of a song starts, its meter and tempo, and the
onset groups it contains. With --bars the selected section is shown re-based
to bar 1, exactly as practice would load it. With --report the song is rated
on a 1-18 scale and a first practice plan is laid out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		song, err := loadSong(args[0], songFlags{split: inspectSplit})
		if err != nil {
			return err
		}
		start, end, ok, err := parseBars(inspectBars)
		if err != nil {
			return err
		}
		if ok {
			song, err = timeline.Extract(song, start, end, cfg.BeatsPerBar)
			if err != nil {
				return err
			}
		}
		if inspectRate {
			c := timeline.NewConverter(song, cfg.BeatsPerBar)
			report := analysis.Estimate(song, c)
			plan := analysis.BuildPlan(song, c, nil, nil, analysis.DefaultPlanOptions())
			if inspectJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Difficulty analysis.Report `json:"difficulty"`
					Plan       analysis.Plan   `json:"plan"`
				}{report, plan})
			}
			printDifficulty(os.Stdout, report)
			printPlan(os.Stdout, plan)
			return nil
		}
		if inspectJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(song)
		}
		barTable(os.Stdout, song, cfg.BeatsPerBar, cfg.ChordToleranceMs/1000)
		return nil
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI ports",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		defer midi.CloseDriver()
		fmt.Println("inputs:")
		for _, p := range midi.InPorts() {
			fmt.Printf("  %s\n", p)
		}
		fmt.Println("outputs:")
		for _, p := range midi.OutPorts() {
			fmt.Printf("  %s\n", p)
		}
	},
}

// barTable writes one row per bar of t with its onset groups as chord keys,
// named when they form a known chord.
func barTable(w io.Writer, t *model.Timeline, beatsPerBar, tolerance float64) {
	c := timeline.NewConverter(t, beatsPerBar)
	last := c.LastBar(t.Duration)

	lh, rh := model.SplitHands(t)
	fmt.Fprintf(w, "%s: %d notes (%d left, %d right), %.2fs, %d bars\n",
		t.Title, len(t.Notes), len(lh.Notes), len(rh.Notes), t.Duration, last)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BAR\tSTART\tBEATS\tBPM\tNOTES\tLEFT\tGROUPS")

	i := 0
	for bar := 1; bar <= last; bar++ {
		end := c.BarStartTime(bar + 1)
		var count, left int
		var groups []string
		for i < len(t.Notes) && t.Notes[i].StartTime < end {
			group := chord.Group(t.Notes, i, tolerance)
			for _, n := range group {
				if n.Hand == model.HandLeft {
					left++
				}
			}
			count += len(group)
			key := chord.CreateChordKey(chord.Pitches(group))
			if name, ok := chord.Name(chord.Pitches(group)); ok {
				key += "(" + name + ")"
			}
			groups = append(groups, key)
			i += len(group)
		}
		spb := c.SecondsPerBeat(bar)
		bpm := 0.0
		if spb > 0 {
			bpm = 60 / spb
		}
		fmt.Fprintf(tw, "%d\t%.3f\t%g\t%.1f\t%d\t%d\t%s\n",
			bar, c.BarStartTime(bar), c.BeatsPerBar(bar), bpm, count, left, strings.Join(groups, " "))
	}
	tw.Flush()
}
