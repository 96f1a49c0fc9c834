package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jsphweid/keyfall/analysis"
	"github.com/jsphweid/keyfall/model"
	"github.com/jsphweid/keyfall/timeline"
)

// Review is what a finished run says about the player.
type Review struct {
	Bars     []analysis.BarStat `json:"bars"`
	Insights []analysis.Insight `json:"insights"`
	Plan     analysis.Plan      `json:"plan"`
}

// review grades section bar by bar and plans the next session, counting this
// run as the latest entry of the player's history.
func review(section *model.Timeline, beatsPerBar float64, stats model.SessionStats, results []model.HitResult) Review {
	c := timeline.NewConverter(section, beatsPerBar)
	bars := analysis.BarAccuracy(c, results)
	return Review{
		Bars:     bars,
		Insights: analysis.Analyze(results),
		Plan:     analysis.BuildPlan(section, c, []model.SessionStats{stats}, bars, analysis.DefaultPlanOptions()),
	}
}

func printReview(w io.Writer, r Review) {
	if len(r.Bars) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "BAR\tNOTES\tPERFECT\tGOOD\tOK\tMISSED\tACCURACY")
		for _, b := range r.Bars {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%.0f%%\n",
				b.Bar, b.Total, b.Perfect, b.Good, b.OK, b.Missed, b.Accuracy()*100)
		}
		tw.Flush()
	}
	printInsights(w, r.Insights)
	printPlan(w, r.Plan)
}

func printInsights(w io.Writer, insights []analysis.Insight) {
	for _, in := range insights {
		fmt.Fprintf(w, "[%s %.2f] %s\n", in.Category, in.Severity, in.Message)
	}
}

func printPlan(w io.Writer, p analysis.Plan) {
	fmt.Fprintf(w, "plan for %s (mastery %.0f%%, ~%d sessions to go)\n", p.Title, p.MasteryPct, p.EstimatedSessions)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BARS\tHAND\tTEMPO\tREPS\tFOCUS")
	for _, s := range p.Steps {
		fmt.Fprintf(tw, "%d-%d\t%s\t%d%%\t%d\t%s\n", s.StartBar, s.EndBar, s.Hand, s.TempoPct, s.Repetitions, s.Focus)
	}
	tw.Flush()
}

func printDifficulty(w io.Writer, r analysis.Report) {
	fmt.Fprintln(w, r.Description)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range r.Factors {
		fmt.Fprintf(tw, "  %s\t%.0f%%\n", f.Name, f.Score*100)
	}
	tw.Flush()
}
