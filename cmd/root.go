package cmd

import (
	"github.com/jsphweid/keyfall/config"
	"github.com/jsphweid/keyfall/logger"
	"github.com/spf13/cobra"
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

var cfg *config.Config

var difficulty string

var rootCmd = &cobra.Command{
	Use:   "keyfall",
	Short: "Practice piano pieces against a MIDI keyboard",
	Long: `keyfall plays a MIDI file, listens to your keyboard and grades every note.
Sections can be looped bar by bar, slowed down, or played in wait mode where
the song only moves on once you press the right keys.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if difficulty != "" {
			if err := cfg.UseDifficulty(difficulty); err != nil {
				return err
			}
		}
		logger.SetDebug(cfg.Debug)
		if err := logger.Init(cfg.SentryDSN, cfg.Environment, releaseVersion); err != nil {
			logger.Warn("Sentry disabled", logger.Fields{"error": err.Error()})
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Flush()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&difficulty, "difficulty", "d", "", "grading preset: easy, normal or hard")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
