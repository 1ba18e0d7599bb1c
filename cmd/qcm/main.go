package main

import (
	"context"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"qcm/internal/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "qcm:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := app.DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	root := &cobra.Command{
		Use:   "qcm",
		Short: "Terminal trainer for multiple-choice question banks",
		Long: `qcm loads a catalog of JSON question banks and runs timed or
untimed multiple-choice quiz sessions in the terminal, with per-quiz
high scores, CSV export, and persistent settings.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(cmd.Context())
		},
	}

	fl := root.Flags()
	fl.StringVar(&cfg.BankDir, "banks", cfg.BankDir, "directory holding catalog.yaml and question banks")
	fl.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "state directory (defaults to ~/.local/share/qcm)")
	fl.StringVar(&cfg.LogPath, "log", cfg.LogPath, "JSON log file (logging off when empty)")
	fl.BoolVar(&cfg.ASCIIOnly, "ascii", cfg.ASCIIOnly, "draw with ASCII glyphs only")
	fl.BoolVar(&cfg.DebugLayout, "debug", cfg.DebugLayout, "debug header info and verbose logging")
	fl.StringVar(&cfg.Theme, "theme", cfg.Theme, "ui theme: focus_dark, warm_paper, retro_terminal")
	fl.IntVar(&cfg.Questions, "questions", cfg.Questions, "custom question count offered by the count-mode cycle")
	fl.IntVar(&cfg.TimerMinutes, "timer", cfg.TimerMinutes, "countdown length in minutes")

	return root.ExecuteContext(context.Background())
}
