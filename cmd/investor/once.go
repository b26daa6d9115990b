package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/runloop"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run the strategy a single time and print the summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx, cmd)
		if err != nil {
			return err
		}
		ladder, err := newLadder(cmd, cfg)
		if err != nil {
			return err
		}
		a := newApp(ctx, cfg)

		var last runloop.Report
		iterate := a.iteration(ladder)
		loop := runloop.New(func(ctx context.Context, run int) (runloop.Report, error) {
			r, err := iterate(ctx, run)
			last = r
			return r, err
		}, runloop.Config{Interval: cfg.Run.Interval, MaxRuns: 1},
			runloop.WithMetrics(a.metrics), runloop.WithJournal(a.journal))

		outcome := loop.RunOnce(ctx, 1)
		if last.Summary != "" {
			fmt.Fprintln(cmd.OutOrStdout(), last.Summary)
		}
		if outcome != runloop.OutcomeSuccess {
			return fmt.Errorf("run finished with outcome %s after %d steps", outcome, last.Steps)
		}
		return nil
	},
}

func init() {
	onceCmd.Flags().String("style", "", "Strategy style, eager or batched (overrides strategy.style)")
	rootCmd.AddCommand(onceCmd)
}
