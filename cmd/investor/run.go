package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/metrics"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/runlock"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/runloop"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/store"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/strategy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the strategy on a fixed interval until interrupted",
	Long: `run executes the configured strategy, sleeps for run.interval and
repeats. A failed or panicking run is logged and the loop carries on.`,
	RunE: runLoop,
}

func init() {
	runCmd.Flags().Int("max-runs", -1, "Stop after this many runs (overrides run.max_runs; 0 runs forever)")
	runCmd.Flags().String("style", "", "Strategy style, eager or batched (overrides strategy.style)")
	rootCmd.AddCommand(runCmd)
}

func runLoop(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("max-runs"); n >= 0 {
		cfg.Run.MaxRuns = n
	}
	ladder, err := newLadder(cmd, cfg)
	if err != nil {
		return err
	}

	a := newApp(ctx, cfg)
	a.compressOldLogs(ctx)

	opts := []runloop.Option{
		runloop.WithMetrics(a.metrics),
		runloop.WithJournal(a.journal),
	}
	if cfg.Run.Lock.Enabled {
		locker, err := newLocker(ctx, cfg)
		if err != nil {
			return err
		}
		defer locker.Close()
		opts = append(opts, runloop.WithLocker(locker))
	}

	if cfg.Status.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Status.Addr, metrics.NewRouter(a.metrics, a.health)); err != nil {
				logger.ErrorWithErr(ctx, "Status server stopped", err, "addr", cfg.Status.Addr)
			}
		}()
	}

	logger.Info(ctx, "Starting run loop",
		"mode", cfg.Mode,
		"provider", cfg.Broker.Provider,
		"env", string(cfg.Broker.Environment),
		"symbol", ladder.Config().Symbol,
		"style", string(ladder.Config().Style),
		"interval", cfg.Run.Interval.String(),
		"max_runs", cfg.Run.MaxRuns)

	loop := runloop.New(a.iteration(ladder), runloop.Config{
		Interval: cfg.Run.Interval,
		MaxRuns:  cfg.Run.MaxRuns,
		LockKey:  cfg.Run.Lock.Key,
		LockTTL:  cfg.Run.Lock.TTL,
	}, opts...)

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info(ctx, "Run loop stopped")
		return nil
	}
	return err
}

// newLadder builds the strategy, applying the --style override.
func newLadder(cmd *cobra.Command, cfg *store.Config) (*strategy.Ladder, error) {
	lc := cfg.Strategy
	if s, _ := cmd.Flags().GetString("style"); s != "" {
		style, err := strategy.ParseStyle(s)
		if err != nil {
			return nil, err
		}
		lc.Style = style
	}
	return strategy.NewLadder(lc)
}

func newLocker(ctx context.Context, cfg *store.Config) (*runlock.Locker, error) {
	creds, err := cfg.Credentials(cfg.Broker.Environment)
	if err != nil {
		return nil, err
	}
	if creds.RedisURL == "" {
		return nil, fmt.Errorf("run.lock.enabled requires REDIS_URL")
	}
	locker, err := runlock.NewFromURL(ctx, creds.RedisURL, runlock.DefaultPrefix)
	if err != nil {
		return nil, fmt.Errorf("connect run lock: %w", err)
	}
	return locker, nil
}
