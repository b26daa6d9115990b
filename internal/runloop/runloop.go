// Package runloop executes a strategy repeatedly without letting one bad run
// take the process down. Each run is isolated: an error or a panic is
// logged with its stack, counted and journaled, and the loop sleeps the
// fixed interval and tries again.
package runloop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/metrics"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/runlock"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/tradelog"
)

const (
	DefaultInterval = time.Hour
	DefaultLockKey  = "run"
	DefaultLockTTL  = 30 * time.Minute
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomePanic   = "panic"
	OutcomeSkipped = "skipped"
)

// Report is what a run hands back for the journal.
type Report struct {
	Steps   int
	Summary string
}

// Iteration is one strategy run. It builds whatever it needs (agent,
// pipeline, broker session) from scratch.
type Iteration func(ctx context.Context, run int) (Report, error)

// Locker guards a run against concurrent instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (runlock.UnlockFunc, error)
}

type Config struct {
	Interval time.Duration
	// MaxRuns stops the loop after that many runs. Zero runs forever.
	MaxRuns int
	LockKey string
	LockTTL time.Duration
}

type Loop struct {
	iterate Iteration
	cfg     Config
	locker  Locker
	metrics *metrics.Metrics
	journal *tradelog.Journal
	sleep   func(ctx context.Context, d time.Duration) error
}

type Option func(*Loop)

func WithLocker(l Locker) Option {
	return func(loop *Loop) { loop.locker = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(loop *Loop) { loop.metrics = m }
}

func WithJournal(j *tradelog.Journal) Option {
	return func(loop *Loop) { loop.journal = j }
}

// WithSleep replaces the pause between runs.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(loop *Loop) { loop.sleep = sleep }
}

func New(iterate Iteration, cfg Config, opts ...Option) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.LockKey == "" {
		cfg.LockKey = DefaultLockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	l := &Loop{iterate: iterate, cfg: cfg, sleep: sleepCtx}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run loops until ctx is canceled or MaxRuns runs are done. It returns nil
// in the latter case and ctx.Err() otherwise.
func (l *Loop) Run(ctx context.Context) error {
	logger.Info(ctx, "Run loop started",
		"interval", l.cfg.Interval.String(),
		"max_runs", l.cfg.MaxRuns,
		"locked", l.locker != nil,
	)
	for run := 1; ; run++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.RunOnce(ctx, run)

		if l.cfg.MaxRuns > 0 && run >= l.cfg.MaxRuns {
			logger.Info(ctx, "Run loop finished", "runs", run)
			return nil
		}
		logger.Info(ctx, "Sleeping until next run", "run", run, "interval", l.cfg.Interval.String())
		if err := l.sleep(ctx, l.cfg.Interval); err != nil {
			return err
		}
	}
}

// RunOnce executes one isolated run and reports its outcome.
func (l *Loop) RunOnce(ctx context.Context, run int) string {
	if l.locker != nil {
		unlock, err := l.locker.TryLock(ctx, l.cfg.LockKey, l.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, runlock.ErrHeld) {
				logger.Warn(ctx, "Skipping run, another instance holds the run lock", "run", run)
			} else {
				logger.ErrorWithErr(ctx, "Skipping run, run lock unavailable", err, "run", run)
			}
			l.finish(ctx, run, OutcomeSkipped, 0, Report{}, err)
			return OutcomeSkipped
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.ErrorWithErr(ctx, "Failed to release run lock", err, "run", run)
			}
		}()
	}

	op := logger.StartOperation(ctx, "runloop.Run", "run", run)
	ctx = op.GetContext()
	logger.Info(ctx, "Run started", "run", run)
	report, outcome, err := l.execute(ctx, run)
	var d time.Duration
	if err != nil {
		d = op.EndWithError(err, "outcome", outcome)
	} else {
		d = op.End("steps", report.Steps)
	}
	l.finish(ctx, run, outcome, d, report, err)
	return outcome
}

func (l *Loop) execute(ctx context.Context, run int) (report Report, outcome string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			outcome = OutcomePanic
			logger.Error(ctx, "Run panicked",
				"run", run,
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()),
			)
		}
	}()

	report, err = l.iterate(ctx, run)
	if err != nil {
		logger.ErrorWithErr(ctx, "Run failed", err, "run", run, "chain", chain(err))
		return report, OutcomeError, err
	}
	return report, OutcomeSuccess, nil
}

func (l *Loop) finish(ctx context.Context, run int, outcome string, d time.Duration, report Report, err error) {
	l.metrics.ObserveRun(outcome, d)

	entry := tradelog.RunEntry{
		Run:        run,
		Outcome:    outcome,
		DurationMS: d.Milliseconds(),
		Steps:      report.Steps,
		Summary:    report.Summary,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if jerr := l.journal.AppendRun(entry); jerr != nil {
		logger.ErrorWithErr(ctx, "Failed to journal run", jerr, "run", run)
	}
	if outcome == OutcomeSuccess {
		logger.Info(ctx, "Run completed", "run", run, "steps", report.Steps, "duration_ms", d.Milliseconds())
	}
}

// chain lists the messages of every wrapped error, outermost first.
func chain(err error) []string {
	var out []string
	for err != nil {
		out = append(out, err.Error())
		err = errors.Unwrap(err)
	}
	return out
}
