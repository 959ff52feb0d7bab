package stress

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// CallFunc issues one call through the pipeline.
type CallFunc func(ctx context.Context) error

// Runner executes load runs
type Runner struct {
	config    *Config
	scheduler *Scheduler
	metrics   *Metrics
	reporter  *Reporter
	target    string
}

// RunnerOption configures the runner
type RunnerOption func(*Runner)

// WithReporter sets the reporter
func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// WithTarget names what is being loaded in the report header.
func WithTarget(target string) RunnerOption {
	return func(r *Runner) {
		r.target = target
	}
}

// NewRunner creates a new load runner
func NewRunner(config *Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		config:    config,
		metrics:   NewMetrics(),
		scheduler: NewScheduler(config),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.reporter == nil {
		r.reporter = NewReporter()
	}

	return r
}

// Report holds the final result of a load run
type Report struct {
	Summary    *Summary
	Thresholds []ThresholdResult
}

// Passed reports whether every configured threshold held.
func (r *Report) Passed() bool {
	for _, tr := range r.Thresholds {
		if !tr.Passed {
			return false
		}
	}
	return true
}

// Run calls fn at the configured rate until the duration elapses or ctx is
// done. In-flight calls are waited for before the report is built.
func (r *Runner) Run(ctx context.Context, fn CallFunc) (*Report, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r.reporter.Header(r.target, r.config)

	ctx, cancel := context.WithTimeout(ctx, r.config.Duration)
	defer cancel()

	r.metrics.Start()
	stopProgress := r.startProgress()
	r.dispatch(ctx, fn)
	r.metrics.Stop()
	stopProgress()

	report := &Report{Summary: r.metrics.GetSummary()}
	if r.config.Thresholds.HasThresholds() {
		report.Thresholds = r.config.Thresholds.Evaluate(report.Summary)
	}
	r.reporter.Summary(report.Summary, report.Thresholds)

	return report, nil
}

// dispatch starts one call per limiter token until ctx is done, then waits
// for the calls still in flight.
func (r *Runner) dispatch(ctx context.Context, fn CallFunc) {
	var g errgroup.Group
	defer func() { _ = g.Wait() }()

	start := time.Now()
	for ctx.Err() == nil {
		if r.config.RampUp > 0 {
			r.scheduler.UpdateRate(r.scheduler.CurrentRate(time.Since(start)))
		}
		if err := r.scheduler.Wait(ctx); err != nil {
			return
		}
		if err := r.scheduler.Acquire(ctx); err != nil {
			return
		}

		g.Go(func() error {
			defer r.scheduler.Release()
			r.execute(ctx, fn)
			return nil
		})
	}
}

func (r *Runner) execute(ctx context.Context, fn CallFunc) {
	r.metrics.IncrementInFlight()
	defer r.metrics.DecrementInFlight()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	// Calls cut off by the end of the run are not counted.
	if err != nil && ctx.Err() != nil {
		return
	}
	r.metrics.Record(duration, err)
}

// startProgress redraws the status line until the returned stop is called.
func (r *Runner) startProgress() (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				r.reporter.Progress(r.metrics.GetCurrentStats(), r.config.Duration)
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		r.reporter.ClearProgress()
	}
}
