package stress

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Scheduler paces calls with a token bucket and caps how many are in
// flight at once.
type Scheduler struct {
	target   float64
	rampUp   time.Duration
	limiter  *rate.Limiter
	inFlight *semaphore.Weighted
}

func NewScheduler(config *Config) *Scheduler {
	s := &Scheduler{
		target: config.Rate,
		rampUp: config.RampUp,
	}
	s.limiter = rate.NewLimiter(rate.Limit(s.CurrentRate(0)), 1)

	slots := config.MaxConcurrency
	if slots < 1 {
		slots = DefaultConfig().MaxConcurrency
	}
	s.inFlight = semaphore.NewWeighted(int64(slots))
	return s
}

// Wait blocks until the limiter grants the next call.
func (s *Scheduler) Wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// Acquire takes an in-flight slot, blocking until one frees up or ctx is
// done.
func (s *Scheduler) Acquire(ctx context.Context) error {
	return s.inFlight.Acquire(ctx, 1)
}

func (s *Scheduler) Release() {
	s.inFlight.Release(1)
}

// CurrentRate returns the target rate at elapsed, ramping linearly. The
// ramp never drops below one call per second so the limiter keeps moving.
func (s *Scheduler) CurrentRate(elapsed time.Duration) float64 {
	if s.rampUp <= 0 || elapsed >= s.rampUp {
		return s.target
	}
	r := s.target * float64(elapsed) / float64(s.rampUp)
	return max(r, min(1, s.target))
}

// UpdateRate changes the limiter's rate. Non-positive rates are ignored.
func (s *Scheduler) UpdateRate(newRate float64) {
	if newRate > 0 && newRate != s.Limit() {
		s.limiter.SetLimit(rate.Limit(newRate))
	}
}

func (s *Scheduler) Limit() float64 {
	return float64(s.limiter.Limit())
}
