// Package notify posts load run results as JSON to webhooks. Webhooks are
// called through the request pipeline, so a failed delivery carries the
// same error kinds as any other call.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/restpipe/packages/stress"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when thresholds fail
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when thresholds pass
	NotifySuccess NotifyOn = "success"
)

// ParseNotifyOn validates a --notify-on value.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case NotifyAlways, NotifyFailure, NotifySuccess:
		return on, nil
	}
	return "", fmt.Errorf("unknown notify policy %q (expected always, failure or success)", s)
}

// RunSummary is what a notifier reports about one load run. Durations are
// sent as milliseconds.
type RunSummary struct {
	Target   string        `json:"target"`
	Passed   bool          `json:"passed"`
	Duration time.Duration `json:"-"`
	Total    int64         `json:"total"`
	Failed   int64         `json:"failed"`
	RPS      float64       `json:"rps"`
	P95      time.Duration `json:"-"`

	ServerErrors     int64 `json:"serverErrors"`
	NoResponseErrors int64 `json:"noResponseErrors"`
	SetupErrors      int64 `json:"setupErrors"`

	FailedThresholds []string `json:"failedThresholds,omitempty"`
}

// FromReport condenses a load report.
func FromReport(target string, r *stress.Report) *RunSummary {
	s := r.Summary
	summary := &RunSummary{
		Target:           target,
		Passed:           r.Passed(),
		Duration:         s.Duration,
		Total:            s.TotalRequests,
		Failed:           s.ErrorCount,
		RPS:              s.RPS,
		P95:              s.P95,
		ServerErrors:     s.ServerErrors,
		NoResponseErrors: s.NoResponseErrors,
		SetupErrors:      s.SetupErrors,
	}
	for _, tr := range r.Thresholds {
		if !tr.Passed {
			summary.FailedThresholds = append(summary.FailedThresholds,
				fmt.Sprintf("%s %s (actual: %s)", tr.Name, tr.Expected, tr.Actual))
		}
	}
	return summary
}

// Notifier is the interface for notification services
type Notifier interface {
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager sends to every notifier the policy allows.
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len returns the number of notifiers.
func (m *Manager) Len() int {
	return len(m.notifiers)
}

func (m *Manager) shouldNotify(summary *RunSummary) bool {
	switch m.notifyOn {
	case NotifyAlways:
		return true
	case NotifyFailure:
		return !summary.Passed
	case NotifySuccess:
		return summary.Passed
	}
	return false
}

// Notify delivers summary to every notifier, even when one fails. Delivery
// errors are joined and prefixed with the notifier name.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	if !m.shouldNotify(summary) {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
