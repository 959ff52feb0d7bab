// Package stress drives the request pipeline at a fixed rate for a fixed
// duration and reports latency percentiles and failures by error kind.
package stress

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config describes one load run.
type Config struct {
	Duration       time.Duration
	Rate           float64       // calls per second
	MaxConcurrency int           // max calls in flight
	RampUp         time.Duration // linear ramp from 0 to Rate
	Thresholds     Thresholds
}

func DefaultConfig() *Config {
	return &Config{
		Duration:       30 * time.Second,
		Rate:           10,
		MaxConcurrency: 100,
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Duration <= 0:
		return errors.New("duration must be positive")
	case c.Rate <= 0:
		return errors.New("rate must be positive")
	case c.MaxConcurrency < 1:
		return errors.New("max concurrency must be at least 1")
	case c.RampUp < 0:
		return errors.New("rampUp cannot be negative")
	case c.RampUp > c.Duration:
		return errors.New("rampUp cannot exceed duration")
	}
	return nil
}

type unit int

const (
	unitLatency unit = iota
	unitRatio
	unitRate
)

// metric is one summary value a threshold can bound.
type metric struct {
	label string
	unit  unit
	floor bool // the limit is a minimum rather than a maximum
	read  func(*Summary) float64
}

func latencyOf(pick func(*Summary) time.Duration) func(*Summary) float64 {
	return func(s *Summary) float64 { return float64(pick(s)) }
}

func kindRate(pick func(*Summary) int64) func(*Summary) float64 {
	return func(s *Summary) float64 {
		if s.TotalRequests == 0 {
			return 0
		}
		return float64(pick(s)) / float64(s.TotalRequests)
	}
}

var (
	p50Metric     = &metric{"p50", unitLatency, false, latencyOf(func(s *Summary) time.Duration { return s.P50 })}
	p95Metric     = &metric{"p95", unitLatency, false, latencyOf(func(s *Summary) time.Duration { return s.P95 })}
	p99Metric     = &metric{"p99", unitLatency, false, latencyOf(func(s *Summary) time.Duration { return s.P99 })}
	maxMetric     = &metric{"max latency", unitLatency, false, latencyOf(func(s *Summary) time.Duration { return s.Max })}
	errorsMetric  = &metric{"error rate", unitRatio, false, func(s *Summary) float64 { return s.ErrorRate }}
	serverMetric  = &metric{"server error rate", unitRatio, false, kindRate(func(s *Summary) int64 { return s.ServerErrors })}
	noRespMetric  = &metric{"no response rate", unitRatio, false, kindRate(func(s *Summary) int64 { return s.NoResponseErrors })}
	setupMetric   = &metric{"request setup rate", unitRatio, false, kindRate(func(s *Summary) int64 { return s.SetupErrors })}
	minRateMetric = &metric{"min RPS", unitRate, true, func(s *Summary) float64 { return s.RPS }}
)

// metricNames maps every accepted spelling onto its metric.
var metricNames = map[string]*metric{
	"p50":           p50Metric,
	"p95":           p95Metric,
	"p99":           p99Metric,
	"max":           maxMetric,
	"maxlatency":    maxMetric,
	"errors":        errorsMetric,
	"error":         errorsMetric,
	"errorrate":     errorsMetric,
	"server":        serverMetric,
	"no_response":   noRespMetric,
	"noresponse":    noRespMetric,
	"setup":         setupMetric,
	"request_setup": setupMetric,
	"rps":           minRateMetric,
	"rate":          minRateMetric,
}

// Threshold bounds one summary value. Limit is in nanoseconds for latency
// metrics, a 0..1 fraction for rates of failure, and calls per second for
// throughput. Inclusive thresholds (<= and >=) also pass at the limit.
type Threshold struct {
	metric    *metric
	Limit     float64
	Inclusive bool
}

// Name is the label results are reported under.
func (t Threshold) Name() string { return t.metric.label }

func (t Threshold) expected() string {
	op := "<"
	if t.metric.floor {
		op = ">"
	}
	if t.Inclusive {
		op += "="
	}
	return op + " " + t.metric.format(t.Limit)
}

func (t Threshold) holds(actual float64) bool {
	switch {
	case t.metric.floor && t.Inclusive:
		return actual >= t.Limit
	case t.metric.floor:
		return actual > t.Limit
	case t.Inclusive:
		return actual <= t.Limit
	default:
		return actual < t.Limit
	}
}

func (m *metric) format(v float64) string {
	switch m.unit {
	case unitLatency:
		return time.Duration(v).String()
	case unitRatio:
		return formatFloat(v*100) + "%"
	default:
		return formatFloat(v)
	}
}

func (m *metric) parse(raw string) (float64, error) {
	switch m.unit {
	case unitLatency:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %s", m.label, raw)
		}
		return float64(d), nil
	case unitRatio:
		pct := strings.HasSuffix(raw, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", m.label, raw)
		}
		if pct {
			f /= 100
		}
		return f, nil
	default:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", m.label, raw)
		}
		return f, nil
	}
}

// Thresholds is the set of pass/fail criteria for a run, in the order they
// were given.
type Thresholds []Threshold

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a list such as "p95<200ms,errors<0.1%,rps>=50".
// Latency and failure-rate metrics take an upper bound; rps takes a lower one.
func ParseThresholds(s string) (Thresholds, error) {
	var out Thresholds
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		m := thresholdPattern.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("invalid threshold format: %s", part)
		}
		name, op, raw := strings.ToLower(m[1]), m[2], strings.TrimSpace(m[3])

		met, ok := metricNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown threshold metric: %s", name)
		}
		if floor := strings.HasPrefix(op, ">"); floor != met.floor {
			want := "< or <="
			if met.floor {
				want = "> or >="
			}
			return nil, fmt.Errorf("%s threshold must use %s", met.label, want)
		}

		limit, err := met.parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Threshold{metric: met, Limit: limit, Inclusive: strings.HasSuffix(op, "=")})
	}
	return out, nil
}

// MustParseThresholds is ParseThresholds for fixed expressions.
func MustParseThresholds(s string) Thresholds {
	t, err := ParseThresholds(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Thresholds) HasThresholds() bool {
	return len(t) > 0
}

// ThresholdResult is one evaluated threshold.
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}

// Evaluate checks every threshold against the summary.
func (t Thresholds) Evaluate(summary *Summary) []ThresholdResult {
	results := make([]ThresholdResult, 0, len(t))
	for _, th := range t {
		actual := th.metric.read(summary)
		results = append(results, ThresholdResult{
			Name:     th.Name(),
			Passed:   th.holds(actual),
			Expected: th.expected(),
			Actual:   th.metric.format(actual),
		})
	}
	return results
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
