package stress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/restpipe/packages/http"
)

// Latencies are recorded in microseconds between 1µs and one minute, to
// three significant figures.
const (
	histMin     = 1
	histMax     = int64(time.Minute / time.Microsecond)
	histSigFigs = 3
)

// Metrics accumulates call outcomes and latencies for one run. Record is
// safe for concurrent use.
type Metrics struct {
	ok       atomic.Int64
	failed   [http.KindRequestSetup + 1]atomic.Int64 // by http.ErrorKind
	inFlight atomic.Int32

	mu      sync.Mutex
	hist    *hdrhistogram.Histogram
	started time.Time
	stopped time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{hist: hdrhistogram.New(histMin, histMax, histSigFigs)}
}

func (m *Metrics) Start() {
	m.mu.Lock()
	m.started = time.Now()
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	m.stopped = time.Now()
	m.mu.Unlock()
}

// Record adds one finished call. A failure is counted under its pipeline
// error kind; errors from outside the pipeline count as KindUnknown.
func (m *Metrics) Record(d time.Duration, err error) {
	if err == nil {
		m.ok.Add(1)
	} else {
		kind := http.KindOf(err)
		if kind < 0 || int(kind) >= len(m.failed) {
			kind = http.KindUnknown
		}
		m.failed[kind].Add(1)
	}

	us := min(max(d.Microseconds(), histMin), histMax)
	m.mu.Lock()
	_ = m.hist.RecordValue(us)
	m.mu.Unlock()
}

func (m *Metrics) IncrementInFlight() { m.inFlight.Add(1) }
func (m *Metrics) DecrementInFlight() { m.inFlight.Add(-1) }

// Summary is the end-of-run view of a Metrics.
type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64

	ServerErrors     int64
	NoResponseErrors int64
	SetupErrors      int64
	OtherErrors      int64

	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration
}

// CurrentStats is the live view shown while a run is in progress.
type CurrentStats struct {
	Elapsed   time.Duration
	Total     int64
	Success   int64
	Errors    int64
	RPS       float64
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Max       time.Duration
	InFlight  int32
	ErrorRate float64
}

type counts struct {
	ok, failed int64
	byKind     [http.KindRequestSetup + 1]int64
}

func (c counts) total() int64 { return c.ok + c.failed }

func (m *Metrics) snapshot() counts {
	var c counts
	c.ok = m.ok.Load()
	for k := range m.failed {
		c.byKind[k] = m.failed[k].Load()
		c.failed += c.byKind[k]
	}
	return c
}

func ratio(n, of int64) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of)
}

func perSecond(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

func micros(v int64) time.Duration { return time.Duration(v) * time.Microsecond }

// elapsed and pct expect mu to be held.
func (m *Metrics) elapsed() time.Duration {
	if m.stopped.IsZero() {
		return time.Since(m.started)
	}
	return m.stopped.Sub(m.started)
}

func (m *Metrics) pct(q float64) time.Duration {
	return micros(m.hist.ValueAtQuantile(q))
}

func (m *Metrics) GetSummary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.snapshot()
	d := m.elapsed()
	return &Summary{
		Duration:         d,
		TotalRequests:    c.total(),
		SuccessCount:     c.ok,
		ErrorCount:       c.failed,
		ServerErrors:     c.byKind[http.KindServer],
		NoResponseErrors: c.byKind[http.KindNoResponse],
		SetupErrors:      c.byKind[http.KindRequestSetup],
		OtherErrors:      c.byKind[http.KindUnknown],
		RPS:              perSecond(c.total(), d),
		SuccessRate:      ratio(c.ok, c.total()),
		ErrorRate:        ratio(c.failed, c.total()),
		P50:              m.pct(50),
		P95:              m.pct(95),
		P99:              m.pct(99),
		Min:              micros(m.hist.Min()),
		Max:              micros(m.hist.Max()),
		Mean:             micros(int64(m.hist.Mean())),
		StdDev:           micros(int64(m.hist.StdDev())),
	}
}

func (m *Metrics) GetCurrentStats() CurrentStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.snapshot()
	d := m.elapsed()
	return CurrentStats{
		Elapsed:   d,
		Total:     c.total(),
		Success:   c.ok,
		Errors:    c.failed,
		RPS:       perSecond(c.total(), d),
		P50:       m.pct(50),
		P95:       m.pct(95),
		P99:       m.pct(99),
		Max:       micros(m.hist.Max()),
		InFlight:  m.inFlight.Load(),
		ErrorRate: ratio(c.failed, c.total()),
	}
}
