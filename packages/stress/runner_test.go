package stress

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeline "github.com/abdul-hamid-achik/restpipe/packages/http"
)

func quietReporter(buf *bytes.Buffer) *Reporter {
	return NewReporter(WithWriter(buf), WithNoProgress(true), WithNoColor(true))
}

func TestRunner_AgainstPipeline(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1)%5 == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := pipeline.NewClient(server.URL)
	var out bytes.Buffer
	runner := NewRunner(&Config{
		Duration:       time.Second,
		Rate:           50,
		MaxConcurrency: 10,
		Thresholds:     MustParseThresholds("errors<50%"),
	}, WithReporter(quietReporter(&out)), WithTarget("GET /health"))

	report, err := runner.Run(context.Background(), func(ctx context.Context) error {
		_, err := pipeline.Get[map[string]bool](ctx, client, "/health")
		return err
	})
	require.NoError(t, err)

	s := report.Summary
	assert.Greater(t, s.TotalRequests, int64(10))
	assert.Greater(t, s.ServerErrors, int64(0))
	assert.Equal(t, s.ErrorCount, s.ServerErrors)
	assert.Equal(t, s.TotalRequests, s.SuccessCount+s.ErrorCount)
	assert.True(t, report.Passed())
	assert.Contains(t, out.String(), "GET /health")
	assert.Contains(t, out.String(), "LOAD SUMMARY")
}

func TestRunner_ThresholdFailure(t *testing.T) {
	var out bytes.Buffer
	runner := NewRunner(&Config{
		Duration:       300 * time.Millisecond,
		Rate:           20,
		MaxConcurrency: 2,
		Thresholds:     MustParseThresholds("errors<1%"),
	}, WithReporter(quietReporter(&out)))

	report, err := runner.Run(context.Background(), func(ctx context.Context) error {
		return &pipeline.NoResponseError{}
	})
	require.NoError(t, err)

	assert.False(t, report.Passed())
	assert.Equal(t, report.Summary.ErrorCount, report.Summary.NoResponseErrors)
	assert.Contains(t, out.String(), "1 of 1 thresholds failed")
}

func TestRunner_RespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	var out bytes.Buffer
	runner := NewRunner(&Config{
		Duration:       400 * time.Millisecond,
		Rate:           200,
		MaxConcurrency: 3,
	}, WithReporter(quietReporter(&out)))

	_, err := runner.Run(context.Background(), func(ctx context.Context) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRunner_InvalidConfig(t *testing.T) {
	runner := NewRunner(&Config{Duration: 0, Rate: 1, MaxConcurrency: 1}, WithReporter(quietReporter(&bytes.Buffer{})))
	_, err := runner.Run(context.Background(), func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestScheduler_RampUp(t *testing.T) {
	s := NewScheduler(&Config{Duration: 10 * time.Second, Rate: 100, MaxConcurrency: 1, RampUp: 10 * time.Second})

	assert.Equal(t, float64(1), s.CurrentRate(0))
	assert.InDelta(t, 50, s.CurrentRate(5*time.Second), 1e-9)
	assert.Equal(t, float64(100), s.CurrentRate(10*time.Second))

	s.UpdateRate(25)
	assert.Equal(t, float64(25), s.Limit())
}

func TestScheduler_AcquireRelease(t *testing.T) {
	s := NewScheduler(&Config{Rate: 1, MaxConcurrency: 1})
	ctx := context.Background()

	require.NoError(t, s.Acquire(ctx))

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Acquire(blocked), context.DeadlineExceeded)

	s.Release()
	require.NoError(t, s.Acquire(ctx))
}
