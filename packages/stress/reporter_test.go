package stress

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() *Summary {
	return &Summary{
		Duration:         10 * time.Second,
		TotalRequests:    1200,
		SuccessCount:     1150,
		ErrorCount:       50,
		ServerErrors:     40,
		NoResponseErrors: 10,
		RPS:              120,
		SuccessRate:      1150.0 / 1200,
		ErrorRate:        50.0 / 1200,
		P50:              20 * time.Millisecond,
		P95:              80 * time.Millisecond,
		P99:              150 * time.Millisecond,
		Max:              300 * time.Millisecond,
	}
}

func TestReporter_SummaryShowsFailuresByKind(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(WithWriter(&buf), WithNoColor(true))

	r.Summary(sampleSummary(), []ThresholdResult{
		{Name: "p95", Passed: true, Expected: "< 100ms", Actual: "80ms"},
		{Name: "error rate", Passed: false, Expected: "< 1%", Actual: "4.17%"},
	})

	out := buf.String()
	assert.Contains(t, out, "LOAD SUMMARY")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "server error")
	assert.Contains(t, out, "no response")
	assert.NotContains(t, out, "request setup")
	assert.Contains(t, out, "FAIL  error rate < 1%")
	assert.Contains(t, out, "1 of 2 thresholds failed")
}

func TestReporter_JSONSummary(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(WithWriter(&buf), WithNoColor(true))

	require.NoError(t, r.JSONSummary(sampleSummary(), []ThresholdResult{
		{Name: "p95", Passed: true, Expected: "< 100ms", Actual: "80ms"},
	}))

	var got struct {
		Requests struct {
			Total  int64 `json:"total"`
			Failed int64 `json:"failed"`
		} `json:"requests"`
		Errors     map[string]int64 `json:"errors"`
		Latency    map[string]int64 `json:"latency"`
		Thresholds []struct {
			Name   string `json:"name"`
			Passed bool   `json:"passed"`
		} `json:"thresholds"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, int64(1200), got.Requests.Total)
	assert.Equal(t, int64(40), got.Errors["server"])
	assert.Equal(t, int64(10), got.Errors["no_response"])
	assert.Equal(t, int64(0), got.Errors["request_setup"])
	assert.Equal(t, int64(80), got.Latency["p95"])
	require.Len(t, got.Thresholds, 1)
	assert.True(t, got.Thresholds[0].Passed)
}

func TestReporter_NoProgressWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(WithWriter(&buf), WithNoProgress(true))

	r.Progress(CurrentStats{Total: 10, Elapsed: time.Second}, 10*time.Second)
	r.ClearProgress()
	assert.Empty(t, buf.String())
}

func TestGroupDigits(t *testing.T) {
	tests := map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		1234567: "1,234,567",
		-45000:  "-45,000",
		100000:  "100,000",
	}
	for n, want := range tests {
		assert.Equal(t, want, groupDigits(n))
	}
}

func TestLatency(t *testing.T) {
	assert.Equal(t, "0ms", latency(0))
	assert.Equal(t, "500µs", latency(500*time.Microsecond))
	assert.Equal(t, "12.5ms", latency(12500*time.Microsecond))
	assert.Equal(t, "12.3s", latency(12300*time.Millisecond))
}
