package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/restpipe/packages/history"
	"github.com/abdul-hamid-achik/restpipe/packages/http"
)

func sampleResult() *Result {
	env := &http.Envelope[json.RawMessage]{
		StatusCode: 201,
		StatusText: "Created",
		Headers:    map[string][]string{"Content-Type": {"application/json"}},
		Raw:        []byte(`{"name":"morpheus","id":"abc"}`),
		Duration:   12 * time.Millisecond,
	}
	r := ResultFromEnvelope("POST", "http://api.test/users", env)
	r.Captures = map[string]any{"id": "abc"}
	return r
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatConsole, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestConsoleFormatter_Result(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	f.FormatResult(sampleResult())

	out := buf.String()
	assert.Contains(t, out, "POST http://api.test/users 201 Created (12ms)")
	assert.Contains(t, out, "Content-Type: application/json")
	assert.Contains(t, out, `"name": "morpheus"`)
	assert.Contains(t, out, "id = abc")
}

func TestConsoleFormatter_Errors(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.FormatError(&http.ServerError{StatusCode: 404, StatusText: "Not Found", Body: []byte(`{}`)})
	f.FormatError(&http.NoResponseError{Err: errors.New("connection refused")})
	f.FormatError(errors.New("plain"))

	out := buf.String()
	assert.Contains(t, out, "[server] server responded 404 Not Found")
	assert.Contains(t, out, "[no_response] no response received: connection refused")
	assert.Contains(t, out, "Error: plain")
}

func TestConsoleFormatter_History(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.FormatHistory(nil)
	assert.Contains(t, buf.String(), "No history recorded.")

	buf.Reset()
	f.FormatHistory([]history.Entry{
		{Method: "GET", URL: "http://x/users/23", Status: 404, Kind: "server", CreatedAt: time.Now()},
		{Method: "GET", URL: "http://x/users", Status: 200, CreatedAt: time.Now()},
	})
	lines := strings.Split(buf.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 6)
	assert.Contains(t, lines[1], "URL")
	assert.Contains(t, lines[3], "http://x/users/23")
	assert.Contains(t, lines[3], "404")
	assert.Contains(t, lines[3], "server")
	assert.Contains(t, lines[4], "http://x/users ")
	assert.Contains(t, lines[4], "ok")
}

func TestFormatStats(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleFormatter(WithWriter(&buf), WithNoColor(true)).FormatStats(map[string]int{"ok": 7, "server": 2})
	out := buf.String()
	assert.Regexp(t, `OK\s+│\s+7`, strings.ToUpper(out))
	assert.Regexp(t, `TOTAL\s+│\s+9`, out)

	buf.Reset()
	NewJSONFormatter(JSONWithWriter(&buf)).FormatStats(map[string]int{"no_response": 1})
	assert.JSONEq(t, `{"no_response":1}`, buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))

	f.FormatResult(sampleResult())
	var res JSONResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.Equal(t, 201, res.StatusCode)
	assert.JSONEq(t, `{"name":"morpheus","id":"abc"}`, string(res.Body))
	assert.Equal(t, "abc", res.Captures["id"])

	buf.Reset()
	f.FormatError(&http.ServerError{StatusCode: 400, Body: []byte(`{"error":"Missing password"}`)})
	var errOut map[string]JSONError
	require.NoError(t, json.Unmarshal(buf.Bytes(), &errOut))
	assert.Equal(t, "server", errOut["error"].Kind)
	assert.Equal(t, 400, errOut["error"].StatusCode)
	assert.JSONEq(t, `{"error":"Missing password"}`, string(errOut["error"].Body))
}

func TestRawJSON(t *testing.T) {
	assert.Nil(t, rawJSON(nil))
	assert.Equal(t, `{"a":1}`, string(rawJSON([]byte(`{"a":1}`))))
	assert.Equal(t, `"plain text"`, string(rawJSON([]byte("plain text"))))
}
