package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/restpipe/packages/http"
	"github.com/abdul-hamid-achik/restpipe/packages/mock"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func mockAPI(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(mock.NewServer().Handler())
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"server", &http.ServerError{StatusCode: 500}, ExitFailure},
		{"no response", &http.NoResponseError{Err: errors.New("refused")}, ExitNetworkError},
		{"setup", &http.RequestSetupError{Message: "bad url"}, ExitConfigError},
		{"usage", usageError(errors.New("bad flag")), ExitUsageError},
		{"config", configError(errors.New("bad file")), ExitConfigError},
		{"reported server", reportedError(&http.ServerError{StatusCode: 404}), ExitFailure},
		{"explicit", withExitCode(ExitFailure, &http.NoResponseError{}), ExitFailure},
		{"plain", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestReadBody(t *testing.T) {
	body, err := readBody(nil, "")
	require.NoError(t, err)
	assert.Nil(t, body)

	body, err = readBody(nil, `{"name":"morpheus"}`)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"name":"morpheus"}`), body)

	body, err = readBody(nil, "plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", body)

	body, err = readBody(strings.NewReader(`[1,2]`), "-")
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`[1,2]`), body)

	path := filepath.Join(t.TempDir(), "user.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"job":"leader"}`), 0644))
	body, err = readBody(nil, "@"+path)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"job":"leader"}`), body)

	_, err = readBody(nil, "@"+filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestBuildCallOptions(t *testing.T) {
	opts, err := buildCallOptions([]string{"X-Trace: abc", "Accept:application/json"}, []string{"page=2"})
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	_, err = buildCallOptions([]string{"no-colon"}, nil)
	assert.Error(t, err)

	_, err = buildCallOptions(nil, []string{"=2"})
	assert.Error(t, err)
}

func TestGetCommand_JSONOutputWithCapture(t *testing.T) {
	baseURL := mockAPI(t)

	out, err := execute(t, "get", "/users/2", "--base-url", baseURL, "-o", "json", "--retry", "1",
		"--capture", "email=body.data.email")
	require.NoError(t, err)

	var result struct {
		StatusCode int            `json:"statusCode"`
		URL        string         `json:"url"`
		Captures   map[string]any `json:"captures"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 200, result.StatusCode)
	assert.Equal(t, baseURL+"/users/2", result.URL)
	assert.Equal(t, "janet.weaver@reqres.in", result.Captures["email"])
}

func TestGetCommand_ServerErrorExitsWithFailure(t *testing.T) {
	baseURL := mockAPI(t)

	out, err := execute(t, "get", "/users/23", "--base-url", baseURL, "-o", "json", "--retry", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, exitCodeFor(err))
	assert.True(t, isReported(err))
	assert.Contains(t, out, `"kind": "server"`)
	assert.Contains(t, out, `"statusCode": 404`)
}

func TestGetCommand_NoResponseExitCode(t *testing.T) {
	srv := httptest.NewServer(mock.NewServer().Handler())
	baseURL := srv.URL + "/api"
	srv.Close()

	out, err := execute(t, "get", "/users", "--base-url", baseURL, "-o", "json", "--retry", "1")
	require.Error(t, err)
	assert.Equal(t, ExitNetworkError, exitCodeFor(err))
	assert.Contains(t, out, `"kind": "no_response"`)
}

func TestPostCommand_SendsJSONBody(t *testing.T) {
	baseURL := mockAPI(t)

	out, err := execute(t, "post", "/users", "--base-url", baseURL, "-o", "json", "--retry", "1",
		"--data", `{"name":"morpheus","job":"leader"}`)
	require.NoError(t, err)

	var result struct {
		StatusCode int `json:"statusCode"`
		Body       struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"body"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 201, result.StatusCode)
	assert.Equal(t, "morpheus", result.Body.Name)
	assert.NotEmpty(t, result.Body.ID)
}

func TestRequestCommand_MissingPathIsUsageError(t *testing.T) {
	_, err := execute(t, "get")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCodeFor(err))
}

func tokenServer(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestGetCommand_OAuth2TokenIsSent(t *testing.T) {
	var gotAuth string
	api := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer api.Close()

	t.Setenv("RESTPIPE_OAUTH2_TOKEN_URL", tokenServer(t, nethttp.StatusOK, `{"access_token":"idp-token","token_type":"bearer","expires_in":3600}`))
	t.Setenv("RESTPIPE_OAUTH2_CLIENT_ID", "restpipe")
	t.Setenv("RESTPIPE_OAUTH2_CLIENT_SECRET", "s3cret")

	_, err := execute(t, "get", "/me", "--base-url", api.URL, "-o", "json", "--retry", "1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer idp-token", gotAuth)
}

func TestGetCommand_OAuth2FailureIsConfigError(t *testing.T) {
	t.Setenv("RESTPIPE_OAUTH2_TOKEN_URL", tokenServer(t, nethttp.StatusUnauthorized, `{"error":"invalid_client"}`))
	t.Setenv("RESTPIPE_OAUTH2_CLIENT_ID", "restpipe")

	_, err := execute(t, "get", "/users", "--base-url", mockAPI(t), "-o", "json", "--retry", "1")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCodeFor(err))
	assert.Contains(t, err.Error(), "invalid_client")
}

func resetLoadFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		loadThreshold = ""
		loadJSON = false
		loadNoProgress = false
		loadWebhooks = nil
		loadNotifyOn = "failure"
	})
}

type loadOutput struct {
	Requests struct {
		Total  int64 `json:"total"`
		Failed int64 `json:"failed"`
	} `json:"requests"`
	Thresholds []struct {
		Name     string `json:"name"`
		Passed   bool   `json:"passed"`
		Expected string `json:"expected"`
	} `json:"thresholds"`
}

func TestLoadCommand_FailedThresholdExitsWithFailure(t *testing.T) {
	resetLoadFlags(t)
	api := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusInternalServerError)
	}))
	defer api.Close()

	hooks := make(chan map[string]any, 4)
	webhook := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		hooks <- payload
		w.WriteHeader(nethttp.StatusNoContent)
	}))
	defer webhook.Close()

	out, err := execute(t, "load", "/users", "--base-url", api.URL,
		"-d", "300ms", "-r", "20", "-c", "2", "--ramp-up", "0",
		"--threshold", "errors<1%", "--json", "--no-progress",
		"--notify-webhook", webhook.URL, "--notify-on", "failure")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, exitCodeFor(err))
	assert.True(t, isReported(err))

	var result loadOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Positive(t, result.Requests.Total)
	assert.Equal(t, result.Requests.Total, result.Requests.Failed)
	require.Len(t, result.Thresholds, 1)
	assert.False(t, result.Thresholds[0].Passed)
	assert.Equal(t, "< 1%", result.Thresholds[0].Expected)

	select {
	case payload := <-hooks:
		assert.Equal(t, "load.failed", payload["event"])
		assert.Equal(t, false, payload["passed"])
	default:
		t.Fatal("webhook was not called")
	}
}

func TestLoadCommand_PassingThresholdExitsClean(t *testing.T) {
	resetLoadFlags(t)
	baseURL := mockAPI(t)

	out, err := execute(t, "load", "/users", "--base-url", baseURL,
		"-d", "300ms", "-r", "20", "-c", "2", "--ramp-up", "0",
		"--threshold", "p99<10s,errors<=0%", "--json", "--no-progress")
	require.NoError(t, err)

	var result loadOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Positive(t, result.Requests.Total)
	assert.Zero(t, result.Requests.Failed)
	require.Len(t, result.Thresholds, 2)
	for _, th := range result.Thresholds {
		assert.True(t, th.Passed, th.Name)
	}
}

func TestLoadCommand_BadThresholdIsUsageError(t *testing.T) {
	resetLoadFlags(t)

	_, err := execute(t, "load", "/users", "--base-url", mockAPI(t), "-d", "100ms",
		"--threshold", "p95~200ms", "--json", "--no-progress")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCodeFor(err))
}

func TestHistoryCommand_Stats(t *testing.T) {
	t.Cleanup(func() {
		historyFlag = ""
		historyStats = false
	})
	baseURL := mockAPI(t)
	db := filepath.Join(t.TempDir(), "calls.db")

	_, err := execute(t, "get", "/users/2", "--base-url", baseURL, "-o", "json", "--retry", "1", "--history", db)
	require.NoError(t, err)
	_, err = execute(t, "get", "/users/3", "--base-url", baseURL, "-o", "json", "--retry", "1", "--history", db)
	require.NoError(t, err)
	_, err = execute(t, "get", "/users/23", "--base-url", baseURL, "-o", "json", "--retry", "1", "--history", db)
	require.Error(t, err)

	out, err := execute(t, "history", "--stats", "--history", db, "-o", "json")
	require.NoError(t, err)

	var stats map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, map[string]int{"ok": 2, "server": 1}, stats)
}

func TestHistoryCommand_NoStoreIsConfigError(t *testing.T) {
	t.Setenv("RESTPIPE_HISTORY", "")

	_, err := execute(t, "history", "--stats", "--history", "")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCodeFor(err))
}
