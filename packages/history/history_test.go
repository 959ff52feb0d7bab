package history

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeline "github.com/abdul-hamid-achik/restpipe/packages/http"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_Prefixes(t *testing.T) {
	dir := t.TempDir()

	for _, p := range []string{"sqlite://" + filepath.Join(dir, "a.db"), "sqlite:" + filepath.Join(dir, "b.db")} {
		store, err := Open(p)
		require.NoError(t, err)
		assert.NotContains(t, store.Path(), "sqlite:")
		require.NoError(t, store.Close())
	}

	_, err := Open("  ")
	assert.Error(t, err)
}

func TestStore_RecordsResponsesAndFailures(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()

	store.LogRequest(ctx, pipeline.RequestEvent{Method: "GET", URL: "http://x/users"})
	store.LogResponse(ctx, pipeline.ResponseEvent{Method: "GET", URL: "http://x/users", StatusCode: 200, Duration: 15 * time.Millisecond})
	store.LogFailure(ctx, pipeline.FailureEvent{Method: "GET", URL: "http://x/users/23", Kind: pipeline.KindServer, StatusCode: 404, Err: errors.New("server responded 404")})

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "http://x/users/23", entries[0].URL)
	assert.Equal(t, 404, entries[0].Status)
	assert.Equal(t, "server", entries[0].Kind)
	assert.True(t, entries[0].Failed())

	assert.Equal(t, 200, entries[1].Status)
	assert.Equal(t, 15*time.Millisecond, entries[1].Duration)
	assert.False(t, entries[1].Failed())
}

func TestStore_RecentLimitAndOrder(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, Entry{
			Method:    "GET",
			URL:       "http://x/" + string(rune('a'+i)),
			Status:    200,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "http://x/e", entries[0].URL)
	assert.Equal(t, "http://x/c", entries[2].URL)
}

func TestStore_RecordsAfterCancelledCall(t *testing.T) {
	store := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store.LogFailure(ctx, pipeline.FailureEvent{Method: "GET", URL: "http://x", Kind: pipeline.KindNoResponse, Err: context.Canceled})

	entries, err := store.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "no_response", entries[0].Kind)
	assert.Equal(t, "context canceled", entries[0].Error)
}

func TestStore_Stats(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Entry{Method: "GET", URL: "u", Status: 200}))
	require.NoError(t, store.Record(ctx, Entry{Method: "GET", URL: "u", Status: 200}))
	require.NoError(t, store.Record(ctx, Entry{Method: "GET", URL: "u", Kind: "no_response"}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ok": 2, "no_response": 1}, stats)
}

func TestStore_AsPipelineLogger(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store := openTemp(t)
	client := pipeline.NewClient(server.URL, pipeline.WithLogger(store))

	_, err := pipeline.Get[map[string]any](context.Background(), client, "/ok")
	require.NoError(t, err)
	_, err = pipeline.Get[map[string]any](context.Background(), client, "/missing")
	require.Error(t, err)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats["ok"])
	assert.Equal(t, 1, stats["server"])
}
