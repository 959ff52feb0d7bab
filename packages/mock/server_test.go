package mock

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeline "github.com/abdul-hamid-achik/restpipe/packages/http"
)

func newTestAPI(t *testing.T, opts ...Option) *pipeline.Client {
	t.Helper()
	server := httptest.NewServer(NewServer(opts...).Handler())
	t.Cleanup(server.Close)
	return pipeline.NewClient(server.URL + "/api")
}

func TestRouter_Match(t *testing.T) {
	r := NewRouter()
	r.Handle(http.MethodGet, "/api/users/{{id}}", nil)

	route, params, _ := r.Match("GET", "/api/users/42/")
	require.NotNil(t, route)
	assert.Equal(t, "42", params["id"])

	route, _, allowed := r.Match("POST", "/api/users/42")
	assert.Nil(t, route)
	assert.Equal(t, []string{"GET"}, allowed)

	route, _, allowed = r.Match("GET", "/api/other")
	assert.Nil(t, route)
	assert.Empty(t, allowed)

	route, params, _ = r.Match("GET", "api//users/7")
	require.NotNil(t, route)
	assert.Equal(t, "/api/users/{{id}}", route.Pattern)
	assert.Equal(t, "7", params["id"])

	route, _, _ = r.Match("GET", "/api/users/7/extra")
	assert.Nil(t, route)
}

func TestListUsers_Page(t *testing.T) {
	client := newTestAPI(t)

	env, err := pipeline.Get[UserPage](context.Background(), client, "/users", pipeline.WithQuery("page", "2"))
	require.NoError(t, err)

	assert.Equal(t, 200, env.StatusCode)
	assert.Equal(t, 2, env.Body.Page)
	assert.Equal(t, 6, env.Body.PerPage)
	assert.Equal(t, 12, env.Body.Total)
	assert.Equal(t, 2, env.Body.TotalPages)
	require.Len(t, env.Body.Data, 6)
	assert.Equal(t, 7, env.Body.Data[0].ID)
	assert.Equal(t, "michael.lawson@reqres.in", env.Body.Data[0].Email)
	assert.NotEmpty(t, env.Header("X-Request-Id"))
}

func TestGetUser(t *testing.T) {
	client := newTestAPI(t)

	env, err := pipeline.Get[struct {
		Data User `json:"data"`
	}](context.Background(), client, "/users/2")
	require.NoError(t, err)
	assert.Equal(t, "Janet", env.Body.Data.FirstName)

	_, err = pipeline.Get[any](context.Background(), client, "/users/23")
	var srvErr *pipeline.ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, 404, srvErr.StatusCode)
	assert.JSONEq(t, `{}`, srvErr.BodyString())
}

func TestCreateUpdateDelete(t *testing.T) {
	client := newTestAPI(t)
	ctx := context.Background()

	created, err := pipeline.Post[map[string]any](ctx, client, "/users", map[string]string{"name": "morpheus", "job": "leader"})
	require.NoError(t, err)
	assert.Equal(t, 201, created.StatusCode)
	assert.Equal(t, "morpheus", created.Body["name"])
	assert.NotEmpty(t, created.Body["id"])
	assert.NotEmpty(t, created.Body["createdAt"])

	updated, err := pipeline.Put[map[string]any](ctx, client, "/users/2", map[string]string{"job": "zion resident"})
	require.NoError(t, err)
	assert.Equal(t, "zion resident", updated.Body["job"])
	assert.NotEmpty(t, updated.Body["updatedAt"])

	patched, err := pipeline.Patch[map[string]any](ctx, client, "/users/2", map[string]string{"job": "captain"})
	require.NoError(t, err)
	assert.Equal(t, "captain", patched.Body["job"])

	deleted, err := pipeline.Delete[any](ctx, client, "/users/2")
	require.NoError(t, err)
	assert.Equal(t, 204, deleted.StatusCode)
	assert.Nil(t, deleted.Body)
}

func TestListUsers_HugePagingStaysBounded(t *testing.T) {
	client := newTestAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	queries := []map[string]string{
		{"page": "2", "per_page": "9223372036854775807"},
		{"page": "9223372036854775807", "per_page": "6"},
		{"page": "4611686018427387904", "per_page": "4"},
	}
	for _, q := range queries {
		env, err := pipeline.Get[UserPage](ctx, client, "/users", pipeline.WithQuery("page", q["page"]), pipeline.WithQuery("per_page", q["per_page"]))
		require.NoError(t, err, "%v", q)
		assert.Empty(t, env.Body.Data, "%v", q)
		assert.Equal(t, 12, env.Body.Total)
		assert.LessOrEqual(t, env.Body.PerPage, maxPerPage)
	}

	env, err := pipeline.Get[UserPage](ctx, client, "/users", pipeline.WithQuery("per_page", "1000"))
	require.NoError(t, err)
	assert.Equal(t, maxPerPage, env.Body.PerPage)
	assert.Len(t, env.Body.Data, 12)
	assert.Equal(t, 1, env.Body.TotalPages)

	login, err := pipeline.Post[map[string]string](ctx, client, "/login",
		map[string]string{"email": "eve.holt@reqres.in", "password": "cityslicka"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Body["token"])
}

func TestLoginAndProtected(t *testing.T) {
	client := newTestAPI(t)
	ctx := context.Background()

	_, err := pipeline.Post[any](ctx, client, "/login", map[string]string{"email": "peter@klaven"})
	var srvErr *pipeline.ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, 400, srvErr.StatusCode)
	assert.Equal(t, "Missing password", srvErr.Field("error").String())

	_, err = pipeline.Get[any](ctx, client, "/protected")
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, 401, srvErr.StatusCode)

	login, err := pipeline.Post[struct {
		Token string `json:"token"`
	}](ctx, client, "/login", map[string]string{"email": "eve.holt@reqres.in", "password": "cityslicka"})
	require.NoError(t, err)
	require.NotEmpty(t, login.Body.Token)

	client.SetAuthToken(login.Body.Token)
	env, err := pipeline.Get[map[string]bool](ctx, client, "/protected")
	require.NoError(t, err)
	assert.True(t, env.Body["authenticated"])

	client.RemoveAuthToken()
	_, err = pipeline.Get[any](ctx, client, "/protected")
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, 401, srvErr.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	client := newTestAPI(t)

	_, err := pipeline.Delete[any](context.Background(), client, "/login")
	var srvErr *pipeline.ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, 405, srvErr.StatusCode)
	assert.Equal(t, []string{"POST"}, srvErr.Headers["Allow"])
}

func TestDelayQueryCausesTimeout(t *testing.T) {
	server := httptest.NewServer(NewServer().Handler())
	defer server.Close()
	client := pipeline.NewClient(server.URL+"/api", pipeline.WithTimeout(50*time.Millisecond))

	_, err := pipeline.Get[any](context.Background(), client, "/users", pipeline.WithQuery("delay", "1"))

	var noResp *pipeline.NoResponseError
	require.ErrorAs(t, err, &noResp)
}

func TestServe_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer().Serve(ctx, ln) }()

	client := pipeline.NewClient("http://" + ln.Addr().String() + "/api")
	require.Eventually(t, func() bool {
		_, err := pipeline.Get[UserPage](context.Background(), client, "/users")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.False(t, errors.Is(err, http.ErrServerClosed))
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
