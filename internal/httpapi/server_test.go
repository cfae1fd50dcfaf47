package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/edgard/textgenbot/internal/metrics"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return rr.Code, string(body)
}

func TestHealthz(t *testing.T) {
	code, body := get(t, NewMux(nil), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)
}

func TestReadyz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("database is closed") }

	code, _ := get(t, NewMux(map[string]ReadinessCheck{"database": ok}), "/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, body := get(t, NewMux(map[string]ReadinessCheck{"database": down}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "database: database is closed")
}

func TestMetricsEndpoint(t *testing.T) {
	mux := NewMux(nil)
	get(t, mux, "/healthz")

	code, body := get(t, mux, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "textgenbot_http_requests_total")
	assert.Contains(t, body, `path="/healthz"`)
	assert.Contains(t, body, "textgenbot_generations_inflight")
}

func TestMetricsUnmatchedRoutesShareOneLabel(t *testing.T) {
	mux := NewMux(nil)
	for _, p := range []string{"/nope", "/wp-login.php", "/a/b/c"} {
		code, _ := get(t, mux, p)
		assert.Equal(t, http.StatusNotFound, code)
	}

	_, body := get(t, mux, "/metrics")
	assert.Contains(t, body, `path="unmatched"`)
	assert.NotContains(t, body, `path="/nope"`)
	assert.NotContains(t, body, `path="/wp-login.php"`)
	assert.NotContains(t, body, `path="/a/b/c"`)
}

func TestServerServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(ln.Addr().String(), NewMux(nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
