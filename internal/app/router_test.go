package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmanet-cl/farmanet/internal/observability"
)

func newRouterServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg, err := LoadConfig()
	require.NoError(t, err)

	router := NewRouter(RouterParams{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:  cfg,
		Metrics: observability.NewMetrics(),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestRouter_Healthz(t *testing.T) {
	server := newRouterServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	server := newRouterServer(t)

	// Generate a request so the counters have something to report.
	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "farmanet_http_requests_total")
}

func TestRouter_SecurityHeaders(t *testing.T) {
	server := newRouterServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestRouter_NilHandlersNotMounted(t *testing.T) {
	server := newRouterServer(t)

	resp, err := http.Get(server.URL + "/medications")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
