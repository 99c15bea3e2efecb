package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastBackoff = BackoffConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func testHTTPConfig(srv *httptest.Server, backoff BackoffConfig) HTTPClientConfig {
	return HTTPClientConfig{Client: srv.Client(), Backoff: backoff}
}

func TestGetJSON_RetriesOnceOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := getJSON(context.Background(), testHTTPConfig(srv, fastBackoff), newCircuitBreaker("test", discardLogger()), srv.URL, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSON_GivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var out map[string]any
	err := getJSON(context.Background(), testHTTPConfig(srv, fastBackoff), newCircuitBreaker("test", discardLogger()), srv.URL, &out)
	require.ErrorIs(t, err, errServerError)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSON_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var out map[string]any
	err := getJSON(context.Background(), testHTTPConfig(srv, fastBackoff), newCircuitBreaker("test", discardLogger()), srv.URL, &out)
	require.ErrorIs(t, err, errUnexpected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSON_RejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	var out map[string]any
	err := getJSON(context.Background(), testHTTPConfig(srv, fastBackoff), newCircuitBreaker("test", discardLogger()), srv.URL, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestGetJSON_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testHTTPConfig(srv, BackoffConfig{MaxRetries: 0, InitialInterval: time.Millisecond})
	cb := newCircuitBreaker("test", discardLogger())
	var out map[string]any
	for i := 0; i < 6; i++ {
		require.ErrorIs(t, getJSON(context.Background(), cfg, cb, srv.URL, &out), errServerError)
	}

	err := getJSON(context.Background(), cfg, cb, srv.URL, &out)
	require.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, int32(6), calls.Load())
}

func TestDoRequestWithResilience_StopsOnCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out map[string]any
	err := getJSON(ctx, testHTTPConfig(srv, fastBackoff), newCircuitBreaker("test", discardLogger()), srv.URL, &out)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDoRequestWithResilience_InvalidBackoff(t *testing.T) {
	_, err := doRequestWithResilience(context.Background(), HTTPClientConfig{Client: http.DefaultClient}, newCircuitBreaker("test", discardLogger()), nil)
	require.ErrorIs(t, err, errInvalidConfig)

	_, err = doRequestWithResilience(context.Background(), HTTPClientConfig{Backoff: fastBackoff}, newCircuitBreaker("test", discardLogger()), nil)
	require.ErrorIs(t, err, errNoHTTPClient)
}
