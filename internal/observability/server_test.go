// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestServer_Liveness(t *testing.T) {
	code, body := get(t, NewServer("127.0.0.1:0").Handler(), "/healthz/liveness")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)
}

func TestServer_Readiness(t *testing.T) {
	t.Run("no checks is ready", func(t *testing.T) {
		code, _ := get(t, NewServer("127.0.0.1:0").Handler(), "/healthz/readiness")
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("all checks pass", func(t *testing.T) {
		s := NewServer("127.0.0.1:0",
			WithReadinessCheck("database", func(context.Context) error { return nil }),
			WithReadinessCheck("sessions", func(context.Context) error { return nil }),
		)
		code, _ := get(t, s.Handler(), "/healthz/readiness")
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("failed check reports 503 with name", func(t *testing.T) {
		s := NewServer("127.0.0.1:0",
			WithReadinessCheck("database", func(context.Context) error { return nil }),
			WithReadinessCheck("sessions", func(context.Context) error { return errors.New("redis down") }),
		)
		code, body := get(t, s.Handler(), "/healthz/readiness")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, body, "sessions: redis down")
		assert.NotContains(t, body, "database")
	})

	t.Run("slow check times out", func(t *testing.T) {
		s := NewServer("127.0.0.1:0",
			WithCheckTimeout(10*time.Millisecond),
			WithReadinessCheck("slow", func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}),
		)
		code, body := get(t, s.Handler(), "/healthz/readiness")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, body, "deadline exceeded")
	})
}

func TestServer_Metrics(t *testing.T) {
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "classgate_test_extra_total", Help: "test"})
	s := NewServer("127.0.0.1:0", WithCollectors(extra))

	s.Metrics().RequestsTotal.WithLabelValues("/login", "POST", "303").Inc()
	extra.Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(s.Metrics().RequestsTotal.WithLabelValues("/login", "POST", "303")), 0)

	code, body := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "classgate_http_requests_total")
	assert.Contains(t, body, "classgate_test_extra_total")
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	errCh, err := s.Start()
	require.NoError(t, err)
	require.NotEmpty(t, s.Addr())

	_, err = s.Start()
	assert.Error(t, err, "double start")

	resp, err := http.Get("http://" + s.Addr() + "/healthz/liveness")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "stop is idempotent")

	select {
	case err, ok := <-errCh:
		assert.False(t, ok && err != nil, "unexpected serve error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("error channel not closed after shutdown")
	}
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	errCh, err := s.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	_ = s.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("serve error not propagated")
	}
}
