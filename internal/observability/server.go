// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

// Package observability serves Prometheus metrics and health checks on a
// listener separate from the public site.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// DefaultCheckTimeout bounds each readiness check.
const DefaultCheckTimeout = 2 * time.Second

// ReadinessCheck checks one dependency, such as the database or session store.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Metrics are the HTTP-level metrics recorded by the web layer.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the HTTP metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classgate_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration)
	return m
}

// Server exposes /metrics, /healthz/liveness and /healthz/readiness.
type Server struct {
	addr         string
	listener     net.Listener
	httpServer   *http.Server
	registry     *prometheus.Registry
	metrics      *Metrics
	checks       []ReadinessCheck
	checkTimeout time.Duration
	running      atomic.Bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithReadinessCheck adds a dependency check to the readiness endpoint.
func WithReadinessCheck(name string, check func(ctx context.Context) error) ServerOption {
	return func(s *Server) {
		s.checks = append(s.checks, ReadinessCheck{Name: name, Check: check})
	}
}

// WithCollectors registers additional collectors, such as the auth metrics.
func WithCollectors(cs ...prometheus.Collector) ServerOption {
	return func(s *Server) {
		s.registry.MustRegister(cs...)
	}
}

// WithCheckTimeout overrides DefaultCheckTimeout.
func WithCheckTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.checkTimeout = d
		}
	}
}

// NewServer creates a server listening on addr ("127.0.0.1:9100", ":0", ...).
// It owns a private registry with Go and process collectors.
func NewServer(addr string, opts ...ServerOption) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		addr:         addr,
		registry:     registry,
		metrics:      NewMetrics(registry),
		checkTimeout: DefaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metrics returns the HTTP metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Registry returns the server's Prometheus registry.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Handler returns the mux serving the observability endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
	return mux
}

// Start begins serving. Errors from the serve loop after Start returns are
// delivered on the returned channel, which is closed on shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop shuts the server down gracefully. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness runs every check and reports 503 listing the failures.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	var failures []string
	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), s.checkTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			slog.WarnContext(r.Context(), "readiness check failed", "check", c.Name, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", c.Name, err))
		}
	}

	if len(failures) == 0 {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // client may disconnect
	w.Write([]byte("not ready\n" + strings.Join(failures, "\n") + "\n"))
}
