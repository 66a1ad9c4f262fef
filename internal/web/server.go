// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

// Package web serves the signup, OTP verification, login and dashboard pages.
package web

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/classgate/classgate/internal/auth"
	"github.com/classgate/classgate/internal/observability"
)

// maxFormBytes caps request bodies.
const maxFormBytes = 64 << 10

// Authenticator is the part of auth.Service the web layer drives.
type Authenticator interface {
	Register(ctx context.Context, token string, reg auth.Registration) (*auth.Account, error)
	VerifyOTP(ctx context.Context, token, code string) (auth.Identity, error)
	Login(ctx context.Context, token string, kind auth.Kind, email, password string) (auth.Identity, error)
	Logout(ctx context.Context, token string) error
	Authorize(ctx context.Context, token string, required auth.Kind) (auth.Identity, bool)
	Profile(ctx context.Context, identity auth.Identity) (*auth.Account, error)
	HasPendingChallenge(ctx context.Context, token string) (bool, error)
	RotateSession(ctx context.Context, token string) (string, error)
}

// Server is the public web front end.
type Server struct {
	addr              string
	readHeaderTimeout time.Duration

	auth    Authenticator
	logger  *slog.Logger
	metrics *observability.Metrics
	pages   map[string]*template.Template
	mux     *http.ServeMux

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request counts and latencies into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithReadHeaderTimeout overrides the 5s header read timeout.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readHeaderTimeout = d
		}
	}
}

// NewServer creates a server for addr backed by a.
func NewServer(addr string, a Authenticator, logger *slog.Logger, opts ...Option) (*Server, error) {
	if a == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("authenticator is required")
	}
	if logger == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		addr:              addr,
		readHeaderTimeout: 5 * time.Second,
		auth:              a,
		logger:            logger,
		pages:             pages,
		mux:               http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.handle("GET /{$}", s.handleHome)
	for _, kind := range auth.Kinds {
		prefix := "/" + kind.String()
		s.handle("GET "+prefix+"-signup", s.handleSignupPage(kind))
		s.handle("POST "+prefix+"-signup", s.handleSignup(kind))
		s.handle("GET "+prefix+"-login", s.handleLoginPage(kind))
		s.handle("POST "+prefix+"-login", s.handleLogin(kind))
		s.handle("GET "+prefix+"-dashboard", s.handleDashboard(kind))
	}
	s.handle("GET /verify-otp", s.handleVerifyPage)
	s.handle("POST /verify-otp", s.handleVerify)
	s.handle("GET /logout", s.handleLogout)
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.instrument(pattern, h))
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return s.withSession(s.mux)
}

// Start begins serving. Errors from the serve loop are delivered on the
// returned channel, which is closed on shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("WEB_ALREADY_RUNNING").Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	srv := s.httpServer
	go func() {
		defer close(errCh)
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop shuts the server down gracefully. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.Code("WEB_SHUTDOWN_FAILED").Wrap(err)
	}
	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
