// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

// Package logging builds the process logger: slog with trace correlation and
// redaction of credential-bearing attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"
)

// Output formats accepted by Options.Format.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Redacted replaces the value of sensitive attributes.
const Redacted = "[REDACTED]"

// sensitiveKeys never reach the log sink in clear text.
var sensitiveKeys = map[string]struct{}{
	"password":         {},
	"confirm_password": {},
	"otp":              {},
	"code":             {},
	"session_token":    {},
	"cookie":           {},
}

// Options configures Setup.
type Options struct {
	Service string
	Version string
	Format  string // "json" (default) or "text"
	Level   slog.Level
}

// traceHandler stamps every record with the service identity and, when the
// context carries a span, its trace and span IDs.
type traceHandler struct {
	handler slog.Handler
	service string
	version string
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{handler: h.handler.WithAttrs(attrs), service: h.service, version: h.version}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{handler: h.handler.WithGroup(name), service: h.service, version: h.version}
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// Setup creates a logger writing to w, or os.Stderr when w is nil.
func Setup(opts Options, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	hopts := &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: redact,
	}

	var base slog.Handler
	if opts.Format == FormatText {
		base = slog.NewTextHandler(w, hopts)
	} else {
		base = slog.NewJSONHandler(w, hopts)
	}

	return slog.New(&traceHandler{handler: base, service: opts.Service, version: opts.Version})
}

// SetDefault installs a logger built from opts as slog's default and returns it.
func SetDefault(opts Options) *slog.Logger {
	logger := Setup(opts, nil)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, oops.Code("LOG_INVALID_LEVEL").With("level", s).Wrap(err)
	}
	return level, nil
}
