// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

// Package errutil bridges oops errors to slog and to tests.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Attrs returns slog key/value pairs describing err. Oops errors contribute
// their code and context; other errors only their message.
func Attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil && code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}

// LogError logs err at error level with its structured attributes.
func LogError(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, Attrs(err)...)
}

// LogErrorContext is LogError with a context, so trace IDs are attached.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(ctx, msg, Attrs(err)...)
}

// Code returns the oops code carried by err, or "" for other errors.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}
