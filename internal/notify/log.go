// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package notify

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/classgate/classgate/internal/auth"
)

// LogNotifier logs messages instead of sending them. The body is logged in
// full so passcodes can be read during development; never use it in
// production.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) (*LogNotifier, error) {
	if logger == nil {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("logger is required")
	}
	return &LogNotifier{logger: logger}, nil
}

// Notify logs msg at info level.
func (n *LogNotifier) Notify(ctx context.Context, msg auth.Message) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").Wrap(err)
	}
	n.logger.InfoContext(ctx, "outbound message",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
