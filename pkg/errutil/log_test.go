// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classgate/classgate/pkg/errutil"
)

func logEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("AUTH_STORAGE_FAILED").
		With("operation", "create account").
		Errorf("insert failed")

	errutil.LogError(logger, "registration failed", err)

	entry := logEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "registration failed", entry["msg"])
	assert.Equal(t, "AUTH_STORAGE_FAILED", entry["code"])
	ctx, ok := entry["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "create account", ctx["operation"])
}

func TestLogErrorContext_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogErrorContext(context.Background(), logger, "logout failed", errors.New("connection reset"))

	entry := logEntry(t, &buf)
	assert.Contains(t, entry["error"], "connection reset")
	assert.NotContains(t, entry, "code")
}

func TestCode(t *testing.T) {
	assert.Equal(t, "SESSION_NOT_FOUND", errutil.Code(oops.Code("SESSION_NOT_FOUND").Errorf("missing")))
	assert.Empty(t, errutil.Code(errors.New("plain")))
}
