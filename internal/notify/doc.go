// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

// Package notify delivers auth messages. SMTPNotifier sends real mail;
// LogNotifier writes messages to the log for local development.
package notify
