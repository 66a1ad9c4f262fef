// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package auth

import "errors"

// ErrNotFound is returned by repositories when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Domain errors returned by Service. Callers match them with errors.Is; the
// returned errors are oops errors carrying the matching Code* constant.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateIdentity  = errors.New("identity already registered")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidSecret      = errors.New("invalid secret")
	ErrNoPendingChallenge = errors.New("no pending challenge")
	ErrExpiredChallenge   = errors.New("challenge expired")
	ErrChallengeMismatch  = errors.New("challenge mismatch")
	ErrNotification       = errors.New("notification failed")
	ErrStorage            = errors.New("storage failure")
	ErrSessionTeardown    = errors.New("session teardown failed")
)

// Error codes attached to Service errors.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeDuplicateIdentity  = "AUTH_DUPLICATE_IDENTITY"
	CodeAccountNotFound    = "AUTH_ACCOUNT_NOT_FOUND"
	CodeInvalidSecret      = "AUTH_INVALID_SECRET"
	CodeNoPendingChallenge = "AUTH_NO_PENDING_CHALLENGE"
	CodeExpiredChallenge   = "AUTH_CHALLENGE_EXPIRED"
	CodeChallengeMismatch  = "AUTH_CHALLENGE_MISMATCH"
	CodeNotification       = "AUTH_NOTIFICATION_FAILED"
	CodeStorage            = "AUTH_STORAGE_FAILED"
	CodeSessionTeardown    = "AUTH_SESSION_TEARDOWN_FAILED"
)

// ValidationError describes a user-correctable input problem.
// It matches ErrValidation under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
