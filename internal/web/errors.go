// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/classgate/classgate/internal/auth"
)

type operation string

const (
	opSignup operation = "signup"
	opVerify operation = "verify"
	opLogin  operation = "login"
	opLogout operation = "logout"
)

// fallback messages for unclassified server-side failures.
var fallback = map[operation]string{
	opSignup: "Error signing up. Please try again.",
	opVerify: "Error verifying OTP. Please try again.",
	opLogin:  "Error logging in. Please try again.",
	opLogout: "Error logging out. Please try again.",
}

// describe maps an auth error to a status code and a user-facing message.
func describe(op operation, err error) (int, string) {
	var ve *auth.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest, "Invalid input. Please check the form and try again."
	case errors.Is(err, auth.ErrDuplicateIdentity):
		return http.StatusBadRequest, "An account with this email already exists."
	case errors.Is(err, auth.ErrAccountNotFound):
		if op == opVerify {
			return http.StatusNotFound, "User not found. Please try again."
		}
		return http.StatusBadRequest, "User not found. Please sign up."
	case errors.Is(err, auth.ErrInvalidSecret):
		return http.StatusBadRequest, "Incorrect password."
	case errors.Is(err, auth.ErrNoPendingChallenge), errors.Is(err, auth.ErrChallengeMismatch):
		return http.StatusBadRequest, "Invalid OTP. Please try again."
	case errors.Is(err, auth.ErrExpiredChallenge):
		return http.StatusBadRequest, "OTP expired. Please sign up again."
	case errors.Is(err, auth.ErrNotification):
		return http.StatusInternalServerError, "Error sending OTP. Please try again."
	case errors.Is(err, auth.ErrSessionTeardown):
		return http.StatusInternalServerError, fallback[opLogout]
	default:
		return http.StatusInternalServerError, fallback[op]
	}
}
