// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package auth

import (
	"context"
	"fmt"
	"time"
)

// Message is an outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages out of band. Notify blocks until the outcome of
// the delivery attempt is known.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// otpSubject is the subject line of OTP messages.
const otpSubject = "Your OTP Code"

// OTPMessage builds the message that carries a registration passcode.
func OTPMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: otpSubject,
		Body:    fmt.Sprintf("Your OTP code is %s. It is valid for %s.", code, validity(ttl)),
	}
}

// validity renders ttl for humans: whole minutes read "5 minutes", anything
// else falls back to the rounded duration ("90s", "1m30s").
func validity(ttl time.Duration) string {
	switch {
	case ttl == time.Minute:
		return "1 minute"
	case ttl > 0 && ttl%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int64(ttl/time.Minute))
	default:
		return ttl.Round(time.Second).String()
	}
}
