// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/samber/oops"
)

// OTP bounds. Codes are always six digits.
const (
	otpMin = 100000
	otpMax = 999999
)

// OTPGenerator produces one-time passcodes.
type OTPGenerator interface {
	Generate() (string, error)
}

// CryptoOTPGenerator draws codes uniformly from crypto/rand.
type CryptoOTPGenerator struct{}

var otpSpan = big.NewInt(otpMax - otpMin + 1)

// Generate returns a code in [100000, 999999].
func (CryptoOTPGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", oops.Code("AUTH_OTP_GENERATE_FAILED").
			With("operation", "crypto/rand.Int").
			Wrap(err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// OTPFunc adapts a function to OTPGenerator.
type OTPFunc func() (string, error)

// Generate calls f.
func (f OTPFunc) Generate() (string, error) { return f() }
