// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

// Package auth implements registration, one-time passcode verification and
// session authentication for students and teachers.
//
// # Domain Types
//
// Accounts are created with NewAccount, which validates the email, contact
// details and the kind-specific attribute (a class for students, a subject
// list for teachers). Kind is a closed set: KindStudent or KindTeacher.
//
// A Session is keyed by SessionKey(token), never by the raw cookie token. It
// may hold a PendingChallenge (an OTP awaiting confirmation) and, once
// authenticated, an Identity.
//
// # Collaborators
//
// Service depends on interfaces implemented elsewhere:
//   - AccountRepository - one per principal kind (postgres, memory)
//   - SessionStore - per-key atomic updates (memory, redis)
//   - Notifier - synchronous out-of-band delivery (smtp, log)
//   - PasswordHasher - Argon2idHasher
//   - OTPGenerator - CryptoOTPGenerator
//
// # Errors
//
// Service methods return oops errors carrying a Code* constant and wrapping
// one of the Err* sentinels, so callers can branch with errors.Is.
package auth
