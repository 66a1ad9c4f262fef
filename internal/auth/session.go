// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32 // 32 bytes = 64 hex chars
	ChallengeTTL      = 5 * time.Minute
)

// Identity is the authenticated principal bound to a session.
type Identity struct {
	AccountID ulid.ULID `json:"account_id"`
	Kind      Kind      `json:"kind"`
}

// PendingChallenge is an outstanding OTP awaiting confirmation.
type PendingChallenge struct {
	Code      string    `json:"code"`
	AccountID ulid.ULID `json:"account_id"`
	Kind      Kind      `json:"kind"`
	IssuedAt  time.Time `json:"issued_at"`
}

// ExpiredAt reports whether the challenge is older than ttl at now.
// A challenge exactly ttl old is still valid.
func (c *PendingChallenge) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.IssuedAt) > ttl
}

// Session is the server-side state behind a session token.
type Session struct {
	Challenge  *PendingChallenge `json:"challenge,omitempty"`
	Identity   *Identity         `json:"identity,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	LastSeenAt time.Time         `json:"last_seen_at"`
}

// NewSession returns an empty session created at now.
func NewSession(now time.Time) *Session {
	return &Session{CreatedAt: now, LastSeenAt: now}
}

// Clone returns a deep copy of s. Clone of nil is nil.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Challenge != nil {
		ch := *s.Challenge
		c.Challenge = &ch
	}
	if s.Identity != nil {
		id := *s.Identity
		c.Identity = &id
	}
	return &c
}

// UpdateFunc mutates a session inside SessionStore.Update. It receives nil
// when no session exists for the key. Returning a nil session deletes the
// record; returning an error aborts the update without writing.
type UpdateFunc func(current *Session) (*Session, error)

// SessionStore holds sessions keyed by the hash of their token.
// Implementations must apply Update atomically per key.
type SessionStore interface {
	// Get returns the session for key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Session, error)

	// Update applies fn to the session for key atomically.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Delete removes the session for key. Deleting a missing session is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteIdle removes sessions last seen before cutoff and returns the count.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// GenerateSessionToken creates a secure random token for a client cookie.
func GenerateSessionToken() (string, error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(tokenBytes), nil
}

// SessionKey derives the store key for a token. Stores never see raw tokens.
func SessionKey(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ValidSessionToken reports whether token has the shape GenerateSessionToken produces.
func ValidSessionToken(token string) bool {
	if len(token) != SessionTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
