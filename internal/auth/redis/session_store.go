// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

// Package redis implements auth.SessionStore on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/classgate/classgate/internal/auth"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "classgate:session:"

// errStillActive aborts the idle check for a session that must be kept.
var errStillActive = errors.New("session still active")

const (
	defaultMaxRetries = 8
	scanBatch         = 100
)

// SessionStore keeps sessions as JSON strings. Update uses WATCH/MULTI and
// retries when another client modifies the key concurrently.
type SessionStore struct {
	client     goredis.UniversalClient
	prefix     string
	ttl        time.Duration
	maxRetries int
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

// WithIdleTTL makes every write refresh a key expiry of ttl, so Redis evicts
// idle sessions on its own. Zero disables expiry.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *SessionStore) {
		s.ttl = ttl
	}
}

// WithMaxRetries bounds optimistic-lock retries in Update.
func WithMaxRetries(n int) Option {
	return func(s *SessionStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// NewSessionStore creates a store backed by client.
func NewSessionStore(client goredis.UniversalClient, opts ...Option) *SessionStore {
	s := &SessionStore{
		client:     client,
		prefix:     DefaultKeyPrefix,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the session for key.
func (s *SessionStore) Get(ctx context.Context, key string) (*auth.Session, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("operation", "get session").Wrap(err)
	}
	return decodeSession(data)
}

// Update applies fn inside an optimistic transaction on key.
func (s *SessionStore) Update(ctx context.Context, key string, fn auth.UpdateFunc) error {
	redisKey := s.prefix + key

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var fnErr error
		err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
			cur, err := s.load(ctx, tx, redisKey)
			if err != nil {
				return err
			}

			next, err := fn(cur)
			if err != nil {
				fnErr = err
				return err
			}

			var data []byte
			if next != nil {
				if data, err = json.Marshal(next); err != nil {
					return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				if next == nil {
					pipe.Del(ctx, redisKey)
					return nil
				}
				pipe.Set(ctx, redisKey, data, s.ttl)
				return nil
			})
			return err
		}, redisKey)

		switch {
		case fnErr != nil:
			return fnErr
		case errors.Is(err, goredis.TxFailedErr):
			continue
		case err != nil:
			return oops.Code("SESSION_UPDATE_FAILED").With("operation", "update session").Wrap(err)
		default:
			return nil
		}
	}

	return oops.Code("SESSION_UPDATE_CONFLICT").
		With("retries", s.maxRetries).
		Errorf("session modified concurrently too many times")
}

func (s *SessionStore) load(ctx context.Context, tx *goredis.Tx, redisKey string) (*auth.Session, error) {
	data, err := tx.Get(ctx, redisKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("operation", "load session").Wrap(err)
	}
	return decodeSession(data)
}

// Delete removes the session for key.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("operation", "delete session").Wrap(err)
	}
	return nil
}

// DeleteIdle scans the key space for sessions last seen before cutoff. Each
// candidate is re-checked inside Update so a concurrently refreshed session
// survives.
func (s *SessionStore) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := strings.TrimPrefix(iter.Val(), s.prefix)
		err := s.Update(ctx, key, func(cur *auth.Session) (*auth.Session, error) {
			if cur == nil || !cur.LastSeenAt.Before(cutoff) {
				return nil, errStillActive
			}
			return nil, nil
		})
		switch {
		case errors.Is(err, errStillActive):
		case err != nil:
			return removed, err
		default:
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, oops.Code("SESSION_SCAN_FAILED").With("operation", "scan sessions").Wrap(err)
	}
	return removed, nil
}

// Ping checks connectivity.
func (s *SessionStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return oops.Code("SESSION_STORE_UNAVAILABLE").Wrap(err)
	}
	return nil
}

func decodeSession(data []byte) (*auth.Session, error) {
	var sess auth.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	return &sess, nil
}

var _ auth.SessionStore = (*SessionStore)(nil)
