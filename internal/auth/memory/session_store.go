// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/classgate/classgate/internal/auth"
)

// SessionStore implements auth.SessionStore with a map guarded by a mutex.
// Update callbacks run under the lock, so they must not call back into the store.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*auth.Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*auth.Session)}
}

// Get returns a copy of the session for key.
func (s *SessionStore) Get(_ context.Context, key string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return sess.Clone(), nil
}

// Update applies fn to a copy of the session and stores the result.
func (s *SessionStore) Update(_ context.Context, key string, fn auth.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.sessions[key].Clone())
	if err != nil {
		return err
	}
	if next == nil {
		delete(s.sessions, key)
		return nil
	}
	s.sessions[key] = next.Clone()
	return nil
}

// Delete removes the session for key.
func (s *SessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
	return nil
}

// DeleteIdle removes sessions last seen before cutoff.
func (s *SessionStore) DeleteIdle(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, sess := range s.sessions {
		if sess.LastSeenAt.Before(cutoff) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

var _ auth.SessionStore = (*SessionStore)(nil)
