// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

// Package authtest provides test doubles for the auth package.
package authtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/classgate/classgate/internal/auth"
)

// MockAccountRepository is a testify mock for auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a mock whose expectations are asserted on cleanup.
func NewMockAccountRepository(t *testing.T) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Account), args.Error(1)
}

func (m *MockAccountRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockAccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPasswordHasher is a testify mock for auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock whose expectations are asserted on cleanup.
func NewMockPasswordHasher(t *testing.T) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

// MockNotifier is a testify mock for auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a mock whose expectations are asserted on cleanup.
func NewMockNotifier(t *testing.T) *MockNotifier {
	m := &MockNotifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockNotifier) Notify(ctx context.Context, msg auth.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockSessionStore is a testify mock for auth.SessionStore. Update does not
// invoke the callback; use it to inject store faults.
type MockSessionStore struct {
	mock.Mock
}

// NewMockSessionStore creates a mock whose expectations are asserted on cleanup.
func NewMockSessionStore(t *testing.T) *MockSessionStore {
	m := &MockSessionStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionStore) Get(ctx context.Context, key string) (*auth.Session, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

func (m *MockSessionStore) Update(ctx context.Context, key string, fn auth.UpdateFunc) error {
	args := m.Called(ctx, key, fn)
	return args.Error(0)
}

func (m *MockSessionStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockSessionStore) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// RecordingNotifier stores every message it is asked to deliver.
// Set Err to make deliveries fail.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []auth.Message
	Err      error
}

// Notify records msg and returns Err.
func (n *RecordingNotifier) Notify(_ context.Context, msg auth.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.messages = append(n.messages, msg)
	return nil
}

// Messages returns a copy of the delivered messages.
func (n *RecordingNotifier) Messages() []auth.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.Message(nil), n.messages...)
}

// LastCode extracts the passcode from the most recent message to addr.
func (n *RecordingNotifier) LastCode(addr string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.messages) - 1; i >= 0; i-- {
		if n.messages[i].To != addr {
			continue
		}
		if code, ok := ExtractCode(n.messages[i].Body); ok {
			return code, true
		}
	}
	return "", false
}

// ExtractCode returns the first run of six digits in body.
func ExtractCode(body string) (string, bool) {
	run := 0
	for i := 0; i < len(body); i++ {
		if body[i] >= '0' && body[i] <= '9' {
			run++
			if run == 6 && (i+1 == len(body) || body[i+1] < '0' || body[i+1] > '9') {
				return body[i-5 : i+1], true
			}
			continue
		}
		run = 0
	}
	return "", false
}
