// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

// Package memory provides in-process implementations of the auth stores.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/classgate/classgate/internal/auth"
)

// AccountRepository implements auth.AccountRepository for one principal kind.
type AccountRepository struct {
	kind auth.Kind

	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.Account
	byEmail map[string]ulid.ULID
}

// NewAccountRepository creates an empty repository for kind.
func NewAccountRepository(kind auth.Kind) *AccountRepository {
	return &AccountRepository{
		kind:    kind,
		byID:    make(map[ulid.ULID]*auth.Account),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a new account. The email check and insert happen under one lock.
func (r *AccountRepository) Create(_ context.Context, account *auth.Account) error {
	if account.Kind != r.kind {
		return oops.Code("ACCOUNT_KIND_MISMATCH").
			With("repository_kind", r.kind.String()).
			With("account_kind", account.Kind.String()).
			Errorf("account kind does not match repository")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[account.Email]; exists {
		return oops.Code("ACCOUNT_DUPLICATE").
			With("kind", r.kind.String()).
			With("email", account.Email).
			Wrap(auth.ErrDuplicateIdentity)
	}
	r.byID[account.ID] = cloneAccount(account)
	r.byEmail[account.Email] = account.ID
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return cloneAccount(account), nil
}

// GetByEmail retrieves an account by its exact email.
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return cloneAccount(r.byID[id]), nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *AccountRepository) UpdatePasswordHash(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	account.PasswordHash = passwordHash
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.byEmail, account.Email)
	delete(r.byID, id)
	return nil
}

// Len returns the number of stored accounts.
func (r *AccountRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func cloneAccount(a *auth.Account) *auth.Account {
	c := *a
	c.Subjects = slices.Clone(a.Subjects)
	return &c
}

var _ auth.AccountRepository = (*AccountRepository)(nil)
