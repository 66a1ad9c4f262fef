// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package memory_test

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classgate/classgate/internal/auth"
	"github.com/classgate/classgate/internal/auth/memory"
)

func teacher(t *testing.T, email string) *auth.Account {
	t.Helper()
	a, err := auth.NewAccount(auth.KindTeacher, email, "hash", auth.Profile{
		Phone: "555", Address: "1 Main St", Subjects: []string{"math"},
	})
	require.NoError(t, err)
	return a
}

func TestAccountRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAccountRepository(auth.KindTeacher)
	account := teacher(t, "grace@example.com")

	require.NoError(t, repo.Create(ctx, account))
	assert.ErrorIs(t, repo.Create(ctx, teacher(t, "grace@example.com")), auth.ErrDuplicateIdentity)
	assert.Equal(t, 1, repo.Len())

	got, err := repo.GetByEmail(ctx, "grace@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	_, err = repo.GetByEmail(ctx, "GRACE@example.com")
	assert.ErrorIs(t, err, auth.ErrNotFound, "lookup is exact")

	got.Subjects[0] = "mutated"
	again, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"math"}, again.Subjects, "callers receive copies")

	require.NoError(t, repo.UpdatePasswordHash(ctx, account.ID, "new"))
	again, err = repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", again.PasswordHash)

	require.NoError(t, repo.Delete(ctx, account.ID))
	assert.ErrorIs(t, repo.Delete(ctx, account.ID), auth.ErrNotFound)
	assert.ErrorIs(t, repo.UpdatePasswordHash(ctx, ulid.Make(), "x"), auth.ErrNotFound)

	require.NoError(t, repo.Create(ctx, teacher(t, "grace@example.com")), "email is free again after delete")
}

func TestAccountRepository_RejectsOtherKind(t *testing.T) {
	repo := memory.NewAccountRepository(auth.KindStudent)
	err := repo.Create(context.Background(), teacher(t, "grace@example.com"))
	require.Error(t, err)
	assert.Equal(t, 0, repo.Len())
}
