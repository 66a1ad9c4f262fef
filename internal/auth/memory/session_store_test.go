// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classgate/classgate/internal/auth"
	"github.com/classgate/classgate/internal/auth/memory"
)

func TestSessionStore_Update(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	now := time.Now()

	t.Run("creates from nil", func(t *testing.T) {
		err := store.Update(ctx, "k", func(cur *auth.Session) (*auth.Session, error) {
			assert.Nil(t, cur)
			s := auth.NewSession(now)
			s.Challenge = &auth.PendingChallenge{Code: "123456", Kind: auth.KindStudent, IssuedAt: now}
			return s, nil
		})
		require.NoError(t, err)

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "123456", got.Challenge.Code)
	})

	t.Run("error aborts without writing", func(t *testing.T) {
		sentinel := errors.New("abort")
		err := store.Update(ctx, "k", func(cur *auth.Session) (*auth.Session, error) {
			cur.Challenge = nil
			return cur, sentinel
		})
		assert.ErrorIs(t, err, sentinel)

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.NotNil(t, got.Challenge, "mutation of the copy is discarded")
	})

	t.Run("nil result deletes", func(t *testing.T) {
		require.NoError(t, store.Update(ctx, "k", func(*auth.Session) (*auth.Session, error) { return nil, nil }))
		_, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestSessionStore_UpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	require.NoError(t, store.Update(ctx, "k", func(*auth.Session) (*auth.Session, error) {
		s := auth.NewSession(time.Now())
		s.Challenge = &auth.PendingChallenge{Code: "123456"}
		return s, nil
	}))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		consumed int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update(ctx, "k", func(cur *auth.Session) (*auth.Session, error) {
				if cur.Challenge == nil {
					return nil, auth.ErrNoPendingChallenge
				}
				cur.Challenge = nil
				return cur, nil
			})
			if err == nil {
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, consumed, "exactly one caller consumes the challenge")
}

func TestSessionStore_DeleteIdle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	now := time.Now()
	for key, seen := range map[string]time.Time{
		"old":    now.Add(-2 * time.Hour),
		"recent": now,
	} {
		require.NoError(t, store.Update(ctx, key, func(*auth.Session) (*auth.Session, error) {
			return auth.NewSession(seen), nil
		}))
	}

	removed, err := store.DeleteIdle(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, "recent"))
	require.NoError(t, store.Delete(ctx, "missing"))
	assert.Equal(t, 0, store.Len())
}
