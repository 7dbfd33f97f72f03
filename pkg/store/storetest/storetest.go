// Package storetest provides contract tests for store.Store implementations.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nais/botdeploy/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates an empty store for each test invocation.
type Factory func(t *testing.T) store.Store

func record(name string) store.Record {
	return store.Record{
		Name:        name,
		Repo:        "https://github.com/owner/" + name,
		ConfigValue: "session-" + name,
		URL:         "https://" + name + ".herokuapp.com/",
		Role:        "worker",
	}
}

// Run exercises the store.Store contract.
func Run(t *testing.T, factory Factory) {
	t.Run("UpsertAndGet", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		require.NoError(t, s.Upsert(ctx, record("alpha")))

		got, err := s.Get(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, "alpha", got.Name)
		assert.Equal(t, "https://github.com/owner/alpha", got.Repo)
		assert.Equal(t, "session-alpha", got.ConfigValue)
		assert.Equal(t, "https://alpha.herokuapp.com/", got.URL)
		assert.Equal(t, "worker", got.Role)
		assert.False(t, got.CreatedAt.IsZero())
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("GetNotFound", func(t *testing.T) {
		s := factory(t)
		_, err := s.Get(context.Background(), "ghost")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.True(t, store.IsErrNotFound(err))
	})

	t.Run("UpsertReplacesAndKeepsCreatedAt", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		require.NoError(t, s.Upsert(ctx, record("alpha")))
		first, err := s.Get(ctx, "alpha")
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		updated := record("alpha")
		updated.ConfigValue = "rotated"
		require.NoError(t, s.Upsert(ctx, updated))

		second, err := s.Get(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, "rotated", second.ConfigValue)
		assert.True(t, first.CreatedAt.Equal(second.CreatedAt), "created %s, then %s", first.CreatedAt, second.CreatedAt)
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("List", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		for _, name := range []string{"charlie", "alpha", "bravo"} {
			require.NoError(t, s.Upsert(ctx, record(name)))
		}

		list, err = s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "alpha", list[0].Name)
		assert.Equal(t, "bravo", list[1].Name)
		assert.Equal(t, "charlie", list[2].Name)
	})

	t.Run("Delete", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		require.NoError(t, s.Upsert(ctx, record("alpha")))
		require.NoError(t, s.Upsert(ctx, record("bravo")))
		require.NoError(t, s.Delete(ctx, "alpha"))

		_, err := s.Get(ctx, "alpha")
		assert.ErrorIs(t, err, store.ErrNotFound)

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "bravo", list[0].Name)
	})

	t.Run("DeleteUnknownIsHarmless", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		require.NoError(t, s.Upsert(ctx, record("alpha")))
		require.NoError(t, s.Delete(ctx, "ghost"))

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("ConcurrentUpserts", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		names := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8"}
		wg := sync.WaitGroup{}
		errs := make(chan error, len(names))
		for _, name := range names {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				errs <- s.Upsert(ctx, record(name))
			}(name)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, len(names))
	})
}
