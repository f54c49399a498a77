package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-server/internal/repository"
)

func newTestRepo(t *testing.T) (repository.StateRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return repository.NewRedisStateRepository(client, time.Hour, zerolog.Nop()), mr
}

func TestRedisStateRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("store mints an id and round-trips", func(t *testing.T) {
		repo, _ := newTestRepo(t)

		id, err := repo.StoreState(ctx, []byte(`{"story_length":10}`), "")
		require.NoError(t, err)
		require.NotEmpty(t, id)

		raw, err := repo.GetState(ctx, id)
		require.NoError(t, err)
		assert.JSONEq(t, `{"story_length":10}`, string(raw))
	})

	t.Run("store with existing key overwrites", func(t *testing.T) {
		repo, _ := newTestRepo(t)

		id, err := repo.StoreState(ctx, []byte(`{"v":1}`), "fixed-id")
		require.NoError(t, err)
		assert.Equal(t, "fixed-id", id)

		_, err = repo.StoreState(ctx, []byte(`{"v":2}`), "fixed-id")
		require.NoError(t, err)

		raw, err := repo.GetState(ctx, "fixed-id")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(raw))
	})

	t.Run("missing state", func(t *testing.T) {
		repo, _ := newTestRepo(t)
		_, err := repo.GetState(ctx, "nope")
		assert.ErrorIs(t, err, repository.ErrStateNotFound)
	})

	t.Run("active state index", func(t *testing.T) {
		repo, _ := newTestRepo(t)

		require.NoError(t, repo.SetActiveState(ctx, "user-1", "state-1"))
		id, err := repo.ActiveStateID(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "state-1", id)

		_, err = repo.ActiveStateID(ctx, "user-2")
		assert.ErrorIs(t, err, repository.ErrStateNotFound)
	})

	t.Run("store refreshes TTL", func(t *testing.T) {
		repo, mr := newTestRepo(t)

		id, err := repo.StoreState(ctx, []byte(`{}`), "")
		require.NoError(t, err)

		mr.FastForward(59 * time.Minute)
		_, err = repo.StoreState(ctx, []byte(`{}`), id)
		require.NoError(t, err)

		mr.FastForward(59 * time.Minute)
		_, err = repo.GetState(ctx, id)
		assert.NoError(t, err)

		mr.FastForward(2 * time.Hour)
		_, err = repo.GetState(ctx, id)
		assert.ErrorIs(t, err, repository.ErrStateNotFound)
	})
}
