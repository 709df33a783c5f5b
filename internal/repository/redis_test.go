package repository

import (
	"context"
	"testing"
	"time"

	"salon/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	repo := NewRedisCacheRepository(client)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "catalog:services", []byte(`[{"id":1}]`), time.Minute))
		assert.True(t, s.Exists("salon:catalog:services"))

		got, err := repo.Get(ctx, "catalog:services")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":1}]`, string(got))

		require.NoError(t, repo.Delete(ctx, "catalog:services"))
		got, err = repo.Get(ctx, "catalog:services")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "short", []byte("x"), time.Second))
		s.FastForward(2 * time.Second)
		got, err := repo.Get(ctx, "short")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeleteNoKeys", func(t *testing.T) {
		assert.NoError(t, repo.Delete(ctx))
	})

	t.Run("RateLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := repo.CheckRateLimit(ctx, "booking:+79001234567", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := repo.CheckRateLimit(ctx, "booking:+79001234567", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(2 * time.Minute)
		allowed, err = repo.CheckRateLimit(ctx, "booking:+79001234567", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("RateLimitWindowNotExtended", func(t *testing.T) {
		_, err := repo.CheckRateLimit(ctx, "booking:+79990000000", 5, time.Minute)
		require.NoError(t, err)
		s.FastForward(30 * time.Second)
		_, err = repo.CheckRateLimit(ctx, "booking:+79990000000", 5, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, s.TTL("salon:rate_limit:booking:+79990000000"))
	})

	t.Run("ServerDown", func(t *testing.T) {
		s.SetError("LOADING")
		defer s.SetError("")
		_, err := repo.Get(ctx, "any")
		assert.Error(t, err)
	})
}

func TestRedisCacheRepository_NilClient(t *testing.T) {
	repo := NewRedisCacheRepository(nil)
	ctx := context.Background()

	_, err := repo.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, repo.Set(ctx, "k", nil, 0))
	assert.Error(t, repo.Delete(ctx, "k"))
	_, err = repo.CheckRateLimit(ctx, "k", 1, time.Second)
	assert.Error(t, err)
	assert.NoError(t, Close(nil))
}
