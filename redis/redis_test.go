package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	IDs []uint64 `json:"ids"`
}

func TestCache_SetGet(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cache := NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	var got page
	found, err := cache.Get(ctx, "docs", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "docs", page{IDs: []uint64{1, 2}}, time.Minute))
	found, err = cache.Get(ctx, "docs", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []uint64{1, 2}, got.IDs)

	mr.FastForward(2 * time.Minute)
	found, _ = cache.Get(ctx, "docs", &got)
	assert.False(t, found)
}

func TestCache_Version(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cache := NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	assert.Equal(t, int64(0), cache.GetVersion(ctx, "user:1:docs:version"))
	require.NoError(t, cache.IncrementVersion(ctx, "user:1:docs:version"))
	require.NoError(t, cache.IncrementVersion(ctx, "user:1:docs:version"))
	assert.Equal(t, int64(2), cache.GetVersion(ctx, "user:1:docs:version"))
}

func TestCache_WithoutClient(t *testing.T) {
	cache := NewCache(nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, time.Minute))
	var v int
	found, err := cache.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.IncrementVersion(ctx, "v"))
	assert.Equal(t, int64(0), cache.GetVersion(ctx, "v"))
}
