package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/talk2m-gateway/internal/ebd"
)

// 使用测试用Redis客户端（需要真实Redis实例）
func setupTestRedis(t *testing.T) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skip("Redis not available, skipping test")
		return nil
	}
	rdb.FlushDB(ctx)

	t.Cleanup(func() {
		rdb.FlushDB(ctx)
		_ = rdb.Close()
	})
	return &Client{Client: rdb}
}

func TestTagCache_SaveLoad(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewTagCache(client)
	ctx := context.Background()

	at := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	tags := map[string]ebd.TagRecord{
		"Temp":  {ID: "1", Name: "Temp", Value: "72", AlarmStatus: "0", AlarmType: "0", Quality: "192"},
		"Level": {ID: "2", Name: "Level", Value: "3.2", AlarmStatus: "0", AlarmType: "0", Quality: "192"},
	}
	require.NoError(t, cache.SaveLiveTags(ctx, "plant-1", tags, at, time.Minute))

	snap, ok, err := cache.LoadLiveTags(ctx, "plant-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at, snap.UpdatedAt)
	assert.Equal(t, tags, snap.Tags)

	rec, ok, err := cache.GetTag(ctx, "plant-1", "Level")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3.2", rec.Value)

	ttl := client.TTL(ctx, tagsKey("plant-1")).Val()
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}

func TestTagCache_ReplaceDropsOldTags(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewTagCache(client)
	ctx := context.Background()

	require.NoError(t, cache.SaveLiveTags(ctx, "d", map[string]ebd.TagRecord{"A": {Name: "A"}}, time.Now(), 0))
	require.NoError(t, cache.SaveLiveTags(ctx, "d", map[string]ebd.TagRecord{"B": {Name: "B"}}, time.Now(), 0))

	snap, ok, err := cache.LoadLiveTags(ctx, "d")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, snap.Tags, 1)
	assert.Contains(t, snap.Tags, "B")
}

func TestTagCache_Missing(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewTagCache(client)

	_, ok, err := cache.LoadLiveTags(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = cache.GetTag(context.Background(), "ghost", "x")
	require.NoError(t, err)
	assert.False(t, ok)
}
