package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taoyao-code/talk2m-gateway/internal/ebd"
)

const (
	// talk2m:tags:{device} -> Hash[tagName]TagRecord JSON
	keyTagsPrefix = "talk2m:tags:"
	// talk2m:tags:{device}:at -> 快照时间（RFC3339Nano）
	keyTagsAtSuffix = ":at"
)

// TagSnapshot 某设备最近一次实时标签快照
type TagSnapshot struct {
	Device    string                   `json:"device"`
	UpdatedAt time.Time                `json:"updatedAt"`
	Tags      map[string]ebd.TagRecord `json:"tags"`
}

// TagCache 实时标签缓存
type TagCache struct {
	client *Client
}

// NewTagCache 创建实时标签缓存
func NewTagCache(client *Client) *TagCache {
	return &TagCache{client: client}
}

func tagsKey(device string) string   { return keyTagsPrefix + device }
func tagsAtKey(device string) string { return keyTagsPrefix + device + keyTagsAtSuffix }

// SaveLiveTags 整体替换设备快照，ttl<=0 表示不过期
func (c *TagCache) SaveLiveTags(ctx context.Context, device string, tags map[string]ebd.TagRecord, at time.Time, ttl time.Duration) error {
	fields := make(map[string]interface{}, len(tags))
	for name, rec := range tags {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal tag %s: %w", name, err)
		}
		fields[name] = data
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := tagsKey(device)
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
		pipe.Set(ctx, tagsAtKey(device), at.UTC().Format(time.RFC3339Nano), ttl)
		if ttl > 0 && len(fields) > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save live tags %s: %w", device, err)
	}
	return nil
}

// LoadLiveTags 读取设备快照；不存在或已过期时 ok=false
func (c *TagCache) LoadLiveTags(ctx context.Context, device string) (*TagSnapshot, bool, error) {
	at, err := c.client.Get(ctx, tagsAtKey(device)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load live tags %s: %w", device, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, false, fmt.Errorf("load live tags %s: bad timestamp %q", device, at)
	}

	raw, err := c.client.HGetAll(ctx, tagsKey(device)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("load live tags %s: %w", device, err)
	}
	snap := &TagSnapshot{Device: device, UpdatedAt: updatedAt, Tags: make(map[string]ebd.TagRecord, len(raw))}
	for name, data := range raw {
		var rec ebd.TagRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, false, fmt.Errorf("decode tag %s/%s: %w", device, name, err)
		}
		snap.Tags[name] = rec
	}
	return snap, true, nil
}

// GetTag 读取单个标签
func (c *TagCache) GetTag(ctx context.Context, device, name string) (ebd.TagRecord, bool, error) {
	data, err := c.client.HGet(ctx, tagsKey(device), name).Result()
	if errors.Is(err, redis.Nil) {
		return ebd.TagRecord{}, false, nil
	}
	if err != nil {
		return ebd.TagRecord{}, false, fmt.Errorf("get tag %s/%s: %w", device, name, err)
	}
	var rec ebd.TagRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return ebd.TagRecord{}, false, fmt.Errorf("decode tag %s/%s: %w", device, name, err)
	}
	return rec, true, nil
}
