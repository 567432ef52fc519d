package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"SonicPlayer/core/nowplaying"
)

const (
	nowPlayingKey     = "nowplaying:%s" // Hash: 当前播放信息
	nowPlayingChannel = "nowplaying:events"
	opTimeout         = 2 * time.Second
)

// NowPlayingUpdate is published on the events channel after every change.
type NowPlayingUpdate struct {
	Holder string           `json:"holder"`
	Kind   string           `json:"kind"` // "publish", "progress" or "clear"
	Info   *nowplaying.Info `json:"info,omitempty"`
}

// NowPlayingCache 把正在播放信息同步到 Redis
type NowPlayingCache struct {
	client *redis.Client
	holder string
	ttl    time.Duration
}

// NewNowPlayingCache 创建缓存, holder 区分同一 Redis 上的多个播放器
func NewNowPlayingCache(client *redis.Client, holder string, ttl time.Duration) *NowPlayingCache {
	if client == nil {
		client = RedisClient
	}
	return &NowPlayingCache{client: client, holder: holder, ttl: ttl}
}

func (c *NowPlayingCache) key() string {
	return fmt.Sprintf(nowPlayingKey, c.holder)
}

// Publish 写入完整播放信息
func (c *NowPlayingCache) Publish(info nowplaying.Info) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	info.UpdatedAt = time.Now().UnixMilli()
	fields := map[string]interface{}{
		"title":       info.Title,
		"artist":      info.Artist,
		"album":       info.Album,
		"description": info.Description,
		"artwork":     info.ArtworkURI,
		"duration":    strconv.FormatFloat(info.Duration, 'f', 3, 64),
		"is_live":     strconv.FormatBool(info.IsLive),
		"elapsed":     strconv.FormatFloat(info.Elapsed, 'f', 3, 64),
		"rate":        strconv.FormatFloat(info.Rate, 'f', 3, 64),
		"updated_at":  strconv.FormatInt(info.UpdatedAt, 10),
	}

	key := c.key()
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store now playing: %w", err)
	}
	return c.notify(ctx, NowPlayingUpdate{Holder: c.holder, Kind: "publish", Info: &info})
}

// UpdateProgress 只更新进度和速率, 没有记录时忽略
func (c *NowPlayingCache) UpdateProgress(elapsed, rate float64) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	key := c.key()
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check now playing: %w", err)
	}
	if n == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key,
		"elapsed", strconv.FormatFloat(elapsed, 'f', 3, 64),
		"rate", strconv.FormatFloat(rate, 'f', 3, 64),
		"updated_at", strconv.FormatInt(time.Now().UnixMilli(), 10))
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update now playing progress: %w", err)
	}
	return nil
}

// Clear 删除播放信息
func (c *NowPlayingCache) Clear() error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.key()).Err(); err != nil {
		return fmt.Errorf("failed to clear now playing: %w", err)
	}
	return c.notify(ctx, NowPlayingUpdate{Holder: c.holder, Kind: "clear"})
}

// Get 读取播放信息, 不存在时返回 nil
func (c *NowPlayingCache) Get(ctx context.Context) (*nowplaying.Info, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	vals, err := c.client.HGetAll(ctx, c.key()).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}

	info := &nowplaying.Info{
		Title:       vals["title"],
		Artist:      vals["artist"],
		Album:       vals["album"],
		Description: vals["description"],
		ArtworkURI:  vals["artwork"],
	}
	info.Duration, _ = strconv.ParseFloat(vals["duration"], 64)
	info.Elapsed, _ = strconv.ParseFloat(vals["elapsed"], 64)
	info.Rate, _ = strconv.ParseFloat(vals["rate"], 64)
	info.IsLive, _ = strconv.ParseBool(vals["is_live"])
	info.UpdatedAt, _ = strconv.ParseInt(vals["updated_at"], 10, 64)
	return info, nil
}

// Subscribe 订阅所有播放器的变更通知
func (c *NowPlayingCache) Subscribe(ctx context.Context) *redis.PubSub {
	return c.client.Subscribe(ctx, nowPlayingChannel)
}

func (c *NowPlayingCache) notify(ctx context.Context, u NowPlayingUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal now playing update: %w", err)
	}
	if err := c.client.Publish(ctx, nowPlayingChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish now playing update: %w", err)
	}
	return nil
}
