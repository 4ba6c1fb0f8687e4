package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clipgram/internal/models"
	"clipgram/internal/services"

	"github.com/redis/go-redis/v9"
)

const followStatsKeyPrefix = "follow:stats:"

// redisFollowStatsCache 是 services.FollowStatsCache 的 Redis 实现。
// 键按 userID 划分，短 TTL + 关注/取关时显式失效——
// 刻意避免进程级全局缓存，多实例部署下不会读到陈旧的关系快照。
type redisFollowStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisFollowStatsCache 创建一个新的 redisFollowStatsCache 实例。
func NewRedisFollowStatsCache(client *redis.Client, ttl time.Duration) services.FollowStatsCache {
	return &redisFollowStatsCache{client: client, ttl: ttl}
}

// GetStats 读取缓存的计数；未命中时返回 (nil, nil)。
func (c *redisFollowStatsCache) GetStats(ctx context.Context, userID uint) (*models.FollowStats, error) {
	key := fmt.Sprintf("%s%d", followStatsKeyPrefix, userID)
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取关注计数缓存失败 for user %d: %w", userID, err)
	}

	var stats models.FollowStats
	if err := json.Unmarshal([]byte(val), &stats); err != nil {
		// 缓存内容损坏按未命中处理，下次写入会覆盖
		return nil, nil
	}
	return &stats, nil
}

func (c *redisFollowStatsCache) SetStats(ctx context.Context, userID uint, stats models.FollowStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("序列化关注计数失败: %w", err)
	}
	key := fmt.Sprintf("%s%d", followStatsKeyPrefix, userID)
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("写入关注计数缓存失败 for user %d: %w", userID, err)
	}
	return nil
}

// Invalidate 在关注关系变化后删除相关用户的缓存键。
func (c *redisFollowStatsCache) Invalidate(ctx context.Context, userIDs ...uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = fmt.Sprintf("%s%d", followStatsKeyPrefix, id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("失效关注计数缓存失败: %w", err)
	}
	return nil
}
