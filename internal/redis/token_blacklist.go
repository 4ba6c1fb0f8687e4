package redis

import (
	"context"
	"fmt"
	"time"

	"clipgram/internal/auth"

	"github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "bl:jti:"

// tokenBlacklist 用 Redis 实现 auth.TokenBlacklist。
// 键的 TTL 对齐 Token 自身的过期时间，过期后条目自动消失。
type tokenBlacklist struct {
	client *redis.Client
}

// NewRedisTokenBlacklist returns a Redis-backed token blacklist.
func NewRedisTokenBlacklist(client *redis.Client) auth.TokenBlacklist {
	return &tokenBlacklist{client: client}
}

// Add marks a JTI as revoked until the token's own expiry.
func (b *tokenBlacklist) Add(ctx context.Context, jti string, tokenExpiry time.Time) error {
	ttl := time.Until(tokenExpiry)
	if ttl <= 0 {
		// Token 已过期，验签阶段就会拒绝，不必占黑名单
		return nil
	}
	if err := b.client.Set(ctx, blacklistKeyPrefix+jti, "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("写入 Token 黑名单失败 (jti=%s): %w", jti, err)
	}
	return nil
}

// IsBlacklisted reports whether the JTI has been revoked.
func (b *tokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	err := b.client.Get(ctx, blacklistKeyPrefix+jti).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("查询 Token 黑名单失败 (jti=%s): %w", jti, err)
	}
	return true, nil
}
