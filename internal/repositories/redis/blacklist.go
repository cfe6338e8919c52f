package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist remembers revoked access tokens until they would have expired anyway.
// A nil *TokenBlacklist or nil client disables it.
type TokenBlacklist struct {
	rdb *redis.Client
}

func NewTokenBlacklist(rdb *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rdb: rdb}
}

func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "blacklist:access:" + hex.EncodeToString(sum[:])
}

func (b *TokenBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if b == nil || b.rdb == nil || ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, blacklistKey(token), "1", ttl).Err()
}

func (b *TokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	if b == nil || b.rdb == nil {
		return false, nil
	}
	n, err := b.rdb.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
