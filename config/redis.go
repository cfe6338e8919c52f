package config

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// NewRedisClient accepts a redis:// URL or a bare host:port.
func NewRedisClient(addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("REDIS_ADDR (or REDIS_URI/REDIS_URL) environment variable is not set")
	}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

func InitRedis(cfg RedisConfig) error {
	c, err := NewRedisClient(cfg.Addr)
	if err != nil {
		return err
	}
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return err
	}
	RedisClient = c
	return nil
}
