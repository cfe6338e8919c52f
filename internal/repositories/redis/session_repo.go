package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yoockh/resumedesk/internal/models"
	"github.com/yoockh/resumedesk/internal/utils"
)

// SessionRepo stores sessions as JSON under prefix+refreshToken with TTL = ExpiresAt - now.
type SessionRepo struct {
	rdb    *redis.Client
	prefix string
}

func NewSessionRepo(rdb *redis.Client, prefix string) *SessionRepo {
	if prefix == "" {
		prefix = "session:"
	}
	return &SessionRepo{rdb: rdb, prefix: prefix}
}

func (r *SessionRepo) key(refresh string) string { return r.prefix + refresh }

func (r *SessionRepo) Create(ctx context.Context, s *models.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.rdb.Set(ctx, r.key(s.RefreshToken), b, ttl).Err()
}

func (r *SessionRepo) GetByRefresh(ctx context.Context, refresh string) (*models.Session, error) {
	b, err := r.rdb.Get(ctx, r.key(refresh)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s models.Session
	if err := json.Unmarshal(b, &s); err != nil {
		_ = r.rdb.Del(ctx, r.key(refresh)).Err()
		return nil, utils.ErrNotFound
	}
	if time.Now().UTC().After(s.ExpiresAt) {
		_ = r.rdb.Del(ctx, r.key(refresh)).Err()
		return nil, utils.ErrNotFound
	}
	return &s, nil
}

func (r *SessionRepo) DeleteByRefresh(ctx context.Context, refresh string) error {
	return r.rdb.Del(ctx, r.key(refresh)).Err()
}
