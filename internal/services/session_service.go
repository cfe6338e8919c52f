package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/yoockh/resumedesk/internal/models"
	"github.com/yoockh/resumedesk/internal/utils"
)

// SessionStore persists refresh sessions. Implemented by the Redis and Mongo session repos.
type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	GetByRefresh(ctx context.Context, refresh string) (*models.Session, error)
	DeleteByRefresh(ctx context.Context, refresh string) error
}

type SessionService interface {
	Create(ctx context.Context, identity models.User) (*models.Session, error)
	Validate(ctx context.Context, refresh string) (*models.Session, error)
	Revoke(ctx context.Context, refresh string) error
}

type sessionService struct {
	store SessionStore
	ttl   time.Duration
}

func NewSessionService(store SessionStore, ttl time.Duration) SessionService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &sessionService{store: store, ttl: ttl}
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *sessionService) Create(ctx context.Context, identity models.User) (*models.Session, error) {
	const op = "SessionService.Create"

	if identity.ID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "identity id is required", nil)
	}
	token, err := newRefreshToken()
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to generate refresh token", err)
	}

	now := time.Now().UTC()
	sess := &models.Session{
		RefreshToken: token,
		Sub:          identity.ID,
		Identity:     identity,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to store session", err)
	}
	return sess, nil
}

func (s *sessionService) Validate(ctx context.Context, refresh string) (*models.Session, error) {
	const op = "SessionService.Validate"

	if refresh == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "missing refresh token", nil)
	}
	sess, err := s.store.GetByRefresh(ctx, refresh)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeUnauthorized, op, "session expired", err)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load session", err)
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		return nil, utils.E(utils.CodeUnauthorized, op, "session expired", nil)
	}
	return sess, nil
}

func (s *sessionService) Revoke(ctx context.Context, refresh string) error {
	const op = "SessionService.Revoke"

	if refresh == "" {
		return nil
	}
	if err := s.store.DeleteByRefresh(ctx, refresh); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to delete session", err)
	}
	return nil
}
