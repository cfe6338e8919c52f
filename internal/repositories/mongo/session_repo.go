package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/resumedesk/internal/models"
	"github.com/yoockh/resumedesk/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// SessionCollection holds refresh sessions; config.EnsureMongoIndexes adds the TTL index on expires_at.
const SessionCollection = "sessions"

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	GetByRefresh(ctx context.Context, refresh string) (*models.Session, error)
	DeleteByRefresh(ctx context.Context, refresh string) error
}

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{col: db.Collection(SessionCollection)}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *sessionRepo) GetByRefresh(ctx context.Context, refresh string) (*models.Session, error) {
	var s models.Session
	err := r.col.FindOne(ctx, bson.M{"refresh_token": refresh}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// the TTL monitor runs about once a minute
	if time.Now().UTC().After(s.ExpiresAt) {
		return nil, utils.ErrNotFound
	}
	return &s, nil
}

func (r *sessionRepo) DeleteByRefresh(ctx context.Context, refresh string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"refresh_token": refresh})
	return err
}
