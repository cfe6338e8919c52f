package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/resumedesk/internal/models"
	"github.com/yoockh/resumedesk/internal/utils"
	"gorm.io/gorm"
)

// ReviewUpdate is the set of columns a reviewer save writes.
type ReviewUpdate struct {
	Status     models.ResumeStatus
	Score      *int
	Notes      *string
	ReviewedBy string
}

type ResumeRepository interface {
	// List returns rows newest first. An empty ownerID lists every row.
	List(ctx context.Context, ownerID string, joined bool) ([]models.Resume, error)
	GetByID(ctx context.Context, id string, joined bool) (*models.Resume, error)
	Insert(ctx context.Context, r *models.Resume) error
	UpdateReview(ctx context.Context, id string, u ReviewUpdate) error
}

type resumeRepo struct {
	db *gorm.DB
}

func NewResumeRepo(db *gorm.DB) ResumeRepository {
	return &resumeRepo{db: db}
}

func (r *resumeRepo) query(ctx context.Context, joined bool) *gorm.DB {
	q := r.db.WithContext(ctx)
	if joined {
		q = q.Preload("Owner")
	}
	return q
}

func (r *resumeRepo) List(ctx context.Context, ownerID string, joined bool) ([]models.Resume, error) {
	q := r.query(ctx, joined).Order("created_at DESC")
	if ownerID != "" {
		q = q.Where("user_id = ?", ownerID)
	}
	rows := []models.Resume{}
	err := q.Find(&rows).Error
	return rows, err
}

func (r *resumeRepo) GetByID(ctx context.Context, id string, joined bool) (*models.Resume, error) {
	var row models.Resume
	err := r.query(ctx, joined).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *resumeRepo) Insert(ctx context.Context, row *models.Resume) error {
	return r.db.WithContext(ctx).Omit("Owner").Create(row).Error
}

func (r *resumeRepo) UpdateReview(ctx context.Context, id string, u ReviewUpdate) error {
	res := r.db.WithContext(ctx).
		Model(&models.Resume{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      string(u.Status),
			"score":       u.Score,
			"notes":       u.Notes,
			"reviewed_by": u.ReviewedBy,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
