package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/resumedesk/internal/feed"
	"github.com/yoockh/resumedesk/internal/models"
	pgrepo "github.com/yoockh/resumedesk/internal/repositories/postgres"
	"github.com/yoockh/resumedesk/internal/storage"
	"github.com/yoockh/resumedesk/internal/utils"
)

const uploadPrefix = "candidate-uploads"

// ReviewInput is a reviewer save. Score is optional; when present it must be within [0,100].
type ReviewInput struct {
	Status models.ResumeStatus
	Score  *int
	Notes  string
}

type ResumeService interface {
	Upload(ctx context.Context, userID, fileName string, size int64, r io.Reader) (*models.Resume, error)
	// List returns rows in scope newest first; the unrestricted scope includes owner profiles.
	List(ctx context.Context, scope feed.Scope) ([]models.Resume, error)
	// Fetch returns one row; an owner scope rejects rows of other owners.
	Fetch(ctx context.Context, id string, scope feed.Scope) (*models.Resume, error)
	Review(ctx context.Context, reviewerID, id string, in ReviewInput) (*models.Resume, error)
	SignedURL(ctx context.Context, r *models.Resume) (string, error)
	Download(ctx context.Context, r *models.Resume) (io.ReadCloser, error)
}

type resumeService struct {
	repo      pgrepo.ResumeRepository
	store     storage.ObjectStore
	publisher feed.Publisher
	urlTTL    time.Duration
	log       *logrus.Entry
}

func NewResumeService(repo pgrepo.ResumeRepository, store storage.ObjectStore, publisher feed.Publisher, urlTTL time.Duration, log *logrus.Entry) ResumeService {
	if publisher == nil {
		publisher = feed.Discard
	}
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &resumeService{repo: repo, store: store, publisher: publisher, urlTTL: urlTTL, log: log}
}

// ObjectName is the storage key of an upload.
func ObjectName(userID string, at time.Time, fileName string) string {
	return fmt.Sprintf("%s/%s/%d_%s", uploadPrefix, userID, at.UnixMilli(), safeFileName(fileName))
}

func safeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "." || name == "/" || name == "" {
		return "resume.pdf"
	}
	return name
}

func (s *resumeService) Upload(ctx context.Context, userID, fileName string, size int64, r io.Reader) (*models.Resume, error) {
	const op = "ResumeService.Upload"

	if userID == "" || fileName == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and file name are required", nil)
	}
	if s.store == nil {
		return nil, utils.E(utils.CodeInternal, op, "object store is not configured", nil)
	}

	now := time.Now().UTC()
	objectName := ObjectName(userID, now, fileName)
	storedPath, err := s.store.Upload(ctx, objectName, "application/pdf", r, size)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to upload file", err)
	}

	row := &models.Resume{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        safeFileName(fileName),
		StoragePath: storedPath,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		// the request may be gone by now; the orphan still has to go
		if derr := s.store.Delete(context.WithoutCancel(ctx), storedPath); derr != nil {
			s.log.WithError(derr).WithField("storage_path", storedPath).Error("remove orphaned upload")
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to persist resume", err)
	}

	s.publish(ctx, feed.Inserted(*row))
	return row, nil
}

func (s *resumeService) List(ctx context.Context, scope feed.Scope) ([]models.Resume, error) {
	const op = "ResumeService.List"

	rows, err := s.repo.List(ctx, scope.OwnerID, scope.All())
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list resumes", err)
	}
	return rows, nil
}

func (s *resumeService) Fetch(ctx context.Context, id string, scope feed.Scope) (*models.Resume, error) {
	const op = "ResumeService.Fetch"

	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.E(utils.CodeNotFound, op, "resume not found", err)
	}
	row, err := s.repo.GetByID(ctx, id, scope.All())
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "resume not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get resume", err)
	}
	if !scope.All() && row.UserID != scope.OwnerID {
		return nil, utils.E(utils.CodeForbidden, op, "resume belongs to another candidate", nil)
	}
	return row, nil
}

func (s *resumeService) Review(ctx context.Context, reviewerID, id string, in ReviewInput) (*models.Resume, error) {
	const op = "ResumeService.Review"

	if in.Score != nil && (*in.Score < models.MinScore || *in.Score > models.MaxScore) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "score must be between 0 and 100", nil)
	}
	if !in.Status.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid status", nil)
	}
	if reviewerID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "reviewer id is required", nil)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.E(utils.CodeNotFound, op, "resume not found", err)
	}

	err := s.repo.UpdateReview(ctx, id, pgrepo.ReviewUpdate{
		Status:     in.Status,
		Score:      in.Score,
		Notes:      nullableName(in.Notes),
		ReviewedBy: reviewerID,
	})
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "resume not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to save review", err)
	}

	row, err := s.Fetch(ctx, id, feed.Scope{})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, feed.Updated(*row))
	return row, nil
}

func (s *resumeService) SignedURL(ctx context.Context, r *models.Resume) (string, error) {
	const op = "ResumeService.SignedURL"

	if s.store == nil {
		return "", utils.E(utils.CodeInternal, op, "object store is not configured", nil)
	}
	u, err := s.store.SignedGetURL(ctx, r.StoragePath, s.urlTTL)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to sign url", err)
	}
	return u, nil
}

func (s *resumeService) Download(ctx context.Context, r *models.Resume) (io.ReadCloser, error) {
	const op = "ResumeService.Download"

	if s.store == nil {
		return nil, utils.E(utils.CodeInternal, op, "object store is not configured", nil)
	}
	rc, err := s.store.Download(ctx, r.StoragePath)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to download file", err)
	}
	return rc, nil
}

// publish failures are logged; the write stands.
func (s *resumeService) publish(ctx context.Context, c feed.Change) {
	if err := s.publisher.Publish(ctx, c); err != nil {
		s.log.WithError(err).WithField("id", c.RecordID()).Warn("publish change")
	}
}
