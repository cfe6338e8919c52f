package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/resumedesk/internal/cache"
	"github.com/yoockh/resumedesk/internal/models"
	pgrepo "github.com/yoockh/resumedesk/internal/repositories/postgres"
	"github.com/yoockh/resumedesk/internal/utils"
)

const profileCacheTTL = 5 * time.Minute

func profileCacheKey(id string) string { return "profile:" + id }

type ProfileService interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	Onboard(ctx context.Context, id string, fullName string, role models.Role) (*models.Profile, error)
	UpdateFullName(ctx context.Context, id string, fullName string) (*models.Profile, error)
}

type profileService struct {
	profiles pgrepo.ProfileRepository
	cache    cache.Cache // optional
	log      *logrus.Entry
}

func NewProfileService(profiles pgrepo.ProfileRepository, c cache.Cache, log *logrus.Entry) ProfileService {
	return &profileService{profiles: profiles, cache: c, log: log}
}

func nullableName(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// GetByID is on the path of every routed request; hits are served from the cache.
// Absence is never cached so a fresh onboarding is visible immediately.
func (s *profileService) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	const op = "ProfileService.GetByID"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "id is required", nil)
	}

	if s.cache != nil {
		var p models.Profile
		hit, err := s.cache.GetJSON(ctx, profileCacheKey(id), &p)
		if err != nil {
			s.log.WithError(err).Warn("profile cache read")
		}
		if hit {
			return &p, nil
		}
	}

	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "profile not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get profile", err)
	}
	s.remember(ctx, p)
	return p, nil
}

func (s *profileService) Onboard(ctx context.Context, id string, fullName string, role models.Role) (*models.Profile, error) {
	const op = "ProfileService.Onboard"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "id is required", nil)
	}
	if !role.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "role must be CANDIDATE or REVIEWER", nil)
	}

	p := &models.Profile{
		ID:        id,
		FullName:  nullableName(fullName),
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, utils.E(utils.CodeConflict, op, "profile already exists", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create profile", err)
	}
	s.remember(ctx, p)
	return p, nil
}

func (s *profileService) UpdateFullName(ctx context.Context, id string, fullName string) (*models.Profile, error) {
	const op = "ProfileService.UpdateFullName"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "id is required", nil)
	}
	if err := s.profiles.UpdateFullName(ctx, id, nullableName(fullName)); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "profile not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to update profile", err)
	}
	s.forget(ctx, id)
	return s.GetByID(ctx, id)
}

func (s *profileService) remember(ctx context.Context, p *models.Profile) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, profileCacheKey(p.ID), p, profileCacheTTL); err != nil {
		s.log.WithError(err).Warn("profile cache write")
	}
}

func (s *profileService) forget(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, profileCacheKey(id)); err != nil {
		s.log.WithError(err).Warn("profile cache delete")
	}
}
