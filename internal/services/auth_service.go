package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/resumedesk/internal/auth"
	"github.com/yoockh/resumedesk/internal/models"
	"github.com/yoockh/resumedesk/internal/utils"
)

// Login is the result of exchanging a provider token.
type Login struct {
	Identity       models.User
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

type TokenRevoker interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
}

type AuthService interface {
	Exchange(ctx context.Context, providerToken string) (*Login, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

type authService struct {
	verifier auth.Verifier
	tokens   *auth.TokenIssuer
	sessions SessionService
	revoker  TokenRevoker
	log      *logrus.Entry
}

func NewAuthService(verifier auth.Verifier, tokens *auth.TokenIssuer, sessions SessionService, revoker TokenRevoker, log *logrus.Entry) AuthService {
	return &authService{verifier: verifier, tokens: tokens, sessions: sessions, revoker: revoker, log: log}
}

func (s *authService) Exchange(ctx context.Context, providerToken string) (*Login, error) {
	const op = "AuthService.Exchange"

	if providerToken == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "access_token is required", nil)
	}
	identity, err := s.verifier.Verify(ctx, providerToken)
	if err != nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid provider token", err)
	}
	if identity.LastSignInAt.IsZero() {
		identity.LastSignInAt = time.Now().UTC()
	}

	sess, err := s.sessions.Create(ctx, *identity)
	if err != nil {
		return nil, err
	}
	access, exp, err := s.tokens.Mint(*identity)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to mint access token", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": identity.ID, "provider": identity.Provider}).Info("session created")

	return &Login{
		Identity:       *identity,
		AccessToken:    access,
		AccessExpires:  exp,
		RefreshToken:   sess.RefreshToken,
		RefreshExpires: sess.ExpiresAt,
	}, nil
}

// Logout ends the refresh session and revokes the access token for the rest of its lifetime.
func (s *authService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	const op = "AuthService.Logout"

	if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
		return err
	}
	if accessToken == "" || s.revoker == nil {
		return nil
	}
	_, exp, err := s.tokens.Parse(accessToken)
	if err != nil {
		// expired or foreign: nothing to revoke
		return nil
	}
	if err := s.revoker.Add(ctx, accessToken, time.Until(exp)); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to revoke access token", err)
	}
	return nil
}
