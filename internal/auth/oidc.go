package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/yoockh/resumedesk/internal/models"
)

// OIDCVerifier verifies ID tokens against a provider found by discovery.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

type oidcClaims struct {
	Email               string `json:"email"`
	EmailVerified       bool   `json:"email_verified"`
	PhoneNumber         string `json:"phone_number"`
	PhoneNumberVerified bool   `json:"phone_number_verified"`
	AuthTime            int64  `json:"auth_time"`
	IdP                 string `json:"idp"`
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*models.User, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var c oidcClaims
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	return identityFromOIDC(idToken.Subject, idToken.IssuedAt, c), nil
}

func identityFromOIDC(sub string, issuedAt time.Time, c oidcClaims) *models.User {
	u := &models.User{
		ID:            sub,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		Phone:         c.PhoneNumber,
		PhoneVerified: c.PhoneNumberVerified,
		Provider:      c.IdP,
		LastSignInAt:  issuedAt.UTC(),
	}
	if u.Provider == "" {
		u.Provider = "oidc"
	}
	if c.AuthTime > 0 {
		u.LastSignInAt = time.Unix(c.AuthTime, 0).UTC()
	}
	return u
}
