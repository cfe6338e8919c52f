package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yoockh/resumedesk/internal/models"
)

// Verifier checks a token issued by the identity provider and returns the identity it carries.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*models.User, error)
}

var ErrInvalidToken = errors.New("invalid token")

type supabaseClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	Role         string         `json:"role"` // usually "authenticated" / "anon"
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
	AMR          []struct {
		Method    string `json:"method"`
		Timestamp int64  `json:"timestamp"`
	} `json:"amr"`
}

// HS256Verifier verifies Supabase-style access tokens signed with the project JWT secret.
type HS256Verifier struct {
	secret   []byte
	issuer   string // optional
	audience string // optional
}

func NewHS256Verifier(secret, issuer, audience string) *HS256Verifier {
	return &HS256Verifier{secret: []byte(secret), issuer: issuer, audience: audience}
}

func (v *HS256Verifier) Verify(_ context.Context, raw string) (*models.User, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("provider secret is not set")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &supabaseClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || tok == nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Role == "anon" {
		return nil, ErrInvalidToken
	}

	u := &models.User{
		ID:            claims.Subject,
		Email:         claims.Email,
		Phone:         claims.Phone,
		EmailVerified: metaBool(claims.UserMetadata, "email_verified"),
		PhoneVerified: metaBool(claims.UserMetadata, "phone_verified"),
		Provider:      metaString(claims.AppMetadata, "provider"),
	}
	if claims.IssuedAt != nil {
		u.LastSignInAt = claims.IssuedAt.UTC()
	}
	for _, a := range claims.AMR {
		if t := time.Unix(a.Timestamp, 0).UTC(); a.Timestamp > 0 && t.After(u.LastSignInAt) {
			u.LastSignInAt = t
		}
	}
	if s := metaString(claims.UserMetadata, "created_at"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			u.CreatedAt = t.UTC()
		}
	}
	return u, nil
}

func metaBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
