package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yoockh/resumedesk/internal/models"
)

const appIssuer = "resumedesk"

type appClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	PhoneVerified bool   `json:"phone_verified"`
	Provider      string `json:"provider,omitempty"`
	UserCreatedAt int64  `json:"user_created_at,omitempty"`
	LastSignInAt  int64  `json:"last_sign_in_at,omitempty"`
}

// TokenIssuer mints and checks the short-lived access tokens kept in the access cookie.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

func (t *TokenIssuer) Mint(u models.User) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(t.ttl)
	claims := appClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    appIssuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:         u.Email,
		Phone:         u.Phone,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		Provider:      u.Provider,
		UserCreatedAt: unixOrZero(u.CreatedAt),
		LastSignInAt:  unixOrZero(u.LastSignInAt),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

// Parse validates raw and returns the identity with the token expiry.
func (t *TokenIssuer) Parse(raw string) (*models.User, time.Time, error) {
	claims := &appClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(appIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || tok == nil || !tok.Valid || claims.Subject == "" {
		return nil, time.Time{}, ErrInvalidToken
	}
	u := &models.User{
		ID:            claims.Subject,
		Email:         claims.Email,
		Phone:         claims.Phone,
		EmailVerified: claims.EmailVerified,
		PhoneVerified: claims.PhoneVerified,
		Provider:      claims.Provider,
		CreatedAt:     timeOrZero(claims.UserCreatedAt),
		LastSignInAt:  timeOrZero(claims.LastSignInAt),
	}
	return u, claims.ExpiresAt.Time, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
