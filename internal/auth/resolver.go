package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/resumedesk/internal/models"
)

const (
	AccessCookie  = "sb-access-token"
	RefreshCookie = "sb-refresh-token"
)

// SessionValidator looks up a live refresh session.
type SessionValidator interface {
	Validate(ctx context.Context, refresh string) (*models.Session, error)
}

// Revocations reports access tokens revoked by logout.
type Revocations interface {
	Contains(ctx context.Context, token string) (bool, error)
}

// Resolver turns the ambient session of a request into an identity.
type Resolver struct {
	tokens   *TokenIssuer
	sessions SessionValidator
	revoked  Revocations
	secure   bool
	log      *logrus.Entry
}

func NewResolver(tokens *TokenIssuer, sessions SessionValidator, revoked Revocations, secureCookies bool, log *logrus.Entry) *Resolver {
	return &Resolver{tokens: tokens, sessions: sessions, revoked: revoked, secure: secureCookies, log: log}
}

// AccessToken returns the bearer token, or the access cookie when there is no header.
func AccessToken(req *http.Request) string {
	if h := req.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := req.Cookie(AccessCookie); err == nil {
		return c.Value
	}
	return ""
}

// RefreshToken returns the refresh cookie value.
func RefreshToken(req *http.Request) string {
	if c, err := req.Cookie(RefreshCookie); err == nil {
		return c.Value
	}
	return ""
}

// Resolve returns the identity for req, or nil when there is none. A refreshed access
// cookie is returned when the identity came from the refresh session; the caller must
// write it to the response. Lookup failures resolve to no identity.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*models.User, []*http.Cookie) {
	if raw := AccessToken(req); raw != "" {
		if u, ok := r.fromAccessToken(ctx, raw); ok {
			return u, nil
		}
	}

	refresh := RefreshToken(req)
	if refresh == "" || r.sessions == nil {
		return nil, nil
	}
	sess, err := r.sessions.Validate(ctx, refresh)
	if err != nil || sess == nil {
		return nil, nil
	}

	identity := sess.Identity
	tok, exp, err := r.tokens.Mint(identity)
	if err != nil {
		r.log.WithError(err).Error("mint access token")
		return &identity, nil
	}
	return &identity, []*http.Cookie{r.AccessCookie(tok, exp)}
}

func (r *Resolver) fromAccessToken(ctx context.Context, raw string) (*models.User, bool) {
	u, _, err := r.tokens.Parse(raw)
	if err != nil {
		return nil, false
	}
	if r.revoked == nil {
		return u, true
	}
	revoked, err := r.revoked.Contains(ctx, raw)
	if err != nil {
		r.log.WithError(err).Warn("check token blacklist")
		return nil, false
	}
	return u, !revoked
}

func (r *Resolver) cookie(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	}
	if expires.IsZero() {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.MaxAge = int(time.Until(expires).Seconds())
	}
	return c
}

func (r *Resolver) AccessCookie(token string, expires time.Time) *http.Cookie {
	return r.cookie(AccessCookie, token, expires)
}

func (r *Resolver) RefreshCookie(token string, expires time.Time) *http.Cookie {
	return r.cookie(RefreshCookie, token, expires)
}

// ClearCookies expires both session cookies.
func (r *Resolver) ClearCookies() []*http.Cookie {
	return []*http.Cookie{
		r.cookie(AccessCookie, "", time.Time{}),
		r.cookie(RefreshCookie, "", time.Time{}),
	}
}
