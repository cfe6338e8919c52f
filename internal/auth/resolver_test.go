package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/resumedesk/internal/models"
)

type fakeSessions struct {
	sessions map[string]*models.Session
	err      error
}

func (f *fakeSessions) Validate(_ context.Context, refresh string) (*models.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[refresh]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

type fakeRevocations struct {
	tokens map[string]bool
	err    error
}

func (f *fakeRevocations) Contains(_ context.Context, token string) (bool, error) {
	return f.tokens[token], f.err
}

func newTestResolver(sessions *fakeSessions, revoked *fakeRevocations) (*Resolver, *TokenIssuer) {
	tokens := NewTokenIssuer(testSecret, 15*time.Minute)
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return NewResolver(tokens, sessions, revoked, false, logrus.NewEntry(l)), tokens
}

func TestResolver_AccessCookie(t *testing.T) {
	r, tokens := newTestResolver(&fakeSessions{}, &fakeRevocations{})
	raw, _, err := tokens.Mint(models.User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/candidate/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: raw})

	u, cookies := r.Resolve(context.Background(), req)
	require.NotNil(t, u)
	require.Equal(t, "u1", u.ID)
	require.Empty(t, cookies)
}

func TestResolver_BearerHeader(t *testing.T) {
	r, tokens := newTestResolver(&fakeSessions{}, &fakeRevocations{})
	raw, _, err := tokens.Mint(models.User{ID: "u2"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/reviewer/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+raw)

	u, _ := r.Resolve(context.Background(), req)
	require.NotNil(t, u)
	require.Equal(t, "u2", u.ID)
}

func TestResolver_RefreshMintsAccessCookie(t *testing.T) {
	sess := &models.Session{
		RefreshToken: "refresh-1",
		Sub:          "u3",
		Identity:     models.User{ID: "u3", Email: "c@example.com"},
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	r, tokens := newTestResolver(&fakeSessions{sessions: map[string]*models.Session{"refresh-1": sess}}, &fakeRevocations{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "expired-or-garbage"})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "refresh-1"})

	u, cookies := r.Resolve(context.Background(), req)
	require.NotNil(t, u)
	require.Equal(t, "u3", u.ID)
	require.Len(t, cookies, 1)
	require.Equal(t, AccessCookie, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	minted, _, err := tokens.Parse(cookies[0].Value)
	require.NoError(t, err)
	require.Equal(t, "c@example.com", minted.Email)
}

func TestResolver_RevokedTokenFallsBackToRefresh(t *testing.T) {
	r, tokens := newTestResolver(&fakeSessions{}, nil)
	raw, _, err := tokens.Mint(models.User{ID: "u4"})
	require.NoError(t, err)
	r.revoked = &fakeRevocations{tokens: map[string]bool{raw: true}}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: raw})

	u, cookies := r.Resolve(context.Background(), req)
	require.Nil(t, u)
	require.Empty(t, cookies)
}

func TestResolver_LookupErrorsAreAbsent(t *testing.T) {
	r, tokens := newTestResolver(&fakeSessions{err: errors.New("redis down")}, &fakeRevocations{err: errors.New("redis down")})
	raw, _, err := tokens.Mint(models.User{ID: "u5"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: raw})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "refresh-x"})

	u, cookies := r.Resolve(context.Background(), req)
	require.Nil(t, u)
	require.Empty(t, cookies)
}

func TestResolver_NoSession(t *testing.T) {
	r, _ := newTestResolver(&fakeSessions{}, &fakeRevocations{})
	u, cookies := r.Resolve(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Nil(t, u)
	require.Empty(t, cookies)
}

func TestResolver_ClearCookies(t *testing.T) {
	r, _ := newTestResolver(&fakeSessions{}, &fakeRevocations{})
	cookies := r.ClearCookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		require.Equal(t, -1, c.MaxAge)
		require.Empty(t, c.Value)
	}
}
