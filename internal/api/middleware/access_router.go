package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/resumedesk/internal/metrics"
	"github.com/yoockh/resumedesk/internal/models"
)

// Context keys set by AccessRouter on pass-through.
const (
	CtxUserID   = "user_id"
	CtxIdentity = "identity"
	CtxProfile  = "profile"
	CtxRole     = "role"

	ctxCookieWriter = "session_cookie_writer"
)

const (
	PathLanding    = "/"
	PathOnboarding = "/onboarding"
	prefixAuth     = "/auth"
	prefixCand     = "/candidate"
	prefixReviewer = "/reviewer"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, req *http.Request) (*models.User, []*http.Cookie)
}

type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

// Decide returns the redirect target for path, or "" to let the request through.
// A profile whose role is not recognised counts as no profile.
func Decide(path string, hasIdentity bool, profile *models.Profile) string {
	if !hasIdentity {
		if path == PathLanding || strings.HasPrefix(path, prefixAuth) {
			return ""
		}
		return PathLanding
	}

	if profile == nil || !profile.Role.Valid() {
		if path == PathOnboarding {
			return ""
		}
		return PathOnboarding
	}

	candidatePath := strings.HasPrefix(path, prefixCand)
	reviewerPath := strings.HasPrefix(path, prefixReviewer)
	switch {
	case profile.Role == models.RoleCandidate && reviewerPath:
		return models.RoleCandidate.DashboardPath()
	case profile.Role == models.RoleReviewer && candidatePath:
		return models.RoleReviewer.DashboardPath()
	case path == PathLanding || (!candidatePath && !reviewerPath):
		return profile.Role.DashboardPath()
	}
	return ""
}

// AccessRouter resolves identity and profile once per request and either passes
// through or redirects with 307. Requests whose path starts with one of bypass skip it.
func AccessRouter(resolver IdentityResolver, profiles ProfileLookup, bypass []string, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, p := range bypass {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}

		ctx := c.Request.Context()
		user, cookies := resolver.Resolve(ctx, c.Request)

		var profile *models.Profile
		if user != nil {
			p, err := profiles.GetByID(ctx, user.ID)
			if err == nil {
				profile = p
			} else {
				log.WithError(err).WithField("user_id", user.ID).Debug("profile lookup")
			}
		}

		target := Decide(path, user != nil, profile)
		if target != "" {
			metrics.RouterDecisions.WithLabelValues("redirect", target).Inc()
			setCookies(c.Writer.Header(), cookies)
			c.Redirect(http.StatusTemporaryRedirect, target)
			c.Abort()
			return
		}
		metrics.RouterDecisions.WithLabelValues("pass", "").Inc()

		if user != nil {
			c.Set(CtxUserID, user.ID)
			c.Set(CtxIdentity, user)
		}
		if profile != nil {
			c.Set(CtxProfile, profile)
			c.Set(CtxRole, string(profile.Role))
		}

		if len(cookies) == 0 {
			c.Next()
			return
		}
		w := &cookieWriter{ResponseWriter: c.Writer, cookies: cookies}
		c.Writer = w
		c.Set(ctxCookieWriter, w)
		c.Next()
		w.flush()
	}
}

// setCookies adds cookies whose name the response has not set yet.
func setCookies(h http.Header, cookies []*http.Cookie) {
	present := map[string]bool{}
	for _, sc := range h.Values("Set-Cookie") {
		if name, _, ok := strings.Cut(sc, "="); ok {
			present[strings.TrimSpace(name)] = true
		}
	}
	for _, ck := range cookies {
		if !present[ck.Name] {
			h.Add("Set-Cookie", ck.String())
		}
	}
}

// ResponseCookies returns the Set-Cookie headers the response should carry,
// including resolver cookies not yet written. Handlers that answer outside the
// gin writer, like a websocket handshake, pass it along themselves.
func ResponseCookies(c *gin.Context) http.Header {
	h := http.Header{}
	for _, sc := range c.Writer.Header().Values("Set-Cookie") {
		h.Add("Set-Cookie", sc)
	}
	if v, ok := c.Get(ctxCookieWriter); ok {
		if w, ok := v.(*cookieWriter); ok && !w.done {
			w.done = true
			setCookies(h, w.cookies)
		}
	}
	if len(h) == 0 {
		return nil
	}
	return h
}

// cookieWriter defers resolver cookies until the handler commits its headers.
type cookieWriter struct {
	gin.ResponseWriter
	cookies []*http.Cookie
	done    bool
}

func (w *cookieWriter) flush() {
	if w.done || w.ResponseWriter.Written() {
		return
	}
	w.done = true
	setCookies(w.Header(), w.cookies)
}

func (w *cookieWriter) WriteHeaderNow() {
	w.flush()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *cookieWriter) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

func (w *cookieWriter) WriteString(s string) (int, error) {
	w.flush()
	return w.ResponseWriter.WriteString(s)
}
