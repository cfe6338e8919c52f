package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/resumedesk/internal/api/middleware"
	"github.com/yoockh/resumedesk/internal/auth"
	"github.com/yoockh/resumedesk/internal/services"
	"github.com/yoockh/resumedesk/internal/utils"
)

// SessionCookies builds the session cookie pair. Implemented by *auth.Resolver.
type SessionCookies interface {
	AccessCookie(token string, expires time.Time) *http.Cookie
	RefreshCookie(token string, expires time.Time) *http.Cookie
	ClearCookies() []*http.Cookie
}

type AuthHandler struct {
	svc     services.AuthService
	cookies SessionCookies
}

func NewAuthHandler(svc services.AuthService, cookies SessionCookies) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies}
}

type CreateSessionRequest struct {
	AccessToken string `json:"access_token" binding:"required"`
}

type CreateSessionResponse struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	RedirectTo string    `json:"redirect_to"`
}

// Session exchanges a provider token for the app session cookies.
func (h *AuthHandler) Session(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.Session", "invalid request body", err))
		return
	}

	login, err := h.svc.Exchange(c.Request.Context(), req.AccessToken)
	if err != nil {
		writeError(c, err)
		return
	}

	http.SetCookie(c.Writer, h.cookies.AccessCookie(login.AccessToken, login.AccessExpires))
	http.SetCookie(c.Writer, h.cookies.RefreshCookie(login.RefreshToken, login.RefreshExpires))

	c.JSON(http.StatusOK, CreateSessionResponse{
		UserID:     login.Identity.ID,
		Email:      login.Identity.Email,
		ExpiresAt:  login.AccessExpires,
		RedirectTo: middleware.PathLanding,
	})
}

// Logout always clears the cookies, even when revocation fails.
func (h *AuthHandler) Logout(c *gin.Context) {
	err := h.svc.Logout(c.Request.Context(), auth.AccessToken(c.Request), auth.RefreshToken(c.Request))
	for _, ck := range h.cookies.ClearCookies() {
		http.SetCookie(c.Writer, ck)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
