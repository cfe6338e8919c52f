package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/resumedesk/internal/models"
	"github.com/yoockh/resumedesk/internal/services"
	"github.com/yoockh/resumedesk/internal/utils"
)

type ProfileHandler struct {
	svc services.ProfileService
}

func NewProfileHandler(svc services.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

// AccountView is the profile page model: the profile plus the account details
// carried by the identity.
type AccountView struct {
	ID            string      `json:"id"`
	FullName      *string     `json:"full_name"`
	Role          models.Role `json:"role"`
	Email         string      `json:"email"`
	Phone         string      `json:"phone,omitempty"`
	EmailVerified bool        `json:"email_verified"`
	PhoneVerified bool        `json:"phone_verified"`
	LoginMethod   string      `json:"login_method"`
	CreatedAt     *time.Time  `json:"created_at,omitempty"`
	LastSignInAt  *time.Time  `json:"last_sign_in_at,omitempty"`
	Dashboard     string      `json:"dashboard"`
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func loginMethod(provider string) string {
	if provider == "" {
		provider = "email"
	}
	return strings.ToUpper(provider[:1]) + provider[1:]
}

func accountView(u *models.User, p *models.Profile) AccountView {
	created := u.CreatedAt
	if created.IsZero() {
		created = p.CreatedAt
	}
	return AccountView{
		ID:            p.ID,
		FullName:      p.FullName,
		Role:          p.Role,
		Email:         u.Email,
		Phone:         u.Phone,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		LoginMethod:   loginMethod(u.Provider),
		CreatedAt:     timeOrNil(created),
		LastSignInAt:  timeOrNil(u.LastSignInAt),
		Dashboard:     p.Role.DashboardPath(),
	}
}

type OnboardingView struct {
	UserID string            `json:"user_id"`
	Email  string            `json:"email,omitempty"`
	Roles  []models.Role     `json:"roles"`
	Form   OnboardingRequest `json:"form"`
}

func (h *ProfileHandler) Onboarding(c *gin.Context) {
	u, ok := requireIdentity(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, OnboardingView{
		UserID: u.ID,
		Email:  u.Email,
		Roles:  []models.Role{models.RoleCandidate, models.RoleReviewer},
		Form:   OnboardingRequest{Role: models.RoleCandidate},
	})
}

type OnboardingRequest struct {
	FullName string      `json:"full_name"`
	Role     models.Role `json:"role"`
}

type OnboardingResponse struct {
	Profile    *models.Profile `json:"profile"`
	RedirectTo string          `json:"redirect_to"`
}

func (h *ProfileHandler) Onboard(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ProfileHandler.Onboard", "invalid request body", err))
		return
	}

	p, err := h.svc.Onboard(c.Request.Context(), userID, req.FullName, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, OnboardingResponse{Profile: p, RedirectTo: p.Role.DashboardPath()})
}

func (h *ProfileHandler) Me(c *gin.Context) {
	u, ok := requireIdentity(c)
	if !ok {
		return
	}

	p := currentProfile(c)
	if p == nil {
		var err error
		if p, err = h.svc.GetByID(c.Request.Context(), u.ID); err != nil {
			writeError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, accountView(u, p))
}

type UpdateProfileRequest struct {
	FullName *string `json:"full_name"`
}

// Update changes full_name only; role is fixed at onboarding.
func (h *ProfileHandler) Update(c *gin.Context) {
	u, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ProfileHandler.Update", "invalid request body", err))
		return
	}
	if req.FullName == nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ProfileHandler.Update", "full_name is required", nil))
		return
	}

	p, err := h.svc.UpdateFullName(c.Request.Context(), u.ID, *req.FullName)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, accountView(u, p))
}
