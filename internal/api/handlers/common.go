package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/resumedesk/internal/api/middleware"
	"github.com/yoockh/resumedesk/internal/models"
	"github.com/yoockh/resumedesk/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if v, ok := c.Get(middleware.CtxUserID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

func requireIdentity(c *gin.Context) (*models.User, bool) {
	if v, ok := c.Get(middleware.CtxIdentity); ok {
		if u, ok := v.(*models.User); ok && u != nil {
			return u, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return nil, false
}

// currentProfile is the profile resolved by the access router, if any.
func currentProfile(c *gin.Context) *models.Profile {
	if v, ok := c.Get(middleware.CtxProfile); ok {
		if p, ok := v.(*models.Profile); ok {
			return p
		}
	}
	return nil
}
