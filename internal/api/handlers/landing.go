package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/resumedesk/internal/utils"
)

// Landing is the public entry page. Signed-in users never reach it; the access router
// sends them to onboarding or their dashboard.
func Landing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app":     "resumedesk",
		"sign_in": "/auth/session",
	})
}

func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, APIError{Code: utils.CodeNotFound, Message: "route not found"})
}
