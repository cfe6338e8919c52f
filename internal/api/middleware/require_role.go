package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/resumedesk/internal/models"
	"github.com/yoockh/resumedesk/internal/utils"
)

func RequireRole(allowed ...models.Role) gin.HandlerFunc {
	allow := map[models.Role]struct{}{}
	for _, a := range allowed {
		a = models.Role(strings.TrimSpace(strings.ToUpper(string(a))))
		if a != "" {
			allow[a] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		v, ok := c.Get(CtxRole)
		role, _ := v.(string)
		role = strings.ToUpper(strings.TrimSpace(role))

		if !ok || role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    utils.CodeForbidden,
				"message": "forbidden",
			})
			return
		}

		if _, ok := allow[models.Role(role)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    utils.CodeForbidden,
				"message": "forbidden",
			})
			return
		}

		c.Next()
	}
}

func RequireCandidate() gin.HandlerFunc { return RequireRole(models.RoleCandidate) }
func RequireReviewer() gin.HandlerFunc  { return RequireRole(models.RoleReviewer) }
