package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/response"
)

// RequireAdmin allows admins and super admins.
func RequireAdmin() gin.HandlerFunc {
	return RequireAdminWithMessage("")
}

// RequireAdminWithMessage is RequireAdmin with a custom denial message.
func RequireAdminWithMessage(message string) gin.HandlerFunc {
	return rbac(message, func(r models.Role) bool { return r.IsAdmin() })
}

// RequireRoles allows only the listed roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return rbac("", func(r models.Role) bool {
		_, ok := allowed[r]
		return ok
	})
}

func rbac(message string, permit func(models.Role) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if !permit(claims.Role) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, message))
			return
		}
		c.Next()
	}
}
