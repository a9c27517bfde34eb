package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
)

// Gate redirect targets.
const (
	LoginPath       = "/login"
	StudentHomePath = "/student"
)

// Decision is the outcome of the page access gate.
type Decision int

const (
	Allow Decision = iota
	RedirectToLogin
	RedirectToStudentHome
)

var (
	adminPrefixes     = []string{"/admin"}
	protectedPrefixes = []string{"/dashboard", "/student", "/subscription", "/courses", "/profile"}
	authEntryPrefixes = []string{"/login", "/register", "/forgot-password"}
)

type roleLookup interface {
	RoleOf(ctx context.Context, id string) (models.Role, error)
}

// Decide maps a page path and the caller's session onto an access decision.
// role is only consulted for admin paths; an empty role denies admin access.
func Decide(path string, hasSession bool, role models.Role) Decision {
	switch {
	case hasPrefix(path, adminPrefixes):
		if !hasSession {
			return RedirectToLogin
		}
		if !role.IsAdmin() {
			return RedirectToStudentHome
		}
		return Allow
	case hasPrefix(path, protectedPrefixes):
		if !hasSession {
			return RedirectToLogin
		}
		return Allow
	case hasPrefix(path, authEntryPrefixes):
		if hasSession {
			return RedirectToStudentHome
		}
		return Allow
	}
	return Allow
}

// Gate guards page routes: it resolves the session from cookies, refreshes it
// when close to expiry and redirects according to Decide. Admin paths look the
// role up from the profile store rather than trusting the token.
func Gate(resolver sessionResolver, roles roleLookup, cfg CookieConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	var warnOnce sync.Once
	return func(c *gin.Context) {
		if resolver == nil || !resolver.Configured() {
			warnOnce.Do(func() {
				logger.Warn("session secret not configured, page access gate disabled")
			})
			c.Next()
			return
		}

		path := c.Request.URL.Path
		claims := resolveSession(c, resolver, cfg, logger)

		var role models.Role
		if claims != nil && hasPrefix(path, adminPrefixes) {
			role = lookupRole(c, roles, claims, logger)
		}

		switch Decide(path, claims != nil, role) {
		case RedirectToLogin:
			c.Redirect(http.StatusTemporaryRedirect, LoginPath)
			c.Abort()
		case RedirectToStudentHome:
			c.Redirect(http.StatusTemporaryRedirect, StudentHomePath)
			c.Abort()
		default:
			c.Next()
		}
	}
}

func lookupRole(c *gin.Context, roles roleLookup, claims *models.JWTClaims, logger *zap.Logger) models.Role {
	if roles == nil {
		return claims.Role
	}
	role, err := roles.RoleOf(c.Request.Context(), claims.UserID)
	if err != nil {
		logger.Warn("role lookup failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return ""
	}
	return role
}

// hasPrefix matches whole path segments, so /courses matches /courses/x but not /coursesx.
func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
