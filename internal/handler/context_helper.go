package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/middleware"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return claims
}

// requireUser writes a 401 when no session is attached.
func requireUser(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "Usuario no autenticado"))
		return nil, false
	}
	return claims, true
}

// wantsJSON reports whether the caller expects a JSON body rather than a redirect or HTML page.
func wantsJSON(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(c.ContentType(), "application/json")
}

// redirectWithError sends a browser form back to path with the error message in the query string.
func redirectWithError(c *gin.Context, path string, err error) {
	appErr := appErrors.FromError(err)
	c.Redirect(http.StatusSeeOther, path+"?error="+url.QueryEscape(appErr.Message))
	c.Abort()
}
