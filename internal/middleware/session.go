package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/service"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/config"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

type sessionResolver interface {
	Configured() bool
	ResolveSession(ctx context.Context, accessToken, refreshToken string, meta service.RequestMeta) (*service.SessionState, error)
}

// CookieConfig names and scopes the session cookies.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	Domain      string
	Secure      bool
}

// NewCookieConfig derives cookie settings from configuration.
func NewCookieConfig(cfg config.SessionConfig) CookieConfig {
	c := CookieConfig{
		AccessName:  cfg.AccessCookie,
		RefreshName: cfg.RefreshCookie,
		Domain:      cfg.CookieDomain,
		Secure:      cfg.SecureCookies,
	}
	if c.AccessName == "" {
		c.AccessName = "tm_access_token"
	}
	if c.RefreshName == "" {
		c.RefreshName = "tm_refresh_token"
	}
	return c
}

// SetSessionCookies persists a credential pair as HTTP-only cookies.
func SetSessionCookies(c *gin.Context, cfg CookieConfig, session *models.Session) {
	if session == nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.AccessName, session.AccessToken, cookieMaxAge(session.AccessExpiresAt), "/", cfg.Domain, cfg.Secure, true)
	c.SetCookie(cfg.RefreshName, session.RefreshToken, cookieMaxAge(session.RefreshExpiresAt), "/", cfg.Domain, cfg.Secure, true)
}

func cookieMaxAge(expires time.Time) int {
	secs := int(time.Until(expires).Seconds())
	if secs < 1 {
		return -1
	}
	return secs
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.AccessName, "", -1, "/", cfg.Domain, cfg.Secure, true)
	c.SetCookie(cfg.RefreshName, "", -1, "/", cfg.Domain, cfg.Secure, true)
}

// SessionTokens reads the credential pair. A Bearer header takes precedence
// over the access cookie.
func SessionTokens(c *gin.Context, cfg CookieConfig) (access, refresh string) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			access = strings.TrimSpace(parts[1])
		}
	}
	if access == "" {
		access, _ = c.Cookie(cfg.AccessName)
	}
	refresh, _ = c.Cookie(cfg.RefreshName)
	return access, refresh
}

// RequestMetaFrom captures the caller's address and user agent.
func RequestMetaFrom(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// CurrentUser returns the claims attached by Session, OptionalSession or Gate.
func CurrentUser(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok && claims != nil
}

// Session protects API routes by requiring a valid session.
func Session(resolver sessionResolver, cfg CookieConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if resolveSession(c, resolver, cfg, logger) == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// OptionalSession attaches claims when a session is present but does not block.
func OptionalSession(resolver sessionResolver, cfg CookieConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		resolveSession(c, resolver, cfg, logger)
		c.Next()
	}
}

// resolveSession attaches claims to the context and writes rotated cookies.
// Resolution errors count as no session.
func resolveSession(c *gin.Context, resolver sessionResolver, cfg CookieConfig, logger *zap.Logger) *models.JWTClaims {
	if claims, ok := CurrentUser(c); ok {
		return claims
	}
	if resolver == nil || !resolver.Configured() {
		return nil
	}
	access, refresh := SessionTokens(c, cfg)
	if access == "" && refresh == "" {
		return nil
	}
	state, err := resolver.ResolveSession(c.Request.Context(), access, refresh, RequestMetaFrom(c))
	if err != nil {
		logger.Debug("session not resolved", zap.String("path", c.Request.URL.Path), zap.Error(err))
		if refresh != "" {
			ClearSessionCookies(c, cfg)
		}
		return nil
	}
	if state.Refreshed != nil {
		SetSessionCookies(c, cfg, state.Refreshed)
	}
	c.Set(ContextUserKey, state.Claims)
	return state.Claims
}
