package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/middleware"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/service"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/response"
)

const oidcStateCookie = "tm_oidc_state"

type authService interface {
	SignIn(ctx context.Context, req models.LoginRequest) (*models.Session, error)
	SignUp(ctx context.Context, req models.RegisterRequest) (*models.Session, error)
	SignOut(ctx context.Context, accessToken, refreshToken string, meta service.RequestMeta) error
	ForgotPassword(ctx context.Context, req models.ResetPasswordRequest) error
	ResetPassword(ctx context.Context, req models.ConfirmResetPasswordRequest) error
	RegisterAdmin(ctx context.Context, actor models.UserInfo, req models.AdminRegisterRequest, meta service.RequestMeta) (*models.UserInfo, error)
}

type oidcFlow interface {
	Begin() (state string, redirectURL string, err error)
	Complete(ctx context.Context, code string, meta service.RequestMeta) (*models.Session, error)
}

type profileEnsurer interface {
	Ensure(ctx context.Context, user models.UserInfo) (bool, error)
}

// AuthHandler wires HTTP endpoints to the session store.
type AuthHandler struct {
	auth     authService
	oidc     oidcFlow
	profiles profileEnsurer
	cookies  middleware.CookieConfig
	logger   *zap.Logger
}

// NewAuthHandler creates a new handler. oidc may be nil when no provider is configured.
func NewAuthHandler(auth authService, oidc oidcFlow, profiles profileEnsurer, cookies middleware.CookieConfig, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, oidc: oidc, profiles: profiles, cookies: cookies, logger: logger}
}

// SignIn godoc
// @Summary Sign in with email and password
// @Tags Authentication
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/auth/signin [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.fail(c, LoginPagePath, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Email y contraseña son requeridos"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	session, err := h.auth.SignIn(c.Request.Context(), req)
	if err != nil {
		h.fail(c, LoginPagePath, err)
		return
	}
	h.startSession(c, session)
}

// SignUp godoc
// @Summary Register a student account
// @Tags Authentication
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param payload body models.RegisterRequest true "Registration"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		h.fail(c, RegisterPagePath, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Datos de registro inválidos"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	session, err := h.auth.SignUp(c.Request.Context(), req)
	if err != nil {
		h.fail(c, RegisterPagePath, err)
		return
	}
	middleware.SetSessionCookies(c, h.cookies, session)
	if wantsJSON(c) {
		response.Created(c, "user", session.User)
		return
	}
	c.Redirect(http.StatusSeeOther, middleware.StudentHomePath)
}

// SignOut godoc
// @Summary Sign out
// @Description Revokes the session and redirects to the login page
// @Tags Authentication
// @Success 303
// @Failure 500 {object} map[string]string
// @Router /api/auth/signout [post]
func (h *AuthHandler) SignOut(c *gin.Context) {
	access, refresh := middleware.SessionTokens(c, h.cookies)
	if err := h.auth.SignOut(c.Request.Context(), access, refresh, middleware.RequestMetaFrom(c)); err != nil {
		h.logger.Error("sign out failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	middleware.ClearSessionCookies(c, h.cookies)
	c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// ForgotPassword godoc
// @Summary Request a password reset link
// @Tags Authentication
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param payload body models.ResetPasswordRequest true "Email"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		h.fail(c, ForgotPasswordPagePath, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Ingresa un email válido"))
		return
	}
	if err := h.auth.ForgotPassword(c.Request.Context(), req); err != nil {
		h.fail(c, ForgotPasswordPagePath, err)
		return
	}
	if wantsJSON(c) {
		response.JSON(c, http.StatusAccepted, gin.H{"message": "Si el email existe, recibirás un enlace para restablecer tu contraseña"})
		return
	}
	c.Redirect(http.StatusSeeOther, ForgotPasswordPagePath+"?sent=true")
}

// ResetPassword godoc
// @Summary Complete a password reset
// @Tags Authentication
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param payload body models.ConfirmResetPasswordRequest true "Token and new password"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ConfirmResetPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		h.fail(c, ResetPasswordPagePath, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Datos inválidos"))
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req); err != nil {
		h.fail(c, ResetPasswordPagePath, err)
		return
	}
	if wantsJSON(c) {
		response.JSON(c, http.StatusOK, gin.H{"message": "Contraseña actualizada"})
		return
	}
	c.Redirect(http.StatusSeeOther, middleware.LoginPath+"?reset=true")
}

// OIDCLogin redirects to the external identity provider.
func (h *AuthHandler) OIDCLogin(c *gin.Context) {
	if h.oidc == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "Proveedor de identidad no configurado"))
		return
	}
	state, redirectURL, err := h.oidc.Begin()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "No se pudo iniciar sesión con el proveedor"))
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oidcStateCookie, state, int((10 * time.Minute).Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
	c.Redirect(http.StatusFound, redirectURL)
}

// OIDCCallback completes the provider sign-in and lands on the student home.
func (h *AuthHandler) OIDCCallback(c *gin.Context) {
	if h.oidc == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "Proveedor de identidad no configurado"))
		return
	}
	expected, _ := c.Cookie(oidcStateCookie)
	c.SetCookie(oidcStateCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	if expected == "" || c.Query("state") != expected {
		redirectWithError(c, middleware.LoginPath, appErrors.Clone(appErrors.ErrUnauthorized, "Estado de autenticación inválido"))
		return
	}
	code := c.Query("code")
	if code == "" {
		redirectWithError(c, middleware.LoginPath, appErrors.Clone(appErrors.ErrValidation, "Código de autorización faltante"))
		return
	}

	session, err := h.oidc.Complete(c.Request.Context(), code, middleware.RequestMetaFrom(c))
	if err != nil {
		h.logger.Warn("oidc callback failed", zap.Error(err))
		redirectWithError(c, middleware.LoginPath, err)
		return
	}
	middleware.SetSessionCookies(c, h.cookies, session)
	c.Redirect(http.StatusSeeOther, middleware.StudentHomePath)
}

// SetupProfile godoc
// @Summary Create the caller's profile when missing
// @Tags Authentication
// @Produce json
// @Success 200 {object} map[string]string
// @Success 201 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/auth/setup-profile [post]
// @Router /api/auth/create-profile [post]
func (h *AuthHandler) SetupProfile(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	created, err := h.profiles.Ensure(c.Request.Context(), claims.Info())
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		c.JSON(http.StatusCreated, gin.H{"message": "Perfil creado exitosamente"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Perfil ya existe"})
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	response.OK(c, "user", claims.Info())
}

// RegisterAdmin godoc
// @Summary Register an admin account
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.AdminRegisterRequest true "Admin account"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/admin/register [post]
func (h *AuthHandler) RegisterAdmin(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.AdminRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Email, password y nombre completo son requeridos"))
		return
	}
	if req.Role == "" {
		req.Role = models.RoleAdmin
	}
	user, err := h.auth.RegisterAdmin(c.Request.Context(), claims.Info(), req, middleware.RequestMetaFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "user", user)
}

func (h *AuthHandler) startSession(c *gin.Context, session *models.Session) {
	middleware.SetSessionCookies(c, h.cookies, session)
	if wantsJSON(c) {
		response.OK(c, "user", session.User)
		return
	}
	target := middleware.StudentHomePath
	if session.User.Role.IsAdmin() {
		target = AdminHomePath
	}
	c.Redirect(http.StatusSeeOther, target)
}

// fail answers JSON clients with the error envelope and sends browser forms back to page.
func (h *AuthHandler) fail(c *gin.Context, page string, err error) {
	if wantsJSON(c) {
		response.Error(c, err)
		return
	}
	redirectWithError(c, page, err)
}
