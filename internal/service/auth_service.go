package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/repository"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/jobs"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/mailer"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) (bool, error)
	CreatePasswordReset(ctx context.Context, reset *models.PasswordReset) error
	ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type tokenDenyList interface {
	Deny(ctx context.Context, tokenID string, ttl time.Duration) error
	IsDenied(ctx context.Context, tokenID string) (bool, error)
}

// RequestMeta carries client details recorded with sessions and audit logs.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	RefreshWindow      time.Duration
	ResetTokenExpiry   time.Duration
	Issuer             string
	BaseURL            string
}

// SessionState is the result of resolving request credentials. Refreshed is set
// when the credential pair was rotated and the caller must persist it.
type SessionState struct {
	Claims    *models.JWTClaims
	Refreshed *models.Session
}

// AuthService is the session store: it signs users in and out, rotates
// refresh tokens and validates access tokens.
type AuthService struct {
	repo      authUserRepository
	denyList  tokenDenyList
	jobs      jobEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, denyList tokenDenyList, queue jobEnqueuer, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = time.Hour
	}
	if config.RefreshTokenExpiry <= 0 {
		config.RefreshTokenExpiry = 7 * 24 * time.Hour
	}
	if config.ResetTokenExpiry <= 0 {
		config.ResetTokenExpiry = time.Hour
	}
	return &AuthService{
		repo:      repo,
		denyList:  denyList,
		jobs:      queue,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Configured reports whether a signing secret is available.
func (s *AuthService) Configured() bool {
	return s != nil && s.config.AccessTokenSecret != ""
}

// SignIn authenticates a user with email and password.
func (s *AuthService) SignIn(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Email y contraseña son requeridos")
	}

	user, err := s.repo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al iniciar sesión")
	}

	if !user.IsActive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}
	if user.PasswordHash == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	session, _, err := s.issue(ctx, user, RequestMeta{IP: req.IP, UserAgent: req.UserAgent})
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.audit(ctx, user.ID, models.AuditActionLogin, `{"status":"success"}`, RequestMeta{IP: req.IP, UserAgent: req.UserAgent})

	return session, nil
}

// SignUp creates a student account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, req models.RegisterRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Email válido y contraseña de al menos 6 caracteres son requeridos")
	}

	profile, err := s.createAccount(ctx, req.Email, req.Password, req.FullName, models.RoleStudent)
	if err != nil {
		return nil, err
	}

	meta := RequestMeta{IP: req.IP, UserAgent: req.UserAgent}
	s.audit(ctx, profile.ID, models.AuditActionRegister, `{"role":"student"}`, meta)

	session, _, err := s.issue(ctx, profile, meta)
	return session, err
}

// RegisterAdmin creates an admin or super admin account. Only super admins may call it.
func (s *AuthService) RegisterAdmin(ctx context.Context, actor models.UserInfo, req models.AdminRegisterRequest, meta RequestMeta) (*models.UserInfo, error) {
	if actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Solo un super administrador puede registrar administradores")
	}
	info, err := s.CreateStaffAccount(ctx, req)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor.ID, models.AuditActionAdminRegister, fmt.Sprintf(`{"user_id":%q,"role":%q}`, info.ID, info.Role), meta)
	return info, nil
}

// CreateStaffAccount creates an admin or super admin account without an acting
// user. The operator CLI uses it to bootstrap the first super admin.
func (s *AuthService) CreateStaffAccount(ctx context.Context, req models.AdminRegisterRequest) (*models.UserInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Datos de registro inválidos")
	}
	profile, err := s.createAccount(ctx, req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		return nil, err
	}
	info := userInfo(profile)
	return &info, nil
}

// Authenticate validates an access token and checks the revocation list.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.JWTClaims, error) {
	claims, err := s.ValidateToken(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.ID != "" && s.denyList != nil {
		denied, err := s.denyList.IsDenied(ctx, claims.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, appErrors.ErrUnauthorized.Message)
		}
		if denied {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Sesión finalizada")
		}
	}
	return claims, nil
}

// ResolveSession turns the cookie pair into a session, rotating the pair when
// the access token is missing, expired or inside the refresh window.
func (s *AuthService) ResolveSession(ctx context.Context, accessToken, refreshToken string, meta RequestMeta) (*SessionState, error) {
	var claims *models.JWTClaims
	if accessToken != "" {
		if c, err := s.Authenticate(ctx, accessToken); err == nil {
			claims = c
		}
	}

	if claims != nil && !s.nearExpiry(claims) {
		return &SessionState{Claims: claims}, nil
	}
	if refreshToken == "" {
		if claims != nil {
			return &SessionState{Claims: claims}, nil
		}
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	session, newClaims, err := s.rotate(ctx, refreshToken, meta)
	if err != nil {
		if claims != nil {
			s.logger.Debug("refresh inside window failed, keeping current session", zap.Error(err))
			return &SessionState{Claims: claims}, nil
		}
		return nil, err
	}
	return &SessionState{Claims: newClaims, Refreshed: session}, nil
}

// Refresh exchanges a refresh token for a new credential pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*models.Session, error) {
	session, _, err := s.rotate(ctx, refreshToken, meta)
	return session, err
}

// SignOut revokes the refresh token and deny-lists the access token until it expires.
func (s *AuthService) SignOut(ctx context.Context, accessToken, refreshToken string, meta RequestMeta) error {
	var userID string
	if accessToken != "" {
		if claims, err := s.ValidateToken(accessToken); err == nil {
			userID = claims.UserID
			if claims.ExpiresAt != nil && claims.ID != "" && s.denyList != nil {
				if err := s.denyList.Deny(ctx, claims.ID, claims.ExpiresAt.Sub(s.now())); err != nil {
					s.logger.Warn("failed to deny-list access token", zap.Error(err))
				}
			}
		}
	}

	if refreshToken != "" {
		stored, err := s.repo.FindRefreshToken(ctx, hashToken(refreshToken))
		switch {
		case err == nil:
			if userID == "" {
				userID = stored.UserID
			}
			if _, err := s.repo.RevokeRefreshToken(ctx, stored.ID, s.now()); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cerrar sesión")
			}
		case !errors.Is(err, sql.ErrNoRows):
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cerrar sesión")
		}
	}

	if userID != "" {
		s.audit(ctx, userID, models.AuditActionLogout, `{"status":"logout"}`, meta)
	}
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, appErrors.ErrUnauthorized.Message)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	return claims, nil
}

// ForgotPassword issues a single-use reset link and mails it. Unknown emails
// succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Ingresa un email válido")
	}

	user, err := s.repo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al enviar el email de recuperación")
	}

	raw, err := randomToken()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al enviar el email de recuperación")
	}
	now := s.now()
	if err := s.repo.CreatePasswordReset(ctx, &models.PasswordReset{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: now.Add(s.config.ResetTokenExpiry),
		CreatedAt: now,
	}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al enviar el email de recuperación")
	}

	link := strings.TrimRight(s.config.BaseURL, "/") + "/reset-password?token=" + url.QueryEscape(raw)
	msg := mailer.Message{
		To:      user.Email,
		ToName:  user.DisplayName(),
		Subject: "Recupera tu contraseña",
		Text:    "Hola " + user.DisplayName() + ",\n\nPara crear una nueva contraseña visita:\n" + link + "\n\nSi no solicitaste este cambio ignora este mensaje.",
	}
	if s.jobs == nil {
		s.logger.Warn("no job queue configured, reset email dropped", zap.String("user_id", user.ID))
		return nil
	}
	if err := s.jobs.TryEnqueue(jobs.Job{Type: JobSendMail, Payload: msg}); err != nil {
		s.logger.Error("failed to enqueue reset email", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password. All sessions of
// the user are revoked.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ConfirmResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "La contraseña debe tener al menos 6 caracteres")
	}

	reset, err := s.repo.ConsumePasswordReset(ctx, hashToken(req.Token), s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "El enlace de recuperación es inválido o ha expirado")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al actualizar la contraseña")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al actualizar la contraseña")
	}
	if err := s.repo.UpdatePassword(ctx, reset.UserID, string(hash), s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al actualizar la contraseña")
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, reset.UserID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password reset", zap.Error(err))
	}
	s.audit(ctx, reset.UserID, models.AuditActionPasswordReset, `{"status":"reset"}`, RequestMeta{})
	return nil
}

// IssueSession signs a fresh credential pair for an already authenticated profile.
func (s *AuthService) IssueSession(ctx context.Context, profile *models.Profile, meta RequestMeta) (*models.Session, error) {
	session, _, err := s.issue(ctx, profile, meta)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLastLogin(ctx, profile.ID, s.now()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.audit(ctx, profile.ID, models.AuditActionLogin, `{"status":"success"}`, meta)
	return session, nil
}

func (s *AuthService) createAccount(ctx context.Context, email, password, fullName string, role models.Role) (*models.Profile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al crear la cuenta")
	}
	hashed := string(hash)
	email = normalizeEmail(email)
	name := strings.TrimSpace(fullName)
	if name == "" {
		name = models.DefaultFullName(email)
	}
	now := s.now()
	profile := &models.Profile{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     name,
		Role:         role,
		PasswordHash: &hashed,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Ya existe una cuenta con este email")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al crear la cuenta")
	}
	return profile, nil
}

func (s *AuthService) rotate(ctx context.Context, refreshToken string, meta RequestMeta) (*models.Session, *models.JWTClaims, error) {
	stored, err := s.repo.FindRefreshToken(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}

	now := s.now()
	if stored.Revoked {
		s.logger.Warn("revoked refresh token presented", zap.String("user_id", stored.UserID))
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if now.After(stored.ExpiresAt) {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	user, err := s.repo.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
	if !user.IsActive {
		return nil, nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	revoked, err := s.repo.RevokeRefreshToken(ctx, stored.ID, now)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
	if !revoked {
		// Another request rotated this token first.
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	return s.issue(ctx, user, meta)
}

func (s *AuthService) issue(ctx context.Context, user *models.Profile, meta RequestMeta) (*models.Session, *models.JWTClaims, error) {
	accessToken, claims, err := s.generateAccessToken(user)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al crear la sesión")
	}

	refreshValue, err := randomToken()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al crear la sesión")
	}

	now := s.now()
	refresh := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashToken(refreshValue),
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		CreatedAt: now,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := s.repo.CreateRefreshToken(ctx, refresh); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al crear la sesión")
	}

	return &models.Session{
		AccessToken:      accessToken,
		RefreshToken:     refreshValue,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		RefreshExpiresAt: refresh.ExpiresAt,
		User:             userInfo(user),
	}, claims, nil
}

func (s *AuthService) generateAccessToken(user *models.Profile) (string, *models.JWTClaims, error) {
	if s.config.AccessTokenSecret == "" {
		return "", nil, errors.New("access token secret not configured")
	}
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.DisplayName(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

func (s *AuthService) nearExpiry(claims *models.JWTClaims) bool {
	if claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Sub(s.now()) <= s.config.RefreshWindow
}

func (s *AuthService) audit(ctx context.Context, userID, action, values string, meta RequestMeta) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "auth",
		ResourceID: &userID,
		NewValues:  []byte(values),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func userInfo(p *models.Profile) models.UserInfo {
	return models.UserInfo{ID: p.ID, Email: p.Email, FullName: p.DisplayName(), Role: p.Role}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
