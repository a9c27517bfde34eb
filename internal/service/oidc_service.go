package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/config"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

type oidcUserRepository interface {
	FindByOIDCSubject(ctx context.Context, subject string) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	LinkOIDCSubject(ctx context.Context, id, subject string) error
	CreateIfMissing(ctx context.Context, profile *models.Profile) (bool, error)
}

type sessionIssuer interface {
	IssueSession(ctx context.Context, profile *models.Profile, meta RequestMeta) (*models.Session, error)
}

// IdentityClaims is the subset of ID token claims used to link accounts.
type IdentityClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

type identityExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*IdentityClaims, error)
}

// OIDCService signs users in through an external OpenID Connect provider and
// links them to local profiles.
type OIDCService struct {
	exchanger identityExchanger
	users     oidcUserRepository
	sessions  sessionIssuer
	logger    *zap.Logger
}

// NewOIDCService discovers the provider. It returns nil when the provider is not configured.
func NewOIDCService(ctx context.Context, cfg config.OIDCConfig, users oidcUserRepository, sessions sessionIssuer, logger *zap.Logger) (*OIDCService, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	provider, err := oidc.NewProvider(ctx, cfg.ProviderURL)
	if err != nil {
		return nil, err
	}
	exchanger := &providerExchanger{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}
	return newOIDCService(exchanger, users, sessions, logger), nil
}

func newOIDCService(exchanger identityExchanger, users oidcUserRepository, sessions sessionIssuer, logger *zap.Logger) *OIDCService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OIDCService{exchanger: exchanger, users: users, sessions: sessions, logger: logger}
}

// Begin returns a random state value and the provider URL to redirect to.
func (s *OIDCService) Begin() (state string, redirectURL string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	state = base64.RawURLEncoding.EncodeToString(buf)
	return state, s.exchanger.AuthCodeURL(state), nil
}

// Complete exchanges the authorization code, links or lazily creates the
// profile and issues a local session.
func (s *OIDCService) Complete(ctx context.Context, code string, meta RequestMeta) (*models.Session, error) {
	identity, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "No se pudo verificar la identidad")
	}
	if identity.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "No se pudo verificar la identidad")
	}

	profile, err := s.users.FindByOIDCSubject(ctx, identity.Subject)
	if err == nil {
		if !profile.IsActive {
			return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
		}
		return s.sessions.IssueSession(ctx, profile, meta)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al iniciar sesión")
	}

	email := normalizeEmail(identity.Email)
	if email == "" || !identity.EmailVerified {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "El proveedor no entregó un email verificado")
	}

	profile, err = s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.users.LinkOIDCSubject(ctx, profile.ID, identity.Subject); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al iniciar sesión")
		}
	case errors.Is(err, sql.ErrNoRows):
		profile, err = s.createProfile(ctx, identity, email)
		if err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al iniciar sesión")
	}

	if !profile.IsActive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}
	return s.sessions.IssueSession(ctx, profile, meta)
}

func (s *OIDCService) createProfile(ctx context.Context, identity *IdentityClaims, email string) (*models.Profile, error) {
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = models.DefaultFullName(email)
	}
	subject := identity.Subject
	now := time.Now().UTC()
	profile := &models.Profile{
		ID:          uuid.NewString(),
		Email:       email,
		FullName:    name,
		Role:        models.RoleStudent,
		OIDCSubject: &subject,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.users.CreateIfMissing(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al crear el perfil")
	}
	s.logger.Info("profile created from identity provider", zap.String("user_id", profile.ID))
	return profile, nil
}

type providerExchanger struct {
	config   oauth2.Config
	verifier *oidc.IDTokenVerifier
}

func (p *providerExchanger) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *providerExchanger) Exchange(ctx context.Context, code string) (*IdentityClaims, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("id_token missing from token response")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	var claims IdentityClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}
	return &claims, nil
}
