package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	CreateIfMissing(ctx context.Context, profile *models.Profile) (bool, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error
	UpdateRole(ctx context.Context, id string, role models.Role) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ProfileService reads and maintains user profiles. Profiles missing for an
// authenticated identity are created on first access.
type ProfileService struct {
	repo      profileRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(repo profileRepository, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProfileService{repo: repo, validator: validate, logger: logger}
}

// Get returns the profile of the authenticated user, creating it when missing.
func (s *ProfileService) Get(ctx context.Context, user models.UserInfo) (*models.Profile, error) {
	profile, err := s.repo.FindByID(ctx, user.ID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el perfil")
	}

	s.logger.Info("profile not found, creating", zap.String("user_id", user.ID))
	if _, err := s.Ensure(ctx, user); err != nil {
		return nil, err
	}
	profile, err = s.repo.FindByID(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el perfil")
	}
	return profile, nil
}

// Ensure creates the profile when it does not exist and reports whether it did.
func (s *ProfileService) Ensure(ctx context.Context, user models.UserInfo) (bool, error) {
	if user.ID == "" {
		return false, appErrors.Clone(appErrors.ErrUnauthorized, "Usuario no autenticado")
	}
	name := user.FullName
	if name == "" {
		name = models.DefaultFullName(user.Email)
	}
	now := time.Now().UTC()
	created, err := s.repo.CreateIfMissing(ctx, &models.Profile{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  name,
		Role:      models.RoleStudent,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error creando perfil")
	}
	return created, nil
}

// Update applies the user-editable fields.
func (s *ProfileService) Update(ctx context.Context, userID string, update models.ProfileUpdate) error {
	if err := s.validator.Struct(update); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "El nombre completo es requerido")
	}
	if err := s.repo.UpdateProfile(ctx, userID, update); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Perfil no encontrado")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error actualizando perfil")
	}
	return nil
}

// SetRole changes the role of a user.
func (s *ProfileService) SetRole(ctx context.Context, actorID, userID string, role models.Role) error {
	if !role.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "Rol inválido")
	}
	if err := s.repo.UpdateRole(ctx, userID, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Perfil no encontrado")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error actualizando rol")
	}

	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     actor,
		Action:     models.AuditActionRoleChange,
		Resource:   "profile",
		ResourceID: &userID,
		NewValues:  []byte(`{"role":"` + string(role) + `"}`),
	}); err != nil {
		s.logger.Warn("failed to record role change audit log", zap.Error(err))
	}
	return nil
}
