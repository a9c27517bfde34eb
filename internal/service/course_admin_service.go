package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/repository"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/jobs"
)

type courseWriter interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type categoryChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type moduleCreator interface {
	Create(ctx context.Context, module *models.Module) error
}

type videoRemover interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Video, error)
	Delete(ctx context.Context, id string) (string, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// DeleteFilePayload identifies a stored video file to remove.
type DeleteFilePayload struct {
	PublicURL string
}

// CourseAdminRepositories groups write dependencies of course administration.
type CourseAdminRepositories struct {
	Courses    courseWriter
	Categories categoryChecker
	Modules    moduleCreator
	Videos     videoRemover
	Audit      auditWriter
}

// CourseAdminService implements admin course, module and video management.
type CourseAdminService struct {
	repos     CourseAdminRepositories
	jobs      jobEnqueuer
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseAdminService constructs a CourseAdminService.
func NewCourseAdminService(repos CourseAdminRepositories, queue jobEnqueuer, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseAdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseAdminService{repos: repos, jobs: queue, cache: cache, validator: validate, logger: logger}
}

// Create inserts a course owned by the calling admin.
func (s *CourseAdminService) Create(ctx context.Context, actor models.UserInfo, input models.CourseInput) (*models.Course, error) {
	if missing := missingCourseFields(input); len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Campos requeridos faltantes: "+strings.Join(missing, ", "))
	}
	if *input.Price < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "El precio no puede ser negativo")
	}
	if err := s.ensureCategory(ctx, *input.CategoryID); err != nil {
		return nil, err
	}

	instructor := actor.ID
	course := &models.Course{
		Title:        strings.TrimSpace(*input.Title),
		Slug:         strings.TrimSpace(*input.Slug),
		Description:  *input.Description,
		Price:        *input.Price,
		CategoryID:   input.CategoryID,
		InstructorID: &instructor,
		ThumbnailURL: input.ThumbnailURL,
	}
	if input.IsPublished != nil {
		course.IsPublished = *input.IsPublished
	}
	if input.DurationHours != nil {
		course.DurationHours = *input.DurationHours
	}

	if err := s.repos.Courses.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Ya existe un curso con ese slug")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al crear curso")
	}

	s.audit(ctx, actor.ID, models.AuditActionCourseCreate, "course", course.ID, course)
	s.invalidateDashboard(ctx)
	return course, nil
}

// Update applies the fields present in input to an existing course.
func (s *CourseAdminService) Update(ctx context.Context, actor models.UserInfo, id string, input models.CourseInput) (*models.Course, error) {
	course, err := s.repos.Courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Curso no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al actualizar curso")
	}

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "El título no puede estar vacío")
		}
		course.Title = strings.TrimSpace(*input.Title)
	}
	if input.Slug != nil {
		if strings.TrimSpace(*input.Slug) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "El slug no puede estar vacío")
		}
		course.Slug = strings.TrimSpace(*input.Slug)
	}
	if input.Description != nil {
		course.Description = *input.Description
	}
	if input.Price != nil {
		if *input.Price < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "El precio no puede ser negativo")
		}
		course.Price = *input.Price
	}
	if input.CategoryID != nil && (course.CategoryID == nil || *course.CategoryID != *input.CategoryID) {
		if err := s.ensureCategory(ctx, *input.CategoryID); err != nil {
			return nil, err
		}
		course.CategoryID = input.CategoryID
	}
	if input.IsPublished != nil {
		course.IsPublished = *input.IsPublished
	}
	if input.DurationHours != nil {
		course.DurationHours = *input.DurationHours
	}
	if input.ThumbnailURL != nil {
		course.ThumbnailURL = input.ThumbnailURL
	}

	if err := s.repos.Courses.Update(ctx, course); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Curso no encontrado")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "Ya existe un curso con ese slug")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al actualizar curso")
	}

	s.audit(ctx, actor.ID, models.AuditActionCourseUpdate, "course", course.ID, input)
	s.invalidateDashboard(ctx)
	return course, nil
}

// Delete removes a course. Modules and videos cascade; stored files are removed
// in the background.
func (s *CourseAdminService) Delete(ctx context.Context, actor models.UserInfo, id string) error {
	videos, err := s.repos.Videos.ListByCourse(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al eliminar curso")
	}

	if err := s.repos.Courses.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Curso no encontrado")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al eliminar curso")
	}

	for _, v := range videos {
		s.scheduleFileDelete(v.VideoURL)
	}
	s.audit(ctx, actor.ID, models.AuditActionCourseDelete, "course", id, map[string]int{"videos": len(videos)})
	s.invalidateDashboard(ctx)
	return nil
}

// CreateModule adds a module to a course.
func (s *CourseAdminService) CreateModule(ctx context.Context, courseID string, input models.ModuleInput) (*models.Module, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "El título del módulo es requerido")
	}
	module := &models.Module{
		CourseID:        courseID,
		Title:           strings.TrimSpace(input.Title),
		OrderIndex:      input.OrderIndex,
		DurationMinutes: input.DurationMinutes,
		IsFreePreview:   input.IsFreePreview,
	}
	if d := strings.TrimSpace(input.Description); d != "" {
		module.Description = &d
	}
	if err := s.repos.Modules.Create(ctx, module); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Curso no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al crear módulo")
	}
	return module, nil
}

// DeleteVideo removes a video row and schedules removal of its file.
func (s *CourseAdminService) DeleteVideo(ctx context.Context, actor models.UserInfo, id string) error {
	publicURL, err := s.repos.Videos.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Video no encontrado")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al eliminar de la base de datos")
	}
	s.scheduleFileDelete(publicURL)
	s.audit(ctx, actor.ID, models.AuditActionVideoDelete, "video", id, map[string]string{"video_url": publicURL})
	return nil
}

func (s *CourseAdminService) ensureCategory(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "La categoría especificada no existe")
	}
	exists, err := s.repos.Categories.Exists(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al verificar la categoría")
	}
	if !exists {
		return appErrors.Clone(appErrors.ErrValidation, "La categoría especificada no existe")
	}
	return nil
}

func (s *CourseAdminService) scheduleFileDelete(publicURL string) {
	if publicURL == "" || s.jobs == nil {
		return
	}
	if err := s.jobs.TryEnqueue(jobs.Job{Type: JobDeleteVideoFile, Payload: DeleteFilePayload{PublicURL: publicURL}}); err != nil {
		s.logger.Error("failed to schedule video file removal", zap.String("video_url", publicURL), zap.Error(err))
	}
}

func (s *CourseAdminService) invalidateDashboard(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, AdminDashboardCacheKey)
}

func (s *CourseAdminService) audit(ctx context.Context, actorID, action, resource, resourceID string, values interface{}) {
	if s.repos.Audit == nil {
		return
	}
	payload, err := json.Marshal(values)
	if err != nil {
		payload = nil
	}
	if err := s.repos.Audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func missingCourseFields(input models.CourseInput) []string {
	var missing []string
	if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
		missing = append(missing, "title")
	}
	if input.Slug == nil || strings.TrimSpace(*input.Slug) == "" {
		missing = append(missing, "slug")
	}
	if input.Description == nil || strings.TrimSpace(*input.Description) == "" {
		missing = append(missing, "description")
	}
	if input.Price == nil {
		missing = append(missing, "price")
	}
	if input.CategoryID == nil || strings.TrimSpace(*input.CategoryID) == "" {
		missing = append(missing, "category_id")
	}
	return missing
}
