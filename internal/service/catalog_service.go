package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

type catalogCourseRepository interface {
	ListPublished(ctx context.Context) ([]models.Course, error)
	ListAll(ctx context.Context) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindBySlug(ctx context.Context, slug string) (*models.Course, error)
}

type catalogModuleRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Module, error)
	FindByID(ctx context.Context, id string) (*models.Module, error)
}

type catalogVideoRepository interface {
	FindByID(ctx context.Context, id string) (*models.Video, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Video, error)
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

type categoryLister interface {
	List(ctx context.Context) ([]models.Category, error)
}

type enrollmentCounter interface {
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

// CatalogRepositories groups the read dependencies of the catalog.
type CatalogRepositories struct {
	Courses     catalogCourseRepository
	Modules     catalogModuleRepository
	Videos      catalogVideoRepository
	Categories  categoryLister
	Enrollments enrollmentCounter
}

// CatalogService runs the point-in-time catalog reads used by pages.
type CatalogService struct {
	repos  CatalogRepositories
	logger *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(repos CatalogRepositories, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repos: repos, logger: logger}
}

// PublishedCourses lists published courses, newest first.
func (s *CatalogService) PublishedCourses(ctx context.Context) ([]models.Course, error) {
	courses, err := s.repos.Courses.ListPublished(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar los cursos")
	}
	return nonNilCourses(courses), nil
}

// Categories lists course categories.
func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repos.Categories.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar las categorías")
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return categories, nil
}

// CourseBySlug returns a published course with its modules and videos in order.
func (s *CatalogService) CourseBySlug(ctx context.Context, slug string) (*models.CourseDetail, error) {
	course, err := s.repos.Courses.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Curso no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el curso")
	}
	if !course.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Curso no encontrado")
	}

	var (
		modules []models.Module
		videos  []models.Video
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		modules, err = s.repos.Modules.ListByCourse(gctx, course.ID)
		return err
	})
	g.Go(func() error {
		var err error
		videos, err = s.repos.Videos.ListByCourse(gctx, course.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el contenido del curso")
	}

	return &models.CourseDetail{Course: *course, Modules: groupVideos(modules, videos)}, nil
}

// Video returns a video with its course and module.
func (s *CatalogService) Video(ctx context.Context, id string) (*models.VideoContext, error) {
	video, err := s.repos.Videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Video no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el video")
	}

	course, err := s.repos.Courses.FindByID(ctx, video.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Video no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el video")
	}
	module, err := s.repos.Modules.FindByID(ctx, video.ModuleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Video no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el video")
	}
	return &models.VideoContext{Video: *video, Course: *course, Module: *module}, nil
}

// AdminCourses lists every course with category and instructor.
func (s *CatalogService) AdminCourses(ctx context.Context) ([]models.Course, error) {
	courses, err := s.repos.Courses.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar los cursos")
	}
	return nonNilCourses(courses), nil
}

// AdminCourse returns a course with its modules, video count and enrolled student count.
func (s *CatalogService) AdminCourse(ctx context.Context, id string) (*models.AdminCourseDetail, error) {
	course, err := s.repos.Courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Curso no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el curso")
	}

	detail := &models.AdminCourseDetail{Course: *course}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		modules, err := s.repos.Modules.ListByCourse(gctx, id)
		detail.Modules = modules
		return err
	})
	g.Go(func() error {
		count, err := s.repos.Videos.CountByCourse(gctx, id)
		detail.VideoCount = count
		return err
	})
	g.Go(func() error {
		count, err := s.repos.Enrollments.CountByCourse(gctx, id)
		detail.EnrollmentCount = count
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el curso")
	}
	if detail.Modules == nil {
		detail.Modules = []models.Module{}
	}
	return detail, nil
}

// CourseVideos lists the videos of a course for administration.
func (s *CatalogService) CourseVideos(ctx context.Context, courseID string) (*models.Course, []models.Video, error) {
	course, err := s.repos.Courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "Curso no encontrado")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el curso")
	}
	videos, err := s.repos.Videos.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar los videos")
	}
	if videos == nil {
		videos = []models.Video{}
	}
	return course, videos, nil
}

// Modules lists the modules of a course.
func (s *CatalogService) Modules(ctx context.Context, courseID string) ([]models.Module, error) {
	modules, err := s.repos.Modules.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar los módulos")
	}
	if modules == nil {
		modules = []models.Module{}
	}
	return modules, nil
}

// groupVideos attaches videos to their modules preserving both orders.
func groupVideos(modules []models.Module, videos []models.Video) []models.ModuleWithVideos {
	result := make([]models.ModuleWithVideos, 0, len(modules))
	index := make(map[string]int, len(modules))
	for i, m := range modules {
		index[m.ID] = i
		result = append(result, models.ModuleWithVideos{Module: m, Videos: []models.Video{}})
	}
	for _, v := range videos {
		if i, ok := index[v.ModuleID]; ok {
			result[i].Videos = append(result[i].Videos, v)
		}
	}
	return result
}

func nonNilCourses(courses []models.Course) []models.Course {
	if courses == nil {
		return []models.Course{}
	}
	return courses
}
