package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/repository"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

type catalogFixture struct {
	courses []models.Course
	modules []models.Module
	videos  []models.Video
}

func (f *catalogFixture) ListPublished(ctx context.Context) ([]models.Course, error) {
	var out []models.Course
	for _, c := range f.courses {
		if c.IsPublished {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *catalogFixture) ListAll(ctx context.Context) ([]models.Course, error) {
	return f.courses, nil
}

func (f *catalogFixture) FindByID(ctx context.Context, id string) (*models.Course, error) {
	for _, c := range f.courses {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *catalogFixture) FindBySlug(ctx context.Context, slug string) (*models.Course, error) {
	for _, c := range f.courses {
		if c.Slug == slug {
			cp := c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type catalogModules struct{ f *catalogFixture }

func (m catalogModules) ListByCourse(ctx context.Context, courseID string) ([]models.Module, error) {
	var out []models.Module
	for _, mod := range m.f.modules {
		if mod.CourseID == courseID {
			out = append(out, mod)
		}
	}
	return out, nil
}

func (m catalogModules) FindByID(ctx context.Context, id string) (*models.Module, error) {
	for _, mod := range m.f.modules {
		if mod.ID == id {
			cp := mod
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type catalogVideos struct{ f *catalogFixture }

func (v catalogVideos) FindByID(ctx context.Context, id string) (*models.Video, error) {
	for _, video := range v.f.videos {
		if video.ID == id {
			cp := video
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (v catalogVideos) ListByCourse(ctx context.Context, courseID string) ([]models.Video, error) {
	var out []models.Video
	for _, video := range v.f.videos {
		if video.CourseID == courseID {
			out = append(out, video)
		}
	}
	return out, nil
}

func (v catalogVideos) CountByCourse(ctx context.Context, courseID string) (int, error) {
	videos, _ := v.ListByCourse(ctx, courseID)
	return len(videos), nil
}

type staticCategoryList []models.Category

func (s staticCategoryList) List(ctx context.Context) ([]models.Category, error) {
	return s, nil
}

type staticEnrollments int

func (s staticEnrollments) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return int(s), nil
}

func newCatalogService() *CatalogService {
	f := &catalogFixture{
		courses: []models.Course{
			{ID: "c1", Slug: "go", Title: "Go", IsPublished: true},
			{ID: "c2", Slug: "borrador", Title: "Borrador"},
		},
		modules: []models.Module{
			{ID: "m1", CourseID: "c1", Title: "Intro", OrderIndex: 0},
			{ID: "m2", CourseID: "c1", Title: "Avanzado", OrderIndex: 1},
		},
		videos: []models.Video{
			{ID: "v1", CourseID: "c1", ModuleID: "m1", OrderIndex: 0},
			{ID: "v2", CourseID: "c1", ModuleID: "m2", OrderIndex: 0},
			{ID: "v3", CourseID: "c1", ModuleID: "m1", OrderIndex: 1},
		},
	}
	return NewCatalogService(CatalogRepositories{
		Courses:     f,
		Modules:     catalogModules{f},
		Videos:      catalogVideos{f},
		Categories:  staticCategoryList(nil),
		Enrollments: staticEnrollments(4),
	}, nil)
}

func TestCatalogCourseBySlugGroupsVideos(t *testing.T) {
	svc := newCatalogService()

	detail, err := svc.CourseBySlug(context.Background(), "go")
	require.NoError(t, err)
	require.Len(t, detail.Modules, 2)
	assert.Equal(t, []string{"v1", "v3"}, []string{detail.Modules[0].Videos[0].ID, detail.Modules[0].Videos[1].ID})
	assert.Len(t, detail.Modules[1].Videos, 1)
	assert.Equal(t, 3, detail.VideoCount())
}

func TestCatalogHidesUnpublishedCourses(t *testing.T) {
	svc := newCatalogService()

	_, err := svc.CourseBySlug(context.Background(), "borrador")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	courses, err := svc.PublishedCourses(context.Background())
	require.NoError(t, err)
	assert.Len(t, courses, 1)

	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, categories)
}

func TestCatalogVideoContext(t *testing.T) {
	svc := newCatalogService()

	vc, err := svc.Video(context.Background(), "v2")
	require.NoError(t, err)
	assert.Equal(t, "c1", vc.Course.ID)
	assert.Equal(t, "Avanzado", vc.Module.Title)

	_, err = svc.Video(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "Video no encontrado", appErrors.FromError(err).Message)
}

func TestCatalogVideoMalformedIDIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("FROM videos").WithArgs("abc").WillReturnError(&pq.Error{Code: "22P02"})

	f := &catalogFixture{}
	svc := NewCatalogService(CatalogRepositories{
		Courses: f,
		Modules: catalogModules{f},
		Videos:  repository.NewVideoRepository(sqlx.NewDb(db, "sqlmock")),
	}, nil)

	_, err = svc.Video(context.Background(), "abc")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogAdminCourseCounters(t *testing.T) {
	svc := newCatalogService()

	detail, err := svc.AdminCourse(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, detail.Modules, 2)
	assert.Equal(t, 3, detail.VideoCount)
	assert.Equal(t, 4, detail.EnrollmentCount)

	_, videos, err := svc.CourseVideos(context.Background(), "c2")
	require.NoError(t, err)
	assert.NotNil(t, videos)
	assert.Empty(t, videos)
}
