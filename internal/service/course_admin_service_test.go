package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/repository"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

const testCategoryID = "0b6f2f7e-3c1a-4f55-9a4e-2d8f7c2b9a10"

type memoryCourses struct {
	rows      map[string]*models.Course
	createErr error
	updateErr error
}

func (m *memoryCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *memoryCourses) Create(ctx context.Context, course *models.Course) error {
	if m.createErr != nil {
		return m.createErr
	}
	course.ID = "c-new"
	if m.rows == nil {
		m.rows = map[string]*models.Course{}
	}
	m.rows[course.ID] = course
	return nil
}

func (m *memoryCourses) Update(ctx context.Context, course *models.Course) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.rows[course.ID] = course
	return nil
}

func (m *memoryCourses) Delete(ctx context.Context, id string) error {
	if _, ok := m.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

type staticCategories map[string]bool

func (s staticCategories) Exists(ctx context.Context, id string) (bool, error) {
	return s[id], nil
}

type memoryModules struct {
	courses map[string]bool
	created []*models.Module
}

func (m *memoryModules) Create(ctx context.Context, module *models.Module) error {
	if !m.courses[module.CourseID] {
		return sql.ErrNoRows
	}
	module.ID = "m-new"
	m.created = append(m.created, module)
	return nil
}

type memoryVideoRows struct {
	byCourse map[string][]models.Video
	urls     map[string]string
}

func (m *memoryVideoRows) ListByCourse(ctx context.Context, courseID string) ([]models.Video, error) {
	return m.byCourse[courseID], nil
}

func (m *memoryVideoRows) Delete(ctx context.Context, id string) (string, error) {
	url, ok := m.urls[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	delete(m.urls, id)
	return url, nil
}

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func strPtr(s string) *string { return &s }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool { return &b }

func newCourseAdminFixture() (*CourseAdminService, *memoryCourses, *memoryVideoRows, *recordingQueue, *recordingAudit) {
	courses := &memoryCourses{rows: map[string]*models.Course{
		"c1": {ID: "c1", Title: "Go", Slug: "go", Description: "desc", Price: 10, CategoryID: strPtr(testCategoryID)},
	}}
	videos := &memoryVideoRows{
		byCourse: map[string][]models.Video{"c1": {{ID: "v1", VideoURL: "/videos/c1/a.mp4"}, {ID: "v2", VideoURL: "/videos/c1/b.mp4"}}},
		urls:     map[string]string{"v1": "/videos/c1/a.mp4"},
	}
	queue := &recordingQueue{}
	audit := &recordingAudit{}
	svc := NewCourseAdminService(CourseAdminRepositories{
		Courses:    courses,
		Categories: staticCategories{testCategoryID: true},
		Modules:    &memoryModules{courses: map[string]bool{"c1": true}},
		Videos:     videos,
		Audit:      audit,
	}, queue, nil, nil, nil)
	return svc, courses, videos, queue, audit
}

func TestCourseAdminCreateMissingFields(t *testing.T) {
	svc, _, _, _, _ := newCourseAdminFixture()

	_, err := svc.Create(context.Background(), models.UserInfo{ID: "a1"}, models.CourseInput{Title: strPtr("Go"), Price: floatPtr(5)})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, "Campos requeridos faltantes: slug, description, category_id", appErr.Message)
}

func TestCourseAdminCreateUnknownCategory(t *testing.T) {
	svc, _, _, _, _ := newCourseAdminFixture()

	for _, category := range []string{"not-a-uuid", "5d1e0c3a-8f7b-4a8e-9a5b-0f1e2d3c4b5a"} {
		_, err := svc.Create(context.Background(), models.UserInfo{ID: "a1"}, models.CourseInput{
			Title: strPtr("Go"), Slug: strPtr("go-2"), Description: strPtr("d"), Price: floatPtr(5), CategoryID: strPtr(category),
		})
		require.Error(t, err)
		assert.Equal(t, "La categoría especificada no existe", appErrors.FromError(err).Message)
	}
}

func TestCourseAdminCreateSetsInstructor(t *testing.T) {
	svc, courses, _, _, audit := newCourseAdminFixture()

	course, err := svc.Create(context.Background(), models.UserInfo{ID: "a1"}, models.CourseInput{
		Title: strPtr(" Go avanzado "), Slug: strPtr("go-avanzado"), Description: strPtr("d"), Price: floatPtr(0), CategoryID: strPtr(testCategoryID), IsPublished: boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "Go avanzado", course.Title)
	require.NotNil(t, course.InstructorID)
	assert.Equal(t, "a1", *course.InstructorID)
	assert.True(t, course.IsPublished)
	assert.Contains(t, courses.rows, "c-new")
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionCourseCreate, audit.logs[0].Action)
}

func TestCourseAdminCreateDuplicateSlug(t *testing.T) {
	svc, courses, _, _, _ := newCourseAdminFixture()
	courses.createErr = repository.ErrDuplicate

	_, err := svc.Create(context.Background(), models.UserInfo{ID: "a1"}, models.CourseInput{
		Title: strPtr("Go"), Slug: strPtr("go"), Description: strPtr("d"), Price: floatPtr(5), CategoryID: strPtr(testCategoryID),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestCourseAdminUpdatePartial(t *testing.T) {
	svc, courses, _, _, _ := newCourseAdminFixture()

	course, err := svc.Update(context.Background(), models.UserInfo{ID: "a1"}, "c1", models.CourseInput{Price: floatPtr(25)})
	require.NoError(t, err)
	assert.Equal(t, 25.0, course.Price)
	assert.Equal(t, "Go", course.Title)
	assert.Equal(t, 25.0, courses.rows["c1"].Price)

	_, err = svc.Update(context.Background(), models.UserInfo{ID: "a1"}, "c1", models.CourseInput{Title: strPtr("  ")})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCourseAdminUpdateMissingCourse(t *testing.T) {
	svc, _, _, _, _ := newCourseAdminFixture()

	_, err := svc.Update(context.Background(), models.UserInfo{ID: "a1"}, "missing", models.CourseInput{Price: floatPtr(1)})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestCourseAdminDeleteSchedulesFileRemoval(t *testing.T) {
	svc, courses, _, queue, _ := newCourseAdminFixture()

	require.NoError(t, svc.Delete(context.Background(), models.UserInfo{ID: "a1"}, "c1"))
	assert.NotContains(t, courses.rows, "c1")
	require.Len(t, queue.jobs, 2)
	assert.Equal(t, JobDeleteVideoFile, queue.jobs[0].Type)
	assert.Equal(t, DeleteFilePayload{PublicURL: "/videos/c1/a.mp4"}, queue.jobs[0].Payload)

	err := svc.Delete(context.Background(), models.UserInfo{ID: "a1"}, "c1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestCourseAdminCreateModule(t *testing.T) {
	svc, _, _, _, _ := newCourseAdminFixture()

	module, err := svc.CreateModule(context.Background(), "c1", models.ModuleInput{Title: "Intro", Description: "Primeros pasos", IsFreePreview: true})
	require.NoError(t, err)
	assert.Equal(t, "m-new", module.ID)
	require.NotNil(t, module.Description)

	_, err = svc.CreateModule(context.Background(), "missing", models.ModuleInput{Title: "Intro"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.CreateModule(context.Background(), "c1", models.ModuleInput{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCourseAdminDeleteVideo(t *testing.T) {
	svc, _, _, queue, audit := newCourseAdminFixture()

	require.NoError(t, svc.DeleteVideo(context.Background(), models.UserInfo{ID: "a1"}, "v1"))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, DeleteFilePayload{PublicURL: "/videos/c1/a.mp4"}, queue.jobs[0].Payload)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionVideoDelete, audit.logs[0].Action)

	err := svc.DeleteVideo(context.Background(), models.UserInfo{ID: "a1"}, "v1")
	require.Error(t, err)
	assert.Equal(t, "Video no encontrado", appErrors.FromError(err).Message)
}
