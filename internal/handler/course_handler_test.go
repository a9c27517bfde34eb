package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/service"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

type fakeCourseAdmin struct {
	deletedVideos []string
	lastInput     models.CourseInput
	err           error
}

func (f *fakeCourseAdmin) Create(ctx context.Context, actor models.UserInfo, input models.CourseInput) (*models.Course, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return &models.Course{ID: "c1", Title: *input.Title}, nil
}

func (f *fakeCourseAdmin) Update(ctx context.Context, actor models.UserInfo, id string, input models.CourseInput) (*models.Course, error) {
	f.lastInput = input
	return &models.Course{ID: id}, f.err
}

func (f *fakeCourseAdmin) Delete(ctx context.Context, actor models.UserInfo, id string) error {
	return f.err
}

func (f *fakeCourseAdmin) CreateModule(ctx context.Context, courseID string, input models.ModuleInput) (*models.Module, error) {
	return &models.Module{ID: "m1", CourseID: courseID, Title: input.Title}, f.err
}

func (f *fakeCourseAdmin) DeleteVideo(ctx context.Context, actor models.UserInfo, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deletedVideos = append(f.deletedVideos, id)
	return nil
}

type fakeExporter struct {
	format string
}

func (f *fakeExporter) CourseProgress(ctx context.Context, courseID, format string) (*service.ExportFile, error) {
	f.format = format
	return &service.ExportFile{FileName: "progreso-go.csv", ContentType: "text/csv; charset=utf-8", Content: []byte("a,b\n")}, nil
}

func TestCreateCourseConflict(t *testing.T) {
	admin := &fakeCourseAdmin{err: appErrors.Clone(appErrors.ErrConflict, "Ya existe un curso con ese slug")}
	h := NewCourseHandler(admin, fakePageCatalog{}, &fakeExporter{})

	c, w := newTestContext(http.MethodPost, "/api/admin/courses", []byte(`{"title":"Go","slug":"go","price":0}`), "application/json")
	asUser(c, "admin-1", models.RoleAdmin)
	h.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, admin.lastInput.Price)
	assert.Zero(t, *admin.lastInput.Price)
}

func TestDeleteVideoFormRedirectsBack(t *testing.T) {
	admin := &fakeCourseAdmin{}
	h := NewCourseHandler(admin, fakePageCatalog{}, &fakeExporter{})

	c, w := newTestContext(http.MethodPost, "/api/videos/v1/delete", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "v1"}}
	c.Request.Header.Set("Referer", "/admin/courses/c1/videos")
	asUser(c, "admin-1", models.RoleAdmin)
	h.DeleteVideo(c)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/courses/c1/videos", w.Header().Get("Location"))
	assert.Equal(t, []string{"v1"}, admin.deletedVideos)
}

func TestDeleteVideoJSON(t *testing.T) {
	admin := &fakeCourseAdmin{}
	h := NewCourseHandler(admin, fakePageCatalog{}, &fakeExporter{})

	c, w := newTestContext(http.MethodDelete, "/api/videos/v1", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "v1"}}
	acceptJSON(c)
	asUser(c, "admin-1", models.RoleAdmin)
	h.DeleteVideo(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Video eliminado correctamente")
}

func TestProgressReportAttachment(t *testing.T) {
	exports := &fakeExporter{}
	h := NewCourseHandler(&fakeCourseAdmin{}, fakePageCatalog{}, exports)

	c, w := newTestContext(http.MethodGet, "/api/admin/courses/c1/progress?format=csv", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	h.ProgressReport(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", exports.format)
	assert.Equal(t, `attachment; filename="progreso-go.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "a,b\n", w.Body.String())
}
