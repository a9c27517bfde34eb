package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/middleware"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/service"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/web"
)

type fakePageCatalog struct {
	stubVideos
	courses []models.Course
	details map[string]*models.CourseDetail
}

func (f fakePageCatalog) PublishedCourses(ctx context.Context) ([]models.Course, error) {
	return f.courses, nil
}

func (f fakePageCatalog) Categories(ctx context.Context) ([]models.Category, error) {
	return []models.Category{{ID: "cat1", Name: "Programación", Slug: "programacion"}}, nil
}

func (f fakePageCatalog) CourseBySlug(ctx context.Context, slug string) (*models.CourseDetail, error) {
	detail, ok := f.details[slug]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Curso no encontrado")
	}
	return detail, nil
}

func (f fakePageCatalog) AdminCourses(ctx context.Context) ([]models.Course, error) {
	return f.courses, nil
}

func (f fakePageCatalog) AdminCourse(ctx context.Context, id string) (*models.AdminCourseDetail, error) {
	for _, course := range f.courses {
		if course.ID == id {
			return &models.AdminCourseDetail{Course: course}, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "Curso no encontrado")
}

func (f fakePageCatalog) CourseVideos(ctx context.Context, courseID string) (*models.Course, []models.Video, error) {
	return &models.Course{ID: courseID}, nil, nil
}

func (f fakePageCatalog) Modules(ctx context.Context, courseID string) ([]models.Module, error) {
	return nil, nil
}

type fakePageProgress struct {
	progress *models.CourseProgress
}

func (f fakePageProgress) Get(ctx context.Context, userID, courseID string) (*models.CourseProgress, error) {
	if f.progress == nil {
		return &models.CourseProgress{UserID: userID, CourseID: courseID}, nil
	}
	return f.progress, nil
}

type fakePageStreams struct{}

func (fakePageStreams) StreamLink(ctx context.Context, viewer models.UserInfo, video *models.Video) (*service.StreamLink, error) {
	return &service.StreamLink{URL: "/media/videos/" + video.ID + "?token=t", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func newPageDeps(allowed bool) PageDeps {
	goCourse := models.Course{ID: "c1", Title: "Go desde cero", Slug: "go", Price: 19.9, IsPublished: true}
	return PageDeps{
		Catalog: fakePageCatalog{
			stubVideos: stubVideos{videos: map[string]*models.VideoContext{
				"v1": {Video: models.Video{ID: "v1", CourseID: "c1", Title: "Intro"}, Course: goCourse},
			}},
			courses: []models.Course{goCourse},
			details: map[string]*models.CourseDetail{
				"go": {Course: goCourse, Modules: []models.ModuleWithVideos{{
					Module: models.Module{ID: "m1", CourseID: "c1", Title: "Básico"},
					Videos: []models.Video{{ID: "v1", CourseID: "c1"}, {ID: "v2", CourseID: "c1"}},
				}}},
			},
		},
		Access: accessFor(allowed),
		Progress: fakePageProgress{progress: &models.CourseProgress{
			UserID: "u1", CourseID: "c1", CompletedVideos: pq.StringArray{"v1"}, ProgressPercentage: 50,
		}},
		Streams: fakePageStreams{},
	}
}

type pageResponse struct {
	Success bool   `json:"success"`
	Page    string `json:"page"`
	View    struct {
		Title string                 `json:"title"`
		Data  map[string]interface{} `json:"data"`
	} `json:"view"`
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) pageResponse {
	t.Helper()
	var out pageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestLandingRendersHTML(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tmpl, err := web.Templates()
	require.NoError(t, err)

	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	h := NewPageHandler(newPageDeps(false))
	router.GET(LandingPagePath, h.Landing)
	router.GET(LoginPagePath, h.Login)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Go desde cero")
	assert.Contains(t, w.Body.String(), "/student/courses/go")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login?error=Credenciales", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Credenciales")
}

func TestStudentCourseJSONView(t *testing.T) {
	h := NewPageHandler(newPageDeps(true))
	c, w := newTestContext(http.MethodGet, "/student/courses/go", nil, "")
	c.Params = gin.Params{{Key: "slug", Value: "go"}}
	acceptJSON(c)
	asUser(c, "u1", models.RoleStudent)
	h.StudentCourse(c)

	require.Equal(t, http.StatusOK, w.Code)
	page := decodePage(t, w)
	assert.Equal(t, "course", page.Page)
	assert.Equal(t, "Go desde cero", page.View.Title)
	assert.EqualValues(t, 2, page.View.Data["total"])
	assert.EqualValues(t, 50, page.View.Data["percentage"])
	assert.Equal(t, map[string]interface{}{"v1": true}, page.View.Data["completed"])
}

func TestStudentCourseUnknownRedirectsHome(t *testing.T) {
	h := NewPageHandler(newPageDeps(true))
	c, w := newTestContext(http.MethodGet, "/student/courses/nope", nil, "")
	c.Params = gin.Params{{Key: "slug", Value: "nope"}}
	asUser(c, "u1", models.RoleStudent)
	h.StudentCourse(c)

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, middleware.StudentHomePath, w.Header().Get("Location"))
}

func TestStudentVideoWithoutAccess(t *testing.T) {
	h := NewPageHandler(newPageDeps(false))
	c, w := newTestContext(http.MethodGet, "/student/courses/go/videos/v1", nil, "")
	c.Params = gin.Params{{Key: "slug", Value: "go"}, {Key: "videoId", Value: "v1"}}
	acceptJSON(c)
	asUser(c, "u1", models.RoleStudent)
	h.StudentVideo(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	page := decodePage(t, w)
	assert.Equal(t, "error", page.Page)
	assert.Equal(t, SubscriptionPagePath, page.View.Data["subscription_url"])
}

func TestStudentVideoResumesPosition(t *testing.T) {
	deps := newPageDeps(true)
	last := "v1"
	deps.Progress = fakePageProgress{progress: &models.CourseProgress{
		UserID: "u1", CourseID: "c1", LastWatchedVideo: &last, LastWatchedPosition: 75,
	}}
	h := NewPageHandler(deps)
	c, w := newTestContext(http.MethodGet, "/student/courses/go/videos/v1", nil, "")
	c.Params = gin.Params{{Key: "slug", Value: "go"}, {Key: "videoId", Value: "v1"}}
	acceptJSON(c)
	asUser(c, "u1", models.RoleStudent)
	h.StudentVideo(c)

	require.Equal(t, http.StatusOK, w.Code)
	page := decodePage(t, w)
	assert.EqualValues(t, 75, page.View.Data["resume_position"])
	stream, ok := page.View.Data["stream"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/media/videos/v1?token=t", stream["url"])
}

func TestStudentVideoAdminWithoutSubscription(t *testing.T) {
	h := NewPageHandler(newPageDeps(false))
	c, w := newTestContext(http.MethodGet, "/student/courses/go/videos/v1", nil, "")
	c.Params = gin.Params{{Key: "slug", Value: "go"}, {Key: "videoId", Value: "v1"}}
	acceptJSON(c)
	asUser(c, "a1", models.RoleAdmin)
	h.StudentVideo(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "player", decodePage(t, w).Page)
}

func TestStudentVideoUnderOtherCourseSlug(t *testing.T) {
	h := NewPageHandler(newPageDeps(true))
	c, w := newTestContext(http.MethodGet, "/student/courses/python/videos/v1", nil, "")
	c.Params = gin.Params{{Key: "slug", Value: "python"}, {Key: "videoId", Value: "v1"}}
	acceptJSON(c)
	asUser(c, "u1", models.RoleStudent)
	h.StudentVideo(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, appErrors.ErrNotFound.Code, decodePage(t, w).View.Data["code"])
}

func TestStudentPagesRequireSession(t *testing.T) {
	h := NewPageHandler(newPageDeps(true))
	c, w := newTestContext(http.MethodGet, "/student/courses", nil, "")
	h.StudentCourses(c)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, LoginPagePath, w.Header().Get("Location"))
}
