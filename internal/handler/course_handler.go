package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/service"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/response"
)

type courseAdmin interface {
	Create(ctx context.Context, actor models.UserInfo, input models.CourseInput) (*models.Course, error)
	Update(ctx context.Context, actor models.UserInfo, id string, input models.CourseInput) (*models.Course, error)
	Delete(ctx context.Context, actor models.UserInfo, id string) error
	CreateModule(ctx context.Context, courseID string, input models.ModuleInput) (*models.Module, error)
	DeleteVideo(ctx context.Context, actor models.UserInfo, id string) error
}

type adminCatalog interface {
	AdminCourses(ctx context.Context) ([]models.Course, error)
	AdminCourse(ctx context.Context, id string) (*models.AdminCourseDetail, error)
	CourseVideos(ctx context.Context, courseID string) (*models.Course, []models.Video, error)
	Modules(ctx context.Context, courseID string) ([]models.Module, error)
}

type progressExporter interface {
	CourseProgress(ctx context.Context, courseID, format string) (*service.ExportFile, error)
}

// CourseHandler exposes course administration endpoints.
type CourseHandler struct {
	admin   courseAdmin
	catalog adminCatalog
	exports progressExporter
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(admin courseAdmin, catalog adminCatalog, exports progressExporter) *CourseHandler {
	return &CourseHandler{admin: admin, catalog: catalog, exports: exports}
}

// List godoc
// @Summary List all courses
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.catalog.AdminCourses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "courses", courses)
}

// Get godoc
// @Summary Course detail with modules and counters
// @Tags Admin
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/admin/courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	detail, err := h.catalog.AdminCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "course", detail)
}

// Create godoc
// @Summary Create a course
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.CourseInput true "Course"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/admin/courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	var input models.CourseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Datos del curso inválidos"))
		return
	}
	course, err := h.admin.Create(c.Request.Context(), claims.Info(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "course", course)
}

// Update godoc
// @Summary Update a course
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.CourseInput true "Fields to change"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/admin/courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	var input models.CourseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Datos del curso inválidos"))
		return
	}
	course, err := h.admin.Update(c.Request.Context(), claims.Info(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "course", course)
}

// Delete godoc
// @Summary Delete a course with its modules and videos
// @Tags Admin
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/admin/courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.admin.Delete(c.Request.Context(), claims.Info(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Curso eliminado correctamente"})
}

// Videos godoc
// @Summary List the videos of a course
// @Tags Admin
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/courses/{id}/videos [get]
func (h *CourseHandler) Videos(c *gin.Context) {
	course, videos, err := h.catalog.CourseVideos(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"course": course, "videos": videos})
}

// Modules godoc
// @Summary List the modules of a course
// @Tags Admin
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/courses/{id}/modules [get]
func (h *CourseHandler) Modules(c *gin.Context) {
	modules, err := h.catalog.Modules(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "modules", modules)
}

// CreateModule godoc
// @Summary Create a module in a course
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.ModuleInput true "Module"
// @Success 201 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/admin/courses/{id}/modules [post]
func (h *CourseHandler) CreateModule(c *gin.Context) {
	var input models.ModuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Datos del módulo inválidos"))
		return
	}
	module, err := h.admin.CreateModule(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "module", module)
}

// DeleteVideo godoc
// @Summary Delete a video and its file
// @Tags Admin
// @Produce json
// @Param id path string true "Video ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/admin/videos/{id} [delete]
func (h *CourseHandler) DeleteVideo(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.admin.DeleteVideo(c.Request.Context(), claims.Info(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	if referer := c.GetHeader("Referer"); referer != "" && !wantsJSON(c) {
		c.Redirect(http.StatusSeeOther, referer)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Video eliminado correctamente"})
}

// ProgressReport godoc
// @Summary Download per-student progress of a course
// @Tags Admin
// @Produce text/csv,application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} map[string]string
// @Router /api/admin/courses/{id}/progress-report [get]
func (h *CourseHandler) ProgressReport(c *gin.Context) {
	file, err := h.exports.CourseProgress(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
