package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/middleware"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/service"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/response"
)

// Page paths.
const (
	LandingPagePath        = "/"
	LoginPagePath          = middleware.LoginPath
	RegisterPagePath       = "/register"
	ForgotPasswordPagePath = "/forgot-password"
	ResetPasswordPagePath  = "/reset-password"
	SubscriptionPagePath   = "/subscription"
	ProfilePagePath        = "/profile"
	AdminHomePath          = "/admin"
)

type pageCatalog interface {
	PublishedCourses(ctx context.Context) ([]models.Course, error)
	Categories(ctx context.Context) ([]models.Category, error)
	CourseBySlug(ctx context.Context, slug string) (*models.CourseDetail, error)
	videoLookup
	adminCatalog
}

type pageAccess interface {
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
	playGate
}

type pageProgress interface {
	Get(ctx context.Context, userID, courseID string) (*models.CourseProgress, error)
}

type pageProfiles interface {
	profileEnsurer
	Get(ctx context.Context, user models.UserInfo) (*models.Profile, error)
}

type pageSubscriptions interface {
	Overview(ctx context.Context, userID string) (*models.SubscriptionOverview, error)
}

type pageStreams interface {
	StreamLink(ctx context.Context, viewer models.UserInfo, video *models.Video) (*service.StreamLink, error)
}

// PageDeps groups the read services behind the pages.
type PageDeps struct {
	Catalog       pageCatalog
	Dashboard     dashboardService
	Access        pageAccess
	Progress      pageProgress
	Profiles      pageProfiles
	Subscriptions pageSubscriptions
	Streams       pageStreams
	OIDCEnabled   bool
	Logger        *zap.Logger
}

// PageHandler renders the server-side pages. Every page answers HTML by
// default and its view model as JSON when the client asks for it.
type PageHandler struct {
	deps   PageDeps
	logger *zap.Logger
}

// NewPageHandler constructs the handler.
func NewPageHandler(deps PageDeps) *PageHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageHandler{deps: deps, logger: logger}
}

// pageView is the data handed to templates.
type pageView struct {
	Title string           `json:"title"`
	User  *models.UserInfo `json:"user,omitempty"`
	Error string           `json:"error,omitempty"`
	Data  gin.H            `json:"data"`
}

func (h *PageHandler) render(c *gin.Context, status int, name, title string, data gin.H) {
	view := pageView{Title: title, Error: c.Query("error"), Data: data}
	if claims := claimsFromContext(c); claims != nil {
		info := claims.Info()
		view.User = &info
	}
	if view.Data == nil {
		view.Data = gin.H{}
	}
	if wantsJSON(c) {
		response.JSON(c, status, gin.H{"page": name, "view": view})
		return
	}
	c.HTML(status, name+".html", view)
}

// renderError shows an inline message instead of surfacing the raw error.
func (h *PageHandler) renderError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("page failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	h.render(c, appErr.Status, "error", "Error", gin.H{"message": appErr.Message, "code": appErr.Code})
}

// Landing renders the marketing page with the published catalog.
func (h *PageHandler) Landing(c *gin.Context) {
	courses, err := h.deps.Catalog.PublishedCourses(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, "landing", "TigerMind", gin.H{"courses": courses})
}

// Login renders the sign-in form.
func (h *PageHandler) Login(c *gin.Context) {
	h.render(c, http.StatusOK, "login", "Iniciar sesión", gin.H{
		"reset":        c.Query("reset") == "true",
		"oidc_enabled": h.deps.OIDCEnabled,
	})
}

// Register renders the sign-up form.
func (h *PageHandler) Register(c *gin.Context) {
	h.render(c, http.StatusOK, "register", "Crear cuenta", nil)
}

// ForgotPassword renders the reset request form.
func (h *PageHandler) ForgotPassword(c *gin.Context) {
	h.render(c, http.StatusOK, "forgot_password", "Recuperar contraseña", gin.H{"sent": c.Query("sent") == "true"})
}

// ResetPassword renders the new password form for a mailed token.
func (h *PageHandler) ResetPassword(c *gin.Context) {
	h.render(c, http.StatusOK, "reset_password", "Nueva contraseña", gin.H{"token": c.Query("token")})
}

// StudentHome renders the student dashboard, creating the profile on first visit.
func (h *PageHandler) StudentHome(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		c.Redirect(http.StatusTemporaryRedirect, LoginPagePath)
		return
	}
	if _, err := h.deps.Profiles.Ensure(c.Request.Context(), claims.Info()); err != nil {
		h.logger.Warn("lazy profile creation failed", zap.String("user_id", claims.UserID), zap.Error(err))
	}
	dashboard, err := h.deps.Dashboard.Student(c.Request.Context(), claims.Info())
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, "student_home", "Mi aprendizaje", gin.H{
		"dashboard":  dashboard,
		"subscribed": c.Query("subscribed") == "true",
	})
}

// StudentCourses renders the catalog for signed-in students.
func (h *PageHandler) StudentCourses(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		c.Redirect(http.StatusTemporaryRedirect, LoginPagePath)
		return
	}
	ctx := c.Request.Context()
	courses, err := h.deps.Catalog.PublishedCourses(ctx)
	if err != nil {
		h.renderError(c, err)
		return
	}
	categories, err := h.deps.Catalog.Categories(ctx)
	if err != nil {
		h.renderError(c, err)
		return
	}
	active, err := h.deps.Access.HasActiveSubscription(ctx, claims.UserID)
	if err != nil {
		h.logger.Warn("subscription lookup failed", zap.String("user_id", claims.UserID), zap.Error(err))
	}
	h.render(c, http.StatusOK, "courses", "Cursos", gin.H{
		"courses":         courses,
		"categories":      categories,
		"has_access":      active,
		"course_base_url": "/student/courses/",
	})
}

// StudentCourse renders a course with its modules, videos and the caller's progress.
// Unknown courses go back to the student home.
func (h *PageHandler) StudentCourse(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		c.Redirect(http.StatusTemporaryRedirect, LoginPagePath)
		return
	}
	ctx := c.Request.Context()
	detail, err := h.deps.Catalog.CourseBySlug(ctx, c.Param("slug"))
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) {
			c.Redirect(http.StatusTemporaryRedirect, middleware.StudentHomePath)
			return
		}
		h.renderError(c, err)
		return
	}
	active, err := h.deps.Access.HasActiveSubscription(ctx, claims.UserID)
	if err != nil {
		h.logger.Warn("subscription lookup failed", zap.String("user_id", claims.UserID), zap.Error(err))
	}
	progress, err := h.deps.Progress.Get(ctx, claims.UserID, detail.Course.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	completed := make(map[string]bool, len(progress.CompletedVideos))
	for _, id := range progress.CompletedVideos {
		completed[id] = true
	}
	total := 0
	for _, m := range detail.Modules {
		total += len(m.Videos)
	}
	h.render(c, http.StatusOK, "course", detail.Course.Title, gin.H{
		"course":     detail.Course,
		"modules":    detail.Modules,
		"has_access": active,
		"progress":   progress,
		"completed":  completed,
		"total":      total,
		"percentage": service.CompletionPercentage(len(progress.CompletedVideos), total),
	})
}

// StudentVideo renders the player. Viewers without access get an inline message.
func (h *PageHandler) StudentVideo(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		c.Redirect(http.StatusTemporaryRedirect, LoginPagePath)
		return
	}
	ctx := c.Request.Context()
	vc, err := h.deps.Catalog.Video(ctx, c.Param("videoId"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	if vc.Course.Slug != c.Param("slug") {
		h.renderError(c, appErrors.Clone(appErrors.ErrNotFound, "Video no encontrado"))
		return
	}
	allowed, err := h.deps.Access.CanPlay(ctx, claims.Info(), &vc.Video)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if !allowed {
		h.render(c, http.StatusForbidden, "error", "Sin acceso", gin.H{
			"message":          "No tienes acceso a este video",
			"code":             appErrors.ErrSubscriptionNeeded.Code,
			"subscription_url": SubscriptionPagePath,
		})
		return
	}
	link, err := h.deps.Streams.StreamLink(ctx, claims.Info(), &vc.Video)
	if err != nil {
		h.renderError(c, err)
		return
	}
	progress, err := h.deps.Progress.Get(ctx, claims.UserID, vc.Course.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	completed := false
	for _, id := range progress.CompletedVideos {
		if id == vc.Video.ID {
			completed = true
			break
		}
	}
	h.render(c, http.StatusOK, "player", vc.Video.Title, gin.H{
		"video":           vc.Video,
		"course":          vc.Course,
		"module":          vc.Module,
		"stream":          link,
		"resume_position": service.ResumePosition(progress, vc.Video.ID),
		"completed":       completed,
		"percentage":      progress.ProgressPercentage,
	})
}

// Catalog renders the public catalog at /courses.
func (h *PageHandler) Catalog(c *gin.Context) {
	courses, err := h.deps.Catalog.PublishedCourses(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, "courses", "Cursos", gin.H{
		"courses":         courses,
		"course_base_url": "/student/courses/",
	})
}

// Subscription renders the paywall page.
func (h *PageHandler) Subscription(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		c.Redirect(http.StatusTemporaryRedirect, LoginPagePath)
		return
	}
	overview, err := h.deps.Subscriptions.Overview(c.Request.Context(), claims.UserID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, "subscription", "Suscripción", gin.H{"overview": overview})
}

// Profile renders the profile form.
func (h *PageHandler) Profile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		c.Redirect(http.StatusTemporaryRedirect, LoginPagePath)
		return
	}
	profile, err := h.deps.Profiles.Get(c.Request.Context(), claims.Info())
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, "profile", "Mi perfil", gin.H{
		"profile": profile,
		"success": c.Query("success") == "true",
	})
}

// AdminHome renders the admin dashboard.
func (h *PageHandler) AdminHome(c *gin.Context) {
	summary, hit, err := h.deps.Dashboard.Admin(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	h.render(c, http.StatusOK, "admin_home", "Panel de administración", gin.H{"dashboard": summary})
}

// AdminCourses renders the course list.
func (h *PageHandler) AdminCourses(c *gin.Context) {
	courses, err := h.deps.Catalog.AdminCourses(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, "admin_courses", "Cursos", gin.H{"courses": courses})
}

// AdminCourseForm renders the create form, or the edit form when an id is present.
func (h *PageHandler) AdminCourseForm(c *gin.Context) {
	ctx := c.Request.Context()
	categories, err := h.deps.Catalog.Categories(ctx)
	if err != nil {
		h.renderError(c, err)
		return
	}
	data := gin.H{"categories": categories}
	title := "Nuevo curso"
	if id := c.Param("id"); id != "" {
		detail, err := h.deps.Catalog.AdminCourse(ctx, id)
		if err != nil {
			h.renderError(c, err)
			return
		}
		data["course"] = detail.Course
		title = "Editar curso"
	}
	h.render(c, http.StatusOK, "admin_course_form", title, data)
}

// AdminCourse renders a course with modules and counters.
func (h *PageHandler) AdminCourse(c *gin.Context) {
	detail, err := h.deps.Catalog.AdminCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, "admin_course", detail.Course.Title, gin.H{"detail": detail})
}

// AdminVideos renders the video list of a course.
func (h *PageHandler) AdminVideos(c *gin.Context) {
	course, videos, err := h.deps.Catalog.CourseVideos(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, "admin_videos", "Videos", gin.H{"course": course, "videos": videos})
}

// AdminVideoForm renders the upload form.
func (h *PageHandler) AdminVideoForm(c *gin.Context) {
	ctx := c.Request.Context()
	detail, err := h.deps.Catalog.AdminCourse(ctx, c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, "admin_video_form", "Subir video", gin.H{
		"course":  detail.Course,
		"modules": detail.Modules,
	})
}
