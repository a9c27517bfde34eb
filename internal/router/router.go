// Package router assembles the HTTP surface: server-rendered pages behind the
// access gate, the JSON API behind session checks, media streaming and the
// operational endpoints.
package router

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/handler"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/middleware"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/service"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/logger"
	corsmiddleware "github.com/Tech-Dev-Skill/tiger-mind/pkg/middleware/cors"
	reqidmiddleware "github.com/Tech-Dev-Skill/tiger-mind/pkg/middleware/requestid"
	"github.com/Tech-Dev-Skill/tiger-mind/web"
)

// SessionResolver validates cookie sessions and rotates them near expiry.
type SessionResolver interface {
	Configured() bool
	ResolveSession(ctx context.Context, accessToken, refreshToken string, meta service.RequestMeta) (*service.SessionState, error)
}

// RoleLookup reads the stored role of a user.
type RoleLookup interface {
	RoleOf(ctx context.Context, id string) (models.Role, error)
}

// AuditWriter persists audit log entries.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Handlers are the HTTP handlers mounted by New.
type Handlers struct {
	Auth          *handler.AuthHandler
	Pages         *handler.PageHandler
	Courses       *handler.CourseHandler
	Uploads       *handler.UploadHandler
	Progress      *handler.ProgressHandler
	Media         *handler.MediaHandler
	Subscriptions *handler.SubscriptionHandler
	Profiles      *handler.ProfileHandler
	Dashboard     *handler.DashboardHandler
	Metrics       *handler.MetricsHandler
}

// Options configures the engine.
type Options struct {
	Handlers       Handlers
	Sessions       SessionResolver
	Roles          RoleLookup
	Audit          AuditWriter
	Metrics        *service.MetricsService
	Templates      *template.Template
	Cookies        middleware.CookieConfig
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
}

// New builds the gin engine with every route registered.
func New(opts Options) *gin.Engine {
	logr := opts.Logger
	if logr == nil {
		logr = zap.NewNop()
	}
	h := opts.Handlers

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
	}
	if opts.Templates != nil {
		r.SetHTMLTemplate(opts.Templates)
	}
	if static, err := fs.Sub(web.StaticFS, "static"); err == nil {
		r.StaticFS("/static", http.FS(static))
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerPages(r, h, opts, logr)

	r.GET("/auth/oidc/login", h.Auth.OIDCLogin)
	r.GET("/auth/callback", h.Auth.OIDCCallback)
	r.GET("/media/videos/:id", h.Media.Stream)
	r.HEAD("/media/videos/:id", h.Media.Stream)

	registerAPI(r.Group("/api"), h, opts, logr)

	return r
}

func registerPages(r *gin.Engine, h Handlers, opts Options, logr *zap.Logger) {
	pages := r.Group("", middleware.Gate(opts.Sessions, opts.Roles, opts.Cookies, logr))

	pages.GET("/", h.Pages.Landing)
	pages.GET("/login", h.Pages.Login)
	pages.GET("/register", h.Pages.Register)
	pages.GET("/forgot-password", h.Pages.ForgotPassword)
	pages.GET("/reset-password", h.Pages.ResetPassword)
	pages.GET("/courses", h.Pages.Catalog)
	pages.GET("/dashboard", func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, middleware.StudentHomePath)
	})

	pages.GET("/student", h.Pages.StudentHome)
	pages.GET("/student/courses", h.Pages.StudentCourses)
	pages.GET("/student/courses/:slug", h.Pages.StudentCourse)
	pages.GET("/student/courses/:slug/videos/:videoId", h.Pages.StudentVideo)
	pages.GET("/subscription", h.Pages.Subscription)
	pages.GET("/profile", h.Pages.Profile)

	pages.GET("/admin", h.Pages.AdminHome)
	pages.GET("/admin/courses", h.Pages.AdminCourses)
	pages.GET("/admin/courses/new", h.Pages.AdminCourseForm)
	pages.GET("/admin/courses/:id", h.Pages.AdminCourse)
	pages.GET("/admin/courses/:id/edit", h.Pages.AdminCourseForm)
	pages.GET("/admin/courses/:id/videos", h.Pages.AdminVideos)
	pages.GET("/admin/courses/:id/videos/new", h.Pages.AdminVideoForm)
}

func registerAPI(api *gin.RouterGroup, h Handlers, opts Options, logr *zap.Logger) {
	requireSession := middleware.Session(opts.Sessions, opts.Cookies, logr)

	auth := api.Group("/auth")
	auth.POST("/signin", h.Auth.SignIn)
	auth.POST("/signup", h.Auth.SignUp)
	auth.POST("/signout", h.Auth.SignOut)
	auth.POST("/forgot-password", h.Auth.ForgotPassword)
	auth.POST("/reset-password", h.Auth.ResetPassword)
	auth.GET("/me", requireSession, h.Auth.Me)
	auth.POST("/setup-profile", requireSession, h.Auth.SetupProfile)
	auth.POST("/create-profile", requireSession, h.Auth.SetupProfile)

	authed := api.Group("", requireSession)
	authed.GET("/dashboard", h.Dashboard.Student)
	authed.GET("/profile", h.Profiles.Get)
	authed.POST("/profile/update", h.Profiles.Update)
	authed.GET("/subscriptions", h.Subscriptions.Overview)
	authed.POST("/subscriptions", middleware.Audit(opts.Audit, logr, "SUBSCRIBE", "subscription"), h.Subscriptions.Subscribe)
	authed.GET("/progress/:courseId", h.Progress.Get)
	authed.POST("/progress/position", h.Progress.Position)
	authed.POST("/progress/complete", h.Progress.Complete)
	authed.GET("/videos/:id/stream", h.Media.StreamLink)

	authed.POST("/upload/video", middleware.RequireAdminWithMessage("No tienes permisos para subir videos"), h.Uploads.Video)

	videos := authed.Group("/admin/videos", middleware.RequireAdminWithMessage("No tienes permisos para eliminar videos"))
	videos.DELETE("/:id", h.Courses.DeleteVideo)
	videos.POST("/:id/delete", h.Courses.DeleteVideo)

	admin := authed.Group("/admin", middleware.RequireAdmin())
	admin.GET("/dashboard", h.Dashboard.Admin)
	admin.GET("/metrics", h.Metrics.Snapshot)
	admin.POST("/register", middleware.RequireRoles(models.RoleSuperAdmin), h.Auth.RegisterAdmin)
	admin.GET("/courses", h.Courses.List)
	admin.POST("/courses", h.Courses.Create)
	admin.GET("/courses/:id", h.Courses.Get)
	admin.PUT("/courses/:id", h.Courses.Update)
	admin.DELETE("/courses/:id", h.Courses.Delete)
	admin.GET("/courses/:id/videos", h.Courses.Videos)
	admin.GET("/courses/:id/modules", h.Courses.Modules)
	admin.POST("/courses/:id/modules", middleware.Audit(opts.Audit, logr, "CREATE", "course_module"), h.Courses.CreateModule)
	admin.GET("/courses/:id/progress-report", middleware.Audit(opts.Audit, logr, "EXPORT", "course_progress"), h.Courses.ProgressReport)
}
