package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/Tech-Dev-Skill/tiger-mind/api/swagger"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/handler"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/middleware"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/repository"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/router"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/service"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/cache"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/config"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/database"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/jobs"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/logger"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/mailer"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/storage"
	"github.com/Tech-Dev-Skill/tiger-mind/web"
)

// @title TigerMind API
// @version 1.0.0
// @description Subscription video course platform
// @BasePath /
// @schemes http https

const resetTokenExpiry = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Flush()
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if len(applied) > 0 {
		logr.Info("migrations applied", zap.Strings("versions", applied))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	store, err := storage.NewVideoStore(cfg.Videos.StorageDir, cfg.Videos.PublicPrefix)
	if err != nil {
		return fmt.Errorf("video storage: %w", err)
	}

	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	modules := repository.NewModuleRepository(db)
	videos := repository.NewVideoRepository(db)
	categories := repository.NewCategoryRepository(db)
	subscriptions := repository.NewSubscriptionRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)

	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Redis.Enabled && cfg.Dashboard.CacheEnabled)

	queue := jobs.NewQueue("tigermind", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	service.NewJobHandlers(mailer.New(cfg.Mail, logr), store, metrics, logr, cfg.Videos.StagingTTL).Register(queue)
	queue.Start(ctx)
	defer queue.Stop()
	queue.Every(cfg.Videos.SweepInterval, service.JobSweepStaging, nil)

	authSvc := service.NewAuthService(users, cacheRepo, queue, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		RefreshWindow:      cfg.Session.RefreshWindow,
		ResetTokenExpiry:   resetTokenExpiry,
		Issuer:             cfg.JWT.Issuer,
		BaseURL:            cfg.BaseURL,
	})
	var oidcFlow *service.OIDCService
	if cfg.OIDC.Enabled() {
		oidcFlow, err = service.NewOIDCService(ctx, cfg.OIDC, users, authSvc, logr)
		if err != nil {
			return fmt.Errorf("oidc provider: %w", err)
		}
	}

	profiles := service.NewProfileService(users, validate, logr)
	access := service.NewAccessService(subscriptions, logr)
	catalog := service.NewCatalogService(service.CatalogRepositories{
		Courses:     courses,
		Modules:     modules,
		Videos:      videos,
		Categories:  categories,
		Enrollments: enrollments,
	}, logr)
	progress := service.NewProgressService(progressRepo, videos, enrollments, metrics, logr)
	courseAdmin := service.NewCourseAdminService(service.CourseAdminRepositories{
		Courses:    courses,
		Categories: categories,
		Modules:    modules,
		Videos:     videos,
		Audit:      users,
	}, queue, cacheSvc, validate, logr)
	uploads := service.NewUploadService(store, modules, videos, users, metrics, validate, logr, service.UploadConfig{
		MaxFileSizeBytes: cfg.Videos.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Videos.AllowedMIMEs,
	})
	subscriptionSvc := service.NewSubscriptionService(subscriptions, cacheSvc, logr)
	dashboard := service.NewDashboardService(service.DashboardServiceParams{
		Users:         users,
		Courses:       courses,
		Subscriptions: subscriptions,
		Progress:      progressRepo,
		Cache:         cacheSvc,
		Logger:        logr,
		Config:        service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	exports := service.NewExportService(progressRepo, courses, logr)
	media := service.NewMediaService(videos, access, storage.NewSignedURLSigner(cfg.Media.SignedURLSecret, cfg.Media.SignedURLTTL), store, logr)

	templates, err := web.Templates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	cookies := middleware.NewCookieConfig(cfg.Session)
	authHandler := handler.NewAuthHandler(authSvc, nil, profiles, cookies, logr)
	if oidcFlow != nil {
		authHandler = handler.NewAuthHandler(authSvc, oidcFlow, profiles, cookies, logr)
	}

	handlers := router.Handlers{
		Auth: authHandler,
		Pages: handler.NewPageHandler(handler.PageDeps{
			Catalog:       catalog,
			Dashboard:     dashboard,
			Access:        access,
			Progress:      progress,
			Profiles:      profiles,
			Subscriptions: subscriptionSvc,
			Streams:       media,
			OIDCEnabled:   oidcFlow != nil,
			Logger:        logr,
		}),
		Courses:       handler.NewCourseHandler(courseAdmin, catalog, exports),
		Uploads:       handler.NewUploadHandler(uploads),
		Progress:      handler.NewProgressHandler(catalog, access, progress, logr),
		Media:         handler.NewMediaHandler(catalog, media, logr),
		Subscriptions: handler.NewSubscriptionHandler(subscriptionSvc),
		Profiles:      handler.NewProfileHandler(profiles),
		Dashboard:     handler.NewDashboardHandler(dashboard),
		Metrics: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"postgres": db,
			"redis":    handler.PingFunc(cacheRepo.Ping),
		}, logr),
	}

	engine := router.New(router.Options{
		Handlers:       handlers,
		Sessions:       authSvc,
		Roles:          users,
		Audit:          users,
		Metrics:        metrics,
		Templates:      templates,
		Cookies:        cookies,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
