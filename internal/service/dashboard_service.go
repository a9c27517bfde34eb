package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

// AdminDashboardCacheKey stores the composed admin dashboard.
const AdminDashboardCacheKey = "dash:admin"

const (
	dashboardRecentLimit = 5
	dashboardLatestLimit = 6
)

type userStats interface {
	Count(ctx context.Context) (int, error)
	Recent(ctx context.Context, limit int) ([]models.UserSummary, error)
}

type courseStats interface {
	Count(ctx context.Context) (int, error)
	Recent(ctx context.Context, limit int) ([]models.CourseSummary, error)
	ListPublished(ctx context.Context) ([]models.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
}

type subscriptionStats interface {
	Count(ctx context.Context) (int, error)
	FindByUser(ctx context.Context, userID string) (*models.Subscription, error)
}

type progressLister interface {
	ListByUser(ctx context.Context, userID string) ([]models.CourseProgress, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Users         userStats
	Courses       courseStats
	Subscriptions subscriptionStats
	Progress      progressLister
	Cache         *CacheService
	Logger        *zap.Logger
	Config        DashboardServiceConfig
}

// DashboardService orchestrates composition of dashboard payloads.
type DashboardService struct {
	users         userStats
	courses       courseStats
	subscriptions subscriptionStats
	progress      progressLister
	cache         *CacheService
	logger        *zap.Logger
	now           func() time.Time
	cfg           DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:         params.Users,
		courses:       params.Courses,
		subscriptions: params.Subscriptions,
		progress:      params.Progress,
		cache:         params.Cache,
		logger:        logger,
		now:           time.Now,
		cfg:           cfg,
	}
}

// Admin returns platform counters and recent activity, and whether the cache served it.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, bool, error) {
	return Remember(ctx, s.cache, AdminDashboardCacheKey, s.cfg.CacheTTL, s.composeAdmin)
}

// Student returns the home view of a signed-in student.
func (s *DashboardService) Student(ctx context.Context, user models.UserInfo) (*models.StudentDashboard, error) {
	var (
		sub      *models.Subscription
		latest   []models.Course
		progress []models.CourseProgress
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.subscriptions.FindByUser(gctx, user.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		sub = found
		return nil
	})
	g.Go(func() error {
		courses, err := s.courses.ListPublished(gctx)
		if err != nil {
			return err
		}
		if len(courses) > dashboardLatestLimit {
			courses = courses[:dashboardLatestLimit]
		}
		latest = courses
		return nil
	})
	g.Go(func() error {
		rows, err := s.progress.ListByUser(gctx, user.ID)
		if err != nil {
			return err
		}
		progress = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el panel")
	}

	inProgress, err := s.coursesInProgress(ctx, progress)
	if err != nil {
		return nil, err
	}

	return &models.StudentDashboard{
		Profile:       user,
		Subscription:  sub,
		HasAccess:     sub.ActiveAt(s.now()),
		InProgress:    inProgress,
		LatestCourses: latest,
	}, nil
}

func (s *DashboardService) composeAdmin(ctx context.Context) (*models.AdminDashboard, error) {
	summary := &models.AdminDashboard{GeneratedAt: s.now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary.TotalUsers, err = s.users.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		summary.TotalCourses, err = s.courses.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		summary.TotalSubscriptions, err = s.subscriptions.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		summary.RecentUsers, err = s.users.Recent(gctx, dashboardRecentLimit)
		return err
	})
	g.Go(func() (err error) {
		summary.RecentCourses, err = s.courses.Recent(gctx, dashboardRecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar estadísticas")
	}
	return summary, nil
}

// coursesInProgress pairs unfinished progress rows with their courses, most recent first.
func (s *DashboardService) coursesInProgress(ctx context.Context, rows []models.CourseProgress) ([]models.CourseWithProgress, error) {
	byCourse := make(map[string]models.CourseProgress, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.CompletedAt != nil {
			continue
		}
		byCourse[row.CourseID] = row
		ids = append(ids, row.CourseID)
	}
	if len(ids) == 0 {
		return []models.CourseWithProgress{}, nil
	}

	courses, err := s.courses.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el panel")
	}
	result := make([]models.CourseWithProgress, 0, len(courses))
	for _, c := range courses {
		result = append(result, models.CourseWithProgress{Course: c, Progress: byCourse[c.ID]})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Progress.UpdatedAt.After(result[j].Progress.UpdatedAt)
	})
	return result, nil
}
