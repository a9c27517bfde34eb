package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

type memoryCacheRepo struct {
	store map[string][]byte
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = payload
	return nil
}

func (m *memoryCacheRepo) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.store, k)
	}
	return nil
}

type fakeUserStats struct {
	total  int
	recent []models.UserSummary
	calls  int
}

func (f *fakeUserStats) Count(ctx context.Context) (int, error) {
	f.calls++
	return f.total, nil
}

func (f *fakeUserStats) Recent(ctx context.Context, limit int) ([]models.UserSummary, error) {
	return f.recent, nil
}

type fakeCourseStats struct {
	total     int
	published []models.Course
	countErr  error
}

func (f *fakeCourseStats) Count(ctx context.Context) (int, error) {
	return f.total, f.countErr
}

func (f *fakeCourseStats) Recent(ctx context.Context, limit int) ([]models.CourseSummary, error) {
	return []models.CourseSummary{{ID: "c1", Title: "Go"}}, nil
}

func (f *fakeCourseStats) ListPublished(ctx context.Context) ([]models.Course, error) {
	return f.published, nil
}

func (f *fakeCourseStats) ListByIDs(ctx context.Context, ids []string) ([]models.Course, error) {
	var out []models.Course
	for _, id := range ids {
		out = append(out, models.Course{ID: id, Title: "Curso " + id})
	}
	return out, nil
}

type fakeSubscriptionStats struct {
	total int
	sub   *models.Subscription
}

func (f *fakeSubscriptionStats) Count(ctx context.Context) (int, error) {
	return f.total, nil
}

func (f *fakeSubscriptionStats) FindByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	if f.sub == nil {
		return nil, sql.ErrNoRows
	}
	return f.sub, nil
}

type fakeProgressLister []models.CourseProgress

func (f fakeProgressLister) ListByUser(ctx context.Context, userID string) ([]models.CourseProgress, error) {
	return f, nil
}

func TestDashboardServiceAdmin_ComposesAndCaches(t *testing.T) {
	cacheSvc := NewCacheService(&memoryCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	users := &fakeUserStats{total: 12, recent: []models.UserSummary{{ID: "u1", Email: "a@example.com"}}}
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	svc := NewDashboardService(DashboardServiceParams{
		Users:         users,
		Courses:       &fakeCourseStats{total: 3},
		Subscriptions: &fakeSubscriptionStats{total: 7},
		Cache:         cacheSvc,
	})
	svc.now = func() time.Time { return now }

	ctx := context.Background()
	result, hit, err := svc.Admin(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 12, result.TotalUsers)
	assert.Equal(t, 3, result.TotalCourses)
	assert.Equal(t, 7, result.TotalSubscriptions)
	assert.Len(t, result.RecentCourses, 1)
	assert.Equal(t, now, result.GeneratedAt)

	cached, hit, err := svc.Admin(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, result, cached)
	assert.Equal(t, 1, users.calls)

	require.NoError(t, cacheSvc.Invalidate(ctx, AdminDashboardCacheKey))
	_, hit, err = svc.Admin(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDashboardServiceAdminWithoutCache(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{
		Users:         &fakeUserStats{},
		Courses:       &fakeCourseStats{countErr: errors.New("db down")},
		Subscriptions: &fakeSubscriptionStats{},
	})

	_, _, err := svc.Admin(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestDashboardServiceStudent(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := now.Add(-time.Hour)
	published := make([]models.Course, 8)
	for i := range published {
		published[i] = models.Course{ID: string(rune('a' + i))}
	}

	svc := NewDashboardService(DashboardServiceParams{
		Users:         &fakeUserStats{},
		Courses:       &fakeCourseStats{published: published},
		Subscriptions: &fakeSubscriptionStats{sub: &models.Subscription{Status: models.SubscriptionActive, EndDate: now.AddDate(0, 1, 0)}},
		Progress: fakeProgressLister{
			{CourseID: "c1", ProgressPercentage: 25, UpdatedAt: now.Add(-2 * time.Hour)},
			{CourseID: "c2", ProgressPercentage: 50, UpdatedAt: now.Add(-time.Minute)},
			{CourseID: "c3", ProgressPercentage: 100, CompletedAt: &finished},
		},
	})
	svc.now = func() time.Time { return now }

	dash, err := svc.Student(context.Background(), models.UserInfo{ID: "u1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.True(t, dash.HasAccess)
	assert.Len(t, dash.LatestCourses, 6)
	require.Len(t, dash.InProgress, 2)
	assert.Equal(t, "c2", dash.InProgress[0].Course.ID)
	assert.Equal(t, 50, dash.InProgress[0].Progress.ProgressPercentage)
}

func TestDashboardServiceStudentWithoutSubscription(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{
		Users:         &fakeUserStats{},
		Courses:       &fakeCourseStats{},
		Subscriptions: &fakeSubscriptionStats{},
		Progress:      fakeProgressLister{},
	})

	dash, err := svc.Student(context.Background(), models.UserInfo{ID: "u1"})
	require.NoError(t, err)
	assert.False(t, dash.HasAccess)
	assert.Nil(t, dash.Subscription)
	assert.Empty(t, dash.InProgress)
}
