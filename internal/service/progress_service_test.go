package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

type memoryProgressStore struct {
	rows    map[string]*models.CourseProgress
	saveErr error
	saves   int
}

func newMemoryProgressStore() *memoryProgressStore {
	return &memoryProgressStore{rows: map[string]*models.CourseProgress{}}
}

func (m *memoryProgressStore) key(userID, courseID string) string { return userID + "/" + courseID }

func (m *memoryProgressStore) Get(ctx context.Context, userID, courseID string) (*models.CourseProgress, error) {
	row, ok := m.rows[m.key(userID, courseID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *row
	clone.CompletedVideos = append(pq.StringArray{}, row.CompletedVideos...)
	return &clone, nil
}

func (m *memoryProgressStore) ListByUser(ctx context.Context, userID string) ([]models.CourseProgress, error) {
	var out []models.CourseProgress
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *memoryProgressStore) RecordPosition(ctx context.Context, userID, courseID, videoID string, seconds int, reportedAt time.Time) (bool, error) {
	row, ok := m.rows[m.key(userID, courseID)]
	if !ok {
		row = &models.CourseProgress{UserID: userID, CourseID: courseID}
		m.rows[m.key(userID, courseID)] = row
	}
	if row.PositionReportedAt != nil && row.PositionReportedAt.After(reportedAt) {
		return false, nil
	}
	row.LastWatchedVideo = &videoID
	row.LastWatchedPosition = seconds
	row.PositionReportedAt = &reportedAt
	return true, nil
}

func (m *memoryProgressStore) Save(ctx context.Context, progress *models.CourseProgress) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	clone := *progress
	m.rows[m.key(progress.UserID, progress.CourseID)] = &clone
	return nil
}

type fixedVideoCounter struct {
	total int
	err   error
}

func (f fixedVideoCounter) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return f.total, f.err
}

type recordingEnrollments struct {
	calls int
}

func (r *recordingEnrollments) Enroll(ctx context.Context, userID, courseID string) error {
	r.calls++
	return nil
}

func courseVideo(id string) *models.Video {
	return &models.Video{ID: id, CourseID: "c1", ModuleID: "m1", DurationSeconds: 120}
}

func TestMarkCompleteIsIdempotent(t *testing.T) {
	store := newMemoryProgressStore()
	svc := NewProgressService(store, fixedVideoCounter{total: 4}, &recordingEnrollments{}, NewMetricsService(), nil)

	first, err := svc.MarkComplete(context.Background(), "u1", courseVideo("v1"))
	require.NoError(t, err)
	assert.Len(t, first.CompletedVideos, 1)
	assert.Equal(t, 25, first.ProgressPercentage)

	second, err := svc.MarkComplete(context.Background(), "u1", courseVideo("v1"))
	require.NoError(t, err)
	assert.Len(t, second.CompletedVideos, 1)
	assert.Equal(t, 25, second.ProgressPercentage)
	assert.Equal(t, 1, store.saves)
}

func TestMarkCompleteAllVideosSetsCompletedAt(t *testing.T) {
	store := newMemoryProgressStore()
	svc := NewProgressService(store, fixedVideoCounter{total: 4}, nil, nil, nil)

	var progress *models.CourseProgress
	for _, id := range []string{"v1", "v2", "v3"} {
		var err error
		progress, err = svc.MarkComplete(context.Background(), "u1", courseVideo(id))
		require.NoError(t, err)
		assert.Nil(t, progress.CompletedAt)
	}
	assert.Equal(t, 75, progress.ProgressPercentage)

	progress, err := svc.MarkComplete(context.Background(), "u1", courseVideo("v4"))
	require.NoError(t, err)
	assert.Equal(t, 100, progress.ProgressPercentage)
	require.NotNil(t, progress.CompletedAt)
	assert.Equal(t, 120, progress.LastWatchedPosition)
	assert.Equal(t, "v4", *progress.LastWatchedVideo)
}

func TestCompletionPercentageBounds(t *testing.T) {
	cases := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{1, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 4, 25},
		{4, 4, 100},
		{5, 4, 100},
	}
	for _, tc := range cases {
		got := CompletionPercentage(tc.completed, tc.total)
		assert.Equal(t, tc.want, got, "completed=%d total=%d", tc.completed, tc.total)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, 100)
	}
}

func TestMarkCompleteSaveFailure(t *testing.T) {
	store := newMemoryProgressStore()
	store.saveErr = errors.New("db down")
	svc := NewProgressService(store, fixedVideoCounter{total: 2}, nil, nil, nil)

	_, err := svc.MarkComplete(context.Background(), "u1", courseVideo("v1"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestRecordPositionIgnoresStaleReports(t *testing.T) {
	store := newMemoryProgressStore()
	enrollments := &recordingEnrollments{}
	svc := NewProgressService(store, fixedVideoCounter{total: 2}, enrollments, nil, nil)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.Add(time.Hour) }

	applied, err := svc.RecordPosition(context.Background(), "u1", courseVideo("v1"), 90, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = svc.RecordPosition(context.Background(), "u1", courseVideo("v1"), 30, base.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, applied)

	// Backward seeks with a newer timestamp are accepted.
	applied, err = svc.RecordPosition(context.Background(), "u1", courseVideo("v1"), 10, base.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, applied)

	progress, err := svc.Get(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 10, ResumePosition(progress, "v1"))
	assert.Equal(t, 0, ResumePosition(progress, "v2"))
	assert.Equal(t, 3, enrollments.calls)
}

func TestRecordPositionRejectsNegative(t *testing.T) {
	svc := NewProgressService(newMemoryProgressStore(), fixedVideoCounter{}, nil, nil, nil)
	_, err := svc.RecordPosition(context.Background(), "u1", courseVideo("v1"), -1, time.Now())
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestGetMissingProgressIsEmpty(t *testing.T) {
	svc := NewProgressService(newMemoryProgressStore(), fixedVideoCounter{}, nil, nil, nil)
	progress, err := svc.Get(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Empty(t, progress.CompletedVideos)
	assert.Equal(t, 0, progress.ProgressPercentage)
}
