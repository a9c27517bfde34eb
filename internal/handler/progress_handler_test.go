package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/service"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

type stubVideos struct {
	videos map[string]*models.VideoContext
}

func (s stubVideos) Video(ctx context.Context, id string) (*models.VideoContext, error) {
	vc, ok := s.videos[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Video no encontrado")
	}
	return vc, nil
}

type fixedSubscriptions bool

func (f fixedSubscriptions) HasActive(ctx context.Context, userID string, now time.Time) (bool, error) {
	return bool(f), nil
}

func accessFor(subscribed bool) *service.AccessService {
	return service.NewAccessService(fixedSubscriptions(subscribed), nil)
}

type recordingTracker struct {
	positions int
	completes int
	lastAt    time.Time
}

func (r *recordingTracker) Get(ctx context.Context, userID, courseID string) (*models.CourseProgress, error) {
	return &models.CourseProgress{UserID: userID, CourseID: courseID}, nil
}

func (r *recordingTracker) RecordPosition(ctx context.Context, userID string, video *models.Video, seconds int, reportedAt time.Time) (bool, error) {
	r.positions++
	r.lastAt = reportedAt
	return true, nil
}

func (r *recordingTracker) MarkComplete(ctx context.Context, userID string, video *models.Video) (*models.CourseProgress, error) {
	r.completes++
	return &models.CourseProgress{UserID: userID, CourseID: video.CourseID, ProgressPercentage: 50}, nil
}

func progressVideos() stubVideos {
	return stubVideos{videos: map[string]*models.VideoContext{
		"paid": {Video: models.Video{ID: "paid", CourseID: "c1"}},
		"free": {Video: models.Video{ID: "free", CourseID: "c1", IsFreePreview: true}},
	}}
}

func TestProgressRejectsViewerWithoutAccess(t *testing.T) {
	tracker := &recordingTracker{}
	h := NewProgressHandler(progressVideos(), accessFor(false), tracker, nil)

	c, w := newTestContext(http.MethodPost, "/api/progress/complete", []byte(`{"video_id":"paid"}`), "application/json")
	asUser(c, "u1", models.RoleStudent)
	h.Complete(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, appErrors.ErrSubscriptionNeeded.Code, errorCode(t, w.Body.Bytes()))
	assert.Zero(t, tracker.completes)
}

func TestProgressFreePreviewIsTracked(t *testing.T) {
	tracker := &recordingTracker{}
	h := NewProgressHandler(progressVideos(), accessFor(false), tracker, nil)

	c, w := newTestContext(http.MethodPost, "/api/progress/complete", []byte(`{"video_id":"free"}`), "application/json")
	asUser(c, "u1", models.RoleStudent)
	h.Complete(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, tracker.completes)
	assert.Contains(t, w.Body.String(), `"progress_percentage":50`)
}

func TestProgressPositionPassesTimestamp(t *testing.T) {
	tracker := &recordingTracker{}
	h := NewProgressHandler(progressVideos(), accessFor(true), tracker, nil)

	c, w := newTestContext(http.MethodPost, "/api/progress/position", []byte(`{"video_id":"paid","seconds":42,"reported_at":"2026-03-01T10:00:00Z"}`), "application/json")
	asUser(c, "u1", models.RoleStudent)
	h.Position(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"applied":true`)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), tracker.lastAt.UTC())
}

func TestProgressUnknownVideo(t *testing.T) {
	tracker := &recordingTracker{}
	h := NewProgressHandler(progressVideos(), accessFor(true), tracker, nil)

	c, w := newTestContext(http.MethodPost, "/api/progress/position", []byte(`{"video_id":"missing","seconds":1}`), "application/json")
	asUser(c, "u1", models.RoleStudent)
	h.Position(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, tracker.positions)
}

func TestProgressAdminWithoutSubscriptionIsTracked(t *testing.T) {
	tracker := &recordingTracker{}
	h := NewProgressHandler(progressVideos(), accessFor(false), tracker, nil)

	c, w := newTestContext(http.MethodPost, "/api/progress/complete", []byte(`{"video_id":"paid"}`), "application/json")
	asUser(c, "a1", models.RoleAdmin)
	h.Complete(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, tracker.completes)
}
