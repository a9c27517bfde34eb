package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

const (
	progressKindPosition   = "position"
	progressKindCompletion = "completion"
)

type progressStore interface {
	Get(ctx context.Context, userID, courseID string) (*models.CourseProgress, error)
	ListByUser(ctx context.Context, userID string) ([]models.CourseProgress, error)
	RecordPosition(ctx context.Context, userID, courseID, videoID string, seconds int, reportedAt time.Time) (bool, error)
	Save(ctx context.Context, progress *models.CourseProgress) error
}

type videoCounter interface {
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

type enrollmentWriter interface {
	Enroll(ctx context.Context, userID, courseID string) error
}

// ProgressService tracks per course playback position and completed videos.
// Callers must check playback access before writing.
type ProgressService struct {
	store       progressStore
	videos      videoCounter
	enrollments enrollmentWriter
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewProgressService constructs a ProgressService.
func NewProgressService(store progressStore, videos videoCounter, enrollments enrollmentWriter, metrics *MetricsService, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{
		store:       store,
		videos:      videos,
		enrollments: enrollments,
		metrics:     metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the progress of userID on courseID. Missing rows yield an empty record.
func (s *ProgressService) Get(ctx context.Context, userID, courseID string) (*models.CourseProgress, error) {
	progress, err := s.store.Get(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return emptyProgress(userID, courseID), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el progreso")
	}
	return progress, nil
}

// ByUser returns all progress rows of userID keyed by course.
func (s *ProgressService) ByUser(ctx context.Context, userID string) (map[string]models.CourseProgress, error) {
	rows, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el progreso")
	}
	result := make(map[string]models.CourseProgress, len(rows))
	for _, row := range rows {
		result[row.CourseID] = row
	}
	return result, nil
}

// RecordPosition stores the last watched video and position. Reports older
// than the stored report are ignored; applied is false in that case.
func (s *ProgressService) RecordPosition(ctx context.Context, userID string, video *models.Video, seconds int, reportedAt time.Time) (bool, error) {
	if seconds < 0 {
		return false, appErrors.Clone(appErrors.ErrValidation, "Posición inválida")
	}
	now := s.now()
	if reportedAt.IsZero() || reportedAt.After(now) {
		reportedAt = now
	}

	s.enroll(ctx, userID, video.CourseID)

	applied, err := s.store.RecordPosition(ctx, userID, video.CourseID, video.ID, seconds, reportedAt.UTC())
	s.metrics.RecordProgressWrite(progressKindPosition, err)
	if err != nil {
		s.logger.Error("failed to record playback position",
			zap.String("user_id", userID), zap.String("video_id", video.ID), zap.Error(err))
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al guardar el progreso")
	}
	if !applied {
		s.logger.Debug("stale playback position ignored", zap.String("user_id", userID), zap.String("video_id", video.ID))
	}
	return applied, nil
}

// MarkComplete adds video to the completed set and recomputes the course
// percentage from a fresh video count. Completing an already completed video
// is a no-op.
func (s *ProgressService) MarkComplete(ctx context.Context, userID string, video *models.Video) (*models.CourseProgress, error) {
	progress, err := s.Get(ctx, userID, video.CourseID)
	if err != nil {
		return nil, err
	}
	if progress.HasCompleted(video.ID) {
		return progress, nil
	}

	total, err := s.videos.CountByCourse(ctx, video.CourseID)
	if err != nil {
		s.metrics.RecordProgressWrite(progressKindCompletion, err)
		s.logger.Error("failed to count course videos", zap.String("course_id", video.CourseID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al marcar el video como completado")
	}

	now := s.now()
	progress.CompletedVideos = append(progress.CompletedVideos, video.ID)
	progress.ProgressPercentage = CompletionPercentage(len(progress.CompletedVideos), total)
	lastVideo := video.ID
	progress.LastWatchedVideo = &lastVideo
	progress.LastWatchedPosition = video.DurationSeconds
	progress.PositionReportedAt = &now
	progress.UpdatedAt = now
	if progress.ProgressPercentage == 100 {
		progress.CompletedAt = &now
	} else {
		progress.CompletedAt = nil
	}

	s.enroll(ctx, userID, video.CourseID)

	err = s.store.Save(ctx, progress)
	s.metrics.RecordProgressWrite(progressKindCompletion, err)
	if err != nil {
		s.logger.Error("failed to save completion",
			zap.String("user_id", userID), zap.String("video_id", video.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al marcar el video como completado")
	}
	return progress, nil
}

// ResumePosition returns the stored position when videoID is the last watched video.
func ResumePosition(progress *models.CourseProgress, videoID string) int {
	if progress == nil || progress.LastWatchedVideo == nil || *progress.LastWatchedVideo != videoID {
		return 0
	}
	return progress.LastWatchedPosition
}

// CompletionPercentage is round(100 * completed / total) clamped to [0, 100].
func CompletionPercentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(completed) / float64(total)))
	if pct > 100 {
		return 100
	}
	return pct
}

func (s *ProgressService) enroll(ctx context.Context, userID, courseID string) {
	if s.enrollments == nil {
		return
	}
	if err := s.enrollments.Enroll(ctx, userID, courseID); err != nil {
		s.logger.Warn("failed to record enrollment", zap.String("user_id", userID), zap.String("course_id", courseID), zap.Error(err))
	}
}

func emptyProgress(userID, courseID string) *models.CourseProgress {
	return &models.CourseProgress{UserID: userID, CourseID: courseID, CompletedVideos: pq.StringArray{}}
}
