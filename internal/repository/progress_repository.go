package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
)

const progressColumns = `user_id, course_id, completed_videos, last_watched_video, last_watched_position, position_reported_at, progress_percentage, completed_at, updated_at`

// ProgressRepository provides database access for course progress rows.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new instance of ProgressRepository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Get returns the progress row for (userID, courseID).
func (r *ProgressRepository) Get(ctx context.Context, userID, courseID string) (*models.CourseProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM course_progress WHERE user_id = $1 AND course_id = $2`
	var progress models.CourseProgress
	if err := r.db.GetContext(ctx, &progress, query, userID, courseID); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get course progress: %w", err)
	}
	return &progress, nil
}

// ListByUser returns all progress rows of a user, most recently touched first.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]models.CourseProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM course_progress WHERE user_id = $1 ORDER BY updated_at DESC`
	var rows []models.CourseProgress
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list course progress: %w", err)
	}
	return rows, nil
}

// RecordPosition upserts the resume position. Reports older than the stored
// position_reported_at are dropped; the return value reports whether the
// write was applied.
func (r *ProgressRepository) RecordPosition(ctx context.Context, userID, courseID, videoID string, seconds int, reportedAt time.Time) (bool, error) {
	const query = `INSERT INTO course_progress (user_id, course_id, completed_videos, last_watched_video, last_watched_position, position_reported_at, progress_percentage, updated_at)
VALUES ($1, $2, '{}', $3, $4, $5, 0, $6)
ON CONFLICT (user_id, course_id) DO UPDATE SET last_watched_video = EXCLUDED.last_watched_video, last_watched_position = EXCLUDED.last_watched_position, position_reported_at = EXCLUDED.position_reported_at, updated_at = EXCLUDED.updated_at
WHERE course_progress.position_reported_at IS NULL OR course_progress.position_reported_at <= EXCLUDED.position_reported_at`
	res, err := r.db.ExecContext(ctx, query, userID, courseID, videoID, seconds, reportedAt, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("record position: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record position rows affected: %w", err)
	}
	return affected > 0, nil
}

// Save upserts the full progress row.
func (r *ProgressRepository) Save(ctx context.Context, progress *models.CourseProgress) error {
	progress.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO course_progress (` + progressColumns + `)
VALUES (:user_id, :course_id, :completed_videos, :last_watched_video, :last_watched_position, :position_reported_at, :progress_percentage, :completed_at, :updated_at)
ON CONFLICT (user_id, course_id) DO UPDATE SET completed_videos = EXCLUDED.completed_videos, last_watched_video = EXCLUDED.last_watched_video, last_watched_position = EXCLUDED.last_watched_position, position_reported_at = EXCLUDED.position_reported_at, progress_percentage = EXCLUDED.progress_percentage, completed_at = EXCLUDED.completed_at, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, progress); err != nil {
		return fmt.Errorf("save course progress: %w", err)
	}
	return nil
}

// ReportByCourse returns one row per student with progress on courseID.
func (r *ProgressRepository) ReportByCourse(ctx context.Context, courseID string) ([]models.StudentProgress, error) {
	const query = `SELECT cp.user_id, p.full_name, p.email, COALESCE(cardinality(cp.completed_videos), 0) AS completed_count, cp.progress_percentage, cp.completed_at, cp.updated_at FROM course_progress cp JOIN profiles p ON p.id = cp.user_id WHERE cp.course_id = $1 ORDER BY cp.progress_percentage DESC, p.full_name`
	var rows []models.StudentProgress
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("course progress report: %w", err)
	}
	return rows, nil
}
