package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
)

const videoSelect = `SELECT v.id, v.course_id, v.module_id, v.title, v.description, v.video_url, v.order_index, v.is_free_preview, v.duration_seconds, m.title AS module_title, v.created_at, v.updated_at FROM videos v LEFT JOIN course_modules m ON m.id = v.module_id`

// VideoRepository provides database access for videos.
type VideoRepository struct {
	db *sqlx.DB
}

// NewVideoRepository creates a new instance of VideoRepository.
func NewVideoRepository(db *sqlx.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// FindByID returns a video by identifier.
func (r *VideoRepository) FindByID(ctx context.Context, id string) (*models.Video, error) {
	var video models.Video
	if err := r.db.GetContext(ctx, &video, videoSelect+` WHERE v.id = $1 LIMIT 1`, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find video: %w", err)
	}
	return &video, nil
}

// ListByCourse returns a course's videos ordered by module then order_index.
func (r *VideoRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Video, error) {
	query := videoSelect + ` WHERE v.course_id = $1 ORDER BY m.order_index, v.order_index, v.created_at`
	var videos []models.Video
	if err := r.db.SelectContext(ctx, &videos, query, courseID); err != nil {
		if isInvalidText(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

// CountByCourse returns the number of videos in a course.
func (r *VideoRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM videos WHERE course_id = $1`, courseID); err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return total, nil
}

// Create inserts video metadata.
func (r *VideoRepository) Create(ctx context.Context, video *models.Video) error {
	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	video.CreatedAt = now
	video.UpdatedAt = now
	const query = `INSERT INTO videos (id, course_id, module_id, title, description, video_url, order_index, is_free_preview, duration_seconds, created_at, updated_at) VALUES (:id, :course_id, :module_id, :title, :description, :video_url, :order_index, :is_free_preview, :duration_seconds, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, video); err != nil {
		return fmt.Errorf("create video: %w", err)
	}
	return nil
}

// Delete removes a video row and returns its stored URL.
func (r *VideoRepository) Delete(ctx context.Context, id string) (string, error) {
	var url string
	if err := r.db.GetContext(ctx, &url, `DELETE FROM videos WHERE id = $1 RETURNING video_url`, id); err != nil {
		if isNotFound(err) {
			return "", sql.ErrNoRows
		}
		return "", fmt.Errorf("delete video: %w", err)
	}
	return url, nil
}
