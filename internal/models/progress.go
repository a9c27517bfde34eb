package models

import (
	"time"

	"github.com/lib/pq"
)

// CourseProgress is the per (user, course) playback record.
type CourseProgress struct {
	UserID              string         `db:"user_id" json:"user_id"`
	CourseID            string         `db:"course_id" json:"course_id"`
	CompletedVideos     pq.StringArray `db:"completed_videos" json:"completed_videos"`
	LastWatchedVideo    *string        `db:"last_watched_video" json:"last_watched_video,omitempty"`
	LastWatchedPosition int            `db:"last_watched_position" json:"last_watched_position"`
	PositionReportedAt  *time.Time     `db:"position_reported_at" json:"position_reported_at,omitempty"`
	ProgressPercentage  int            `db:"progress_percentage" json:"progress_percentage"`
	CompletedAt         *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// HasCompleted reports whether videoID is in the completed set.
func (p *CourseProgress) HasCompleted(videoID string) bool {
	if p == nil {
		return false
	}
	for _, id := range p.CompletedVideos {
		if id == videoID {
			return true
		}
	}
	return false
}

// PositionReport is a playback tick from the player.
type PositionReport struct {
	VideoID    string    `json:"video_id" validate:"required,uuid"`
	Seconds    int       `json:"seconds" validate:"gte=0"`
	ReportedAt time.Time `json:"reported_at"`
}

// CompletionRequest marks a video finished.
type CompletionRequest struct {
	VideoID string `json:"video_id" validate:"required,uuid"`
}

// StudentProgress is one row of a per-course progress report.
type StudentProgress struct {
	UserID             string     `db:"user_id" json:"user_id"`
	FullName           string     `db:"full_name" json:"full_name"`
	Email              string     `db:"email" json:"email"`
	CompletedCount     int        `db:"completed_count" json:"completed_count"`
	ProgressPercentage int        `db:"progress_percentage" json:"progress_percentage"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
