package models

import "time"

// Category groups courses in the catalog.
type Category struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Slug string `db:"slug" json:"slug"`
}

// Course is a sellable unit of content. Joined category/instructor columns are
// populated by listing queries only.
type Course struct {
	ID             string    `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	Slug           string    `db:"slug" json:"slug"`
	Description    string    `db:"description" json:"description"`
	Price          float64   `db:"price" json:"price"`
	CategoryID     *string   `db:"category_id" json:"category_id"`
	IsPublished    bool      `db:"is_published" json:"is_published"`
	InstructorID   *string   `db:"instructor_id" json:"instructor_id"`
	DurationHours  int       `db:"duration_hours" json:"duration_hours"`
	ThumbnailURL   *string   `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	CategoryName   *string   `db:"category_name" json:"category_name,omitempty"`
	CategorySlug   *string   `db:"category_slug" json:"category_slug,omitempty"`
	InstructorName *string   `db:"instructor_name" json:"instructor_name,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CourseInput is the admin create/update payload. Pointer fields distinguish
// "absent" from zero values on update.
type CourseInput struct {
	Title         *string  `json:"title"`
	Slug          *string  `json:"slug"`
	Description   *string  `json:"description"`
	Price         *float64 `json:"price"`
	CategoryID    *string  `json:"category_id"`
	IsPublished   *bool    `json:"is_published"`
	DurationHours *int     `json:"duration_hours"`
	ThumbnailURL  *string  `json:"thumbnail_url"`
}

// Module is an ordered grouping of videos within a course.
type Module struct {
	ID              string    `db:"id" json:"id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	Title           string    `db:"title" json:"title"`
	Description     *string   `db:"description" json:"description,omitempty"`
	OrderIndex      int       `db:"order_index" json:"order_index"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	IsFreePreview   bool      `db:"is_free_preview" json:"is_free_preview"`
	VideoCount      int       `db:"video_count" json:"video_count"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ModuleInput creates a module.
type ModuleInput struct {
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description" validate:"omitempty,max=2000"`
	OrderIndex      int    `json:"order_index" validate:"gte=0"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
	IsFreePreview   bool   `json:"is_free_preview"`
}

// Video is a playable lesson file.
type Video struct {
	ID              string    `db:"id" json:"id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	ModuleID        string    `db:"module_id" json:"module_id"`
	Title           string    `db:"title" json:"title"`
	Description     *string   `db:"description" json:"description,omitempty"`
	VideoURL        string    `db:"video_url" json:"video_url"`
	OrderIndex      int       `db:"order_index" json:"order_index"`
	IsFreePreview   bool      `db:"is_free_preview" json:"is_free_preview"`
	DurationSeconds int       `db:"duration_seconds" json:"duration_seconds"`
	ModuleTitle     *string   `db:"module_title" json:"module_title,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ModuleWithVideos is a module and its ordered videos.
type ModuleWithVideos struct {
	Module
	Videos []Video `json:"videos"`
}

// CourseDetail is the student-facing course view.
type CourseDetail struct {
	Course  Course             `json:"course"`
	Modules []ModuleWithVideos `json:"modules"`
}

// VideoCount totals the videos of a course detail.
func (d CourseDetail) VideoCount() int {
	total := 0
	for _, m := range d.Modules {
		total += len(m.Videos)
	}
	return total
}

// AdminCourseDetail adds administrative counters to a course.
type AdminCourseDetail struct {
	Course          Course   `json:"course"`
	Modules         []Module `json:"modules"`
	VideoCount      int      `json:"video_count"`
	EnrollmentCount int      `json:"enrollment_count"`
}

// VideoContext is a video together with its course and module.
type VideoContext struct {
	Video  Video  `json:"video"`
	Course Course `json:"course"`
	Module Module `json:"module"`
}

// CourseSummary is a compact course row for dashboards.
type CourseSummary struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Price       float64   `db:"price" json:"price"`
	IsPublished bool      `db:"is_published" json:"is_published"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// VideoUpload describes an uploaded video file and its metadata.
type VideoUpload struct {
	CourseID      string `validate:"required"`
	ModuleID      string `validate:"required"`
	Title         string `validate:"required,max=200"`
	Description   string `validate:"omitempty,max=5000"`
	OrderIndex    int    `validate:"gte=0"`
	IsFreePreview bool
	FileName      string
	ContentType   string
	Size          int64
}
