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

const courseSelect = `SELECT c.id, c.title, c.slug, c.description, c.price, c.category_id, c.is_published, c.instructor_id, c.duration_hours, c.thumbnail_url, cat.name AS category_name, cat.slug AS category_slug, p.full_name AS instructor_name, c.created_at, c.updated_at FROM courses c LEFT JOIN categories cat ON cat.id = c.category_id LEFT JOIN profiles p ON p.id = c.instructor_id`

// CourseRepository provides database access for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new instance of CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ListPublished returns published courses, newest first.
func (r *CourseRepository) ListPublished(ctx context.Context) ([]models.Course, error) {
	query := courseSelect + ` WHERE c.is_published = TRUE ORDER BY c.created_at DESC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list published courses: %w", err)
	}
	return courses, nil
}

// ListAll returns every course, newest first.
func (r *CourseRepository) ListAll(ctx context.Context) ([]models.Course, error) {
	query := courseSelect + ` ORDER BY c.created_at DESC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListByIDs returns the courses in ids.
func (r *CourseRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(courseSelect+` WHERE c.id IN (?) ORDER BY c.created_at DESC`, ids)
	if err != nil {
		return nil, fmt.Errorf("build courses by ids: %w", err)
	}
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list courses by ids: %w", err)
	}
	return courses, nil
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return r.findOne(ctx, courseSelect+` WHERE c.id = $1 LIMIT 1`, id)
}

// FindBySlug returns a course by slug.
func (r *CourseRepository) FindBySlug(ctx context.Context, slug string) (*models.Course, error) {
	return r.findOne(ctx, courseSelect+` WHERE c.slug = $1 LIMIT 1`, slug)
}

func (r *CourseRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.Course, error) {
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, arg); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// Create inserts a course. Duplicate slugs yield ErrDuplicate.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, title, slug, description, price, category_id, is_published, instructor_id, duration_hours, thumbnail_url, created_at, updated_at) VALUES (:id, :title, :slug, :description, :price, :category_id, :is_published, :instructor_id, :duration_hours, :thumbnail_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update writes all mutable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, slug = :slug, description = :description, price = :price, category_id = :category_id, is_published = :is_published, duration_hours = :duration_hours, thumbnail_url = :thumbnail_url, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if isInvalidText(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("update course: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a course; modules and videos cascade.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		if isInvalidText(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("delete course: %w", err)
	}
	return expectAffected(res)
}

// Count returns the number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses`); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return total, nil
}

// Recent returns the newest courses.
func (r *CourseRepository) Recent(ctx context.Context, limit int) ([]models.CourseSummary, error) {
	const query = `SELECT id, title, price, is_published, created_at FROM courses ORDER BY created_at DESC LIMIT $1`
	var courses []models.CourseSummary
	if err := r.db.SelectContext(ctx, &courses, query, limit); err != nil {
		return nil, fmt.Errorf("recent courses: %w", err)
	}
	return courses, nil
}
