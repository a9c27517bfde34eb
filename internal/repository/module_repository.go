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

// ModuleRepository provides database access for course modules.
type ModuleRepository struct {
	db *sqlx.DB
}

// NewModuleRepository creates a new instance of ModuleRepository.
func NewModuleRepository(db *sqlx.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// ListByCourse returns a course's modules ordered by order_index with their video counts.
func (r *ModuleRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Module, error) {
	const query = `SELECT m.id, m.course_id, m.title, m.description, m.order_index, m.duration_minutes, m.is_free_preview, m.created_at, COUNT(v.id) AS video_count FROM course_modules m LEFT JOIN videos v ON v.module_id = m.id WHERE m.course_id = $1 GROUP BY m.id ORDER BY m.order_index, m.created_at`
	var modules []models.Module
	if err := r.db.SelectContext(ctx, &modules, query, courseID); err != nil {
		if isInvalidText(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list modules: %w", err)
	}
	return modules, nil
}

// FindByID returns a module by identifier.
func (r *ModuleRepository) FindByID(ctx context.Context, id string) (*models.Module, error) {
	const query = `SELECT id, course_id, title, description, order_index, duration_minutes, is_free_preview, created_at FROM course_modules WHERE id = $1 LIMIT 1`
	var module models.Module
	if err := r.db.GetContext(ctx, &module, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find module: %w", err)
	}
	return &module, nil
}

// Create inserts a module.
func (r *ModuleRepository) Create(ctx context.Context, module *models.Module) error {
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	module.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO course_modules (id, course_id, title, description, order_index, duration_minutes, is_free_preview, created_at) VALUES (:id, :course_id, :title, :description, :order_index, :duration_minutes, :is_free_preview, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("create module: %w", err)
	}
	return nil
}
