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

// SubscriptionRepository provides database access for subscriptions and plans.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository creates a new instance of SubscriptionRepository.
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindByUser returns the user's current subscription row.
func (r *SubscriptionRepository) FindByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	const query = `SELECT s.id, s.user_id, s.plan_id, s.status, s.start_date, s.end_date, s.payment_id, s.payment_method, s.auto_renew, sp.name AS plan_name, s.created_at, s.updated_at FROM subscriptions s LEFT JOIN subscription_plans sp ON sp.id = s.plan_id WHERE s.user_id = $1 LIMIT 1`
	var sub models.Subscription
	if err := r.db.GetContext(ctx, &sub, query, userID); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return &sub, nil
}

// HasActive reports whether userID has an active, unexpired subscription at now.
func (r *SubscriptionRepository) HasActive(ctx context.Context, userID string, now time.Time) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM subscriptions WHERE user_id = $1 AND status = 'active' AND end_date >= $2)`
	var active bool
	if err := r.db.GetContext(ctx, &active, query, userID, now); err != nil {
		return false, fmt.Errorf("check active subscription: %w", err)
	}
	return active, nil
}

// Upsert writes the user's subscription, replacing any previous one.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	const query = `INSERT INTO subscriptions (id, user_id, plan_id, status, start_date, end_date, payment_id, payment_method, auto_renew, created_at, updated_at)
VALUES (:id, :user_id, :plan_id, :status, :start_date, :end_date, :payment_id, :payment_method, :auto_renew, :created_at, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET plan_id = EXCLUDED.plan_id, status = EXCLUDED.status, start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date, payment_id = EXCLUDED.payment_id, payment_method = EXCLUDED.payment_method, auto_renew = EXCLUDED.auto_renew, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// Count returns the number of subscription rows.
func (r *SubscriptionRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM subscriptions`); err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return total, nil
}

// CheapestActivePlan returns the lowest priced active plan.
func (r *SubscriptionRepository) CheapestActivePlan(ctx context.Context) (*models.SubscriptionPlan, error) {
	const query = `SELECT id, name, description, price, duration_days, is_active FROM subscription_plans WHERE is_active = TRUE ORDER BY price ASC LIMIT 1`
	var plan models.SubscriptionPlan
	if err := r.db.GetContext(ctx, &plan, query); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("cheapest plan: %w", err)
	}
	return &plan, nil
}

// FindPlan returns a plan by identifier.
func (r *SubscriptionRepository) FindPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	const query = `SELECT id, name, description, price, duration_days, is_active FROM subscription_plans WHERE id = $1 LIMIT 1`
	var plan models.SubscriptionPlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	return &plan, nil
}
