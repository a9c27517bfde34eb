package models

import "time"

// Subscription statuses.
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// SubscriptionPlan is a purchasable access plan.
type SubscriptionPlan struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	Description  *string `db:"description" json:"description,omitempty"`
	Price        float64 `db:"price" json:"price"`
	DurationDays int     `db:"duration_days" json:"duration_days"`
	IsActive     bool    `db:"is_active" json:"is_active"`
}

// Subscription is the single current subscription row of a user.
type Subscription struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	PlanID        string    `db:"plan_id" json:"plan_id"`
	Status        string    `db:"status" json:"status"`
	StartDate     time.Time `db:"start_date" json:"start_date"`
	EndDate       time.Time `db:"end_date" json:"end_date"`
	PaymentID     *string   `db:"payment_id" json:"payment_id,omitempty"`
	PaymentMethod *string   `db:"payment_method" json:"payment_method,omitempty"`
	AutoRenew     bool      `db:"auto_renew" json:"auto_renew"`
	PlanName      *string   `db:"plan_name" json:"plan_name,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ActiveAt reports whether the subscription grants access at t.
func (s *Subscription) ActiveAt(t time.Time) bool {
	if s == nil {
		return false
	}
	return s.Status == SubscriptionActive && !s.EndDate.Before(t)
}

// SubscriptionOverview is the subscription page view.
type SubscriptionOverview struct {
	Plan    *SubscriptionPlan `json:"plan"`
	Current *Subscription     `json:"current,omitempty"`
	Active  bool              `json:"active"`
}

// SubscribeRequest activates a plan. An empty plan selects the cheapest active one.
type SubscribeRequest struct {
	PlanID string `json:"plan_id" form:"plan_id" validate:"omitempty,uuid"`
}
