package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

// PaymentMethodSimulated marks subscriptions activated without a payment gateway.
const PaymentMethodSimulated = "simulated"

type subscriptionStore interface {
	FindByUser(ctx context.Context, userID string) (*models.Subscription, error)
	Upsert(ctx context.Context, sub *models.Subscription) error
	CheapestActivePlan(ctx context.Context) (*models.SubscriptionPlan, error)
	FindPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error)
}

// SubscriptionService manages a user's single subscription row.
type SubscriptionService struct {
	repo   subscriptionStore
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
}

// NewSubscriptionService constructs a SubscriptionService.
func NewSubscriptionService(repo subscriptionStore, cache *CacheService, logger *zap.Logger) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// Overview returns the offered plan and the user's current subscription.
func (s *SubscriptionService) Overview(ctx context.Context, userID string) (*models.SubscriptionOverview, error) {
	plan, err := s.repo.CheapestActivePlan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar los planes")
	}
	current, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.SubscriptionOverview{
		Plan:    plan,
		Current: current,
		Active:  current.ActiveAt(s.now()),
	}, nil
}

// Current returns the user's subscription or nil when none exists.
func (s *SubscriptionService) Current(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar la suscripción")
	}
	return sub, nil
}

// Subscribe activates a plan for the user with a simulated payment.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID string, req models.SubscribeRequest) (*models.Subscription, error) {
	plan, err := s.plan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	start := s.now().UTC()
	paymentID := fmt.Sprintf("simulated_payment_%d", start.UnixMilli())
	method := PaymentMethodSimulated
	sub := &models.Subscription{
		UserID:        userID,
		PlanID:        plan.ID,
		Status:        models.SubscriptionActive,
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, plan.DurationDays),
		PaymentID:     &paymentID,
		PaymentMethod: &method,
		AutoRenew:     true,
		PlanName:      &plan.Name,
	}
	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al activar la suscripción")
	}

	_ = s.cache.Invalidate(ctx, AdminDashboardCacheKey)
	s.logger.Info("subscription activated",
		zap.String("user_id", userID),
		zap.String("plan_id", plan.ID),
		zap.Time("end_date", sub.EndDate),
	)
	return sub, nil
}

func (s *SubscriptionService) plan(ctx context.Context, planID string) (*models.SubscriptionPlan, error) {
	var (
		plan *models.SubscriptionPlan
		err  error
	)
	if planID == "" {
		plan, err = s.repo.CheapestActivePlan(ctx)
	} else {
		plan, err = s.repo.FindPlan(ctx, planID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "No hay planes disponibles")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar los planes")
	}
	if !plan.IsActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "El plan seleccionado no está disponible")
	}
	return plan, nil
}
