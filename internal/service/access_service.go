package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

type subscriptionChecker interface {
	HasActive(ctx context.Context, userID string, now time.Time) (bool, error)
}

// AccessService decides whether a viewer may play a video.
type AccessService struct {
	subs   subscriptionChecker
	logger *zap.Logger
	now    func() time.Time
}

// NewAccessService constructs an AccessService.
func NewAccessService(subs subscriptionChecker, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{subs: subs, logger: logger, now: time.Now}
}

// HasActiveSubscription reports whether userID holds a subscription that is
// active and not past its end date.
func (s *AccessService) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	active, err := s.subs.HasActive(ctx, userID, s.now().UTC())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al verificar la suscripción")
	}
	return active, nil
}

// CanPlay reports whether viewer may play video. Admins play everything and free
// previews need no subscription.
func (s *AccessService) CanPlay(ctx context.Context, viewer models.UserInfo, video *models.Video) (bool, error) {
	if video == nil {
		return false, nil
	}
	if viewer.Role.IsAdmin() || video.IsFreePreview {
		return true, nil
	}
	return s.HasActiveSubscription(ctx, viewer.ID)
}
