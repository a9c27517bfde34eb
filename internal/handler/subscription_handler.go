package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/middleware"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/response"
)

type subscriptionService interface {
	Overview(ctx context.Context, userID string) (*models.SubscriptionOverview, error)
	Subscribe(ctx context.Context, userID string, req models.SubscribeRequest) (*models.Subscription, error)
}

// SubscriptionHandler exposes the paywall endpoints.
type SubscriptionHandler struct {
	subscriptions subscriptionService
}

// NewSubscriptionHandler constructs the handler.
func NewSubscriptionHandler(subscriptions subscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// Overview godoc
// @Summary Cheapest plan and the caller's subscription
// @Tags Subscriptions
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/subscriptions [get]
func (h *SubscriptionHandler) Overview(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	overview, err := h.subscriptions.Overview(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "subscription", overview)
}

// Subscribe godoc
// @Summary Activate a plan with simulated payment
// @Tags Subscriptions
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param payload body models.SubscribeRequest false "Plan; empty selects the cheapest"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/subscriptions [post]
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.SubscribeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBind(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Plan inválido"))
			return
		}
	}
	subscription, err := h.subscriptions.Subscribe(c.Request.Context(), claims.UserID, req)
	if err != nil {
		if !wantsJSON(c) {
			redirectWithError(c, SubscriptionPagePath, err)
			return
		}
		response.Error(c, err)
		return
	}
	if !wantsJSON(c) {
		c.Redirect(http.StatusSeeOther, middleware.StudentHomePath+"?subscribed=true")
		return
	}
	response.Created(c, "subscription", subscription)
}
