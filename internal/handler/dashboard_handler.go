package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/middleware"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/response"
)

type dashboardService interface {
	Admin(ctx context.Context) (*models.AdminDashboard, bool, error)
	Student(ctx context.Context, user models.UserInfo) (*models.StudentDashboard, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Admin godoc
// @Summary Admin dashboard counters and recent activity
// @Tags Dashboard
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/dashboard [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	start := time.Now()
	summary, cacheHit, err := h.service.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, gin.H{
		"dashboard":          summary,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

// Student godoc
// @Summary Student home data
// @Tags Dashboard
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/dashboard [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	summary, err := h.service.Student(c.Request.Context(), claims.Info())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "dashboard", summary)
}
