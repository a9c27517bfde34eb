package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/response"
)

type videoLookup interface {
	Video(ctx context.Context, id string) (*models.VideoContext, error)
}

type playGate interface {
	CanPlay(ctx context.Context, viewer models.UserInfo, video *models.Video) (bool, error)
}

type progressTracker interface {
	Get(ctx context.Context, userID, courseID string) (*models.CourseProgress, error)
	RecordPosition(ctx context.Context, userID string, video *models.Video, seconds int, reportedAt time.Time) (bool, error)
	MarkComplete(ctx context.Context, userID string, video *models.Video) (*models.CourseProgress, error)
}

// ProgressHandler records playback progress for the player.
type ProgressHandler struct {
	videos   videoLookup
	access   playGate
	progress progressTracker
	logger   *zap.Logger
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(videos videoLookup, access playGate, progress progressTracker, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{videos: videos, access: access, progress: progress, logger: logger}
}

// Get godoc
// @Summary Progress of the caller in a course
// @Tags Progress
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/progress/{courseId} [get]
func (h *ProgressHandler) Get(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	progress, err := h.progress.Get(c.Request.Context(), claims.UserID, c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "progress", progress)
}

// Position godoc
// @Summary Report the playback position
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body models.PositionReport true "Position"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Router /api/progress/position [post]
func (h *ProgressHandler) Position(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.PositionReport
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Datos de progreso inválidos"))
		return
	}
	video, ok := h.playableVideo(c, claims, req.VideoID)
	if !ok {
		return
	}
	applied, err := h.progress.RecordPosition(c.Request.Context(), claims.UserID, video, req.Seconds, req.ReportedAt)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"applied": applied})
}

// Complete godoc
// @Summary Mark a video as completed
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body models.CompletionRequest true "Video"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Router /api/progress/complete [post]
func (h *ProgressHandler) Complete(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Datos de progreso inválidos"))
		return
	}
	video, ok := h.playableVideo(c, claims, req.VideoID)
	if !ok {
		return
	}
	progress, err := h.progress.MarkComplete(c.Request.Context(), claims.UserID, video)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "progress", progress)
}

// playableVideo loads the video and rejects viewers without access before any write.
func (h *ProgressHandler) playableVideo(c *gin.Context, claims *models.JWTClaims, videoID string) (*models.Video, bool) {
	vc, err := h.videos.Video(c.Request.Context(), videoID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	allowed, err := h.access.CanPlay(c.Request.Context(), claims.Info(), &vc.Video)
	if err != nil {
		h.logger.Error("access check failed", zap.String("user_id", claims.UserID), zap.String("video_id", videoID), zap.Error(err))
		response.Error(c, err)
		return nil, false
	}
	if !allowed {
		response.Error(c, appErrors.ErrSubscriptionNeeded)
		return nil, false
	}
	return &vc.Video, true
}
