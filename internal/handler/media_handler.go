package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/service"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/response"
)

type streamService interface {
	StreamLink(ctx context.Context, viewer models.UserInfo, video *models.Video) (*service.StreamLink, error)
	Open(ctx context.Context, videoID, token string) (string, error)
}

// MediaHandler issues signed stream links and serves video files.
type MediaHandler struct {
	videos videoLookup
	media  streamService
	logger *zap.Logger
}

// NewMediaHandler constructs the handler.
func NewMediaHandler(videos videoLookup, media streamService, logger *zap.Logger) *MediaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaHandler{videos: videos, media: media, logger: logger}
}

// StreamLink godoc
// @Summary Signed stream URL for a video
// @Tags Media
// @Produce json
// @Param id path string true "Video ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Router /api/videos/{id}/stream [get]
func (h *MediaHandler) StreamLink(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	vc, err := h.videos.Video(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.media.StreamLink(c.Request.Context(), claims.Info(), &vc.Video)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "stream", link)
}

// Stream serves the video file behind a signed token with range support.
func (h *MediaHandler) Stream(c *gin.Context) {
	path, err := h.media.Open(c.Request.Context(), c.Param("id"), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := os.Open(path)
	if err != nil {
		h.logger.Warn("video file missing", zap.String("video_id", c.Param("id")), zap.Error(err))
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "Video no encontrado"))
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al leer el video"))
		return
	}
	c.Header("Cache-Control", "private, max-age=0")
	http.ServeContent(c.Writer, c.Request, filepath.Base(path), info.ModTime(), file)
}
