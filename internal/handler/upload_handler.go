package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/response"
)

// formOverhead is the body allowance for the non-file multipart fields.
const formOverhead = 1 << 20

type videoUploader interface {
	MaxFileSize() int64
	Upload(ctx context.Context, actor models.UserInfo, upload models.VideoUpload, file io.Reader) (*models.Video, error)
}

// UploadHandler accepts admin video uploads.
type UploadHandler struct {
	uploads videoUploader
}

// NewUploadHandler constructs the handler.
func NewUploadHandler(uploads videoUploader) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Video godoc
// @Summary Upload a course video
// @Tags Admin
// @Accept multipart/form-data
// @Produce json
// @Param video formData file true "Video file"
// @Param courseId formData string true "Course ID"
// @Param moduleId formData string true "Module ID"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param orderIndex formData int false "Position in the module"
// @Param isFreePreview formData bool false "Playable without subscription"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/upload/video [post]
func (h *UploadHandler) Video(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}

	maxSize := h.uploads.MaxFileSize()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+formOverhead)
	fileHeader, err := c.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.ErrFileTooLarge)
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "No se proporcionó archivo"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "No se pudo leer el archivo"))
		return
	}
	defer src.Close()

	orderIndex, _ := strconv.Atoi(strings.TrimSpace(c.PostForm("orderIndex")))
	upload := models.VideoUpload{
		CourseID:      strings.TrimSpace(c.PostForm("courseId")),
		ModuleID:      strings.TrimSpace(c.PostForm("moduleId")),
		Title:         strings.TrimSpace(c.PostForm("title")),
		Description:   c.PostForm("description"),
		OrderIndex:    orderIndex,
		IsFreePreview: c.PostForm("isFreePreview") == "true",
		FileName:      fileHeader.Filename,
		ContentType:   fileHeader.Header.Get("Content-Type"),
		Size:          fileHeader.Size,
	}

	video, err := h.uploads.Upload(c.Request.Context(), claims.Info(), upload, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "video", video)
}
