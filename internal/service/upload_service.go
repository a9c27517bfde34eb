package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/storage"
)

// sniffLen is the number of leading bytes inspected when the declared type is unusable.
const sniffLen = 3072

// DefaultAllowedVideoTypes is used when no whitelist is configured.
var DefaultAllowedVideoTypes = []string{"video/mp4", "video/mkv", "video/avi", "video/webm", "video/mov"}

// sniffed content types reported under different names than the whitelist uses.
var videoTypeAliases = map[string]string{
	"video/x-matroska": "video/mkv",
	"video/x-msvideo":  "video/avi",
	"video/quicktime":  "video/mov",
}

type videoFileStore interface {
	Stage(r io.Reader, ext string, limit int64) (storage.StagedFile, error)
	PublicURL(courseID, name string) string
	Publish(staged storage.StagedFile, courseID string) error
	Discard(staged storage.StagedFile) error
}

type moduleFinder interface {
	FindByID(ctx context.Context, id string) (*models.Module, error)
}

type videoInserter interface {
	Create(ctx context.Context, video *models.Video) error
	Delete(ctx context.Context, id string) (string, error)
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// UploadService validates, stores and registers uploaded videos.
type UploadService struct {
	store     videoFileStore
	modules   moduleFinder
	videos    videoInserter
	audit     auditWriter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	maxSize   int64
	allowed   map[string]struct{}
}

// NewUploadService constructs an UploadService.
func NewUploadService(store videoFileStore, modules moduleFinder, videos videoInserter, audit auditWriter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg UploadConfig) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 100 * 1024 * 1024
	}
	types := cfg.AllowedMIMEs
	if len(types) == 0 {
		types = DefaultAllowedVideoTypes
	}
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &UploadService{
		store:     store,
		modules:   modules,
		videos:    videos,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		maxSize:   cfg.MaxFileSizeBytes,
		allowed:   allowed,
	}
}

// MaxFileSize returns the largest accepted upload in bytes.
func (s *UploadService) MaxFileSize() int64 {
	return s.maxSize
}

// Upload validates the file, stages it, records the video row and publishes the file.
// Nothing is written to disk unless type, size and module checks pass.
func (s *UploadService) Upload(ctx context.Context, actor models.UserInfo, upload models.VideoUpload, file io.Reader) (*models.Video, error) {
	video, written, err := s.upload(ctx, actor, upload, file)
	s.metrics.RecordUpload(err == nil, written)
	return video, err
}

func (s *UploadService) upload(ctx context.Context, actor models.UserInfo, upload models.VideoUpload, file io.Reader) (*models.Video, int64, error) {
	if file == nil {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "No se proporcionó archivo")
	}
	if err := s.validator.Struct(upload); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Curso, módulo y título son requeridos")
	}

	reader, contentType, err := s.contentType(upload.ContentType, file)
	if err != nil {
		return nil, 0, err
	}
	if _, ok := s.allowed[contentType]; !ok {
		return nil, 0, appErrors.Clone(appErrors.ErrFileType, "")
	}
	if upload.Size > s.maxSize {
		return nil, 0, appErrors.Clone(appErrors.ErrFileTooLarge, "")
	}

	module, err := s.modules.FindByID(ctx, upload.ModuleID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al verificar el módulo")
	}
	if err != nil || module.CourseID != upload.CourseID {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "El módulo no pertenece al curso")
	}

	staged, err := s.store.Stage(reader, fileExtension(upload.FileName, contentType), s.maxSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, 0, appErrors.Clone(appErrors.ErrFileTooLarge, "")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al guardar el archivo")
	}

	video := &models.Video{
		CourseID:      upload.CourseID,
		ModuleID:      upload.ModuleID,
		Title:         strings.TrimSpace(upload.Title),
		VideoURL:      s.store.PublicURL(upload.CourseID, staged.Name),
		OrderIndex:    upload.OrderIndex,
		IsFreePreview: upload.IsFreePreview,
	}
	if d := strings.TrimSpace(upload.Description); d != "" {
		video.Description = &d
	}

	if err := s.videos.Create(ctx, video); err != nil {
		if discardErr := s.store.Discard(staged); discardErr != nil {
			s.logger.Error("failed to remove staged upload after insert failure", zap.String("file", staged.Name), zap.Error(discardErr))
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al guardar en la base de datos")
	}

	if err := s.store.Publish(staged, upload.CourseID); err != nil {
		if _, delErr := s.videos.Delete(ctx, video.ID); delErr != nil {
			s.logger.Error("failed to remove video row after publish failure", zap.String("video_id", video.ID), zap.Error(delErr))
		}
		if discardErr := s.store.Discard(staged); discardErr != nil {
			s.logger.Error("failed to remove staged upload after publish failure", zap.String("file", staged.Name), zap.Error(discardErr))
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al publicar el video")
	}

	if s.audit != nil {
		videoID := video.ID
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.ID,
			Action:     models.AuditActionVideoUpload,
			Resource:   "video",
			ResourceID: &videoID,
		}); err != nil {
			s.logger.Warn("failed to record audit log", zap.String("action", models.AuditActionVideoUpload), zap.Error(err))
		}
	}

	s.logger.Info("video uploaded",
		zap.String("video_id", video.ID),
		zap.String("course_id", video.CourseID),
		zap.Int64("bytes", staged.Size),
	)
	return video, staged.Size, nil
}

// contentType returns the normalized type of the upload and a reader that still
// yields the full stream.
func (s *UploadService) contentType(declared string, file io.Reader) (io.Reader, string, error) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		return file, normalizeVideoType(declared), nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "No se pudo leer el archivo")
	}
	head = head[:n]
	detected := mimetype.Detect(head).String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	return io.MultiReader(bytes.NewReader(head), file), normalizeVideoType(detected), nil
}

func normalizeVideoType(contentType string) string {
	if alias, ok := videoTypeAliases[contentType]; ok {
		return alias
	}
	return contentType
}

func fileExtension(name, contentType string) string {
	if ext := filepath.Ext(name); ext != "" && len(ext) <= 6 {
		return strings.ToLower(ext)
	}
	if m := mimetype.Lookup(contentType); m != nil {
		return m.Extension()
	}
	return "." + strings.TrimPrefix(contentType, "video/")
}
