package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/storage"
)

// MediaPathPrefix is the route prefix signed stream URLs point at.
const MediaPathPrefix = "/media/videos/"

var errStreamDenied = appErrors.New("STREAM_TOKEN_INVALID", 403, "Enlace de reproducción inválido o expirado")

type videoFinder interface {
	FindByID(ctx context.Context, id string) (*models.Video, error)
}

type playChecker interface {
	CanPlay(ctx context.Context, viewer models.UserInfo, video *models.Video) (bool, error)
}

type streamSigner interface {
	Sign(videoID, userID string) (string, time.Time, error)
	Verify(token string) (storage.StreamGrant, error)
}

type fileResolver interface {
	Resolve(publicURL string) (string, error)
}

// StreamLink is an expiring URL a player can fetch a video from.
type StreamLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MediaService issues and redeems signed video stream URLs.
type MediaService struct {
	videos videoFinder
	access playChecker
	signer streamSigner
	files  fileResolver
	logger *zap.Logger
}

// NewMediaService constructs a MediaService.
func NewMediaService(videos videoFinder, access playChecker, signer streamSigner, files fileResolver, logger *zap.Logger) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaService{videos: videos, access: access, signer: signer, files: files, logger: logger}
}

// StreamLink signs a stream URL for video after checking the viewer may play it.
func (s *MediaService) StreamLink(ctx context.Context, viewer models.UserInfo, video *models.Video) (*StreamLink, error) {
	allowed, err := s.access.CanPlay(ctx, viewer, video)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrSubscriptionNeeded, "")
	}

	token, expiresAt, err := s.signer.Sign(video.ID, viewer.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "No se pudo generar el enlace del video")
	}
	return &StreamLink{
		URL:       MediaPathPrefix + url.PathEscape(video.ID) + "?token=" + url.QueryEscape(token),
		ExpiresAt: expiresAt,
	}, nil
}

// Open validates a stream token for videoID and returns the on-disk path of the file.
func (s *MediaService) Open(ctx context.Context, videoID, token string) (string, error) {
	grant, err := s.signer.Verify(token)
	if err != nil || grant.VideoID != videoID {
		if err == nil {
			err = storage.ErrTokenInvalid
		}
		s.logger.Debug("stream token rejected", zap.String("video_id", videoID), zap.Error(err))
		return "", appErrors.Wrap(err, errStreamDenied.Code, errStreamDenied.Status, errStreamDenied.Message)
	}

	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "Video no encontrado")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al cargar el video")
	}
	path, err := s.files.Resolve(video.VideoURL)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "Video no encontrado")
	}
	return path, nil
}
