package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/pkg/jobs"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/mailer"
)

// Background job types handled by the in-process queue.
const (
	JobSendMail        = "mail.send"
	JobDeleteVideoFile = "video.delete_file"
	JobSweepStaging    = "video.sweep_staging"
)

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

type jobRegistrar interface {
	Handle(jobType string, handler jobs.Handler)
}

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type videoFileMaintainer interface {
	Delete(publicURL string) error
	SweepStaging(ttl time.Duration) ([]string, error)
}

// JobHandlers executes background jobs.
type JobHandlers struct {
	mail       mailSender
	files      videoFileMaintainer
	metrics    *MetricsService
	logger     *zap.Logger
	stagingTTL time.Duration
}

// NewJobHandlers constructs the background job handlers.
func NewJobHandlers(mail mailSender, files videoFileMaintainer, metrics *MetricsService, logger *zap.Logger, stagingTTL time.Duration) *JobHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stagingTTL <= 0 {
		stagingTTL = 6 * time.Hour
	}
	return &JobHandlers{mail: mail, files: files, metrics: metrics, logger: logger, stagingTTL: stagingTTL}
}

// Register binds every handler to its job type.
func (h *JobHandlers) Register(q jobRegistrar) {
	q.Handle(JobSendMail, h.observe(JobSendMail, h.SendMail))
	q.Handle(JobDeleteVideoFile, h.observe(JobDeleteVideoFile, h.DeleteVideoFile))
	q.Handle(JobSweepStaging, h.observe(JobSweepStaging, h.SweepStaging))
}

// SendMail delivers a queued mailer.Message.
func (h *JobHandlers) SendMail(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		return fmt.Errorf("mail job %s: unexpected payload %T", job.ID, job.Payload)
	}
	return h.mail.Send(ctx, msg)
}

// DeleteVideoFile removes a published video file.
func (h *JobHandlers) DeleteVideoFile(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(DeleteFilePayload)
	if !ok {
		return fmt.Errorf("delete job %s: unexpected payload %T", job.ID, job.Payload)
	}
	if err := h.files.Delete(payload.PublicURL); err != nil {
		return err
	}
	h.logger.Info("video file removed", zap.String("video_url", payload.PublicURL))
	return nil
}

// SweepStaging removes abandoned staged uploads.
func (h *JobHandlers) SweepStaging(ctx context.Context, job jobs.Job) error {
	removed, err := h.files.SweepStaging(h.stagingTTL)
	if len(removed) > 0 {
		h.logger.Info("staging sweep removed files", zap.Int("count", len(removed)))
	}
	return err
}

func (h *JobHandlers) observe(jobType string, handler jobs.Handler) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		err := handler(ctx, job)
		h.metrics.RecordJob(jobType, err)
		return err
	}
}
