package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tech-Dev-Skill/tiger-mind/pkg/jobs"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/mailer"
)

type capturingMailer struct {
	sent []mailer.Message
	err  error
}

func (c *capturingMailer) Send(ctx context.Context, msg mailer.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

type handlerRegistry map[string]jobs.Handler

func (r handlerRegistry) Handle(jobType string, handler jobs.Handler) {
	r[jobType] = handler
}

func TestJobHandlersSendMail(t *testing.T) {
	mail := &capturingMailer{}
	metrics := NewMetricsService()
	registry := handlerRegistry{}
	NewJobHandlers(mail, newTestVideoStore(t), metrics, nil, 0).Register(registry)

	err := registry[JobSendMail](context.Background(), jobs.Job{Type: JobSendMail, Payload: mailer.Message{To: "ana@example.com", Subject: "Hola"}})
	require.NoError(t, err)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "ana@example.com", mail.sent[0].To)

	err = registry[JobSendMail](context.Background(), jobs.Job{Type: JobSendMail, Payload: "oops"})
	assert.Error(t, err)

	mail.err = errors.New("smtp down")
	err = registry[JobSendMail](context.Background(), jobs.Job{Type: JobSendMail, Payload: mailer.Message{To: "x@example.com"}})
	assert.Error(t, err)
	assert.Equal(t, uint64(2), metrics.Snapshot().JobsFailed)
}

func TestJobHandlersDeleteVideoFile(t *testing.T) {
	store := newTestVideoStore(t)
	staged, err := store.Stage(strings.NewReader("video"), ".mp4", 0)
	require.NoError(t, err)
	require.NoError(t, store.Publish(staged, "c1"))
	publicURL := store.PublicURL("c1", staged.Name)

	h := NewJobHandlers(&capturingMailer{}, store, nil, nil, 0)
	require.NoError(t, h.DeleteVideoFile(context.Background(), jobs.Job{Payload: DeleteFilePayload{PublicURL: publicURL}}))

	_, err = os.Stat(filepath.Join(store.Root(), "c1", staged.Name))
	assert.True(t, os.IsNotExist(err))
}

func TestJobHandlersSweepStaging(t *testing.T) {
	store := newTestVideoStore(t)
	old, err := store.Stage(strings.NewReader("old"), ".mp4", 0)
	require.NoError(t, err)
	fresh, err := store.Stage(strings.NewReader("fresh"), ".mp4", 0)
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.Root(), ".staging", old.Name), past, past))

	h := NewJobHandlers(&capturingMailer{}, store, nil, nil, time.Hour)
	require.NoError(t, h.SweepStaging(context.Background(), jobs.Job{Type: JobSweepStaging}))

	_, err = os.Stat(filepath.Join(store.Root(), ".staging", old.Name))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(store.Root(), ".staging", fresh.Name))
	assert.NoError(t, err)
}
