package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Tech-Dev-Skill/tiger-mind/pkg/config"
)

func TestNewSelectsTransport(t *testing.T) {
	_, isLog := New(config.MailConfig{}, nil).(*LogMailer)
	assert.True(t, isLog)

	_, isSendGrid := New(config.MailConfig{SendGridAPIKey: "key", FromName: "TigerMind", FromEmail: "a@b.c"}, nil).(*SendGridMailer)
	assert.True(t, isSendGrid)
}

func TestSendGridPrepare(t *testing.T) {
	m := NewSendGridMailer("key", "TigerMind", "no-reply@tigermind.dev")
	v3 := m.prepare(Message{To: "ana@example.com", Subject: "Hola", Text: "texto", HTML: "<p>texto</p>"})

	require.Len(t, v3.Personalizations, 1)
	assert.Equal(t, "[TigerMind] Hola", v3.Personalizations[0].Subject)
	assert.Equal(t, "ana@example.com", v3.Personalizations[0].To[0].Address)
	assert.Len(t, v3.Content, 2)
}

func TestLogMailerLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, NewLogMailer(zap.New(core)).Send(context.Background(), Message{To: "ana@example.com", Subject: "Hola"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "ana@example.com", logs.All()[0].ContextMap()["to"])
}
