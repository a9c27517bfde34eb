package logger

import (
	"os"

	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Tech-Dev-Skill/tiger-mind/pkg/config"
)

// rollbarHook forwards error level entries to Rollbar when a token is configured.
func rollbarHook(cfg *config.Config) (zap.Option, bool) {
	if cfg.Rollbar.Token == "" {
		return nil, false
	}

	rollbar.SetToken(cfg.Rollbar.Token)
	rollbar.SetEnvironment(cfg.Env)
	rollbar.SetCodeVersion(cfg.Rollbar.CodeVersion)
	if host, err := os.Hostname(); err == nil {
		rollbar.SetServerHost(host)
	}
	rollbar.SetEnabled(true)

	return zap.Hooks(func(entry zapcore.Entry) error {
		if entry.Level < zapcore.ErrorLevel {
			return nil
		}
		extras := map[string]interface{}{
			"logger": entry.LoggerName,
			"caller": entry.Caller.String(),
		}
		if entry.Level >= zapcore.DPanicLevel {
			rollbar.Critical(entry.Message, extras)
			return nil
		}
		rollbar.Error(entry.Message, extras)
		return nil
	}), true
}

// Flush waits for queued error reports to be delivered.
func Flush() {
	rollbar.Wait()
}
