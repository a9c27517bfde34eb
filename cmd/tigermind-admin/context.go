package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/pkg/config"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/database"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/logger"
)

// commandContext lazily loads the shared dependencies of the commands.
type commandContext struct {
	configOnce sync.Once
	config     *config.Config
	logger     *zap.Logger
	configErr  error

	dbOnce sync.Once
	db     *sqlx.DB
	dbErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, *zap.Logger, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		logr, err := logger.New(cfg)
		if err != nil {
			c.configErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.config = cfg
		c.logger = logr
	})
	return c.config, c.logger, c.configErr
}

func (c *commandContext) ensureDB(ctx context.Context) (*sqlx.DB, error) {
	cfg, _, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.dbOnce.Do(func() {
		c.db, c.dbErr = database.NewPostgres(ctx, cfg.Database)
	})
	return c.db, c.dbErr
}

func (c *commandContext) close() {
	if c.db != nil {
		_ = c.db.Close()
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}
