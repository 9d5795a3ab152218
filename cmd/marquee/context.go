package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"marquee/internal/config"
	"marquee/internal/logging"
	"marquee/internal/pipeline"
)

type commandContext struct {
	configFlag *string
	logLevel   *string
	logFormat  *string

	configOnce  sync.Once
	config      *config.Config
	configErr   error
	configPath  string
	configFound bool

	logger   *slog.Logger
	closeLog func() error
}

func newCommandContext(configFlag, logLevel, logFormat *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		logLevel:   logLevel,
		logFormat:  logFormat,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, found, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.configPath, c.configFound = resolved, found
		if c.logLevel != nil && strings.TrimSpace(*c.logLevel) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevel))
		}
		if c.logFormat != nil && strings.TrimSpace(*c.logFormat) != "" {
			cfg.Logging.Format = strings.ToLower(strings.TrimSpace(*c.logFormat))
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) runLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	if removed := logging.PruneLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays); removed > 0 {
		logger.Debug("old run logs pruned", logging.Int("removed", removed))
	}
	c.logger = logger
	c.closeLog = closeLog
	return logger, nil
}

// withEnv opens the pipeline environment for fn. Mutating stages pass
// locked=true so two runs never write the data tree at once.
func (c *commandContext) withEnv(locked bool, fn func(*pipeline.Env) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.runLogger()
	if err != nil {
		return err
	}
	if locked {
		lock, err := pipeline.AcquireLock(cfg.LockPath())
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("release run lock failed", logging.Error(err))
			}
		}()
	}
	env, err := pipeline.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}

func (c *commandContext) close() error {
	if c.closeLog == nil {
		return nil
	}
	err := c.closeLog()
	c.closeLog = nil
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
