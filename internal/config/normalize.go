package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeKOBIS()
	c.normalizeAudience()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	subdirs := []struct {
		field *string
		name  string
		key   string
	}{
		{&c.Paths.MoviesDir, moviesSubdir, "paths.movies_dir"},
		{&c.Paths.YearsDir, yearsSubdir, "paths.years_dir"},
		{&c.Paths.SearchDir, searchSubdir, "paths.search_dir"},
	}
	for _, sub := range subdirs {
		if strings.TrimSpace(*sub.field) == "" {
			*sub.field = filepath.Join(c.Paths.DataDir, sub.name)
		}
		if *sub.field, err = expandPath(*sub.field); err != nil {
			return fmt.Errorf("%s: %w", sub.key, err)
		}
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeKOBIS() {
	if value, ok := os.LookupEnv("KOFIC_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.KOBIS.APIKey = value
	}
	c.KOBIS.APIKey = strings.TrimSpace(c.KOBIS.APIKey)
	c.KOBIS.BaseURL = strings.TrimRight(strings.TrimSpace(c.KOBIS.BaseURL), "/")
	if c.KOBIS.BaseURL == "" {
		c.KOBIS.BaseURL = defaultKOBISBaseURL
	}
	c.KOBIS.UserAgent = strings.TrimSpace(c.KOBIS.UserAgent)
	if c.KOBIS.UserAgent == "" {
		c.KOBIS.UserAgent = defaultKOBISUserAgent
	}
	if c.KOBIS.RequestTimeout <= 0 {
		c.KOBIS.RequestTimeout = defaultRequestTimeout
	}
	if c.KOBIS.MaxAttempts <= 0 {
		c.KOBIS.MaxAttempts = defaultMaxAttempts
	}
	if c.KOBIS.BackoffInitialMS <= 0 {
		c.KOBIS.BackoffInitialMS = defaultBackoffInitialMS
	}
	if c.KOBIS.BackoffMaxMS < c.KOBIS.BackoffInitialMS {
		c.KOBIS.BackoffMaxMS = max(defaultBackoffMaxMS, c.KOBIS.BackoffInitialMS)
	}
}

func (c *Config) normalizeAudience() {
	c.Audience.Mode = strings.ToLower(strings.TrimSpace(c.Audience.Mode))
	if c.Audience.Mode == "" {
		c.Audience.Mode = defaultAudienceMode
	}
	if c.Audience.Weeks == 0 {
		c.Audience.Weeks = defaultAudienceWeeks
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
