package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Audience modes accepted by the details stage.
const (
	AudienceOff    = "off"
	AudienceRecent = "recent"
	AudienceAll    = "all"
)

// MaxAudienceWeeks caps how many weekly reports a single estimate may probe.
const MaxAudienceWeeks = 12

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateKOBIS(); err != nil {
		return err
	}
	if err := c.validateBudgets(); err != nil {
		return err
	}
	if err := c.validateAudience(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateKOBIS() error {
	parsed, err := url.Parse(c.KOBIS.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("kobis.base_url must be an absolute URL, got %q", c.KOBIS.BaseURL)
	}
	if c.KOBIS.DailyQuota < 0 {
		return errors.New("kobis.daily_quota must be zero (unlimited) or positive")
	}
	if c.KOBIS.RateIntervalMS < 0 {
		return errors.New("kobis.rate_interval_ms must not be negative")
	}
	if c.KOBIS.BreakerFailures < 0 {
		return errors.New("kobis.breaker_failures must be zero (disabled) or positive")
	}
	return nil
}

func (c *Config) validateBudgets() error {
	if c.Details.Budget <= 0 {
		return errors.New("details.budget must be positive")
	}
	if c.Details.MaxSaves <= 0 {
		return errors.New("details.max_saves must be positive")
	}
	if c.Backfill.Budget <= 0 {
		return errors.New("backfill.budget must be positive")
	}
	return nil
}

func (c *Config) validateAudience() error {
	switch c.Audience.Mode {
	case AudienceOff, AudienceRecent, AudienceAll:
	default:
		return fmt.Errorf("audience.mode: unsupported value %q (want off, recent, or all)", c.Audience.Mode)
	}
	if c.Audience.Weeks < 1 || c.Audience.Weeks > MaxAudienceWeeks {
		return fmt.Errorf("audience.weeks must be between 1 and %d", MaxAudienceWeeks)
	}
	if c.Audience.RecentDays < 0 {
		return errors.New("audience.recent_days must not be negative")
	}
	if c.Audience.OffsetDays < 0 {
		return errors.New("audience.offset_days must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
