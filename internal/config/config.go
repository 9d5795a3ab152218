package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"marquee/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the on-disk layout of the data tree and runtime state.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	MoviesDir string `toml:"movies_dir"`
	YearsDir  string `toml:"years_dir"`
	SearchDir string `toml:"search_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// KOBIS contains configuration for the upstream catalog API.
type KOBIS struct {
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url"`
	UserAgent        string `toml:"user_agent"`
	DailyQuota       int    `toml:"daily_quota"`
	RequestTimeout   int    `toml:"request_timeout"`
	RateIntervalMS   int    `toml:"rate_interval_ms"`
	MaxAttempts      int    `toml:"max_attempts"`
	BackoffInitialMS int    `toml:"backoff_initial_ms"`
	BackoffMaxMS     int    `toml:"backoff_max_ms"`
	BreakerFailures  int    `toml:"breaker_failures"`
}

// Details contains configuration for the per-year detail fetch stage.
type Details struct {
	Budget   int `toml:"budget"`
	MaxSaves int `toml:"max_saves"`
}

// Audience contains configuration for cumulative audience estimation.
type Audience struct {
	// Mode is one of "off", "recent", or "all".
	Mode       string `toml:"mode"`
	RecentDays int    `toml:"recent_days"`
	// Weeks bounds how many weekly reports are probed per title (1..12).
	Weeks      int `toml:"weeks"`
	OffsetDays int `toml:"offset_days"`
}

// Backfill contains configuration for the contributor backfill stage.
type Backfill struct {
	Budget int `toml:"budget"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for marquee.
//
// Configuration sections by subsystem:
//   - Paths: data tree (movies, years, search) and runtime state directories
//   - KOBIS: upstream credential, quota, retry, and rate shaping
//   - Details: per-year detail fetch budget and save cap
//   - Audience: cumulative audience estimation mode and probing window
//   - Backfill: contributor backfill budget
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	KOBIS    KOBIS    `toml:"kobis"`
	Details  Details  `toml:"details"`
	Audience Audience `toml:"audience"`
	Backfill Backfill `toml:"backfill"`
	Logging  Logging  `toml:"logging"`
}

const defaultConfigLocation = "~/.config/marquee/config.toml"

// DefaultConfigPath returns the per-user configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigLocation)
}

// Load reads the configuration at path, or searches the user config
// directory and then ./marquee.toml when path is empty. Missing files yield
// defaults. It returns the config, the path it settled on, and whether that
// file existed.
func Load(path string) (*Config, string, bool, error) {
	resolved, found, err := locateConfig(strings.TrimSpace(path))
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if found {
		raw, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config %s: %w", resolved, err)
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, found, nil
}

func locateConfig(explicit string) (string, bool, error) {
	if explicit != "" {
		expanded, err := expandPath(explicit)
		if err != nil {
			return "", false, err
		}
		found, err := isRegularFile(expanded)
		return expanded, found, err
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	localPath, err := expandPath("marquee.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, localPath} {
		if found, _ := isRegularFile(candidate); found {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isRegularFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// EnsureDirectories creates the data tree and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.MoviesDir, c.Paths.YearsDir, c.Paths.SearchDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the SQLite ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath returns the single-run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "marquee.lock")
}

// RequestTimeout returns the per-attempt upstream timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.KOBIS.RequestTimeout) * time.Second
}

// RateInterval returns the minimum spacing between upstream calls.
func (c *Config) RateInterval() time.Duration {
	return time.Duration(c.KOBIS.RateIntervalMS) * time.Millisecond
}

// Backoff returns the initial and maximum retry delays.
func (c *Config) Backoff() (time.Duration, time.Duration) {
	return time.Duration(c.KOBIS.BackoffInitialMS) * time.Millisecond,
		time.Duration(c.KOBIS.BackoffMaxMS) * time.Millisecond
}

// RequireAPIKey reports a configuration error when the upstream credential is missing.
// Only stages that call the network need it; index builds run without one.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.KOBIS.APIKey) != "" {
		return nil
	}
	return fmt.Errorf("kobis.api_key is required: export KOFIC_API_KEY or set it in %s (run 'marquee config init' to create one)", defaultConfigLocation)
}

// expandPath resolves a leading ~ and returns an absolute, cleaned path.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = home + value[1:]
	}
	absolute, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", value, err)
	}
	return absolute, nil
}

// ExpandPath applies the same ~ and absolute-path rules used for config paths.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML with the credential redacted.
func (c *Config) Encode() (string, error) {
	redacted := *c
	if redacted.KOBIS.APIKey != "" {
		redacted.KOBIS.APIKey = "********"
	}
	data, err := toml.Marshal(redacted)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
