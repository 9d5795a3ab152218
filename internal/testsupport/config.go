package testsupport

import (
	"path/filepath"
	"testing"

	"marquee/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Directories are created, the API key is set to "test", and upstream pacing
// and backoff are shortened so stage tests run quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.KOBIS.APIKey = "test"
	cfgVal.KOBIS.RateIntervalMS = 0
	cfgVal.KOBIS.BackoffInitialMS = 1
	cfgVal.KOBIS.BackoffMaxMS = 2
	cfgVal.KOBIS.RequestTimeout = 5
	cfgVal.KOBIS.DailyQuota = 0
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.MoviesDir = filepath.Join(base, "data", "movies")
	cfgVal.Paths.YearsDir = filepath.Join(base, "data", "years")
	cfgVal.Paths.SearchDir = filepath.Join(base, "data", "search")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithAPIKey sets the upstream credential on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.KOBIS.APIKey = key
	}
}

// WithBaseURL points the upstream client at a test server.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.KOBIS.BaseURL = url
	}
}

// WithAudience enables audience estimation.
func WithAudience(mode string, weeks int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Audience.Mode = mode
		if weeks > 0 {
			b.cfg.Audience.Weeks = weeks
		}
	}
}

// WithDailyQuota sets the local daily call allowance.
func WithDailyQuota(calls int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.KOBIS.DailyQuota = calls
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
