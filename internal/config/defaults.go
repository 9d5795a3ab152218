package config

const (
	defaultDataDir          = "~/.local/share/marquee/data"
	defaultStateDir         = "~/.local/share/marquee/state"
	defaultLogDir           = "~/.local/share/marquee/logs"
	defaultLogRetentionDays = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultKOBISBaseURL     = "https://www.kobis.or.kr/kobisopenapi/webservice/rest"
	defaultKOBISUserAgent   = "marquee/dev"
	defaultDailyQuota       = 3000
	defaultRequestTimeout   = 30
	defaultRateIntervalMS   = 130
	defaultMaxAttempts      = 4
	defaultBackoffInitialMS = 1500
	defaultBackoffMaxMS     = 30000
	defaultBreakerFailures  = 5
	defaultDetailsBudget    = 2800
	defaultDetailsMaxSaves  = 999999
	defaultAudienceMode     = "off"
	defaultAudienceDays     = 90
	defaultAudienceWeeks    = 8
	defaultAudienceOffset   = 3
	defaultBackfillBudget   = 600

	moviesSubdir = "movies"
	yearsSubdir  = "years"
	searchSubdir = "search"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		KOBIS: KOBIS{
			BaseURL:          defaultKOBISBaseURL,
			UserAgent:        defaultKOBISUserAgent,
			DailyQuota:       defaultDailyQuota,
			RequestTimeout:   defaultRequestTimeout,
			RateIntervalMS:   defaultRateIntervalMS,
			MaxAttempts:      defaultMaxAttempts,
			BackoffInitialMS: defaultBackoffInitialMS,
			BackoffMaxMS:     defaultBackoffMaxMS,
			BreakerFailures:  defaultBreakerFailures,
		},
		Details: Details{
			Budget:   defaultDetailsBudget,
			MaxSaves: defaultDetailsMaxSaves,
		},
		Audience: Audience{
			Mode:       defaultAudienceMode,
			RecentDays: defaultAudienceDays,
			Weeks:      defaultAudienceWeeks,
			OffsetDays: defaultAudienceOffset,
		},
		Backfill: Backfill{
			Budget: defaultBackfillBudget,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
