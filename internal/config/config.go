package config

type (
	Config struct {
		Gateway    GatewayConfig            `yaml:"gateway"`
		Logging    LoggingConfig            `yaml:"logging"`
		Scheduler  SchedulerConfig          `yaml:"scheduler"`
		Store      StoreConfig              `yaml:"store"`
		Channels   map[string]ChannelConfig `yaml:"channels"`
		Notify     NotifyConfig             `yaml:"notify"`
		Conditions ConditionsConfig         `yaml:"conditions"`
	}

	GatewayConfig struct {
		Bind           string `yaml:"bind"`
		RequestTimeout int    `yaml:"request_timeout"`
		AdminPassword  string `yaml:"admin_password"`
		MetricsBind    string `yaml:"metrics_bind"`
		MetricsPath    string `yaml:"metrics_path"`
	}

	LoggingConfig struct {
		Level      string `yaml:"level"`  // debug, info, warn, error
		Format     string `yaml:"format"` // json, text
		Output     string `yaml:"output"` // stdout, file, both
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"` // MB
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"` // days
		Compress   bool   `yaml:"compress"`
	}

	SchedulerConfig struct {
		Enabled           *bool  `yaml:"enabled"`
		TickIntervalSec   int    `yaml:"tick_interval_sec"`
		MaxConcurrentRuns int    `yaml:"max_concurrent_runs"`
		JobTimeoutSec     int    `yaml:"job_timeout_sec"`
		TickBudgetSec     int    `yaml:"tick_budget_sec"`
		CronTimezone      string `yaml:"cron_timezone"`  // UTC or +HH:MM
		LocalTimezone     string `yaml:"local_timezone"` // UTC or +HH:MM
		DefaultTime       string `yaml:"default_time"`   // HH:MM
	}

	StoreConfig struct {
		Driver string `yaml:"driver"` // json, sqlite, postgres
		Path   string `yaml:"path"`
		DSN    string `yaml:"dsn"`
	}

	ChannelConfig struct {
		ID      string                 `yaml:"-"`
		Type    string                 `yaml:"type"` // telegram, lark, callmebot, twilio
		Enabled bool                   `yaml:"enabled"`
		Config  map[string]interface{} `yaml:"config"`
	}

	NotifyConfig struct {
		DefaultChannel string  `yaml:"default_channel"`
		VoiceChannel   string  `yaml:"voice_channel"`
		RatePerSec     float64 `yaml:"rate_per_sec"`
		Burst          int     `yaml:"burst"`
	}

	ConditionsConfig struct {
		HTTPTimeoutSec int          `yaml:"http_timeout_sec"`
		FNG            FNGConfig    `yaml:"fng"`
		Prayer         PrayerConfig `yaml:"prayer"`
	}

	FNGConfig struct {
		URL string `yaml:"url"`
	}

	PrayerConfig struct {
		URL     string `yaml:"url"`
		City    string `yaml:"city"`
		Country string `yaml:"country"`
		Method  int    `yaml:"method"`
	}
)

// SchedulerEnabled reports whether the gateway should host the tick loop.
func (c *Config) SchedulerEnabled() bool {
	return c.Scheduler.Enabled == nil || *c.Scheduler.Enabled
}
