package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Feed       FeedConfig       `yaml:"feed" mapstructure:"feed"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FeedConfig configures the upstream dam report feed.
type FeedConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`

	// BreakerThreshold is the number of consecutive upstream failures that
	// stops fetching. Zero disables the breaker.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// Timeout returns the HTTP client timeout for feed requests.
func (f FeedConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// BreakerReset is how long the feed breaker stays open.
func (f FeedConfig) BreakerReset() time.Duration {
	return time.Duration(f.BreakerResetSecs) * time.Second
}

// SyncConfig configures the measurement sync engine.
type SyncConfig struct {
	PaceSecs int    `yaml:"pace_secs" mapstructure:"pace_secs"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// PaceInterval is the pause taken before each upstream call in a multi-day sync.
func (s SyncConfig) PaceInterval() time.Duration {
	return time.Duration(s.PaceSecs) * time.Second
}

// Location loads the configured time zone, falling back to UTC.
func (s SyncConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		zap.L().Warn("config: unknown timezone, using UTC", zap.String("timezone", s.Timezone), zap.Error(err))
		return time.UTC
	}
	return loc
}

// ScheduleConfig configures the cron schedule used by the serve command.
type ScheduleConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	CatalogCron     string `yaml:"catalog_cron" mapstructure:"catalog_cron"`
	MeasurementCron string `yaml:"measurement_cron" mapstructure:"measurement_cron"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures sync health alerts.
type MonitoringConfig struct {
	Enabled             bool   `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL          string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int    `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	StaleAfterHours     int    `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DAMSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("feed.base_url", "https://sinav30.conagua.gob.mx:8080/PresasPG/presas/reporte/")
	v.SetDefault("feed.timeout_secs", 30)
	v.SetDefault("feed.user_agent", "damsync/1.0")
	v.SetDefault("feed.rate_per_sec", 1.0)
	v.SetDefault("feed.breaker_threshold", 5)
	v.SetDefault("feed.breaker_reset_secs", 300)
	v.SetDefault("sync.pace_secs", 10)
	v.SetDefault("sync.timezone", "America/Mexico_City")
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.catalog_cron", "0 30 6 * * *")
	v.SetDefault("schedule.measurement_cron", "0 0 7 * * *")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.stale_after_hours", 36)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings required by the given mode are present.
// Modes: "sync" (store + feed), "serve" (sync requirements + server port).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "sync":
		errs = append(errs, c.validateSync()...)
	case "serve":
		errs = append(errs, c.validateSync()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Monitoring.Enabled && c.Monitoring.WebhookURL == "" {
			errs = append(errs, "monitoring.webhook_url is required when monitoring is enabled")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateSync() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Feed.BaseURL == "" {
		errs = append(errs, "feed.base_url is required")
	}
	if c.Sync.PaceSecs < 0 {
		errs = append(errs, "sync.pace_secs must be >= 0")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
