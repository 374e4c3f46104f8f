package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"propwatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Propagation PropagationConfig `mapstructure:"propagation"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// PropagationConfig selects the query window, the anchors and where the
// cycle keeps its files.
type PropagationConfig struct {
	WindowMinutes int      `mapstructure:"window_minutes"`
	Anchors       []string `mapstructure:"anchors"`
	OutputPath    string   `mapstructure:"output_path"`
	StatePath     string   `mapstructure:"state_path"`
	CachePath     string   `mapstructure:"cache_path"`
}

// UpstreamConfig covers PSKReporter connectivity.
type UpstreamConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	WarmupURL          string        `mapstructure:"warmup_url"`
	AppContact         string        `mapstructure:"app_contact"`
	UserAgent          string        `mapstructure:"user_agent"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MinRefetchInterval time.Duration `mapstructure:"min_refetch_interval"`
	ReportLimit        int           `mapstructure:"report_limit"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"`
	BreakerFailures    uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown    time.Duration `mapstructure:"breaker_cooldown"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
}

// DatabaseConfig encapsulates optional PostgreSQL state storage.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// SchedulerConfig governs evaluation cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
	Cron          string        `mapstructure:"cron"`
}

// AlertingConfig defines status-change notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// MetricsConfig enables the health/metrics listener in run mode.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	ChartWidth  int `mapstructure:"chart_width"`
	ChartHeight int `mapstructure:"chart_height"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROPWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "propwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("propagation.window_minutes", 60)
	v.SetDefault("propagation.anchors", []string{"BL", "BK"})
	v.SetDefault("propagation.output_path", "data/propagation.json")
	v.SetDefault("propagation.state_path", "data/propagation_state.json")
	v.SetDefault("propagation.cache_path", "data/cache/propagation_pskreporter.json")

	v.SetDefault("upstream.base_url", "https://retrieve.pskreporter.info/query")
	v.SetDefault("upstream.warmup_url", "https://retrieve.pskreporter.info/")
	v.SetDefault("upstream.user_agent", "")
	v.SetDefault("upstream.app_contact", "")
	v.SetDefault("upstream.request_timeout", "120s")
	v.SetDefault("upstream.min_refetch_interval", "5m")
	v.SetDefault("upstream.report_limit", 2000)
	v.SetDefault("upstream.requests_per_second", 0.2)
	v.SetDefault("upstream.breaker_failures", 3)
	v.SetDefault("upstream.breaker_cooldown", "10m")
	v.SetDefault("upstream.session_ttl", "30m")

	v.SetDefault("scheduler.interval", "15m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.chart_width", 1024)
	v.SetDefault("export.chart_height", 512)

	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x70726f70))
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func (c *Config) normalize() {
	anchors := make([]string, 0, len(c.Propagation.Anchors))
	for _, a := range c.Propagation.Anchors {
		if a = strings.ToUpper(strings.TrimSpace(a)); a != "" {
			anchors = append(anchors, a)
		}
	}
	c.Propagation.Anchors = anchors
	c.Scheduler.Cron = strings.TrimSpace(c.Scheduler.Cron)
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Propagation.WindowMinutes <= 0 {
		return fmt.Errorf("propagation.window_minutes must be greater than zero")
	}
	if len(c.Propagation.Anchors) == 0 {
		return fmt.Errorf("propagation.anchors must list at least one grid")
	}
	if c.Propagation.OutputPath == "" || c.Propagation.StatePath == "" || c.Propagation.CachePath == "" {
		return fmt.Errorf("propagation output, state and cache paths are required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Upstream.RequestTimeout <= 0 {
		return fmt.Errorf("upstream.request_timeout must be greater than zero")
	}
	if c.Upstream.MinRefetchInterval < 0 {
		return fmt.Errorf("upstream.min_refetch_interval cannot be negative")
	}
	if c.Upstream.ReportLimit <= 0 {
		return fmt.Errorf("upstream.report_limit must be greater than zero")
	}
	if c.Upstream.RequestsPerSecond < 0 {
		return fmt.Errorf("upstream.requests_per_second cannot be negative")
	}
	if c.Scheduler.Interval <= 0 && c.Scheduler.Cron == "" {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.ChartWidth <= 0 || c.Export.ChartHeight <= 0 {
		return fmt.Errorf("export chart dimensions must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}
