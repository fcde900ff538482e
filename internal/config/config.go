package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	Platform  PlatformConfig  `mapstructure:"platform"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Diff      DiffConfig      `mapstructure:"diff"`
	Actions   ActionsConfig   `mapstructure:"actions"`
	Retention RetentionConfig `mapstructure:"retention"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BlockSync string `mapstructure:"block_sync"`
}

type PlatformConfig struct {
	Host     string        `mapstructure:"host"`
	AppToken string        `mapstructure:"app_token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type SyncConfig struct {
	RateLimitBackoff time.Duration `mapstructure:"rate_limit_backoff"`
	StaleAfter       time.Duration `mapstructure:"stale_after"`
	BatchLimit       int           `mapstructure:"batch_limit"`
}

type DiffConfig struct {
	LookupBatchSize int `mapstructure:"lookup_batch_size"`
}

type ActionsConfig struct {
	DedupWindow time.Duration `mapstructure:"dedup_window"`
}

type RetentionConfig struct {
	Keep int `mapstructure:"keep"`
}

type WebhookConfig struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.block_sync", "@every 10m")
	v.SetDefault("platform.host", "https://api.twitter.com")
	v.SetDefault("platform.app_token", "")
	v.SetDefault("platform.timeout", "15s")
	v.SetDefault("sync.rate_limit_backoff", "15m")
	v.SetDefault("sync.stale_after", "12h")
	v.SetDefault("sync.batch_limit", 10)
	v.SetDefault("diff.lookup_batch_size", 100)
	v.SetDefault("actions.dedup_window", "60s")
	v.SetDefault("retention.keep", 4)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.secret", "")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
