// Package config loads barberfinder settings from config.yaml, a .env file
// and BARBER_ environment variables, and builds the global logger.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Directory   DirectoryConfig   `yaml:"directory" mapstructure:"directory"`
	Ranking     RankingConfig     `yaml:"ranking" mapstructure:"ranking"`
	VIP         VIPConfig         `yaml:"vip" mapstructure:"vip"`
	Notify      NotifyConfig      `yaml:"notify" mapstructure:"notify"`
	Geolocation GeolocationConfig `yaml:"geolocation" mapstructure:"geolocation"`
	Maps        MapsConfig        `yaml:"maps" mapstructure:"maps"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimit           float64  `yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst           int      `yaml:"rate_burst" mapstructure:"rate_burst" validate:"gte=0"`
	RealIPHeader        string   `yaml:"real_ip_header" mapstructure:"real_ip_header"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs" validate:"gte=0"`
}

// DirectoryConfig selects where provider records come from.
type DirectoryConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver" validate:"oneof=yaml sqlite postgres elastic"`
	Path          string `yaml:"path" mapstructure:"path"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	ElasticURL    string `yaml:"elastic_url" mapstructure:"elastic_url"`
	ElasticIndex  string `yaml:"elastic_index" mapstructure:"elastic_index"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db" validate:"gte=0"`
	CacheTTLSecs  int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs" validate:"gte=0"`
	// BreakerThreshold opens the circuit around remote backends after this
	// many consecutive failures. Zero disables the breaker.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold" validate:"gte=0"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs" validate:"gte=0"`
}

// RankingConfig tunes the ranking engine.
type RankingConfig struct {
	ExcludeBlocked bool `yaml:"exclude_blocked" mapstructure:"exclude_blocked"`
	FoldDiacritics bool `yaml:"fold_diacritics" mapstructure:"fold_diacritics"`
}

// VIPConfig tunes lifecycle evaluation.
type VIPConfig struct {
	ExpiringSoonDays      int  `yaml:"expiring_soon_days" mapstructure:"expiring_soon_days" validate:"min=1"`
	CheckIntervalSecs     int  `yaml:"check_interval_secs" mapstructure:"check_interval_secs" validate:"gte=0"`
	ExpiredWhenDowngraded bool `yaml:"expired_when_downgraded" mapstructure:"expired_when_downgraded"`
}

// NotifyConfig selects notification persistence and delivery.
type NotifyConfig struct {
	Driver       string  `yaml:"driver" mapstructure:"driver" validate:"oneof=memory sqlite postgres"`
	Path         string  `yaml:"path" mapstructure:"path"`
	DatabaseURL  string  `yaml:"database_url" mapstructure:"database_url"`
	WebhookURL   string  `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
	WebhookRate  float64 `yaml:"webhook_rate" mapstructure:"webhook_rate" validate:"gte=0"`
	WebhookBurst int     `yaml:"webhook_burst" mapstructure:"webhook_burst" validate:"gte=0"`
	WebhookTries int     `yaml:"webhook_attempts" mapstructure:"webhook_attempts" validate:"gte=0"`
}

// GeolocationConfig tunes position acquisition.
type GeolocationConfig struct {
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"min=1"`
	HighAccuracy bool   `yaml:"high_accuracy" mapstructure:"high_accuracy"`
	GeoIPDBPath  string `yaml:"geoip_db_path" mapstructure:"geoip_db_path"`
}

// MapsConfig configures the map surface.
type MapsConfig struct {
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	RequireKey bool   `yaml:"require_key" mapstructure:"require_key"`
	Zoom       int    `yaml:"zoom" mapstructure:"zoom" validate:"gte=0,lte=22"`
}

// Timeout returns the geolocation timeout.
func (g GeolocationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// CheckInterval returns the VIP checker interval.
func (v VIPConfig) CheckInterval() time.Duration {
	return time.Duration(v.CheckIntervalSecs) * time.Second
}

// CacheTTL returns the directory cache lifetime.
func (d DirectoryConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLSecs) * time.Second
}

// BreakerReset returns how long an open directory circuit stays open.
func (d DirectoryConfig) BreakerReset() time.Duration {
	return time.Duration(d.BreakerResetSecs) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSecs) * time.Second
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BARBER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.real_ip_header", "")
	v.SetDefault("server.shutdown_timeout_secs", 10)

	v.SetDefault("directory.driver", "yaml")
	v.SetDefault("directory.path", "testdata/providers.yaml")
	v.SetDefault("directory.database_url", "")
	v.SetDefault("directory.elastic_url", "http://localhost:9200")
	v.SetDefault("directory.elastic_index", "barbershops")
	v.SetDefault("directory.redis_addr", "")
	v.SetDefault("directory.redis_password", "")
	v.SetDefault("directory.redis_db", 0)
	v.SetDefault("directory.cache_ttl_secs", 60)
	v.SetDefault("directory.breaker_threshold", 5)
	v.SetDefault("directory.breaker_reset_secs", 30)

	v.SetDefault("ranking.exclude_blocked", false)
	v.SetDefault("ranking.fold_diacritics", false)

	v.SetDefault("vip.expiring_soon_days", 7)
	v.SetDefault("vip.check_interval_secs", 3600)
	v.SetDefault("vip.expired_when_downgraded", false)

	v.SetDefault("notify.driver", "memory")
	v.SetDefault("notify.path", "barberfinder.db")
	v.SetDefault("notify.database_url", "")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.webhook_rate", 5.0)
	v.SetDefault("notify.webhook_burst", 5)
	v.SetDefault("notify.webhook_attempts", 3)

	v.SetDefault("geolocation.timeout_secs", 10)
	v.SetDefault("geolocation.high_accuracy", true)
	v.SetDefault("geolocation.geoip_db_path", "")

	v.SetDefault("maps.api_key", "")
	v.SetDefault("maps.require_key", false)
	v.SetDefault("maps.zoom", 14)
}

var validate = validator.New()

// Validate checks struct constraints and the cross-field rules for mode
// ("serve" or "cli"). Unknown modes are rejected.
func (c *Config) Validate(mode string) error {
	if mode != "serve" && mode != "cli" {
		return eris.Errorf("config: unknown validation mode %q", mode)
	}
	if err := validate.Struct(c); err != nil {
		return eris.Wrap(err, "config: invalid")
	}

	var missing []string
	switch c.Directory.Driver {
	case "yaml", "sqlite":
		if c.Directory.Path == "" {
			missing = append(missing, "directory.path")
		}
	case "postgres":
		if c.Directory.DatabaseURL == "" {
			missing = append(missing, "directory.database_url")
		}
	case "elastic":
		if c.Directory.ElasticURL == "" {
			missing = append(missing, "directory.elastic_url")
		}
	}
	switch c.Notify.Driver {
	case "sqlite":
		if c.Notify.Path == "" {
			missing = append(missing, "notify.path")
		}
	case "postgres":
		if c.Notify.DatabaseURL == "" && c.Directory.DatabaseURL == "" {
			missing = append(missing, "notify.database_url")
		}
	}
	if mode == "serve" && c.Maps.RequireKey && c.Maps.APIKey == "" {
		missing = append(missing, "maps.api_key")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required fields for %s: %s", mode, strings.Join(missing, ", "))
	}
	return nil
}

// NotifyDatabaseURL falls back to the directory database when notify has
// none of its own.
func (c *Config) NotifyDatabaseURL() string {
	if c.Notify.DatabaseURL != "" {
		return c.Notify.DatabaseURL
	}
	return c.Directory.DatabaseURL
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
