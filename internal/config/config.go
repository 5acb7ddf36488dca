package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ajax      AjaxConfig      `mapstructure:"ajax"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	View      ViewConfig      `mapstructure:"view"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StorageConfig selects the tab storage backend.
type StorageConfig struct {
	Driver  string        `mapstructure:"driver"`
	DSN     string        `mapstructure:"dsn"`
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

// AjaxConfig points at the admin-ajax endpoint.
type AjaxConfig struct {
	URL     string        `mapstructure:"url"`
	Nonce   string        `mapstructure:"nonce"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EnrichConfig holds detail enrichment settings.
type EnrichConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RateLimitConfig bounds package confirmations per tab.
type RateLimitConfig struct {
	ConfirmRate int           `mapstructure:"confirm_rate"`
	Window      time.Duration `mapstructure:"window"`
}

// ViewConfig holds display settings.
type ViewConfig struct {
	PriceDecimals int `mapstructure:"price_decimals"`
}

// CORSConfig lists the page origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from file and env. Env var overrides use prefix SOLTOUR_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.idle_ttl", 2*time.Hour)
	v.SetDefault("ajax.url", "")
	v.SetDefault("ajax.nonce", "")
	v.SetDefault("ajax.timeout", 10*time.Second)
	v.SetDefault("enrich.cache_ttl", 5*time.Minute)
	v.SetDefault("ratelimit.confirm_rate", 10)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("view.price_decimals", 0)
	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetConfigType("toml")

	cfgPath := os.Getenv("SOLTOUR_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("soltour")
	}

	v.SetEnvPrefix("SOLTOUR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// an explicitly named file must exist
		if cfgPath != "" {
			return Config{}, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.window must be positive")
	}
	if c.View.PriceDecimals < 0 {
		return fmt.Errorf("view.price_decimals must not be negative")
	}
	return nil
}

// SlogLevel maps log.level onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
