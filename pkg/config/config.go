// Package config loads the catalog picker configuration from an optional
// TOML file, an optional .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-picker/pkg/client"
	"github.com/Sternrassler/catalog-picker/pkg/logging"
	"github.com/Sternrassler/catalog-picker/pkg/search"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/redis/go-redis/v9"
)

// Duration is a time.Duration that decodes from strings like "10s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the complete configuration of both binaries.
type Config struct {
	Catalog CatalogConfig `toml:"catalog"`
	Redis   RedisConfig   `toml:"redis"`
	Log     LogConfig     `toml:"log"`
	Proxy   ProxyConfig   `toml:"proxy"`
}

// CatalogConfig configures the remote catalog.
type CatalogConfig struct {
	BaseURL    string   `toml:"base_url"`
	APIKey     string   `toml:"api_key"`
	PageSize   int      `toml:"page_size"`
	Timeout    Duration `toml:"timeout"`
	MaxRetries int      `toml:"max_retries"`
}

// RedisConfig enables caching when URL is set.
type RedisConfig struct {
	URL      string `toml:"url"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
	File   string `toml:"file"`
}

// ProxyConfig configures cmd/catalog-proxy.
type ProxyConfig struct {
	Port int `toml:"port"`

	// WarmPages is the number of pages of the empty query fetched into the
	// cache at startup. 0 disables warming.
	WarmPages int `toml:"warm_pages"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			BaseURL:  client.DefaultBaseURL,
			PageSize: client.DefaultLimit,
			Timeout:  Duration(client.DefaultTimeout),
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
		Proxy: ProxyConfig{
			Port: 8080,
		},
	}
}

// Load builds the configuration. path names an optional TOML file; an
// empty path skips it. A .env file in the working directory is loaded if
// present, without overriding variables that are already set.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("CATALOG_BASE_URL"); v != "" {
		c.Catalog.BaseURL = v
	}
	if v := getenv("CATALOG_API_KEY"); v != "" {
		c.Catalog.APIKey = v
	} else if v := getenv("VITE_API_KEY"); v != "" {
		c.Catalog.APIKey = v
	}
	if err := envInt(getenv, "CATALOG_PAGE_SIZE", &c.Catalog.PageSize); err != nil {
		return err
	}
	if v := getenv("CATALOG_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CATALOG_TIMEOUT %q: %w", v, err)
		}
		c.Catalog.Timeout = Duration(d)
	}
	if err := envInt(getenv, "CATALOG_MAX_RETRIES", &c.Catalog.MaxRetries); err != nil {
		return err
	}

	if v := getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if err := envInt(getenv, "REDIS_DB", &c.Redis.DB); err != nil {
		return err
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_PRETTY %q: %w", v, err)
		}
		c.Log.Pretty = b
	}
	if v := getenv("LOG_FILE"); v != "" {
		c.Log.File = v
	}

	if err := envInt(getenv, "PROXY_WARM_PAGES", &c.Proxy.WarmPages); err != nil {
		return err
	}
	return envInt(getenv, "PORT", &c.Proxy.Port)
}

func envInt(getenv func(string) string, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

// Validate checks value ranges. A missing API key is not an error here;
// every fetch fails with client.ErrUnauthorized instead.
func (c *Config) Validate() error {
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url is required")
	}
	if c.Catalog.PageSize <= 0 {
		return fmt.Errorf("catalog.page_size must be > 0 (got %d)", c.Catalog.PageSize)
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be > 0 (got %s)", time.Duration(c.Catalog.Timeout))
	}
	if c.Catalog.MaxRetries < 0 {
		return fmt.Errorf("catalog.max_retries must be >= 0 (got %d)", c.Catalog.MaxRetries)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0 (got %d)", c.Redis.DB)
	}
	switch logging.LogLevel(c.Log.Level) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	if c.Proxy.Port <= 0 || c.Proxy.Port > 65535 {
		return fmt.Errorf("proxy.port must be in 1..65535 (got %d)", c.Proxy.Port)
	}
	if c.Proxy.WarmPages < 0 {
		return fmt.Errorf("proxy.warm_pages must be >= 0 (got %d)", c.Proxy.WarmPages)
	}
	return nil
}

// ClientConfig returns the catalog client configuration. redisClient may be nil.
func (c *Config) ClientConfig(redisClient *redis.Client) client.Config {
	cfg := client.DefaultConfig(c.Catalog.APIKey)
	cfg.BaseURL = c.Catalog.BaseURL
	cfg.DefaultLimit = c.Catalog.PageSize
	cfg.Timeout = time.Duration(c.Catalog.Timeout)
	cfg.MaxRetries = c.Catalog.MaxRetries
	cfg.Redis = redisClient
	return cfg
}

// SearchConfig returns the search controller configuration.
func (c *Config) SearchConfig() search.Config {
	cfg := search.DefaultConfig()
	cfg.PageSize = c.Catalog.PageSize
	cfg.Timeout = time.Duration(c.Catalog.Timeout)
	return cfg
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	cfg.File = c.Log.File
	return cfg
}

// RedisOptions returns the Redis options, or nil when Redis is not configured.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.Redis.URL == "" {
		return nil, nil
	}

	var opts *redis.Options
	if strings.Contains(c.Redis.URL, "://") {
		parsed, err := redis.ParseURL(c.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: c.Redis.URL}
	}

	if c.Redis.Password != "" {
		opts.Password = c.Redis.Password
	}
	if c.Redis.DB != 0 {
		opts.DB = c.Redis.DB
	}
	return opts, nil
}
