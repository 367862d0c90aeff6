package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracking TrackingConfig `mapstructure:"tracking"`
}

// ServerConfig defines the localhost API surface
type ServerConfig struct {
	APIListen   string `mapstructure:"api_listen"`
	MetricsPort int    `mapstructure:"metrics_port"`
	BlockedRoot string `mapstructure:"blocked_root"` // base URL of the blocked page redirect target
}

// BrowserConfig defines how the daemon attaches to the browser and desktop
type BrowserConfig struct {
	DevtoolsURL   string `mapstructure:"devtools_url"`
	PollInterval  string `mapstructure:"poll_interval"`
	AssumeFocused bool   `mapstructure:"assume_focused"` // treat the active tab as focused when the protocol cannot say
	IdleThreshold string `mapstructure:"idle_threshold"`
	Notifications bool   `mapstructure:"notifications"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines the redis backend connection
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// TrackingConfig defines tracking cadence settings
type TrackingConfig struct {
	FlushInterval     string `mapstructure:"flush_interval"`
	HostnameCacheSize int    `mapstructure:"hostname_cache_size"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("TIMEWARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.api_listen", "127.0.0.1:8377")
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.blocked_root", "http://127.0.0.1:8377")

	// Browser defaults
	v.SetDefault("browser.devtools_url", "http://127.0.0.1:9222")
	v.SetDefault("browser.poll_interval", "2s")
	v.SetDefault("browser.assume_focused", false)
	v.SetDefault("browser.idle_threshold", "2m")
	v.SetDefault("browser.notifications", true)

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", defaultStatePath())
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 20)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 30)

	// Tracking defaults
	v.SetDefault("tracking.flush_interval", "30s")
	v.SetDefault("tracking.hostname_cache_size", 1024)
}

// defaultStatePath puts the bolt file under the user state dir when one can
// be resolved, falling back to the working directory.
func defaultStatePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "timewarden", "timewarden.bolt")
	}
	return "timewarden.bolt"
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIListen == "" {
		return fmt.Errorf("server.api_listen is required")
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if _, err := time.ParseDuration(cfg.Browser.PollInterval); err != nil {
		return fmt.Errorf("invalid browser.poll_interval: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Browser.IdleThreshold); err != nil {
		return fmt.Errorf("invalid browser.idle_threshold: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Tracking.FlushInterval); err != nil {
		return fmt.Errorf("invalid tracking.flush_interval: %w", err)
	}

	switch cfg.Storage.Type {
	case "", "bolt":
		cfg.Storage.Type = "bolt"
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %q", cfg.Storage.Type)
	}

	return nil
}
