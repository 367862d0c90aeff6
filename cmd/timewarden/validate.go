package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goodtune/timewarden/internal/config"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the TimeWarden configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with -dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, getDefaultConfig())
	}

	return nil
}

// getDefaultConfig creates a configuration with default values
func getDefaultConfig() *config.Config {
	v := viper.New()
	setDefaultsForDump(v)

	var cfg config.Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaultsForDump mirrors the loader's defaults so the dump can tell
// configured values from inherited ones.
func setDefaultsForDump(v *viper.Viper) {
	v.SetDefault("server.api_listen", "127.0.0.1:8377")
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.blocked_root", "http://127.0.0.1:8377")

	v.SetDefault("browser.devtools_url", "http://127.0.0.1:9222")
	v.SetDefault("browser.poll_interval", "2s")
	v.SetDefault("browser.assume_focused", false)
	v.SetDefault("browser.idle_threshold", "2m")
	v.SetDefault("browser.notifications", true)

	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 20)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("tracking.flush_interval", "30s")
	v.SetDefault("tracking.hostname_cache_size", 1024)
}

// findUnknownKeys reports config file keys the loader does not know about
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, nil
		}
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	valid := getValidKeys()
	var unknown []string
	for _, key := range v.AllKeys() {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

// getValidKeys derives the known key set from the config struct's
// mapstructure tags.
func getValidKeys() map[string]bool {
	valid := make(map[string]bool)
	collectKeys(reflect.TypeOf(config.Config{}), "", valid)
	return valid
}

func collectKeys(t reflect.Type, prefix string, out map[string]bool) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct {
			collectKeys(field.Type, key, out)
			continue
		}
		out[key] = true
	}
}

// dumpConfig prints every setting, highlighting values that differ from the
// defaults.
func dumpConfig(cfg, defaultCfg *config.Config) {
	modified := color.New(color.FgGreen, color.Bold)
	inherited := color.New(color.Faint)

	fmt.Println("\n[server]")
	dumpField("api_listen", cfg.Server.APIListen, defaultCfg.Server.APIListen, modified, inherited)
	dumpField("metrics_port", cfg.Server.MetricsPort, defaultCfg.Server.MetricsPort, modified, inherited)
	dumpField("blocked_root", cfg.Server.BlockedRoot, defaultCfg.Server.BlockedRoot, modified, inherited)

	fmt.Println("\n[browser]")
	dumpField("devtools_url", cfg.Browser.DevtoolsURL, defaultCfg.Browser.DevtoolsURL, modified, inherited)
	dumpField("poll_interval", cfg.Browser.PollInterval, defaultCfg.Browser.PollInterval, modified, inherited)
	dumpField("assume_focused", cfg.Browser.AssumeFocused, defaultCfg.Browser.AssumeFocused, modified, inherited)
	dumpField("idle_threshold", cfg.Browser.IdleThreshold, defaultCfg.Browser.IdleThreshold, modified, inherited)
	dumpField("notifications", cfg.Browser.Notifications, defaultCfg.Browser.Notifications, modified, inherited)

	fmt.Println("\n[storage]")
	dumpField("type", cfg.Storage.Type, defaultCfg.Storage.Type, modified, inherited)
	dumpField("path", cfg.Storage.Path, defaultCfg.Storage.Path, modified, inherited)
	dumpField("redis.host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host, modified, inherited)
	dumpField("redis.port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port, modified, inherited)
	dumpField("redis.password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password), modified, inherited)
	dumpField("redis.db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB, modified, inherited)
	dumpField("redis.pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize, modified, inherited)
	dumpField("redis.min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns, modified, inherited)
	dumpField("redis.dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout, modified, inherited)
	dumpField("redis.read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout, modified, inherited)
	dumpField("redis.write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout, modified, inherited)

	fmt.Println("\n[logging]")
	dumpField("level", cfg.Logging.Level, defaultCfg.Logging.Level, modified, inherited)
	dumpField("format", cfg.Logging.Format, defaultCfg.Logging.Format, modified, inherited)
	dumpField("file", cfg.Logging.File, defaultCfg.Logging.File, modified, inherited)
	dumpField("max_size_mb", cfg.Logging.MaxSizeMB, defaultCfg.Logging.MaxSizeMB, modified, inherited)
	dumpField("max_backups", cfg.Logging.MaxBackups, defaultCfg.Logging.MaxBackups, modified, inherited)
	dumpField("max_age_days", cfg.Logging.MaxAgeDays, defaultCfg.Logging.MaxAgeDays, modified, inherited)

	fmt.Println("\n[tracking]")
	dumpField("flush_interval", cfg.Tracking.FlushInterval, defaultCfg.Tracking.FlushInterval, modified, inherited)
	dumpField("hostname_cache_size", cfg.Tracking.HostnameCacheSize, defaultCfg.Tracking.HostnameCacheSize, modified, inherited)

	fmt.Println()
}

// dumpField prints one key, colored by whether it differs from the default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	if reflect.DeepEqual(value, defaultValue) {
		defaultColor.Printf("  %-24s = %v\n", name, value)
		return
	}
	modifiedColor.Printf("  %-24s = %v (default: %v)\n", name, value, defaultValue)
}

// redactPassword hides a password's value while showing whether one is set
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "********"
}
