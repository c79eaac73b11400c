// Package config loads areamirror configuration from file, environment,
// and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the mirror daemon. Paths are configuration;
// the sync pipeline itself never decides where files live.
type Config struct {
	// RegistryPath is the JSON registry file to mirror.
	RegistryPath string `mapstructure:"registry_path" yaml:"registry_path"`

	// DatabasePath is the SQLite database holding the areas table.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// PollInterval is the change detector's polling cadence.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// DrainInterval is the queue consumer's idle check cadence.
	DrainInterval time.Duration `mapstructure:"drain_interval" yaml:"drain_interval"`

	// QueueSize is the snapshot queue's buffer capacity.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`

	// UseWatcher selects fsnotify-based change detection instead of
	// mtime polling.
	UseWatcher bool `mapstructure:"use_watcher" yaml:"use_watcher"`

	// DashboardPort enables the sync event dashboard when > 0.
	DashboardPort int `mapstructure:"dashboard_port" yaml:"dashboard_port"`

	// LogFile adds a rotating log file next to stderr output when set.
	LogFile string `mapstructure:"log_file" yaml:"log_file"`
}

// Default returns the stock configuration, matching a Home Assistant
// /config layout.
func Default() Config {
	return Config{
		RegistryPath:  "/config/.storage/core.area_registry",
		DatabasePath:  "/config/home-assistant_v2.db",
		PollInterval:  5 * time.Second,
		DrainInterval: 1 * time.Second,
		QueueSize:     64,
	}
}

// Load reads configuration from the given file path, falling back to an
// areamirror.yaml in the working directory when path is empty, and applies
// AREAMIRROR_* environment overrides on top. A missing config file is not
// an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("registry_path", defaults.RegistryPath)
	v.SetDefault("database_path", defaults.DatabasePath)
	v.SetDefault("poll_interval", defaults.PollInterval)
	v.SetDefault("drain_interval", defaults.DrainInterval)
	v.SetDefault("queue_size", defaults.QueueSize)
	v.SetDefault("use_watcher", defaults.UseWatcher)
	v.SetDefault("dashboard_port", defaults.DashboardPort)
	v.SetDefault("log_file", defaults.LogFile)

	v.SetEnvPrefix("AREAMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("areamirror")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.RegistryPath == "" {
		return fmt.Errorf("registry_path cannot be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path cannot be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive (got %s)", c.PollInterval)
	}
	if c.DrainInterval <= 0 {
		return fmt.Errorf("drain_interval must be positive (got %s)", c.DrainInterval)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive (got %d)", c.QueueSize)
	}
	return nil
}

// starterFile mirrors Config with durations as strings, so the generated
// yaml reads "5s" rather than nanosecond integers.
type starterFile struct {
	RegistryPath  string `yaml:"registry_path"`
	DatabasePath  string `yaml:"database_path"`
	PollInterval  string `yaml:"poll_interval"`
	DrainInterval string `yaml:"drain_interval"`
	QueueSize     int    `yaml:"queue_size"`
	UseWatcher    bool   `yaml:"use_watcher"`
	DashboardPort int    `yaml:"dashboard_port"`
	LogFile       string `yaml:"log_file"`
}

// WriteDefault writes a commented starter config file to path.
// Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	defaults := Default()
	data, err := yaml.Marshal(starterFile{
		RegistryPath:  defaults.RegistryPath,
		DatabasePath:  defaults.DatabasePath,
		PollInterval:  defaults.PollInterval.String(),
		DrainInterval: defaults.DrainInterval.String(),
		QueueSize:     defaults.QueueSize,
		UseWatcher:    defaults.UseWatcher,
		DashboardPort: defaults.DashboardPort,
		LogFile:       defaults.LogFile,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	header := "# areamirror configuration\n# Durations accept Go syntax: 5s, 500ms, 1m.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
