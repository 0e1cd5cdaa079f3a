package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entire application configuration
type Config struct {
	Admission AdmissionConfig `mapstructure:"admission"`
	Groups    []GroupConfig   `mapstructure:"groups"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// AdmissionConfig contains disk-space admission settings
type AdmissionConfig struct {
	ThrottleWindow   string `mapstructure:"throttle_window"`
	RefreshInterval  string `mapstructure:"refresh_interval"`
	WatchdogInterval string `mapstructure:"watchdog_interval"`
	MinFreeSpaceGB   int    `mapstructure:"min_free_space_gb"`
}

// GroupConfig names a transfer group
type GroupConfig struct {
	ID   int    `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// HTTPConfig contains HTTP API configuration
type HTTPConfig struct {
	BindAddr     string `mapstructure:"bind_addr"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("admission.throttle_window", "5s")
	viper.SetDefault("admission.refresh_interval", "10s")
	viper.SetDefault("admission.watchdog_interval", "1m")
	viper.SetDefault("admission.min_free_space_gb", 1)
	viper.SetDefault("http.bind_addr", "127.0.0.1:9200")
	viper.SetDefault("http.read_timeout", "30s")
	viper.SetDefault("http.write_timeout", "30s")
	viper.SetDefault("http.idle_timeout", "60s")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("database.path", "")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Admission.ThrottleWindow); err != nil {
		return fmt.Errorf("invalid admission.throttle_window: %w", err)
	}
	if _, err := time.ParseDuration(c.Admission.RefreshInterval); err != nil {
		return fmt.Errorf("invalid admission.refresh_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Admission.WatchdogInterval); err != nil {
		return fmt.Errorf("invalid admission.watchdog_interval: %w", err)
	}
	if c.Admission.MinFreeSpaceGB < 0 {
		return fmt.Errorf("admission.min_free_space_gb must not be negative")
	}

	seen := make(map[int]bool)
	for _, g := range c.Groups {
		if g.Name == "" {
			return fmt.Errorf("group %d has no name", g.ID)
		}
		if seen[g.ID] {
			return fmt.Errorf("duplicate group id %d", g.ID)
		}
		seen[g.ID] = true
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GroupNames returns the configured id-to-name mapping
func (c *Config) GroupNames() map[int]string {
	names := make(map[int]string, len(c.Groups))
	for _, g := range c.Groups {
		names[g.ID] = g.Name
	}
	return names
}

// GetThrottleWindow returns the probe throttle window as time.Duration
func (c *AdmissionConfig) GetThrottleWindow() time.Duration {
	d, _ := time.ParseDuration(c.ThrottleWindow)
	if d == 0 {
		return 5 * time.Second
	}
	return d
}

// GetRefreshInterval returns the refresh interval as time.Duration
func (c *AdmissionConfig) GetRefreshInterval() time.Duration {
	d, _ := time.ParseDuration(c.RefreshInterval)
	if d == 0 {
		return 10 * time.Second
	}
	return d
}

// GetWatchdogInterval returns the watchdog interval as time.Duration
func (c *AdmissionConfig) GetWatchdogInterval() time.Duration {
	d, _ := time.ParseDuration(c.WatchdogInterval)
	if d == 0 {
		return time.Minute
	}
	return d
}

// GetMinFreeBytes returns the low-space floor in bytes
func (c *AdmissionConfig) GetMinFreeBytes() uint64 {
	return uint64(c.MinFreeSpaceGB) << 30
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ReadTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	d, _ := time.ParseDuration(c.IdleTimeout)
	if d == 0 {
		return 60 * time.Second
	}
	return d
}
