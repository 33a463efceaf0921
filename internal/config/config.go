package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigMissing is returned when a required bulb setting is empty after
// the file and environment have both been consulted.
var ErrConfigMissing = errors.New("required configuration missing")

// Environment variables consulted when the file leaves a bulb setting empty.
const (
	EnvBulbAddress    = "BULB_IP"
	EnvBulbNetwork    = "SSID"
	EnvBulbCredential = "WIFI_PASS"
)

// Config represents the application configuration
type Config struct {
	Bulb            BulbConfig        `yaml:"bulb"`
	Input           InputConfig       `yaml:"input"`
	Loops           LoopsConfig       `yaml:"loops"`
	Database        DatabaseConfig    `yaml:"database"`
	Log             LogConfig         `yaml:"log"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// BulbConfig contains bulb connection settings
type BulbConfig struct {
	Address    string   `yaml:"address"`
	Network    string   `yaml:"network"`    // Wi-Fi network the bulb is provisioned onto
	Credential string   `yaml:"credential"` // Wi-Fi password
	Timeout    Duration `yaml:"timeout"`    // Per-request timeout

	ConnectAttempts int      `yaml:"connect_attempts"` // Attempts per connect (default: 3)
	RetryDelay      Duration `yaml:"retry_delay"`      // Delay before each retry (default: 10s)
}

// InputConfig contains controller handling settings
type InputConfig struct {
	Tick            Duration `yaml:"tick"`
	HoldThreshold   Duration `yaml:"hold_threshold"`
	AxisInterval    Duration `yaml:"axis_interval"` // Minimum spacing between processed axis events
	Deadzone        float64  `yaml:"deadzone"`
	ColorScale      int      `yaml:"color_scale"`
	BrightnessScale int      `yaml:"brightness_scale"`
}

// LoopsConfig contains modulation loop settings
type LoopsConfig struct {
	Tick               Duration `yaml:"tick"`
	BrightnessLifespan Duration `yaml:"brightness_lifespan"`
	SceneDwell         Duration `yaml:"scene_dwell"`
	Scene              [][]int  `yaml:"scene"` // [r, g, b] triples, empty for the built-in rainbow
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"` // Empty disables the ledger
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"`
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 1)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 64)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 1
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 64
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file. A missing file is not an
// error: defaults and environment fallbacks apply.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		// Expand environment variables
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnvFallbacks(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnvFallbacks(cfg *Config) {
	if cfg.Bulb.Address == "" {
		cfg.Bulb.Address = os.Getenv(EnvBulbAddress)
	}
	if cfg.Bulb.Network == "" {
		cfg.Bulb.Network = os.Getenv(EnvBulbNetwork)
	}
	if cfg.Bulb.Credential == "" {
		cfg.Bulb.Credential = os.Getenv(EnvBulbCredential)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Bulb defaults
	if cfg.Bulb.Timeout == 0 {
		cfg.Bulb.Timeout = Duration(5 * time.Second)
	}
	if cfg.Bulb.ConnectAttempts == 0 {
		cfg.Bulb.ConnectAttempts = 3
	}
	if cfg.Bulb.RetryDelay == 0 {
		cfg.Bulb.RetryDelay = Duration(10 * time.Second)
	}

	// Input defaults
	if cfg.Input.Tick == 0 {
		cfg.Input.Tick = Duration(100 * time.Millisecond)
	}
	if cfg.Input.HoldThreshold == 0 {
		cfg.Input.HoldThreshold = Duration(200 * time.Millisecond)
	}
	if cfg.Input.AxisInterval == 0 {
		cfg.Input.AxisInterval = Duration(50 * time.Millisecond)
	}
	if cfg.Input.Deadzone == 0 {
		cfg.Input.Deadzone = 0.1
	}
	if cfg.Input.ColorScale == 0 {
		cfg.Input.ColorScale = 15
	}
	if cfg.Input.BrightnessScale == 0 {
		cfg.Input.BrightnessScale = 10
	}

	// Loop defaults; an empty scene keeps the built-in rainbow
	if cfg.Loops.Tick == 0 {
		cfg.Loops.Tick = Duration(100 * time.Millisecond)
	}
	if cfg.Loops.BrightnessLifespan == 0 {
		cfg.Loops.BrightnessLifespan = Duration(15 * time.Second)
	}
	if cfg.Loops.SceneDwell == 0 {
		cfg.Loops.SceneDwell = Duration(2500 * time.Millisecond)
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks the settings needed before any connection attempt.
func (c *Config) Validate() error {
	var missing []string
	if c.Bulb.Address == "" {
		missing = append(missing, "bulb.address ($"+EnvBulbAddress+")")
	}
	if c.Bulb.Network == "" {
		missing = append(missing, "bulb.network ($"+EnvBulbNetwork+")")
	}
	if c.Bulb.Credential == "" {
		missing = append(missing, "bulb.credential ($"+EnvBulbCredential+")")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigMissing, strings.Join(missing, ", "))
	}

	for i, rgb := range c.Loops.Scene {
		if len(rgb) != 3 {
			return fmt.Errorf("loops.scene[%d]: want [r, g, b], got %d values", i, len(rgb))
		}
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
