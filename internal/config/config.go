// Package config provides configuration management for the adxql service
// and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration shared by the CLI and the HTTP server
type Config struct {
	// Cluster Configuration
	ClusterURL      string `json:"cluster_url" yaml:"cluster_url"`           // Azure Data Explorer endpoint
	DefaultDatabase string `json:"default_database" yaml:"default_database"` // Database management commands run against

	// Caching Configuration
	CacheTTL  time.Duration `json:"cache_ttl" yaml:"cache_ttl"`   // Lifetime of memoized provider responses
	SchemaTTL time.Duration `json:"schema_ttl" yaml:"schema_ttl"` // Interval after which the server re-resolves the schema (0 = never)

	// Request Configuration
	RetryMinBackoff   time.Duration `json:"retry_min_backoff" yaml:"retry_min_backoff"`     // Pause before the single retry
	RetryMaxBackoff   time.Duration `json:"retry_max_backoff" yaml:"retry_max_backoff"`     // Upper bound of the retry pause
	DynamicSampleSize int           `json:"dynamic_sample_size" yaml:"dynamic_sample_size"` // Rows inspected by buildschema

	// Server Configuration
	ListenAddr     string `json:"listen_addr" yaml:"listen_addr"`         // HTTP listen address
	LogLevel       string `json:"log_level" yaml:"log_level"`             // debug, info, warn or error
	MetricsEnabled bool   `json:"metrics_enabled" yaml:"metrics_enabled"` // Expose /metrics
}

// Default configuration values
const (
	DefaultCacheTTL          = 5 * time.Minute
	DefaultRetryMinBackoff   = 100 * time.Millisecond
	DefaultRetryMaxBackoff   = time.Second
	DefaultDynamicSampleSize = 50000
	DefaultListenAddr        = ":8080"
	DefaultLogLevel          = "info"
)

const envPrefix = "ADXQL_"

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		CacheTTL:          DefaultCacheTTL,
		RetryMinBackoff:   DefaultRetryMinBackoff,
		RetryMaxBackoff:   DefaultRetryMaxBackoff,
		DynamicSampleSize: DefaultDynamicSampleSize,
		ListenAddr:        DefaultListenAddr,
		LogLevel:          DefaultLogLevel,
		MetricsEnabled:    true,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.CacheTTL < 0 {
		return fmt.Errorf("CacheTTL must be non-negative, got %s", c.CacheTTL)
	}

	if c.SchemaTTL < 0 {
		return fmt.Errorf("SchemaTTL must be non-negative, got %s", c.SchemaTTL)
	}

	if c.RetryMinBackoff <= 0 {
		return fmt.Errorf("RetryMinBackoff must be positive, got %s", c.RetryMinBackoff)
	}

	if c.RetryMaxBackoff < c.RetryMinBackoff {
		return fmt.Errorf("RetryMaxBackoff (%s) must not be below RetryMinBackoff (%s)", c.RetryMaxBackoff, c.RetryMinBackoff)
	}

	if c.DynamicSampleSize <= 0 {
		return fmt.Errorf("DynamicSampleSize must be positive, got %d", c.DynamicSampleSize)
	}

	if c.ClusterURL != "" && !strings.HasPrefix(c.ClusterURL, "https://") && !strings.HasPrefix(c.ClusterURL, "http://") {
		return fmt.Errorf("ClusterURL must be an http(s) URL, got %q", c.ClusterURL)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.CacheTTL == 0 {
		c.CacheTTL = defaults.CacheTTL
	}
	if c.RetryMinBackoff == 0 {
		c.RetryMinBackoff = defaults.RetryMinBackoff
	}
	if c.RetryMaxBackoff == 0 {
		c.RetryMaxBackoff = defaults.RetryMaxBackoff
	}
	if c.DynamicSampleSize == 0 {
		c.DynamicSampleSize = defaults.DynamicSampleSize
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaults.ListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}

	// Note: MetricsEnabled is not defaulted here so an explicit false survives.
	// SchemaTTL stays zero, which disables periodic refresh.

	return c
}

// LevelFilter returns the go-kit level filter for LogLevel.
func (c Config) LevelFilter() level.Option {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return level.AllowInfo()
	}
	return lvl
}

func parseLevel(s string) (level.Option, error) {
	switch strings.ToLower(s) {
	case "debug":
		return level.AllowDebug(), nil
	case "info", "":
		return level.AllowInfo(), nil
	case "warn", "warning":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	default:
		return nil, fmt.Errorf("LogLevel must be one of debug, info, warn, error, got %q", s)
	}
}

// LoadFromFile loads configuration from a YAML or JSON file. Durations are
// written as Go duration strings such as "5m".
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json", ".yaml", ".yml":
		// JSON documents are valid YAML.
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// LoadFromEnv loads configuration from ADXQL_ environment variables on top
// of the defaults. Unparsable values are ignored.
func LoadFromEnv() Config {
	config := NewConfig()

	if val := getenv("CLUSTER_URL"); val != "" {
		config.ClusterURL = val
	}

	if val := getenv("DEFAULT_DATABASE"); val != "" {
		config.DefaultDatabase = val
	}

	envDuration("CACHE_TTL", &config.CacheTTL)
	envDuration("SCHEMA_TTL", &config.SchemaTTL)
	envDuration("RETRY_MIN_BACKOFF", &config.RetryMinBackoff)
	envDuration("RETRY_MAX_BACKOFF", &config.RetryMaxBackoff)

	if val := getenv("DYNAMIC_SAMPLE_SIZE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.DynamicSampleSize = parsed
		}
	}

	if val := getenv("LISTEN_ADDR"); val != "" {
		config.ListenAddr = val
	}

	if val := getenv("LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	if val := getenv("METRICS_ENABLED"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.MetricsEnabled = parsed
		}
	}

	return config
}

func getenv(name string) string {
	return os.Getenv(envPrefix + name)
}

func envDuration(name string, dst *time.Duration) {
	if val := getenv(name); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			*dst = parsed
		}
	}
}
