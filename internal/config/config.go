// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "yield_sim/pkg/errors"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App         AppConfig         `yaml:"app"`
	Server      ServerConfig      `yaml:"server"`
	Rates       RatesConfig       `yaml:"rates"`
	Store       StoreConfig       `yaml:"store"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	System      SystemConfig      `yaml:"system"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name string `yaml:"name"`
}

// ServerConfig contains the HTTP API settings
type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	APIKeys        []Secret      `yaml:"api_keys"`   // Required for write routes when set
	RateLimit      int           `yaml:"rate_limit"` // Requests per second per API key
}

// RatesConfig contains upstream rate feed settings
type RatesConfig struct {
	Enabled           bool          `yaml:"enabled"`
	DefiLlamaURL      string        `yaml:"defillama_url"`
	HyperliquidURL    string        `yaml:"hyperliquid_url"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	RefreshSchedule   string        `yaml:"refresh_schedule"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// StoreConfig contains persistence settings
type StoreConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig overrides built-in fallback APYs by product id
type CatalogConfig struct {
	ApyOverrides map[string]decimal.Decimal `yaml:"apy_overrides"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	SweepPoolSize   int `yaml:"sweep_pool_size" validate:"min=1,max=100"`
	SweepPoolBuffer int `yaml:"sweep_pool_buffer" validate:"min=1,max=10000"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion.
// Omitted sections keep their DefaultConfig values.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := expandEnvVars(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string
	for _, check := range []func() error{
		c.validateServerConfig,
		c.validateRatesConfig,
		c.validateStoreConfig,
		c.validateCatalogConfig,
		c.validateSystemConfig,
		c.validateConcurrencyConfig,
	} {
		if err := check(); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%w: configuration validation failed:\n%s", apperrors.ErrInvalidConfig, strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateServerConfig() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ValidationError{
			Field:   "server.port",
			Value:   c.Server.Port,
			Message: "must be between 1 and 65535",
		}
	}
	if c.Server.RequestTimeout <= 0 {
		return ValidationError{
			Field:   "server.request_timeout",
			Value:   c.Server.RequestTimeout,
			Message: "must be positive",
		}
	}
	for i, key := range c.Server.APIKeys {
		if !key.IsSet() {
			return ValidationError{
				Field:   fmt.Sprintf("server.api_keys[%d]", i),
				Message: "API key must not be empty",
			}
		}
	}
	return nil
}

func (c *Config) validateRatesConfig() error {
	if !c.Rates.Enabled {
		return nil // Offline mode uses catalog fallbacks only
	}

	for field, url := range map[string]string{
		"rates.defillama_url":   c.Rates.DefiLlamaURL,
		"rates.hyperliquid_url": c.Rates.HyperliquidURL,
	} {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return ValidationError{
				Field:   field,
				Value:   url,
				Message: "must be an http(s) URL",
			}
		}
	}

	if c.Rates.CacheTTL <= 0 {
		return ValidationError{
			Field:   "rates.cache_ttl",
			Value:   c.Rates.CacheTTL,
			Message: "must be positive",
		}
	}
	if c.Rates.HTTPTimeout <= 0 {
		return ValidationError{
			Field:   "rates.http_timeout",
			Value:   c.Rates.HTTPTimeout,
			Message: "must be positive",
		}
	}
	if c.Rates.RequestsPerSecond < 0 {
		return ValidationError{
			Field:   "rates.requests_per_second",
			Value:   c.Rates.RequestsPerSecond,
			Message: "must not be negative",
		}
	}
	return nil
}

func (c *Config) validateStoreConfig() error {
	if c.Store.Path == "" {
		return ValidationError{
			Field:   "store.path",
			Message: "database path is required",
		}
	}
	return nil
}

func (c *Config) validateCatalogConfig() error {
	for id, apy := range c.Catalog.ApyOverrides {
		if apy.IsNegative() {
			return ValidationError{
				Field:   fmt.Sprintf("catalog.apy_overrides.%s", id),
				Value:   apy,
				Message: "APY must not be negative",
			}
		}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateConcurrencyConfig() error {
	if c.Concurrency.SweepPoolSize < 1 || c.Concurrency.SweepPoolSize > 100 {
		return ValidationError{
			Field:   "concurrency.sweep_pool_size",
			Value:   c.Concurrency.SweepPoolSize,
			Message: "must be between 1 and 100",
		}
	}
	if c.Concurrency.SweepPoolBuffer < 1 || c.Concurrency.SweepPoolBuffer > 10000 {
		return ValidationError{
			Field:   "concurrency.sweep_pool_buffer",
			Value:   c.Concurrency.SweepPoolBuffer,
			Message: "must be between 1 and 10000",
		}
	}
	return nil
}

// APIKeyStrings returns the configured API keys as plain strings.
func (c *Config) APIKeyStrings() []string {
	keys := make([]string, 0, len(c.Server.APIKeys))
	for _, k := range c.Server.APIKeys {
		keys = append(keys, k.Reveal())
	}
	return keys
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name: "yield-sim",
		},
		Server: ServerConfig{
			Port:           8080,
			RequestTimeout: 15 * time.Second,
			RateLimit:      100,
		},
		Rates: RatesConfig{
			Enabled:           true,
			DefiLlamaURL:      "https://yields.llama.fi",
			HyperliquidURL:    "https://api.hyperliquid.xyz",
			HTTPTimeout:       30 * time.Second,
			CacheTTL:          3 * time.Hour,
			RetryInterval:     time.Minute,
			RefreshSchedule:   "@every 3h",
			RequestsPerSecond: 2,
			Burst:             2,
		},
		Store: StoreConfig{
			Path: "yield_sim.db",
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Concurrency: ConcurrencyConfig{
			SweepPoolSize:   8,
			SweepPoolBuffer: 2048,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
	}
}
