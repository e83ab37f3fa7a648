// Package config provides YAML configuration loading with validation and
// environment variable substitution for the chatctl CLI.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level chatctl configuration.
type Config struct {
	Provider   ProviderConfig   `yaml:"provider" json:"provider"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Recovery   RecoveryConfig   `yaml:"recovery" json:"recovery"`
	Strategies []StrategyConfig `yaml:"strategies" json:"strategies"`
	Breakers   []BreakerConfig  `yaml:"breakers" json:"breakers"`

	// Warnings holds non-fatal config issues detected during loading.
	// Stored on the Config itself (not a package-level var) so it is
	// safe to call Load concurrently from the hot-reload goroutine.
	Warnings []string `yaml:"-" json:"-"`
}

// ProviderConfig holds chat-completion service settings.
type ProviderConfig struct {
	BaseURL           string  `yaml:"base_url" json:"base_url"`
	APIKey            string  `yaml:"api_key" json:"-"` // typically "${CHATCTL_API_KEY}"
	Model             string  `yaml:"model" json:"model"`
	TimeoutMs         int     `yaml:"timeout_ms" json:"timeout_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" json:"burst_size"`
}

// Timeout returns the provider HTTP timeout as a time.Duration.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// LoggingConfig holds log output and format settings.
type LoggingConfig struct {
	Output     string `yaml:"output" json:"output"`           // "stdout", "stderr", or file path; default: "stderr"
	Format     string `yaml:"format" json:"format"`           // "auto", "text", or "json"; default: "auto"
	Level      string `yaml:"level" json:"level"`             // "debug", "info", "warn", "error"; default: "info"
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"` // max log file size before rotation; default: 50
	MaxBackups int    `yaml:"max_backups" json:"max_backups"` // number of rotated files to keep; default: 3
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
}

// MetricsConfig holds Prometheus metrics endpoint settings. The endpoint is
// served only when Addr is set; Enabled defaults to true.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"` // e.g. "127.0.0.1:9464"
	Path    string `yaml:"path" json:"path"`
}

// IsEnabled returns whether metrics are enabled (defaults to true).
func (m MetricsConfig) IsEnabled() bool {
	if m.Enabled == nil {
		return true
	}
	return *m.Enabled
}

// RecoveryConfig holds recovery facade settings.
type RecoveryConfig struct {
	LedgerCapacity  int    `yaml:"ledger_capacity" json:"ledger_capacity"`
	DefaultStrategy string `yaml:"default_strategy" json:"default_strategy"`
}

// Strategy type names accepted in StrategyConfig.Type.
const (
	StrategyExponentialBackoff = "exponential_backoff"
	StrategyLinearBackoff      = "linear_backoff"
	StrategyFallback           = "fallback"
	StrategyTimeout            = "timeout"
)

var validStrategyTypes = map[string]bool{
	StrategyExponentialBackoff: true,
	StrategyLinearBackoff:      true,
	StrategyFallback:           true,
	StrategyTimeout:            true,
}

// StrategyConfig defines one named strategy instance. Only the fields
// relevant to the given Type are consulted.
type StrategyConfig struct {
	Name           string `yaml:"name" json:"name"`
	Type           string `yaml:"type" json:"type"`
	MaxRetries     int    `yaml:"max_retries" json:"max_retries"`
	InitialDelayMs int    `yaml:"initial_delay_ms" json:"initial_delay_ms"` // exponential_backoff
	DelayMs        int    `yaml:"delay_ms" json:"delay_ms"`                 // linear_backoff
	TimeoutMs      int    `yaml:"timeout_ms" json:"timeout_ms"`             // timeout
	FallbackText   string `yaml:"fallback_text" json:"fallback_text"`       // fallback
}

// BreakerConfig defines one named circuit breaker.
type BreakerConfig struct {
	Name             string        `yaml:"name" json:"name"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold" json:"success_threshold"`
	Cooldown         time.Duration `yaml:"cooldown" json:"cooldown"`
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns in s with the corresponding
// environment variable value.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return match
	})
}

// Load reads and parses a YAML configuration file, applies environment
// variable substitution, sets defaults, and validates the result.
// Warnings are stored on cfg.Warnings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := LoadFromBytes(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromBytes parses configuration from raw YAML bytes. Useful for testing.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.Warnings = collectWarnings(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	// Provider defaults
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.openai.com"
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = "gpt-4o-mini"
	}
	if cfg.Provider.TimeoutMs == 0 {
		cfg.Provider.TimeoutMs = 30000
	}
	if cfg.Provider.RequestsPerSecond == 0 {
		cfg.Provider.RequestsPerSecond = 5
	}
	if cfg.Provider.BurstSize == 0 {
		cfg.Provider.BurstSize = 5
	}

	// Logging defaults
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "auto"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 50
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 30
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Recovery defaults
	if cfg.Recovery.LedgerCapacity == 0 {
		cfg.Recovery.LedgerCapacity = 1000
	}
	if cfg.Recovery.DefaultStrategy == "" {
		cfg.Recovery.DefaultStrategy = "default"
	}

	// When no strategies are configured, provide a usable baseline set.
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = []StrategyConfig{
			{Name: "default", Type: StrategyExponentialBackoff, MaxRetries: 3, InitialDelayMs: 250},
			{Name: "patient", Type: StrategyLinearBackoff, MaxRetries: 5, DelayMs: 1000},
			{Name: "deadline", Type: StrategyTimeout, TimeoutMs: 10000},
		}
	}

	for i := range cfg.Strategies {
		s := &cfg.Strategies[i]
		switch s.Type {
		case StrategyExponentialBackoff:
			if s.MaxRetries == 0 {
				s.MaxRetries = 3
			}
			if s.InitialDelayMs == 0 {
				s.InitialDelayMs = 250
			}
		case StrategyLinearBackoff:
			if s.MaxRetries == 0 {
				s.MaxRetries = 3
			}
			if s.DelayMs == 0 {
				s.DelayMs = 1000
			}
		case StrategyTimeout:
			if s.TimeoutMs == 0 {
				s.TimeoutMs = 10000
			}
		}
	}

	for i := range cfg.Breakers {
		b := &cfg.Breakers[i]
		if b.FailureThreshold == 0 {
			b.FailureThreshold = 5
		}
		if b.SuccessThreshold == 0 {
			b.SuccessThreshold = 2
		}
		if b.Cooldown == 0 {
			b.Cooldown = 30 * time.Second
		}
	}
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Provider.BaseURL)
	if err != nil {
		return fmt.Errorf("provider.base_url: invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider.base_url: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("provider.base_url: host is required")
	}
	if cfg.Provider.TimeoutMs < 0 {
		return fmt.Errorf("provider.timeout_ms must be non-negative")
	}
	if cfg.Provider.RequestsPerSecond <= 0 {
		return fmt.Errorf("provider.requests_per_second must be positive")
	}
	if cfg.Provider.BurstSize <= 0 {
		return fmt.Errorf("provider.burst_size must be positive")
	}

	switch cfg.Logging.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("logging.format must be auto, text, or json; got %q", cfg.Logging.Format)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error; got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.Output != "stderr" {
		if cfg.Logging.MaxSizeMB < 1 {
			return fmt.Errorf("logging.max_size_mb must be positive when output is a file path")
		}
	}

	if cfg.Recovery.LedgerCapacity < 1 {
		return fmt.Errorf("recovery.ledger_capacity must be positive")
	}

	seenStrategies := make(map[string]bool)
	for i, s := range cfg.Strategies {
		if s.Name == "" {
			return fmt.Errorf("strategies[%d].name is required", i)
		}
		if !validStrategyTypes[s.Type] {
			return fmt.Errorf("strategies[%d].type must be one of exponential_backoff, linear_backoff, fallback, timeout; got %q", i, s.Type)
		}
		if seenStrategies[s.Name] {
			return fmt.Errorf("duplicate strategy name: %s", s.Name)
		}
		seenStrategies[s.Name] = true

		switch s.Type {
		case StrategyExponentialBackoff:
			if s.MaxRetries < 0 {
				return fmt.Errorf("strategies[%d].max_retries must be non-negative", i)
			}
			if s.InitialDelayMs < 1 {
				return fmt.Errorf("strategies[%d].initial_delay_ms must be positive", i)
			}
		case StrategyLinearBackoff:
			if s.MaxRetries < 0 {
				return fmt.Errorf("strategies[%d].max_retries must be non-negative", i)
			}
			if s.DelayMs < 1 {
				return fmt.Errorf("strategies[%d].delay_ms must be positive", i)
			}
		case StrategyTimeout:
			if s.TimeoutMs < 1 {
				return fmt.Errorf("strategies[%d].timeout_ms must be positive", i)
			}
		}
	}

	if !seenStrategies[cfg.Recovery.DefaultStrategy] {
		return fmt.Errorf("recovery.default_strategy %q is not a configured strategy", cfg.Recovery.DefaultStrategy)
	}

	seenBreakers := make(map[string]bool)
	for i, b := range cfg.Breakers {
		if b.Name == "" {
			return fmt.Errorf("breakers[%d].name is required", i)
		}
		if seenBreakers[b.Name] {
			return fmt.Errorf("duplicate breaker name: %s", b.Name)
		}
		seenBreakers[b.Name] = true
		if b.FailureThreshold < 1 {
			return fmt.Errorf("breakers[%d].failure_threshold must be positive", i)
		}
		if b.SuccessThreshold < 1 {
			return fmt.Errorf("breakers[%d].success_threshold must be positive", i)
		}
		if b.Cooldown <= 0 {
			return fmt.Errorf("breakers[%d].cooldown must be positive", i)
		}
	}

	return nil
}

func collectWarnings(cfg *Config) []string {
	var warnings []string
	if strings.Contains(cfg.Provider.APIKey, "${") {
		warnings = append(warnings, "provider.api_key contains unresolved environment variable")
	}
	if cfg.Provider.APIKey == "" {
		warnings = append(warnings, "provider.api_key is empty; requests will be unauthenticated")
	}
	return warnings
}
