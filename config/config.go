// Package config loads executor settings from YAML files and environment
// variables. Environment variables take precedence over file values so
// deployments can override a checked-in config without editing it.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Provider names accepted by Config.Provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds the executor's deployment settings. Values are immutable
// after Load; mutate a copy if a test needs variations.
type Config struct {
	// Provider selects the reasoning backend: "anthropic" or "openai".
	Provider string `yaml:"provider" env:"AGENTGRID_PROVIDER"`

	// Model is the provider-specific model identifier. Empty selects the
	// backend's default.
	Model string `yaml:"model" env:"AGENTGRID_MODEL"`

	// APIKey authenticates against the provider. Empty falls back to the
	// provider SDK's own environment lookup.
	APIKey string `yaml:"api_key" env:"AGENTGRID_API_KEY"`

	// MaxSteps caps scheduler rounds per run. Zero keeps the default.
	MaxSteps int `yaml:"max_steps" env:"AGENTGRID_MAX_STEPS"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"AGENTGRID_LOG_LEVEL"`

	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format" env:"AGENTGRID_LOG_FORMAT"`
}

// Default returns the baseline configuration before any file or
// environment overrides.
func Default() Config {
	return Config{
		Provider:  ProviderAnthropic,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds a Config from defaults overridden by environment variables.
func Load() (Config, error) {
	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile builds a Config from defaults, the given YAML file, and finally
// environment variables, in that order of precedence.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps)
	}
	return nil
}
