package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values and validates the configuration. Use
// LoadConfigWithEnvOverrides to additionally apply CLP_* environment
// variable overrides.
func LoadConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow the
// naming convention CLP_<SECTION>_<FIELD> (e.g., CLP_AUTH_ENABLED) and
// always take precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*AppConfig, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies CLP_<SECTION>_<FIELD> environment overrides.
func applyEnvOverrides(cfg *AppConfig) {
	if val := os.Getenv("CLP_SERVICES_CLAUDE_LISTEN"); val != "" {
		cfg.Services.Claude.Listen = val
	}
	if val := os.Getenv("CLP_SERVICES_CODEX_LISTEN"); val != "" {
		cfg.Services.Codex.Listen = val
	}
	if val := os.Getenv("CLP_AUTH_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Auth.Enabled = b
		}
	}
	if val := os.Getenv("CLP_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("CLP_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("CLP_LOGGING_ADD_SOURCE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Logging.AddSource = b
		}
	}
	if val := os.Getenv("CLP_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("CLP_METRICS_LISTEN"); val != "" {
		cfg.Metrics.Listen = val
	}
	if val := os.Getenv("CLP_STORE_DIR"); val != "" {
		cfg.StoreDir = val
	}
}
