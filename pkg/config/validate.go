package config

import "fmt"

// Validate checks an AppConfig for internal consistency after defaults and
// environment overrides have been applied.
func Validate(cfg *AppConfig) error {
	if cfg.Services.Claude.Listen == "" {
		return fmt.Errorf("services.claude.listen must not be empty")
	}
	if cfg.Services.Codex.Listen == "" {
		return fmt.Errorf("services.codex.listen must not be empty")
	}
	if cfg.Services.Claude.Listen == cfg.Services.Codex.Listen {
		return fmt.Errorf("services.claude.listen and services.codex.listen must differ")
	}

	if err := validateTLS("services.claude.tls", cfg.Services.Claude.TLS); err != nil {
		return err
	}
	if err := validateTLS("services.codex.tls", cfg.Services.Codex.TLS); err != nil {
		return err
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug|info|warn|error, got %q", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("logging.format must be one of json|text|console, got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen must not be empty when metrics.enabled is true")
	}

	if cfg.StoreDir == "" {
		return fmt.Errorf("store_dir must not be empty")
	}

	return nil
}

func validateTLS(field string, tls *TLSConfig) error {
	if tls == nil || !tls.Enabled {
		return nil
	}
	if tls.CertFile == "" {
		return fmt.Errorf("%s.cert_file must be set when tls is enabled", field)
	}
	if tls.KeyFile == "" {
		return fmt.Errorf("%s.key_file must be set when tls is enabled", field)
	}
	if tls.RequireClientCert && tls.ClientCAFile == "" {
		return fmt.Errorf("%s.client_ca_file must be set when require_client_cert is true", field)
	}
	return nil
}
