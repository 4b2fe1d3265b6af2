package config

// DefaultConfig returns an AppConfig populated with CLP's default ports and
// ambient settings: Claude on 3210, Codex on 3211, loopback bind, metrics
// and auth disabled.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Services: ServicesConfig{
			Claude: ServiceListenConfig{Listen: "127.0.0.1:3210"},
			Codex:  ServiceListenConfig{Listen: "127.0.0.1:3211"},
		},
		Auth: AuthConfig{Enabled: false},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			AddSource:  false,
			RedactPII:  true,
			BufferSize: 10000,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			Listen:                  "127.0.0.1:9090",
			Path:                    "/metrics",
			Namespace:               "clp",
			Subsystem:               "proxy",
			RequestDurationBuckets:  []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			TokenCountBuckets:       []float64{100, 500, 1000, 5000, 10000, 50000, 100000},
		},
		StoreDir: "~/.clp",
	}
}

// ApplyDefaults fills in zero-valued fields of cfg from DefaultConfig,
// leaving explicitly set fields untouched.
func ApplyDefaults(cfg *AppConfig) {
	defaults := DefaultConfig()

	if cfg.Services.Claude.Listen == "" {
		cfg.Services.Claude.Listen = defaults.Services.Claude.Listen
	}
	if cfg.Services.Codex.Listen == "" {
		cfg.Services.Codex.Listen = defaults.Services.Codex.Listen
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
	if cfg.Logging.BufferSize == 0 {
		cfg.Logging.BufferSize = defaults.Logging.BufferSize
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = defaults.Metrics.Listen
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaults.Metrics.Path
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = defaults.Metrics.Namespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = defaults.Metrics.Subsystem
	}
	if len(cfg.Metrics.RequestDurationBuckets) == 0 {
		cfg.Metrics.RequestDurationBuckets = defaults.Metrics.RequestDurationBuckets
	}
	if len(cfg.Metrics.TokenCountBuckets) == 0 {
		cfg.Metrics.TokenCountBuckets = defaults.Metrics.TokenCountBuckets
	}
	if cfg.StoreDir == "" {
		cfg.StoreDir = defaults.StoreDir
	}
}
