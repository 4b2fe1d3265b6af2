// Package config loads and validates the ambient application configuration
// — listen addresses, TLS, logging, metrics, and the auth gate toggle. It is
// distinct from the per-service JSON domain files under ~/.clp/, which the
// Config Store package owns and hot-reloads by file signature.
package config

// AppConfig is the top-level ambient configuration, loaded once at startup
// from a YAML file (default ~/.clp/clp.yaml).
type AppConfig struct {
	// Services maps each AI service to its listener configuration.
	Services ServicesConfig `yaml:"services"`

	// Auth gates the proxy dispatch behind a token check.
	Auth AuthConfig `yaml:"auth"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus collector and its listener.
	Metrics MetricsConfig `yaml:"metrics"`

	// StoreDir is the directory holding the per-service JSON domain files
	// and request logs (default ~/.clp).
	StoreDir string `yaml:"store_dir"`
}

// ServicesConfig holds the per-service listener configuration.
type ServicesConfig struct {
	Claude ServiceListenConfig `yaml:"claude"`
	Codex  ServiceListenConfig `yaml:"codex"`
}

// ServiceListenConfig is one AI service's bind address and optional TLS.
type ServiceListenConfig struct {
	// Listen is the address:port this service's proxy binds to.
	Listen string `yaml:"listen"`

	// TLS is optional; nil means plaintext.
	TLS *TLSConfig `yaml:"tls,omitempty"`
}

// TLSConfig configures optional TLS/mTLS termination for a listener.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// CertFile/KeyFile are the server certificate and key paths.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// ClientCAFile, when set with RequireClientCert, enables mutual TLS.
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

// AuthConfig toggles the pre-engine token gate. Disabled by default.
type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig configures the structured logger's level, format, and
// redaction behavior.
type LoggingConfig struct {
	// Level is the minimum log level to emit: "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "json", "text", or "console".
	Format string `yaml:"format"`

	// AddSource includes the file:line of the log call site.
	AddSource bool `yaml:"add_source"`

	// RedactPII enables the built-in credential/token redaction patterns.
	RedactPII bool `yaml:"redact_pii"`

	// BufferSize is the size of the async log buffer.
	BufferSize int `yaml:"buffer_size"`

	// RedactPatterns contains additional custom PII redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom PII/secret redaction pattern.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig configures the Prometheus collector, served on its own
// listener, disabled by default.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Listen is the metrics listener's address:port.
	Listen string `yaml:"listen"`

	// Path is the HTTP path for the Prometheus exposition endpoint.
	Path string `yaml:"path"`

	// Namespace/Subsystem prefix every metric name.
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets/TokenCountBuckets configure histogram buckets.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
	TokenCountBuckets      []float64 `yaml:"token_count_buckets"`
}
