package configstore

import (
	"fmt"
	"time"
)

// UpstreamConfig is one named upstream target for an AI service.
// Credential is either a bearer token or an API key; exactly one of
// AuthToken/APIKey should be populated.
type UpstreamConfig struct {
	Name      string     `json:"name"`
	BaseURL   string     `json:"base_url"`
	AuthToken string     `json:"auth_token,omitempty"`
	APIKey    string     `json:"api_key,omitempty"`
	Weight    int        `json:"weight"`
	Active    bool       `json:"active"`
	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Credential resolves the effective credential value, preferring APIKey
// when both are populated (per spec's documented auth_token/api_key
// ambiguity resolution — legacy data with both fields prefers api_key).
// Returns the value and whether it should be sent as "x-api-key" (true)
// or "Authorization: Bearer" (false).
func (c *UpstreamConfig) Credential() (value string, isAPIKey bool) {
	if c.APIKey != "" {
		return c.APIKey, true
	}
	return c.AuthToken, false
}

// Validate rejects configs with both credential fields populated, per the
// config-write-time resolution of the auth_token/api_key ambiguity.
func (c *UpstreamConfig) Validate() error {
	if c.AuthToken != "" && c.APIKey != "" {
		return &ConfigValidationError{Name: c.Name, Reason: "both auth_token and api_key are set"}
	}
	if c.Deleted && c.Active {
		return &ConfigValidationError{Name: c.Name, Reason: "deleted config cannot be active"}
	}
	if c.Deleted && c.DeletedAt == nil {
		return &ConfigValidationError{Name: c.Name, Reason: "deleted config missing deleted_at"}
	}
	return nil
}

// ConfigValidationError reports an invariant violation on an UpstreamConfig.
type ConfigValidationError struct {
	Name   string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid config %q: %s", e.Name, e.Reason)
}

// ConfigLoadError wraps a failure to read or parse a service's config file.
// The engine surfaces this as a 500 for the affected service but does not
// crash the process.
type ConfigLoadError struct {
	Service string
	Path    string
	Err     error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("load config for service %q from %q: %v", e.Service, e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error { return e.Err }
