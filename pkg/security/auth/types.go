package auth

import "time"

// TokenInfo represents a bearer token accepted by the authentication gate.
type TokenInfo struct {
	Token       string     `json:"token"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Active      bool       `json:"active"`
	// Services restricts the token to the named upstream services
	// (e.g. "claude", "codex"). An empty slice means all services.
	Services []string `json:"services"`
}

// AllowsService reports whether the token may be used against the given
// service name.
func (t *TokenInfo) AllowsService(service string) bool {
	if len(t.Services) == 0 {
		return true
	}
	for _, s := range t.Services {
		if s == service {
			return true
		}
	}
	return false
}

// Expired reports whether the token has passed its expiry time.
func (t *TokenInfo) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// TokenStore stores and validates bearer tokens.
type TokenStore interface {
	Validate(token string) (*TokenInfo, error)
	List() []*TokenInfo
}
