package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultTokenSources returns the three extraction sources accepted by the
// gate, tried in order: Authorization: Bearer, X-API-Key, and ?token=.
func DefaultTokenSources() []TokenSource {
	return []TokenSource{
		{Type: "header", Name: "Authorization", Scheme: "Bearer"},
		{Type: "header", Name: "X-API-Key", Scheme: ""},
		{Type: "query", Name: "token", Scheme: ""},
	}
}

// TokenSource defines where to extract a bearer token from.
type TokenSource struct {
	Type   string // header, query
	Name   string // Header name or query param
	Scheme string // "Bearer", etc. (optional)
}

// Gate is HTTP middleware enforcing the pre-engine authentication gate for
// a single upstream service. It is a no-op when disabled, and always lets
// bypass paths (health and readiness checks) through unauthenticated.
type Gate struct {
	validator *TokenValidator
	sources   []TokenSource
	service   string
	enabled   bool
	bypass    map[string]struct{}
}

// NewGate creates an authentication gate for service, validating tokens
// against validator using sources. Requests to a bypass path skip
// validation entirely.
func NewGate(service string, validator *TokenValidator, sources []TokenSource, enabled bool, bypassPaths ...string) *Gate {
	bypass := make(map[string]struct{}, len(bypassPaths))
	for _, p := range bypassPaths {
		bypass[p] = struct{}{}
	}
	return &Gate{
		validator: validator,
		sources:   sources,
		service:   service,
		enabled:   enabled,
		bypass:    bypass,
	}
}

// Handle wraps next with the authentication gate.
func (g *Gate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.enabled {
			next.ServeHTTP(w, r)
			return
		}

		if _, ok := g.bypass[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		token, err := g.extractToken(r)
		if err != nil {
			slog.Warn("auth: missing token",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			writeAuthError(w, "Missing or malformed authentication token")
			return
		}

		info, err := g.validator.Validate(token)
		if err != nil {
			slog.Warn("auth: invalid token",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			writeAuthError(w, "Invalid or expired authentication token")
			return
		}

		if !info.AllowsService(g.service) {
			slog.Warn("auth: token not permitted for service",
				"token_name", info.Name,
				"service", g.service,
				"path", r.URL.Path,
			)
			writeAuthError(w, "Token is not permitted for this service")
			return
		}

		slog.Debug("auth: token accepted",
			"token_name", info.Name,
			"service", g.service,
			"path", r.URL.Path,
		)

		ctx := context.WithValue(r.Context(), tokenInfoKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":{"type":"authentication_error","message":%q}}`, message)
}

// extractToken extracts the bearer token from the request using the
// configured sources, tried in order.
func (g *Gate) extractToken(r *http.Request) (string, error) {
	for _, source := range g.sources {
		switch source.Type {
		case "header":
			value := r.Header.Get(source.Name)
			if value == "" {
				continue
			}
			if source.Scheme != "" {
				prefix := source.Scheme + " "
				if strings.HasPrefix(value, prefix) {
					return strings.TrimPrefix(value, prefix), nil
				}
				continue
			}
			return value, nil

		case "query":
			value := r.URL.Query().Get(source.Name)
			if value != "" {
				return value, nil
			}
		}
	}

	return "", fmt.Errorf("no authentication token found")
}

// contextKey namespaces context values stored by this package.
type contextKey string

// #nosec G101 - this is a context key constant, not a credential
const tokenInfoKey contextKey = "clp_token_info"

// TokenInfoFromContext retrieves the authenticated token info from a
// request context, if the gate admitted the request.
func TokenInfoFromContext(ctx context.Context) (*TokenInfo, bool) {
	info, ok := ctx.Value(tokenInfoKey).(*TokenInfo)
	return info, ok
}
