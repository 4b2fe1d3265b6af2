package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func validToken(n int) string {
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 32)
	for i := range b {
		b[i] = alphabet[(n+i)%len(alphabet)]
	}
	return "clp_" + string(b)
}

func TestNewGate(t *testing.T) {
	validator := NewTokenValidator(nil)
	gate := NewGate("claude", validator, DefaultTokenSources(), true, "/health", "/ping")

	if gate == nil {
		t.Fatal("NewGate returned nil")
	}
	if gate.service != "claude" {
		t.Errorf("expected service claude, got %q", gate.service)
	}
	if len(gate.bypass) != 2 {
		t.Errorf("expected 2 bypass paths, got %d", len(gate.bypass))
	}
}

func TestGate_Handle(t *testing.T) {
	tok := validToken(1)

	tests := []struct {
		name           string
		tokens         []*TokenInfo
		service        string
		enabled        bool
		setupRequest   func(*http.Request)
		expectedStatus int
		checkContext   bool
	}{
		{
			name:    "valid bearer token",
			tokens:  []*TokenInfo{{Token: tok, Name: "primary", Active: true}},
			service: "claude",
			enabled: true,
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+tok)
			},
			expectedStatus: http.StatusOK,
			checkContext:   true,
		},
		{
			name:    "valid X-API-Key header",
			tokens:  []*TokenInfo{{Token: tok, Name: "primary", Active: true}},
			service: "claude",
			enabled: true,
			setupRequest: func(r *http.Request) {
				r.Header.Set("X-API-Key", tok)
			},
			expectedStatus: http.StatusOK,
			checkContext:   true,
		},
		{
			name:    "valid query token",
			tokens:  []*TokenInfo{{Token: tok, Name: "primary", Active: true}},
			service: "claude",
			enabled: true,
			setupRequest: func(r *http.Request) {
				q := r.URL.Query()
				q.Add("token", tok)
				r.URL.RawQuery = q.Encode()
			},
			expectedStatus: http.StatusOK,
			checkContext:   true,
		},
		{
			name:           "missing token",
			tokens:         nil,
			service:        "claude",
			enabled:        true,
			setupRequest:   func(r *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:    "invalid token",
			tokens:  []*TokenInfo{{Token: tok, Name: "primary", Active: true}},
			service: "claude",
			enabled: true,
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+validToken(2))
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:    "inactive token",
			tokens:  []*TokenInfo{{Token: tok, Name: "primary", Active: false}},
			service: "claude",
			enabled: true,
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+tok)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:    "expired token",
			tokens:  []*TokenInfo{{Token: tok, Name: "primary", Active: true, ExpiresAt: timePtr(time.Now().Add(-time.Hour))}},
			service: "claude",
			enabled: true,
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+tok)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:    "token scoped to a different service",
			tokens:  []*TokenInfo{{Token: tok, Name: "primary", Active: true, Services: []string{"codex"}}},
			service: "claude",
			enabled: true,
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+tok)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:    "disabled gate admits unauthenticated requests",
			tokens:  nil,
			service: "claude",
			enabled: false,
			setupRequest: func(r *http.Request) {
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewTokenValidator(tt.tokens)
			gate := NewGate(tt.service, validator, DefaultTokenSources(), tt.enabled, "/health")

			var contextChecked bool
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.checkContext {
					info, ok := TokenInfoFromContext(r.Context())
					if !ok || info == nil {
						t.Error("expected token info in context")
					}
					contextChecked = true
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/test", nil)
			tt.setupRequest(req)

			rr := httptest.NewRecorder()
			gate.Handle(handler).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if tt.checkContext && !contextChecked {
				t.Error("context was not checked in handler")
			}
		})
	}
}

func TestGate_BypassPath(t *testing.T) {
	validator := NewTokenValidator(nil)
	gate := NewGate("claude", validator, DefaultTokenSources(), true, "/health", "/ping")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, path := range []string{"/health", "/ping"} {
		req := httptest.NewRequest("GET", path, nil)
		rr := httptest.NewRecorder()
		gate.Handle(handler).ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("expected bypass path %s to return 200, got %d", path, rr.Code)
		}
	}
}

func TestGate_extractToken(t *testing.T) {
	tests := []struct {
		name          string
		sources       []TokenSource
		setupRequest  func(*http.Request)
		expectedToken string
		expectedError bool
	}{
		{
			name:    "extract from bearer token",
			sources: []TokenSource{{Type: "header", Name: "Authorization", Scheme: "Bearer"}},
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer clp_test")
			},
			expectedToken: "clp_test",
		},
		{
			name:    "extract from X-API-Key",
			sources: []TokenSource{{Type: "header", Name: "X-API-Key"}},
			setupRequest: func(r *http.Request) {
				r.Header.Set("X-API-Key", "clp_test")
			},
			expectedToken: "clp_test",
		},
		{
			name:    "extract from query parameter",
			sources: []TokenSource{{Type: "query", Name: "token"}},
			setupRequest: func(r *http.Request) {
				q := r.URL.Query()
				q.Add("token", "clp_test")
				r.URL.RawQuery = q.Encode()
			},
			expectedToken: "clp_test",
		},
		{
			name:          "no token found",
			sources:       []TokenSource{{Type: "header", Name: "Authorization", Scheme: "Bearer"}},
			setupRequest:  func(r *http.Request) {},
			expectedError: true,
		},
		{
			name:    "bearer scheme missing prefix falls through",
			sources: []TokenSource{{Type: "header", Name: "Authorization", Scheme: "Bearer"}},
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "clp_test")
			},
			expectedError: true,
		},
		{
			name: "tries sources in order",
			sources: []TokenSource{
				{Type: "header", Name: "Authorization", Scheme: "Bearer"},
				{Type: "query", Name: "token"},
			},
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer clp_header")
				q := r.URL.Query()
				q.Add("token", "clp_query")
				r.URL.RawQuery = q.Encode()
			},
			expectedToken: "clp_header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &Gate{sources: tt.sources}

			req := httptest.NewRequest("GET", "/test", nil)
			tt.setupRequest(req)

			token, err := gate.extractToken(req)

			if tt.expectedError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if token != tt.expectedToken {
				t.Errorf("expected token %q, got %q", tt.expectedToken, token)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
