// Package server hosts the per-service HTTP listeners that front the proxy
// engine for each upstream AI service.
package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"clp/pkg/config"
	"clp/pkg/proxy/middleware"
	"clp/pkg/security/auth"
)

// ServiceServer is a single HTTP listener for one upstream service (claude,
// codex, ...). It chains the ambient middleware, the authentication gate,
// and dispatches accepted requests to the service's Engine.
type ServiceServer struct {
	name       string
	listenCfg  config.ServiceListenConfig
	engine     http.Handler
	realtime   http.Handler
	logs       http.Handler
	gate       *auth.Gate
	corsCfg    *middleware.CORSConfig
	timeout    time.Duration
	httpServer *http.Server

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Options configures a ServiceServer.
type Options struct {
	// Name is the service name, e.g. "claude" or "codex".
	Name string
	// Listen is the per-service listen configuration (address, TLS).
	Listen config.ServiceListenConfig
	// Engine handles every request that isn't a health check or the
	// realtime WebSocket upgrade.
	Engine http.Handler
	// Realtime handles GET /ws/realtime upgrades. May be nil if the
	// realtime hub is not wired for this service.
	Realtime http.Handler
	// Logs handles GET /logs/export.csv and GET /logs/export.json. May be
	// nil if no log index is wired for this service.
	Logs http.Handler
	// Validator authenticates bearer tokens for this service. May be
	// nil when AuthEnabled is false.
	Validator *auth.TokenValidator
	// AuthEnabled gates every non-bypass request behind Validator.
	AuthEnabled bool
	// CORS configures cross-origin headers. Defaults to
	// middleware.DefaultCORSConfig() if nil.
	CORS *middleware.CORSConfig
	// RequestTimeout bounds how long a request may run before the
	// timeout middleware aborts it with 504.
	RequestTimeout time.Duration
}

// NewServiceServer builds a ServiceServer from opts.
func NewServiceServer(opts Options) *ServiceServer {
	cors := opts.CORS
	if cors == nil {
		cors = middleware.DefaultCORSConfig()
	}

	gate := auth.NewGate(opts.Name, opts.Validator, auth.DefaultTokenSources(), opts.AuthEnabled, "/health", "/ping")

	return &ServiceServer{
		name:      opts.Name,
		listenCfg: opts.Listen,
		engine:    opts.Engine,
		realtime:  opts.Realtime,
		logs:      opts.Logs,
		gate:      gate,
		corsCfg:   cors,
		timeout:   opts.RequestTimeout,
	}
}

// Start starts the HTTP server and blocks until the context is cancelled,
// a shutdown signal arrives, or the server fails.
func (s *ServiceServer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("%s: server is already running", s.name)
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.buildHandler()

	s.httpServer = &http.Server{
		Addr:              s.listenCfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsEnabled := s.listenCfg.TLS != nil && s.listenCfg.TLS.Enabled
	if tlsEnabled {
		tlsConfig, err := s.configureTLS()
		if err != nil {
			return fmt.Errorf("%s: failed to configure TLS: %w", s.name, err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting service listener",
			"service", s.name,
			"address", s.listenCfg.Listen,
			"tls_enabled", tlsEnabled,
		)

		var err error
		if tlsEnabled {
			err = s.httpServer.ListenAndServeTLS(s.listenCfg.TLS.CertFile, s.listenCfg.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("%s: server error: %w", s.name, err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown", "service", s.name)
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "service", s.name, "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *ServiceServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "service", s.name, "error", err)
				shutdownErr = fmt.Errorf("%s: server shutdown error: %w", s.name, err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("service listener stopped", "service", s.name)
	})

	return shutdownErr
}

// buildHandler wires the route mux and middleware chain:
// Recovery -> Logging -> RequestID -> CORS -> Timeout -> auth gate -> dispatch.
func (s *ServiceServer) buildHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ping", healthHandler)

	if s.realtime != nil {
		mux.Handle("/ws/realtime", s.realtime)
	}

	if s.logs != nil {
		mux.Handle("/logs/export.csv", s.logs)
		mux.Handle("/logs/export.json", s.logs)
	}

	mux.Handle("/", s.engine)

	var handler http.Handler = mux
	handler = s.gate.Handle(handler)

	if s.timeout > 0 {
		handler = middleware.TimeoutMiddleware(s.timeout)(handler)
	}

	handler = middleware.CORSMiddleware(s.corsCfg)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// configureTLS builds a tls.Config honoring the service's TLSConfig,
// including optional mutual-TLS client certificate verification.
func (s *ServiceServer) configureTLS() (*tls.Config, error) {
	tlsCfg := s.listenCfg.TLS

	if tlsCfg.CertFile == "" {
		return nil, fmt.Errorf("TLS cert file not specified")
	}
	if tlsCfg.KeyFile == "" {
		return nil, fmt.Errorf("TLS key file not specified")
	}
	if _, err := os.Stat(tlsCfg.CertFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("TLS cert file not found: %s", tlsCfg.CertFile)
	}
	if _, err := os.Stat(tlsCfg.KeyFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("TLS key file not found: %s", tlsCfg.KeyFile)
	}

	result := &tls.Config{
		MinVersion: tls.VersionTLS13,
		CipherSuites: []uint16{
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_CHACHA20_POLY1305_SHA256,
		},
	}

	if tlsCfg.RequireClientCert {
		if tlsCfg.ClientCAFile == "" {
			return nil, fmt.Errorf("client_ca_file required when require_client_cert is enabled")
		}
		caCert, err := os.ReadFile(tlsCfg.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read client CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse client CA file: %s", tlsCfg.ClientCAFile)
		}
		result.ClientCAs = pool
		result.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return result, nil
}

// IsRunning returns true if the server is currently running.
func (s *ServiceServer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the fully wired HTTP handler, for use in tests.
func (s *ServiceServer) Handler() http.Handler {
	return s.buildHandler()
}
