// Package server hosts the per-service HTTP listeners that front the proxy
// engine for each upstream AI service (claude, codex, ...).
//
// # Architecture
//
// One ServiceServer runs per configured service. Each:
//   - Chains the ambient middleware and the pre-engine authentication gate
//   - Dispatches accepted requests to that service's Engine
//   - Optionally upgrades GET /ws/realtime to the realtime hub's transport
//   - Manages its own graceful shutdown and OS signal handling
//
// # Basic Usage
//
//	import (
//	    "context"
//	    "clp/pkg/config"
//	    "clp/pkg/server"
//	)
//
//	cfg := config.MustGetConfig()
//
//	srv := server.NewServiceServer(server.Options{
//	    Name:        "claude",
//	    Listen:      cfg.Services.Claude,
//	    Engine:      engine,
//	    Validator:   validator,
//	    AuthEnabled: cfg.Auth.Enabled,
//	})
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Start blocks until the context is cancelled, SIGTERM/SIGINT arrives, or
// the listener fails. Shutdown can also be triggered directly:
//
//	if err := srv.Shutdown(context.Background()); err != nil {
//	    log.Error("shutdown error", "error", err)
//	}
//
// # Routes
//
//   - GET /health, GET /ping - liveness probes, always bypass authentication
//   - GET /ws/realtime - WebSocket upgrade into the realtime hub, subject to auth
//   - everything else - dispatched to the service's Engine
//
// # Middleware Chain
//
// Requests pass through the following middleware, innermost to outermost:
//  1. Auth gate: validates the bearer token unless the path bypasses it
//  2. Timeout: enforces a per-request deadline
//  3. CORS: adds cross-origin headers
//  4. RequestID: generates a unique ID for tracing
//  5. Logging: logs request/response details
//  6. Recovery: recovers from panics and returns a 500
//
// # TLS Support
//
// TLS 1.3 is enforced when a service's TLSConfig is enabled, with optional
// mutual-TLS client certificate verification:
//
//	services:
//	  claude:
//	    tls:
//	      enabled: true
//	      cert_file: "/path/to/cert.pem"
//	      key_file: "/path/to/key.pem"
//	      require_client_cert: true
//	      client_ca_file: "/path/to/ca.pem"
//
// # Thread Safety
//
// All ServiceServer operations are thread-safe and may be called
// concurrently from multiple goroutines.
package server
