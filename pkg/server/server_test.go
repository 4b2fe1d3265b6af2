package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clp/pkg/config"
	"clp/pkg/security/auth"
)

func echoEngine() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestServiceServer_HealthBypassesAuth(t *testing.T) {
	srv := NewServiceServer(Options{
		Name:        "claude",
		Listen:      config.ServiceListenConfig{Listen: "127.0.0.1:0"},
		Engine:      echoEngine(),
		AuthEnabled: true,
		Validator:   auth.NewTokenValidator(nil),
	})

	for _, path := range []string{"/health", "/ping"} {
		req := httptest.NewRequest("GET", path, nil)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestServiceServer_EngineRequiresAuthWhenEnabled(t *testing.T) {
	srv := NewServiceServer(Options{
		Name:        "claude",
		Listen:      config.ServiceListenConfig{Listen: "127.0.0.1:0"},
		Engine:      echoEngine(),
		AuthEnabled: true,
		Validator:   auth.NewTokenValidator(nil),
	})

	req := httptest.NewRequest("POST", "/v1/messages", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", rr.Code)
	}
}

func TestServiceServer_EngineDispatchedWhenAuthDisabled(t *testing.T) {
	srv := NewServiceServer(Options{
		Name:        "claude",
		Listen:      config.ServiceListenConfig{Listen: "127.0.0.1:0"},
		Engine:      echoEngine(),
		AuthEnabled: false,
	})

	req := httptest.NewRequest("POST", "/v1/messages", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Errorf("expected request to reach the engine, got %d", rr.Code)
	}
}

func TestServiceServer_AuthenticatedRequestReachesEngine(t *testing.T) {
	tok := "clp_" + "0123456789ABCDEFGHIJKLMNOPQRSTUV"
	validator := auth.NewTokenValidator([]*auth.TokenInfo{
		{Token: tok, Name: "test", Active: true},
	})

	srv := NewServiceServer(Options{
		Name:        "claude",
		Listen:      config.ServiceListenConfig{Listen: "127.0.0.1:0"},
		Engine:      echoEngine(),
		AuthEnabled: true,
		Validator:   validator,
	})

	req := httptest.NewRequest("POST", "/v1/messages", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Errorf("expected authenticated request to reach the engine, got %d", rr.Code)
	}
}

func TestServiceServer_StartAndShutdown(t *testing.T) {
	srv := NewServiceServer(Options{
		Name:           "claude",
		Listen:         config.ServiceListenConfig{Listen: "127.0.0.1:0"},
		Engine:         echoEngine(),
		RequestTimeout: time.Second,
	})

	if srv.IsRunning() {
		t.Fatal("expected server to not be running before Start")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()

	// Give the listener goroutine a moment to flip isRunning.
	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !srv.IsRunning() {
		t.Fatal("server did not report running")
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected Start error: %v", err)
	}
	if srv.IsRunning() {
		t.Error("expected server to report stopped after shutdown")
	}
}
