package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func BenchmarkTokenValidator_Validate(b *testing.B) {
	tok := validToken(1)
	validator := NewTokenValidator([]*TokenInfo{{Token: tok, Name: "bench", Active: true}})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := validator.Validate(tok); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTokenValidator_ValidateManyTokens(b *testing.B) {
	tokens := make([]*TokenInfo, 1000)
	for i := 0; i < 1000; i++ {
		tokens[i] = &TokenInfo{Token: fmt.Sprintf("clp_key-%d", i), Name: fmt.Sprintf("key-%d", i), Active: true}
	}

	validator := NewTokenValidator(tokens)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := validator.Validate("clp_key-500"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTokenValidator_ValidateInvalid(b *testing.B) {
	validator := NewTokenValidator([]*TokenInfo{{Token: "clp_valid", Name: "bench", Active: true}})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := validator.Validate("clp_invalid"); err == nil {
			b.Fatal("expected error for invalid token")
		}
	}
}

func BenchmarkGate_Handle(b *testing.B) {
	tok := validToken(1)
	validator := NewTokenValidator([]*TokenInfo{{Token: tok, Name: "bench", Active: true}})
	gate := NewGate("claude", validator, DefaultTokenSources(), true, "/health")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := gate.Handle(handler)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			b.Fatalf("unexpected status: %d", w.Code)
		}
	}
}

func BenchmarkGate_HandleUnauthorized(b *testing.B) {
	tok := validToken(1)
	validator := NewTokenValidator([]*TokenInfo{{Token: tok, Name: "bench", Active: true}})
	gate := NewGate("claude", validator, DefaultTokenSources(), true, "/health")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := gate.Handle(handler)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer clp_invalid")
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			b.Fatalf("expected 401, got: %d", w.Code)
		}
	}
}

func BenchmarkGate_extractToken(b *testing.B) {
	gate := &Gate{sources: []TokenSource{
		{Type: "header", Name: "Authorization", Scheme: "Bearer"},
		{Type: "header", Name: "X-API-Key"},
	}}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer clp_test-1234567890")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := gate.extractToken(req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTokenInfoFromContext(b *testing.B) {
	info := &TokenInfo{Token: "clp_test", Name: "bench", Active: true}
	ctx := context.WithValue(context.Background(), tokenInfoKey, info)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := TokenInfoFromContext(ctx); !ok {
			b.Fatal("token info not found")
		}
	}
}

func BenchmarkTokenValidator_Add(b *testing.B) {
	validator := NewTokenValidator(nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		tok := fmt.Sprintf("clp_key-%d", i)
		b.StartTimer()

		validator.Add(&TokenInfo{Token: tok, Name: fmt.Sprintf("key-%d", i), Active: true})
	}
}

func BenchmarkTokenValidator_Remove(b *testing.B) {
	tokens := make([]*TokenInfo, 1000)
	for i := 0; i < 1000; i++ {
		tokens[i] = &TokenInfo{Token: fmt.Sprintf("clp_key-%d", i), Name: fmt.Sprintf("key-%d", i), Active: true}
	}

	validator := NewTokenValidator(tokens)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		validator.Remove(fmt.Sprintf("clp_key-%d", i%1000))
	}
}

func BenchmarkTokenValidator_List(b *testing.B) {
	tokens := make([]*TokenInfo, 100)
	for i := 0; i < 100; i++ {
		tokens[i] = &TokenInfo{Token: fmt.Sprintf("clp_key-%d", i), Name: fmt.Sprintf("key-%d", i), Active: true}
	}

	validator := NewTokenValidator(tokens)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		list := validator.List()
		if len(list) != 100 {
			b.Fatalf("expected 100 tokens, got %d", len(list))
		}
	}
}

func BenchmarkTokenValidator_Concurrent(b *testing.B) {
	validator := NewTokenValidator([]*TokenInfo{{Token: "clp_bench", Name: "bench", Active: true}})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := validator.Validate("clp_bench"); err != nil {
				b.Fatal(err)
			}
		}
	})
}
