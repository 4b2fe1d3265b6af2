package router

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model_router_config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractModel(t *testing.T) {
	model, ok := ExtractModel([]byte(`{"model":"claude-3","max_tokens":10}`))
	if !ok || model != "claude-3" {
		t.Fatalf("got model=%q ok=%v", model, ok)
	}

	if _, ok := ExtractModel([]byte(`not json`)); ok {
		t.Fatal("expected ok=false for non-JSON body")
	}
}

func TestRouter_DefaultModeIsNoop(t *testing.T) {
	path := writeConfig(t, `{"mode":"default"}`)
	r := NewRouter(path, nil)

	body := []byte(`{"model":"claude-3"}`)
	newBody, forced, changed := r.Route("claude", body)
	if changed || forced != "" || string(newBody) != string(body) {
		t.Errorf("expected no-op, got newBody=%s forced=%q changed=%v", newBody, forced, changed)
	}
}

func TestRouter_ConfigMappingForcesConfig(t *testing.T) {
	path := writeConfig(t, `{
		"mode": "config-mapping",
		"config_mappings": {"claude": [{"model":"claude-3-opus","config":"premium"}]}
	}`)
	r := NewRouter(path, nil)

	_, forced, _ := r.Route("claude", []byte(`{"model":"claude-3-opus"}`))
	if forced != "premium" {
		t.Errorf("expected forced config 'premium', got %q", forced)
	}

	_, forced2, _ := r.Route("claude", []byte(`{"model":"claude-3-haiku"}`))
	if forced2 != "" {
		t.Errorf("expected no forced config for unmatched model, got %q", forced2)
	}
}

func TestRouter_ModelMappingRewritesModel(t *testing.T) {
	path := writeConfig(t, `{
		"mode": "model-mapping",
		"model_mappings": {"claude": [{"source":"old-model","source_type":"model","target":"new-model"}]}
	}`)
	r := NewRouter(path, nil)

	newBody, forced, changed := r.Route("claude", []byte(`{"model":"old-model"}`))
	if !changed || forced != "" {
		t.Fatalf("expected model rewrite, got changed=%v forced=%q", changed, forced)
	}

	var parsed map[string]any
	if err := json.Unmarshal(newBody, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed["model"] != "new-model" {
		t.Errorf("expected model rewritten to new-model, got %v", parsed["model"])
	}
}

func TestRouter_ApplyConfigModelMapping(t *testing.T) {
	path := writeConfig(t, `{
		"mode": "model-mapping",
		"model_mappings": {"claude": [{"source":"backup","source_type":"config","target":"fallback-model"}]}
	}`)
	r := NewRouter(path, nil)

	newBody, changed := r.ApplyConfigModelMapping("claude", []byte(`{"model":"x"}`), "backup")
	if !changed {
		t.Fatal("expected config-sourced model mapping to apply")
	}
	var parsed map[string]any
	json.Unmarshal(newBody, &parsed)
	if parsed["model"] != "fallback-model" {
		t.Errorf("expected model=fallback-model, got %v", parsed["model"])
	}
}
