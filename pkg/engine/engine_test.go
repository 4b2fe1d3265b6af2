package engine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"clp/pkg/configstore"
	"clp/pkg/filters"
	"clp/pkg/hub"
	"clp/pkg/loadbalancer"
	"clp/pkg/requestlog"
	"clp/pkg/router"
)

// testEnv wires a fully disabled/default ambient stack (no blocking, no
// header/body rewriting, default routing) around a caller-supplied load
// balancer config, so each test only has to describe what it cares about.
type testEnv struct {
	storeDir string
	lb       *loadbalancer.LoadBalancer
	hub      *hub.Hub
	log      *requestlog.Log
}

func newTestEnv(t *testing.T, lbConfig loadbalancer.Config) *testEnv {
	t.Helper()
	dir := t.TempDir()

	lbPath := filepath.Join(dir, "lb_config.json")
	data, err := json.Marshal(lbConfig)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(lbPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	return &testEnv{
		storeDir: dir,
		lb:       loadbalancer.NewLoadBalancer(lbPath, nil),
		hub:      hub.New(),
		log:      requestlog.New(filepath.Join(dir, "requests.jsonl"), nil),
	}
}

func (env *testEnv) putConfigs(t *testing.T, service string, configs map[string]*configstore.UpstreamConfig) *configstore.Store {
	t.Helper()
	store := configstore.NewStore(env.storeDir)
	err := store.Update(service, func(m map[string]*configstore.UpstreamConfig) error {
		for name, cfg := range configs {
			m[name] = cfg
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func (env *testEnv) newEngine(t *testing.T, service string, store *configstore.Store) *Engine {
	t.Helper()
	nonexistent := filepath.Join(env.storeDir, "does-not-exist.json")
	return New(Options{
		Service:        service,
		ConfigStore:    store,
		Blocker:        filters.NewBlocker(nonexistent, nil),
		HeaderStripper: filters.NewHeaderStripper(nonexistent, nil),
		BodyRewriter:   filters.NewBodyRewriter(nonexistent, nil),
		Router:         router.NewRouter(nonexistent, nil),
		LoadBalancer:   env.lb,
		Hub:            env.hub,
		Log:            env.log,
	})
}

// drainEvents collects expect events off an already-subscribed
// subscription within a short window, returning them in publish order. The
// subscription must be created before the call that publishes the events
// being drained: the hub delivers to whoever is listening at publish time
// and does not replay anything to a subscriber that joins later.
func drainEvents(t *testing.T, sub *hub.Subscription, expect int) []hub.Event {
	t.Helper()

	var events []hub.Event
	deadline := time.After(2 * time.Second)
	for len(events) < expect {
		select {
		case e := <-sub.Events():
			events = append(events, e)
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d: %+v", expect, len(events), events)
		}
	}
	return events
}

func eventTypes(events []hub.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i], _ = e["type"].(string)
	}
	return out
}

func TestEngine_BlockedRequestNeverReachesUpstream(t *testing.T) {
	env := newTestEnv(t, loadbalancer.Config{Mode: loadbalancer.ModeActiveFirst, Options: loadbalancer.Options{FailureThreshold: 3}})

	dir := t.TempDir()
	blockPath := filepath.Join(dir, "endpoint_filter.json")
	blockCfg := `{"enabled":true,"rules":[{"id":"no-admin","services":["claude"],"methods":["GET"],"match":{"type":"path","value":"/admin"},"action":{"status":403,"message":"forbidden"}}]}`
	if err := os.WriteFile(blockPath, []byte(blockCfg), 0o644); err != nil {
		t.Fatal(err)
	}

	store := env.putConfigs(t, "claude", map[string]*configstore.UpstreamConfig{
		"prod": {Name: "prod", BaseURL: "http://unused.invalid", AuthToken: "tok", Active: true},
	})
	e := env.newEngine(t, "claude", store)
	e.blocker = filters.NewBlocker(blockPath, nil)

	req := httptest.NewRequest("GET", "/admin", nil)
	w := httptest.NewRecorder()

	sub := env.hub.Subscribe("claude")
	defer sub.Close()

	e.ServeHTTP(w, req)

	if w.Code != 403 {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w.Body.String() != "forbidden" {
		t.Fatalf("expected synthetic body %q, got %q", "forbidden", w.Body.String())
	}

	var events []hub.Event
	for len(events) < 2 {
		select {
		case ev := <-sub.Events():
			events = append(events, ev)
		case <-time.After(time.Second):
			t.Fatalf("expected 2 events, got %d", len(events))
		}
	}
	if got := eventTypes(events); got[0] != hub.EventStarted || got[1] != hub.EventCompleted {
		t.Fatalf("expected [started completed], got %v", got)
	}
	if events[1]["success"] != false {
		t.Fatalf("expected completed.success=false, got %+v", events[1])
	}

	recs := env.log.List(10)
	if len(recs) != 1 || !recs[0].Blocked || recs[0].BlockedBy != "no-admin" {
		t.Fatalf("expected one blocked record tagged no-admin, got %+v", recs)
	}
}

func TestEngine_ActiveFirstHappyPath(t *testing.T) {
	env := newTestEnv(t, loadbalancer.Config{Mode: loadbalancer.ModeActiveFirst, Options: loadbalancer.Options{FailureThreshold: 3}})

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("expected upstream Authorization header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	store := env.putConfigs(t, "claude", map[string]*configstore.UpstreamConfig{
		"prod": {Name: "prod", BaseURL: upstream.URL, AuthToken: "secret-token", Active: true},
	})
	e := env.newEngine(t, "claude", store)

	req := httptest.NewRequest("POST", "/v1/messages", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != `{"ok":true}` {
		t.Fatalf("unexpected body %q", w.Body.String())
	}

	recs := env.log.List(10)
	if len(recs) != 1 || recs[0].StatusCode != 200 || recs[0].ConfigName != "prod" {
		t.Fatalf("expected one successful record for prod, got %+v", recs)
	}
}

// TestEngine_WeightBasedRetriesThenSucceeds exercises a single lb_switch:
// the first (higher-weight) candidate always fails, the second succeeds,
// and the failing candidate's response is never forwarded to the client.
func TestEngine_WeightBasedRetriesThenSucceeds(t *testing.T) {
	env := newTestEnv(t, loadbalancer.Config{
		Mode:    loadbalancer.ModeWeightBased,
		Options: loadbalancer.Options{FailureThreshold: 1, AutoResetOnAllFailed: true, ResetCooldownSeconds: 30},
	})

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		_, _ = w.Write([]byte("boom"))
	}))
	defer failing.Close()

	succeeding := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer succeeding.Close()

	store := env.putConfigs(t, "claude", map[string]*configstore.UpstreamConfig{
		"a": {Name: "a", BaseURL: failing.URL, AuthToken: "x", Weight: 10},
		"b": {Name: "b", BaseURL: succeeding.URL, AuthToken: "x", Weight: 5},
	})
	e := env.newEngine(t, "claude", store)

	req := httptest.NewRequest("POST", "/v1/messages", nil)
	w := httptest.NewRecorder()

	sub := env.hub.Subscribe("claude")
	defer sub.Close()

	e.ServeHTTP(w, req)

	if w.Code != 200 || w.Body.String() != `{"ok":true}` {
		t.Fatalf("expected forwarded success from b, got %d %q", w.Code, w.Body.String())
	}

	var events []hub.Event
	for len(events) < 3 {
		select {
		case ev := <-sub.Events():
			events = append(events, ev)
		case <-time.After(time.Second):
			t.Fatalf("expected 3 events (started, lb_switch, completed), got %d: %+v", len(events), events)
		}
	}
	got := eventTypes(events)
	want := []string{hub.EventStarted, hub.EventLBSwitch, hub.EventCompleted}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event sequence = %v, want %v", got, want)
		}
	}
	if events[1]["from_channel"] != "a" || events[1]["to_channel"] != "b" {
		t.Fatalf("expected lb_switch a->b, got %+v", events[1])
	}

	recs := env.log.List(10)
	if len(recs) != 1 || recs[0].ConfigName != "b" || recs[0].StatusCode != 200 {
		t.Fatalf("expected one logged record for b, got %+v", recs)
	}
}

// TestEngine_WeightBasedExhaustsThenResetsThenExhaustsAgain reproduces the
// full two-round event sequence when every candidate fails both times:
// lb_switch, lb_reset, lb_switch, lb_exhausted.
func TestEngine_WeightBasedExhaustsThenResetsThenExhaustsAgain(t *testing.T) {
	env := newTestEnv(t, loadbalancer.Config{
		Mode:    loadbalancer.ModeWeightBased,
		Options: loadbalancer.Options{FailureThreshold: 1, AutoResetOnAllFailed: true, ResetCooldownSeconds: 30},
	})

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
	}))
	defer failing.Close()

	store := env.putConfigs(t, "claude", map[string]*configstore.UpstreamConfig{
		"a": {Name: "a", BaseURL: failing.URL, AuthToken: "x", Weight: 10},
		"b": {Name: "b", BaseURL: failing.URL, AuthToken: "x", Weight: 5},
	})
	e := env.newEngine(t, "claude", store)

	req := httptest.NewRequest("POST", "/v1/messages", nil)
	w := httptest.NewRecorder()

	sub := env.hub.Subscribe("claude")
	defer sub.Close()

	e.ServeHTTP(w, req)

	if w.Code != 503 {
		t.Fatalf("expected synthetic 503, got %d", w.Code)
	}

	events := drainEvents(t, sub, 6)
	got := eventTypes(events)
	want := []string{hub.EventStarted, hub.EventLBSwitch, hub.EventLBReset, hub.EventLBSwitch, hub.EventLBExhausted, hub.EventCompleted}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event sequence = %v, want %v", got, want)
		}
	}

	// A second request lands with both configs already excluded (the first
	// request's second pass excluded both without triggering another
	// reset), so Pick returns no candidates at all: no attempt is made, so
	// no lb_switch — just started, lb_exhausted, completed. The same
	// subscription is reused since it was created before either request.
	req2 := httptest.NewRequest("POST", "/v1/messages", nil)
	w2 := httptest.NewRecorder()
	e.ServeHTTP(w2, req2)
	if w2.Code != 503 {
		t.Fatalf("expected synthetic 503 on second request, got %d", w2.Code)
	}
	events2 := drainEvents(t, sub, 3)
	got2 := eventTypes(events2)
	want2 := []string{hub.EventStarted, hub.EventLBExhausted, hub.EventCompleted}
	for i := range want2 {
		if got2[i] != want2[i] {
			t.Fatalf("second-request event sequence = %v, want %v", got2, want2)
		}
	}
}

func TestEngine_StreamedResponseParsesClaudeUsage(t *testing.T) {
	env := newTestEnv(t, loadbalancer.Config{Mode: loadbalancer.ModeActiveFirst, Options: loadbalancer.Options{FailureThreshold: 3}})

	sse := "event: message_start\ndata: {\"message\":{\"usage\":{\"input_tokens\":12,\"cache_creation_input_tokens\":0,\"cache_read_input_tokens\":0}}}\n\n" +
		"event: message_delta\ndata: {\"usage\":{\"output_tokens\":7}}\n\n"

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(sse))
	}))
	defer upstream.Close()

	store := env.putConfigs(t, "claude", map[string]*configstore.UpstreamConfig{
		"prod": {Name: "prod", BaseURL: upstream.URL, AuthToken: "tok", Active: true},
	})
	e := env.newEngine(t, "claude", store)

	req := httptest.NewRequest("POST", "/v1/messages", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	recs := env.log.List(10)
	if len(recs) != 1 {
		t.Fatalf("expected one record, got %d", len(recs))
	}
	u := recs[0].Usage
	if u.Input != 12 || u.Output != 7 || u.Total != 19 {
		t.Fatalf("expected input=12 output=7 total=19, got %+v", u)
	}
}

func TestEngine_BodyRewriteRecomputesContentLength(t *testing.T) {
	env := newTestEnv(t, loadbalancer.Config{Mode: loadbalancer.ModeActiveFirst, Options: loadbalancer.Options{FailureThreshold: 3}})

	var gotLength string
	var gotBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLength = r.Header.Get("Content-Length")
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = buf
		w.WriteHeader(200)
	}))
	defer upstream.Close()

	dir := t.TempDir()
	filterPath := filepath.Join(dir, "filter.json")
	rules := `[{"source":"claude-3-opus","op":"replace","target":"claude-3-haiku-rewritten"}]`
	if err := os.WriteFile(filterPath, []byte(rules), 0o644); err != nil {
		t.Fatal(err)
	}

	store := env.putConfigs(t, "claude", map[string]*configstore.UpstreamConfig{
		"prod": {Name: "prod", BaseURL: upstream.URL, AuthToken: "tok", Active: true},
	})
	e := env.newEngine(t, "claude", store)
	e.bodyRewriter = filters.NewBodyRewriter(filterPath, nil)

	body := `{"model":"claude-3-opus"}`
	req := httptest.NewRequest("POST", "/v1/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	e.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	want := `{"model":"claude-3-haiku-rewritten"}`
	if string(gotBody[:len(want)]) != want {
		t.Fatalf("expected rewritten body %q, got %q", want, string(gotBody))
	}
	if gotLength != strconv.Itoa(len(want)) {
		t.Fatalf("expected Content-Length %d, got %s", len(want), gotLength)
	}
}
