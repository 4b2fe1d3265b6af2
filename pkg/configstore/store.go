package configstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store owns the `service -> {config_name -> UpstreamConfig}` files under a
// base directory (claude.json, codex.json, ...). Readers always see a
// fully consistent map; Update serializes writers per service and replaces
// the file atomically via temp-file-then-rename.
type Store struct {
	dir string

	mu      sync.Mutex
	watched map[string]*Watched[map[string]*UpstreamConfig]
}

// NewStore creates a Store rooted at dir (typically AppConfig.StoreDir).
func NewStore(dir string) *Store {
	return &Store{
		dir:     dir,
		watched: make(map[string]*Watched[map[string]*UpstreamConfig]),
	}
}

func parseUpstreamConfigs(data []byte) (map[string]*UpstreamConfig, error) {
	var m map[string]*UpstreamConfig
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for name, cfg := range m {
		if cfg.Name == "" {
			cfg.Name = name
		}
	}
	return m, nil
}

func (s *Store) watchedFor(service string) *Watched[map[string]*UpstreamConfig] {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.watched[service]
	if !ok {
		path := filepath.Join(s.dir, service+".json")
		w = NewWatched(path, map[string]*UpstreamConfig{}, parseUpstreamConfigs)
		s.watched[service] = w
	}
	return w
}

// Get returns an immutable snapshot of the named service's configs. A
// service with no backing file returns an empty map, not an error.
func (s *Store) Get(service string) (map[string]*UpstreamConfig, error) {
	m, err := s.watchedFor(service).Get()
	if err != nil {
		return nil, &ConfigLoadError{Service: service, Path: s.watchedFor(service).Path(), Err: err}
	}
	return m, nil
}

// Update applies mutation to a fresh copy of the service's current configs
// and persists the result atomically. mutation may add, remove, or modify
// entries in place; the map it receives is a shallow copy safe to mutate.
func (s *Store) Update(service string, mutation func(map[string]*UpstreamConfig) error) error {
	w := s.watchedFor(service)

	current, err := w.Get()
	if err != nil {
		return &ConfigLoadError{Service: service, Path: w.Path(), Err: err}
	}

	next := make(map[string]*UpstreamConfig, len(current))
	for name, cfg := range current {
		cp := *cfg
		next[name] = &cp
	}

	if err := mutation(next); err != nil {
		return err
	}

	for _, cfg := range next {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if err := writeJSONAtomic(w.Path(), next); err != nil {
		return err
	}
	w.Invalidate()
	return nil
}

// writeJSONAtomic marshals v and writes it to path via a temp file in the
// same directory followed by a rename, so readers never observe a
// partially written file.
func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
