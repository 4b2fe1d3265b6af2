package auth

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"clp/pkg/configstore"
)

// fileFormat is the on-disk shape of auth.json: {enabled, tokens, services}.
// services is UI-facing metadata (which services the token UI should show)
// and is round-tripped but not otherwise interpreted here.
type fileFormat struct {
	Enabled  bool            `json:"enabled"`
	Tokens   []*TokenInfo    `json:"tokens"`
	Services map[string]bool `json:"services,omitempty"`
}

// Store owns ~/.clp/auth.json: the registered bearer tokens plus the
// top-level enabled flag. It reloads whenever the file's stat signature
// changes, the same way the Config Store and Filters do.
type Store struct {
	path    string
	watched *configstore.Watched[*fileFormat]
}

// NewStore creates a Store rooted at path (typically
// filepath.Join(AppConfig.StoreDir, "auth.json")).
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		watched: configstore.NewWatched(path, &fileFormat{}, parseAuthFile),
	}
}

func parseAuthFile(data []byte) (*fileFormat, error) {
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Enabled reports the file's top-level enabled flag. A missing file is
// treated as disabled.
func (s *Store) Enabled() (bool, error) {
	f, err := s.watched.Get()
	if err != nil {
		return false, err
	}
	return f.Enabled, nil
}

// Tokens returns the currently registered tokens. A missing file yields an
// empty slice, not an error.
func (s *Store) Tokens() ([]*TokenInfo, error) {
	f, err := s.watched.Get()
	if err != nil {
		return nil, err
	}
	return f.Tokens, nil
}

// Validator builds a TokenValidator snapshotting the currently registered
// tokens. Call again after a Generate/Revoke to pick up the change.
func (s *Store) Validator() (*TokenValidator, error) {
	tokens, err := s.Tokens()
	if err != nil {
		return nil, err
	}
	return NewTokenValidator(tokens), nil
}

// Generate creates a new clp_<base62{32}> token, appends it to the file,
// and returns the created TokenInfo.
func (s *Store) Generate(name, description string, services []string, expiresAt *time.Time) (*TokenInfo, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	info := &TokenInfo{
		Token:       token,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
		Active:      true,
		Services:    services,
	}

	if err := s.mutate(func(f *fileFormat) {
		f.Tokens = append(f.Tokens, info)
	}); err != nil {
		return nil, err
	}
	return info, nil
}

// Revoke removes the token matching value from the file. Returns false if
// no matching token was found.
func (s *Store) Revoke(value string) (bool, error) {
	found := false
	err := s.mutate(func(f *fileFormat) {
		kept := f.Tokens[:0]
		for _, t := range f.Tokens {
			if t.Token == value {
				found = true
				continue
			}
			kept = append(kept, t)
		}
		f.Tokens = kept
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// mutate reads the current file (defaulting to a fresh, disabled file if
// none exists), applies fn, and writes the result back atomically via
// temp-file-then-rename.
func (s *Store) mutate(fn func(*fileFormat)) error {
	f, err := s.watched.Get()
	if err != nil {
		return err
	}
	// Get() may hand back the shared zero value; copy before mutating.
	next := &fileFormat{Enabled: f.Enabled, Services: f.Services}
	next.Tokens = append(next.Tokens, f.Tokens...)
	fn(next)

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".auth-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	s.watched.Invalidate()
	return nil
}

const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// newToken generates a clp_<base62{32}> bearer token.
func newToken() (string, error) {
	suffix := make([]byte, 32)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tokenAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}
		suffix[i] = tokenAlphabet[n.Int64()]
	}
	return "clp_" + string(suffix), nil
}
