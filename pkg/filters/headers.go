package filters

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"clp/pkg/configstore"
)

// HeaderFilterConfig is the on-disk shape of header_filter.json.
type HeaderFilterConfig struct {
	Enabled        bool     `json:"enabled"`
	BlockedHeaders []string `json:"blocked_headers"`
}

// HeaderStripper removes configured headers, case-insensitively, from
// outgoing requests. It never touches response headers.
type HeaderStripper struct {
	watched *configstore.Watched[*HeaderFilterConfig]
	logger  *slog.Logger
}

// NewHeaderStripper creates a HeaderStripper backed by the given
// header_filter.json path.
func NewHeaderStripper(path string, logger *slog.Logger) *HeaderStripper {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeaderStripper{
		watched: configstore.NewWatched(path, &HeaderFilterConfig{}, parseHeaderFilterConfig),
		logger:  logger,
	}
}

func parseHeaderFilterConfig(data []byte) (*HeaderFilterConfig, error) {
	var cfg HeaderFilterConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Apply returns headers with every name in blocked_headers removed,
// case-insensitively. The input is not mutated. Disabled or unreadable
// configuration returns the input unchanged.
func (h *HeaderStripper) Apply(headers http.Header) http.Header {
	cfg, err := h.watched.Get()
	if err != nil {
		h.logger.Warn("header filter unreadable, behaving as disabled", "error", err)
		return headers.Clone()
	}

	out := headers.Clone()
	if cfg == nil || !cfg.Enabled {
		return out
	}
	for _, name := range cfg.BlockedHeaders {
		out.Del(name) // http.Header canonicalizes names, so Del is already case-insensitive
	}
	return out
}
