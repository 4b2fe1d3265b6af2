package router

import (
	"encoding/json"
	"log/slog"

	"clp/pkg/configstore"
)

// Router resolves model-to-model and model-to-config mapping rules for one
// service's requests, reloaded whenever data/model_router_config.json
// changes.
type Router struct {
	watched *configstore.Watched[*Config]
	logger  *slog.Logger
}

// NewRouter creates a Router backed by the given config path.
func NewRouter(path string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		watched: configstore.NewWatched(path, &Config{Mode: ModeDefault}, parseConfig),
		logger:  logger,
	}
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDefault
	}
	return &cfg, nil
}

// ExtractModel extracts the $.model field from a JSON request body. Returns
// ok=false if the body is not a JSON object or has no string model field.
func ExtractModel(body []byte) (model string, ok bool) {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false
	}
	m, ok := parsed["model"].(string)
	return m, ok
}

// Route applies the request's routing mode for service. In config-mapping
// mode it returns the forced config name for the current model (if any
// rule matches). In model-mapping mode it rewrites the body's model field
// for any matching source_type="model" rule and returns the rewritten
// body. In default mode or when the body has no model field, it is a
// no-op.
func (r *Router) Route(service string, body []byte) (newBody []byte, forcedConfig string, changed bool) {
	cfg, err := r.watched.Get()
	if err != nil {
		r.logger.Warn("router config unreadable, behaving as default", "error", err)
		return body, "", false
	}
	if cfg == nil || cfg.Mode == ModeDefault {
		return body, "", false
	}

	model, ok := ExtractModel(body)
	if !ok {
		return body, "", false
	}

	switch cfg.Mode {
	case ModeConfigMapping:
		for _, rule := range cfg.ConfigMappings[service] {
			if rule.Model == model {
				return body, rule.Config, false
			}
		}
		return body, "", false

	case ModeModelMapping:
		for _, rule := range cfg.ModelMappings[service] {
			if rule.SourceType != "model" {
				continue
			}
			if rule.Source == model {
				return rewriteModel(body, rule.Target), "", true
			}
		}
		return body, "", false
	}

	return body, "", false
}

// ApplyConfigModelMapping applies the first source_type="config"
// model-mapping rule matching the config that was actually selected to
// serve the request. Called after the Load Balancer has picked a
// candidate, since this rule's source is the config name, not the model.
func (r *Router) ApplyConfigModelMapping(service string, body []byte, configName string) (newBody []byte, changed bool) {
	cfg, err := r.watched.Get()
	if err != nil || cfg == nil || cfg.Mode != ModeModelMapping {
		return body, false
	}

	for _, rule := range cfg.ModelMappings[service] {
		if rule.SourceType != "config" {
			continue
		}
		if rule.Source == configName {
			return rewriteModel(body, rule.Target), true
		}
	}
	return body, false
}

func rewriteModel(body []byte, target string) []byte {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body
	}
	parsed["model"] = target
	out, err := json.Marshal(parsed)
	if err != nil {
		return body
	}
	return out
}
