package router

// Mode selects how a service's requests are routed.
type Mode string

const (
	ModeDefault       Mode = "default"
	ModeModelMapping  Mode = "model-mapping"
	ModeConfigMapping Mode = "config-mapping"
)

// ModelMapping renames a request's model field. SourceType determines
// whether Source is matched against the request's current model
// ("model") or the config name that will serve the request ("config").
type ModelMapping struct {
	Source     string `json:"source"`
	SourceType string `json:"source_type"` // "model" or "config"
	Target     string `json:"target"`
}

// ConfigMapping forces config-mapping mode to select Config whenever the
// request's model equals Model, bypassing the Load Balancer's choice.
type ConfigMapping struct {
	Model  string `json:"model"`
	Config string `json:"config"`
}

// Config is the on-disk shape of data/model_router_config.json.
type Config struct {
	Mode           Mode                      `json:"mode"`
	ModelMappings  map[string][]ModelMapping `json:"model_mappings"`
	ConfigMappings map[string][]ConfigMapping `json:"config_mappings"`
}
