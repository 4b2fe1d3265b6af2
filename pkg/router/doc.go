// Package router applies model-to-model and model-to-config mapping rules
// to a parsed client request body, loaded from
// data/model_router_config.json and reloaded by file signature.
//
// The Engine calls ExtractModel once to read the request's model field,
// then Route to resolve a config-mapping's forced config name (if mode is
// "config-mapping"), and once a candidate config is chosen,
// ApplyConfigModelMapping to apply any model-mapping rule whose
// source_type is "config" against the config actually used. This two-step
// split exists because a config-source-type model-mapping rule depends on
// the Load Balancer's pick, which happens after the first routing pass.
package router
