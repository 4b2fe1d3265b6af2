// Package config loads the ambient application configuration for clp.
//
// # Usage
//
//	if err := config.Initialize("/home/user/.clp/clp.yaml"); err != nil {
//		log.Fatal(err)
//	}
//	cfg := config.MustGetConfig()
//
// # Environment Overrides
//
// Every field can be overridden with a CLP_<SECTION>_<FIELD> environment
// variable, e.g. CLP_AUTH_ENABLED=true. Overrides are applied after file
// load and take precedence over values in the YAML file.
//
// This is distinct from the Config Store package, which owns the
// per-service JSON domain files (claude.json, codex.json, filter.json, ...)
// under AppConfig.StoreDir and hot-reloads them by file signature rather
// than at process startup.
package config
