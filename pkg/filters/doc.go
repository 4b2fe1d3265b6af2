// Package filters implements the three independent, hot-reloaded request
// sanitizers that run before the engine selects an upstream candidate: the
// Endpoint Blocker, Header Stripper, and Body Rewriter.
//
// Each filter owns its own JSON file under the Config Store's directory
// (endpoint_filter.json, header_filter.json, filter.json) and reloads it by
// file signature on every access, the same stat-then-compare technique
// pkg/configstore uses for upstream configs. A malformed or unreadable file
// degrades the filter to a no-op rather than failing the request.
package filters
