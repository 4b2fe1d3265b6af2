// Command clp is a local reverse proxy that sits between AI CLI clients
// (Claude CLI, Codex CLI) and their upstream HTTP APIs.
//
// It provides:
//   - Active-first and weight-based load balancing across upstream configs
//   - Endpoint blocking, header stripping, and body rewriting
//   - Model-based and forced-config routing
//   - A realtime WebSocket event feed for request lifecycle observability
//   - Prometheus metrics and a per-service request log
//
// Usage:
//
//	# Start the claude and codex proxy listeners
//	clp run
//
//	# Start with a custom configuration file
//	clp run --config /path/to/clp.yaml
//
//	# Show version information
//	clp version
//
//	# Validate configuration without starting the listeners
//	clp validate
package main

func main() {
	Execute()
}
