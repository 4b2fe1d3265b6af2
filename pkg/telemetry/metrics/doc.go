// Package metrics provides Prometheus metrics collection for the proxy.
//
// # Overview
//
// The metrics package implements Prometheus metrics for monitoring request
// processing, upstream health, load-balancer behavior, and parsed token
// usage. It is served on a separate metrics listener, disabled by default.
//
// # Metrics Categories
//
//   - Request Metrics: request count, duration, tokens, and sizes by service/config_name
//   - Provider Metrics: upstream health, latency, and error rates by service
//   - Load-Balancer Metrics: switch/reset/exhausted counters by service
//   - Usage Metrics: parsed token counters by service/metric
//
// # Usage
//
//	collector := metrics.NewCollector(config, registry)
//
//	collector.RecordRequest("claude", "prod", "success", time.Second, 1500)
//	collector.RecordProviderLatency("claude", "prod", 0.95)
//	collector.UpdateProviderHealth("claude", true)
//	collector.RecordLBSwitch("claude")
//	collector.RecordUsage("claude", "output", 7)
//
// # Custom Histogram Buckets
//
//	Request Duration: 0.1s, 0.25s, 0.5s, 1s, 2s, 5s, 10s, 30s
//	Token Counts: 100, 500, 1K, 5K, 10K, 50K, 100K
//
// # Cardinality Management
//
// The collector limits cardinality per metric (default 10,000 unique label
// sets); overflow aggregates the config_name label into "other".
package metrics
