// Package usage implements the stateful, incremental token-usage parser
// fed arbitrary byte chunks of an upstream response as they stream past
// the Engine. It detects SSE, NDJSON, or single-JSON framing from the
// response Content-Type and applies a per-service dialect (Claude or
// Codex) to extract running UsageTotals.
//
// Malformed fragments are silently dropped; the parser never fails the
// stream it rides alongside. Feeding the concatenation of all chunks at
// once produces the same totals as feeding them one byte at a time.
package usage
