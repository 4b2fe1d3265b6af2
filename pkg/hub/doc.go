// Package hub implements the process-wide pub/sub event bus consumed by
// the web UI's live monitor, and the WebSocket transport that exposes it
// at GET /ws/realtime.
//
// Subscriptions are keyed by service and carry a bounded queue (capacity
// 256); a slow consumer drops its oldest unread event rather than stalling
// a request's hot path. Within a single request, events are published in
// causal order (started < lb_switch* < progress* < completed); across
// concurrent requests no ordering is guaranteed.
package hub
