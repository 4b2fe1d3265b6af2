// Package engine implements the Proxy Engine: the single http.Handler that
// every client request to an AI service passes through. It runs the
// seven-phase pipeline (block check, parse & route, select candidates,
// build upstream request, stream exchange, handle outcome, log) by
// composing the filters, router, load balancer, config store, usage
// parser, realtime hub, and request log packages.
package engine
