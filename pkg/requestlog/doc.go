// Package requestlog implements the append-only per-service request log:
// a bounded ring buffer in memory (capacity 1000) mirrored to an
// append-only JSON-lines file on disk under an exclusive file lock, so
// multiple proxy processes can safely share one log directory.
//
// Truncation is lazy: once the file grows beyond twice the ring's
// capacity in lines, the next append rewrites it from the in-memory ring
// instead of appending. Response and request bodies larger than 1 MB are
// truncated with a sentinel suffix before a record is logged.
package requestlog
