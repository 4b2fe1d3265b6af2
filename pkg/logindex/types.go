// Package logindex implements the optional SQLite secondary index over a
// service's request log, grounded in the teacher's evidence/storage design
// but reshaped around RequestRecord instead of a policy/cost record.
package logindex

import "time"

// IndexedRecord mirrors RequestRecord minus the two base64 body blobs,
// which stay in the JSON-lines file and are fetched by id when needed.
type IndexedRecord struct {
	ID            string
	Service       string
	Timestamp     time.Time
	ClientMethod  string
	ClientPath    string
	ConfigName    string
	Channel       string
	StatusCode    int
	DurationMS    int64
	Blocked       bool
	BlockedBy     string
	BlockedReason string

	UsageInput        int64
	UsageCachedCreate  int64
	UsageCachedRead    int64
	UsageOutput        int64
	UsageReasoning     int64
	UsageTotal         int64
}

// Query filters IndexedRecords for range/aggregate queries the ring buffer
// and flat JSONL file are not suited for.
type Query struct {
	Service    string
	ConfigName string
	Blocked    *bool
	MinStatus  int
	MaxStatus  int
	StartTime  *time.Time
	EndTime    *time.Time

	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// Storage is implemented by every log-index backend.
type Storage interface {
	Store(record *IndexedRecord) error
	Query(q *Query) ([]*IndexedRecord, error)
	Count(q *Query) (int64, error)
	Delete(q *Query) (int64, error)
	Close() error
}
