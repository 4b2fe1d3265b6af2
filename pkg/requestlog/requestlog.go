package requestlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"clp/pkg/logindex"
)

// Capacity is the ring buffer's default size per service (N=1000 in the spec).
const Capacity = 1000

// truncateAtLines triggers a lazy rewrite once the on-disk file grows
// beyond this many lines (2N).
const truncateAtLines = 2 * Capacity

// Indexer receives every appended record for secondary indexing (range
// queries and exports the ring buffer and flat file aren't suited for).
// logindex.Storage satisfies this.
type Indexer interface {
	Store(rec *logindex.IndexedRecord) error
}

// Log is one service's append-only request log: an in-memory ring
// (capacity Capacity) plus a mirrored JSON-lines file guarded by an
// exclusive OS file lock.
type Log struct {
	path   string
	logger *slog.Logger

	mu        sync.Mutex
	ring      *ring
	lineCount int
	index     Indexer
}

// New creates a Log backed by the given path
// (data/proxy_requests_{service}.jsonl).
func New(path string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Log{path: path, logger: logger, ring: newRing(Capacity)}
	l.loadExisting()
	return l
}

// SetIndex attaches a secondary index that mirrors every future Append.
// Existing ring contents are not backfilled.
func (l *Log) SetIndex(index Indexer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.index = index
}

// loadExisting seeds the ring from any pre-existing file, so a restarted
// process keeps serving List/Get from the ring with history intact.
func (l *Log) loadExisting() {
	f, err := os.Open(l.path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*MaxBodyBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec RequestRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		cp := rec
		l.ring.Insert(&cp)
		l.lineCount++
	}
}

// Append inserts rec into the ring (evicting the oldest if full) and
// appends one JSON line to disk under an exclusive file lock. If the file
// has grown beyond 2*Capacity lines, it is rewritten from the ring instead
// of appended to.
func (l *Log) Append(rec *RequestRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ring.Insert(rec)
	l.indexLocked(rec)

	if l.lineCount >= truncateAtLines {
		if err := l.rewriteLocked(); err != nil {
			return err
		}
		return nil
	}

	if err := l.appendLineLocked(rec); err != nil {
		return err
	}
	l.lineCount++
	return nil
}

// indexLocked mirrors rec into the attached secondary index, if any.
// Indexing failures are logged, not propagated: the ring and JSON-lines
// file remain the source of truth for List/Get.
func (l *Log) indexLocked(rec *RequestRecord) {
	if l.index == nil {
		return
	}
	indexed := &logindex.IndexedRecord{
		ID:            rec.ID,
		Service:       rec.Service,
		Timestamp:     time.Unix(0, rec.TimestampUnixNano),
		ClientMethod:  rec.ClientMethod,
		ClientPath:    rec.ClientPath,
		ConfigName:    rec.ConfigName,
		Channel:       rec.Channel,
		StatusCode:    rec.StatusCode,
		DurationMS:    rec.DurationMS,
		Blocked:       rec.Blocked,
		BlockedBy:     rec.BlockedBy,
		BlockedReason: rec.BlockedReason,

		UsageInput:        rec.Usage.Input,
		UsageCachedCreate: rec.Usage.CachedCreate,
		UsageCachedRead:   rec.Usage.CachedRead,
		UsageOutput:       rec.Usage.Output,
		UsageReasoning:    rec.Usage.Reasoning,
		UsageTotal:        rec.Usage.Total,
	}
	if err := l.index.Store(indexed); err != nil {
		l.logger.Error("failed to write to log index", "service", rec.Service, "error", err)
	}
}

func (l *Log) appendLineLocked(rec *RequestRecord) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock log file: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// rewriteLocked replaces the file on disk with exactly the ring's current
// contents, resetting the line counter. Caller must hold mu.
func (l *Log) rewriteLocked() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open log file for rewrite: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock log file: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate log file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, rec := range l.ring.All() {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write rewritten record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush rewritten log: %w", err)
	}

	l.lineCount = l.ring.count
	l.logger.Info("request log truncated", "path", l.path, "lines", l.lineCount)
	return nil
}

// List returns up to limit of the most recent records from the ring.
func (l *Log) List(limit int) []*RequestRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.List(limit)
}

// Get returns the record with the given id, or nil if not found in the
// ring (older records rotated out of memory are not searched).
func (l *Log) Get(id string) *RequestRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Get(id)
}
