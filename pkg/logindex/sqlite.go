package logindex

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better read/write concurrency.
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/logindex.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements Storage using modernc.org/sqlite, a pure-Go
// driver that needs no CGO toolchain on the user's machine.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewSQLiteStorage creates a new SQLite-backed log index.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "logindex.sqlite")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{db: db, config: config, logger: logger}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("log index initialized", "path", config.Path, "wal_mode", config.WALMode)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store persists an indexed record.
func (s *SQLiteStorage) Store(r *IndexedRecord) error {
	const query = `
		INSERT INTO request_records (
			id, service, timestamp, client_method, client_path, config_name, channel,
			status_code, duration_ms, blocked, blocked_by, blocked_reason,
			usage_input, usage_cached_create, usage_cached_read, usage_output, usage_reasoning, usage_total
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status_code=excluded.status_code, duration_ms=excluded.duration_ms,
			usage_input=excluded.usage_input, usage_cached_create=excluded.usage_cached_create,
			usage_cached_read=excluded.usage_cached_read, usage_output=excluded.usage_output,
			usage_reasoning=excluded.usage_reasoning, usage_total=excluded.usage_total
	`

	_, err := s.db.Exec(query,
		r.ID, r.Service, r.Timestamp, r.ClientMethod, r.ClientPath, r.ConfigName, r.Channel,
		r.StatusCode, r.DurationMS, r.Blocked, r.BlockedBy, r.BlockedReason,
		r.UsageInput, r.UsageCachedCreate, r.UsageCachedRead, r.UsageOutput, r.UsageReasoning, r.UsageTotal,
	)
	if err != nil {
		return NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query retrieves indexed records matching the filters.
func (s *SQLiteStorage) Query(q *Query) ([]*IndexedRecord, error) {
	where, args := s.buildWhereClause(q)

	sqlQuery := "SELECT id, service, timestamp, client_method, client_path, config_name, channel, status_code, duration_ms, blocked, blocked_by, blocked_reason, usage_input, usage_cached_create, usage_cached_read, usage_output, usage_reasoning, usage_total FROM request_records"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	sortBy := "timestamp"
	sortOrder := "DESC"
	if q.SortBy != "" {
		sortBy = q.SortBy
	}
	if q.SortOrder != "" {
		sortOrder = q.SortOrder
	}
	sqlQuery += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	limit := 100
	if q.Limit > 0 {
		limit = q.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if q.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	var records []*IndexedRecord
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// Count returns the number of records matching the filters.
func (s *SQLiteStorage) Count(q *Query) (int64, error) {
	where, args := s.buildWhereClause(q)
	sqlQuery := "SELECT COUNT(*) FROM request_records"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRow(sqlQuery, args...).Scan(&count); err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes records matching the filters, returning the count deleted.
func (s *SQLiteStorage) Delete(q *Query) (int64, error) {
	where, args := s.buildWhereClause(q)
	sqlQuery := "DELETE FROM request_records"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	result, err := s.db.Exec(sqlQuery, args...)
	if err != nil {
		return 0, NewStorageError("sqlite", "delete", err)
	}
	return result.RowsAffected()
}

// Close releases the underlying database handle.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	return nil
}

func (s *SQLiteStorage) buildWhereClause(q *Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if q.Service != "" {
		conditions = append(conditions, "service = ?")
		args = append(args, q.Service)
	}
	if q.ConfigName != "" {
		conditions = append(conditions, "config_name = ?")
		args = append(args, q.ConfigName)
	}
	if q.Blocked != nil {
		conditions = append(conditions, "blocked = ?")
		args = append(args, *q.Blocked)
	}
	if q.MinStatus > 0 {
		conditions = append(conditions, "status_code >= ?")
		args = append(args, q.MinStatus)
	}
	if q.MaxStatus > 0 {
		conditions = append(conditions, "status_code <= ?")
		args = append(args, q.MaxStatus)
	}
	if q.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *q.StartTime)
	}
	if q.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *q.EndTime)
	}

	where := ""
	for i, c := range conditions {
		if i > 0 {
			where += " AND "
		}
		where += c
	}
	return where, args
}

func scanRow(rows *sql.Rows) (*IndexedRecord, error) {
	var r IndexedRecord
	var blockedBy, blockedReason sql.NullString
	var configName, channel sql.NullString
	var statusCode sql.NullInt64

	err := rows.Scan(
		&r.ID, &r.Service, &r.Timestamp, &r.ClientMethod, &r.ClientPath, &configName, &channel,
		&statusCode, &r.DurationMS, &r.Blocked, &blockedBy, &blockedReason,
		&r.UsageInput, &r.UsageCachedCreate, &r.UsageCachedRead, &r.UsageOutput, &r.UsageReasoning, &r.UsageTotal,
	)
	if err != nil {
		return nil, err
	}

	r.ConfigName = configName.String
	r.Channel = channel.String
	r.StatusCode = int(statusCode.Int64)
	r.BlockedBy = blockedBy.String
	r.BlockedReason = blockedReason.String

	return &r, nil
}
