package logindex

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the log-index schema.
const Schema = `
CREATE TABLE IF NOT EXISTS request_records (
    id TEXT PRIMARY KEY,
    service TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    client_method TEXT NOT NULL,
    client_path TEXT NOT NULL,
    config_name TEXT,
    channel TEXT,
    status_code INTEGER,
    duration_ms INTEGER,
    blocked BOOLEAN NOT NULL DEFAULT 0,
    blocked_by TEXT,
    blocked_reason TEXT,
    usage_input INTEGER DEFAULT 0,
    usage_cached_create INTEGER DEFAULT 0,
    usage_cached_read INTEGER DEFAULT 0,
    usage_output INTEGER DEFAULT 0,
    usage_reasoning INTEGER DEFAULT 0,
    usage_total INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_request_records_service ON request_records(service);
CREATE INDEX IF NOT EXISTS idx_request_records_timestamp ON request_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_request_records_config_name ON request_records(config_name);
CREATE INDEX IF NOT EXISTS idx_request_records_status_code ON request_records(status_code);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
