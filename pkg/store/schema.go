package store

// SchemaVersion is the current journal schema version.
const SchemaVersion = 2

// Times are stored as unix nanoseconds so both drivers round-trip them
// identically.
const schema = `
CREATE TABLE IF NOT EXISTS registrations (
    id TEXT PRIMARY KEY,
    registration_id TEXT NOT NULL,
    owner TEXT NOT NULL,
    operation TEXT NOT NULL,
    parcel BLOB,
    recorded_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS activity (
    id TEXT PRIMARY KEY,
    registration_id TEXT NOT NULL,
    owner TEXT NOT NULL,
    state INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    stream_handle TEXT NOT NULL,
    stage TEXT NOT NULL,
    event INTEGER NOT NULL,
    class TEXT NOT NULL,
    usage INTEGER NOT NULL,
    source INTEGER NOT NULL,
    uid INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    session_id INTEGER NOT NULL,
    matched_id TEXT,
    ambiguous BOOLEAN NOT NULL,
    recorded_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_registrations_recorded_at ON registrations(recorded_at);
CREATE INDEX IF NOT EXISTS idx_registrations_registration_id ON registrations(registration_id);
CREATE INDEX IF NOT EXISTS idx_activity_recorded_at ON activity(recorded_at);
CREATE INDEX IF NOT EXISTS idx_decisions_recorded_at ON decisions(recorded_at);
`

// migrations upgrade a journal created at the version they are keyed by.
var migrations = map[int]string{
	1: `ALTER TABLE decisions ADD COLUMN stage TEXT NOT NULL DEFAULT '';`,
}

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, ?)
ON CONFLICT(version) DO NOTHING;
`

const getSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

// journalTables lists the pruned tables.
var journalTables = []string{"registrations", "activity", "decisions"}
