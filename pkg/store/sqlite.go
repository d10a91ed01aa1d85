package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/mixpolicy/pkg/policy/mix"
)

// SQLite driver names.
const (
	// DriverPureGo is the modernc.org/sqlite driver.
	DriverPureGo = "sqlite"
	// DriverCGO is the github.com/mattn/go-sqlite3 driver.
	DriverCGO = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite journal.
type SQLiteConfig struct {
	// Driver selects the database/sql driver.
	// Default: "sqlite"
	Driver string

	// Path is the database file path.
	Path string

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// MaxOpenConns is the maximum number of open connections.
	// Default: 1
	MaxOpenConns int
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Driver:       DriverPureGo,
		Path:         "data/mixpolicy.db",
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
	}
}

// SQLiteJournal implements Journal on SQLite.
type SQLiteJournal struct {
	db        *sql.DB
	config    *SQLiteConfig
	logger    *slog.Logger
	closeOnce sync.Once
	closed    chan struct{}
}

// NewSQLiteJournal opens the database, applies pragmas and creates the
// schema.
func NewSQLiteJournal(config *SQLiteConfig) (*SQLiteJournal, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if config.Driver == "" {
		config.Driver = DriverPureGo
	}
	if config.Driver != DriverPureGo && config.Driver != DriverCGO {
		return nil, fmt.Errorf("unsupported sqlite driver %q", config.Driver)
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 1
	}

	logger := slog.Default().With("component", "store.sqlite", "driver", config.Driver)

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, newStorageError(config.Driver, "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxOpenConns)
	db.SetConnMaxLifetime(0)

	j := &SQLiteJournal{
		db:     db,
		config: config,
		logger: logger,
		closed: make(chan struct{}),
	}

	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite journal initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return j, nil
}

func (j *SQLiteJournal) initialize() error {
	if j.config.WALMode {
		if _, err := j.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return newStorageError(j.config.Driver, "enable_wal", err)
		}
	}

	if _, err := j.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", j.config.BusyTimeout.Milliseconds())); err != nil {
		return newStorageError(j.config.Driver, "set_busy_timeout", err)
	}

	if _, err := j.db.Exec(schema); err != nil {
		return newStorageError(j.config.Driver, "create_schema", err)
	}

	var current int
	err := j.db.QueryRow(getSchemaVersion).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newStorageError(j.config.Driver, "get_schema_version", err)
	}
	for v := current; v > 0 && v < SchemaVersion; v++ {
		if _, err := j.db.Exec(migrations[v]); err != nil {
			return newStorageError(j.config.Driver, fmt.Sprintf("migrate_v%d", v+1), err)
		}
		j.logger.Info("journal schema migrated", "from", v, "to", v+1)
	}

	if _, err := j.db.Exec(insertSchemaVersion, SchemaVersion, time.Now().UnixNano()); err != nil {
		return newStorageError(j.config.Driver, "insert_schema_version", err)
	}

	var version int
	if err := j.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return newStorageError(j.config.Driver, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return newStorageError(j.config.Driver, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Driver returns the database/sql driver in use.
func (j *SQLiteJournal) Driver() string {
	return j.config.Driver
}

// RecordRegistration inserts a registration record.
func (j *SQLiteJournal) RecordRegistration(ctx context.Context, r *Registration) error {
	if err := j.checkOpen(); err != nil {
		return err
	}
	fillID(&r.ID, &r.Time)

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO registrations (id, registration_id, owner, operation, parcel, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.RegistrationID, r.Owner, r.Operation, r.Parcel, r.Time.UnixNano(),
	)
	if err != nil {
		return newStorageError(j.config.Driver, "record_registration", err)
	}
	return nil
}

// RecordActivity inserts an activity record.
func (j *SQLiteJournal) RecordActivity(ctx context.Context, a *Activity) error {
	if err := j.checkOpen(); err != nil {
		return err
	}
	fillID(&a.ID, &a.Time)

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO activity (id, registration_id, owner, state, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.RegistrationID, a.Owner, int32(a.State), a.Time.UnixNano(),
	)
	if err != nil {
		return newStorageError(j.config.Driver, "record_activity", err)
	}
	return nil
}

// RecordDecision inserts a decision record.
func (j *SQLiteJournal) RecordDecision(ctx context.Context, d *Decision) error {
	if err := j.checkOpen(); err != nil {
		return err
	}
	fillID(&d.ID, &d.Time)

	var matched interface{}
	if d.MatchedID != "" {
		matched = d.MatchedID
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO decisions (id, stream_handle, stage, event, class, usage, source, uid, user_id, session_id, matched_id, ambiguous, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.StreamHandle, d.Stage, int32(d.Event), d.Class.String(),
		int32(d.Usage), int32(d.Source), int64(d.UID), int32(d.UserID), int32(d.SessionID),
		matched, d.Ambiguous, d.Time.UnixNano(),
	)
	if err != nil {
		return newStorageError(j.config.Driver, "record_decision", err)
	}
	return nil
}

// RecentRegistrations returns registrations, newest first.
func (j *SQLiteJournal) RecentRegistrations(ctx context.Context, limit int) ([]*Registration, error) {
	if err := j.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, registration_id, owner, operation, parcel, recorded_at
		FROM registrations
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, newStorageError(j.config.Driver, "query_registrations", err)
	}
	defer rows.Close()

	var out []*Registration
	for rows.Next() {
		var (
			r  Registration
			ts int64
		)
		if err := rows.Scan(&r.ID, &r.RegistrationID, &r.Owner, &r.Operation, &r.Parcel, &ts); err != nil {
			return nil, newStorageError(j.config.Driver, "scan_registration", err)
		}
		r.Time = time.Unix(0, ts)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError(j.config.Driver, "query_registrations", err)
	}
	return out, nil
}

// RecentActivity returns activity records, newest first.
func (j *SQLiteJournal) RecentActivity(ctx context.Context, limit int) ([]*Activity, error) {
	if err := j.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, registration_id, owner, state, recorded_at
		FROM activity
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, newStorageError(j.config.Driver, "query_activity", err)
	}
	defer rows.Close()

	var out []*Activity
	for rows.Next() {
		var (
			a     Activity
			state int32
			ts    int64
		)
		if err := rows.Scan(&a.ID, &a.RegistrationID, &a.Owner, &state, &ts); err != nil {
			return nil, newStorageError(j.config.Driver, "scan_activity", err)
		}
		a.State = mix.State(state)
		a.Time = time.Unix(0, ts)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError(j.config.Driver, "query_activity", err)
	}
	return out, nil
}

// RecentDecisions returns decision records, newest first.
func (j *SQLiteJournal) RecentDecisions(ctx context.Context, limit int) ([]*Decision, error) {
	if err := j.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, stream_handle, stage, event, class, usage, source, uid, user_id, session_id, matched_id, ambiguous, recorded_at
		FROM decisions
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, newStorageError(j.config.Driver, "query_decisions", err)
	}
	defer rows.Close()

	var out []*Decision
	for rows.Next() {
		var (
			d                                   Decision
			event, usage, source, user, session int32
			uid, ts                             int64
			class                               string
			matched                             sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.StreamHandle, &d.Stage, &event, &class, &usage, &source, &uid, &user, &session, &matched, &d.Ambiguous, &ts); err != nil {
			return nil, newStorageError(j.config.Driver, "scan_decision", err)
		}
		d.Event = mix.RecordConfigEvent(event)
		d.Class, _ = mix.ParseStreamClass(class)
		d.Usage = mix.Usage(usage)
		d.Source = mix.Source(source)
		d.UID = mix.UID(uid)
		d.UserID = mix.UserID(user)
		d.SessionID = mix.SessionID(session)
		d.MatchedID = matched.String
		d.Time = time.Unix(0, ts)
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError(j.config.Driver, "query_decisions", err)
	}
	return out, nil
}

// Prune deletes old records. See Journal.
func (j *SQLiteJournal) Prune(ctx context.Context, olderThan time.Time, maxRecords int) (int64, error) {
	if err := j.checkOpen(); err != nil {
		return 0, err
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, newStorageError(j.config.Driver, "prune", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var total int64
	for _, table := range journalTables {
		if !olderThan.IsZero() {
			res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE recorded_at < ?", olderThan.UnixNano())
			if err != nil {
				return 0, newStorageError(j.config.Driver, "prune_"+table, err)
			}
			n, _ := res.RowsAffected()
			total += n
		}

		if maxRecords > 0 {
			res, err := tx.ExecContext(ctx, "DELETE FROM "+table+` WHERE rowid NOT IN (
				SELECT rowid FROM `+table+` ORDER BY recorded_at DESC, rowid DESC LIMIT ?)`, maxRecords)
			if err != nil {
				return 0, newStorageError(j.config.Driver, "trim_"+table, err)
			}
			n, _ := res.RowsAffected()
			total += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, newStorageError(j.config.Driver, "prune", err)
	}

	if total > 0 {
		j.logger.Info("journal pruned", "deleted", total)
	}
	return total, nil
}

// Close releases the database handle. It is safe to call more than once.
func (j *SQLiteJournal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		close(j.closed)
		if cerr := j.db.Close(); cerr != nil {
			err = newStorageError(j.config.Driver, "close", cerr)
			return
		}
		j.logger.Info("SQLite journal closed")
	})
	return err
}

func (j *SQLiteJournal) checkOpen() error {
	select {
	case <-j.closed:
		return ErrClosed
	default:
		return nil
	}
}

// fillID assigns a fresh id and timestamp to records that lack them.
func fillID(id *string, ts *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if ts.IsZero() {
		*ts = time.Now()
	}
}

// sqlLimit maps a non-positive limit to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
