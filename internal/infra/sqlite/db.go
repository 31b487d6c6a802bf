// Package sqlite provides SQLite-backed storage for the record feeds.
// Uses WAL mode so the API can read while the ingestion worker appends.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// FileName is the database file created inside the data directory.
const FileName = "records.db"

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/records.db.
// Enables WAL mode and a 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, FileName)
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// One connection for the batching writer, one for API readers (WAL).
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			stopped_at INTEGER
		)`,

		// Structured feed: one row per processed beacon
		`CREATE TABLE IF NOT EXISTS beacon_records (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id    TEXT NOT NULL,
			rx_time_ms    INTEGER NOT NULL,
			label         TEXT NOT NULL,
			peer_id       TEXT NOT NULL,
			seq           INTEGER NOT NULL,
			lat           REAL NOT NULL,
			lon           REAL NOT NULL,
			nearest_label TEXT,
			nearest_m     REAL,
			speed         REAL NOT NULL,
			pos_acc       REAL NOT NULL,
			latency_ms    REAL,
			warning       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_beacon_session ON beacon_records(session_id, rx_time_ms)`,

		// Raw feed: one row per datagram, decodable or not
		`CREATE TABLE IF NOT EXISTS raw_records (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			rx_time_ms INTEGER NOT NULL,
			sender     TEXT NOT NULL,
			payload    BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_session ON raw_records(session_id, rx_time_ms)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Sessions ───────────────────────────────────────────────────────────────

// SessionRow is one entry of the sessions table.
type SessionRow struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	Records   int       `json:"records"`
	Raw       int       `json:"raw"`
}

// BeginSession records the start of a session.
func (d *DB) BeginSession(id string, startedAt time.Time) error {
	_, err := d.db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET started_at=excluded.started_at, stopped_at=NULL`,
		id, startedAt.UnixMilli(),
	)
	return err
}

// EndSession stamps the stop time of a session.
func (d *DB) EndSession(id string, stoppedAt time.Time) error {
	_, err := d.db.Exec(`UPDATE sessions SET stopped_at = ? WHERE id = ?`, stoppedAt.UnixMilli(), id)
	return err
}

// ListSessions returns the most recent sessions first, with row counts.
func (d *DB) ListSessions(limit int) ([]SessionRow, error) {
	rows, err := d.db.Query(
		`SELECT s.id, s.started_at, s.stopped_at,
			(SELECT COUNT(*) FROM beacon_records b WHERE b.session_id = s.id),
			(SELECT COUNT(*) FROM raw_records r WHERE r.session_id = s.id)
		 FROM sessions s ORDER BY s.started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		var started int64
		var stopped sql.NullInt64
		if err := rows.Scan(&r.ID, &started, &stopped, &r.Records, &r.Raw); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		if stopped.Valid {
			r.StoppedAt = time.UnixMilli(stopped.Int64)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRecords returns the structured and raw row counts of a session.
func (d *DB) CountRecords(sessionID string) (records, raw int, err error) {
	err = d.db.QueryRow(
		`SELECT (SELECT COUNT(*) FROM beacon_records WHERE session_id = ?),
			(SELECT COUNT(*) FROM raw_records WHERE session_id = ?)`,
		sessionID, sessionID,
	).Scan(&records, &raw)
	return records, raw, err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
