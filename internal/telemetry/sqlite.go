package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS scans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	taken_at TEXT NOT NULL,
	value_array TEXT NOT NULL,
	movement_array TEXT NOT NULL,
	line TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_run ON scans(run_id);
`

// SQLiteSink stores one row per record in the scans table. Every process run
// gets its own run id.
type SQLiteSink struct {
	db    *sql.DB
	runID string
}

func openSQLite(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer.
	db.SetMaxOpenConns(1)
	_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("telemetry: create schema: %w", err)
	}
	return &SQLiteSink{db: db, runID: uuid.NewString()}, nil
}

// RunID identifies the rows written by this sink.
func (s *SQLiteSink) RunID() string {
	return s.runID
}

func (s *SQLiteSink) Write(r Record) error {
	_, err := s.db.Exec(
		`INSERT INTO scans (run_id, taken_at, value_array, movement_array, line) VALUES (?, ?, ?, ?, ?)`,
		s.runID,
		r.Time.Format(DatetimeLayout),
		valueArray(r.Profile),
		movementArray(r.Movements),
		Format(r),
	)
	return err
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
