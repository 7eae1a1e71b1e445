package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// sqliteSchema creates the result tables on first open.  The layout matches
// the PostgreSQL migrations with SQLite column types
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		source TEXT,
		started_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS frames (
		run_id TEXT NOT NULL,
		frame_no BIGINT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		detection_count INTEGER NOT NULL,
		PRIMARY KEY (run_id, frame_no),
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		frame_no BIGINT NOT NULL,
		class_id INTEGER NOT NULL,
		class_name TEXT NOT NULL,
		confidence DOUBLE NOT NULL,
		x_min INTEGER NOT NULL,
		y_min INTEGER NOT NULL,
		x_max INTEGER NOT NULL,
		y_max INTEGER NOT NULL,
		object_id BIGINT,
		segment TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE INDEX IF NOT EXISTS idx_frames_run ON frames(run_id);
	CREATE INDEX IF NOT EXISTS idx_detections_run_frame ON detections(run_id, frame_no);
`

// OpenSQLite opens a SQLite result store at the given path, creating the
// database and its schema when missing
func OpenSQLite(path string) (*Store, error) {

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return New(db, DialectSQLite), nil
}
