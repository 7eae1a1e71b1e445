// Package store persists frame results as JSON documents and to relational
// result stores backed by SQLite or PostgreSQL.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	objtrail "github.com/objtrail/go-objtrail"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Store persists processing runs and their per frame detections.  Masks are
// not persisted, segment outlines are stored as JSON text.
type Store struct {
	db      *sql.DB
	dialect string
}

// New creates a Store on top of an open database connection using the
// placeholder style of the given dialect
func New(db *sql.DB, dialect string) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
	}
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one processing session recorded in the store
type Run struct {
	ID        string
	Source    string
	StartedAt time.Time
}

// SaveRun records a processing run, updating the source and start time when
// the run already exists
func (s *Store) SaveRun(run Run) error {

	_, err := s.db.Exec(s.rebind(`
		INSERT INTO runs (run_id, source, started_at) VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			source = excluded.source,
			started_at = excluded.started_at`),
		run.ID, nullString(run.Source), run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	return nil
}

// Run returns a previously saved processing run
func (s *Store) Run(id string) (Run, error) {

	var run Run
	var source sql.NullString

	err := s.db.QueryRow(s.rebind(`
		SELECT run_id, source, started_at FROM runs WHERE run_id = ?`), id).
		Scan(&run.ID, &source, &run.StartedAt)
	if err != nil {
		return Run{}, fmt.Errorf("load run %s: %w", id, err)
	}

	run.Source = source.String
	return run, nil
}

// SaveFrame persists one frame result and its detections under the given
// run in a single transaction
func (s *Store) SaveFrame(runID string, res objtrail.FrameResult) error {

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin frame transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(s.rebind(`
		INSERT INTO frames (run_id, frame_no, width, height, detection_count)
		VALUES (?, ?, ?, ?, ?)`),
		runID, res.Frame, res.Width, res.Height, len(res.Detections),
	)
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", res.Frame, err)
	}

	for _, det := range res.Detections {

		segment, err := segmentJSON(det.Segment)
		if err != nil {
			return err
		}

		_, err = tx.Exec(s.rebind(`
			INSERT INTO detections (
				run_id, frame_no, class_id, class_name, confidence,
				x_min, y_min, x_max, y_max, object_id, segment
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			runID, res.Frame,
			det.ClassID, det.ClassName, det.Confidence,
			det.Box.XMin, det.Box.YMin, det.Box.XMax, det.Box.YMax,
			nullInt64(det.Identity), segment,
		)
		if err != nil {
			return fmt.Errorf("insert detection on frame %d: %w", res.Frame, err)
		}
	}

	return tx.Commit()
}

// FrameCount returns the number of frames persisted under a run
func (s *Store) FrameCount(runID string) (int, error) {

	var n int

	err := s.db.QueryRow(s.rebind(`
		SELECT COUNT(*) FROM frames WHERE run_id = ?`), runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count frames of run %s: %w", runID, err)
	}

	return n, nil
}

// Detections returns the persisted detections of one frame in their
// original detector order.  Masks are not stored so the returned records
// never carry one
func (s *Store) Detections(runID string, frameNo int64) ([]objtrail.IdentifiedDetection, error) {

	rows, err := s.db.Query(s.rebind(`
		SELECT class_id, class_name, confidence,
			x_min, y_min, x_max, y_max, object_id, segment
		FROM detections
		WHERE run_id = ? AND frame_no = ?
		ORDER BY id`),
		runID, frameNo,
	)
	if err != nil {
		return nil, fmt.Errorf("load detections of frame %d: %w", frameNo, err)
	}
	defer rows.Close()

	var dets []objtrail.IdentifiedDetection

	for rows.Next() {
		var det objtrail.IdentifiedDetection
		var objectID sql.NullInt64
		var segment sql.NullString

		if err := rows.Scan(&det.ClassID, &det.ClassName, &det.Confidence,
			&det.Box.XMin, &det.Box.YMin, &det.Box.XMax, &det.Box.YMax,
			&objectID, &segment); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}

		if objectID.Valid {
			id := objectID.Int64
			det.Identity = &id
		}

		if segment.Valid {
			if err := json.Unmarshal([]byte(segment.String), &det.Segment); err != nil {
				return nil, fmt.Errorf("decode segment: %w", err)
			}
		}

		dets = append(dets, det)
	}

	return dets, rows.Err()
}

// runSink persists every consumed frame result under a fixed run
type runSink struct {
	store *Store
	runID string
}

// Sink returns a result sink persisting every frame under the given run.
// The run row itself must be saved beforehand
func (s *Store) Sink(runID string) objtrail.ResultSink {
	return &runSink{store: s, runID: runID}
}

func (r *runSink) Consume(res objtrail.FrameResult) error {
	return r.store.SaveFrame(r.runID, res)
}

// rebind rewrites ? placeholders to the $n style when targeting postgres
func (s *Store) rebind(query string) string {

	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0

	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// segmentJSON encodes a segment outline for storage, nil segments are
// stored as NULL
func segmentJSON(p objtrail.Polygon) (interface{}, error) {

	if p == nil {
		return nil, nil
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal segment: %w", err)
	}

	return string(data), nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}
