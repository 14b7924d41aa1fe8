// ABOUTME: SQLite-backed audit log of visualization generation runs and their per-stage attempts.
// ABOUTME: Implements the pipeline Recorder; rows are append-only and keyed by run id.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/2389-research/calquity/generate"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// RunSummary is one pipeline run as listed by Runs.
type RunSummary struct {
	RunID     string
	Query     string
	Attempts  int
	Accepted  string
	StartedAt string
}

// AttemptRow is one recorded stage attempt.
type AttemptRow struct {
	RunID      string
	Seq        int
	Stage      string
	Valid      bool
	Kind       string
	Reason     string
	RawOutput  string
	Spec       *string
	DurationMS int64
	CreatedAt  string
}

// AttemptStore records generation attempts in SQLite.
type AttemptStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSqlite opens or creates the audit database at path. Use ":memory:" for
// a throwaway store.
func OpenSqlite(path string) (*AttemptStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			started_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS attempts (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			stage TEXT NOT NULL,
			valid INTEGER NOT NULL,
			kind TEXT NOT NULL,
			reason TEXT NOT NULL,
			raw_output TEXT NOT NULL,
			spec TEXT,
			duration_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &AttemptStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *AttemptStore) Close() error {
	return s.db.Close()
}

// Record appends attempt a to run runID, creating the run on first use.
func (s *AttemptStore) Record(ctx context.Context, runID, query string, a generate.Attempt) error {
	now := s.now().UTC().Format(timeLayout)

	var spec *string
	kind := ""
	if a.Parsed != nil {
		data, err := json.Marshal(*a.Parsed)
		if err != nil {
			return fmt.Errorf("marshal spec: %w", err)
		}
		text := string(data)
		spec = &text
		kind = string(a.Parsed.Kind())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, query, started_at) VALUES (?, ?, ?)
		 ON CONFLICT(run_id) DO NOTHING`,
		runID, query, now); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO attempts (run_id, seq, stage, valid, kind, reason, raw_output, spec, duration_ms, created_at)
		 VALUES (?, (SELECT COUNT(*) FROM attempts WHERE run_id = ?), ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, runID, string(a.Stage), a.Valid, kind, a.Reason, a.RawOutput, spec,
		a.Duration.Milliseconds(), now); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Runs lists the most recent runs first, with the stage that was accepted.
func (s *AttemptStore) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.run_id, r.query, r.started_at,
			(SELECT COUNT(*) FROM attempts a WHERE a.run_id = r.run_id),
			COALESCE((SELECT a.stage FROM attempts a WHERE a.run_id = r.run_id AND a.valid = 1 ORDER BY a.seq LIMIT 1), '')
		 FROM runs r ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Query, &r.StartedAt, &r.Attempts, &r.Accepted); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Attempts returns every attempt of runID in order.
func (s *AttemptStore) Attempts(ctx context.Context, runID string) ([]AttemptRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, stage, valid, kind, reason, raw_output, spec, duration_ms, created_at
		 FROM attempts WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AttemptRow
	for rows.Next() {
		var a AttemptRow
		if err := rows.Scan(&a.RunID, &a.Seq, &a.Stage, &a.Valid, &a.Kind, &a.Reason,
			&a.RawOutput, &a.Spec, &a.DurationMS, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
