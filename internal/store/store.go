// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists run records, ranked results, and cached
// embeddings in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Store manages the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and creates the schema if it
// does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL,
			concepts TEXT,
			from_date TEXT,
			to_date TEXT,
			target TEXT,
			estimate INTEGER,
			fetched INTEGER,
			results INTEGER,
			skipped TEXT,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			identifier TEXT NOT NULL,
			title TEXT,
			stage1 TEXT,
			stage2 TEXT,
			score REAL,
			PRIMARY KEY (run_id, rank)
		)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			model TEXT NOT NULL,
			text_hash TEXT NOT NULL,
			dims INTEGER NOT NULL,
			vector BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (model, text_hash)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Run is one stored pipeline run.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Status     string    `json:"status" yaml:"status"`
	Concepts   []string  `json:"concepts" yaml:"concepts"`
	From       string    `json:"from" yaml:"from"`
	To         string    `json:"to" yaml:"to"`
	Target     string    `json:"target" yaml:"target"`
	Estimate   int64     `json:"estimate" yaml:"estimate"`
	Fetched    int64     `json:"fetched" yaml:"fetched"`
	Results    int       `json:"results" yaml:"results"`
	Skipped    []string  `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Outcome is what a run reports when it finishes.
type Outcome struct {
	Status   string
	Estimate int64
	Fetched  int64
	Results  int
	Skipped  []string
	Err      error
}

// StartRun records a new run with status running.
func (s *Store) StartRun(ctx context.Context, r Run) error {
	concepts, _ := json.Marshal(r.Concepts)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, concepts, from_date, to_date, target, estimate, fetched, results)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0)`,
		r.ID, r.StartedAt.UTC().Format(time.RFC3339Nano), StatusRunning,
		string(concepts), r.From, r.To, r.Target, r.Estimate,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun closes a run. A failed run keeps whatever was recorded before
// the failure.
func (s *Store) FinishRun(ctx context.Context, id string, o Outcome) error {
	skipped, _ := json.Marshal(o.Skipped)
	errText := ""
	if o.Err != nil {
		errText = o.Err.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, estimate = ?, fetched = ?, results = ?, skipped = ?, error = ?
		 WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), o.Status, o.Estimate, o.Fetched, o.Results,
		string(skipped), errText, id,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// SaveResults stores the ranked rows of a run, replacing earlier rows.
func (s *Store) SaveResults(ctx context.Context, runID string, rows []types.ResultRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("deleting old results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, rank, identifier, title, stage1, stage2, score)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, runID, i+1, r.Identifier, r.Title, r.Stage1, r.Stage2, r.Score); err != nil {
			return fmt.Errorf("inserting result %s: %w", r.Identifier, err)
		}
	}
	return tx.Commit()
}

// Results returns the stored rows of a run in rank order.
func (s *Store) Results(ctx context.Context, runID string) ([]types.ResultRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identifier, title, stage1, stage2, score FROM results WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var out []types.ResultRow
	for rows.Next() {
		var r types.ResultRow
		if err := rows.Scan(&r.Identifier, &r.Title, &r.Stage1, &r.Stage2, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, status, concepts, from_date, to_date, target,
		estimate, fetched, results, skipped, error FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, status, concepts, from_date, to_date, target,
			estimate, fetched, results, skipped, error FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s not found", id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                         Run
		started                   string
		finished, concepts, skip  sql.NullString
		target, errText, from, to sql.NullString
		estimate, fetched         sql.NullInt64
		results                   sql.NullInt64
	)
	if err := sc.Scan(&r.ID, &started, &finished, &r.Status, &concepts, &from, &to, &target,
		&estimate, &fetched, &results, &skip, &errText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	if concepts.Valid {
		_ = json.Unmarshal([]byte(concepts.String), &r.Concepts)
	}
	if skip.Valid {
		_ = json.Unmarshal([]byte(skip.String), &r.Skipped)
	}
	r.From, r.To, r.Target, r.Error = from.String, to.String, target.String, errText.String
	r.Estimate, r.Fetched, r.Results = estimate.Int64, fetched.Int64, int(results.Int64)
	return r, nil
}
