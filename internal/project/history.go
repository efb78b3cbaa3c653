package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Run kinds recorded in the history.
const (
	RunGraph    = "graph"
	RunSolution = "solution"
)

// ErrRunNotFound is returned by History.Get for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// Run is one graph build or solution extraction.
type Run struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Digest    string    `json:"digest"` // instance digest
	NV        int       `json:"nv"`
	NA        int       `json:"na"`
	DPStates  int       `json:"dp_states"`
	Objective int       `json:"objective"`
	Bins      int       `json:"bins"`
	ElapsedMS int64     `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// History stores runs in a SQLite database.
type History struct {
	db *sql.DB
}

// NewHistory opens (or creates) the run history at dbPath.
// It enables WAL mode for concurrent readers.
func NewHistory(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	h := &History{db: db}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return h, nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		digest TEXT NOT NULL,
		nv INTEGER NOT NULL DEFAULT 0,
		na INTEGER NOT NULL DEFAULT 0,
		dp_states INTEGER NOT NULL DEFAULT 0,
		objective INTEGER NOT NULL DEFAULT 0,
		bins INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_digest ON runs(digest);
	`
	if _, err := h.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	return nil
}

// Record stores run, assigning a new id and timestamp when they are unset,
// and returns the stored run.
func (h *History) Record(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, kind, digest, nv, na, dp_states, objective, bins, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Digest, run.NV, run.NA, run.DPStates,
		run.Objective, run.Bins, run.ElapsedMS, run.CreatedAt.UnixNano())
	if err != nil {
		return Run{}, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

const runColumns = `run_id, kind, digest, nv, na, dp_states, objective, bins, elapsed_ms, created_at`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	var created int64
	err := row.Scan(&r.ID, &r.Kind, &r.Digest, &r.NV, &r.NA, &r.DPStates,
		&r.Objective, &r.Bins, &r.ElapsedMS, &created)
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	return r, nil
}

// Get returns the run with the given id.
func (h *History) Get(ctx context.Context, id string) (Run, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to read run: %w", err)
	}
	return r, nil
}

// List returns up to limit runs, newest first. A limit <= 0 returns all runs.
func (h *History) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Restore inserts runs from a backup, skipping ids that already exist.
// It returns the number of runs inserted.
func (h *History) Restore(ctx context.Context, runs []Run) (int, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n := 0
	for _, run := range runs {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO runs (run_id, kind, digest, nv, na, dp_states, objective, bins, elapsed_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.Kind, run.Digest, run.NV, run.NA, run.DPStates,
			run.Objective, run.Bins, run.ElapsedMS, run.CreatedAt.UnixNano())
		if err != nil {
			return n, fmt.Errorf("failed to restore run %s: %w", run.ID, err)
		}
		if k, err := res.RowsAffected(); err == nil {
			n += int(k)
		}
	}
	return n, tx.Commit()
}
