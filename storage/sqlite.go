// SQLite run history.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

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

	"github.com/richinex/flightops/model"
)

// SqliteStorage implements RunStore using SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created
		ON runs(created_at DESC);

		CREATE TABLE IF NOT EXISTS tool_calls (
			run_id TEXT NOT NULL,
			call_index INTEGER NOT NULL,
			name TEXT NOT NULL,
			input_size INTEGER NOT NULL,
			output_size INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			success INTEGER NOT NULL,
			code INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE,
			PRIMARY KEY (run_id, call_index)
		);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save stores a run and its tool call metrics, replacing any run with the
// same id.
func (s *SqliteStorage) Save(ctx context.Context, run *RunRecord) error {
	prepare(run)

	result, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, "DELETE FROM tool_calls WHERE run_id = ?", run.ID)
	if err != nil {
		return fmt.Errorf("failed to clear old tool calls: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, question, created_at, provider, model, result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Question, run.CreatedAt.UnixNano(), run.Provider, run.Model, string(result), run.Error)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tool_calls (run_id, call_index, name, input_size, output_size, duration_ms, success, code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, c := range run.Result.Calls {
		_, err = stmt.ExecContext(ctx, run.ID, i, c.Name, c.InputSize, c.OutputSize, c.DurationMs, c.Success, c.Code)
		if err != nil {
			return fmt.Errorf("failed to insert tool call: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const selectRun = `SELECT id, question, created_at, provider, model, result, error FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		run     RunRecord
		created int64
		result  string
	)
	if err := row.Scan(&run.ID, &run.Question, &created, &run.Provider, &run.Model, &result, &run.Error); err != nil {
		return RunRecord{}, err
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(result), &run.Result); err != nil {
		return RunRecord{}, fmt.Errorf("failed to decode run %s: %w", run.ID, err)
	}
	return run, nil
}

// Load returns a run by id with its tool call metrics.
func (s *SqliteStorage) Load(ctx context.Context, id string) (RunRecord, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRun+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to load run: %w", err)
	}

	run.Result.Calls, err = s.loadCalls(ctx, id)
	if err != nil {
		return RunRecord{}, err
	}
	return run, nil
}

func (s *SqliteStorage) loadCalls(ctx context.Context, id string) ([]model.ToolCall, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, input_size, output_size, duration_ms, success, code
		FROM tool_calls WHERE run_id = ? ORDER BY call_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	var calls []model.ToolCall
	for rows.Next() {
		var c model.ToolCall
		if err := rows.Scan(&c.Name, &c.InputSize, &c.OutputSize, &c.DurationMs, &c.Success, &c.Code); err != nil {
			return nil, fmt.Errorf("failed to scan tool call: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// List returns runs newest first, without tool call metrics.
func (s *SqliteStorage) List(ctx context.Context, limit int) ([]RunRecord, error) {
	query := selectRun + " ORDER BY created_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Delete removes a run and its tool calls.
func (s *SqliteStorage) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// Verify SqliteStorage implements RunStore
var _ RunStore = (*SqliteStorage)(nil)
