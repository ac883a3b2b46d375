// SQLite document store.
//
// Information Hiding:
// - Documents stored as JSON text, one row each
// - Dotted-path equality evaluated with json_extract
// - Projection applied after decoding

package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite implements Store and Seeder for single-file deployments. Only
// equality predicates are supported; operator queries fail with
// ErrUnsupportedQuery.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates a document database at path.
// Creates parent directories if they don't exist.
func OpenSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSQLite(db)
}

// NewSQLiteInMemory creates an in-memory document database (useful for testing).
func NewSQLiteInMemory() (*SQLite, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Each pooled connection would see its own empty database.
	db.SetMaxOpenConns(1)
	return newSQLite(db)
}

func newSQLite(db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			body TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Insert stores docs as JSON rows.
func (s *SQLite) Insert(ctx context.Context, docs ...Document) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO documents (body) VALUES (?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		body, err := json.Marshal(d)
		if err != nil {
			return 0, fmt.Errorf("failed to encode document: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, string(body)); err != nil {
			return 0, fmt.Errorf("failed to insert document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(docs), nil
}

// FindOne returns the first matching row by insertion order.
func (s *SQLite) FindOne(ctx context.Context, query Query, projection []string) (Document, error) {
	docs, err := s.Find(ctx, query, FindOptions{Limit: 1, Projection: projection})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// Find returns the matching documents.
func (s *SQLite) Find(ctx context.Context, query Query, opts FindOptions) ([]Document, error) {
	where, args, err := buildWhere(query)
	if err != nil {
		return nil, err
	}

	stmt := "SELECT body FROM documents" + where
	if opts.SortField != "" {
		dir := "ASC"
		if opts.Descending {
			dir = "DESC"
		}
		stmt += " ORDER BY json_extract(body, ?) " + dir + ", id"
		args = append(args, jsonPath(opts.SortField))
	} else {
		stmt += " ORDER BY id"
	}
	if opts.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := decodeDocument([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		docs = append(docs, StripInternal(project(doc, opts.Projection)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

// buildWhere turns an equality query into a parameterized WHERE clause.
// Paths and values are always bound, never spliced into the statement.
func buildWhere(query Query) (string, []any, error) {
	if len(query) == 0 {
		return "", nil, nil
	}

	paths := make([]string, 0, len(query))
	for p := range query {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	clauses := make([]string, 0, len(paths))
	args := make([]any, 0, 2*len(paths))
	for _, p := range paths {
		v := query[p]
		if err := checkEquality(p, v); err != nil {
			return "", nil, err
		}
		if v == nil {
			clauses = append(clauses, "json_extract(body, ?) IS NULL")
			args = append(args, jsonPath(p))
			continue
		}
		if f, ok := toFloat(v); ok {
			v = f
		}
		clauses = append(clauses, "json_extract(body, ?) = ?")
		args = append(args, jsonPath(p), v)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func jsonPath(dotted string) string {
	return "$." + dotted
}

// Probe checks that at least one row exists.
func (s *SQLite) Probe(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM documents LIMIT 1)").Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to probe documents: %w", err)
	}
	return n == 1, nil
}

// Close closes the database connection.
func (s *SQLite) Close(ctx context.Context) error {
	return s.db.Close()
}

var (
	_ Store  = (*SQLite)(nil)
	_ Seeder = (*SQLite)(nil)
)
