package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of TraceStore.
//
// It stores visit records in a single-file database. Designed for:
//   - Local debugging of convergence behavior with zero setup
//   - Comparing iteration traces across engine configurations
//   - Prototyping before migrating to a shared database
//
// Features:
//   - Single file database (e.g., "./trace.db") or ":memory:"
//   - Auto-migration on first use
//   - WAL mode for concurrent reads
//
// Schema:
//   - fixpoint_visits: one row per fixpoint iteration
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
	path   string
}

// NewSQLiteStore creates a new SQLite-backed trace store.
//
// The path parameter specifies the database file location:
//   - "./trace.db" - file in current directory
//   - "/tmp/fixpoint.db" - absolute path
//   - ":memory:" - in-memory database (data lost on close)
//
// The store automatically creates the database file and the required table,
// enables WAL mode for concurrent reads, and configures a busy timeout.
//
// Example:
//
//	ts, err := store.NewSQLiteStore("./trace.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer func() { _ = ts.Close() }()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:   db,
		path: path,
	}

	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required schema if it doesn't exist.
func (s *SQLiteStore) createTables(ctx context.Context) error {
	visitsTable := `
		CREATE TABLE IF NOT EXISTS fixpoint_visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			node TEXT NOT NULL,
			op TEXT NOT NULL,
			grew INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(run_id, seq)
		)
	`
	if _, err := s.db.ExecContext(ctx, visitsTable); err != nil {
		return fmt.Errorf("failed to create fixpoint_visits table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_visits_run_id ON fixpoint_visits(run_id)"); err != nil {
		return fmt.Errorf("failed to create idx_visits_run_id: %w", err)
	}
	return nil
}

// SaveVisit inserts one visit record.
func (s *SQLiteStore) SaveVisit(ctx context.Context, record VisitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed("SQLiteStore")
	}

	grew := 0
	if record.Grew {
		grew = 1
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO fixpoint_visits (run_id, seq, node, op, grew) VALUES (?, ?, ?, ?, ?)",
		record.RunID, record.Seq, record.Node, record.Op, grew,
	)
	if err != nil {
		return fmt.Errorf("failed to save visit: %w", err)
	}
	return nil
}

// Visits retrieves all records for a run, ordered by sequence number.
func (s *SQLiteStore) Visits(ctx context.Context, runID string) ([]VisitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errClosed("SQLiteStore")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, seq, node, op, grew FROM fixpoint_visits WHERE run_id = ? ORDER BY seq",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []VisitRecord
	for rows.Next() {
		var r VisitRecord
		var grew int
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Node, &r.Op, &grew); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		r.Grew = grew != 0
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate visits: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
