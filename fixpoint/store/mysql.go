package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL implementation of TraceStore.
//
// It stores visit records in a shared relational database. Designed for:
//   - Analysis infrastructure shared across machines
//   - Long-term retention of iteration traces for regression hunting
//
// The DSN must use the go-sql-driver/mysql format, e.g.:
//
//	user:password@tcp(localhost:3306)/fixpoint?parseTime=true
//
// Schema:
//   - fixpoint_visits: one row per fixpoint iteration
type MySQLStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewMySQLStore creates a new MySQL-backed trace store.
//
// The store verifies connectivity with a ping, configures the connection
// pool, and creates the required table if it doesn't exist.
//
// Example:
//
//	ts, err := store.NewMySQLStore("user:pass@tcp(localhost:3306)/fixpoint?parseTime=true")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer func() { _ = ts.Close() }()
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{db: db}

	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required schema if it doesn't exist.
func (s *MySQLStore) createTables(ctx context.Context) error {
	visitsTable := `
		CREATE TABLE IF NOT EXISTS fixpoint_visits (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			seq INT NOT NULL,
			node VARCHAR(255) NOT NULL,
			op VARCHAR(16) NOT NULL,
			grew TINYINT(1) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_run_seq (run_id, seq),
			INDEX idx_visits_run_id (run_id)
		)
	`
	if _, err := s.db.ExecContext(ctx, visitsTable); err != nil {
		return fmt.Errorf("failed to create fixpoint_visits table: %w", err)
	}
	return nil
}

// SaveVisit inserts one visit record.
func (s *MySQLStore) SaveVisit(ctx context.Context, record VisitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed("MySQLStore")
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO fixpoint_visits (run_id, seq, node, op, grew) VALUES (?, ?, ?, ?, ?)",
		record.RunID, record.Seq, record.Node, record.Op, record.Grew,
	)
	if err != nil {
		return fmt.Errorf("failed to save visit: %w", err)
	}
	return nil
}

// Visits retrieves all records for a run, ordered by sequence number.
func (s *MySQLStore) Visits(ctx context.Context, runID string) ([]VisitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errClosed("MySQLStore")
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
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Node, &r.Op, &r.Grew); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
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
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
