package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the embedded SQLite database holding the full catalog
// schema. Single-writer discipline is enforced by
// the caller (only the refresh orchestrator writes lane/catalog state);
// concurrent readers are safe.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the embedded database at path and
// verifies connectivity.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	// SQLite allows only one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under the orchestrator's single-writer discipline.
	// Readers share that one connection, so queries run one at a time.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: ping %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// PingContext satisfies internal/handlers.Pinger for the readiness probe.
func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for direct queries beyond the Store's
// typed methods.
func (s *Store) DB() *sql.DB {
	return s.db
}
