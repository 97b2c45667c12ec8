// Package storage persists complaint rows in a relational table.
//
// Three dialects are supported:
//  1. MySQL / MariaDB (go-sql-driver/mysql), the production target
//  2. PostgreSQL (pgx pool)
//  3. SQLite (mattn/go-sqlite3), for local runs and tests
//
// Each batch run acquires one Session for its whole duration and must
// release it on every exit path:
//
//	sess, err := db.Acquire(ctx)
//	if err != nil { ... }
//	defer sess.Release()
//
// Write errors are classified into ErrDuplicateKey and ErrValueTooLong so
// callers can match them with errors.Is regardless of dialect.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"complaintsync/internal/complaint"
	"complaintsync/internal/config"
	"complaintsync/internal/logger"
)

var (
	// ErrDuplicateKey is returned when an insert hits an existing key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrValueTooLong is returned when a value exceeds its column width.
	ErrValueTooLong = errors.New("value too long for column")

	// ErrNotFound is returned by Get and Update when no row has the id.
	ErrNotFound = errors.New("complaint not found")
)

// DB is a bounded connection pool.
type DB interface {
	// Acquire takes one connection from the pool.
	Acquire(ctx context.Context) (Session, error)
	// Migrate creates the complaint table if it does not exist.
	Migrate(ctx context.Context) error
	// Dialect names the backend ("mysql", "postgres", "sqlite").
	Dialect() string
	Close() error
}

// Session is one pooled connection. It is used by a single goroutine.
type Session interface {
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*complaint.Complaint, error)
	Insert(ctx context.Context, c *complaint.Complaint) error
	// Update overwrites every non-key column of the row with c.ID.
	Update(ctx context.Context, c *complaint.Complaint) error
	// Release returns the connection to the pool. It is safe to call twice.
	Release()
}

// Upserter is implemented by sessions whose dialect can insert-or-overwrite
// in one statement.
type Upserter interface {
	// Upsert writes c and reports whether a new row was created.
	Upsert(ctx context.Context, c *complaint.Complaint) (inserted bool, err error)
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open connects to the configured backend and verifies the connection
// within DB_CONNECT_TIMEOUT.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (DB, error) {
	if !identifier.MatchString(cfg.DBTable) {
		return nil, fmt.Errorf("invalid table name %q", cfg.DBTable)
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "storage", "driver", cfg.DBDriver)

	var (
		db  DB
		err error
	)
	switch cfg.DBDriver {
	case config.DriverMySQL:
		db, err = openMySQL(ctx, cfg)
	case config.DriverPostgres:
		db, err = openPostgres(ctx, cfg)
	case config.DriverSQLite:
		db, err = openSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Database pool opened", "table", cfg.DBTable, "max_conns", cfg.DBMaxConns)
	return db, nil
}
