// Package storagetest opens throwaway SQLite databases for tests.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"complaintsync/internal/complaint"
	"complaintsync/internal/config"
	"complaintsync/internal/logger"
	"complaintsync/internal/storage"
)

// Config returns a SQLite configuration rooted in a fresh temp dir.
func Config(t testing.TB) *config.Config {
	t.Helper()
	return &config.Config{
		DBDriver:         config.DriverSQLite,
		DBPath:           filepath.Join(t.TempDir(), "complaints.db"),
		DBTable:          "t_complaint",
		DBMaxConns:       1,
		DBConnectTimeout: 5 * time.Second,
		DBQueryTimeout:   5 * time.Second,
		DBIdleTimeout:    time.Minute,
		UpsertMode:       config.UpsertNative,
		TargetUTCOffset:  9 * time.Hour,
	}
}

// Open returns a migrated SQLite database that is closed when the test ends.
func Open(t testing.TB) storage.DB {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(ctx, Config(t), logger.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Get reads one row through a short-lived session.
func Get(t testing.TB, db storage.DB, id string) (*complaint.Complaint, error) {
	t.Helper()
	ctx := context.Background()
	sess, err := db.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer sess.Release()
	return sess.Get(ctx, id)
}
