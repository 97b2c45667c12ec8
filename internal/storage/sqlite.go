package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"

	"complaintsync/internal/config"
)

// openSQLite opens a file database. SQLite has no native upsert exposed
// here, so sessions fall back to check-then-write.
func openSQLite(ctx context.Context, cfg *config.Config) (DB, error) {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(cfg.DBConnectTimeout.Milliseconds()))
	dsn := "file:" + cfg.DBPath + "?" + q.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", cfg.DBPath, err)
	}
	// One writer at a time; more connections only produce SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(cfg.DBIdleTimeout)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DBConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite %s: %w", cfg.DBPath, err)
	}

	return &sqlDB{
		db:      db,
		dialect: config.DriverSQLite,
		stmts:   buildStatements(cfg.DBTable, questionMark),
		ddl:     createTable(cfg.DBTable, "DATETIME", ""),
	}, nil
}
