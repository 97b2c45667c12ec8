package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"

	"complaintsync/internal/config"
)

// mysqlDSN builds the driver config. Loc is the target zone so DATETIME
// columns hold target-zone wall clock time in both directions.
func mysqlDSN(cfg *config.Config) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = cfg.Location()
	mc.Timeout = cfg.DBConnectTimeout
	mc.ReadTimeout = cfg.DBQueryTimeout
	mc.WriteTimeout = cfg.DBQueryTimeout
	mc.Collation = "utf8mb4_unicode_ci"
	return mc
}

func openMySQL(ctx context.Context, cfg *config.Config) (DB, error) {
	connector, err := mysql.NewConnector(mysqlDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid mysql config: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.DBMaxConns)
	db.SetMaxIdleConns(cfg.DBMaxConns)
	db.SetConnMaxIdleTime(cfg.DBIdleTimeout)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DBConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to mysql at %s: %w", net.JoinHostPort(cfg.DBHost, cfg.DBPort), err)
	}

	stmts := buildStatements(cfg.DBTable, questionMark)
	stmts.upsert = mysqlUpsert(stmts.insert)
	return &sqlDB{
		db:      db,
		dialect: config.DriverMySQL,
		stmts:   stmts,
		ddl:     createTable(cfg.DBTable, "DATETIME", "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"),
	}, nil
}
