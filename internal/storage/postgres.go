package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"complaintsync/internal/complaint"
	"complaintsync/internal/config"
)

type pgDB struct {
	pool  *pgxpool.Pool
	stmts statements
	ddl   string
}

func postgresURL(cfg *config.Config) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:   net.JoinHostPort(cfg.DBHost, cfg.DBPort),
		Path:   "/" + cfg.DBName,
	}
	return u.String()
}

func openPostgres(ctx context.Context, cfg *config.Config) (DB, error) {
	pcfg, err := pgxpool.ParseConfig(postgresURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	pcfg.MaxConns = int32(cfg.DBMaxConns)
	pcfg.MaxConnIdleTime = cfg.DBIdleTimeout
	pcfg.ConnConfig.ConnectTimeout = cfg.DBConnectTimeout

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DBConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres at %s: %w", pcfg.ConnConfig.Host, err)
	}

	stmts := buildStatements(cfg.DBTable, dollar)
	stmts.upsert = postgresUpsert(stmts.insert)
	return &pgDB{
		pool:  pool,
		stmts: stmts,
		ddl:   createTable(cfg.DBTable, "TIMESTAMPTZ", ""),
	}, nil
}

func (d *pgDB) Dialect() string { return config.DriverPostgres }

func (d *pgDB) Close() error {
	d.pool.Close()
	return nil
}

func (d *pgDB) Migrate(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, d.ddl); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (d *pgDB) Acquire(ctx context.Context) (Session, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire postgres connection: %w", err)
	}
	return &pgSession{conn: conn, stmts: d.stmts}, nil
}

type pgSession struct {
	conn  *pgxpool.Conn
	stmts statements
}

func (s *pgSession) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.conn.QueryRow(ctx, s.stmts.exists, id).Scan(&one)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case err != nil:
		return false, classify(err)
	}
	return true, nil
}

func (s *pgSession) Get(ctx context.Context, id string) (*complaint.Complaint, error) {
	var c complaint.Complaint
	err := s.conn.QueryRow(ctx, s.stmts.get, id).Scan(c.ScanTargets()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return &c, nil
}

func (s *pgSession) Insert(ctx context.Context, c *complaint.Complaint) error {
	_, err := s.conn.Exec(ctx, s.stmts.insert, c.Values()...)
	return classify(err)
}

func (s *pgSession) Update(ctx context.Context, c *complaint.Complaint) error {
	tag, err := s.conn.Exec(ctx, s.stmts.update, updateArgs(c)...)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

func (s *pgSession) Upsert(ctx context.Context, c *complaint.Complaint) (bool, error) {
	var inserted bool
	if err := s.conn.QueryRow(ctx, s.stmts.upsert, c.Values()...).Scan(&inserted); err != nil {
		return false, classify(err)
	}
	return inserted, nil
}

func (s *pgSession) Release() {
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
}
