package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"complaintsync/internal/complaint"
)

// sqlDB backs the database/sql dialects (MySQL and SQLite).
type sqlDB struct {
	db      *sql.DB
	dialect string
	stmts   statements
	ddl     string
}

func (d *sqlDB) Dialect() string { return d.dialect }

func (d *sqlDB) Close() error { return d.db.Close() }

func (d *sqlDB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, d.ddl); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (d *sqlDB) Acquire(ctx context.Context) (Session, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s connection: %w", d.dialect, err)
	}
	s := &sqlSession{conn: conn, stmts: d.stmts}
	if d.stmts.upsert != "" {
		return &upsertSession{sqlSession: s}, nil
	}
	return s, nil
}

type sqlSession struct {
	conn  *sql.Conn
	stmts statements
	once  sync.Once
}

func (s *sqlSession) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.conn.QueryRowContext(ctx, s.stmts.exists, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, classify(err)
	}
	return true, nil
}

func (s *sqlSession) Get(ctx context.Context, id string) (*complaint.Complaint, error) {
	var c complaint.Complaint
	err := s.conn.QueryRowContext(ctx, s.stmts.get, id).Scan(c.ScanTargets()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return &c, nil
}

func (s *sqlSession) Insert(ctx context.Context, c *complaint.Complaint) error {
	_, err := s.conn.ExecContext(ctx, s.stmts.insert, c.Values()...)
	return classify(err)
}

// Update fails with ErrNotFound when no row has c's id. MySQL reports 0
// affected rows for an unchanged row too, so a zero count is confirmed with
// Exists before it is treated as missing.
func (s *sqlSession) Update(ctx context.Context, c *complaint.Complaint) error {
	res, err := s.conn.ExecContext(ctx, s.stmts.update, updateArgs(c)...)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	ok, err := s.Exists(ctx, c.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("update %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

func (s *sqlSession) Release() {
	s.once.Do(func() { _ = s.conn.Close() })
}

// upsertSession adds the single-statement upsert.
type upsertSession struct {
	*sqlSession
}

// Upsert relies on MySQL's affected-row convention for ON DUPLICATE KEY
// UPDATE: 1 for a new row, 2 for an overwritten row, 0 when the existing row
// already held the same values.
func (s *upsertSession) Upsert(ctx context.Context, c *complaint.Complaint) (bool, error) {
	res, err := s.conn.ExecContext(ctx, s.stmts.upsert, c.Values()...)
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}
