package storage

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Server error codes mapped onto the package sentinels.
const (
	mysqlDupEntry    = 1062 // ER_DUP_ENTRY
	mysqlDataTooLong = 1406 // ER_DATA_TOO_LONG

	pgUniqueViolation   = "23505"
	pgStringDataTooLong = "22001"
)

// classify wraps driver errors that mean "duplicate key" or "value too long"
// so they match ErrDuplicateKey / ErrValueTooLong with errors.Is. Other
// errors are returned unchanged; nil stays nil.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDupEntry:
			return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
		case mysqlDataTooLong:
			return fmt.Errorf("%w: %w", ErrValueTooLong, err)
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
		case pgStringDataTooLong:
			return fmt.Errorf("%w: %w", ErrValueTooLong, err)
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey,
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
		case liteErr.Code == sqlite3.ErrTooBig:
			return fmt.Errorf("%w: %w", ErrValueTooLong, err)
		}
	}
	return err
}
