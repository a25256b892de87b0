package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"

	mysqlDeadlock        = 1213
	mysqlLockWaitTimeout = 1205
	mysqlDupEntry        = 1062
)

// classify wraps retryable driver errors in ErrSerialization and leaves
// everything else untouched.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrSerialization) {
		return err
	}
	if isRetryable(err) {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return err
}

// isRetryable reports conflicts caused by a concurrent transaction. A
// duplicate key on an edge insert means another writer won the race, and
// the retry will observe its row.
func isRetryable(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return true
		}
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDeadlock, mysqlLockWaitTimeout, mysqlDupEntry:
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		case sqlite3.ErrConstraint:
			return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
				liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
		}
	}

	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
