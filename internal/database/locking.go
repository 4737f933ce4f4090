package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// PostgreSQL error codes that mean "try again".
const (
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// IsPostgres reports whether idb talks to PostgreSQL. Row locks and lock
// timeouts are only issued there; SQLite serializes writers on its own.
func IsPostgres(idb bun.IDB) bool {
	return idb.Dialect().Name() == dialect.PG
}

// ForUpdate appends a row lock to q when the dialect supports it.
func ForUpdate(q *bun.SelectQuery, idb bun.IDB) *bun.SelectQuery {
	if IsPostgres(idb) {
		return q.For("UPDATE")
	}
	return q
}

// SetLockTimeout bounds every lock wait of the current transaction.
func SetLockTimeout(ctx context.Context, tx bun.Tx, d time.Duration) error {
	if d <= 0 || !IsPostgres(tx) {
		return nil
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	return nil
}

// IsTransient reports whether err is a lock timeout, serialization failure,
// deadlock or a busy SQLite database.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
