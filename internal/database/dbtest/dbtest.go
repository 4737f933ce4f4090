// Package dbtest opens throwaway SQLite databases with the reservation schema.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"ms-reservation/internal/database"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var counter atomic.Int64

// New returns an in-memory database private to the test. A single
// connection makes concurrent transactions queue instead of failing.
func New(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:reservation_%d?mode=memory&cache=shared", counter.Add(1))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, database.CreateSchema(context.Background(), db))

	t.Cleanup(func() {
		db.Close()
	})
	return db
}
