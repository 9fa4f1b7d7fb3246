package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRow struct {
	exists bool
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*bool) = r.exists
	return nil
}

type fakeConn struct {
	exists  bool
	execErr error
	queries []string
	args    [][]any
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	c.queries = append(c.queries, sql)
	c.args = append(c.args, args)
	return fakeRow{exists: c.exists}
}

func (c *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.queries = append(c.queries, sql)
	c.args = append(c.args, args)
	if c.execErr != nil {
		return pgconn.CommandTag{}, c.execErr
	}
	c.exists = true
	return pgconn.NewCommandTag("CREATE DATABASE"), nil
}

func TestEnsureDatabaseCreates(t *testing.T) {
	conn := &fakeConn{}
	created, err := EnsureDatabase(context.Background(), conn, `restaurant "sales"`)
	require.NoError(t, err)
	assert.True(t, created)

	require.Len(t, conn.queries, 2)
	assert.Equal(t, []any{`restaurant "sales"`}, conn.args[0], "name is bound, not interpolated")
	assert.Equal(t, `CREATE DATABASE "restaurant ""sales"""`, conn.queries[1])
}

func TestEnsureDatabaseIsIdempotent(t *testing.T) {
	conn := &fakeConn{}
	ctx := context.Background()

	created, err := EnsureDatabase(ctx, conn, "restaurant_sales")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureDatabase(ctx, conn, "restaurant_sales")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, conn.queries, 3)
}

func TestEnsureDatabaseConcurrentCreator(t *testing.T) {
	conn := &fakeConn{execErr: &pgconn.PgError{Code: "42P04", Message: "database already exists"}}
	created, err := EnsureDatabase(context.Background(), conn, "restaurant_sales")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureDatabaseErrors(t *testing.T) {
	_, err := EnsureDatabase(context.Background(), &fakeConn{}, "")
	assert.Error(t, err)

	conn := &fakeConn{execErr: errors.New("permission denied")}
	_, err = EnsureDatabase(context.Background(), conn, "restaurant_sales")
	assert.ErrorContains(t, err, "permission denied")
}

func TestMigrate(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	logger := zap.NewNop()
	require.NoError(t, Migrate(db.DB, "sqlite3", logger))
	// A second run finds nothing to apply.
	require.NoError(t, Migrate(db.DB, "sqlite3", logger))

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM etl_runs"))
	assert.Zero(t, n)
}
