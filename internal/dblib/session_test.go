package dblib

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createSQLiteFile(t *testing.T, name string, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	return path
}

func TestSessionReopenClosesPreviousHandle(t *testing.T) {
	s, _ := openTestSession(t, `CREATE TABLE a (id INTEGER PRIMARY KEY)`)
	old := s.db
	path := createSQLiteFile(t, "other.db", `CREATE TABLE b (id INTEGER PRIMARY KEY)`)

	require.NoError(t, s.Reopen(context.Background(), Options{Type: SQLite, DSN: path, Logger: logr.Discard()}))
	t.Cleanup(func() { s.Close() })

	assert.Error(t, old.Ping())
	tables, err := s.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, tables)
}

func TestReconnectDropsKeysAndStaging(t *testing.T) {
	r, surface, _ := newTestReconciler(t,
		`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)`,
		`INSERT INTO items VALUES (1, 'a')`,
	)
	ctx := context.Background()
	_, err := r.Load(ctx, "items")
	require.NoError(t, err)
	require.NoError(t, r.RecordEdit(ctx, "items", 0, 1, "b"))

	// Same table name, but no primary key in the new database.
	path := createSQLiteFile(t, "reconnect.db",
		`CREATE TABLE items (code TEXT, name TEXT)`,
		`INSERT INTO items VALUES ('x', 'a'), ('y', 'a')`,
	)
	tables, err := r.Reconnect(ctx, Options{Type: SQLite, DSN: path, Logger: logr.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { r.session.Close() })
	assert.Equal(t, []string{"items"}, tables)
	assert.Zero(t, r.Staging().Len("items"))
	_, cached := r.Resolver().Cached("items")
	assert.False(t, cached)

	kd, err := r.Resolver().Resolve(ctx, "items")
	require.NoError(t, err)
	assert.True(t, kd.Fallback)
	assert.Equal(t, []string{"code"}, kd.Columns)
	assert.Equal(t, MessageInfo, surface.lastMessage().kind)
}

func TestReconnectFailureLeavesSessionClosed(t *testing.T) {
	r, surface, _ := newTestReconciler(t, `CREATE TABLE items (id INTEGER PRIMARY KEY)`)
	ctx := context.Background()

	_, err := r.Reconnect(ctx, Options{Type: DatabaseType(99), Logger: logr.Discard()})
	require.Error(t, err)
	assert.Equal(t, ConnectionError, KindOf(err))
	assert.Equal(t, MessageError, surface.lastMessage().kind)

	_, err = r.session.Tables(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
