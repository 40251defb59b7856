package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	assert.Equal(t, DialectPostgres, DialectFor("postgres://u:p@localhost:5432/cohort"))
	assert.Equal(t, DialectPostgres, DialectFor("postgresql://localhost/cohort"))
	assert.Equal(t, DialectSQLite, DialectFor("./cohort.db"))
	assert.Equal(t, DialectSQLite, DialectFor(":memory:"))
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: DialectPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", pg.Rebind("SELECT a FROM t WHERE b = ? AND c = ?"))

	lite := &DB{Dialect: DialectSQLite}
	assert.Equal(t, "SELECT a FROM t WHERE b = ?", lite.Rebind("SELECT a FROM t WHERE b = ?"))
}

func TestNewDB_SQLiteMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.Ping(ctx))

	for _, table := range []string{"users", "attendance", "submissions", "feedback", "feedback_votes", "login_history"} {
		var name string
		err := db.Client.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}

	// re-running is a no-op
	require.NoError(t, db.Migrate(ctx))
}
