package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	sql := `-- header comment
CREATE TABLE a (x String) ENGINE = Memory;

-- second; with a semicolon
CREATE TABLE b (y String) ENGINE = Memory; -- trailing
`
	stmts := splitStatements(sql)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x String) ENGINE = Memory", stmts[0])
	assert.Equal(t, "CREATE TABLE b (y String) ENGINE = Memory", stmts[1])
}

func TestSplitStatements_QuotedLiterals(t *testing.T) {
	stmts := splitStatements(`SELECT 'a;b', 'it''s -- fine'; SELECT 2`)
	require.Len(t, stmts, 2)
	assert.Equal(t, `SELECT 'a;b', 'it''s -- fine'`, stmts[0])
	assert.Equal(t, "SELECT 2", stmts[1])
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://localhost:9000/signals")
	require.NoError(t, err)
	assert.Equal(t, "signals", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := loadMigrations(PostgresFS, "postgres")
	require.NoError(t, err)
	var pgNames []string
	for _, m := range pg {
		pgNames = append(pgNames, m.Name)
	}
	assert.Equal(t, []string{"001_raw_messages.sql", "002_trades.sql", "003_pairing_state.sql"}, pgNames)

	ch, err := loadMigrations(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	for _, m := range ch {
		stmts := splitStatements(m.SQL)
		assert.NotEmpty(t, stmts, m.Name)
		for _, s := range stmts {
			assert.NotContains(t, s, "--", m.Name)
		}
	}
}
