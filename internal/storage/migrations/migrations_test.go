package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedOrder(t *testing.T) {
	pg, err := load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	for i := 1; i < len(pg); i++ {
		assert.Less(t, pg[i-1].Version, pg[i].Version)
	}
	assert.Equal(t, "001_announcements", pg[0].Version)

	ch, err := load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Len(t, ch, 1)
	assert.Contains(t, ch[0].SQL, "classification_log")
}

func TestLoad_SkipsBlankAndForeignFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.sql": {Data: []byte("SELECT 2")},
		"m/001_a.sql": {Data: []byte("SELECT 1")},
		"m/003_c.sql": {Data: []byte("  \n")},
		"m/README.md": {Data: []byte("docs")},
		"m/sub/x.sql": {Data: []byte("SELECT 3")},
	}

	ms, err := load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "001_a", ms[0].Version)
	assert.Equal(t, "002_b", ms[1].Version)
}

func TestSplitStatements(t *testing.T) {
	stmts, err := splitStatements(`
-- first table
CREATE TABLE a (x String);

CREATE TABLE b (y String) ENGINE = MergeTree() ORDER BY y
`)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x String)", stmts[0])
	assert.Contains(t, stmts[1], "ENGINE = MergeTree()")

	_, err = splitStatements(`INSERT INTO t VALUES ('a;b')`)
	assert.ErrorIs(t, err, errSemicolonInString)

	stmts, err = splitStatements(`INSERT INTO t VALUES ('it''s');`)
	require.NoError(t, err)
	assert.Len(t, stmts, 1)
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/radar")
	require.NoError(t, err)
	assert.Equal(t, "radar", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
