package source

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShardDB(t *testing.T) (string, *sql.DB) {
	path := filepath.Join(t.TempDir(), "shard.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE visits (id INTEGER PRIMARY KEY, user_id TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO visits (id, user_id) VALUES (1, 'alice'), (2, 'bob'), (3, 'carol')`)
	require.NoError(t, err)
	return path, db
}

func TestFetchRows(t *testing.T) {
	path, _ := newShardDB(t)

	provider := NewSQLProvider()
	require.NoError(t, provider.AddShard("default", "sqlite3", path))
	defer provider.Close()

	rows, err := provider.FetchRows(context.Background(), "default", "visits", "id", []string{"1", "3"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0]["user_id"])
	assert.Equal(t, "carol", rows[1]["user_id"])
}

func TestFetchRowsEmptyPKs(t *testing.T) {
	provider := NewSQLProvider()
	rows, err := provider.FetchRows(context.Background(), "default", "visits", "id", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetchRowsUnknownShard(t *testing.T) {
	provider := NewSQLProvider()
	_, err := provider.FetchRows(context.Background(), "shard7", "visits", "id", []string{"1"})
	assert.Error(t, err)
}
