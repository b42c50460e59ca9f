package database

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfig_DSN(t *testing.T) {
	t.Run("file database uses WAL", func(t *testing.T) {
		dsn := Config{Path: "data/backoffice.db"}.DSN()
		require.True(t, strings.HasPrefix(dsn, "file:data/backoffice.db?"))

		q, err := url.ParseQuery(dsn[strings.Index(dsn, "?")+1:])
		require.NoError(t, err)
		assert.Equal(t, "WAL", q.Get("_journal_mode"))
		assert.Equal(t, "on", q.Get("_foreign_keys"))
		assert.Equal(t, "immediate", q.Get("_txlock"))
		assert.Equal(t, "5000", q.Get("_busy_timeout"))
	})

	t.Run("memory database skips WAL", func(t *testing.T) {
		dsn := Config{Path: MemoryPath, BusyTimeout: 250 * time.Millisecond}.DSN()
		assert.True(t, strings.HasPrefix(dsn, "file::memory:?"))
		assert.NotContains(t, dsn, "_journal_mode")
		assert.Contains(t, dsn, "_busy_timeout=250")
	})
}

func TestNew(t *testing.T) {
	t.Run("memory database enforces foreign keys", func(t *testing.T) {
		db, err := New(Config{Path: MemoryPath, MaxOpenConns: 4}, zap.NewNop())
		require.NoError(t, err)
		defer db.Close()

		assert.Equal(t, MemoryPath, db.Path())
		assert.Equal(t, 1, db.Stats().MaxOpenConnections)

		_, err = db.Exec(`CREATE TABLE parent (id INTEGER PRIMARY KEY);
			CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER NOT NULL REFERENCES parent(id));`)
		require.NoError(t, err)
		_, err = db.Exec("INSERT INTO child (parent_id) VALUES (42)")
		assert.Error(t, err)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := New(Config{}, zap.NewNop())
		assert.Error(t, err)
	})
}
