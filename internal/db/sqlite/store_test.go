package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/internal/db/dbtest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{Path: filepath.Join(t.TempDir(), "engram.db")})
	require.NoError(t, err)
	return store
}

func TestStoreContract(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) db.Store {
		return newTestStore(t)
	})
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	var cfgErr *db.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, AdapterName, cfgErr.Adapter)
	assert.Contains(t, err.Error(), "ENGRAM_DB_PATH")
}

func TestNew_NoIO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "engram.db")
	store, err := New(Config{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "embedded-sql", store.Name())
	assert.Equal(t, 4, store.cfg.MaxConns)

	_, err = os.Stat(filepath.Dir(path))
	assert.True(t, os.IsNotExist(err))
}

func TestInitialize_CreatesDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "engram.db")
	store, err := New(Config{Path: path})
	require.NoError(t, err)

	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, path, store.Path())
}

func TestMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "engram.db")

	for i := 0; i < 2; i++ {
		store, err := New(Config{Path: path})
		require.NoError(t, err)
		require.NoError(t, store.Initialize(ctx))

		var count, version int
		require.NoError(t, store.DB().QueryRowContext(ctx,
			`SELECT COUNT(*), MAX(version) FROM schema_migrations`).Scan(&count, &version))
		assert.Equal(t, len(migrations), count)
		assert.Equal(t, migrations[len(migrations)-1].version, version)
		require.NoError(t, store.Close())
	}
}

func TestSchema_RejectsUnknownObservationType(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	_, err := store.DB().ExecContext(ctx, `
		INSERT INTO observations (memory_session_id, type, created_at, created_at_epoch)
		VALUES ('mem-1', 'gossip', '', 0)
	`)
	require.Error(t, err)
	assert.False(t, isUniqueViolation(err))
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	const insert = `
		INSERT INTO sdk_sessions (content_session_id, started_at, started_at_epoch)
		VALUES ('dup', '', 0)
	`
	_, err := store.DB().ExecContext(ctx, insert)
	require.NoError(t, err)

	_, err = store.DB().ExecContext(ctx, insert)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
	assert.False(t, isUniqueViolation(errors.New("plain")))
}

func TestGetStmt_Caches(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	const query = `SELECT COUNT(*) FROM sdk_sessions`
	first, err := store.GetStmt(query)
	require.NoError(t, err)
	second, err := store.GetStmt(query)
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = store.GetStmt(`SELECT nope FROM missing_table`)
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{1, "?"},
		{3, "?, ?, ?"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, placeholders(tt.n))
	}
}
