package factory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/engram-storage/internal/config"
	"github.com/thebtf/engram-storage/internal/db"
)

func TestAvailable(t *testing.T) {
	assert.Equal(t, []string{"embedded-sql", "file", "shared-sql"}, Available())
}

func TestNew_TableDriven(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		opts     Options
		wantName string
		wantErr  string
	}{
		{
			name:     "default adapter",
			opts:     Options{DBPath: filepath.Join(dir, "a", "engram.db")},
			wantName: "embedded-sql",
		},
		{
			name:     "embedded sql",
			opts:     Options{Adapter: "embedded-sql", DBPath: filepath.Join(dir, "b", "engram.db")},
			wantName: "embedded-sql",
		},
		{
			name:     "name is case insensitive",
			opts:     Options{Adapter: " File ", DataDir: filepath.Join(dir, "c")},
			wantName: "file",
		},
		{
			name:     "shared sql",
			opts:     Options{Adapter: "shared-sql", DatabaseURL: "postgres://u:p@localhost:5432/engram"},
			wantName: "shared-sql",
		},
		{
			name:    "shared sql without connection string",
			opts:    Options{Adapter: "shared-sql"},
			wantErr: "ENGRAM_DATABASE_URL",
		},
		{
			name:    "file without directory",
			opts:    Options{Adapter: "file"},
			wantErr: "ENGRAM_STORAGE_DIR",
		},
		{
			name:    "embedded sql without path",
			opts:    Options{Adapter: "embedded-sql"},
			wantErr: "ENGRAM_DB_PATH",
		},
		{
			name:    "unknown adapter",
			opts:    Options{Adapter: "mongo"},
			wantErr: `invalid storage adapter "mongo" (available: embedded-sql, file, shared-sql)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				var cfgErr *db.ConfigError
				assert.True(t, errors.As(err, &cfgErr))
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, store.Name())
		})
	}

	// Construction performs no I/O.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNew_UnconstructedStoreIsNotInitialized(t *testing.T) {
	store, err := New(Options{Adapter: "file", DataDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.GetAllProjects(context.Background())
	assert.ErrorIs(t, err, db.ErrNotInitialized)
}

func TestRegister(t *testing.T) {
	Register("memory-test", func(opts Options) (db.Store, error) {
		return New(Options{Adapter: "file", DataDir: opts.DataDir})
	})
	defer func() {
		registryMu.Lock()
		delete(registry, "memory-test")
		registryMu.Unlock()
	}()

	assert.Contains(t, Available(), "memory-test")
	store, err := New(Options{Adapter: "memory-test", DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "file", store.Name())
}

func TestStoragePath(t *testing.T) {
	tests := []struct {
		opts Options
		want string
	}{
		{Options{DBPath: "/d/engram.db"}, "/d/engram.db"},
		{Options{Adapter: "embedded-sql", DBPath: "/d/engram.db"}, "/d/engram.db"},
		{Options{Adapter: "file", DataDir: "/d/store"}, "/d/store"},
		{Options{Adapter: "shared-sql", DatabaseURL: "postgres://h/db"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StoragePath(tt.opts), tt.opts.Adapter)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Adapter:     "file",
		DatabaseURL: "postgres://h/db",
		StorageDir:  "/srv/store",
		DBPath:      "/srv/engram.db",
		MaxConns:    7,
	}
	assert.Equal(t, Options{
		Adapter:     "file",
		DatabaseURL: "postgres://h/db",
		DataDir:     "/srv/store",
		DBPath:      "/srv/engram.db",
		MaxConns:    7,
	}, FromConfig(cfg))
}
