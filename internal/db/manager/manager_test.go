package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/engram-storage/internal/config"
	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/internal/db/factory"
)

// ManagerSuite runs the manager against the file adapter.
type ManagerSuite struct {
	suite.Suite
	dir string
	ctx context.Context
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.dir = filepath.Join(s.T().TempDir(), "store")
	s.ctx = context.Background()
}

func (s *ManagerSuite) options(watch bool) Options {
	return Options{
		Factory:       factory.Options{Adapter: "file", DataDir: s.dir},
		Watch:         watch,
		MeterProvider: noop.NewMeterProvider(),
	}
}

func (s *ManagerSuite) TestNew_ConfigErrors() {
	tests := []struct {
		name string
		opts factory.Options
	}{
		{"unknown adapter", factory.Options{Adapter: "cassandra"}},
		{"missing data dir", factory.Options{Adapter: "file"}},
		{"missing connection string", factory.Options{Adapter: "shared-sql"}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := New(Options{Factory: tt.opts})
			var cfgErr *db.ConfigError
			s.True(errors.As(err, &cfgErr))
		})
	}
}

func (s *ManagerSuite) TestNew_NoIO() {
	_, err := New(s.options(false))
	s.Require().NoError(err)

	_, err = os.Stat(s.dir)
	s.True(os.IsNotExist(err))
}

func (s *ManagerSuite) TestStore_BeforeInitialize() {
	m, err := New(s.options(false))
	s.Require().NoError(err)

	_, err = m.Store()
	s.ErrorIs(err, db.ErrNotInitialized)
}

func (s *ManagerSuite) TestInitialize_Concurrent() {
	m, err := New(s.options(false))
	s.Require().NoError(err)
	defer m.Close()

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error { return m.Initialize(s.ctx) })
	}
	s.Require().NoError(g.Wait())

	store, err := m.Store()
	s.Require().NoError(err)
	s.Equal("file", store.Name())

	id, err := store.CreateSDKSession(s.ctx, "abc-1", "demo", "hello")
	s.Require().NoError(err)
	s.Equal(int64(1), id)
}

func (s *ManagerSuite) TestClose_IdempotentAndReopen() {
	m, err := New(s.options(false))
	s.Require().NoError(err)
	s.Require().NoError(m.Initialize(s.ctx))

	store, err := m.Store()
	s.Require().NoError(err)
	_, err = store.CreateSDKSession(s.ctx, "abc-1", "demo", "")
	s.Require().NoError(err)

	s.NoError(m.Close())
	s.NoError(m.Close())

	_, err = m.Store()
	s.ErrorIs(err, db.ErrNotInitialized)
	_, err = store.GetAllProjects(s.ctx)
	s.ErrorIs(err, db.ErrNotInitialized)

	s.Require().NoError(m.Initialize(s.ctx))
	defer m.Close()
	store, err = m.Store()
	s.Require().NoError(err)
	projects, err := store.GetAllProjects(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"demo"}, projects)
}

func (s *ManagerSuite) TestWatch_RecreatesDeletedStorage() {
	m, err := New(s.options(true))
	s.Require().NoError(err)
	s.Require().NoError(m.Initialize(s.ctx))
	defer m.Close()

	store, err := m.Store()
	s.Require().NoError(err)
	_, err = store.CreateSDKSession(s.ctx, "abc-1", "demo", "")
	s.Require().NoError(err)

	s.Require().NoError(os.RemoveAll(s.dir))

	s.Eventually(func() bool {
		current, err := m.Store()
		if err != nil {
			return false
		}
		projects, err := current.GetAllProjects(s.ctx)
		return err == nil && len(projects) == 0
	}, 3*time.Second, 20*time.Millisecond)

	_, err = os.Stat(filepath.Join(s.dir, "index.json"))
	s.NoError(err)
}

func (s *ManagerSuite) TestFromConfig_WatchStorage() {
	cfg := &config.Config{Adapter: "file", StorageDir: s.dir, MaxConns: 1, WatchStorage: true}
	opts := FromConfig(cfg)
	s.True(opts.Watch)
	s.Equal(s.dir, opts.Factory.DataDir)

	opts.MeterProvider = noop.NewMeterProvider()
	m, err := New(opts)
	s.Require().NoError(err)
	s.Require().NoError(m.Initialize(s.ctx))
	defer m.Close()

	s.Require().NoError(os.RemoveAll(s.dir))
	s.Eventually(func() bool {
		_, err := os.Stat(filepath.Join(s.dir, "index.json"))
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	cfg.WatchStorage = false
	s.False(FromConfig(cfg).Watch)
}

func TestDefaultManager(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Shutdown())

	_, err := Get()
	require.ErrorIs(t, err, db.ErrNotInitialized)

	opts := Options{
		Factory:       factory.Options{Adapter: "embedded-sql", DBPath: filepath.Join(t.TempDir(), "engram.db")},
		MeterProvider: noop.NewMeterProvider(),
	}
	m, err := Init(ctx, opts)
	require.NoError(t, err)

	again, err := Init(ctx, Options{Factory: factory.Options{Adapter: "file"}})
	require.NoError(t, err)
	assert.Same(t, m, again)

	store, err := Get()
	require.NoError(t, err)
	assert.Equal(t, "embedded-sql", store.Name())

	require.NoError(t, Shutdown())
	require.NoError(t, Shutdown())
	_, err = Get()
	assert.ErrorIs(t, err, db.ErrNotInitialized)
}
