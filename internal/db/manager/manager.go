// Package manager holds the process-wide storage adapter.
//
// A Manager builds its adapter through the factory, wraps it with
// instrumentation and owns its Initialize/Close ordering. When watching is
// enabled and the adapter lives on local disk, deleting the storage closes
// the adapter and initializes a fresh one in its place.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/engram-storage/internal/config"
	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/internal/db/factory"
	"github.com/thebtf/engram-storage/internal/db/instrument"
	"github.com/thebtf/engram-storage/internal/watcher"
)

// recreateTimeout bounds re-initialization after the storage was deleted.
const recreateTimeout = 30 * time.Second

// Options configures a Manager.
type Options struct {
	Factory       factory.Options
	Watch         bool                 // re-create storage after deletion
	MeterProvider metric.MeterProvider // nil uses the global provider
}

// FromConfig derives manager options from loaded settings, including
// whether deleted storage is re-created.
func FromConfig(cfg *config.Config) Options {
	return Options{
		Factory: factory.FromConfig(cfg),
		Watch:   cfg.WatchStorage,
	}
}

// Manager owns one storage adapter.
type Manager struct {
	opts  Options
	group singleflight.Group

	mu      sync.RWMutex
	store   db.Store
	ready   bool
	watcher *watcher.Watcher
}

// New validates opts by constructing the adapter. It performs no I/O.
func New(opts Options) (*Manager, error) {
	store, err := build(opts)
	if err != nil {
		return nil, err
	}
	return &Manager{opts: opts, store: store}, nil
}

func build(opts Options) (db.Store, error) {
	raw, err := factory.New(opts.Factory)
	if err != nil {
		return nil, err
	}
	var iopts []instrument.Option
	if opts.MeterProvider != nil {
		iopts = append(iopts, instrument.WithMeterProvider(opts.MeterProvider))
	}
	store, err := instrument.Wrap(raw, iopts...)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Initialize initializes the adapter once. Concurrent callers share a single
// attempt; calls after success return nil immediately.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.RLock()
	ready := m.ready
	m.mu.RUnlock()
	if ready {
		return nil
	}

	_, err, _ := m.group.Do("initialize", func() (interface{}, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.ready {
			return nil, nil
		}
		if m.store == nil {
			store, err := build(m.opts)
			if err != nil {
				return nil, err
			}
			m.store = store
		}
		if err := m.store.Initialize(ctx); err != nil {
			return nil, err
		}
		m.ready = true
		m.startWatcherLocked()
		return nil, nil
	})
	return err
}

// Store returns the live adapter, or ErrNotInitialized before Initialize
// and after Close.
func (m *Manager) Store() (db.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return nil, fmt.Errorf("storage manager: %w", db.ErrNotInitialized)
	}
	return m.store, nil
}

// Close stops the watcher and closes the adapter. Safe to call repeatedly.
func (m *Manager) Close() error {
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	// Outside the lock: a pending deletion callback may be waiting on it.
	if w != nil {
		if err := w.Stop(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop storage watcher")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return nil
	}
	m.ready = false
	store := m.store
	m.store = nil
	return store.Close()
}

func (m *Manager) startWatcherLocked() {
	if !m.opts.Watch || m.watcher != nil {
		return
	}
	path := factory.StoragePath(m.opts.Factory)
	if path == "" {
		return
	}

	w, err := watcher.New(path, m.recreate)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create storage watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start storage watcher")
		return
	}
	m.watcher = w
	log.Info().Str("path", path).Msg("Storage watcher started")
}

// recreate replaces the adapter after its storage was deleted.
func (m *Manager) recreate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return
	}
	log.Warn().Str("adapter", m.store.Name()).Msg("Storage deleted, re-creating")

	if err := m.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close deleted storage")
	}
	m.ready = false

	store, err := build(m.opts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to rebuild storage adapter")
		m.store = nil
		return
	}
	m.store = store

	ctx, cancel := context.WithTimeout(context.Background(), recreateTimeout)
	defer cancel()
	if err := store.Initialize(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to re-initialize storage")
		return
	}
	m.ready = true
	log.Info().Str("adapter", store.Name()).Msg("Storage re-created")
}
