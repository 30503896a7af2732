package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/thebtf/engram-storage/internal/db"
)

var (
	defaultMu  sync.Mutex
	defaultMgr *Manager
)

// Init creates and initializes the process-wide manager. Calling it again
// returns the existing manager without applying opts.
func Init(ctx context.Context, opts Options) (*Manager, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultMgr == nil {
		m, err := New(opts)
		if err != nil {
			return nil, err
		}
		defaultMgr = m
	}
	if err := defaultMgr.Initialize(ctx); err != nil {
		return nil, err
	}
	return defaultMgr, nil
}

// Get returns the process-wide store.
func Get() (db.Store, error) {
	defaultMu.Lock()
	m := defaultMgr
	defaultMu.Unlock()
	if m == nil {
		return nil, fmt.Errorf("storage manager: %w (call manager.Init first)", db.ErrNotInitialized)
	}
	return m.Store()
}

// Shutdown closes and forgets the process-wide manager.
func Shutdown() error {
	defaultMu.Lock()
	m := defaultMgr
	defaultMgr = nil
	defaultMu.Unlock()
	if m == nil {
		return nil
	}
	return m.Close()
}
