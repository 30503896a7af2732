package db

import (
	"sync"
	"sync/atomic"
)

// Lifecycle tracks whether an adapter is usable.
// Adapters call Check at the start of every operation.
type Lifecycle struct {
	backend string
	mu      sync.Mutex
	ready   atomic.Bool
}

// NewLifecycle creates a lifecycle guard for the named backend.
func NewLifecycle(backend string) *Lifecycle {
	return &Lifecycle{backend: backend}
}

// Check returns ErrNotInitialized unless Start has succeeded and Stop has not begun.
func (l *Lifecycle) Check() error {
	if !l.ready.Load() {
		return NotInitialized(l.backend)
	}
	return nil
}

// Ready reports whether the adapter is initialized.
func (l *Lifecycle) Ready() bool {
	return l.ready.Load()
}

// Start runs open once. A second Start on a ready adapter is a no-op.
func (l *Lifecycle) Start(open func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready.Load() {
		return nil
	}
	if err := open(); err != nil {
		return err
	}
	l.ready.Store(true)
	return nil
}

// Stop marks the adapter unusable then runs release. Stopping a stopped adapter is a no-op.
func (l *Lifecycle) Stop(release func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ready.Load() {
		return nil
	}
	l.ready.Store(false)
	return release()
}
