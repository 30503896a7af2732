package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
}

func TestWatcher_FiresOnRemove(t *testing.T) {
	target := filepath.Join(t.TempDir(), "engram.db")
	touch(t, target)

	var calls atomic.Int32
	w, err := New(target, func() { calls.Add(1) })
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.Remove(target))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_FiresOnDirectoryRemove(t *testing.T) {
	target := filepath.Join(t.TempDir(), "store")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "sessions"), 0750))

	fired := make(chan struct{}, 1)
	w, err := New(target, func() { fired <- struct{}{} })
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.RemoveAll(target))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onDelete not called")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "engram.db")
	other := filepath.Join(dir, "engram.db-wal")
	touch(t, target)
	touch(t, other)

	var calls atomic.Int32
	w, err := New(target, func() { calls.Add(1) })
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.Remove(other))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWatcher_SkipsWhenTargetReturns(t *testing.T) {
	target := filepath.Join(t.TempDir(), "engram.db")
	touch(t, target)

	var calls atomic.Int32
	w, err := New(target, func() { calls.Add(1) })
	require.NoError(t, err)
	w.SetDebounce(300 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.Remove(target))
	touch(t, target)

	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWatcher_StartStopIdempotent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "missing", "engram.db")

	w, err := New(target, nil)
	require.NoError(t, err)
	assert.Equal(t, target, w.Target())

	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
