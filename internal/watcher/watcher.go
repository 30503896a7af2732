// Package watcher notices when on-disk storage (a database file or a data
// directory) disappears so the owner can re-create it.
package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is how long a removal must persist before onDelete fires.
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls onDelete when target is removed or renamed away.
// fsnotify cannot watch a path that may vanish, so the parent directory is
// watched instead.
type Watcher struct {
	target   string
	parent   string
	onDelete func()
	debounce time.Duration

	fsw  *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	running bool
	timer   *time.Timer
}

// New creates a watcher for target. It does not start watching.
func New(target string, onDelete func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	target = filepath.Clean(target)
	return &Watcher{
		target:   target,
		parent:   filepath.Dir(target),
		onDelete: onDelete,
		debounce: DefaultDebounce,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce changes the debounce window. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Target returns the watched path.
func (w *Watcher) Target() string { return w.target }

// Start begins watching. A missing parent is tolerated; the watch is
// re-established after the next deletion callback.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	w.running = true

	if err := w.watchParent(); err != nil {
		log.Warn().Err(err).Str("path", w.parent).Msg("Failed to watch storage directory")
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) watchParent() error {
	if _, err := os.Stat(w.parent); err != nil {
		return err
	}
	return w.fsw.Add(w.parent)
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.target {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				log.Info().Str("path", w.target).Str("op", event.Op.String()).Msg("Storage removed")
				w.schedule()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("path", w.target).Msg("Storage watcher error")
		}
	}
}

// schedule (re)arms the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

// fire runs onDelete unless the target came back during the debounce window.
func (w *Watcher) fire() {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}

	if _, err := os.Stat(w.target); !errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", w.target).Msg("Storage reappeared, skipping re-create")
		return
	}
	if w.onDelete != nil {
		w.onDelete()
	}

	// The parent may itself have been re-created by onDelete.
	if err := w.watchParent(); err != nil {
		log.Warn().Err(err).Str("path", w.parent).Msg("Failed to re-establish storage watch")
	}
}
