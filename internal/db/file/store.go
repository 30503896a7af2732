// Package file implements the file storage adapter: one JSON document per
// record plus a shared index holding id counters and the project list.
//
// Layout under the data directory:
//
//	index.json
//	sessions/<content-session-id>.json
//	observations/<id>.json
//	summaries/<id>.json
//	pending/<id>.json
//	prompts/<content-session-id>/<prompt-number>.json
//
// Every write goes to a temporary file that is renamed into place. All
// mutations of one Store are serialised by an in-process mutex, so claims are
// exactly-once within a process. Two processes sharing one directory are not
// coordinated and may double-claim queue messages.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/engram-storage/internal/db"
)

// AdapterName is the factory name of this adapter.
const AdapterName = "file"

const (
	indexFile       = "index.json"
	sessionsDir     = "sessions"
	observationsDir = "observations"
	summariesDir    = "summaries"
	pendingDir      = "pending"
	promptsDir      = "prompts"
)

// Config holds file backend configuration.
type Config struct {
	Dir string // Root data directory
}

// Store is the file adapter.
type Store struct {
	cfg       Config
	lifecycle *db.Lifecycle

	mu    sync.RWMutex
	index *index
}

var _ db.Store = (*Store)(nil)

// New validates cfg and returns an uninitialized store. It performs no I/O.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, &db.ConfigError{
			Adapter: AdapterName,
			Field:   "data directory",
			Hint:    "set ENGRAM_STORAGE_DIR or pass --data-dir",
		}
	}
	return &Store{
		cfg:       cfg,
		lifecycle: db.NewLifecycle(AdapterName),
	}, nil
}

// Name returns the adapter name.
func (s *Store) Name() string { return AdapterName }

// Dir returns the data directory.
func (s *Store) Dir() string { return s.cfg.Dir }

// Initialize creates the directory tree and loads the index.
func (s *Store) Initialize(ctx context.Context) error {
	return s.lifecycle.Start(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, dir := range []string{sessionsDir, observationsDir, summariesDir, pendingDir, promptsDir} {
			if err := os.MkdirAll(s.path(dir), 0750); err != nil {
				return fmt.Errorf("create %s directory: %w", dir, err)
			}
		}

		idx, err := s.loadIndex()
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.index = idx
		s.mu.Unlock()

		if err := s.saveIndex(); err != nil {
			return err
		}
		log.Info().Str("adapter", AdapterName).Str("dir", s.cfg.Dir).Msg("Storage initialized")
		return nil
	})
}

// Close flushes the index. Safe to call repeatedly.
func (s *Store) Close() error {
	return s.lifecycle.Stop(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		err := s.saveIndexLocked()
		s.index = nil
		log.Info().Str("adapter", AdapterName).Msg("Storage closed")
		return err
	})
}

func (s *Store) path(elem ...string) string {
	return filepath.Join(append([]string{s.cfg.Dir}, elem...)...)
}

// index is the in-memory copy of index.json.
type index struct {
	NextIDs  map[string]int64 `json:"next_ids"`
	Projects []string         `json:"projects"`
}

func newIndex() *index {
	return &index{
		NextIDs: map[string]int64{
			sessionsDir:     1,
			observationsDir: 1,
			summariesDir:    1,
			pendingDir:      1,
			promptsDir:      1,
		},
		Projects: []string{},
	}
}

// next returns the next id of kind and advances the counter.
func (idx *index) next(kind string) int64 {
	id := idx.NextIDs[kind]
	if id < 1 {
		id = 1
	}
	idx.NextIDs[kind] = id + 1
	return id
}

// addProject records a non-empty project name, keeping the list sorted.
func (idx *index) addProject(project string) {
	if project == "" {
		return
	}
	i := sort.SearchStrings(idx.Projects, project)
	if i < len(idx.Projects) && idx.Projects[i] == project {
		return
	}
	idx.Projects = append(idx.Projects, "")
	copy(idx.Projects[i+1:], idx.Projects[i:])
	idx.Projects[i] = project
}

func (idx *index) clone() *index {
	c := &index{
		NextIDs:  make(map[string]int64, len(idx.NextIDs)),
		Projects: append([]string(nil), idx.Projects...),
	}
	for k, v := range idx.NextIDs {
		c.NextIDs[k] = v
	}
	return c
}

// loadIndex reads index.json, rebuilding it from the records when missing.
func (s *Store) loadIndex() (*index, error) {
	idx := newIndex()
	found, err := readJSON(s.path(indexFile), idx)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	if found {
		if idx.NextIDs == nil {
			idx.NextIDs = newIndex().NextIDs
		}
		if idx.Projects == nil {
			idx.Projects = []string{}
		}
		sort.Strings(idx.Projects)
		return idx, nil
	}
	return s.rebuildIndex()
}

// rebuildIndex derives counters and projects from the records on disk.
func (s *Store) rebuildIndex() (*index, error) {
	idx := newIndex()

	sessions, err := listRecords[sessionRecord](s.path(sessionsDir))
	if err != nil {
		return nil, err
	}
	for _, rec := range sessions {
		idx.bump(sessionsDir, rec.ID)
		idx.addProject(rec.Project)
	}

	observations, err := listRecords[observationRecord](s.path(observationsDir))
	if err != nil {
		return nil, err
	}
	for _, rec := range observations {
		idx.bump(observationsDir, rec.ID)
	}

	summaries, err := listRecords[summaryRecord](s.path(summariesDir))
	if err != nil {
		return nil, err
	}
	for _, rec := range summaries {
		idx.bump(summariesDir, rec.ID)
	}

	pending, err := listRecords[pendingRecord](s.path(pendingDir))
	if err != nil {
		return nil, err
	}
	for _, rec := range pending {
		idx.bump(pendingDir, rec.ID)
	}

	prompts, err := s.allPrompts()
	if err != nil {
		return nil, err
	}
	for _, rec := range prompts {
		idx.bump(promptsDir, rec.ID)
	}

	if len(sessions)+len(observations)+len(summaries)+len(pending)+len(prompts) > 0 {
		log.Warn().Str("dir", s.cfg.Dir).Msg("Index missing, rebuilt from records")
	}
	return idx, nil
}

// bump moves the counter of kind past id.
func (idx *index) bump(kind string, id int64) {
	if id >= idx.NextIDs[kind] {
		idx.NextIDs[kind] = id + 1
	}
}

func (s *Store) saveIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveIndexLocked()
}

func (s *Store) saveIndexLocked() error {
	if err := writeJSON(s.path(indexFile), s.index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// mutation is the write set of one mutate call. Every record write goes
// through it so a failed mutation can put the files back.
type mutation struct {
	idx  *index
	undo []func() error
}

// write stores v at path, remembering what was there before.
func (m *mutation) write(path string, v interface{}) error {
	prev, existed, err := readFile(path)
	if err != nil {
		return err
	}
	if err := writeJSON(path, v); err != nil {
		return err
	}
	m.undo = append(m.undo, func() error {
		if existed {
			return writeFile(path, prev)
		}
		return removeFile(path)
	})
	return nil
}

// remove deletes path, remembering its content.
func (m *mutation) remove(path string) error {
	prev, existed, err := readFile(path)
	if err != nil || !existed {
		return err
	}
	if err := removeFile(path); err != nil {
		return err
	}
	m.undo = append(m.undo, func() error {
		return writeFile(path, prev)
	})
	return nil
}

// rollback reverts the files touched so far, newest first.
func (m *mutation) rollback() {
	for i := len(m.undo) - 1; i >= 0; i-- {
		if err := m.undo[i](); err != nil {
			log.Error().Err(err).Str("adapter", AdapterName).Msg("Failed to roll back record write")
		}
	}
	m.undo = nil
}

// mutate runs fn under the write lock and persists the index afterwards.
// If fn or the index flush fails, the index and every file written through
// the mutation are restored to their previous state.
func (s *Store) mutate(ctx context.Context, fn func(m *mutation) error) error {
	if err := s.lifecycle.Check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return db.NotInitialized(AdapterName)
	}

	snapshot := s.index.clone()
	m := &mutation{idx: s.index}
	err := fn(m)
	if err == nil {
		err = s.saveIndexLocked()
	}
	if err != nil {
		s.index = snapshot
		m.rollback()
		return err
	}
	return nil
}

// view runs fn under the read lock.
func (s *Store) view(ctx context.Context, fn func() error) error {
	if err := s.lifecycle.Check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return db.NotInitialized(AdapterName)
	}
	return fn()
}
