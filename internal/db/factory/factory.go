// Package factory selects and constructs a storage adapter by name.
//
// Construction never performs I/O. Schema setup, directory creation and
// connection testing happen in the returned store's Initialize.
package factory

import (
	"sort"
	"strings"
	"sync"

	"github.com/thebtf/engram-storage/internal/config"
	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/internal/db/file"
	gormstore "github.com/thebtf/engram-storage/internal/db/gorm"
	"github.com/thebtf/engram-storage/internal/db/sqlite"
)

// Options is the free-form parameter bag handed to adapter constructors.
// Each adapter reads only the fields it needs.
type Options struct {
	Adapter     string // adapter name; empty selects config.DefaultAdapter
	DatabaseURL string // shared-sql connection string
	DataDir     string // file backend root directory
	DBPath      string // embedded-sql database file
	MaxConns    int    // SQL connection pool size; zero keeps the adapter default
}

// FromConfig maps settings onto factory options.
func FromConfig(cfg *config.Config) Options {
	return Options{
		Adapter:     cfg.Adapter,
		DatabaseURL: cfg.DatabaseURL,
		DataDir:     cfg.StorageDir,
		DBPath:      cfg.DBPath,
		MaxConns:    cfg.MaxConns,
	}
}

// Constructor builds an uninitialized store from opts.
type Constructor func(opts Options) (db.Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{
		sqlite.AdapterName:    newEmbedded,
		gormstore.AdapterName: newShared,
		file.AdapterName:      newFile,
	}
)

// Register adds or replaces an adapter constructor.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// Available returns the registered adapter names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the adapter named by opts.Adapter. Unknown names and missing
// required parameters return a *db.ConfigError.
func New(opts Options) (db.Store, error) {
	name := strings.TrimSpace(strings.ToLower(opts.Adapter))
	if name == "" {
		name = config.DefaultAdapter
	}

	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &db.ConfigError{
			Field: "storage adapter",
			Value: opts.Adapter,
			Valid: Available(),
			Hint:  "set ENGRAM_STORAGE_ADAPTER or pass --adapter",
		}
	}
	return ctor(opts)
}

// StoragePath returns the on-disk location the selected adapter writes to,
// or "" for networked backends.
func StoragePath(opts Options) string {
	switch strings.TrimSpace(strings.ToLower(opts.Adapter)) {
	case "", sqlite.AdapterName:
		return opts.DBPath
	case file.AdapterName:
		return opts.DataDir
	default:
		return ""
	}
}

func newEmbedded(opts Options) (db.Store, error) {
	store, err := sqlite.New(sqlite.Config{Path: opts.DBPath, MaxConns: opts.MaxConns})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newShared(opts Options) (db.Store, error) {
	store, err := gormstore.NewStore(gormstore.Config{DSN: opts.DatabaseURL, MaxConns: opts.MaxConns})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newFile(opts Options) (db.Store, error) {
	store, err := file.New(file.Config{Dir: opts.DataDir})
	if err != nil {
		return nil, err
	}
	return store, nil
}
