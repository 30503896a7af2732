// Package sqlite implements the embedded-sql storage adapter on a single
// SQLite file (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/thebtf/engram-storage/internal/db"
)

// AdapterName is the factory name of this adapter.
const AdapterName = "embedded-sql"

// Config holds embedded database configuration.
type Config struct {
	Path     string // Path to the SQLite database file
	MaxConns int    // Maximum number of open connections (default: 4)
}

// Store is the embedded-sql adapter. All contract operations are methods on Store.
type Store struct {
	cfg       Config
	lifecycle *db.Lifecycle

	db      *sql.DB
	stmts   map[string]*sql.Stmt
	stmtsMu sync.RWMutex
}

var _ db.Store = (*Store)(nil)

// New validates cfg and returns an uninitialized store. It performs no I/O.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, &db.ConfigError{
			Adapter: AdapterName,
			Field:   "database path",
			Hint:    "set ENGRAM_DB_PATH or pass --db-path",
		}
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 4
	}
	return &Store{
		cfg:       cfg,
		lifecycle: db.NewLifecycle(AdapterName),
	}, nil
}

// Name returns the adapter name.
func (s *Store) Name() string { return AdapterName }

// Path returns the database file path.
func (s *Store) Path() string { return s.cfg.Path }

// Initialize opens the database, applies pragmas and runs migrations.
func (s *Store) Initialize(ctx context.Context) error {
	return s.lifecycle.Start(func() error {
		if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0750); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}

		// Pragmas go through the DSN so that every pooled connection gets them.
		// _txlock=immediate takes the write lock at BEGIN, avoiding upgrade deadlocks.
		dsn := "file:" + s.cfg.Path +
			"?_pragma=busy_timeout(5000)" +
			"&_pragma=journal_mode(WAL)" +
			"&_pragma=synchronous(NORMAL)" +
			"&_pragma=foreign_keys(1)" +
			"&_txlock=immediate"

		sqlDB, err := sql.Open("sqlite", dsn)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		sqlDB.SetMaxOpenConns(s.cfg.MaxConns)
		sqlDB.SetMaxIdleConns(s.cfg.MaxConns)
		sqlDB.SetConnMaxLifetime(0)

		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("ping database: %w", err)
		}
		if err := runMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("run migrations: %w", err)
		}

		s.db = sqlDB
		s.stmts = make(map[string]*sql.Stmt)
		log.Info().Str("adapter", AdapterName).Str("path", s.cfg.Path).Msg("Storage initialized")
		return nil
	})
}

// Close closes cached statements and the database. Safe to call repeatedly.
func (s *Store) Close() error {
	return s.lifecycle.Stop(func() error {
		s.stmtsMu.Lock()
		for _, stmt := range s.stmts {
			_ = stmt.Close()
		}
		s.stmts = make(map[string]*sql.Stmt)
		s.stmtsMu.Unlock()

		err := s.db.Close()
		log.Info().Str("adapter", AdapterName).Msg("Storage closed")
		return err
	})
}

// GetStmt returns a cached prepared statement, preparing it on first use.
func (s *Store) GetStmt(query string) (*sql.Stmt, error) {
	s.stmtsMu.RLock()
	stmt, ok := s.stmts[query]
	s.stmtsMu.RUnlock()
	if ok {
		return stmt, nil
	}

	s.stmtsMu.Lock()
	defer s.stmtsMu.Unlock()
	if stmt, ok := s.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	s.stmts[query] = stmt
	return stmt, nil
}

// ExecContext executes a query using the statement cache.
func (s *Store) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	stmt, err := s.GetStmt(query)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, args...)
}

// QueryContext runs a query using the statement cache.
func (s *Store) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	stmt, err := s.GetStmt(query)
	if err != nil {
		return nil, err
	}
	return stmt.QueryContext(ctx, args...)
}

// QueryRowContext runs a single-row query using the statement cache.
// A preparation failure surfaces from Scan.
func (s *Store) QueryRowContext(ctx context.Context, query string, args ...interface{}) rowScanner {
	stmt, err := s.GetStmt(query)
	if err != nil {
		return errRow{err: err}
	}
	return stmt.QueryRowContext(ctx, args...)
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

type errRow struct{ err error }

func (r errRow) Scan(...interface{}) error { return r.err }

// isUniqueViolation reports whether err is a SQLite uniqueness constraint failure.
func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
