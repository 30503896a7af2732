// Package main provides engram-store, an admin CLI for engram session storage.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/engram-storage/internal/config"
	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/internal/db/factory"
	"github.com/thebtf/engram-storage/internal/db/manager"
)

// Version is set at build time via ldflags.
var Version = "dev"

// flags holds the persistent command-line overrides.
type flags struct {
	adapter     string
	databaseURL string
	dataDir     string
	dbPath      string
	debug       bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "engram-store",
		Short:         "Inspect and initialize engram session storage",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), f.debug)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.adapter, "adapter", "", fmt.Sprintf("Storage adapter (%s)", strings.Join(factory.Available(), ", ")))
	pf.StringVar(&f.databaseURL, "database-url", "", "Connection string for shared-sql")
	pf.StringVar(&f.dataDir, "data-dir", "", "Data directory for the file adapter")
	pf.StringVar(&f.dbPath, "db-path", "", "Database file for embedded-sql")
	pf.BoolVar(&f.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newInitCmd(f))
	root.AddCommand(newProjectsCmd(f))
	root.AddCommand(newSessionsCmd(f))
	root.AddCommand(newQueueCmd(f))
	root.AddCommand(newPromptsCmd(f))

	return root
}

// setupLogging logs to w, keeping stdout for JSON output.
func setupLogging(w io.Writer, debug bool) {
	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(config.Get().LogLevel); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: true})
}

// options merges settings with command-line overrides.
func (f *flags) options(cfg *config.Config) manager.Options {
	opts := manager.FromConfig(cfg)
	if f.adapter != "" {
		opts.Factory.Adapter = f.adapter
	}
	if f.databaseURL != "" {
		opts.Factory.DatabaseURL = f.databaseURL
	}
	if f.dataDir != "" {
		opts.Factory.DataDir = f.dataDir
	}
	if f.dbPath != "" {
		opts.Factory.DBPath = f.dbPath
	}
	return opts
}

// withStore initializes storage, runs fn and shuts storage down.
func (f *flags) withStore(ctx context.Context, fn func(store db.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}

	if _, err := manager.Init(ctx, f.options(cfg)); err != nil {
		return err
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("Failed to close storage")
		}
	}()

	store, err := manager.Get()
	if err != nil {
		return err
	}
	return fn(store)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
