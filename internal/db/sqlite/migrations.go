package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// migration is one forward-only schema step.
type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "sdk_sessions",
		sql: `
			CREATE TABLE IF NOT EXISTS sdk_sessions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				content_session_id TEXT NOT NULL UNIQUE,
				memory_session_id TEXT UNIQUE,
				project TEXT NOT NULL DEFAULT '',
				user_prompt TEXT,
				status TEXT NOT NULL DEFAULT 'active'
					CHECK (status IN ('active', 'completed', 'failed')),
				started_at TEXT NOT NULL,
				started_at_epoch INTEGER NOT NULL,
				completed_at TEXT,
				completed_at_epoch INTEGER
			);
			CREATE INDEX IF NOT EXISTS idx_sdk_sessions_project ON sdk_sessions(project);
			CREATE INDEX IF NOT EXISTS idx_sdk_sessions_status ON sdk_sessions(status);
			CREATE INDEX IF NOT EXISTS idx_sdk_sessions_started ON sdk_sessions(started_at_epoch DESC);
		`,
	},
	{
		version: 2,
		name:    "observations",
		sql: `
			CREATE TABLE IF NOT EXISTS observations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				memory_session_id TEXT NOT NULL,
				project TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL
					CHECK (type IN ('decision', 'bugfix', 'feature', 'refactor', 'discovery', 'change')),
				title TEXT,
				subtitle TEXT,
				narrative TEXT,
				facts TEXT NOT NULL DEFAULT '[]',
				concepts TEXT NOT NULL DEFAULT '[]',
				files_read TEXT NOT NULL DEFAULT '[]',
				files_modified TEXT NOT NULL DEFAULT '[]',
				prompt_number INTEGER,
				discovery_tokens INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				created_at_epoch INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_observations_memory_session ON observations(memory_session_id);
			CREATE INDEX IF NOT EXISTS idx_observations_project ON observations(project);
			CREATE INDEX IF NOT EXISTS idx_observations_type ON observations(type);
			CREATE INDEX IF NOT EXISTS idx_observations_created ON observations(created_at_epoch DESC);
		`,
	},
	{
		version: 3,
		name:    "session_summaries",
		sql: `
			CREATE TABLE IF NOT EXISTS session_summaries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				memory_session_id TEXT NOT NULL,
				project TEXT NOT NULL DEFAULT '',
				request TEXT,
				investigated TEXT,
				learned TEXT,
				completed TEXT,
				next_steps TEXT,
				notes TEXT,
				files_read TEXT NOT NULL DEFAULT '[]',
				files_edited TEXT NOT NULL DEFAULT '[]',
				prompt_number INTEGER,
				discovery_tokens INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				created_at_epoch INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_summaries_memory_session ON session_summaries(memory_session_id);
			CREATE INDEX IF NOT EXISTS idx_summaries_project ON session_summaries(project);
			CREATE INDEX IF NOT EXISTS idx_summaries_created ON session_summaries(created_at_epoch DESC);
		`,
	},
	{
		version: 4,
		name:    "user_prompts",
		sql: `
			CREATE TABLE IF NOT EXISTS user_prompts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				content_session_id TEXT NOT NULL,
				prompt_number INTEGER NOT NULL CHECK (prompt_number >= 1),
				prompt_text TEXT NOT NULL,
				created_at TEXT NOT NULL,
				created_at_epoch INTEGER NOT NULL,
				UNIQUE (content_session_id, prompt_number)
			);
			CREATE INDEX IF NOT EXISTS idx_user_prompts_created ON user_prompts(created_at_epoch DESC);
		`,
	},
	{
		version: 5,
		name:    "pending_messages",
		sql: `
			CREATE TABLE IF NOT EXISTS pending_messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_db_id INTEGER NOT NULL,
				content_session_id TEXT NOT NULL,
				message_type TEXT NOT NULL,
				tool_name TEXT,
				tool_input TEXT,
				tool_response TEXT,
				cwd TEXT,
				last_user_message TEXT,
				last_assistant_message TEXT,
				prompt_number INTEGER,
				status TEXT NOT NULL DEFAULT 'pending'
					CHECK (status IN ('pending', 'processing', 'processed', 'failed')),
				retry_count INTEGER NOT NULL DEFAULT 0,
				created_at_epoch INTEGER NOT NULL,
				started_processing_at_epoch INTEGER,
				completed_at_epoch INTEGER,
				failed_at_epoch INTEGER
			);
			CREATE INDEX IF NOT EXISTS idx_pending_session_status ON pending_messages(session_db_id, status, created_at_epoch);
			CREATE INDEX IF NOT EXISTS idx_pending_status ON pending_messages(status);
		`,
	},
}

// runMigrations applies every migration newer than the recorded schema version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at_epoch INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		log.Debug().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at_epoch) VALUES (?, ?, strftime('%s','now') * 1000)`,
		m.version, m.name,
	); err != nil {
		return err
	}
	return tx.Commit()
}
