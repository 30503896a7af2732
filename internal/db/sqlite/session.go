package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

const sessionColumns = `id, content_session_id, memory_session_id, project, user_prompt, status,
	started_at, started_at_epoch, completed_at, completed_at_epoch`

// CreateSDKSession creates a session or returns the id of the existing one.
// The insert and the conflict check are one statement, so concurrent callers
// with the same content session id never create two rows.
func (s *Store) CreateSDKSession(ctx context.Context, contentSessionID, project, userPrompt string, opts ...db.WriteOption) (int64, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, err
	}
	if err := db.RequireContentSessionID(contentSessionID); err != nil {
		return 0, err
	}
	startedAt, epoch := models.Timestamp(db.WriteTime(opts...))

	const query = `
		INSERT INTO sdk_sessions
		(content_session_id, project, user_prompt, status, started_at, started_at_epoch)
		VALUES (?, ?, ?, 'active', ?, ?)
		ON CONFLICT(content_session_id) DO NOTHING
		RETURNING id
	`
	var id int64
	err := s.QueryRowContext(ctx, query,
		contentSessionID, project, nullString(userPrompt), startedAt, epoch,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	// Session exists.
	const selectQuery = `SELECT id FROM sdk_sessions WHERE content_session_id = ?`
	if err := s.QueryRowContext(ctx, selectQuery, contentSessionID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetSessionByID retrieves a session by its database id.
func (s *Store) GetSessionByID(ctx context.Context, id int64) (*models.SDKSession, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + sessionColumns + ` FROM sdk_sessions WHERE id = ?`
	return scanSessionRow(s.QueryRowContext(ctx, query, id))
}

// FindSDKSession retrieves a session by its content session id.
func (s *Store) FindSDKSession(ctx context.Context, contentSessionID string) (*models.SDKSession, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + sessionColumns + ` FROM sdk_sessions WHERE content_session_id = ?`
	return scanSessionRow(s.QueryRowContext(ctx, query, contentSessionID))
}

// UpdateMemorySessionID attaches a memory session id to a session.
func (s *Store) UpdateMemorySessionID(ctx context.Context, id int64, memorySessionID string) error {
	if err := s.lifecycle.Check(); err != nil {
		return err
	}
	if memorySessionID == "" {
		return db.InvalidArgument("memory session id is required")
	}
	const query = `UPDATE sdk_sessions SET memory_session_id = ? WHERE id = ?`
	if _, err := s.ExecContext(ctx, query, memorySessionID, id); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("memory session id %q already attached: %w", memorySessionID, db.ErrConflict)
		}
		return err
	}
	return nil
}

// CompleteSession moves an active session to a terminal status.
func (s *Store) CompleteSession(ctx context.Context, id int64, status models.SessionStatus, opts ...db.WriteOption) error {
	if err := s.lifecycle.Check(); err != nil {
		return err
	}
	if !db.ValidSessionTransition(status) {
		return fmt.Errorf("session %d to %q: %w", id, status, db.ErrInvalidTransition)
	}
	completedAt, epoch := models.Timestamp(db.WriteTime(opts...))

	const query = `
		UPDATE sdk_sessions
		SET status = ?, completed_at = ?, completed_at_epoch = ?
		WHERE id = ? AND status = 'active'
	`
	result, err := s.ExecContext(ctx, query, string(status), completedAt, epoch, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d is not active: %w", id, db.ErrInvalidTransition)
	}
	return nil
}

// GetRecentSessions returns the most recently started sessions of a project.
func (s *Store) GetRecentSessions(ctx context.Context, project string, limit int) ([]*models.SDKSession, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + sessionColumns + `
		FROM sdk_sessions
		WHERE project = ?
		ORDER BY started_at_epoch DESC, id DESC
		LIMIT ?`
	rows, err := s.QueryContext(ctx, query, project, db.NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.SDKSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// GetAllProjects returns the distinct non-empty project names, sorted.
func (s *Store) GetAllProjects(ctx context.Context) ([]string, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	const query = `
		SELECT DISTINCT project FROM sdk_sessions
		WHERE project != ''
		ORDER BY project
	`
	rows, err := s.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var project string
		if err := rows.Scan(&project); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func scanSession(scanner rowScanner) (*models.SDKSession, error) {
	var sess models.SDKSession
	var status string
	if err := scanner.Scan(
		&sess.ID, &sess.ContentSessionID, &sess.MemorySessionID, &sess.Project, &sess.UserPrompt, &status,
		&sess.StartedAt, &sess.StartedAtEpoch, &sess.CompletedAt, &sess.CompletedAtEpoch,
	); err != nil {
		return nil, err
	}
	sess.Status = models.SessionStatus(status)
	return &sess, nil
}

// scanSessionRow maps sql.ErrNoRows to a nil session.
func scanSessionRow(scanner rowScanner) (*models.SDKSession, error) {
	sess, err := scanSession(scanner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}
