package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

const promptColumns = `id, content_session_id, prompt_number, prompt_text, created_at, created_at_epoch`

// SaveUserPrompt stores a raw user prompt.
func (s *Store) SaveUserPrompt(ctx context.Context, contentSessionID string, promptNumber int, promptText string, opts ...db.WriteOption) (int64, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, err
	}
	if err := db.RequireContentSessionID(contentSessionID); err != nil {
		return 0, err
	}
	if err := db.RequirePromptNumber(promptNumber); err != nil {
		return 0, err
	}
	createdAt, epoch := models.Timestamp(db.WriteTime(opts...))

	const query = `
		INSERT INTO user_prompts
		(content_session_id, prompt_number, prompt_text, created_at, created_at_epoch)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.ExecContext(ctx, query, contentSessionID, promptNumber, promptText, createdAt, epoch)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("prompt %d of session %q: %w", promptNumber, contentSessionID, db.ErrConflict)
		}
		return 0, err
	}
	return result.LastInsertId()
}

// GetUserPrompt retrieves a prompt by session and number.
func (s *Store) GetUserPrompt(ctx context.Context, contentSessionID string, promptNumber int) (*models.UserPrompt, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + promptColumns + `
		FROM user_prompts
		WHERE content_session_id = ? AND prompt_number = ?`
	return scanPromptRow(s.QueryRowContext(ctx, query, contentSessionID, promptNumber))
}

// GetLatestUserPrompt retrieves the highest-numbered prompt of a session.
func (s *Store) GetLatestUserPrompt(ctx context.Context, contentSessionID string) (*models.UserPrompt, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + promptColumns + `
		FROM user_prompts
		WHERE content_session_id = ?
		ORDER BY prompt_number DESC
		LIMIT 1`
	return scanPromptRow(s.QueryRowContext(ctx, query, contentSessionID))
}

// GetPromptCount returns the number of prompts saved for a session.
func (s *Store) GetPromptCount(ctx context.Context, contentSessionID string) (int, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, err
	}
	const query = `SELECT COUNT(*) FROM user_prompts WHERE content_session_id = ?`
	var count int
	if err := s.QueryRowContext(ctx, query, contentSessionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetAllRecentUserPrompts returns the newest prompts across all sessions,
// joined with the owning session's project and memory session id.
func (s *Store) GetAllRecentUserPrompts(ctx context.Context, limit int) ([]*models.UserPromptWithSession, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	const query = `
		SELECT p.id, p.content_session_id, p.prompt_number, p.prompt_text, p.created_at, p.created_at_epoch,
		       COALESCE(s.project, ''), COALESCE(s.memory_session_id, '')
		FROM user_prompts p
		LEFT JOIN sdk_sessions s ON s.content_session_id = p.content_session_id
		ORDER BY p.created_at_epoch DESC, p.id DESC
		LIMIT ?
	`
	rows, err := s.QueryContext(ctx, query, db.NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []*models.UserPromptWithSession
	for rows.Next() {
		var p models.UserPromptWithSession
		if err := rows.Scan(
			&p.ID, &p.ContentSessionID, &p.PromptNumber, &p.PromptText, &p.CreatedAt, &p.CreatedAtEpoch,
			&p.Project, &p.MemorySessionID,
		); err != nil {
			return nil, err
		}
		prompts = append(prompts, &p)
	}
	return prompts, rows.Err()
}

func scanPromptRow(scanner rowScanner) (*models.UserPrompt, error) {
	var p models.UserPrompt
	err := scanner.Scan(&p.ID, &p.ContentSessionID, &p.PromptNumber, &p.PromptText, &p.CreatedAt, &p.CreatedAtEpoch)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
