package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

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

	row := &UserPrompt{
		ContentSessionID: contentSessionID,
		PromptNumber:     promptNumber,
		PromptText:       promptText,
		CreatedAt:        createdAt,
		CreatedAtEpoch:   epoch,
	}
	if err := s.DB.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("prompt %d of session %q: %w", promptNumber, contentSessionID, db.ErrConflict)
		}
		return 0, err
	}
	return row.ID, nil
}

// GetUserPrompt retrieves a prompt by session and number.
func (s *Store) GetUserPrompt(ctx context.Context, contentSessionID string, promptNumber int) (*models.UserPrompt, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	return s.takePrompt(s.DB.WithContext(ctx).
		Where("content_session_id = ? AND prompt_number = ?", contentSessionID, promptNumber))
}

// GetLatestUserPrompt retrieves the highest-numbered prompt of a session.
func (s *Store) GetLatestUserPrompt(ctx context.Context, contentSessionID string) (*models.UserPrompt, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	return s.takePrompt(s.DB.WithContext(ctx).
		Where("content_session_id = ?", contentSessionID).
		Order("prompt_number DESC"))
}

func (s *Store) takePrompt(query *gorm.DB) (*models.UserPrompt, error) {
	var row UserPrompt
	err := query.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelPrompt(&row), nil
}

// GetPromptCount returns the number of prompts saved for a session.
func (s *Store) GetPromptCount(ctx context.Context, contentSessionID string) (int, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, err
	}
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&UserPrompt{}).
		Where("content_session_id = ?", contentSessionID).
		Count(&count).Error
	return int(count), err
}

// GetAllRecentUserPrompts returns the newest prompts across all sessions,
// joined with the owning session's project and memory session id.
func (s *Store) GetAllRecentUserPrompts(ctx context.Context, limit int) ([]*models.UserPromptWithSession, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	var rows []promptRow
	err := s.DB.WithContext(ctx).
		Table("user_prompts AS p").
		Select(`p.id, p.content_session_id, p.prompt_number, p.prompt_text, p.created_at, p.created_at_epoch,
			COALESCE(s.project, '') AS project, COALESCE(s.memory_session_id, '') AS memory_session_id`).
		Joins("LEFT JOIN sdk_sessions s ON s.content_session_id = p.content_session_id").
		Order("p.created_at_epoch DESC, p.id DESC").
		Limit(db.NormalizeLimit(limit)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	prompts := make([]*models.UserPromptWithSession, len(rows))
	for i, row := range rows {
		prompts[i] = &models.UserPromptWithSession{
			Project:         row.Project,
			MemorySessionID: row.MemorySessionID,
			UserPrompt: models.UserPrompt{
				ID:               row.ID,
				ContentSessionID: row.ContentSessionID,
				PromptNumber:     row.PromptNumber,
				PromptText:       row.PromptText,
				CreatedAt:        row.CreatedAt,
				CreatedAtEpoch:   row.CreatedAtEpoch,
			},
		}
	}
	return prompts, nil
}
