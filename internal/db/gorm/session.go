package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

// CreateSDKSession creates a session or returns the id of the existing one.
// INSERT ... ON CONFLICT DO NOTHING keeps concurrent creators from racing.
func (s *Store) CreateSDKSession(ctx context.Context, contentSessionID, project, userPrompt string, opts ...db.WriteOption) (int64, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, err
	}
	if err := db.RequireContentSessionID(contentSessionID); err != nil {
		return 0, err
	}
	startedAt, epoch := models.Timestamp(db.WriteTime(opts...))

	row := &SDKSession{
		ContentSessionID: contentSessionID,
		Project:          project,
		UserPrompt:       nullString(userPrompt),
		Status:           string(models.SessionStatusActive),
		StartedAt:        startedAt,
		StartedAtEpoch:   epoch,
	}
	result := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "content_session_id"}},
			DoNothing: true,
		}).
		Create(row)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		return row.ID, nil
	}

	// Session exists.
	var existing SDKSession
	err := s.DB.WithContext(ctx).
		Select("id").
		Where("content_session_id = ?", contentSessionID).
		Take(&existing).Error
	if err != nil {
		return 0, err
	}
	return existing.ID, nil
}

// GetSessionByID retrieves a session by its database id.
func (s *Store) GetSessionByID(ctx context.Context, id int64) (*models.SDKSession, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	return s.findSession(ctx, "id = ?", id)
}

// FindSDKSession retrieves a session by its content session id.
func (s *Store) FindSDKSession(ctx context.Context, contentSessionID string) (*models.SDKSession, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	return s.findSession(ctx, "content_session_id = ?", contentSessionID)
}

func (s *Store) findSession(ctx context.Context, query string, arg interface{}) (*models.SDKSession, error) {
	var row SDKSession
	err := s.DB.WithContext(ctx).Where(query, arg).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelSession(&row), nil
}

// UpdateMemorySessionID attaches a memory session id to a session.
func (s *Store) UpdateMemorySessionID(ctx context.Context, id int64, memorySessionID string) error {
	if err := s.lifecycle.Check(); err != nil {
		return err
	}
	if memorySessionID == "" {
		return db.InvalidArgument("memory session id is required")
	}
	err := s.DB.WithContext(ctx).
		Model(&SDKSession{}).
		Where("id = ?", id).
		Update("memory_session_id", memorySessionID).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("memory session id %q already attached: %w", memorySessionID, db.ErrConflict)
	}
	return err
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

	result := s.DB.WithContext(ctx).
		Model(&SDKSession{}).
		Where("id = ? AND status = ?", id, string(models.SessionStatusActive)).
		Updates(map[string]interface{}{
			"status":             string(status),
			"completed_at":       completedAt,
			"completed_at_epoch": epoch,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %d is not active: %w", id, db.ErrInvalidTransition)
	}
	return nil
}

// GetRecentSessions returns the most recently started sessions of a project.
func (s *Store) GetRecentSessions(ctx context.Context, project string, limit int) ([]*models.SDKSession, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	var rows []SDKSession
	err := s.DB.WithContext(ctx).
		Where("project = ?", project).
		Order("started_at_epoch DESC, id DESC").
		Limit(db.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.SDKSession, len(rows))
	for i := range rows {
		sessions[i] = toModelSession(&rows[i])
	}
	return sessions, nil
}

// GetAllProjects returns the distinct non-empty project names, sorted.
func (s *Store) GetAllProjects(ctx context.Context) ([]string, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	var projects []string
	err := s.DB.WithContext(ctx).
		Model(&SDKSession{}).
		Distinct("project").
		Where("project <> ''").
		Order("project").
		Pluck("project", &projects).Error
	return projects, err
}
