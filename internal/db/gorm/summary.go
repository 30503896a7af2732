package gorm

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

// StoreSummary stores a session summary and returns its id and epoch.
func (s *Store) StoreSummary(ctx context.Context, memorySessionID, project string, parsed *models.ParsedSummary, promptNumber int, discoveryTokens int64, opts ...db.WriteOption) (int64, int64, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, 0, err
	}
	if parsed == nil {
		return 0, 0, db.InvalidArgument("summary is nil")
	}
	summary := models.NewSessionSummary(memorySessionID, project, parsed, promptNumber, discoveryTokens, db.WriteTime(opts...))

	row := toDBSummary(summary)
	if err := s.DB.WithContext(ctx).Create(row).Error; err != nil {
		return 0, 0, err
	}
	log.Debug().Int64("id", row.ID).Str("project", project).Msg("Stored summary")
	return row.ID, row.CreatedAtEpoch, nil
}

// GetSummaryForSession returns the most recent summary of a memory session.
func (s *Store) GetSummaryForSession(ctx context.Context, memorySessionID string) (*models.SessionSummary, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	var row SessionSummary
	err := s.DB.WithContext(ctx).
		Where("memory_session_id = ?", memorySessionID).
		Order(orderByDate(false)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelSummary(&row), nil
}

// GetRecentSummaries returns the newest summaries of a project.
func (s *Store) GetRecentSummaries(ctx context.Context, project string, limit int) ([]*models.SessionSummary, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	var rows []SessionSummary
	err := s.DB.WithContext(ctx).
		Where("project = ?", project).
		Order(orderByDate(false)).
		Limit(db.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelSummaries(rows), nil
}

// GetAllRecentSummaries returns the newest summaries across all projects.
func (s *Store) GetAllRecentSummaries(ctx context.Context, limit int) ([]*models.SessionSummary, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	var rows []SessionSummary
	err := s.DB.WithContext(ctx).
		Order(orderByDate(false)).
		Limit(db.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelSummaries(rows), nil
}
