package gorm

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

// StoreObservation stores a new observation and returns its id and epoch.
func (s *Store) StoreObservation(ctx context.Context, memorySessionID, project string, parsed *models.ParsedObservation, promptNumber int, discoveryTokens int64, opts ...db.WriteOption) (int64, int64, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, 0, err
	}
	if err := db.ValidateObservation(parsed); err != nil {
		return 0, 0, err
	}
	obs := models.NewObservation(memorySessionID, project, parsed, promptNumber, discoveryTokens, db.WriteTime(opts...))

	row := toDBObservation(obs)
	if err := s.DB.WithContext(ctx).Create(row).Error; err != nil {
		return 0, 0, err
	}
	log.Debug().Int64("id", row.ID).Str("type", string(row.Type)).Str("project", project).Msg("Stored observation")
	return row.ID, row.CreatedAtEpoch, nil
}

// GetObservationByID retrieves an observation by id.
func (s *Store) GetObservationByID(ctx context.Context, id int64) (*models.Observation, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	var row Observation
	err := s.DB.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelObservation(&row), nil
}

// GetObservationsByIDs retrieves observations by id with optional filters.
func (s *Store) GetObservationsByIDs(ctx context.Context, ids []int64, q db.ObservationQuery) ([]*models.Observation, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := s.DB.WithContext(ctx).Where("id IN ?", ids)
	if q.Project != "" {
		query = query.Where("project = ?", q.Project)
	}
	if q.Type != "" {
		query = query.Where("type = ?", q.Type)
	}
	query = query.Order(orderByDate(q.Ascending()))
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []Observation
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toModelObservations(rows), nil
}

// GetObservationsForSession returns a memory session's observations oldest first.
func (s *Store) GetObservationsForSession(ctx context.Context, memorySessionID string) ([]*models.Observation, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	var rows []Observation
	err := s.DB.WithContext(ctx).
		Where("memory_session_id = ?", memorySessionID).
		Order(orderByDate(true)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelObservations(rows), nil
}

// GetRecentObservations returns the newest observations of a project.
func (s *Store) GetRecentObservations(ctx context.Context, project string, limit int) ([]*models.Observation, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	var rows []Observation
	err := s.DB.WithContext(ctx).
		Where("project = ?", project).
		Order(orderByDate(false)).
		Limit(db.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelObservations(rows), nil
}

// GetAllRecentObservations returns the newest observations across all projects.
func (s *Store) GetAllRecentObservations(ctx context.Context, limit int) ([]*models.Observation, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	var rows []Observation
	err := s.DB.WithContext(ctx).
		Order(orderByDate(false)).
		Limit(db.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelObservations(rows), nil
}

// GetFilesForSession returns every file a memory session read or modified.
func (s *Store) GetFilesForSession(ctx context.Context, memorySessionID string) ([]string, error) {
	observations, err := s.GetObservationsForSession(ctx, memorySessionID)
	if err != nil {
		return nil, err
	}
	return db.MergeSessionFiles(observations), nil
}
