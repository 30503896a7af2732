package gorm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

// StoreObservationsAndSummary stores observations and an optional summary in
// one transaction. Every record carries the same timestamp.
func (s *Store) StoreObservationsAndSummary(ctx context.Context, memorySessionID, project string, observations []*models.ParsedObservation, summary *models.ParsedSummary, promptNumber int, discoveryTokens int64, opts ...db.WriteOption) (*db.BatchResult, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	at := db.WriteTime(opts...)
	_, epoch := models.Timestamp(at)

	result := &db.BatchResult{
		ObservationIDs: make([]int64, 0, len(observations)),
		CreatedAtEpoch: epoch,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, parsed := range observations {
			if err := db.ValidateObservation(parsed); err != nil {
				return fmt.Errorf("observation %d: %w", i, err)
			}
			row := toDBObservation(models.NewObservation(memorySessionID, project, parsed, promptNumber, discoveryTokens, at))
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("observation %d: %w", i, err)
			}
			result.ObservationIDs = append(result.ObservationIDs, row.ID)
		}

		if summary != nil {
			row := toDBSummary(models.NewSessionSummary(memorySessionID, project, summary, promptNumber, discoveryTokens, at))
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("summary: %w", err)
			}
			result.SummaryID = row.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("observations", len(result.ObservationIDs)).
		Int64("summary", result.SummaryID).
		Str("project", project).
		Msg("Stored batch")
	return result, nil
}
