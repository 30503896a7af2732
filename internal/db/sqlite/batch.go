package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result := &db.BatchResult{
		ObservationIDs: make([]int64, 0, len(observations)),
		CreatedAtEpoch: epoch,
	}
	for i, parsed := range observations {
		if err := db.ValidateObservation(parsed); err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
		obs := models.NewObservation(memorySessionID, project, parsed, promptNumber, discoveryTokens, at)
		id, err := insertObservation(ctx, tx, obs)
		if err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
		result.ObservationIDs = append(result.ObservationIDs, id)
	}

	if summary != nil {
		sum := models.NewSessionSummary(memorySessionID, project, summary, promptNumber, discoveryTokens, at)
		id, err := insertSummary(ctx, tx, sum)
		if err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
		result.SummaryID = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	log.Debug().
		Int("observations", len(result.ObservationIDs)).
		Int64("summary", result.SummaryID).
		Str("project", project).
		Msg("Stored batch")
	return result, nil
}
