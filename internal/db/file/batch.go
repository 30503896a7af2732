package file

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

// StoreObservationsAndSummary stores observations and an optional summary as
// one unit. Files have no transactions: a failure part-way through, including
// a failed index flush, removes every file already written and restores the
// id counters.
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
	err := s.mutate(ctx, func(m *mutation) error {
		for i, parsed := range observations {
			if err := db.ValidateObservation(parsed); err != nil {
				return fmt.Errorf("observation %d: %w", i, err)
			}
			obs := models.NewObservation(memorySessionID, project, parsed, promptNumber, discoveryTokens, at)
			id := m.idx.next(observationsDir)
			if err := m.write(s.path(observationsDir, idFile(id)), newObservationRecord(id, obs)); err != nil {
				return fmt.Errorf("observation %d: %w", i, err)
			}
			result.ObservationIDs = append(result.ObservationIDs, id)
		}

		if summary != nil {
			sum := models.NewSessionSummary(memorySessionID, project, summary, promptNumber, discoveryTokens, at)
			id := m.idx.next(summariesDir)
			if err := m.write(s.path(summariesDir, idFile(id)), newSummaryRecord(id, sum)); err != nil {
				return fmt.Errorf("summary: %w", err)
			}
			result.SummaryID = id
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
