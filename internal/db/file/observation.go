package file

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

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

	var id int64
	err := s.mutate(ctx, func(m *mutation) error {
		id = m.idx.next(observationsDir)
		return m.write(s.path(observationsDir, idFile(id)), newObservationRecord(id, obs))
	})
	if err != nil {
		return 0, 0, err
	}
	log.Debug().Int64("id", id).Str("type", string(obs.Type)).Str("project", project).Msg("Stored observation")
	return id, obs.CreatedAtEpoch, nil
}

// GetObservationByID retrieves an observation by id.
func (s *Store) GetObservationByID(ctx context.Context, id int64) (*models.Observation, error) {
	var obs *models.Observation
	err := s.view(ctx, func() error {
		var rec observationRecord
		found, err := readJSON(s.path(observationsDir, idFile(id)), &rec)
		if found {
			obs = rec.toModel()
		}
		return err
	})
	return obs, err
}

// GetObservationsByIDs retrieves observations by id with optional filters.
func (s *Store) GetObservationsByIDs(ctx context.Context, ids []int64, q db.ObservationQuery) ([]*models.Observation, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var observations []*models.Observation
	err := s.view(ctx, func() error {
		seen := make(map[int64]bool, len(ids))
		var matched []*observationRecord
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true

			var rec observationRecord
			found, err := readJSON(s.path(observationsDir, idFile(id)), &rec)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			if q.Project != "" && rec.Project != q.Project {
				continue
			}
			if q.Type != "" && rec.Type != q.Type {
				continue
			}
			matched = append(matched, &rec)
		}

		sortObservations(matched, q.Ascending())
		for _, rec := range truncate(matched, q.Limit) {
			observations = append(observations, rec.toModel())
		}
		return nil
	})
	return observations, err
}

// GetObservationsForSession returns a memory session's observations oldest first.
func (s *Store) GetObservationsForSession(ctx context.Context, memorySessionID string) ([]*models.Observation, error) {
	return s.queryObservations(ctx, func(rec *observationRecord) bool {
		return rec.MemorySessionID == memorySessionID
	}, true, 0)
}

// GetRecentObservations returns the newest observations of a project.
func (s *Store) GetRecentObservations(ctx context.Context, project string, limit int) ([]*models.Observation, error) {
	return s.queryObservations(ctx, func(rec *observationRecord) bool {
		return rec.Project == project
	}, false, db.NormalizeLimit(limit))
}

// GetAllRecentObservations returns the newest observations across all projects.
func (s *Store) GetAllRecentObservations(ctx context.Context, limit int) ([]*models.Observation, error) {
	return s.queryObservations(ctx, func(*observationRecord) bool { return true }, false, db.NormalizeLimit(limit))
}

// GetFilesForSession returns every file a memory session read or modified.
func (s *Store) GetFilesForSession(ctx context.Context, memorySessionID string) ([]string, error) {
	observations, err := s.GetObservationsForSession(ctx, memorySessionID)
	if err != nil {
		return nil, err
	}
	return db.MergeSessionFiles(observations), nil
}

func (s *Store) queryObservations(ctx context.Context, match func(*observationRecord) bool, ascending bool, limit int) ([]*models.Observation, error) {
	var observations []*models.Observation
	err := s.view(ctx, func() error {
		records, err := listRecords[observationRecord](s.path(observationsDir))
		if err != nil {
			return err
		}
		matched := make([]*observationRecord, 0, len(records))
		for _, rec := range records {
			if match(rec) {
				matched = append(matched, rec)
			}
		}
		sortObservations(matched, ascending)
		for _, rec := range truncate(matched, limit) {
			observations = append(observations, rec.toModel())
		}
		return nil
	})
	return observations, err
}

func sortObservations(records []*observationRecord, ascending bool) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if ascending {
			return olderFirst(a.CreatedAtEpoch, a.ID, b.CreatedAtEpoch, b.ID)
		}
		return newerFirst(a.CreatedAtEpoch, a.ID, b.CreatedAtEpoch, b.ID)
	})
}
