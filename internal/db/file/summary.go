package file

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

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

	var id int64
	err := s.mutate(ctx, func(m *mutation) error {
		id = m.idx.next(summariesDir)
		return m.write(s.path(summariesDir, idFile(id)), newSummaryRecord(id, summary))
	})
	if err != nil {
		return 0, 0, err
	}
	log.Debug().Int64("id", id).Str("project", project).Msg("Stored summary")
	return id, summary.CreatedAtEpoch, nil
}

// GetSummaryForSession returns the most recent summary of a memory session.
func (s *Store) GetSummaryForSession(ctx context.Context, memorySessionID string) (*models.SessionSummary, error) {
	summaries, err := s.querySummaries(ctx, func(rec *summaryRecord) bool {
		return rec.MemorySessionID == memorySessionID
	}, 1)
	if err != nil || len(summaries) == 0 {
		return nil, err
	}
	return summaries[0], nil
}

// GetRecentSummaries returns the newest summaries of a project.
func (s *Store) GetRecentSummaries(ctx context.Context, project string, limit int) ([]*models.SessionSummary, error) {
	return s.querySummaries(ctx, func(rec *summaryRecord) bool {
		return rec.Project == project
	}, db.NormalizeLimit(limit))
}

// GetAllRecentSummaries returns the newest summaries across all projects.
func (s *Store) GetAllRecentSummaries(ctx context.Context, limit int) ([]*models.SessionSummary, error) {
	return s.querySummaries(ctx, func(*summaryRecord) bool { return true }, db.NormalizeLimit(limit))
}

// querySummaries returns matching summaries newest first.
func (s *Store) querySummaries(ctx context.Context, match func(*summaryRecord) bool, limit int) ([]*models.SessionSummary, error) {
	var summaries []*models.SessionSummary
	err := s.view(ctx, func() error {
		records, err := listRecords[summaryRecord](s.path(summariesDir))
		if err != nil {
			return err
		}
		matched := make([]*summaryRecord, 0, len(records))
		for _, rec := range records {
			if match(rec) {
				matched = append(matched, rec)
			}
		}
		sort.Slice(matched, func(i, j int) bool {
			return newerFirst(matched[i].CreatedAtEpoch, matched[i].ID, matched[j].CreatedAtEpoch, matched[j].ID)
		})
		for _, rec := range truncate(matched, limit) {
			summaries = append(summaries, rec.toModel())
		}
		return nil
	})
	return summaries, err
}
