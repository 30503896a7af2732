package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

const summaryColumns = `id, memory_session_id, project, request, investigated, learned,
	completed, next_steps, notes, files_read, files_edited, prompt_number,
	discovery_tokens, created_at, created_at_epoch`

// StoreSummary stores a session summary and returns its id and epoch.
func (s *Store) StoreSummary(ctx context.Context, memorySessionID, project string, parsed *models.ParsedSummary, promptNumber int, discoveryTokens int64, opts ...db.WriteOption) (int64, int64, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, 0, err
	}
	if parsed == nil {
		return 0, 0, db.InvalidArgument("summary is nil")
	}
	summary := models.NewSessionSummary(memorySessionID, project, parsed, promptNumber, discoveryTokens, db.WriteTime(opts...))

	id, err := insertSummary(ctx, s.db, summary)
	if err != nil {
		return 0, 0, err
	}
	log.Debug().Int64("id", id).Str("project", project).Msg("Stored summary")
	return id, summary.CreatedAtEpoch, nil
}

func insertSummary(ctx context.Context, q querier, summary *models.SessionSummary) (int64, error) {
	const query = `
		INSERT INTO session_summaries
		(memory_session_id, project, request, investigated, learned, completed,
		 next_steps, notes, files_read, files_edited, prompt_number, discovery_tokens,
		 created_at, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		summary.MemorySessionID, summary.Project, summary.Request, summary.Investigated, summary.Learned, summary.Completed,
		summary.NextSteps, summary.Notes, summary.FilesRead, summary.FilesEdited, summary.PromptNumber, summary.DiscoveryTokens,
		summary.CreatedAt, summary.CreatedAtEpoch,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetSummaryForSession returns the most recent summary of a memory session.
func (s *Store) GetSummaryForSession(ctx context.Context, memorySessionID string) (*models.SessionSummary, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + summaryColumns + `
		FROM session_summaries
		WHERE memory_session_id = ?
		ORDER BY created_at_epoch DESC, id DESC
		LIMIT 1`
	summary, err := scanSummary(s.QueryRowContext(ctx, query, memorySessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return summary, err
}

// GetRecentSummaries returns the newest summaries of a project.
func (s *Store) GetRecentSummaries(ctx context.Context, project string, limit int) ([]*models.SessionSummary, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + summaryColumns + `
		FROM session_summaries
		WHERE project = ?
		ORDER BY created_at_epoch DESC, id DESC
		LIMIT ?`
	rows, err := s.QueryContext(ctx, query, project, db.NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	return scanSummaryRows(rows)
}

// GetAllRecentSummaries returns the newest summaries across all projects.
func (s *Store) GetAllRecentSummaries(ctx context.Context, limit int) ([]*models.SessionSummary, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + summaryColumns + `
		FROM session_summaries
		ORDER BY created_at_epoch DESC, id DESC
		LIMIT ?`
	rows, err := s.QueryContext(ctx, query, db.NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	return scanSummaryRows(rows)
}

func scanSummary(scanner rowScanner) (*models.SessionSummary, error) {
	var summary models.SessionSummary
	if err := scanner.Scan(
		&summary.ID, &summary.MemorySessionID, &summary.Project, &summary.Request, &summary.Investigated, &summary.Learned,
		&summary.Completed, &summary.NextSteps, &summary.Notes, &summary.FilesRead, &summary.FilesEdited, &summary.PromptNumber,
		&summary.DiscoveryTokens, &summary.CreatedAt, &summary.CreatedAtEpoch,
	); err != nil {
		return nil, err
	}
	return &summary, nil
}

func scanSummaryRows(rows *sql.Rows) ([]*models.SessionSummary, error) {
	defer rows.Close()

	var summaries []*models.SessionSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
