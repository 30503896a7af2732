package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

const observationColumns = `id, memory_session_id, project, type, title, subtitle, narrative,
	facts, concepts, files_read, files_modified, prompt_number, discovery_tokens,
	created_at, created_at_epoch`

// StoreObservation stores a new observation and returns its id and epoch.
func (s *Store) StoreObservation(ctx context.Context, memorySessionID, project string, parsed *models.ParsedObservation, promptNumber int, discoveryTokens int64, opts ...db.WriteOption) (int64, int64, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, 0, err
	}
	if err := db.ValidateObservation(parsed); err != nil {
		return 0, 0, err
	}
	obs := models.NewObservation(memorySessionID, project, parsed, promptNumber, discoveryTokens, db.WriteTime(opts...))

	id, err := insertObservation(ctx, s.db, obs)
	if err != nil {
		return 0, 0, err
	}
	log.Debug().Int64("id", id).Str("type", string(obs.Type)).Str("project", project).Msg("Stored observation")
	return id, obs.CreatedAtEpoch, nil
}

func insertObservation(ctx context.Context, q querier, obs *models.Observation) (int64, error) {
	const query = `
		INSERT INTO observations
		(memory_session_id, project, type, title, subtitle, narrative,
		 facts, concepts, files_read, files_modified, prompt_number, discovery_tokens,
		 created_at, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		obs.MemorySessionID, obs.Project, string(obs.Type), obs.Title, obs.Subtitle, obs.Narrative,
		obs.Facts, obs.Concepts, obs.FilesRead, obs.FilesModified, obs.PromptNumber, obs.DiscoveryTokens,
		obs.CreatedAt, obs.CreatedAtEpoch,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetObservationByID retrieves an observation by id.
func (s *Store) GetObservationByID(ctx context.Context, id int64) (*models.Observation, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + observationColumns + ` FROM observations WHERE id = ?`
	obs, err := scanObservation(s.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return obs, err
}

// GetObservationsByIDs retrieves observations by id with optional filters.
// Ids that do not exist are skipped.
func (s *Store) GetObservationsByIDs(ctx context.Context, ids []int64, q db.ObservationQuery) ([]*models.Observation, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + observationColumns + ` FROM observations WHERE id IN (`)
	b.WriteString(placeholders(len(ids)))
	b.WriteString(`)`)
	args := int64Args(ids)

	if q.Project != "" {
		b.WriteString(` AND project = ?`)
		args = append(args, q.Project)
	}
	if q.Type != "" {
		b.WriteString(` AND type = ?`)
		args = append(args, q.Type)
	}
	if q.Ascending() {
		b.WriteString(` ORDER BY created_at_epoch ASC, id ASC`)
	} else {
		b.WriteString(` ORDER BY created_at_epoch DESC, id DESC`)
	}
	if q.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	// Variable-arity queries bypass the statement cache.
	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	return scanObservationRows(rows)
}

// GetObservationsForSession returns a memory session's observations oldest first.
func (s *Store) GetObservationsForSession(ctx context.Context, memorySessionID string) ([]*models.Observation, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + observationColumns + `
		FROM observations
		WHERE memory_session_id = ?
		ORDER BY created_at_epoch ASC, id ASC`
	rows, err := s.QueryContext(ctx, query, memorySessionID)
	if err != nil {
		return nil, err
	}
	return scanObservationRows(rows)
}

// GetRecentObservations returns the newest observations of a project.
func (s *Store) GetRecentObservations(ctx context.Context, project string, limit int) ([]*models.Observation, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + observationColumns + `
		FROM observations
		WHERE project = ?
		ORDER BY created_at_epoch DESC, id DESC
		LIMIT ?`
	rows, err := s.QueryContext(ctx, query, project, db.NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	return scanObservationRows(rows)
}

// GetAllRecentObservations returns the newest observations across all projects.
func (s *Store) GetAllRecentObservations(ctx context.Context, limit int) ([]*models.Observation, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + observationColumns + `
		FROM observations
		ORDER BY created_at_epoch DESC, id DESC
		LIMIT ?`
	rows, err := s.QueryContext(ctx, query, db.NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	return scanObservationRows(rows)
}

// GetFilesForSession returns every file a memory session read or modified.
func (s *Store) GetFilesForSession(ctx context.Context, memorySessionID string) ([]string, error) {
	observations, err := s.GetObservationsForSession(ctx, memorySessionID)
	if err != nil {
		return nil, err
	}
	return db.MergeSessionFiles(observations), nil
}

func scanObservation(scanner rowScanner) (*models.Observation, error) {
	var obs models.Observation
	var obsType string
	if err := scanner.Scan(
		&obs.ID, &obs.MemorySessionID, &obs.Project, &obsType, &obs.Title, &obs.Subtitle, &obs.Narrative,
		&obs.Facts, &obs.Concepts, &obs.FilesRead, &obs.FilesModified, &obs.PromptNumber, &obs.DiscoveryTokens,
		&obs.CreatedAt, &obs.CreatedAtEpoch,
	); err != nil {
		return nil, err
	}
	obs.Type = models.ObservationType(obsType)
	return &obs, nil
}

// scanObservationRows drains and closes rows.
func scanObservationRows(rows *sql.Rows) ([]*models.Observation, error) {
	defer rows.Close()

	var observations []*models.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}
