package file

import (
	"context"
	"fmt"
	"sort"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

// CreateSDKSession creates a session or returns the id of the existing one.
// The existence check and the write happen under the store's write lock.
func (s *Store) CreateSDKSession(ctx context.Context, contentSessionID, project, userPrompt string, opts ...db.WriteOption) (int64, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, err
	}
	if err := db.RequireContentSessionID(contentSessionID); err != nil {
		return 0, err
	}
	startedAt, epoch := models.Timestamp(db.WriteTime(opts...))

	var id int64
	err := s.mutate(ctx, func(m *mutation) error {
		path := s.path(sessionsDir, keyFile(contentSessionID))
		var existing sessionRecord
		found, err := readJSON(path, &existing)
		if err != nil {
			return err
		}
		if found {
			id = existing.ID
			return nil
		}

		rec := &sessionRecord{
			ID:               m.idx.next(sessionsDir),
			ContentSessionID: contentSessionID,
			Project:          project,
			UserPrompt:       userPrompt,
			Status:           string(models.SessionStatusActive),
			StartedAt:        startedAt,
			StartedAtEpoch:   epoch,
		}
		if err := m.write(path, rec); err != nil {
			return err
		}
		m.idx.addProject(project)
		id = rec.ID
		return nil
	})
	return id, err
}

// GetSessionByID retrieves a session by its numeric id.
func (s *Store) GetSessionByID(ctx context.Context, id int64) (*models.SDKSession, error) {
	var sess *models.SDKSession
	err := s.view(ctx, func() error {
		rec, err := s.sessionByID(id)
		if rec != nil {
			sess = rec.toModel()
		}
		return err
	})
	return sess, err
}

// FindSDKSession retrieves a session by its content session id.
func (s *Store) FindSDKSession(ctx context.Context, contentSessionID string) (*models.SDKSession, error) {
	var sess *models.SDKSession
	err := s.view(ctx, func() error {
		var rec sessionRecord
		found, err := readJSON(s.path(sessionsDir, keyFile(contentSessionID)), &rec)
		if found {
			sess = rec.toModel()
		}
		return err
	})
	return sess, err
}

// sessionByID scans the sessions directory. Callers hold the lock.
func (s *Store) sessionByID(id int64) (*sessionRecord, error) {
	sessions, err := listRecords[sessionRecord](s.path(sessionsDir))
	if err != nil {
		return nil, err
	}
	for _, rec := range sessions {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, nil
}

// UpdateMemorySessionID attaches a memory session id to a session.
func (s *Store) UpdateMemorySessionID(ctx context.Context, id int64, memorySessionID string) error {
	if err := s.lifecycle.Check(); err != nil {
		return err
	}
	if memorySessionID == "" {
		return db.InvalidArgument("memory session id is required")
	}
	return s.mutate(ctx, func(m *mutation) error {
		sessions, err := listRecords[sessionRecord](s.path(sessionsDir))
		if err != nil {
			return err
		}
		var target *sessionRecord
		for _, rec := range sessions {
			if rec.ID == id {
				target = rec
				break
			}
		}
		if target == nil {
			return nil
		}
		for _, rec := range sessions {
			if rec.ID != id && rec.MemorySessionID == memorySessionID {
				return fmt.Errorf("memory session id %q already attached: %w", memorySessionID, db.ErrConflict)
			}
		}
		target.MemorySessionID = memorySessionID
		return m.write(s.path(sessionsDir, keyFile(target.ContentSessionID)), target)
	})
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

	return s.mutate(ctx, func(m *mutation) error {
		rec, err := s.sessionByID(id)
		if err != nil {
			return err
		}
		if rec == nil || rec.Status != string(models.SessionStatusActive) {
			return fmt.Errorf("session %d is not active: %w", id, db.ErrInvalidTransition)
		}
		rec.Status = string(status)
		rec.CompletedAt = completedAt
		rec.CompletedAtEpoch = epoch
		return m.write(s.path(sessionsDir, keyFile(rec.ContentSessionID)), rec)
	})
}

// GetRecentSessions returns the most recently started sessions of a project.
func (s *Store) GetRecentSessions(ctx context.Context, project string, limit int) ([]*models.SDKSession, error) {
	var sessions []*models.SDKSession
	err := s.view(ctx, func() error {
		records, err := listRecords[sessionRecord](s.path(sessionsDir))
		if err != nil {
			return err
		}
		matched := make([]*sessionRecord, 0, len(records))
		for _, rec := range records {
			if rec.Project == project {
				matched = append(matched, rec)
			}
		}
		sort.Slice(matched, func(i, j int) bool {
			return newerFirst(matched[i].StartedAtEpoch, matched[i].ID, matched[j].StartedAtEpoch, matched[j].ID)
		})
		for _, rec := range truncate(matched, db.NormalizeLimit(limit)) {
			sessions = append(sessions, rec.toModel())
		}
		return nil
	})
	return sessions, err
}

// GetAllProjects returns the distinct non-empty project names, sorted.
func (s *Store) GetAllProjects(ctx context.Context) ([]string, error) {
	var projects []string
	err := s.view(ctx, func() error {
		projects = append(projects, s.index.Projects...)
		return nil
	})
	return projects, err
}
