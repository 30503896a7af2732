package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

// SaveUserPrompt stores a raw user prompt.
func (s *Store) SaveUserPrompt(ctx context.Context, contentSessionID string, promptNumber int, promptText string, opts ...db.WriteOption) (int64, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, err
	}
	if err := db.RequireContentSessionID(contentSessionID); err != nil {
		return 0, err
	}
	if err := db.RequirePromptNumber(promptNumber); err != nil {
		return 0, err
	}
	createdAt, epoch := models.Timestamp(db.WriteTime(opts...))

	var id int64
	err := s.mutate(ctx, func(m *mutation) error {
		dir := s.path(promptsDir, escapeKey(contentSessionID))
		path := filepath.Join(dir, idFile(int64(promptNumber)))
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("prompt %d of session %q: %w", promptNumber, contentSessionID, db.ErrConflict)
		}
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}

		rec := &promptRecord{
			ID:               m.idx.next(promptsDir),
			ContentSessionID: contentSessionID,
			PromptNumber:     promptNumber,
			PromptText:       promptText,
			CreatedAt:        createdAt,
			CreatedAtEpoch:   epoch,
		}
		if err := m.write(path, rec); err != nil {
			return err
		}
		id = rec.ID
		return nil
	})
	return id, err
}

// GetUserPrompt retrieves a prompt by session and number.
func (s *Store) GetUserPrompt(ctx context.Context, contentSessionID string, promptNumber int) (*models.UserPrompt, error) {
	var prompt *models.UserPrompt
	err := s.view(ctx, func() error {
		var rec promptRecord
		path := s.path(promptsDir, escapeKey(contentSessionID), idFile(int64(promptNumber)))
		found, err := readJSON(path, &rec)
		if found {
			prompt = rec.toModel()
		}
		return err
	})
	return prompt, err
}

// GetLatestUserPrompt retrieves the highest-numbered prompt of a session.
func (s *Store) GetLatestUserPrompt(ctx context.Context, contentSessionID string) (*models.UserPrompt, error) {
	var prompt *models.UserPrompt
	err := s.view(ctx, func() error {
		records, err := listRecords[promptRecord](s.path(promptsDir, escapeKey(contentSessionID)))
		if err != nil {
			return err
		}
		var latest *promptRecord
		for _, rec := range records {
			if latest == nil || rec.PromptNumber > latest.PromptNumber {
				latest = rec
			}
		}
		if latest != nil {
			prompt = latest.toModel()
		}
		return nil
	})
	return prompt, err
}

// GetPromptCount returns the number of prompts saved for a session.
func (s *Store) GetPromptCount(ctx context.Context, contentSessionID string) (int, error) {
	var count int
	err := s.view(ctx, func() error {
		records, err := listRecords[promptRecord](s.path(promptsDir, escapeKey(contentSessionID)))
		count = len(records)
		return err
	})
	return count, err
}

// GetAllRecentUserPrompts returns the newest prompts across all sessions,
// joined with the owning session's project and memory session id.
func (s *Store) GetAllRecentUserPrompts(ctx context.Context, limit int) ([]*models.UserPromptWithSession, error) {
	var prompts []*models.UserPromptWithSession
	err := s.view(ctx, func() error {
		records, err := s.allPrompts()
		if err != nil {
			return err
		}
		sort.Slice(records, func(i, j int) bool {
			return newerFirst(records[i].CreatedAtEpoch, records[i].ID, records[j].CreatedAtEpoch, records[j].ID)
		})

		sessions := make(map[string]*sessionRecord)
		for _, rec := range truncate(records, db.NormalizeLimit(limit)) {
			sess, ok := sessions[rec.ContentSessionID]
			if !ok {
				sess = &sessionRecord{}
				found, err := readJSON(s.path(sessionsDir, keyFile(rec.ContentSessionID)), sess)
				if err != nil {
					return err
				}
				if !found {
					sess = nil
				}
				sessions[rec.ContentSessionID] = sess
			}

			p := &models.UserPromptWithSession{UserPrompt: *rec.toModel()}
			if sess != nil {
				p.Project = sess.Project
				p.MemorySessionID = sess.MemorySessionID
			}
			prompts = append(prompts, p)
		}
		return nil
	})
	return prompts, err
}

// allPrompts reads every prompt of every session.
func (s *Store) allPrompts() ([]*promptRecord, error) {
	entries, err := os.ReadDir(s.path(promptsDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	var all []*promptRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		records, err := listRecords[promptRecord](s.path(promptsDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}
