package file

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

// EnqueuePendingMessage stores msg in pending status with a zero retry count.
func (s *Store) EnqueuePendingMessage(ctx context.Context, msg *models.PendingMessage, opts ...db.WriteOption) (int64, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, err
	}
	if err := db.ValidatePendingMessage(msg); err != nil {
		return 0, err
	}
	epoch := db.WriteTime(opts...).UnixMilli()

	var id int64
	err := s.mutate(ctx, func(m *mutation) error {
		rec := &pendingRecord{
			ID:                   m.idx.next(pendingDir),
			SessionDBID:          msg.SessionDBID,
			ContentSessionID:     msg.ContentSessionID,
			MessageType:          string(msg.MessageType),
			ToolName:             ptrString(msg.ToolName),
			ToolInput:            ptrString(msg.ToolInput),
			ToolResponse:         ptrString(msg.ToolResponse),
			Cwd:                  ptrString(msg.Cwd),
			LastUserMessage:      ptrString(msg.LastUserMessage),
			LastAssistantMessage: ptrString(msg.LastAssistantMessage),
			PromptNumber:         ptrInt64(msg.PromptNumber),
			Status:               string(models.PendingStatusPending),
			CreatedAtEpoch:       epoch,
		}
		if err := m.write(s.path(pendingDir, idFile(rec.ID)), rec); err != nil {
			return err
		}
		id = rec.ID
		return nil
	})
	return id, err
}

// GetPendingMessages lists a session's pending messages oldest first.
func (s *Store) GetPendingMessages(ctx context.Context, sessionDBID int64) ([]*models.PendingMessage, error) {
	var messages []*models.PendingMessage
	err := s.view(ctx, func() error {
		records, err := s.pendingFor(sessionDBID)
		if err != nil {
			return err
		}
		for _, rec := range records {
			messages = append(messages, rec.toModel())
		}
		return nil
	})
	return messages, err
}

// pendingFor returns a session's pending records oldest first. Callers hold the lock.
func (s *Store) pendingFor(sessionDBID int64) ([]*pendingRecord, error) {
	records, err := listRecords[pendingRecord](s.path(pendingDir))
	if err != nil {
		return nil, err
	}
	matched := make([]*pendingRecord, 0, len(records))
	for _, rec := range records {
		if rec.SessionDBID == sessionDBID && rec.Status == string(models.PendingStatusPending) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return olderFirst(matched[i].CreatedAtEpoch, matched[i].ID, matched[j].CreatedAtEpoch, matched[j].ID)
	})
	return matched, nil
}

// ClaimNextPendingMessage moves the oldest pending message of a session to
// processing. The read and the write happen under the store's write lock,
// which makes claims exactly-once within this process only.
func (s *Store) ClaimNextPendingMessage(ctx context.Context, sessionDBID int64, opts ...db.WriteOption) (*models.PendingMessage, error) {
	epoch := db.WriteTime(opts...).UnixMilli()

	var claimed *models.PendingMessage
	err := s.mutate(ctx, func(m *mutation) error {
		records, err := s.pendingFor(sessionDBID)
		if err != nil || len(records) == 0 {
			return err
		}
		rec := records[0]
		rec.Status = string(models.PendingStatusProcessing)
		rec.StartedProcessingAtEpoch = epoch
		if err := m.write(s.path(pendingDir, idFile(rec.ID)), rec); err != nil {
			return err
		}
		claimed = rec.toModel()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed != nil {
		log.Debug().Int64("id", claimed.ID).Int64("session", sessionDBID).Msg("Claimed pending message")
	}
	return claimed, nil
}

// CompletePendingMessage deletes a processed message.
func (s *Store) CompletePendingMessage(ctx context.Context, id int64) error {
	return s.mutate(ctx, func(m *mutation) error {
		return m.remove(s.path(pendingDir, idFile(id)))
	})
}

// FailPendingMessage marks a message failed and increments its retry count.
func (s *Store) FailPendingMessage(ctx context.Context, id int64, opts ...db.WriteOption) error {
	epoch := db.WriteTime(opts...).UnixMilli()
	return s.mutate(ctx, func(m *mutation) error {
		path := s.path(pendingDir, idFile(id))
		var rec pendingRecord
		found, err := readJSON(path, &rec)
		if err != nil || !found {
			return err
		}
		rec.Status = string(models.PendingStatusFailed)
		rec.FailedAtEpoch = epoch
		rec.RetryCount++
		return m.write(path, &rec)
	})
}
