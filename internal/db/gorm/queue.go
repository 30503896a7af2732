package gorm

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

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

	row := &PendingMessage{
		SessionDBID:          msg.SessionDBID,
		ContentSessionID:     msg.ContentSessionID,
		MessageType:          string(msg.MessageType),
		ToolName:             msg.ToolName,
		ToolInput:            msg.ToolInput,
		ToolResponse:         msg.ToolResponse,
		Cwd:                  msg.Cwd,
		LastUserMessage:      msg.LastUserMessage,
		LastAssistantMessage: msg.LastAssistantMessage,
		PromptNumber:         msg.PromptNumber,
		Status:               string(models.PendingStatusPending),
		CreatedAtEpoch:       db.WriteTime(opts...).UnixMilli(),
	}
	if err := s.DB.WithContext(ctx).Create(row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

// GetPendingMessages lists a session's pending messages oldest first.
func (s *Store) GetPendingMessages(ctx context.Context, sessionDBID int64) ([]*models.PendingMessage, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	var rows []PendingMessage
	err := s.DB.WithContext(ctx).
		Where("session_db_id = ? AND status = ?", sessionDBID, string(models.PendingStatusPending)).
		Order(orderByDate(true)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	messages := make([]*models.PendingMessage, len(rows))
	for i := range rows {
		messages[i] = toModelPending(&rows[i])
	}
	return messages, nil
}

// ClaimNextPendingMessage moves the oldest pending message of a session to
// processing. SELECT ... FOR UPDATE SKIP LOCKED hands concurrent claimants
// distinct rows instead of making them wait on the same one.
func (s *Store) ClaimNextPendingMessage(ctx context.Context, sessionDBID int64, opts ...db.WriteOption) (*models.PendingMessage, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	epoch := db.WriteTime(opts...).UnixMilli()

	var claimed *models.PendingMessage
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row PendingMessage
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("session_db_id = ? AND status = ?", sessionDBID, string(models.PendingStatusPending)).
			Order(orderByDate(true)).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		err = tx.Model(&PendingMessage{}).
			Where("id = ?", row.ID).
			Updates(map[string]interface{}{
				"status":                      string(models.PendingStatusProcessing),
				"started_processing_at_epoch": epoch,
			}).Error
		if err != nil {
			return err
		}

		row.Status = string(models.PendingStatusProcessing)
		row.StartedProcessingAtEpoch.Int64 = epoch
		row.StartedProcessingAtEpoch.Valid = true
		claimed = toModelPending(&row)
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
	if err := s.lifecycle.Check(); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Where("id = ?", id).Delete(&PendingMessage{}).Error
}

// FailPendingMessage marks a message failed and increments its retry count.
func (s *Store) FailPendingMessage(ctx context.Context, id int64, opts ...db.WriteOption) error {
	if err := s.lifecycle.Check(); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).
		Model(&PendingMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          string(models.PendingStatusFailed),
			"failed_at_epoch": db.WriteTime(opts...).UnixMilli(),
			"retry_count":     gorm.Expr("retry_count + 1"),
		}).Error
}
