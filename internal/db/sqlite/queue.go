package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

const pendingColumns = `id, session_db_id, content_session_id, message_type, tool_name, tool_input,
	tool_response, cwd, last_user_message, last_assistant_message, prompt_number, status,
	retry_count, created_at_epoch, started_processing_at_epoch, completed_at_epoch, failed_at_epoch`

// EnqueuePendingMessage stores msg in pending status with a zero retry count.
func (s *Store) EnqueuePendingMessage(ctx context.Context, msg *models.PendingMessage, opts ...db.WriteOption) (int64, error) {
	if err := s.lifecycle.Check(); err != nil {
		return 0, err
	}
	if err := db.ValidatePendingMessage(msg); err != nil {
		return 0, err
	}
	epoch := db.WriteTime(opts...).UnixMilli()

	const query = `
		INSERT INTO pending_messages
		(session_db_id, content_session_id, message_type, tool_name, tool_input, tool_response,
		 cwd, last_user_message, last_assistant_message, prompt_number, status, retry_count, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', 0, ?)
	`
	result, err := s.ExecContext(ctx, query,
		msg.SessionDBID, msg.ContentSessionID, string(msg.MessageType), msg.ToolName, msg.ToolInput, msg.ToolResponse,
		msg.Cwd, msg.LastUserMessage, msg.LastAssistantMessage, msg.PromptNumber, epoch,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetPendingMessages lists a session's pending messages oldest first.
func (s *Store) GetPendingMessages(ctx context.Context, sessionDBID int64) ([]*models.PendingMessage, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	query := `SELECT ` + pendingColumns + `
		FROM pending_messages
		WHERE session_db_id = ? AND status = 'pending'
		ORDER BY created_at_epoch ASC, id ASC`
	rows, err := s.QueryContext(ctx, query, sessionDBID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.PendingMessage
	for rows.Next() {
		msg, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ClaimNextPendingMessage moves the oldest pending message of a session to
// processing in a single UPDATE ... RETURNING statement. SQLite serialises
// writers, so two claimants never see the same row as pending.
func (s *Store) ClaimNextPendingMessage(ctx context.Context, sessionDBID int64, opts ...db.WriteOption) (*models.PendingMessage, error) {
	if err := s.lifecycle.Check(); err != nil {
		return nil, err
	}
	epoch := db.WriteTime(opts...).UnixMilli()

	query := `
		UPDATE pending_messages
		SET status = 'processing', started_processing_at_epoch = ?
		WHERE id = (
			SELECT id FROM pending_messages
			WHERE session_db_id = ? AND status = 'pending'
			ORDER BY created_at_epoch ASC, id ASC
			LIMIT 1
		)
		RETURNING ` + pendingColumns
	msg, err := scanPending(s.QueryRowContext(ctx, query, epoch, sessionDBID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Debug().Int64("id", msg.ID).Int64("session", sessionDBID).Msg("Claimed pending message")
	return msg, nil
}

// CompletePendingMessage deletes a processed message.
func (s *Store) CompletePendingMessage(ctx context.Context, id int64) error {
	if err := s.lifecycle.Check(); err != nil {
		return err
	}
	const query = `DELETE FROM pending_messages WHERE id = ?`
	_, err := s.ExecContext(ctx, query, id)
	return err
}

// FailPendingMessage marks a message failed and increments its retry count.
func (s *Store) FailPendingMessage(ctx context.Context, id int64, opts ...db.WriteOption) error {
	if err := s.lifecycle.Check(); err != nil {
		return err
	}
	epoch := db.WriteTime(opts...).UnixMilli()

	const query = `
		UPDATE pending_messages
		SET status = 'failed', failed_at_epoch = ?, retry_count = retry_count + 1
		WHERE id = ?
	`
	_, err := s.ExecContext(ctx, query, epoch, id)
	return err
}

func scanPending(scanner rowScanner) (*models.PendingMessage, error) {
	var msg models.PendingMessage
	var msgType, status string
	if err := scanner.Scan(
		&msg.ID, &msg.SessionDBID, &msg.ContentSessionID, &msgType, &msg.ToolName, &msg.ToolInput,
		&msg.ToolResponse, &msg.Cwd, &msg.LastUserMessage, &msg.LastAssistantMessage, &msg.PromptNumber, &status,
		&msg.RetryCount, &msg.CreatedAtEpoch, &msg.StartedProcessingAtEpoch, &msg.CompletedAtEpoch, &msg.FailedAtEpoch,
	); err != nil {
		return nil, err
	}
	msg.MessageType = models.PendingMessageType(msgType)
	msg.Status = models.PendingStatus(status)
	return &msg, nil
}
