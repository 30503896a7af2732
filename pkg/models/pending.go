// Package models contains domain models for engram.
package models

import "database/sql"

// PendingStatus is the queue state of a pending message.
type PendingStatus string

const (
	PendingStatusPending    PendingStatus = "pending"
	PendingStatusProcessing PendingStatus = "processing"
	PendingStatusProcessed  PendingStatus = "processed"
	PendingStatusFailed     PendingStatus = "failed"
)

// PendingMessageType identifies the job a pending message carries.
type PendingMessageType string

const (
	PendingTypeObservation PendingMessageType = "observation"
	PendingTypeSummarize   PendingMessageType = "summarize"
)

// PendingMessage is one queued unit of work awaiting processing.
// Timestamps are epoch milliseconds only.
type PendingMessage struct {
	ContentSessionID         string             `db:"content_session_id" json:"content_session_id"`
	MessageType              PendingMessageType `db:"message_type" json:"message_type"`
	Status                   PendingStatus      `db:"status" json:"status"`
	ToolName                 sql.NullString     `db:"tool_name" json:"tool_name,omitempty"`
	ToolInput                sql.NullString     `db:"tool_input" json:"tool_input,omitempty"`
	ToolResponse             sql.NullString     `db:"tool_response" json:"tool_response,omitempty"`
	Cwd                      sql.NullString     `db:"cwd" json:"cwd,omitempty"`
	LastUserMessage          sql.NullString     `db:"last_user_message" json:"last_user_message,omitempty"`
	LastAssistantMessage     sql.NullString     `db:"last_assistant_message" json:"last_assistant_message,omitempty"`
	PromptNumber             sql.NullInt64      `db:"prompt_number" json:"prompt_number,omitempty"`
	StartedProcessingAtEpoch sql.NullInt64      `db:"started_processing_at_epoch" json:"started_processing_at_epoch,omitempty"`
	CompletedAtEpoch         sql.NullInt64      `db:"completed_at_epoch" json:"completed_at_epoch,omitempty"`
	FailedAtEpoch            sql.NullInt64      `db:"failed_at_epoch" json:"failed_at_epoch,omitempty"`
	ID                       int64              `db:"id" json:"id"`
	SessionDBID              int64              `db:"session_db_id" json:"session_db_id"`
	RetryCount               int                `db:"retry_count" json:"retry_count"`
	CreatedAtEpoch           int64              `db:"created_at_epoch" json:"created_at_epoch"`
}

// PendingMessageJSON is a JSON-friendly representation of PendingMessage.
type PendingMessageJSON struct {
	ContentSessionID         string             `json:"content_session_id"`
	MessageType              PendingMessageType `json:"message_type"`
	Status                   PendingStatus      `json:"status"`
	ToolName                 string             `json:"tool_name,omitempty"`
	ToolInput                string             `json:"tool_input,omitempty"`
	ToolResponse             string             `json:"tool_response,omitempty"`
	Cwd                      string             `json:"cwd,omitempty"`
	LastUserMessage          string             `json:"last_user_message,omitempty"`
	LastAssistantMessage     string             `json:"last_assistant_message,omitempty"`
	ID                       int64              `json:"id"`
	SessionDBID              int64              `json:"session_db_id"`
	PromptNumber             int64              `json:"prompt_number,omitempty"`
	RetryCount               int                `json:"retry_count"`
	CreatedAtEpoch           int64              `json:"created_at_epoch"`
	StartedProcessingAtEpoch int64              `json:"started_processing_at_epoch,omitempty"`
	CompletedAtEpoch         int64              `json:"completed_at_epoch,omitempty"`
	FailedAtEpoch            int64              `json:"failed_at_epoch,omitempty"`
}

// MarshalJSON implements json.Marshaler for PendingMessage.
func (m *PendingMessage) MarshalJSON() ([]byte, error) {
	return marshalJSON(PendingMessageJSON{
		ID:                       m.ID,
		SessionDBID:              m.SessionDBID,
		ContentSessionID:         m.ContentSessionID,
		MessageType:              m.MessageType,
		Status:                   m.Status,
		ToolName:                 m.ToolName.String,
		ToolInput:                m.ToolInput.String,
		ToolResponse:             m.ToolResponse.String,
		Cwd:                      m.Cwd.String,
		LastUserMessage:          m.LastUserMessage.String,
		LastAssistantMessage:     m.LastAssistantMessage.String,
		PromptNumber:             m.PromptNumber.Int64,
		RetryCount:               m.RetryCount,
		CreatedAtEpoch:           m.CreatedAtEpoch,
		StartedProcessingAtEpoch: m.StartedProcessingAtEpoch.Int64,
		CompletedAtEpoch:         m.CompletedAtEpoch.Int64,
		FailedAtEpoch:            m.FailedAtEpoch.Int64,
	})
}
