package file

import (
	"database/sql"

	"github.com/thebtf/engram-storage/pkg/models"
)

// On-disk record shapes. Optional values are omitted rather than stored as null.

type sessionRecord struct {
	ID               int64  `json:"id"`
	ContentSessionID string `json:"content_session_id"`
	MemorySessionID  string `json:"memory_session_id,omitempty"`
	Project          string `json:"project"`
	UserPrompt       string `json:"user_prompt,omitempty"`
	Status           string `json:"status"`
	StartedAt        string `json:"started_at"`
	StartedAtEpoch   int64  `json:"started_at_epoch"`
	CompletedAt      string `json:"completed_at,omitempty"`
	CompletedAtEpoch int64  `json:"completed_at_epoch,omitempty"`
}

func (r *sessionRecord) toModel() *models.SDKSession {
	return &models.SDKSession{
		ID:               r.ID,
		ContentSessionID: r.ContentSessionID,
		MemorySessionID:  nullString(r.MemorySessionID),
		Project:          r.Project,
		UserPrompt:       nullString(r.UserPrompt),
		Status:           models.SessionStatus(r.Status),
		StartedAt:        r.StartedAt,
		StartedAtEpoch:   r.StartedAtEpoch,
		CompletedAt:      nullString(r.CompletedAt),
		CompletedAtEpoch: sql.NullInt64{Int64: r.CompletedAtEpoch, Valid: r.CompletedAt != ""},
	}
}

type observationRecord struct {
	ID              int64    `json:"id"`
	MemorySessionID string   `json:"memory_session_id"`
	Project         string   `json:"project"`
	Type            string   `json:"type"`
	Title           string   `json:"title,omitempty"`
	Subtitle        string   `json:"subtitle,omitempty"`
	Narrative       string   `json:"narrative,omitempty"`
	Facts           []string `json:"facts"`
	Concepts        []string `json:"concepts"`
	FilesRead       []string `json:"files_read"`
	FilesModified   []string `json:"files_modified"`
	PromptNumber    int64    `json:"prompt_number,omitempty"`
	DiscoveryTokens int64    `json:"discovery_tokens"`
	CreatedAt       string   `json:"created_at"`
	CreatedAtEpoch  int64    `json:"created_at_epoch"`
}

func newObservationRecord(id int64, obs *models.Observation) *observationRecord {
	return &observationRecord{
		ID:              id,
		MemorySessionID: obs.MemorySessionID,
		Project:         obs.Project,
		Type:            string(obs.Type),
		Title:           obs.Title.String,
		Subtitle:        obs.Subtitle.String,
		Narrative:       obs.Narrative.String,
		Facts:           nonNil(obs.Facts),
		Concepts:        nonNil(obs.Concepts),
		FilesRead:       nonNil(obs.FilesRead),
		FilesModified:   nonNil(obs.FilesModified),
		PromptNumber:    obs.PromptNumber.Int64,
		DiscoveryTokens: obs.DiscoveryTokens,
		CreatedAt:       obs.CreatedAt,
		CreatedAtEpoch:  obs.CreatedAtEpoch,
	}
}

func (r *observationRecord) toModel() *models.Observation {
	return &models.Observation{
		ID:              r.ID,
		MemorySessionID: r.MemorySessionID,
		Project:         r.Project,
		Type:            models.ObservationType(r.Type),
		Title:           nullString(r.Title),
		Subtitle:        nullString(r.Subtitle),
		Narrative:       nullString(r.Narrative),
		Facts:           models.JSONStringArray(r.Facts),
		Concepts:        models.JSONStringArray(r.Concepts),
		FilesRead:       models.JSONStringArray(r.FilesRead),
		FilesModified:   models.JSONStringArray(r.FilesModified),
		PromptNumber:    nullInt64(r.PromptNumber),
		DiscoveryTokens: r.DiscoveryTokens,
		CreatedAt:       r.CreatedAt,
		CreatedAtEpoch:  r.CreatedAtEpoch,
	}
}

type summaryRecord struct {
	ID              int64    `json:"id"`
	MemorySessionID string   `json:"memory_session_id"`
	Project         string   `json:"project"`
	Request         string   `json:"request,omitempty"`
	Investigated    string   `json:"investigated,omitempty"`
	Learned         string   `json:"learned,omitempty"`
	Completed       string   `json:"completed,omitempty"`
	NextSteps       string   `json:"next_steps,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	FilesRead       []string `json:"files_read"`
	FilesEdited     []string `json:"files_edited"`
	PromptNumber    int64    `json:"prompt_number,omitempty"`
	DiscoveryTokens int64    `json:"discovery_tokens"`
	CreatedAt       string   `json:"created_at"`
	CreatedAtEpoch  int64    `json:"created_at_epoch"`
}

func newSummaryRecord(id int64, s *models.SessionSummary) *summaryRecord {
	return &summaryRecord{
		ID:              id,
		MemorySessionID: s.MemorySessionID,
		Project:         s.Project,
		Request:         s.Request.String,
		Investigated:    s.Investigated.String,
		Learned:         s.Learned.String,
		Completed:       s.Completed.String,
		NextSteps:       s.NextSteps.String,
		Notes:           s.Notes.String,
		FilesRead:       nonNil(s.FilesRead),
		FilesEdited:     nonNil(s.FilesEdited),
		PromptNumber:    s.PromptNumber.Int64,
		DiscoveryTokens: s.DiscoveryTokens,
		CreatedAt:       s.CreatedAt,
		CreatedAtEpoch:  s.CreatedAtEpoch,
	}
}

func (r *summaryRecord) toModel() *models.SessionSummary {
	return &models.SessionSummary{
		ID:              r.ID,
		MemorySessionID: r.MemorySessionID,
		Project:         r.Project,
		Request:         nullString(r.Request),
		Investigated:    nullString(r.Investigated),
		Learned:         nullString(r.Learned),
		Completed:       nullString(r.Completed),
		NextSteps:       nullString(r.NextSteps),
		Notes:           nullString(r.Notes),
		FilesRead:       models.JSONStringArray(r.FilesRead),
		FilesEdited:     models.JSONStringArray(r.FilesEdited),
		PromptNumber:    nullInt64(r.PromptNumber),
		DiscoveryTokens: r.DiscoveryTokens,
		CreatedAt:       r.CreatedAt,
		CreatedAtEpoch:  r.CreatedAtEpoch,
	}
}

type promptRecord struct {
	ID               int64  `json:"id"`
	ContentSessionID string `json:"content_session_id"`
	PromptNumber     int    `json:"prompt_number"`
	PromptText       string `json:"prompt_text"`
	CreatedAt        string `json:"created_at"`
	CreatedAtEpoch   int64  `json:"created_at_epoch"`
}

func (r *promptRecord) toModel() *models.UserPrompt {
	return &models.UserPrompt{
		ID:               r.ID,
		ContentSessionID: r.ContentSessionID,
		PromptNumber:     r.PromptNumber,
		PromptText:       r.PromptText,
		CreatedAt:        r.CreatedAt,
		CreatedAtEpoch:   r.CreatedAtEpoch,
	}
}

type pendingRecord struct {
	ID                       int64   `json:"id"`
	SessionDBID              int64   `json:"session_db_id"`
	ContentSessionID         string  `json:"content_session_id"`
	MessageType              string  `json:"message_type"`
	ToolName                 *string `json:"tool_name,omitempty"`
	ToolInput                *string `json:"tool_input,omitempty"`
	ToolResponse             *string `json:"tool_response,omitempty"`
	Cwd                      *string `json:"cwd,omitempty"`
	LastUserMessage          *string `json:"last_user_message,omitempty"`
	LastAssistantMessage     *string `json:"last_assistant_message,omitempty"`
	PromptNumber             *int64  `json:"prompt_number,omitempty"`
	Status                   string  `json:"status"`
	RetryCount               int     `json:"retry_count"`
	CreatedAtEpoch           int64   `json:"created_at_epoch"`
	StartedProcessingAtEpoch int64   `json:"started_processing_at_epoch,omitempty"`
	CompletedAtEpoch         int64   `json:"completed_at_epoch,omitempty"`
	FailedAtEpoch            int64   `json:"failed_at_epoch,omitempty"`
}

func (r *pendingRecord) toModel() *models.PendingMessage {
	return &models.PendingMessage{
		ID:                       r.ID,
		SessionDBID:              r.SessionDBID,
		ContentSessionID:         r.ContentSessionID,
		MessageType:              models.PendingMessageType(r.MessageType),
		ToolName:                 fromPtrString(r.ToolName),
		ToolInput:                fromPtrString(r.ToolInput),
		ToolResponse:             fromPtrString(r.ToolResponse),
		Cwd:                      fromPtrString(r.Cwd),
		LastUserMessage:          fromPtrString(r.LastUserMessage),
		LastAssistantMessage:     fromPtrString(r.LastAssistantMessage),
		PromptNumber:             fromPtrInt64(r.PromptNumber),
		Status:                   models.PendingStatus(r.Status),
		RetryCount:               r.RetryCount,
		CreatedAtEpoch:           r.CreatedAtEpoch,
		StartedProcessingAtEpoch: nullInt64(r.StartedProcessingAtEpoch),
		CompletedAtEpoch:         nullInt64(r.CompletedAtEpoch),
		FailedAtEpoch:            nullInt64(r.FailedAtEpoch),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

// Optional queue payload fields are stored as pointers so that a set but
// empty value survives a round trip.

func ptrString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func fromPtrString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func ptrInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func fromPtrInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nonNil(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}
