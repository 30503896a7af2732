// Package models contains domain models for engram.
package models

import (
	"database/sql"
	"time"
)

// SessionSummary represents a narrative rollup of a memory session.
type SessionSummary struct {
	CreatedAt       string          `db:"created_at" json:"created_at"`
	MemorySessionID string          `db:"memory_session_id" json:"memory_session_id"`
	Project         string          `db:"project" json:"project"`
	Completed       sql.NullString  `db:"completed" json:"completed,omitempty"`
	Investigated    sql.NullString  `db:"investigated" json:"investigated,omitempty"`
	Learned         sql.NullString  `db:"learned" json:"learned,omitempty"`
	NextSteps       sql.NullString  `db:"next_steps" json:"next_steps,omitempty"`
	Notes           sql.NullString  `db:"notes" json:"notes,omitempty"`
	Request         sql.NullString  `db:"request" json:"request,omitempty"`
	FilesRead       JSONStringArray `db:"files_read" json:"files_read"`
	FilesEdited     JSONStringArray `db:"files_edited" json:"files_edited"`
	PromptNumber    sql.NullInt64   `db:"prompt_number" json:"prompt_number,omitempty"`
	ID              int64           `db:"id" json:"id"`
	DiscoveryTokens int64           `db:"discovery_tokens" json:"discovery_tokens"`
	CreatedAtEpoch  int64           `db:"created_at_epoch" json:"created_at_epoch"`
}

// ParsedSummary represents the caller-supplied content of a new summary.
type ParsedSummary struct {
	Request      string
	Investigated string
	Learned      string
	Completed    string
	NextSteps    string
	Notes        string
	FilesRead    []string
	FilesEdited  []string
}

// NewSessionSummary creates a new session summary from parsed data stamped with the given time.
func NewSessionSummary(memorySessionID, project string, parsed *ParsedSummary, promptNumber int, discoveryTokens int64, at time.Time) *SessionSummary {
	createdAt, epoch := Timestamp(at)
	return &SessionSummary{
		MemorySessionID: memorySessionID,
		Project:         project,
		Request:         sql.NullString{String: parsed.Request, Valid: parsed.Request != ""},
		Investigated:    sql.NullString{String: parsed.Investigated, Valid: parsed.Investigated != ""},
		Learned:         sql.NullString{String: parsed.Learned, Valid: parsed.Learned != ""},
		Completed:       sql.NullString{String: parsed.Completed, Valid: parsed.Completed != ""},
		NextSteps:       sql.NullString{String: parsed.NextSteps, Valid: parsed.NextSteps != ""},
		Notes:           sql.NullString{String: parsed.Notes, Valid: parsed.Notes != ""},
		FilesRead:       JSONStringArray(parsed.FilesRead),
		FilesEdited:     JSONStringArray(parsed.FilesEdited),
		PromptNumber:    sql.NullInt64{Int64: int64(promptNumber), Valid: promptNumber > 0},
		DiscoveryTokens: discoveryTokens,
		CreatedAt:       createdAt,
		CreatedAtEpoch:  epoch,
	}
}

// SessionSummaryJSON is a JSON-friendly representation of SessionSummary.
// File lists are always present, empty rather than null.
type SessionSummaryJSON struct {
	MemorySessionID string   `json:"memory_session_id"`
	Project         string   `json:"project"`
	Request         string   `json:"request,omitempty"`
	Investigated    string   `json:"investigated,omitempty"`
	Learned         string   `json:"learned,omitempty"`
	Completed       string   `json:"completed,omitempty"`
	NextSteps       string   `json:"next_steps,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	CreatedAt       string   `json:"created_at"`
	FilesRead       []string `json:"files_read"`
	FilesEdited     []string `json:"files_edited"`
	ID              int64    `json:"id"`
	PromptNumber    int64    `json:"prompt_number,omitempty"`
	DiscoveryTokens int64    `json:"discovery_tokens"`
	CreatedAtEpoch  int64    `json:"created_at_epoch"`
}

// MarshalJSON implements json.Marshaler for SessionSummary.
func (s *SessionSummary) MarshalJSON() ([]byte, error) {
	return marshalJSON(SessionSummaryJSON{
		ID:              s.ID,
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
	})
}
