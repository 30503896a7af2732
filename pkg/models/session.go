// Package models contains domain models for engram.
package models

import (
	"database/sql"
)

// SessionStatus represents the lifecycle status of an SDK session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// IsTerminal reports whether the status ends the session lifecycle.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// SDKSession represents one coding-assistant conversation tracked by the memory system.
// ContentSessionID is the caller-supplied idempotency key; MemorySessionID is attached later.
type SDKSession struct {
	ContentSessionID string         `db:"content_session_id" json:"content_session_id"`
	MemorySessionID  sql.NullString `db:"memory_session_id" json:"memory_session_id,omitempty"`
	Project          string         `db:"project" json:"project"`
	UserPrompt       sql.NullString `db:"user_prompt" json:"user_prompt,omitempty"`
	Status           SessionStatus  `db:"status" json:"status"`
	StartedAt        string         `db:"started_at" json:"started_at"`
	CompletedAt      sql.NullString `db:"completed_at" json:"completed_at,omitempty"`
	ID               int64          `db:"id" json:"id"`
	StartedAtEpoch   int64          `db:"started_at_epoch" json:"started_at_epoch"`
	CompletedAtEpoch sql.NullInt64  `db:"completed_at_epoch" json:"completed_at_epoch,omitempty"`
}

// SDKSessionJSON is a JSON-friendly representation of SDKSession.
type SDKSessionJSON struct {
	ContentSessionID string        `json:"content_session_id"`
	MemorySessionID  string        `json:"memory_session_id,omitempty"`
	Project          string        `json:"project"`
	UserPrompt       string        `json:"user_prompt,omitempty"`
	Status           SessionStatus `json:"status"`
	StartedAt        string        `json:"started_at"`
	CompletedAt      string        `json:"completed_at,omitempty"`
	ID               int64         `json:"id"`
	StartedAtEpoch   int64         `json:"started_at_epoch"`
	CompletedAtEpoch int64         `json:"completed_at_epoch,omitempty"`
}

// MarshalJSON implements json.Marshaler for SDKSession.
func (s *SDKSession) MarshalJSON() ([]byte, error) {
	return marshalJSON(SDKSessionJSON{
		ID:               s.ID,
		ContentSessionID: s.ContentSessionID,
		MemorySessionID:  s.MemorySessionID.String,
		Project:          s.Project,
		UserPrompt:       s.UserPrompt.String,
		Status:           s.Status,
		StartedAt:        s.StartedAt,
		StartedAtEpoch:   s.StartedAtEpoch,
		CompletedAt:      s.CompletedAt.String,
		CompletedAtEpoch: s.CompletedAtEpoch.Int64,
	})
}
