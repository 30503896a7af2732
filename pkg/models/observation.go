// Package models contains domain models for engram.
package models

import (
	"database/sql"
	"time"
)

// ObservationType is the kind of knowledge an observation records.
type ObservationType string

const (
	ObsTypeDecision  ObservationType = "decision"
	ObsTypeBugfix    ObservationType = "bugfix"
	ObsTypeFeature   ObservationType = "feature"
	ObsTypeRefactor  ObservationType = "refactor"
	ObsTypeDiscovery ObservationType = "discovery"
	ObsTypeChange    ObservationType = "change"
)

// ObservationTypes lists every valid observation type.
var ObservationTypes = []ObservationType{
	ObsTypeDecision, ObsTypeBugfix, ObsTypeFeature,
	ObsTypeRefactor, ObsTypeDiscovery, ObsTypeChange,
}

// Valid reports whether t is one of the known observation types.
func (t ObservationType) Valid() bool {
	for _, known := range ObservationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Observation represents a stored observation. Observations are immutable once created.
type Observation struct {
	MemorySessionID string          `db:"memory_session_id" json:"memory_session_id"`
	Project         string          `db:"project" json:"project"`
	Type            ObservationType `db:"type" json:"type"`
	CreatedAt       string          `db:"created_at" json:"created_at"`
	Title           sql.NullString  `db:"title" json:"title,omitempty"`
	Subtitle        sql.NullString  `db:"subtitle" json:"subtitle,omitempty"`
	Narrative       sql.NullString  `db:"narrative" json:"narrative,omitempty"`
	Facts           JSONStringArray `db:"facts" json:"facts"`
	Concepts        JSONStringArray `db:"concepts" json:"concepts"`
	FilesRead       JSONStringArray `db:"files_read" json:"files_read"`
	FilesModified   JSONStringArray `db:"files_modified" json:"files_modified"`
	PromptNumber    sql.NullInt64   `db:"prompt_number" json:"prompt_number,omitempty"`
	ID              int64           `db:"id" json:"id"`
	DiscoveryTokens int64           `db:"discovery_tokens" json:"discovery_tokens"`
	CreatedAtEpoch  int64           `db:"created_at_epoch" json:"created_at_epoch"`
}

// ParsedObservation is the caller-supplied content of a new observation.
type ParsedObservation struct {
	Type          ObservationType
	Title         string
	Subtitle      string
	Narrative     string
	Facts         []string
	Concepts      []string
	FilesRead     []string
	FilesModified []string
}

// NewObservation creates an observation from parsed data stamped with the given time.
func NewObservation(memorySessionID, project string, parsed *ParsedObservation, promptNumber int, discoveryTokens int64, at time.Time) *Observation {
	createdAt, epoch := Timestamp(at)
	return &Observation{
		MemorySessionID: memorySessionID,
		Project:         project,
		Type:            parsed.Type,
		Title:           sql.NullString{String: parsed.Title, Valid: parsed.Title != ""},
		Subtitle:        sql.NullString{String: parsed.Subtitle, Valid: parsed.Subtitle != ""},
		Narrative:       sql.NullString{String: parsed.Narrative, Valid: parsed.Narrative != ""},
		Facts:           JSONStringArray(parsed.Facts),
		Concepts:        JSONStringArray(parsed.Concepts),
		FilesRead:       JSONStringArray(parsed.FilesRead),
		FilesModified:   JSONStringArray(parsed.FilesModified),
		PromptNumber:    sql.NullInt64{Int64: int64(promptNumber), Valid: promptNumber > 0},
		DiscoveryTokens: discoveryTokens,
		CreatedAt:       createdAt,
		CreatedAtEpoch:  epoch,
	}
}

// ObservationJSON is a JSON-friendly representation of Observation.
type ObservationJSON struct {
	MemorySessionID string          `json:"memory_session_id"`
	Project         string          `json:"project"`
	Type            ObservationType `json:"type"`
	Title           string          `json:"title,omitempty"`
	Subtitle        string          `json:"subtitle,omitempty"`
	Narrative       string          `json:"narrative,omitempty"`
	CreatedAt       string          `json:"created_at"`
	Facts           []string        `json:"facts"`
	Concepts        []string        `json:"concepts"`
	FilesRead       []string        `json:"files_read"`
	FilesModified   []string        `json:"files_modified"`
	ID              int64           `json:"id"`
	PromptNumber    int64           `json:"prompt_number,omitempty"`
	DiscoveryTokens int64           `json:"discovery_tokens"`
	CreatedAtEpoch  int64           `json:"created_at_epoch"`
}

// MarshalJSON implements json.Marshaler for Observation.
// Converts sql.Null* fields to plain values.
func (o *Observation) MarshalJSON() ([]byte, error) {
	return marshalJSON(ObservationJSON{
		ID:              o.ID,
		MemorySessionID: o.MemorySessionID,
		Project:         o.Project,
		Type:            o.Type,
		Title:           o.Title.String,
		Subtitle:        o.Subtitle.String,
		Narrative:       o.Narrative.String,
		Facts:           nonNil(o.Facts),
		Concepts:        nonNil(o.Concepts),
		FilesRead:       nonNil(o.FilesRead),
		FilesModified:   nonNil(o.FilesModified),
		PromptNumber:    o.PromptNumber.Int64,
		DiscoveryTokens: o.DiscoveryTokens,
		CreatedAt:       o.CreatedAt,
		CreatedAtEpoch:  o.CreatedAtEpoch,
	})
}

func nonNil(a JSONStringArray) []string {
	if a == nil {
		return []string{}
	}
	return a
}
