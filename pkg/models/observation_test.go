// Package models contains domain models for engram.
package models

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ObservationSuite is a test suite for Observation operations.
type ObservationSuite struct {
	suite.Suite
}

func TestObservationSuite(t *testing.T) {
	suite.Run(t, new(ObservationSuite))
}

// TestObservationTypeConstants tests observation type constants.
func (s *ObservationSuite) TestObservationTypeConstants() {
	s.Equal(ObservationType("discovery"), ObsTypeDiscovery)
	s.Equal(ObservationType("decision"), ObsTypeDecision)
	s.Equal(ObservationType("bugfix"), ObsTypeBugfix)
	s.Equal(ObservationType("feature"), ObsTypeFeature)
	s.Equal(ObservationType("refactor"), ObsTypeRefactor)
	s.Equal(ObservationType("change"), ObsTypeChange)
	s.Len(ObservationTypes, 6)
}

// TestObservationType_Valid_TableDriven tests type validation.
func (s *ObservationSuite) TestObservationType_Valid_TableDriven() {
	tests := []struct {
		name  string
		typ   ObservationType
		valid bool
	}{
		{name: "bugfix", typ: ObsTypeBugfix, valid: true},
		{name: "change", typ: ObsTypeChange, valid: true},
		{name: "empty", typ: "", valid: false},
		{name: "unknown", typ: "gossip", valid: false},
		{name: "wrong case", typ: "Bugfix", valid: false},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.valid, tt.typ.Valid())
		})
	}
}

// TestObservation_MarshalJSON tests JSON marshaling of Observation.
func (s *ObservationSuite) TestObservation_MarshalJSON() {
	obs := &Observation{
		ID:              1,
		MemorySessionID: "mem-1",
		Project:         "test-project",
		Type:            ObsTypeDiscovery,
		Title:           sql.NullString{String: "Test Title", Valid: true},
		Facts:           JSONStringArray{"a", "b"},
	}

	data, err := json.Marshal(obs)
	s.NoError(err)
	s.Contains(string(data), `"id":1`)
	s.Contains(string(data), `"project":"test-project"`)
	s.Contains(string(data), `"type":"discovery"`)
	s.Contains(string(data), `"title":"Test Title"`)
	s.Contains(string(data), `"facts":["a","b"]`)
	s.Contains(string(data), `"concepts":[]`)
	s.NotContains(string(data), `"subtitle"`)
}

// TestNewObservation tests observation creation from parsed data.
func TestNewObservation(t *testing.T) {
	parsed := &ParsedObservation{
		Type:          ObsTypeFeature,
		Title:         "Add authentication",
		Subtitle:      "JWT-based",
		Narrative:     "Implemented JWT auth",
		Facts:         []string{"Uses RS256"},
		Concepts:      []string{"security"},
		FilesRead:     []string{"config.go"},
		FilesModified: []string{"handler.go"},
	}
	at := time.UnixMilli(1704067200123)

	obs := NewObservation("mem-123", "test-project", parsed, 5, 1000, at)

	assert.Equal(t, "mem-123", obs.MemorySessionID)
	assert.Equal(t, "test-project", obs.Project)
	assert.Equal(t, ObsTypeFeature, obs.Type)
	assert.Equal(t, "Add authentication", obs.Title.String)
	assert.True(t, obs.Title.Valid)
	assert.Equal(t, JSONStringArray{"handler.go"}, obs.FilesModified)
	assert.Equal(t, int64(5), obs.PromptNumber.Int64)
	assert.Equal(t, int64(1000), obs.DiscoveryTokens)
	assert.Equal(t, "2024-01-01T00:00:00.123Z", obs.CreatedAt)
	assert.Equal(t, int64(1704067200123), obs.CreatedAtEpoch)
}

// TestNewObservation_EmptyOptionalFields tests that empty strings become NULL.
func TestNewObservation_EmptyOptionalFields(t *testing.T) {
	obs := NewObservation("mem-1", "p", &ParsedObservation{Type: ObsTypeChange}, 0, 0, time.Now())

	assert.False(t, obs.Title.Valid)
	assert.False(t, obs.Subtitle.Valid)
	assert.False(t, obs.Narrative.Valid)
	assert.False(t, obs.PromptNumber.Valid)
}

// TestJSONStringArray tests JSONStringArray scanning.
func TestJSONStringArray(t *testing.T) {
	tests := []struct {
		input    interface{}
		name     string
		expected JSONStringArray
		wantErr  bool
	}{
		{
			name:     "nil input",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "json array string",
			input:    `["item1", "item2"]`,
			expected: JSONStringArray{"item1", "item2"},
		},
		{
			name:     "json array bytes",
			input:    []byte(`["a", "b", "c"]`),
			expected: JSONStringArray{"a", "b", "c"},
		},
		{
			name:    "malformed json",
			input:   `["a"`,
			wantErr: true,
		},
		{
			name:    "unsupported type",
			input:   42,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var arr JSONStringArray
			err := arr.Scan(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, arr)
			}
		})
	}
}

// TestJSONStringArray_Value tests that Value output scans back in order.
func TestJSONStringArray_Value(t *testing.T) {
	v, err := JSONStringArray{"z.go", "a.go", "m.go"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["z.go","a.go","m.go"]`, v)

	var back JSONStringArray
	require.NoError(t, back.Scan(v))
	assert.Equal(t, JSONStringArray{"z.go", "a.go", "m.go"}, back)

	empty, err := JSONStringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
}

// TestTimestamp tests the paired string/epoch timestamp helpers.
func TestTimestamp(t *testing.T) {
	at := time.Date(2024, 3, 5, 10, 20, 30, 456_000_000, time.FixedZone("X", 3600))

	str, epoch := Timestamp(at)
	assert.Equal(t, "2024-03-05T09:20:30.456Z", str)
	assert.Equal(t, at.UnixMilli(), epoch)
	assert.Equal(t, str, EpochTimestamp(epoch))
}
