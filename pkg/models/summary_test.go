package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionSummary_Timestamp(t *testing.T) {
	at := time.Date(2025, 3, 9, 22, 15, 30, 45_000_000, time.FixedZone("CET", 3600))

	sum := NewSessionSummary("mem-7", "demo", &ParsedSummary{Request: "fix login"}, 3, 250, at)

	assert.Equal(t, "2025-03-09T21:15:30.045Z", sum.CreatedAt)
	assert.Equal(t, at.UnixMilli(), sum.CreatedAtEpoch)
	assert.Equal(t, EpochTimestamp(sum.CreatedAtEpoch), sum.CreatedAt)
	assert.Equal(t, "mem-7", sum.MemorySessionID)
	assert.Equal(t, int64(3), sum.PromptNumber.Int64)
	assert.True(t, sum.PromptNumber.Valid)
	assert.Equal(t, int64(250), sum.DiscoveryTokens)
}

func TestNewSessionSummary_OptionalFields(t *testing.T) {
	tests := []struct {
		name   string
		parsed *ParsedSummary
		check  func(t *testing.T, sum *SessionSummary)
	}{
		{
			name:   "empty strings are null",
			parsed: &ParsedSummary{},
			check: func(t *testing.T, sum *SessionSummary) {
				assert.False(t, sum.Request.Valid)
				assert.False(t, sum.Investigated.Valid)
				assert.False(t, sum.Learned.Valid)
				assert.False(t, sum.Completed.Valid)
				assert.False(t, sum.NextSteps.Valid)
				assert.False(t, sum.Notes.Valid)
				assert.Nil(t, sum.FilesRead)
			},
		},
		{
			name: "set strings are kept",
			parsed: &ParsedSummary{
				NextSteps:   "add tests",
				Notes:       "flaky on CI",
				FilesEdited: []string{"auth.go", "auth_test.go"},
			},
			check: func(t *testing.T, sum *SessionSummary) {
				assert.Equal(t, "add tests", sum.NextSteps.String)
				assert.True(t, sum.NextSteps.Valid)
				assert.True(t, sum.Notes.Valid)
				assert.Equal(t, JSONStringArray{"auth.go", "auth_test.go"}, sum.FilesEdited)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, NewSessionSummary("mem-1", "p", tt.parsed, 1, 0, time.Now()))
		})
	}
}

func TestSessionSummary_MarshalJSON(t *testing.T) {
	at := time.UnixMilli(1717243200000)
	sum := NewSessionSummary("mem-1", "demo", &ParsedSummary{
		Learned:   "cache keys include tenant",
		FilesRead: []string{"cache.go"},
	}, 0, 12, at)
	sum.ID = 9

	data, err := json.Marshal(sum)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, float64(9), got["id"])
	assert.Equal(t, "cache keys include tenant", got["learned"])
	assert.Equal(t, []interface{}{"cache.go"}, got["files_read"])
	assert.Equal(t, []interface{}{}, got["files_edited"])
	assert.Equal(t, "2024-06-01T12:00:00.000Z", got["created_at"])
	assert.Equal(t, float64(1717243200000), got["created_at_epoch"])

	assert.NotContains(t, got, "prompt_number")
	assert.NotContains(t, got, "request")
	assert.NotContains(t, got, "notes")
}
