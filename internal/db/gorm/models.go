package gorm

import (
	"database/sql"

	"github.com/thebtf/engram-storage/pkg/models"
)

// GORM Models

// Note: JSONStringArray comes from pkg/models and already implements
// sql.Scanner and driver.Valuer, so list columns are stored as JSON text.

// SDKSession is the sdk_sessions row.
type SDKSession struct {
	ID               int64          `gorm:"primaryKey;autoIncrement"`
	ContentSessionID string         `gorm:"uniqueIndex;not null"`
	MemorySessionID  sql.NullString `gorm:"uniqueIndex"`
	Project          string         `gorm:"index;not null;default:''"`
	UserPrompt       sql.NullString `gorm:"type:text"`
	Status           string         `gorm:"type:text;check:status IN ('active', 'completed', 'failed');default:'active';index;not null"`
	StartedAt        string         `gorm:"not null"`
	StartedAtEpoch   int64          `gorm:"index:idx_sessions_started,sort:desc;not null"`
	CompletedAt      sql.NullString
	CompletedAtEpoch sql.NullInt64
}

func (SDKSession) TableName() string { return "sdk_sessions" }

// Observation is the observations row.
type Observation struct {
	ID              int64                  `gorm:"primaryKey;autoIncrement"`
	MemorySessionID string                 `gorm:"index;not null"`
	Project         string                 `gorm:"index;not null;default:''"`
	Type            models.ObservationType `gorm:"type:text;check:type IN ('decision', 'bugfix', 'feature', 'refactor', 'discovery', 'change');index;not null"`

	// Content fields
	Title         sql.NullString         `gorm:"type:text"`
	Subtitle      sql.NullString         `gorm:"type:text"`
	Narrative     sql.NullString         `gorm:"type:text"`
	Facts         models.JSONStringArray `gorm:"type:text;not null;default:'[]'"` // JSON array
	Concepts      models.JSONStringArray `gorm:"type:text;not null;default:'[]'"` // JSON array
	FilesRead     models.JSONStringArray `gorm:"type:text;not null;default:'[]'"` // JSON array
	FilesModified models.JSONStringArray `gorm:"type:text;not null;default:'[]'"` // JSON array

	// Metadata
	PromptNumber    sql.NullInt64
	DiscoveryTokens int64  `gorm:"default:0;not null"`
	CreatedAt       string `gorm:"not null"`
	CreatedAtEpoch  int64  `gorm:"index:idx_observations_created,sort:desc;not null"`
}

func (Observation) TableName() string { return "observations" }

// SessionSummary is the session_summaries row.
type SessionSummary struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	MemorySessionID string `gorm:"index;not null"`
	Project         string `gorm:"index;not null;default:''"`

	// Summary fields (nullable TEXT)
	Request      sql.NullString `gorm:"type:text"`
	Investigated sql.NullString `gorm:"type:text"`
	Learned      sql.NullString `gorm:"type:text"`
	Completed    sql.NullString `gorm:"type:text"`
	NextSteps    sql.NullString `gorm:"column:next_steps;type:text"`
	Notes        sql.NullString `gorm:"type:text"`

	FilesRead   models.JSONStringArray `gorm:"type:text;not null;default:'[]'"` // JSON array
	FilesEdited models.JSONStringArray `gorm:"type:text;not null;default:'[]'"` // JSON array

	// Metadata
	PromptNumber    sql.NullInt64
	DiscoveryTokens int64  `gorm:"default:0;not null"`
	CreatedAt       string `gorm:"not null"`
	CreatedAtEpoch  int64  `gorm:"index:idx_summaries_created,sort:desc;not null"`
}

func (SessionSummary) TableName() string { return "session_summaries" }

// UserPrompt is the user_prompts row.
type UserPrompt struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	ContentSessionID string `gorm:"index;not null;uniqueIndex:idx_user_prompts_session_number_unique,priority:1"`
	PromptNumber     int    `gorm:"not null;check:prompt_number >= 1;uniqueIndex:idx_user_prompts_session_number_unique,priority:2"`
	PromptText       string `gorm:"type:text;not null"`
	CreatedAt        string `gorm:"not null"`
	CreatedAtEpoch   int64  `gorm:"index:idx_prompts_created,sort:desc;not null"`
}

func (UserPrompt) TableName() string { return "user_prompts" }

// PendingMessage is the pending_messages row.
type PendingMessage struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	SessionDBID      int64  `gorm:"column:session_db_id;not null;index:idx_pending_session_status,priority:1"`
	ContentSessionID string `gorm:"index;not null"`
	MessageType      string `gorm:"type:text;check:message_type IN ('observation', 'summarize');not null"`

	// Payload
	ToolName             sql.NullString `gorm:"type:text"`
	ToolInput            sql.NullString `gorm:"type:text"`
	ToolResponse         sql.NullString `gorm:"type:text"`
	Cwd                  sql.NullString `gorm:"type:text"`
	LastUserMessage      sql.NullString `gorm:"type:text"`
	LastAssistantMessage sql.NullString `gorm:"type:text"`
	PromptNumber         sql.NullInt64

	// Queue state
	Status                   string        `gorm:"type:text;check:status IN ('pending', 'processing', 'processed', 'failed');default:'pending';not null;index;index:idx_pending_session_status,priority:2"`
	RetryCount               int           `gorm:"default:0;not null"`
	CreatedAtEpoch           int64         `gorm:"not null;index:idx_pending_session_status,priority:3"`
	StartedProcessingAtEpoch sql.NullInt64 `gorm:"column:started_processing_at_epoch"`
	CompletedAtEpoch         sql.NullInt64 `gorm:"column:completed_at_epoch"`
	FailedAtEpoch            sql.NullInt64 `gorm:"column:failed_at_epoch"`
}

func (PendingMessage) TableName() string { return "pending_messages" }

// promptRow is a user prompt joined with its owning session.
type promptRow struct {
	ID               int64
	ContentSessionID string
	PromptNumber     int
	PromptText       string
	CreatedAt        string
	CreatedAtEpoch   int64
	Project          string
	MemorySessionID  string
}
