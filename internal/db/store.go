// Package db defines the storage contract shared by every engram backend.
//
// A Store persists sessions, observations, summaries, user prompts and the
// pending-message work queue. Every adapter (embedded SQL, shared SQL, flat
// files) implements the same interface with the same ordering, atomicity and
// failure semantics, so callers never depend on backend-specific types.
//
// Fetch-by-key operations return (nil, nil) when no record matches. Errors are
// reserved for misuse (ErrNotInitialized, ErrConflict, ...) and backend I/O
// failures, which are returned unmodified.
package db

import (
	"context"

	"github.com/thebtf/engram-storage/pkg/models"
)

// Store is the full storage contract.
type Store interface {
	// Name returns the adapter name the store was registered under.
	Name() string
	// Initialize prepares the backend (schema, directories, connection test).
	// It must complete before any other operation.
	Initialize(ctx context.Context) error
	// Close releases the backend. Calling it more than once is a no-op.
	Close() error

	SessionStore
	ObservationStore
	SummaryStore
	PromptStore
	QueueStore
	BatchStore
}

// SessionStore covers session lifecycle operations.
type SessionStore interface {
	// CreateSDKSession inserts a session keyed by contentSessionID or returns the
	// id of the existing one. It is an atomic upsert.
	CreateSDKSession(ctx context.Context, contentSessionID, project, userPrompt string, opts ...WriteOption) (int64, error)
	GetSessionByID(ctx context.Context, id int64) (*models.SDKSession, error)
	FindSDKSession(ctx context.Context, contentSessionID string) (*models.SDKSession, error)
	// UpdateMemorySessionID attaches a memory session id. Returns ErrConflict when
	// another session already owns memorySessionID.
	UpdateMemorySessionID(ctx context.Context, id int64, memorySessionID string) error
	// CompleteSession moves an active session to completed or failed.
	// Returns ErrInvalidTransition when the session is not active.
	CompleteSession(ctx context.Context, id int64, status models.SessionStatus, opts ...WriteOption) error
	GetRecentSessions(ctx context.Context, project string, limit int) ([]*models.SDKSession, error)
	GetAllProjects(ctx context.Context) ([]string, error)
}

// ObservationStore covers observation operations. Observations are immutable.
type ObservationStore interface {
	// StoreObservation returns the new id and the effective epoch timestamp.
	StoreObservation(ctx context.Context, memorySessionID, project string, obs *models.ParsedObservation, promptNumber int, discoveryTokens int64, opts ...WriteOption) (int64, int64, error)
	GetObservationByID(ctx context.Context, id int64) (*models.Observation, error)
	GetObservationsByIDs(ctx context.Context, ids []int64, query ObservationQuery) ([]*models.Observation, error)
	// GetObservationsForSession returns a memory session's observations oldest first.
	GetObservationsForSession(ctx context.Context, memorySessionID string) ([]*models.Observation, error)
	GetRecentObservations(ctx context.Context, project string, limit int) ([]*models.Observation, error)
	GetAllRecentObservations(ctx context.Context, limit int) ([]*models.Observation, error)
	// GetFilesForSession returns the de-duplicated union of files read and
	// modified across a memory session's observations, in first-seen order.
	GetFilesForSession(ctx context.Context, memorySessionID string) ([]string, error)
}

// SummaryStore covers session summary operations.
type SummaryStore interface {
	StoreSummary(ctx context.Context, memorySessionID, project string, summary *models.ParsedSummary, promptNumber int, discoveryTokens int64, opts ...WriteOption) (int64, int64, error)
	// GetSummaryForSession returns the most recent summary of a memory session.
	GetSummaryForSession(ctx context.Context, memorySessionID string) (*models.SessionSummary, error)
	GetRecentSummaries(ctx context.Context, project string, limit int) ([]*models.SessionSummary, error)
	GetAllRecentSummaries(ctx context.Context, limit int) ([]*models.SessionSummary, error)
}

// PromptStore covers raw user prompt operations. Prompts are immutable.
type PromptStore interface {
	// SaveUserPrompt returns ErrConflict if the (session, number) pair exists.
	SaveUserPrompt(ctx context.Context, contentSessionID string, promptNumber int, promptText string, opts ...WriteOption) (int64, error)
	GetUserPrompt(ctx context.Context, contentSessionID string, promptNumber int) (*models.UserPrompt, error)
	GetLatestUserPrompt(ctx context.Context, contentSessionID string) (*models.UserPrompt, error)
	GetPromptCount(ctx context.Context, contentSessionID string) (int, error)
	GetAllRecentUserPrompts(ctx context.Context, limit int) ([]*models.UserPromptWithSession, error)
}

// QueueStore is the durable pending-message work queue.
//
// States: pending -> processing -> (row deleted) | failed.
// A failed message stays failed until a caller re-enqueues it.
type QueueStore interface {
	// EnqueuePendingMessage stores msg as pending with a zero retry count.
	EnqueuePendingMessage(ctx context.Context, msg *models.PendingMessage, opts ...WriteOption) (int64, error)
	// GetPendingMessages lists a session's pending messages oldest first.
	GetPendingMessages(ctx context.Context, sessionDBID int64) ([]*models.PendingMessage, error)
	// ClaimNextPendingMessage moves the oldest pending message of a session to
	// processing and returns it, or returns (nil, nil) when none is available.
	// Two concurrent callers never receive the same message.
	ClaimNextPendingMessage(ctx context.Context, sessionDBID int64, opts ...WriteOption) (*models.PendingMessage, error)
	// CompletePendingMessage deletes the message.
	CompletePendingMessage(ctx context.Context, id int64) error
	// FailPendingMessage marks the message failed and increments its retry count.
	FailPendingMessage(ctx context.Context, id int64, opts ...WriteOption) error
}

// BatchStore stores a processing result as one atomic unit.
type BatchStore interface {
	// StoreObservationsAndSummary stores every observation and the optional
	// summary, or nothing at all. All records share one timestamp.
	StoreObservationsAndSummary(ctx context.Context, memorySessionID, project string, observations []*models.ParsedObservation, summary *models.ParsedSummary, promptNumber int, discoveryTokens int64, opts ...WriteOption) (*BatchResult, error)
}
