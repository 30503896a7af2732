package instrument

import (
	"context"
	"time"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

// Session operations

func (s *Store) CreateSDKSession(ctx context.Context, contentSessionID, project, userPrompt string, opts ...db.WriteOption) (int64, error) {
	start := time.Now()
	id, err := s.next.CreateSDKSession(ctx, contentSessionID, project, userPrompt, opts...)
	return id, s.observe(ctx, "create session", start, err)
}

func (s *Store) GetSessionByID(ctx context.Context, id int64) (*models.SDKSession, error) {
	start := time.Now()
	sess, err := s.next.GetSessionByID(ctx, id)
	return sess, s.observe(ctx, "get session", start, err)
}

func (s *Store) FindSDKSession(ctx context.Context, contentSessionID string) (*models.SDKSession, error) {
	start := time.Now()
	sess, err := s.next.FindSDKSession(ctx, contentSessionID)
	return sess, s.observe(ctx, "find session", start, err)
}

func (s *Store) UpdateMemorySessionID(ctx context.Context, id int64, memorySessionID string) error {
	start := time.Now()
	return s.observe(ctx, "update memory session id", start, s.next.UpdateMemorySessionID(ctx, id, memorySessionID))
}

func (s *Store) CompleteSession(ctx context.Context, id int64, status models.SessionStatus, opts ...db.WriteOption) error {
	start := time.Now()
	return s.observe(ctx, "complete session", start, s.next.CompleteSession(ctx, id, status, opts...))
}

func (s *Store) GetRecentSessions(ctx context.Context, project string, limit int) ([]*models.SDKSession, error) {
	start := time.Now()
	sessions, err := s.next.GetRecentSessions(ctx, project, limit)
	return sessions, s.observe(ctx, "recent sessions", start, err)
}

func (s *Store) GetAllProjects(ctx context.Context) ([]string, error) {
	start := time.Now()
	projects, err := s.next.GetAllProjects(ctx)
	return projects, s.observe(ctx, "all projects", start, err)
}

// Observation operations

func (s *Store) StoreObservation(ctx context.Context, memorySessionID, project string, obs *models.ParsedObservation, promptNumber int, discoveryTokens int64, opts ...db.WriteOption) (int64, int64, error) {
	start := time.Now()
	id, epoch, err := s.next.StoreObservation(ctx, memorySessionID, project, obs, promptNumber, discoveryTokens, opts...)
	return id, epoch, s.observe(ctx, "store observation", start, err)
}

func (s *Store) GetObservationByID(ctx context.Context, id int64) (*models.Observation, error) {
	start := time.Now()
	obs, err := s.next.GetObservationByID(ctx, id)
	return obs, s.observe(ctx, "get observation", start, err)
}

func (s *Store) GetObservationsByIDs(ctx context.Context, ids []int64, query db.ObservationQuery) ([]*models.Observation, error) {
	start := time.Now()
	obs, err := s.next.GetObservationsByIDs(ctx, ids, query)
	return obs, s.observe(ctx, "get observations", start, err)
}

func (s *Store) GetObservationsForSession(ctx context.Context, memorySessionID string) ([]*models.Observation, error) {
	start := time.Now()
	obs, err := s.next.GetObservationsForSession(ctx, memorySessionID)
	return obs, s.observe(ctx, "session observations", start, err)
}

func (s *Store) GetRecentObservations(ctx context.Context, project string, limit int) ([]*models.Observation, error) {
	start := time.Now()
	obs, err := s.next.GetRecentObservations(ctx, project, limit)
	return obs, s.observe(ctx, "recent observations", start, err)
}

func (s *Store) GetAllRecentObservations(ctx context.Context, limit int) ([]*models.Observation, error) {
	start := time.Now()
	obs, err := s.next.GetAllRecentObservations(ctx, limit)
	return obs, s.observe(ctx, "all recent observations", start, err)
}

func (s *Store) GetFilesForSession(ctx context.Context, memorySessionID string) ([]string, error) {
	start := time.Now()
	files, err := s.next.GetFilesForSession(ctx, memorySessionID)
	return files, s.observe(ctx, "session files", start, err)
}

// Summary operations

func (s *Store) StoreSummary(ctx context.Context, memorySessionID, project string, summary *models.ParsedSummary, promptNumber int, discoveryTokens int64, opts ...db.WriteOption) (int64, int64, error) {
	start := time.Now()
	id, epoch, err := s.next.StoreSummary(ctx, memorySessionID, project, summary, promptNumber, discoveryTokens, opts...)
	return id, epoch, s.observe(ctx, "store summary", start, err)
}

func (s *Store) GetSummaryForSession(ctx context.Context, memorySessionID string) (*models.SessionSummary, error) {
	start := time.Now()
	sum, err := s.next.GetSummaryForSession(ctx, memorySessionID)
	return sum, s.observe(ctx, "session summary", start, err)
}

func (s *Store) GetRecentSummaries(ctx context.Context, project string, limit int) ([]*models.SessionSummary, error) {
	start := time.Now()
	sums, err := s.next.GetRecentSummaries(ctx, project, limit)
	return sums, s.observe(ctx, "recent summaries", start, err)
}

func (s *Store) GetAllRecentSummaries(ctx context.Context, limit int) ([]*models.SessionSummary, error) {
	start := time.Now()
	sums, err := s.next.GetAllRecentSummaries(ctx, limit)
	return sums, s.observe(ctx, "all recent summaries", start, err)
}

// Prompt operations

func (s *Store) SaveUserPrompt(ctx context.Context, contentSessionID string, promptNumber int, promptText string, opts ...db.WriteOption) (int64, error) {
	start := time.Now()
	id, err := s.next.SaveUserPrompt(ctx, contentSessionID, promptNumber, promptText, opts...)
	return id, s.observe(ctx, "save prompt", start, err)
}

func (s *Store) GetUserPrompt(ctx context.Context, contentSessionID string, promptNumber int) (*models.UserPrompt, error) {
	start := time.Now()
	p, err := s.next.GetUserPrompt(ctx, contentSessionID, promptNumber)
	return p, s.observe(ctx, "get prompt", start, err)
}

func (s *Store) GetLatestUserPrompt(ctx context.Context, contentSessionID string) (*models.UserPrompt, error) {
	start := time.Now()
	p, err := s.next.GetLatestUserPrompt(ctx, contentSessionID)
	return p, s.observe(ctx, "latest prompt", start, err)
}

func (s *Store) GetPromptCount(ctx context.Context, contentSessionID string) (int, error) {
	start := time.Now()
	n, err := s.next.GetPromptCount(ctx, contentSessionID)
	return n, s.observe(ctx, "prompt count", start, err)
}

func (s *Store) GetAllRecentUserPrompts(ctx context.Context, limit int) ([]*models.UserPromptWithSession, error) {
	start := time.Now()
	prompts, err := s.next.GetAllRecentUserPrompts(ctx, limit)
	return prompts, s.observe(ctx, "all recent prompts", start, err)
}

// Queue operations

func (s *Store) EnqueuePendingMessage(ctx context.Context, msg *models.PendingMessage, opts ...db.WriteOption) (int64, error) {
	start := time.Now()
	id, err := s.next.EnqueuePendingMessage(ctx, msg, opts...)
	return id, s.observe(ctx, "enqueue", start, err)
}

func (s *Store) GetPendingMessages(ctx context.Context, sessionDBID int64) ([]*models.PendingMessage, error) {
	start := time.Now()
	msgs, err := s.next.GetPendingMessages(ctx, sessionDBID)
	return msgs, s.observe(ctx, "pending messages", start, err)
}

func (s *Store) ClaimNextPendingMessage(ctx context.Context, sessionDBID int64, opts ...db.WriteOption) (*models.PendingMessage, error) {
	start := time.Now()
	msg, err := s.next.ClaimNextPendingMessage(ctx, sessionDBID, opts...)
	return msg, s.observe(ctx, "claim", start, err)
}

func (s *Store) CompletePendingMessage(ctx context.Context, id int64) error {
	start := time.Now()
	return s.observe(ctx, "complete message", start, s.next.CompletePendingMessage(ctx, id))
}

func (s *Store) FailPendingMessage(ctx context.Context, id int64, opts ...db.WriteOption) error {
	start := time.Now()
	return s.observe(ctx, "fail message", start, s.next.FailPendingMessage(ctx, id, opts...))
}

// Batch operations

func (s *Store) StoreObservationsAndSummary(ctx context.Context, memorySessionID, project string, observations []*models.ParsedObservation, summary *models.ParsedSummary, promptNumber int, discoveryTokens int64, opts ...db.WriteOption) (*db.BatchResult, error) {
	start := time.Now()
	res, err := s.next.StoreObservationsAndSummary(ctx, memorySessionID, project, observations, summary, promptNumber, discoveryTokens, opts...)
	return res, s.observe(ctx, "store batch", start, err)
}
