package gorm

import (
	"github.com/thebtf/engram-storage/pkg/models"
)

func toModelSession(row *SDKSession) *models.SDKSession {
	return &models.SDKSession{
		ID:               row.ID,
		ContentSessionID: row.ContentSessionID,
		MemorySessionID:  row.MemorySessionID,
		Project:          row.Project,
		UserPrompt:       row.UserPrompt,
		Status:           models.SessionStatus(row.Status),
		StartedAt:        row.StartedAt,
		StartedAtEpoch:   row.StartedAtEpoch,
		CompletedAt:      row.CompletedAt,
		CompletedAtEpoch: row.CompletedAtEpoch,
	}
}

func toDBObservation(obs *models.Observation) *Observation {
	return &Observation{
		MemorySessionID: obs.MemorySessionID,
		Project:         obs.Project,
		Type:            obs.Type,
		Title:           obs.Title,
		Subtitle:        obs.Subtitle,
		Narrative:       obs.Narrative,
		Facts:           obs.Facts,
		Concepts:        obs.Concepts,
		FilesRead:       obs.FilesRead,
		FilesModified:   obs.FilesModified,
		PromptNumber:    obs.PromptNumber,
		DiscoveryTokens: obs.DiscoveryTokens,
		CreatedAt:       obs.CreatedAt,
		CreatedAtEpoch:  obs.CreatedAtEpoch,
	}
}

func toModelObservation(row *Observation) *models.Observation {
	return &models.Observation{
		ID:              row.ID,
		MemorySessionID: row.MemorySessionID,
		Project:         row.Project,
		Type:            row.Type,
		Title:           row.Title,
		Subtitle:        row.Subtitle,
		Narrative:       row.Narrative,
		Facts:           row.Facts,
		Concepts:        row.Concepts,
		FilesRead:       row.FilesRead,
		FilesModified:   row.FilesModified,
		PromptNumber:    row.PromptNumber,
		DiscoveryTokens: row.DiscoveryTokens,
		CreatedAt:       row.CreatedAt,
		CreatedAtEpoch:  row.CreatedAtEpoch,
	}
}

func toModelObservations(rows []Observation) []*models.Observation {
	result := make([]*models.Observation, len(rows))
	for i := range rows {
		result[i] = toModelObservation(&rows[i])
	}
	return result
}

func toDBSummary(summary *models.SessionSummary) *SessionSummary {
	return &SessionSummary{
		MemorySessionID: summary.MemorySessionID,
		Project:         summary.Project,
		Request:         summary.Request,
		Investigated:    summary.Investigated,
		Learned:         summary.Learned,
		Completed:       summary.Completed,
		NextSteps:       summary.NextSteps,
		Notes:           summary.Notes,
		FilesRead:       summary.FilesRead,
		FilesEdited:     summary.FilesEdited,
		PromptNumber:    summary.PromptNumber,
		DiscoveryTokens: summary.DiscoveryTokens,
		CreatedAt:       summary.CreatedAt,
		CreatedAtEpoch:  summary.CreatedAtEpoch,
	}
}

func toModelSummary(row *SessionSummary) *models.SessionSummary {
	return &models.SessionSummary{
		ID:              row.ID,
		MemorySessionID: row.MemorySessionID,
		Project:         row.Project,
		Request:         row.Request,
		Investigated:    row.Investigated,
		Learned:         row.Learned,
		Completed:       row.Completed,
		NextSteps:       row.NextSteps,
		Notes:           row.Notes,
		FilesRead:       row.FilesRead,
		FilesEdited:     row.FilesEdited,
		PromptNumber:    row.PromptNumber,
		DiscoveryTokens: row.DiscoveryTokens,
		CreatedAt:       row.CreatedAt,
		CreatedAtEpoch:  row.CreatedAtEpoch,
	}
}

func toModelSummaries(rows []SessionSummary) []*models.SessionSummary {
	result := make([]*models.SessionSummary, len(rows))
	for i := range rows {
		result[i] = toModelSummary(&rows[i])
	}
	return result
}

func toModelPrompt(row *UserPrompt) *models.UserPrompt {
	return &models.UserPrompt{
		ID:               row.ID,
		ContentSessionID: row.ContentSessionID,
		PromptNumber:     row.PromptNumber,
		PromptText:       row.PromptText,
		CreatedAt:        row.CreatedAt,
		CreatedAtEpoch:   row.CreatedAtEpoch,
	}
}

func toModelPending(row *PendingMessage) *models.PendingMessage {
	return &models.PendingMessage{
		ID:                       row.ID,
		SessionDBID:              row.SessionDBID,
		ContentSessionID:         row.ContentSessionID,
		MessageType:              models.PendingMessageType(row.MessageType),
		ToolName:                 row.ToolName,
		ToolInput:                row.ToolInput,
		ToolResponse:             row.ToolResponse,
		Cwd:                      row.Cwd,
		LastUserMessage:          row.LastUserMessage,
		LastAssistantMessage:     row.LastAssistantMessage,
		PromptNumber:             row.PromptNumber,
		Status:                   models.PendingStatus(row.Status),
		RetryCount:               row.RetryCount,
		CreatedAtEpoch:           row.CreatedAtEpoch,
		StartedProcessingAtEpoch: row.StartedProcessingAtEpoch,
		CompletedAtEpoch:         row.CompletedAtEpoch,
		FailedAtEpoch:            row.FailedAtEpoch,
	}
}
