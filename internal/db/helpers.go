package db

import (
	"github.com/thebtf/engram-storage/pkg/models"
)

// MergeSessionFiles returns the de-duplicated union of files read and modified,
// walking observations in the given order with reads before modifications.
func MergeSessionFiles(observations []*models.Observation) []string {
	seen := make(map[string]bool)
	files := make([]string, 0)
	add := func(list []string) {
		for _, f := range list {
			if f == "" || seen[f] {
				continue
			}
			seen[f] = true
			files = append(files, f)
		}
	}
	for _, obs := range observations {
		add(obs.FilesRead)
		add(obs.FilesModified)
	}
	return files
}

// ValidateObservation checks the fields every backend requires.
func ValidateObservation(obs *models.ParsedObservation) error {
	if obs == nil || !obs.Type.Valid() {
		var value string
		if obs != nil {
			value = string(obs.Type)
		}
		return InvalidObservationType(value)
	}
	return nil
}

// ValidSessionTransition reports whether status is a legal terminal state.
func ValidSessionTransition(status models.SessionStatus) bool {
	return status.IsTerminal()
}

// RequireContentSessionID rejects an empty content session id.
func RequireContentSessionID(contentSessionID string) error {
	if contentSessionID == "" {
		return InvalidArgument("content session id is required")
	}
	return nil
}

// RequirePromptNumber rejects prompt numbers below 1.
func RequirePromptNumber(promptNumber int) error {
	if promptNumber < 1 {
		return InvalidArgument("prompt number must be >= 1, got %d", promptNumber)
	}
	return nil
}

// ValidatePendingMessage checks a message before it is enqueued.
func ValidatePendingMessage(msg *models.PendingMessage) error {
	if msg == nil {
		return InvalidArgument("pending message is nil")
	}
	if msg.SessionDBID <= 0 {
		return InvalidArgument("pending message session id must be positive, got %d", msg.SessionDBID)
	}
	if err := RequireContentSessionID(msg.ContentSessionID); err != nil {
		return err
	}
	switch msg.MessageType {
	case models.PendingTypeObservation, models.PendingTypeSummarize:
		return nil
	default:
		return InvalidArgument("unknown pending message type %q", msg.MessageType)
	}
}
