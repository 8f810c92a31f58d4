package entities

import "time"

type WorkType string

const (
	WorkTypeValidation    WorkType = "validation"
	WorkTypeTranscription WorkType = "transcription"
	WorkTypeResolution    WorkType = "resolution"
)

// Assignment is one user's live lease over a batch of items. A user holds at
// most one live assignment per work type; expiry is derived from CreatedAt
// plus the configured TTL, never stored.
type Assignment struct {
	AssignmentID string
	UserID       string
	WorkType     WorkType
	ItemKind     string
	Locale       string
	ItemIDs      []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a Assignment) ExpiresAt(ttl time.Duration) time.Time {
	return a.CreatedAt.Add(ttl)
}

func (a Assignment) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.After(a.ExpiresAt(ttl))
}

func KnownWorkType(workType WorkType) bool {
	switch workType {
	case WorkTypeValidation, WorkTypeTranscription, WorkTypeResolution:
		return true
	default:
		return false
	}
}
