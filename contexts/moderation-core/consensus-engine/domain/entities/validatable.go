package entities

import "time"

type ItemKind string

const (
	ItemKindImage         ItemKind = "image"
	ItemKindAudio         ItemKind = "audio"
	ItemKindTranscription ItemKind = "transcription"
)

type ItemStatus string

const (
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusInReview ItemStatus = "in_review"
	ItemStatusAccepted ItemStatus = "accepted"
	ItemStatusRejected ItemStatus = "rejected"
	ItemStatusConflict ItemStatus = "conflict"
)

// Validatable is one artifact under moderation: an image, an audio clip, or a
// transcription of an audio clip. ActiveVoteCount is a denormalized display
// counter; quorum decisions are always re-derived from validation rows.
type Validatable struct {
	ItemID             string
	Kind               ItemKind
	Locale             string
	SubmitterID        string
	ParentItemID       string // audio the transcription belongs to, empty otherwise
	Status             ItemStatus
	ActiveVoteCount    int
	Text               string // transcription body, empty for other kinds
	Category           string // image category, empty for other kinds
	CorrectedValue     string
	ConflictResolvedBy string
	Deleted            bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Terminal reports whether the item has reached a quorum decision.
// Conflict is terminal for voting purposes; only a resolver can move it on.
func (v Validatable) Terminal() bool {
	switch v.Status {
	case ItemStatusAccepted, ItemStatusRejected, ItemStatusConflict:
		return true
	default:
		return false
	}
}

func (v Validatable) Resolved() bool {
	return v.ConflictResolvedBy != ""
}
