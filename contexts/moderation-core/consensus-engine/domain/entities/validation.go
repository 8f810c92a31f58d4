package entities

import (
	"strings"
	"time"
	"unicode"
)

type Judgement string

const (
	JudgementAccept Judgement = "accept"
	JudgementReject Judgement = "reject"
)

// Validation is one validator's recorded judgement on one item. Archived rows
// are kept for audit but never counted toward quorum.
type Validation struct {
	ValidationID string
	ItemID       string
	ValidatorID  string
	IsValid      bool
	Archived     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Decide computes the quorum outcome from the set of active validations.
// The result is a pure function of the multiset of judgements: arrival order
// never matters. Below quorum the current status is returned unchanged.
func Decide(current ItemStatus, active []Validation, requiredQuorum int) ItemStatus {
	if requiredQuorum <= 0 || len(active) < requiredQuorum {
		return current
	}
	accepts := 0
	for _, row := range active {
		if row.IsValid {
			accepts++
		}
	}
	switch {
	case accepts == len(active):
		return ItemStatusAccepted
	case accepts == 0:
		return ItemStatusRejected
	default:
		return ItemStatusConflict
	}
}

// DecideTranscription computes the outcome for transcription items, where
// agreement means the required number of independent submissions normalize to
// the same text. Disagreement past quorum is a conflict, never a rejection.
func DecideTranscription(current ItemStatus, texts []string, requiredQuorum int) ItemStatus {
	if requiredQuorum <= 0 || len(texts) < requiredQuorum {
		return current
	}
	first := NormalizeText(texts[0])
	for _, text := range texts[1:] {
		if NormalizeText(text) != first {
			return ItemStatusConflict
		}
	}
	return ItemStatusAccepted
}

// NormalizeText collapses whitespace and strips case and punctuation so that
// cosmetic differences between transcribers do not create conflicts.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}
