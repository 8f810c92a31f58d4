package ports

import (
	"context"
	"time"

	"chorus/contexts/moderation-core/consensus-engine/domain/entities"
)

// ItemRepository owns validatable persistence. GetItemForUpdate must acquire
// a row-level lock when called inside a TxRunner scope so that two votes
// racing past the quorum check serialize on the item row.
type ItemRepository interface {
	GetItem(ctx context.Context, itemID string) (entities.Validatable, error)
	GetItemForUpdate(ctx context.Context, itemID string) (entities.Validatable, error)
	SaveItem(ctx context.Context, item entities.Validatable) error
	ListPendingItems(ctx context.Context, kind entities.ItemKind, locale string, limit int) ([]entities.Validatable, error)
}

// ValidationRepository owns vote rows. Uniqueness of the active
// (validator, item) pair is enforced by the adapter.
type ValidationRepository interface {
	SaveValidation(ctx context.Context, row entities.Validation) error
	GetActiveValidation(ctx context.Context, itemID string, validatorID string) (entities.Validation, bool, error)
	ListActiveValidations(ctx context.Context, itemID string) ([]entities.Validation, error)
	ArchiveValidations(ctx context.Context, itemID string, archivedAt time.Time) (int, error)
	CountActiveByValidator(ctx context.Context, validatorID string) (int, error)
	ListVotedItemIDs(ctx context.Context, validatorID string) ([]string, error)
}

// TranscriptionRepository lists the independent text submissions attached to
// an audio item, used for normalized-equality agreement.
type TranscriptionRepository interface {
	ListTranscriptionTexts(ctx context.Context, audioItemID string) ([]string, error)
}

// TxRunner scopes a function to one storage transaction. Repositories called
// with the ctx it passes down participate in that transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ConfigSnapshot is the versioned configuration injected into each operation,
// so quorum changes mid-flight never produce partially applied decisions.
type ConfigSnapshot struct {
	RequiredQuorum    map[entities.ItemKind]int
	MaxVotesPerUser   int
	LeaseTTL          map[string]time.Duration
	CompensationMinor map[string]int64
}

// ConfigProvider yields the current snapshot. Implementations may reload at
// runtime; callers hold one snapshot for the whole operation.
type ConfigProvider interface {
	Snapshot(ctx context.Context) ConfigSnapshot
}

// EventEnvelope is the outbox event shape shared with the worker relay.
type EventEnvelope struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	SourceService string    `json:"source_service"`
	OccurredAt    time.Time `json:"occurred_at"`
	PartitionKey  string    `json:"partition_key"`
	SchemaVersion int       `json:"schema_version"`
	Data          []byte    `json:"data"`
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, envelope EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
