package ports

import (
	"context"
	"time"

	"chorus/contexts/finance-core/settlement-service/domain/entities"
)

// TransactionRepository owns transaction rows. GetTransactionForUpdate must
// take a row lock inside a TxRunner scope so settlement and status rechecks
// serialize per transaction.
type TransactionRepository interface {
	GetTransaction(ctx context.Context, transactionID string) (entities.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, transactionID string) (entities.Transaction, error)
	SaveTransaction(ctx context.Context, transaction entities.Transaction) error
	ListTransactionsByUser(ctx context.Context, userID string, limit int) ([]entities.Transaction, error)
}

type WalletRepository interface {
	GetWallet(ctx context.Context, userID string) (entities.Wallet, error)
	GetWalletForUpdate(ctx context.Context, userID string) (entities.Wallet, error)
	SaveWallet(ctx context.Context, wallet entities.Wallet) error
}

// PaymentRequest is the outbound provider call shape shared by deposits and
// payouts.
type PaymentRequest struct {
	TransactionID string
	AmountMinor   int64
	PhoneNumber   string
	Network       string
	Note          string
}

// ProviderResponse is the decoded provider reply. Raw keeps the body for the
// transaction audit column.
type ProviderResponse struct {
	Code    string
	Message string
	Raw     string
}

// PaymentProvider is the unreliable external processor. Implementations must
// bound every call with a timeout; a transport failure surfaces as
// ErrProviderUnavailable and a body that cannot be decoded as
// ErrProviderResponseInvalid.
type PaymentProvider interface {
	Collect(ctx context.Context, req PaymentRequest) (ProviderResponse, error)
	Disburse(ctx context.Context, req PaymentRequest) (ProviderResponse, error)
	CheckStatus(ctx context.Context, transactionID string) (ProviderResponse, error)
}

// RecheckTask re-enters the status polling loop for one transaction. Wait is
// the delay before the attempt; Rounds counts attempts left.
type RecheckTask struct {
	TransactionID string
	Rounds        int
	Wait          time.Duration
}

type TaskScheduler interface {
	ScheduleRecheck(ctx context.Context, task RecheckTask) error
}

// ContributorStats feeds payout accrual: accepted work counts per user and
// kind, as decided by the consensus engine.
type WorkCounts struct {
	UserID   string
	ByKind   map[string]int
	Locale   string
	Currency string
}

type ContributorStats interface {
	ListAcceptedWorkCounts(ctx context.Context) ([]WorkCounts, error)
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ConfigSnapshot carries the settlement knobs held constant for one
// operation.
type ConfigSnapshot struct {
	RecheckRounds     int
	RecheckWait       time.Duration
	CompensationMinor map[string]int64
	MinPayoutMinor    int64
}

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

// IDGenerator mints transaction identifiers. The provider requires them to
// be numeric strings, so implementations derive them from the clock.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
