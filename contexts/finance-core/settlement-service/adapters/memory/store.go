package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chorus/contexts/finance-core/settlement-service/domain/entities"
	domainerrors "chorus/contexts/finance-core/settlement-service/domain/errors"
	"chorus/contexts/finance-core/settlement-service/ports"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store backs the settlement ports with in-process maps. InTx serializes
// transaction scopes under one mutex, standing in for the row locks the
// postgres adapter takes.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	transactions map[string]entities.Transaction
	wallets      map[string]entities.Wallet
	outbox       map[string]outboxRecord
	stats        []ports.WorkCounts

	idCounter atomic.Int64
}

func NewStore() *Store {
	return &Store{
		transactions: make(map[string]entities.Transaction),
		wallets:      make(map[string]entities.Wallet),
		outbox:       make(map[string]outboxRecord),
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

func (s *Store) SeedWallet(wallet entities.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[strings.TrimSpace(wallet.UserID)] = wallet
}

func (s *Store) SeedStats(counts []ports.WorkCounts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = counts
}

func (s *Store) GetTransaction(_ context.Context, transactionID string) (entities.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	transaction, ok := s.transactions[strings.TrimSpace(transactionID)]
	if !ok {
		return entities.Transaction{}, domainerrors.ErrTransactionNotFound
	}
	return transaction, nil
}

func (s *Store) GetTransactionForUpdate(ctx context.Context, transactionID string) (entities.Transaction, error) {
	return s.GetTransaction(ctx, transactionID)
}

func (s *Store) SaveTransaction(_ context.Context, transaction entities.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[strings.TrimSpace(transaction.TransactionID)] = transaction
	return nil
}

func (s *Store) ListTransactionsByUser(_ context.Context, userID string, limit int) ([]entities.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	transactions := make([]entities.Transaction, 0, limit)
	for _, transaction := range s.transactions {
		if strings.EqualFold(transaction.UserID, strings.TrimSpace(userID)) {
			transactions = append(transactions, transaction)
		}
	}
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.After(transactions[j].CreatedAt)
	})
	if limit > 0 && len(transactions) > limit {
		transactions = transactions[:limit]
	}
	return transactions, nil
}

func (s *Store) GetWallet(_ context.Context, userID string) (entities.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wallet, ok := s.wallets[strings.TrimSpace(userID)]
	if !ok {
		return entities.Wallet{}, domainerrors.ErrWalletNotFound
	}
	return wallet, nil
}

func (s *Store) GetWalletForUpdate(ctx context.Context, userID string) (entities.Wallet, error) {
	return s.GetWallet(ctx, userID)
}

func (s *Store) SaveWallet(_ context.Context, wallet entities.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[strings.TrimSpace(wallet.UserID)] = wallet
	return nil
}

func (s *Store) ListAcceptedWorkCounts(_ context.Context) ([]ports.WorkCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.WorkCounts(nil), s.stats...), nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.outbox[envelope.EventID]; exists {
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[envelope.EventID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      append([]byte(nil), envelope.Data...),
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := make([]ports.OutboxMessage, 0, limit)
	for _, record := range s.outbox {
		if !record.published {
			messages = append(messages, record.message)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].OutboxID < messages[j].OutboxID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	if len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	record.published = true
	s.outbox[strings.TrimSpace(outboxID)] = record
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

// NewID mints numeric transaction identifiers in the provider's expected
// shape: clock-derived digits with a counter suffix against same-tick
// collisions.
func (s *Store) NewID(_ context.Context) (string, error) {
	return fmt.Sprintf("%d%03d", time.Now().UnixMicro(), s.idCounter.Add(1)%1000), nil
}

var _ ports.TransactionRepository = (*Store)(nil)
var _ ports.WalletRepository = (*Store)(nil)
var _ ports.ContributorStats = (*Store)(nil)
var _ ports.TxRunner = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
