package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"chorus/contexts/moderation-core/consensus-engine/domain/entities"
	domainerrors "chorus/contexts/moderation-core/consensus-engine/domain/errors"
	"chorus/contexts/moderation-core/consensus-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store backs every consensus port with in-process maps. InTx serializes
// whole transaction scopes under one mutex, which stands in for the row lock
// the postgres adapter takes.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	items       map[string]entities.Validatable
	validations map[string]entities.Validation
	outbox      map[string]outboxRecord
}

func NewStore(seed []entities.Validatable) *Store {
	items := make(map[string]entities.Validatable, len(seed))
	for _, item := range seed {
		items[item.ItemID] = item
	}
	return &Store{
		items:       items,
		validations: make(map[string]entities.Validation),
		outbox:      make(map[string]outboxRecord),
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

func (s *Store) SeedItem(item entities.Validatable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[strings.TrimSpace(item.ItemID)] = item
}

func (s *Store) GetItem(_ context.Context, itemID string) (entities.Validatable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[strings.TrimSpace(itemID)]
	if !ok {
		return entities.Validatable{}, domainerrors.ErrItemNotFound
	}
	return item, nil
}

func (s *Store) GetItemForUpdate(ctx context.Context, itemID string) (entities.Validatable, error) {
	return s.GetItem(ctx, itemID)
}

func (s *Store) SaveItem(_ context.Context, item entities.Validatable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[strings.TrimSpace(item.ItemID)] = item
	return nil
}

func (s *Store) ListPendingItems(
	_ context.Context,
	kind entities.ItemKind,
	locale string,
	limit int,
) ([]entities.Validatable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Validatable, 0, limit)
	for _, item := range s.items {
		if item.Deleted || item.Kind != kind {
			continue
		}
		if item.Status != entities.ItemStatusPending && item.Status != entities.ItemStatusInReview {
			continue
		}
		if locale != "" && !strings.EqualFold(item.Locale, locale) {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ItemID < items[j].ItemID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) SaveValidation(_ context.Context, row entities.Validation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.validations {
		if existing.ValidationID == row.ValidationID {
			continue
		}
		if !existing.Archived &&
			existing.ItemID == row.ItemID &&
			strings.EqualFold(existing.ValidatorID, row.ValidatorID) &&
			!row.Archived {
			return domainerrors.ErrDuplicateVote
		}
	}
	s.validations[row.ValidationID] = row
	return nil
}

func (s *Store) GetActiveValidation(
	_ context.Context,
	itemID string,
	validatorID string,
) (entities.Validation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.validations {
		if !row.Archived && row.ItemID == strings.TrimSpace(itemID) &&
			strings.EqualFold(row.ValidatorID, strings.TrimSpace(validatorID)) {
			return row, true, nil
		}
	}
	return entities.Validation{}, false, nil
}

func (s *Store) ListActiveValidations(_ context.Context, itemID string) ([]entities.Validation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]entities.Validation, 0, 4)
	for _, row := range s.validations {
		if !row.Archived && row.ItemID == strings.TrimSpace(itemID) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ValidationID < rows[j].ValidationID
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	return rows, nil
}

func (s *Store) ArchiveValidations(_ context.Context, itemID string, archivedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	archived := 0
	for id, row := range s.validations {
		if !row.Archived && row.ItemID == strings.TrimSpace(itemID) {
			row.Archived = true
			row.UpdatedAt = archivedAt.UTC()
			s.validations[id] = row
			archived++
		}
	}
	return archived, nil
}

func (s *Store) CountActiveByValidator(_ context.Context, validatorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, row := range s.validations {
		if !row.Archived && strings.EqualFold(row.ValidatorID, strings.TrimSpace(validatorID)) {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListVotedItemIDs(_ context.Context, validatorID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, row := range s.validations {
		if !row.Archived && strings.EqualFold(row.ValidatorID, strings.TrimSpace(validatorID)) {
			seen[row.ItemID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ListTranscriptionTexts returns the texts of every transcription attached to
// the same audio as the given transcription item, including its own.
func (s *Store) ListTranscriptionTexts(_ context.Context, itemID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[strings.TrimSpace(itemID)]
	if !ok {
		return nil, domainerrors.ErrItemNotFound
	}
	siblings := make([]entities.Validatable, 0, 4)
	for _, candidate := range s.items {
		if candidate.Deleted || candidate.Kind != entities.ItemKindTranscription {
			continue
		}
		sameAudio := item.ParentItemID != "" && candidate.ParentItemID == item.ParentItemID
		if !sameAudio && candidate.ItemID != item.ItemID {
			continue
		}
		siblings = append(siblings, candidate)
	}
	sort.Slice(siblings, func(i, j int) bool {
		if siblings[i].CreatedAt.Equal(siblings[j].CreatedAt) {
			return siblings[i].ItemID < siblings[j].ItemID
		}
		return siblings[i].CreatedAt.Before(siblings[j].CreatedAt)
	})
	texts := make([]string, 0, len(siblings))
	for _, sibling := range siblings {
		texts = append(texts, sibling.Text)
	}
	return texts, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
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

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.ItemRepository = (*Store)(nil)
var _ ports.ValidationRepository = (*Store)(nil)
var _ ports.TranscriptionRepository = (*Store)(nil)
var _ ports.TxRunner = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
