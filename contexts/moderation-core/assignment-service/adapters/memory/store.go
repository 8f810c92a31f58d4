package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"chorus/contexts/moderation-core/assignment-service/domain/entities"
	domainerrors "chorus/contexts/moderation-core/assignment-service/domain/errors"
	"chorus/contexts/moderation-core/assignment-service/ports"

	"github.com/google/uuid"
)

// Store backs the assignment ports with in-process maps, including a seedable
// item catalog standing in for the consensus engine's tables.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	assignments map[string]entities.Assignment
	items       map[string]ports.CatalogItem
	voted       map[string]map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		assignments: make(map[string]entities.Assignment),
		items:       make(map[string]ports.CatalogItem),
		voted:       make(map[string]map[string]struct{}),
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

func (s *Store) SeedItem(item ports.CatalogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[strings.TrimSpace(item.ItemID)] = item
}

func (s *Store) SeedVote(validatorID string, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(validatorID))
	if s.voted[key] == nil {
		s.voted[key] = make(map[string]struct{})
	}
	s.voted[key][strings.TrimSpace(itemID)] = struct{}{}
}

func (s *Store) GetLiveAssignment(
	_ context.Context,
	userID string,
	workType entities.WorkType,
) (entities.Assignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, assignment := range s.assignments {
		if strings.EqualFold(assignment.UserID, strings.TrimSpace(userID)) && assignment.WorkType == workType {
			return assignment, true, nil
		}
	}
	return entities.Assignment{}, false, nil
}

func (s *Store) SaveAssignment(_ context.Context, assignment entities.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[assignment.AssignmentID] = assignment
	return nil
}

func (s *Store) DeleteAssignment(_ context.Context, assignmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[strings.TrimSpace(assignmentID)]; !ok {
		return domainerrors.ErrAssignmentNotFound
	}
	delete(s.assignments, strings.TrimSpace(assignmentID))
	return nil
}

func (s *Store) ListAssignmentsCreatedBefore(
	_ context.Context,
	workType entities.WorkType,
	before time.Time,
	limit int,
) ([]entities.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assignments := make([]entities.Assignment, 0, limit)
	for _, assignment := range s.assignments {
		if assignment.WorkType == workType && assignment.CreatedAt.Before(before) {
			assignments = append(assignments, assignment)
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].CreatedAt.Equal(assignments[j].CreatedAt) {
			return assignments[i].AssignmentID < assignments[j].AssignmentID
		}
		return assignments[i].CreatedAt.Before(assignments[j].CreatedAt)
	})
	if limit > 0 && len(assignments) > limit {
		assignments = assignments[:limit]
	}
	return assignments, nil
}

func (s *Store) ListHeldItemIDs(_ context.Context, workType entities.WorkType) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, assignment := range s.assignments {
		if assignment.WorkType != workType {
			continue
		}
		for _, id := range assignment.ItemIDs {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ListEligibleItems(
	_ context.Context,
	kind string,
	locale string,
	excludeSubmitterID string,
	excludeItemIDs []string,
	limit int,
) ([]ports.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	excluded := make(map[string]struct{}, len(excludeItemIDs))
	for _, id := range excludeItemIDs {
		excluded[id] = struct{}{}
	}
	items := make([]ports.CatalogItem, 0, limit)
	for _, item := range s.items {
		if item.Kind != kind || item.Status != "pending" {
			continue
		}
		if !strings.EqualFold(item.Locale, locale) {
			continue
		}
		if strings.EqualFold(item.SubmitterID, excludeSubmitterID) {
			continue
		}
		if _, skip := excluded[item.ItemID]; skip {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ItemID < items[j].ItemID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) GetItemsByIDs(_ context.Context, itemIDs []string) ([]ports.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ports.CatalogItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		if item, ok := s.items[strings.TrimSpace(id)]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *Store) MarkInReview(_ context.Context, itemIDs []string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := 0
	for _, id := range itemIDs {
		if item, ok := s.items[strings.TrimSpace(id)]; ok && item.Status == "pending" {
			item.Status = "in_review"
			s.items[strings.TrimSpace(id)] = item
			marked++
		}
	}
	if marked < len(itemIDs) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (s *Store) ReleaseToPending(_ context.Context, itemIDs []string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range itemIDs {
		if item, ok := s.items[strings.TrimSpace(id)]; ok && item.Status == "in_review" {
			item.Status = "pending"
			s.items[strings.TrimSpace(id)] = item
		}
	}
	return nil
}

func (s *Store) ListVotedItemIDs(_ context.Context, validatorID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0)
	for id := range s.voted[strings.ToLower(strings.TrimSpace(validatorID))] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.AssignmentRepository = (*Store)(nil)
var _ ports.ItemCatalog = (*Store)(nil)
var _ ports.VotedItemsSource = (*Store)(nil)
var _ ports.TxRunner = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
