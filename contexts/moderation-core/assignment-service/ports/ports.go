package ports

import (
	"context"
	"time"

	"chorus/contexts/moderation-core/assignment-service/domain/entities"
)

// AssignmentRepository owns assignment rows. Live means not yet deleted by
// the expirer; expiry itself is computed by callers from CreatedAt.
type AssignmentRepository interface {
	GetLiveAssignment(ctx context.Context, userID string, workType entities.WorkType) (entities.Assignment, bool, error)
	SaveAssignment(ctx context.Context, assignment entities.Assignment) error
	DeleteAssignment(ctx context.Context, assignmentID string) error
	ListAssignmentsCreatedBefore(ctx context.Context, workType entities.WorkType, before time.Time, limit int) ([]entities.Assignment, error)
	ListHeldItemIDs(ctx context.Context, workType entities.WorkType) ([]string, error)
}

// CatalogItem is the assignment-side projection of a validatable item.
type CatalogItem struct {
	ItemID      string
	Kind        string
	Locale      string
	SubmitterID string
	Status      string
	Text        string
	Category    string
}

// ItemCatalog reads and transitions items owned by the consensus engine.
// MarkInReview is all-or-nothing: when any of the items already left the
// pending pool the whole call fails, so racing leases never split a batch.
type ItemCatalog interface {
	ListEligibleItems(ctx context.Context, kind string, locale string, excludeSubmitterID string, excludeItemIDs []string, limit int) ([]CatalogItem, error)
	GetItemsByIDs(ctx context.Context, itemIDs []string) ([]CatalogItem, error)
	MarkInReview(ctx context.Context, itemIDs []string, at time.Time) error
	ReleaseToPending(ctx context.Context, itemIDs []string, at time.Time) error
}

// VotedItemsSource reports the items a validator already judged, so a lease
// never hands someone work they have finished.
type VotedItemsSource interface {
	ListVotedItemIDs(ctx context.Context, validatorID string) ([]string, error)
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Config carries the lease knobs. TTLs are per work type.
type Config interface {
	LeaseTTL(workType entities.WorkType) time.Duration
	LeaseBatchSize() int
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
