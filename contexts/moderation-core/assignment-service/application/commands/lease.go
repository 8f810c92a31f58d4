package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "chorus/contexts/moderation-core/assignment-service/application"
	"chorus/contexts/moderation-core/assignment-service/domain/entities"
	domainerrors "chorus/contexts/moderation-core/assignment-service/domain/errors"
	"chorus/contexts/moderation-core/assignment-service/ports"
)

type LeaseCommand struct {
	UserID   string
	WorkType entities.WorkType
	ItemKind string
	Locale   string
	Limit    int
}

// LeaseResult holds the live assignment plus the items that are still worth
// working on. Items decided since the lease was taken are filtered out.
type LeaseResult struct {
	Assignment entities.Assignment
	Items      []ports.CatalogItem
}

// LeaseUseCase hands out work batches. A second lease request while an
// assignment is live is non-destructive: it re-derives the still-eligible
// subset of the held items instead of claiming new ones.
type LeaseUseCase struct {
	Assignments ports.AssignmentRepository
	Catalog     ports.ItemCatalog
	Voted       ports.VotedItemsSource
	Tx          ports.TxRunner
	Config      ports.Config
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

func (uc LeaseUseCase) Lease(ctx context.Context, cmd LeaseCommand) (LeaseResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	userID := strings.TrimSpace(cmd.UserID)
	locale := strings.TrimSpace(cmd.Locale)
	kind := strings.TrimSpace(cmd.ItemKind)
	if userID == "" || locale == "" || kind == "" {
		return LeaseResult{}, domainerrors.ErrInvalidLeaseInput
	}
	if !entities.KnownWorkType(cmd.WorkType) {
		return LeaseResult{}, domainerrors.ErrUnknownWorkType
	}
	limit := cmd.Limit
	if limit <= 0 {
		limit = uc.Config.LeaseBatchSize()
	}

	now := uc.now()
	var result LeaseResult
	err := uc.Tx.InTx(ctx, func(ctx context.Context) error {
		live, found, err := uc.Assignments.GetLiveAssignment(ctx, userID, cmd.WorkType)
		if err != nil {
			return err
		}
		if found && !live.Expired(now, uc.Config.LeaseTTL(cmd.WorkType)) {
			items, err := uc.stillWorkable(ctx, userID, live.ItemIDs)
			if err != nil {
				return err
			}
			result = LeaseResult{Assignment: live, Items: items}
			return nil
		}
		if found {
			// Expired but not yet swept; release it here so this user can
			// take a fresh batch without waiting on the expirer.
			if err := uc.Assignments.DeleteAssignment(ctx, live.AssignmentID); err != nil {
				return err
			}
			if err := uc.Catalog.ReleaseToPending(ctx, live.ItemIDs, now); err != nil {
				return err
			}
		}

		excluded, err := uc.excludedItemIDs(ctx, userID, cmd.WorkType)
		if err != nil {
			return err
		}
		eligible, err := uc.Catalog.ListEligibleItems(ctx, kind, locale, userID, excluded, limit)
		if err != nil {
			return err
		}
		if len(eligible) == 0 {
			result = LeaseResult{}
			return nil
		}

		assignmentID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		itemIDs := make([]string, 0, len(eligible))
		for _, item := range eligible {
			itemIDs = append(itemIDs, item.ItemID)
		}
		assignment := entities.Assignment{
			AssignmentID: assignmentID,
			UserID:       userID,
			WorkType:     cmd.WorkType,
			ItemKind:     kind,
			Locale:       locale,
			ItemIDs:      itemIDs,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := uc.Assignments.SaveAssignment(ctx, assignment); err != nil {
			return err
		}
		// Leased items leave the pending pool for every kind. The status flip
		// is what keeps a concurrent lease of the same work type from handing
		// the same items out twice; the held-ID exclusion above is advisory.
		if err := uc.Catalog.MarkInReview(ctx, itemIDs, now); err != nil {
			return err
		}
		result = LeaseResult{Assignment: assignment, Items: eligible}
		return nil
	})
	if err != nil {
		return LeaseResult{}, err
	}

	logger.Info("work batch leased",
		"event", "assignment_lease_granted",
		"module", "moderation-core/assignment-service",
		"layer", "application",
		"user_id", userID,
		"work_type", string(cmd.WorkType),
		"item_kind", kind,
		"locale", locale,
		"item_count", len(result.Items),
	)
	return result, nil
}

// Release gives a batch back before the TTL runs out, e.g. when the client
// finishes early or abandons the session.
func (uc LeaseUseCase) Release(ctx context.Context, userID string, workType entities.WorkType) error {
	logger := application.ResolveLogger(uc.Logger)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domainerrors.ErrInvalidLeaseInput
	}
	if !entities.KnownWorkType(workType) {
		return domainerrors.ErrUnknownWorkType
	}
	now := uc.now()
	err := uc.Tx.InTx(ctx, func(ctx context.Context) error {
		live, found, err := uc.Assignments.GetLiveAssignment(ctx, userID, workType)
		if err != nil {
			return err
		}
		if !found {
			return domainerrors.ErrAssignmentNotFound
		}
		if err := uc.Assignments.DeleteAssignment(ctx, live.AssignmentID); err != nil {
			return err
		}
		return uc.Catalog.ReleaseToPending(ctx, live.ItemIDs, now)
	})
	if err != nil {
		return err
	}
	logger.Info("work batch released",
		"event", "assignment_lease_released",
		"module", "moderation-core/assignment-service",
		"layer", "application",
		"user_id", userID,
		"work_type", string(workType),
	)
	return nil
}

// stillWorkable re-derives eligibility for a held batch: items decided,
// deleted, or already voted by this user since the lease drop out.
func (uc LeaseUseCase) stillWorkable(
	ctx context.Context,
	userID string,
	itemIDs []string,
) ([]ports.CatalogItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	items, err := uc.Catalog.GetItemsByIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	voted, err := uc.Voted.ListVotedItemIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	votedSet := make(map[string]struct{}, len(voted))
	for _, id := range voted {
		votedSet[id] = struct{}{}
	}
	workable := make([]ports.CatalogItem, 0, len(items))
	for _, item := range items {
		if item.Status != "pending" && item.Status != "in_review" {
			continue
		}
		if _, done := votedSet[item.ItemID]; done {
			continue
		}
		workable = append(workable, item)
	}
	return workable, nil
}

func (uc LeaseUseCase) excludedItemIDs(
	ctx context.Context,
	userID string,
	workType entities.WorkType,
) ([]string, error) {
	voted, err := uc.Voted.ListVotedItemIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	held, err := uc.Assignments.ListHeldItemIDs(ctx, workType)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(voted)+len(held))
	excluded := make([]string, 0, len(voted)+len(held))
	for _, id := range append(voted, held...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		excluded = append(excluded, id)
	}
	return excluded, nil
}

func (uc LeaseUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
