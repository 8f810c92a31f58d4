package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "chorus/contexts/moderation-core/consensus-engine/application"
	"chorus/contexts/moderation-core/consensus-engine/domain/entities"
	domainerrors "chorus/contexts/moderation-core/consensus-engine/domain/errors"
	"chorus/contexts/moderation-core/consensus-engine/ports"
)

// ResolveConflictCommand is the privileged override for items whose votes
// disagree irreconcilably.
type ResolveConflictCommand struct {
	ItemID         string
	ResolverID     string
	CorrectedValue string
}

type ResolveUseCase struct {
	Items  ports.ItemRepository
	Tx     ports.TxRunner
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// ResolveConflict sets the canonical corrected value and accepts the item.
// First resolver wins: a retry or a second resolver racing in finds
// conflict_resolved_by already set and returns without changing anything.
func (uc ResolveUseCase) ResolveConflict(ctx context.Context, cmd ResolveConflictCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	itemID := strings.TrimSpace(cmd.ItemID)
	resolverID := strings.TrimSpace(cmd.ResolverID)
	corrected := strings.TrimSpace(cmd.CorrectedValue)
	if itemID == "" || resolverID == "" || corrected == "" {
		logger.Warn("conflict resolution validation failed",
			"event", "consensus_resolve_validation_failed",
			"module", "moderation-core/consensus-engine",
			"layer", "application",
			"item_id", itemID,
			"resolver_id", resolverID,
		)
		return domainerrors.ErrInvalidResolution
	}

	now := uc.now()
	return uc.Tx.InTx(ctx, func(ctx context.Context) error {
		item, err := uc.Items.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Deleted {
			return domainerrors.ErrItemDeleted
		}
		if item.Resolved() {
			// Idempotent against retries of the winning resolver; a second
			// resolver is surfaced so the caller knows their value lost.
			if strings.EqualFold(item.ConflictResolvedBy, resolverID) {
				return nil
			}
			return domainerrors.ErrAlreadyResolved
		}
		if item.Status != entities.ItemStatusConflict {
			return domainerrors.ErrNotInConflict
		}

		item.CorrectedValue = corrected
		switch item.Kind {
		case entities.ItemKindTranscription:
			item.Text = corrected
		case entities.ItemKindImage:
			item.Category = corrected
		}
		item.ConflictResolvedBy = resolverID
		item.Status = entities.ItemStatusAccepted
		item.UpdatedAt = now
		if err := uc.Items.SaveItem(ctx, item); err != nil {
			return err
		}
		if err := appendItemEvent(ctx, uc.Outbox, uc.IDGen, "item.resolved", item, now, map[string]any{
			"resolved_by": resolverID,
		}); err != nil {
			return err
		}
		logger.Info("conflict resolved",
			"event", "consensus_conflict_resolved",
			"module", "moderation-core/consensus-engine",
			"layer", "application",
			"item_id", itemID,
			"resolver_id", resolverID,
		)
		return nil
	})
}

func (uc ResolveUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
