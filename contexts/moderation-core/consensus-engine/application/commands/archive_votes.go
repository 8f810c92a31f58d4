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

// ArchiveVotesCommand reopens an item for a re-validation campaign. Existing
// votes are archived (kept for audit, excluded from quorum) and the item
// returns to the shared pending pool.
type ArchiveVotesCommand struct {
	ItemID     string
	OperatorID string
}

type ArchiveUseCase struct {
	Items       ports.ItemRepository
	Validations ports.ValidationRepository
	Tx          ports.TxRunner
	Clock       ports.Clock
	Logger      *slog.Logger
}

func (uc ArchiveUseCase) ArchiveVotes(ctx context.Context, cmd ArchiveVotesCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return domainerrors.ErrInvalidVoteInput
	}

	now := uc.now()
	return uc.Tx.InTx(ctx, func(ctx context.Context) error {
		item, err := uc.Items.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		archived, err := uc.Validations.ArchiveValidations(ctx, itemID, now)
		if err != nil {
			return err
		}
		item.Status = entities.ItemStatusPending
		item.ActiveVoteCount = 0
		item.ConflictResolvedBy = ""
		item.CorrectedValue = ""
		item.UpdatedAt = now
		if err := uc.Items.SaveItem(ctx, item); err != nil {
			return err
		}
		logger.Info("item votes archived",
			"event", "consensus_votes_archived",
			"module", "moderation-core/consensus-engine",
			"layer", "application",
			"item_id", itemID,
			"operator_id", strings.TrimSpace(cmd.OperatorID),
			"archived_count", archived,
		)
		return nil
	})
}

func (uc ArchiveUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
