package queries

import (
	"context"
	"strings"

	"chorus/contexts/moderation-core/consensus-engine/domain/entities"
	domainerrors "chorus/contexts/moderation-core/consensus-engine/domain/errors"
	"chorus/contexts/moderation-core/consensus-engine/ports"
)

// ItemProgress is the read-model view of where an item stands against quorum.
type ItemProgress struct {
	Item           entities.Validatable
	Accepts        int
	Rejects        int
	RequiredQuorum int
}

type ProgressUseCase struct {
	Items       ports.ItemRepository
	Validations ports.ValidationRepository
	Config      ports.ConfigProvider
}

func (uc ProgressUseCase) GetItemProgress(ctx context.Context, itemID string) (ItemProgress, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return ItemProgress{}, domainerrors.ErrItemNotFound
	}
	item, err := uc.Items.GetItem(ctx, itemID)
	if err != nil {
		return ItemProgress{}, err
	}
	active, err := uc.Validations.ListActiveValidations(ctx, itemID)
	if err != nil {
		return ItemProgress{}, err
	}
	progress := ItemProgress{
		Item:           item,
		RequiredQuorum: uc.Config.Snapshot(ctx).RequiredQuorum[item.Kind],
	}
	for _, row := range active {
		if row.IsValid {
			progress.Accepts++
		} else {
			progress.Rejects++
		}
	}
	return progress, nil
}

func (uc ProgressUseCase) ListPendingItems(
	ctx context.Context,
	kind entities.ItemKind,
	locale string,
	limit int,
) ([]entities.Validatable, error) {
	if limit <= 0 {
		limit = 50
	}
	return uc.Items.ListPendingItems(ctx, kind, strings.TrimSpace(locale), limit)
}
