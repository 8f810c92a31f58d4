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

// RecordVoteCommand is the write-model input for a validator's judgement.
type RecordVoteCommand struct {
	ItemID      string
	ValidatorID string
	Judgement   entities.Judgement
}

// RecordVoteResult carries the status the item held after this vote was
// evaluated, plus the persisted validation row.
type RecordVoteResult struct {
	Status     entities.ItemStatus
	Validation entities.Validation
}

// VoteUseCase records judgements and evaluates quorum. The whole operation
// runs inside one storage transaction with a row lock on the item, so two
// quorum-reaching votes arriving together serialize and produce exactly one
// terminal status.
type VoteUseCase struct {
	Items          ports.ItemRepository
	Validations    ports.ValidationRepository
	Transcriptions ports.TranscriptionRepository
	Tx             ports.TxRunner
	Config         ports.ConfigProvider
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Logger         *slog.Logger
}

func (uc VoteUseCase) RecordVote(ctx context.Context, cmd RecordVoteCommand) (RecordVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	itemID := strings.TrimSpace(cmd.ItemID)
	validatorID := strings.TrimSpace(cmd.ValidatorID)
	if itemID == "" || validatorID == "" ||
		(cmd.Judgement != entities.JudgementAccept && cmd.Judgement != entities.JudgementReject) {
		logger.Warn("vote record validation failed",
			"event", "consensus_vote_record_validation_failed",
			"module", "moderation-core/consensus-engine",
			"layer", "application",
			"item_id", itemID,
			"validator_id", validatorID,
		)
		return RecordVoteResult{}, domainerrors.ErrInvalidVoteInput
	}

	snapshot := uc.Config.Snapshot(ctx)
	now := uc.now()

	var result RecordVoteResult
	err := uc.Tx.InTx(ctx, func(ctx context.Context) error {
		item, err := uc.Items.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Deleted {
			return domainerrors.ErrItemDeleted
		}
		if strings.EqualFold(item.SubmitterID, validatorID) {
			return domainerrors.ErrSelfValidation
		}
		if item.Terminal() {
			return domainerrors.ErrItemDecided
		}
		if _, found, err := uc.Validations.GetActiveValidation(ctx, itemID, validatorID); err != nil {
			return err
		} else if found {
			return domainerrors.ErrDuplicateVote
		}
		if snapshot.MaxVotesPerUser > 0 {
			count, err := uc.Validations.CountActiveByValidator(ctx, validatorID)
			if err != nil {
				return err
			}
			if count >= snapshot.MaxVotesPerUser {
				return domainerrors.ErrVoteQuotaExceeded
			}
		}

		validationID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		row := entities.Validation{
			ValidationID: validationID,
			ItemID:       itemID,
			ValidatorID:  validatorID,
			IsValid:      cmd.Judgement == entities.JudgementAccept,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := uc.Validations.SaveValidation(ctx, row); err != nil {
			return err
		}

		status, err := uc.evaluate(ctx, item, snapshot)
		if err != nil {
			return err
		}
		result = RecordVoteResult{Status: status, Validation: row}
		return nil
	})
	if err != nil {
		return RecordVoteResult{}, err
	}

	logger.Info("vote recorded",
		"event", "consensus_vote_recorded",
		"module", "moderation-core/consensus-engine",
		"layer", "application",
		"item_id", itemID,
		"validator_id", validatorID,
		"judgement", string(cmd.Judgement),
		"status", string(result.Status),
	)
	return result, nil
}

// evaluate recomputes the item status from the active validation rows and
// persists it. The advisory counter is refreshed in the same write.
func (uc VoteUseCase) evaluate(
	ctx context.Context,
	item entities.Validatable,
	snapshot ports.ConfigSnapshot,
) (entities.ItemStatus, error) {
	active, err := uc.Validations.ListActiveValidations(ctx, item.ItemID)
	if err != nil {
		return item.Status, err
	}
	required := snapshot.RequiredQuorum[item.Kind]

	status := entities.Decide(item.Status, active, required)
	if item.Kind == entities.ItemKindTranscription && len(active) >= required && required > 0 {
		// Transcription agreement is textual, not boolean: the quorum of
		// independent submissions must normalize identically.
		texts, err := uc.Transcriptions.ListTranscriptionTexts(ctx, item.ItemID)
		if err != nil {
			return item.Status, err
		}
		status = entities.DecideTranscription(item.Status, texts, required)
	}

	item.ActiveVoteCount = len(active)
	previous := item.Status
	item.Status = status
	item.UpdatedAt = uc.now()
	if err := uc.Items.SaveItem(ctx, item); err != nil {
		return previous, err
	}

	if status != previous && status != entities.ItemStatusPending && status != entities.ItemStatusInReview {
		if err := uc.appendDecisionEvent(ctx, item, status); err != nil {
			return status, err
		}
	}
	return status, nil
}

func (uc VoteUseCase) appendDecisionEvent(
	ctx context.Context,
	item entities.Validatable,
	status entities.ItemStatus,
) error {
	eventType := ""
	switch status {
	case entities.ItemStatusAccepted:
		eventType = "item.accepted"
	case entities.ItemStatusRejected:
		eventType = "item.rejected"
	case entities.ItemStatusConflict:
		eventType = "item.conflict"
	default:
		return nil
	}
	return appendItemEvent(ctx, uc.Outbox, uc.IDGen, eventType, item, uc.now(), map[string]any{
		"active_vote_count": item.ActiveVoteCount,
	})
}

func (uc VoteUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
