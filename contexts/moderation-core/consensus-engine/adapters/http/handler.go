package httpadapter

import (
	"context"
	"log/slog"

	"chorus/contexts/moderation-core/consensus-engine/application/commands"
	"chorus/contexts/moderation-core/consensus-engine/application/queries"
	"chorus/contexts/moderation-core/consensus-engine/domain/entities"
	httptransport "chorus/contexts/moderation-core/consensus-engine/transport/http"
)

type Handler struct {
	Votes    commands.VoteUseCase
	Resolve  commands.ResolveUseCase
	Archive  commands.ArchiveUseCase
	Progress queries.ProgressUseCase
	Logger   *slog.Logger
}

func (h Handler) RecordVoteHandler(
	ctx context.Context,
	itemID string,
	validatorID string,
	req httptransport.RecordVoteRequest,
) (httptransport.VoteResponse, error) {
	result, err := h.Votes.RecordVote(ctx, commands.RecordVoteCommand{
		ItemID:      itemID,
		ValidatorID: validatorID,
		Judgement:   entities.Judgement(req.Judgement),
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	judgement := string(entities.JudgementReject)
	if result.Validation.IsValid {
		judgement = string(entities.JudgementAccept)
	}
	return httptransport.VoteResponse{
		ValidationID: result.Validation.ValidationID,
		ItemID:       result.Validation.ItemID,
		ValidatorID:  result.Validation.ValidatorID,
		Judgement:    judgement,
		ItemStatus:   string(result.Status),
	}, nil
}

func (h Handler) ResolveConflictHandler(
	ctx context.Context,
	itemID string,
	resolverID string,
	req httptransport.ResolveConflictRequest,
) error {
	return h.Resolve.ResolveConflict(ctx, commands.ResolveConflictCommand{
		ItemID:         itemID,
		ResolverID:     resolverID,
		CorrectedValue: req.CorrectedValue,
	})
}

func (h Handler) ArchiveVotesHandler(
	ctx context.Context,
	itemID string,
	req httptransport.ArchiveVotesRequest,
) error {
	return h.Archive.ArchiveVotes(ctx, commands.ArchiveVotesCommand{
		ItemID:     itemID,
		OperatorID: req.OperatorID,
	})
}

func (h Handler) ItemProgressHandler(ctx context.Context, itemID string) (httptransport.ItemProgressResponse, error) {
	progress, err := h.Progress.GetItemProgress(ctx, itemID)
	if err != nil {
		return httptransport.ItemProgressResponse{}, err
	}
	return httptransport.ItemProgressResponse{
		ItemID:         progress.Item.ItemID,
		Kind:           string(progress.Item.Kind),
		Locale:         progress.Item.Locale,
		Status:         string(progress.Item.Status),
		Accepts:        progress.Accepts,
		Rejects:        progress.Rejects,
		RequiredQuorum: progress.RequiredQuorum,
		CorrectedValue: progress.Item.CorrectedValue,
	}, nil
}

func (h Handler) PendingItemsHandler(
	ctx context.Context,
	kind string,
	locale string,
	limit int,
) (httptransport.PendingItemsResponse, error) {
	items, err := h.Progress.ListPendingItems(ctx, entities.ItemKind(kind), locale, limit)
	if err != nil {
		return httptransport.PendingItemsResponse{}, err
	}
	response := httptransport.PendingItemsResponse{
		Items: make([]httptransport.PendingItem, 0, len(items)),
	}
	for _, item := range items {
		response.Items = append(response.Items, httptransport.PendingItem{
			ItemID:   item.ItemID,
			Kind:     string(item.Kind),
			Locale:   item.Locale,
			Text:     item.Text,
			Category: item.Category,
		})
	}
	return response, nil
}
