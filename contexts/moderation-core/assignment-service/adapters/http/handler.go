package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"chorus/contexts/moderation-core/assignment-service/application/commands"
	"chorus/contexts/moderation-core/assignment-service/domain/entities"
	"chorus/contexts/moderation-core/assignment-service/ports"
	httptransport "chorus/contexts/moderation-core/assignment-service/transport/http"
)

type Handler struct {
	Leases commands.LeaseUseCase
	Config ports.Config
	Logger *slog.Logger
}

func (h Handler) LeaseHandler(
	ctx context.Context,
	userID string,
	locale string,
	req httptransport.LeaseRequest,
) (httptransport.LeaseResponse, error) {
	result, err := h.Leases.Lease(ctx, commands.LeaseCommand{
		UserID:   userID,
		WorkType: entities.WorkType(req.WorkType),
		ItemKind: req.ItemKind,
		Locale:   locale,
		Limit:    req.Limit,
	})
	if err != nil {
		return httptransport.LeaseResponse{}, err
	}
	response := httptransport.LeaseResponse{
		AssignmentID: result.Assignment.AssignmentID,
		WorkType:     req.WorkType,
		Items:        make([]httptransport.LeasedItem, 0, len(result.Items)),
	}
	if result.Assignment.AssignmentID != "" && h.Config != nil {
		ttl := h.Config.LeaseTTL(entities.WorkType(req.WorkType))
		if ttl > 0 {
			response.ExpiresAt = result.Assignment.ExpiresAt(ttl).UTC().Format(time.RFC3339)
		}
	}
	for _, item := range result.Items {
		response.Items = append(response.Items, httptransport.LeasedItem{
			ItemID:   item.ItemID,
			Kind:     item.Kind,
			Locale:   item.Locale,
			Text:     item.Text,
			Category: item.Category,
		})
	}
	return response, nil
}

func (h Handler) ReleaseHandler(
	ctx context.Context,
	userID string,
	req httptransport.ReleaseRequest,
) error {
	return h.Leases.Release(ctx, userID, entities.WorkType(req.WorkType))
}
