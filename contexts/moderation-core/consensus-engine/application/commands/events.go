package commands

import (
	"context"
	"encoding/json"
	"time"

	"chorus/contexts/moderation-core/consensus-engine/domain/entities"
	"chorus/contexts/moderation-core/consensus-engine/ports"
)

// appendItemEvent writes a decision event through the outbox. A nil writer is
// a no-op so pure read/test wiring does not need an outbox.
func appendItemEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idgen ports.IDGenerator,
	eventType string,
	item entities.Validatable,
	occurredAt time.Time,
	metadata map[string]any,
) error {
	if outbox == nil {
		return nil
	}
	eventID, err := idgen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"item_id":     item.ItemID,
		"kind":        string(item.Kind),
		"locale":      item.Locale,
		"status":      string(item.Status),
		"occurred_at": occurredAt.Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		SourceService: "consensus-engine",
		OccurredAt:    occurredAt,
		PartitionKey:  item.ItemID,
		SchemaVersion: 1,
		Data:          payload,
	})
}
