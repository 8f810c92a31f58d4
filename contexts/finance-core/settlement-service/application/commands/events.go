package commands

import (
	"context"
	"encoding/json"
	"time"

	"chorus/contexts/finance-core/settlement-service/domain/entities"
	"chorus/contexts/finance-core/settlement-service/ports"

	"github.com/google/uuid"
)

// appendTransactionEvent writes a lifecycle event through the outbox. A nil
// writer is a no-op so read-only wiring does not need an outbox.
func appendTransactionEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	eventType string,
	transaction entities.Transaction,
	occurredAt time.Time,
) error {
	if outbox == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]any{
		"transaction_id": transaction.TransactionID,
		"user_id":        transaction.UserID,
		"direction":      string(transaction.Direction),
		"amount_minor":   transaction.AmountMinor,
		"status":         string(transaction.Status),
		"occurred_at":    occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		SourceService: "settlement-service",
		OccurredAt:    occurredAt,
		PartitionKey:  transaction.TransactionID,
		SchemaVersion: 1,
		Data:          payload,
	})
}
