package workers

import (
	"context"
	"log/slog"
	"time"

	application "chorus/contexts/finance-core/settlement-service/application"
	"chorus/contexts/finance-core/settlement-service/ports"
)

// OutboxRelay publishes settled-transaction events recorded alongside wallet
// updates. Publish-then-mark keeps delivery at-least-once.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.Publisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	topic := r.Topic
	if topic == "" {
		topic = "finance.settlements"
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list pending failed",
			"event", "settlement_outbox_list_failed",
			"module", "finance-core/settlement-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, message := range pending {
		envelope := ports.EventEnvelope{
			EventID:       message.OutboxID,
			EventType:     message.EventType,
			SourceService: "settlement-service",
			OccurredAt:    message.CreatedAt,
			PartitionKey:  message.PartitionKey,
			SchemaVersion: 1,
			Data:          message.Payload,
		}
		if err := r.Publisher.Publish(ctx, topic, envelope); err != nil {
			logger.Error("outbox publish failed",
				"event", "settlement_outbox_publish_failed",
				"module", "finance-core/settlement-service",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"event_type", message.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, message.OutboxID, now); err != nil {
			logger.Error("outbox mark published failed",
				"event", "settlement_outbox_mark_published_failed",
				"module", "finance-core/settlement-service",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("outbox relay cycle completed",
			"event", "settlement_outbox_relay_completed",
			"module", "finance-core/settlement-service",
			"layer", "worker",
			"sent_count", len(pending),
		)
	}
	return nil
}
