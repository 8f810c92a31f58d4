package workers

import (
	"context"
	"log/slog"
	"time"

	application "chorus/contexts/moderation-core/consensus-engine/application"
	"chorus/contexts/moderation-core/consensus-engine/ports"
)

// OutboxRelay drains pending decision events and hands them to the bus. Rows
// are marked published only after a successful publish, so a crash replays the
// tail rather than losing it.
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
		topic = "moderation.decisions"
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list pending failed",
			"event", "consensus_outbox_list_failed",
			"module", "moderation-core/consensus-engine",
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
			SourceService: "consensus-engine",
			OccurredAt:    message.CreatedAt,
			PartitionKey:  message.PartitionKey,
			SchemaVersion: 1,
			Data:          message.Payload,
		}
		if err := r.Publisher.Publish(ctx, topic, envelope); err != nil {
			logger.Error("outbox publish failed",
				"event", "consensus_outbox_publish_failed",
				"module", "moderation-core/consensus-engine",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"event_type", message.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, message.OutboxID, now); err != nil {
			logger.Error("outbox mark published failed",
				"event", "consensus_outbox_mark_published_failed",
				"module", "moderation-core/consensus-engine",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("outbox relay cycle completed",
			"event", "consensus_outbox_relay_completed",
			"module", "moderation-core/consensus-engine",
			"layer", "worker",
			"sent_count", len(pending),
		)
	}
	return nil
}
