package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "chorus/contexts/finance-core/settlement-service/application"
	"chorus/contexts/finance-core/settlement-service/application/commands"
	domainerrors "chorus/contexts/finance-core/settlement-service/domain/errors"
)

type recheckPayload struct {
	TransactionID string `json:"transaction_id"`
	Rounds        int    `json:"rounds"`
	WaitSeconds   int64  `json:"wait_seconds"`
}

// TaskSubscriber is the queue side the consumer attaches to.
type TaskSubscriber interface {
	Subscribe(topic string, handler func(context.Context, []byte) error)
}

// RecheckConsumer drains scheduled status polls and feeds them back into the
// settlement state machine.
type RecheckConsumer struct {
	Subscriber TaskSubscriber
	Settlement commands.SettlementUseCase
	Topic      string
	Logger     *slog.Logger
}

func (c RecheckConsumer) Start(_ context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	topic := c.Topic
	if topic == "" {
		topic = "settlement.recheck"
	}
	c.Subscriber.Subscribe(topic, c.handle)
	logger.Info("settlement recheck consumer subscribed",
		"event", "settlement_recheck_consumer_subscribed",
		"module", "finance-core/settlement-service",
		"layer", "worker",
		"topic", topic,
	)
	return nil
}

func (c RecheckConsumer) handle(ctx context.Context, payload []byte) error {
	logger := application.ResolveLogger(c.Logger)
	var task recheckPayload
	if err := json.Unmarshal(payload, &task); err != nil {
		logger.Error("recheck payload decode failed",
			"event", "settlement_recheck_decode_failed",
			"module", "finance-core/settlement-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if task.TransactionID == "" {
		logger.Warn("recheck payload invalid",
			"event", "settlement_recheck_payload_invalid",
			"module", "finance-core/settlement-service",
			"layer", "worker",
		)
		return domainerrors.ErrInvalidTransactionInput
	}
	return c.Settlement.RecheckStatus(ctx, task.TransactionID, task.Rounds, time.Duration(task.WaitSeconds)*time.Second)
}
