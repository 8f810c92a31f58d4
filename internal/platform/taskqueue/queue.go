package taskqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one unit of delayed work on a topic.
type Task struct {
	Topic   string
	Payload []byte
	RunAt   time.Time
}

// Queue is the delayed task runner used by worker processes. Current
// implementation is in-process with timer-based delivery while runtime
// wiring is finalized for an external broker; delivery is at-least-once and
// handlers must be idempotent.
type Queue struct {
	mu       sync.RWMutex
	handlers map[string][]func(context.Context, []byte) error
	logger   *slog.Logger
}

func NewQueue(logger *slog.Logger) *Queue {
	return &Queue{
		handlers: make(map[string][]func(context.Context, []byte) error),
		logger:   logger,
	}
}

// Enqueue schedules payload for delivery on topic after delay. A zero delay
// delivers on the next timer tick.
func (q *Queue) Enqueue(ctx context.Context, topic string, payload []byte, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	body := append([]byte(nil), payload...)
	time.AfterFunc(delay, func() {
		q.deliver(context.WithoutCancel(ctx), topic, body)
	})
	if q.logger != nil {
		q.logger.Debug("task enqueued",
			"event", "taskqueue_enqueued",
			"module", "internal/platform/taskqueue",
			"layer", "platform",
			"topic", topic,
			"delay", delay.String(),
		)
	}
	return nil
}

// Subscribe registers handler for a topic. Handlers run on the delivery
// goroutine; a returned error is logged and the task dropped, so handlers
// own their retry policy (usually by re-enqueueing).
func (q *Queue) Subscribe(topic string, handler func(context.Context, []byte) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = append(q.handlers[topic], handler)
}

func (q *Queue) deliver(ctx context.Context, topic string, payload []byte) {
	q.mu.RLock()
	handlers := append([]func(context.Context, []byte) error(nil), q.handlers[topic]...)
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, payload); err != nil && q.logger != nil {
			q.logger.Error("task handler failed",
				"event", "taskqueue_handler_failed",
				"module", "internal/platform/taskqueue",
				"layer", "platform",
				"topic", topic,
				"error", err.Error(),
			)
		}
	}
}
