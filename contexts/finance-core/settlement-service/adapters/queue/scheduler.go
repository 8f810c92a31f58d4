package queueadapter

import (
	"context"
	"encoding/json"

	"chorus/contexts/finance-core/settlement-service/ports"
	"chorus/internal/platform/taskqueue"
)

// RecheckTopic carries scheduled status polls for pending transactions.
const RecheckTopic = "settlement.recheck"

type recheckPayload struct {
	TransactionID string `json:"transaction_id"`
	Rounds        int    `json:"rounds"`
	WaitSeconds   int64  `json:"wait_seconds"`
}

// Scheduler enqueues status rechecks on the shared task queue. The wait is
// both the queue delay and the next doubling input.
type Scheduler struct {
	Queue *taskqueue.Queue
}

func (s Scheduler) ScheduleRecheck(ctx context.Context, task ports.RecheckTask) error {
	payload, err := json.Marshal(recheckPayload{
		TransactionID: task.TransactionID,
		Rounds:        task.Rounds,
		WaitSeconds:   int64(task.Wait.Seconds()),
	})
	if err != nil {
		return err
	}
	return s.Queue.Enqueue(ctx, RecheckTopic, payload, task.Wait)
}

var _ ports.TaskScheduler = Scheduler{}
