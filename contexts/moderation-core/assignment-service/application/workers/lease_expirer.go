package workers

import (
	"context"
	"log/slog"

	application "chorus/contexts/moderation-core/assignment-service/application"
	"chorus/contexts/moderation-core/assignment-service/domain/entities"
	"chorus/contexts/moderation-core/assignment-service/ports"
)

// LeaseExpirer sweeps assignments past their TTL and returns the held items
// to the shared pool. Deleting the assignment row is the release; recorded
// votes are never touched.
type LeaseExpirer struct {
	Assignments ports.AssignmentRepository
	Catalog     ports.ItemCatalog
	Tx          ports.TxRunner
	Config      ports.Config
	Clock       ports.Clock
	BatchSize   int
	Logger      *slog.Logger
}

func (w LeaseExpirer) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	limit := w.BatchSize
	if limit <= 0 {
		limit = 100
	}
	now := w.Clock.Now().UTC()

	expired := 0
	for _, workType := range []entities.WorkType{
		entities.WorkTypeValidation,
		entities.WorkTypeTranscription,
		entities.WorkTypeResolution,
	} {
		ttl := w.Config.LeaseTTL(workType)
		if ttl <= 0 {
			continue
		}
		cutoff := now.Add(-ttl)
		assignments, err := w.Assignments.ListAssignmentsCreatedBefore(ctx, workType, cutoff, limit)
		if err != nil {
			logger.Error("lease expiry listing failed",
				"event", "assignment_expiry_list_failed",
				"module", "moderation-core/assignment-service",
				"layer", "worker",
				"work_type", string(workType),
				"error", err.Error(),
			)
			return err
		}
		for _, assignment := range assignments {
			err := w.Tx.InTx(ctx, func(ctx context.Context) error {
				if err := w.Assignments.DeleteAssignment(ctx, assignment.AssignmentID); err != nil {
					return err
				}
				return w.Catalog.ReleaseToPending(ctx, assignment.ItemIDs, now)
			})
			if err != nil {
				logger.Error("lease expiry sweep failed",
					"event", "assignment_expiry_sweep_failed",
					"module", "moderation-core/assignment-service",
					"layer", "worker",
					"assignment_id", assignment.AssignmentID,
					"work_type", string(workType),
					"error", err.Error(),
				)
				return err
			}
			expired++
		}
	}

	if expired > 0 {
		logger.Info("expired leases swept",
			"event", "assignment_expiry_swept",
			"module", "moderation-core/assignment-service",
			"layer", "worker",
			"expired_count", expired,
		)
	}
	return nil
}
