package workers

import (
	"context"
	"errors"
	"log/slog"

	application "chorus/contexts/finance-core/settlement-service/application"
	"chorus/contexts/finance-core/settlement-service/domain/entities"
	domainerrors "chorus/contexts/finance-core/settlement-service/domain/errors"
	"chorus/contexts/finance-core/settlement-service/ports"
)

// AccrualJob recomputes wallet accruals from accepted work counts and the
// configured compensation rates. The recompute is idempotent: the accrued
// figure is derived, so running twice converges to the same number. It never
// lowers an accrual, which keeps manual adjustments safe.
type AccrualJob struct {
	Stats   ports.ContributorStats
	Wallets ports.WalletRepository
	Tx      ports.TxRunner
	Config  ports.ConfigProvider
	Clock   ports.Clock
	Logger  *slog.Logger
}

func (j AccrualJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	snapshot := j.Config.Snapshot(ctx)
	counts, err := j.Stats.ListAcceptedWorkCounts(ctx)
	if err != nil {
		logger.Error("accrual stats listing failed",
			"event", "settlement_accrual_list_failed",
			"module", "finance-core/settlement-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	updated := 0
	for _, row := range counts {
		var accrued int64
		byKind := make(map[string]int64, len(row.ByKind))
		for kind, count := range row.ByKind {
			amount := snapshot.CompensationMinor[kind] * int64(count)
			byKind[kind] = amount
			accrued += amount
		}
		if accrued <= 0 {
			continue
		}
		err := j.Tx.InTx(ctx, func(ctx context.Context) error {
			wallet, err := j.Wallets.GetWalletForUpdate(ctx, row.UserID)
			if err != nil {
				if !errors.Is(err, domainerrors.ErrWalletNotFound) {
					return err
				}
				wallet = entities.Wallet{UserID: row.UserID}
			}
			if accrued <= wallet.AccruedMinor {
				return nil
			}
			wallet.AccruedMinor = accrued
			wallet.AudioBenefitMinor = byKind["audio"]
			wallet.ImageBenefitMinor = byKind["image"]
			wallet.TranscriptionBenefitMinor = byKind["transcription"]
			wallet.UpdatedAt = j.Clock.Now().UTC()
			return j.Wallets.SaveWallet(ctx, wallet)
		})
		if err != nil {
			logger.Error("accrual wallet update failed",
				"event", "settlement_accrual_update_failed",
				"module", "finance-core/settlement-service",
				"layer", "worker",
				"user_id", row.UserID,
				"error", err.Error(),
			)
			return err
		}
		updated++
	}

	logger.Debug("accrual cycle completed",
		"event", "settlement_accrual_cycle_completed",
		"module", "finance-core/settlement-service",
		"layer", "worker",
		"users_considered", len(counts),
		"users_updated", updated,
	)
	return nil
}
