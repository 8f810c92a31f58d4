package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "chorus/contexts/finance-core/settlement-service/application"
	"chorus/contexts/finance-core/settlement-service/domain/entities"
	domainerrors "chorus/contexts/finance-core/settlement-service/domain/errors"
	"chorus/contexts/finance-core/settlement-service/ports"
)

// maxRecheckWait caps the doubling delay between status polls.
const maxRecheckWait = 5 * time.Minute

// SettlementUseCase drives a transaction from creation through provider
// execution, status polling, and exactly-once wallet settlement.
//
// Provider calls happen outside the storage transaction: holding a row lock
// across an external HTTP call would stall every concurrent settlement of the
// same row. A duplicate submission racing in is absorbed by the provider's
// own duplicate detection (code 106), which maps back to pending.
type SettlementUseCase struct {
	Transactions ports.TransactionRepository
	Wallets      ports.WalletRepository
	Provider     ports.PaymentProvider
	Scheduler    ports.TaskScheduler
	Tx           ports.TxRunner
	Config       ports.ConfigProvider
	Outbox       ports.OutboxWriter
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	Logger       *slog.Logger
}

// Execute submits the transaction to the provider if it has not been
// accepted yet, applies the response, and settles or schedules polling as
// the response dictates. Safe to call repeatedly: a successful transaction
// is a no-op, an accepted one falls through to a status recheck.
func (uc SettlementUseCase) Execute(ctx context.Context, transactionID string) error {
	logger := application.ResolveLogger(uc.Logger)
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return domainerrors.ErrInvalidTransactionInput
	}
	snapshot := uc.Config.Snapshot(ctx)

	transaction, err := uc.Transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if transaction.Status == entities.TransactionStatusSuccess {
		return nil
	}
	if transaction.AcceptedByProvider {
		return uc.RecheckStatus(ctx, transactionID, snapshot.RecheckRounds, snapshot.RecheckWait)
	}

	response, err := uc.submit(ctx, transaction)
	if err != nil {
		// Transport failure or malformed body: state is untouched so the
		// caller can retry without risking a duplicate settlement.
		logger.Error("provider execution failed",
			"event", "settlement_provider_execute_failed",
			"module", "finance-core/settlement-service",
			"layer", "application",
			"transaction_id", transactionID,
			"direction", string(transaction.Direction),
			"error", err.Error(),
		)
		return err
	}

	now := uc.now()
	return uc.Tx.InTx(ctx, func(ctx context.Context) error {
		current, err := uc.Transactions.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if current.Status == entities.TransactionStatusSuccess {
			return nil
		}
		current.AcceptedByProvider = true
		current.ResponseData = response.Raw
		current.StatusMessage = response.Message
		current.UpdatedAt = now

		status, known := entities.StatusFromProviderCode(response.Code)
		if !known {
			logger.Warn("provider returned unknown status code",
				"event", "settlement_provider_code_unknown",
				"module", "finance-core/settlement-service",
				"layer", "application",
				"transaction_id", transactionID,
				"provider_code", response.Code,
			)
			if err := uc.Transactions.SaveTransaction(ctx, current); err != nil {
				return err
			}
			return uc.scheduleRecheck(ctx, transactionID, snapshot.RecheckRounds, snapshot.RecheckWait)
		}

		current.Status = status
		if err := uc.Transactions.SaveTransaction(ctx, current); err != nil {
			return err
		}
		switch status {
		case entities.TransactionStatusSuccess:
			return uc.settle(ctx, current)
		case entities.TransactionStatusPending:
			return uc.scheduleRecheck(ctx, transactionID, snapshot.RecheckRounds, snapshot.RecheckWait)
		default:
			logger.Info("transaction failed at provider",
				"event", "settlement_transaction_failed",
				"module", "finance-core/settlement-service",
				"layer", "application",
				"transaction_id", transactionID,
				"provider_code", response.Code,
			)
			return nil
		}
	})
}

// Retry converges a transaction stuck anywhere in the lifecycle: not yet
// accepted means re-submit, otherwise re-poll the provider.
func (uc SettlementUseCase) Retry(ctx context.Context, transactionID string) error {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return domainerrors.ErrInvalidTransactionInput
	}
	transaction, err := uc.Transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if transaction.Status == entities.TransactionStatusSuccess && transaction.WalletUpdated {
		return nil
	}
	snapshot := uc.Config.Snapshot(ctx)
	if !transaction.AcceptedByProvider {
		return uc.Execute(ctx, transactionID)
	}
	return uc.RecheckStatus(ctx, transactionID, snapshot.RecheckRounds, snapshot.RecheckWait)
}

// RecheckStatus polls the provider once and either finalizes the transaction
// or schedules the next poll with a doubled wait. Rounds counts attempts
// left; when it runs out the transaction stays pending for a later sweep.
func (uc SettlementUseCase) RecheckStatus(ctx context.Context, transactionID string, rounds int, wait time.Duration) error {
	logger := application.ResolveLogger(uc.Logger)
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return domainerrors.ErrInvalidTransactionInput
	}

	transaction, err := uc.Transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if transaction.Status == entities.TransactionStatusSuccess && transaction.WalletUpdated {
		return nil
	}
	if transaction.Status == entities.TransactionStatusSuccess {
		return uc.Tx.InTx(ctx, func(ctx context.Context) error {
			current, err := uc.Transactions.GetTransactionForUpdate(ctx, transactionID)
			if err != nil {
				return err
			}
			return uc.settle(ctx, current)
		})
	}

	response, err := uc.Provider.CheckStatus(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrProviderUnavailable) && rounds > 1 {
			return uc.scheduleRecheck(ctx, transactionID, rounds-1, nextWait(wait))
		}
		logger.Error("provider status check failed",
			"event", "settlement_status_check_failed",
			"module", "finance-core/settlement-service",
			"layer", "application",
			"transaction_id", transactionID,
			"rounds_left", rounds,
			"error", err.Error(),
		)
		return err
	}

	status, known := entities.StatusFromProviderCode(response.Code)
	if !known || status == entities.TransactionStatusPending {
		if rounds > 1 {
			return uc.scheduleRecheck(ctx, transactionID, rounds-1, nextWait(wait))
		}
		logger.Warn("status polling exhausted",
			"event", "settlement_status_polling_exhausted",
			"module", "finance-core/settlement-service",
			"layer", "application",
			"transaction_id", transactionID,
			"provider_code", response.Code,
		)
		return nil
	}

	now := uc.now()
	return uc.Tx.InTx(ctx, func(ctx context.Context) error {
		current, err := uc.Transactions.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if current.Status == entities.TransactionStatusSuccess && current.WalletUpdated {
			return nil
		}
		current.Status = status
		current.StatusMessage = response.Message
		current.ResponseData = response.Raw
		current.UpdatedAt = now
		if err := uc.Transactions.SaveTransaction(ctx, current); err != nil {
			return err
		}
		if status == entities.TransactionStatusSuccess {
			return uc.settle(ctx, current)
		}
		logger.Info("transaction failed at provider",
			"event", "settlement_transaction_failed",
			"module", "finance-core/settlement-service",
			"layer", "application",
			"transaction_id", transactionID,
			"provider_code", response.Code,
		)
		return nil
	})
}

// settle applies the wallet movement exactly once. Must run inside a TxRunner
// scope with the transaction row already locked.
func (uc SettlementUseCase) settle(ctx context.Context, transaction entities.Transaction) error {
	logger := application.ResolveLogger(uc.Logger)
	if transaction.Status != entities.TransactionStatusSuccess {
		return domainerrors.ErrInvalidTransactionInput
	}
	if transaction.WalletUpdated {
		return nil
	}
	now := uc.now()

	wallet, err := uc.Wallets.GetWalletForUpdate(ctx, transaction.UserID)
	if err != nil {
		if !errors.Is(err, domainerrors.ErrWalletNotFound) {
			return err
		}
		wallet = entities.Wallet{UserID: transaction.UserID}
	}
	switch transaction.Direction {
	case entities.DirectionDeposit:
		wallet.DepositMinor += transaction.AmountMinor
	case entities.DirectionPayout:
		wallet.TotalPayoutMinor += transaction.AmountMinor
	default:
		return domainerrors.ErrInvalidTransactionInput
	}
	wallet.UpdatedAt = now
	if err := uc.Wallets.SaveWallet(ctx, wallet); err != nil {
		return err
	}

	transaction.WalletUpdated = true
	transaction.UpdatedAt = now
	if err := uc.Transactions.SaveTransaction(ctx, transaction); err != nil {
		return err
	}
	if err := appendTransactionEvent(ctx, uc.Outbox, "transaction.settled", transaction, now); err != nil {
		return err
	}
	logger.Info("transaction settled",
		"event", "settlement_wallet_updated",
		"module", "finance-core/settlement-service",
		"layer", "application",
		"transaction_id", transaction.TransactionID,
		"user_id", transaction.UserID,
		"direction", string(transaction.Direction),
		"amount_minor", transaction.AmountMinor,
	)
	return nil
}

func (uc SettlementUseCase) submit(ctx context.Context, transaction entities.Transaction) (ports.ProviderResponse, error) {
	req := ports.PaymentRequest{
		TransactionID: transaction.TransactionID,
		AmountMinor:   transaction.AmountMinor,
		PhoneNumber:   transaction.PhoneNumber,
		Network:       transaction.Network,
		Note:          transaction.Note,
	}
	if transaction.Direction == entities.DirectionPayout {
		return uc.Provider.Disburse(ctx, req)
	}
	return uc.Provider.Collect(ctx, req)
}

func (uc SettlementUseCase) scheduleRecheck(ctx context.Context, transactionID string, rounds int, wait time.Duration) error {
	if uc.Scheduler == nil || rounds <= 0 {
		return nil
	}
	return uc.Scheduler.ScheduleRecheck(ctx, ports.RecheckTask{
		TransactionID: transactionID,
		Rounds:        rounds,
		Wait:          wait,
	})
}

func nextWait(wait time.Duration) time.Duration {
	if wait <= 0 {
		wait = time.Second
	}
	doubled := wait * 2
	if doubled > maxRecheckWait {
		return maxRecheckWait
	}
	return doubled
}

func (uc SettlementUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
