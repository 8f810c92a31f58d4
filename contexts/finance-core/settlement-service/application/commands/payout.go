package commands

import (
	"context"
	"strings"

	"chorus/contexts/finance-core/settlement-service/domain/entities"
	domainerrors "chorus/contexts/finance-core/settlement-service/domain/errors"
)

type RequestPayoutCommand struct {
	UserID      string
	AmountMinor int64
	PhoneNumber string
	Network     string
	Note        string
}

// RequestPayout reserves a payout against the wallet balance, records the
// transaction, and hands it to the provider. The balance check and the
// transaction insert share one storage transaction so two racing requests
// cannot both pass the check.
func (uc SettlementUseCase) RequestPayout(ctx context.Context, cmd RequestPayoutCommand) (entities.Transaction, error) {
	transaction, err := uc.createTransaction(ctx, cmd, entities.DirectionPayout)
	if err != nil {
		return entities.Transaction{}, err
	}
	if err := uc.Execute(ctx, transaction.TransactionID); err != nil {
		return transaction, err
	}
	return uc.Transactions.GetTransaction(ctx, transaction.TransactionID)
}

// CreateDeposit records an inbound collection and submits it. Deposits have
// no balance precondition.
func (uc SettlementUseCase) CreateDeposit(ctx context.Context, cmd RequestPayoutCommand) (entities.Transaction, error) {
	transaction, err := uc.createTransaction(ctx, cmd, entities.DirectionDeposit)
	if err != nil {
		return entities.Transaction{}, err
	}
	if err := uc.Execute(ctx, transaction.TransactionID); err != nil {
		return transaction, err
	}
	return uc.Transactions.GetTransaction(ctx, transaction.TransactionID)
}

func (uc SettlementUseCase) createTransaction(
	ctx context.Context,
	cmd RequestPayoutCommand,
	direction entities.Direction,
) (entities.Transaction, error) {
	userID := strings.TrimSpace(cmd.UserID)
	phone := strings.TrimSpace(cmd.PhoneNumber)
	network := strings.TrimSpace(cmd.Network)
	if userID == "" || phone == "" || network == "" || cmd.AmountMinor <= 0 {
		return entities.Transaction{}, domainerrors.ErrInvalidTransactionInput
	}
	snapshot := uc.Config.Snapshot(ctx)
	if direction == entities.DirectionPayout && cmd.AmountMinor < snapshot.MinPayoutMinor {
		return entities.Transaction{}, domainerrors.ErrInvalidTransactionInput
	}

	now := uc.now()
	var transaction entities.Transaction
	err := uc.Tx.InTx(ctx, func(ctx context.Context) error {
		if direction == entities.DirectionPayout {
			wallet, err := uc.Wallets.GetWalletForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			if wallet.BalanceMinor() < cmd.AmountMinor {
				return domainerrors.ErrInsufficientBalance
			}
		}
		transactionID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		transaction = entities.Transaction{
			TransactionID: transactionID,
			UserID:        userID,
			Direction:     direction,
			AmountMinor:   cmd.AmountMinor,
			PhoneNumber:   phone,
			Network:       network,
			Note:          strings.TrimSpace(cmd.Note),
			Status:        entities.TransactionStatusNew,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return uc.Transactions.SaveTransaction(ctx, transaction)
	})
	if err != nil {
		return entities.Transaction{}, err
	}
	return transaction, nil
}
