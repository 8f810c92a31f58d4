package httpadapter

import (
	"context"
	"log/slog"

	application "chorus/contexts/finance-core/settlement-service/application"
	"chorus/contexts/finance-core/settlement-service/application/commands"
	"chorus/contexts/finance-core/settlement-service/domain/entities"
	domainerrors "chorus/contexts/finance-core/settlement-service/domain/errors"
	"chorus/contexts/finance-core/settlement-service/ports"
	httptransport "chorus/contexts/finance-core/settlement-service/transport/http"
)

type Handler struct {
	Settlement   commands.SettlementUseCase
	Transactions ports.TransactionRepository
	Wallets      ports.WalletRepository
	Logger       *slog.Logger
}

func (h Handler) RequestPayoutHandler(
	ctx context.Context,
	userID string,
	req httptransport.PayoutRequest,
) (httptransport.TransactionResponse, error) {
	transaction, err := h.Settlement.RequestPayout(ctx, commands.RequestPayoutCommand{
		UserID:      userID,
		AmountMinor: req.AmountMinor,
		PhoneNumber: req.PhoneNumber,
		Network:     req.Network,
		Note:        req.Note,
	})
	if err != nil {
		return httptransport.TransactionResponse{}, err
	}
	return toTransactionResponse(transaction), nil
}

func (h Handler) CreateDepositHandler(
	ctx context.Context,
	userID string,
	req httptransport.DepositRequest,
) (httptransport.TransactionResponse, error) {
	transaction, err := h.Settlement.CreateDeposit(ctx, commands.RequestPayoutCommand{
		UserID:      userID,
		AmountMinor: req.AmountMinor,
		PhoneNumber: req.PhoneNumber,
		Network:     req.Network,
		Note:        req.Note,
	})
	if err != nil {
		return httptransport.TransactionResponse{}, err
	}
	return toTransactionResponse(transaction), nil
}

func (h Handler) RetryTransactionHandler(ctx context.Context, transactionID string) (httptransport.TransactionResponse, error) {
	if err := h.Settlement.Retry(ctx, transactionID); err != nil {
		return httptransport.TransactionResponse{}, err
	}
	transaction, err := h.Transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		return httptransport.TransactionResponse{}, err
	}
	return toTransactionResponse(transaction), nil
}

func (h Handler) GetTransactionHandler(ctx context.Context, transactionID string) (httptransport.TransactionResponse, error) {
	transaction, err := h.Transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		return httptransport.TransactionResponse{}, err
	}
	return toTransactionResponse(transaction), nil
}

func (h Handler) ListTransactionsHandler(ctx context.Context, userID string, limit int) (httptransport.TransactionListResponse, error) {
	transactions, err := h.Transactions.ListTransactionsByUser(ctx, userID, limit)
	if err != nil {
		return httptransport.TransactionListResponse{}, err
	}
	response := httptransport.TransactionListResponse{
		Items: make([]httptransport.TransactionResponse, 0, len(transactions)),
	}
	for _, transaction := range transactions {
		response.Items = append(response.Items, toTransactionResponse(transaction))
	}
	return response, nil
}

func (h Handler) GetWalletHandler(ctx context.Context, userID string) (httptransport.WalletResponse, error) {
	wallet, err := h.Wallets.GetWallet(ctx, userID)
	if err != nil {
		return httptransport.WalletResponse{}, err
	}
	return httptransport.WalletResponse{
		UserID:                    wallet.UserID,
		AccruedMinor:              wallet.AccruedMinor,
		AudioBenefitMinor:         wallet.AudioBenefitMinor,
		ImageBenefitMinor:         wallet.ImageBenefitMinor,
		TranscriptionBenefitMinor: wallet.TranscriptionBenefitMinor,
		DepositMinor:              wallet.DepositMinor,
		TotalPayoutMinor:          wallet.TotalPayoutMinor,
		BalanceMinor:              wallet.BalanceMinor(),
	}, nil
}

// ProviderCallbackHandler funnels asynchronous provider confirmations into
// the same recheck path the poller uses, so both arrival orders converge on
// one settlement.
func (h Handler) ProviderCallbackHandler(ctx context.Context, req httptransport.ProviderCallbackRequest) error {
	logger := application.ResolveLogger(h.Logger)
	if req.TransactionID == "" {
		return domainerrors.ErrInvalidTransactionInput
	}
	logger.Info("provider callback received",
		"event", "settlement_provider_callback_received",
		"module", "finance-core/settlement-service",
		"layer", "adapter",
		"transaction_id", req.TransactionID,
		"provider_code", req.StatusCode,
	)
	return h.Settlement.RecheckStatus(ctx, req.TransactionID, 1, 0)
}

func toTransactionResponse(transaction entities.Transaction) httptransport.TransactionResponse {
	return httptransport.TransactionResponse{
		TransactionID: transaction.TransactionID,
		UserID:        transaction.UserID,
		Direction:     string(transaction.Direction),
		AmountMinor:   transaction.AmountMinor,
		Status:        string(transaction.Status),
		StatusMessage: transaction.StatusMessage,
		WalletUpdated: transaction.WalletUpdated,
	}
}
