package commands_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"chorus/contexts/finance-core/settlement-service/adapters/memory"
	"chorus/contexts/finance-core/settlement-service/application/commands"
	"chorus/contexts/finance-core/settlement-service/domain/entities"
	domainerrors "chorus/contexts/finance-core/settlement-service/domain/errors"
	"chorus/contexts/finance-core/settlement-service/ports"
)

type staticConfig struct {
	snapshot ports.ConfigSnapshot
}

func (c staticConfig) Snapshot(context.Context) ports.ConfigSnapshot {
	return c.snapshot
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type fakeProvider struct {
	mu          sync.Mutex
	submitCode  string
	submitErr   error
	statusCode  string
	statusErr   error
	submitCalls int
	statusCalls int
}

func (p *fakeProvider) reply(code string) ports.ProviderResponse {
	return ports.ProviderResponse{
		Code:    code,
		Message: "code " + code,
		Raw:     fmt.Sprintf(`{"status_code":%q}`, code),
	}
}

func (p *fakeProvider) Collect(_ context.Context, _ ports.PaymentRequest) (ports.ProviderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitCalls++
	if p.submitErr != nil {
		return ports.ProviderResponse{}, p.submitErr
	}
	return p.reply(p.submitCode), nil
}

func (p *fakeProvider) Disburse(ctx context.Context, req ports.PaymentRequest) (ports.ProviderResponse, error) {
	return p.Collect(ctx, req)
}

func (p *fakeProvider) CheckStatus(_ context.Context, _ string) (ports.ProviderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusCalls++
	if p.statusErr != nil {
		return ports.ProviderResponse{}, p.statusErr
	}
	return p.reply(p.statusCode), nil
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []ports.RecheckTask
}

func (s *fakeScheduler) ScheduleRecheck(_ context.Context, task ports.RecheckTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	return nil
}

func newSettlementUseCase(store *memory.Store, provider ports.PaymentProvider, scheduler ports.TaskScheduler) commands.SettlementUseCase {
	return commands.SettlementUseCase{
		Transactions: store,
		Wallets:      store,
		Provider:     provider,
		Scheduler:    scheduler,
		Tx:           store,
		Config: staticConfig{snapshot: ports.ConfigSnapshot{
			RecheckRounds:     3,
			RecheckWait:       2 * time.Second,
			CompensationMinor: map[string]int64{"audio": 50, "image": 20},
			MinPayoutMinor:    1000,
		}},
		Outbox: store,
		Clock:  fixedClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		IDGen:  store,
	}
}

func seedDeposit(t *testing.T, store *memory.Store, transactionID string, amountMinor int64) {
	t.Helper()
	err := store.SaveTransaction(context.Background(), entities.Transaction{
		TransactionID: transactionID,
		UserID:        "user-1",
		Direction:     entities.DirectionDeposit,
		AmountMinor:   amountMinor,
		PhoneNumber:   "0788000001",
		Network:       "mtn",
		Status:        entities.TransactionStatusNew,
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
}

func TestExecuteSuccessSettlesWallet(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{submitCode: entities.ProviderCodeSuccess}
	scheduler := &fakeScheduler{}
	uc := newSettlementUseCase(store, provider, scheduler)
	seedDeposit(t, store, "tx-1", 5000)

	if err := uc.Execute(context.Background(), "tx-1"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	transaction, err := store.GetTransaction(context.Background(), "tx-1")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if transaction.Status != entities.TransactionStatusSuccess {
		t.Fatalf("expected success, got %s", transaction.Status)
	}
	if !transaction.AcceptedByProvider || !transaction.WalletUpdated {
		t.Fatalf("expected accepted and settled, got accepted=%v settled=%v", transaction.AcceptedByProvider, transaction.WalletUpdated)
	}
	wallet, err := store.GetWallet(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.DepositMinor != 5000 {
		t.Fatalf("expected deposit credit 5000, got %d", wallet.DepositMinor)
	}
	messages, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(messages) != 1 || messages[0].EventType != "transaction.settled" {
		t.Fatalf("expected one transaction.settled event, got %+v", messages)
	}
	if len(scheduler.tasks) != 0 {
		t.Fatalf("expected no recheck for settled transaction, got %d", len(scheduler.tasks))
	}
}

func TestExecutePendingSchedulesRecheck(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{submitCode: entities.ProviderCodePending}
	scheduler := &fakeScheduler{}
	uc := newSettlementUseCase(store, provider, scheduler)
	seedDeposit(t, store, "tx-1", 5000)

	if err := uc.Execute(context.Background(), "tx-1"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	transaction, _ := store.GetTransaction(context.Background(), "tx-1")
	if transaction.Status != entities.TransactionStatusPending {
		t.Fatalf("expected pending, got %s", transaction.Status)
	}
	if len(scheduler.tasks) != 1 {
		t.Fatalf("expected one scheduled recheck, got %d", len(scheduler.tasks))
	}
	task := scheduler.tasks[0]
	if task.TransactionID != "tx-1" || task.Rounds != 3 || task.Wait != 2*time.Second {
		t.Fatalf("unexpected recheck task %+v", task)
	}
}

func TestExecuteDuplicateCodeMapsToPending(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{submitCode: entities.ProviderCodeDuplicate}
	scheduler := &fakeScheduler{}
	uc := newSettlementUseCase(store, provider, scheduler)
	seedDeposit(t, store, "tx-1", 5000)

	if err := uc.Execute(context.Background(), "tx-1"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	transaction, _ := store.GetTransaction(context.Background(), "tx-1")
	if transaction.Status != entities.TransactionStatusPending {
		t.Fatalf("expected duplicate to map to pending, got %s", transaction.Status)
	}
	if len(scheduler.tasks) != 1 {
		t.Fatalf("expected one scheduled recheck, got %d", len(scheduler.tasks))
	}
}

func TestExecuteFailedCodeDoesNotTouchWallet(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{submitCode: entities.ProviderCodeFailed}
	scheduler := &fakeScheduler{}
	uc := newSettlementUseCase(store, provider, scheduler)
	seedDeposit(t, store, "tx-1", 5000)

	if err := uc.Execute(context.Background(), "tx-1"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	transaction, _ := store.GetTransaction(context.Background(), "tx-1")
	if transaction.Status != entities.TransactionStatusFailed {
		t.Fatalf("expected failed, got %s", transaction.Status)
	}
	if transaction.WalletUpdated {
		t.Fatal("failed transaction must not settle")
	}
	if _, err := store.GetWallet(context.Background(), "user-1"); !errors.Is(err, domainerrors.ErrWalletNotFound) {
		t.Fatalf("expected no wallet row, got %v", err)
	}
	if len(scheduler.tasks) != 0 {
		t.Fatalf("expected no recheck for failed transaction, got %d", len(scheduler.tasks))
	}
}

func TestExecuteProviderErrorLeavesStateUnchanged(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{submitErr: fmt.Errorf("%w: connect timeout", domainerrors.ErrProviderUnavailable)}
	scheduler := &fakeScheduler{}
	uc := newSettlementUseCase(store, provider, scheduler)
	seedDeposit(t, store, "tx-1", 5000)

	err := uc.Execute(context.Background(), "tx-1")
	if !errors.Is(err, domainerrors.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}

	transaction, _ := store.GetTransaction(context.Background(), "tx-1")
	if transaction.Status != entities.TransactionStatusNew || transaction.AcceptedByProvider {
		t.Fatalf("expected untouched transaction, got status=%s accepted=%v", transaction.Status, transaction.AcceptedByProvider)
	}

	// A retry after the outage submits again.
	provider.mu.Lock()
	provider.submitErr = nil
	provider.submitCode = entities.ProviderCodeSuccess
	provider.mu.Unlock()
	if err := uc.Retry(context.Background(), "tx-1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	transaction, _ = store.GetTransaction(context.Background(), "tx-1")
	if !transaction.WalletUpdated {
		t.Fatal("retry after outage should settle")
	}
}

func TestExecuteUnknownCodeKeepsStatusAndSchedulesRecheck(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{submitCode: "999"}
	scheduler := &fakeScheduler{}
	uc := newSettlementUseCase(store, provider, scheduler)
	seedDeposit(t, store, "tx-1", 5000)

	if err := uc.Execute(context.Background(), "tx-1"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	transaction, _ := store.GetTransaction(context.Background(), "tx-1")
	if transaction.Status != entities.TransactionStatusNew {
		t.Fatalf("unknown code must not change status, got %s", transaction.Status)
	}
	if !transaction.AcceptedByProvider {
		t.Fatal("provider response was received, expected accepted flag")
	}
	if len(scheduler.tasks) != 1 {
		t.Fatalf("expected recheck scheduled for unknown code, got %d", len(scheduler.tasks))
	}
}

func TestExecuteIsIdempotentAfterSuccess(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{submitCode: entities.ProviderCodeSuccess}
	scheduler := &fakeScheduler{}
	uc := newSettlementUseCase(store, provider, scheduler)
	seedDeposit(t, store, "tx-1", 5000)

	if err := uc.Execute(context.Background(), "tx-1"); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if err := uc.Execute(context.Background(), "tx-1"); err != nil {
		t.Fatalf("second execute: %v", err)
	}

	if provider.submitCalls != 1 {
		t.Fatalf("expected a single provider submission, got %d", provider.submitCalls)
	}
	wallet, _ := store.GetWallet(context.Background(), "user-1")
	if wallet.DepositMinor != 5000 {
		t.Fatalf("wallet settled more than once: deposit credit %d", wallet.DepositMinor)
	}
}

func TestRecheckStatusPendingReschedulesWithDoubledWait(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{statusCode: entities.ProviderCodePending}
	scheduler := &fakeScheduler{}
	uc := newSettlementUseCase(store, provider, scheduler)
	seedDeposit(t, store, "tx-1", 5000)

	if err := uc.RecheckStatus(context.Background(), "tx-1", 3, 2*time.Second); err != nil {
		t.Fatalf("recheck: %v", err)
	}

	if len(scheduler.tasks) != 1 {
		t.Fatalf("expected one rescheduled poll, got %d", len(scheduler.tasks))
	}
	task := scheduler.tasks[0]
	if task.Rounds != 2 {
		t.Fatalf("expected rounds decremented to 2, got %d", task.Rounds)
	}
	if task.Wait != 4*time.Second {
		t.Fatalf("expected doubled wait 4s, got %s", task.Wait)
	}
}

func TestRecheckStatusExhaustsRoundsWithoutError(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{statusCode: entities.ProviderCodePending}
	scheduler := &fakeScheduler{}
	uc := newSettlementUseCase(store, provider, scheduler)
	seedDeposit(t, store, "tx-1", 5000)

	if err := uc.RecheckStatus(context.Background(), "tx-1", 1, 2*time.Second); err != nil {
		t.Fatalf("recheck: %v", err)
	}
	if len(scheduler.tasks) != 0 {
		t.Fatalf("exhausted polling must not reschedule, got %d tasks", len(scheduler.tasks))
	}
}

func TestRecheckStatusUnavailableRetriesWithFewerRounds(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{statusErr: fmt.Errorf("%w: 503", domainerrors.ErrProviderUnavailable)}
	scheduler := &fakeScheduler{}
	uc := newSettlementUseCase(store, provider, scheduler)
	seedDeposit(t, store, "tx-1", 5000)

	if err := uc.RecheckStatus(context.Background(), "tx-1", 2, time.Second); err != nil {
		t.Fatalf("recheck: %v", err)
	}
	if len(scheduler.tasks) != 1 || scheduler.tasks[0].Rounds != 1 {
		t.Fatalf("expected reschedule with one round left, got %+v", scheduler.tasks)
	}

	// Out of rounds the outage surfaces to the caller.
	err := uc.RecheckStatus(context.Background(), "tx-1", 1, time.Second)
	if !errors.Is(err, domainerrors.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestRecheckStatusSettlesExactlyOnce(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{statusCode: entities.ProviderCodeSuccess}
	scheduler := &fakeScheduler{}
	uc := newSettlementUseCase(store, provider, scheduler)
	err := store.SaveTransaction(context.Background(), entities.Transaction{
		TransactionID:      "tx-1",
		UserID:             "user-1",
		Direction:          entities.DirectionDeposit,
		AmountMinor:        5000,
		PhoneNumber:        "0788000001",
		Network:            "mtn",
		Status:             entities.TransactionStatusPending,
		AcceptedByProvider: true,
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := uc.RecheckStatus(context.Background(), "tx-1", 3, time.Second); err != nil {
				t.Errorf("recheck: %v", err)
			}
		}()
	}
	wg.Wait()

	wallet, err := store.GetWallet(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.DepositMinor != 5000 {
		t.Fatalf("wallet must settle exactly once, deposit credit %d", wallet.DepositMinor)
	}
}

func TestRequestPayoutDebitsWallet(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{submitCode: entities.ProviderCodeSuccess}
	scheduler := &fakeScheduler{}
	uc := newSettlementUseCase(store, provider, scheduler)
	store.SeedWallet(entities.Wallet{UserID: "user-1", AccruedMinor: 10000})

	transaction, err := uc.RequestPayout(context.Background(), commands.RequestPayoutCommand{
		UserID:      "user-1",
		AmountMinor: 6000,
		PhoneNumber: "0788000001",
		Network:     "mtn",
	})
	if err != nil {
		t.Fatalf("request payout: %v", err)
	}
	if transaction.Status != entities.TransactionStatusSuccess || !transaction.WalletUpdated {
		t.Fatalf("expected settled payout, got %+v", transaction)
	}
	wallet, _ := store.GetWallet(context.Background(), "user-1")
	if wallet.TotalPayoutMinor != 6000 {
		t.Fatalf("expected total payout 6000, got %d", wallet.TotalPayoutMinor)
	}
	if wallet.BalanceMinor() != 4000 {
		t.Fatalf("expected balance 4000, got %d", wallet.BalanceMinor())
	}
}

func TestRequestPayoutRejectsInsufficientBalance(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{submitCode: entities.ProviderCodeSuccess}
	uc := newSettlementUseCase(store, provider, &fakeScheduler{})
	store.SeedWallet(entities.Wallet{UserID: "user-1", AccruedMinor: 2000})

	_, err := uc.RequestPayout(context.Background(), commands.RequestPayoutCommand{
		UserID:      "user-1",
		AmountMinor: 5000,
		PhoneNumber: "0788000001",
		Network:     "mtn",
	})
	if !errors.Is(err, domainerrors.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if provider.submitCalls != 0 {
		t.Fatalf("rejected payout must not reach the provider, got %d calls", provider.submitCalls)
	}
}

func TestRequestPayoutRejectsBelowMinimum(t *testing.T) {
	store := memory.NewStore()
	uc := newSettlementUseCase(store, &fakeProvider{}, &fakeScheduler{})
	store.SeedWallet(entities.Wallet{UserID: "user-1", AccruedMinor: 10000})

	_, err := uc.RequestPayout(context.Background(), commands.RequestPayoutCommand{
		UserID:      "user-1",
		AmountMinor: 500,
		PhoneNumber: "0788000001",
		Network:     "mtn",
	})
	if !errors.Is(err, domainerrors.ErrInvalidTransactionInput) {
		t.Fatalf("expected ErrInvalidTransactionInput, got %v", err)
	}
}

func TestCreateDepositAccruesOnSuccess(t *testing.T) {
	store := memory.NewStore()
	provider := &fakeProvider{submitCode: entities.ProviderCodeSuccess}
	uc := newSettlementUseCase(store, provider, &fakeScheduler{})

	transaction, err := uc.CreateDeposit(context.Background(), commands.RequestPayoutCommand{
		UserID:      "user-2",
		AmountMinor: 2500,
		PhoneNumber: "0788000002",
		Network:     "airtel",
	})
	if err != nil {
		t.Fatalf("create deposit: %v", err)
	}
	if transaction.Direction != entities.DirectionDeposit {
		t.Fatalf("expected deposit, got %s", transaction.Direction)
	}
	wallet, err := store.GetWallet(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.DepositMinor != 2500 {
		t.Fatalf("expected deposit credit 2500, got %d", wallet.DepositMinor)
	}
	if wallet.BalanceMinor() != 2500 {
		t.Fatalf("expected balance 2500, got %d", wallet.BalanceMinor())
	}
}
