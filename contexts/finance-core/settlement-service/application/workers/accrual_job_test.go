package workers_test

import (
	"context"
	"testing"
	"time"

	"chorus/contexts/finance-core/settlement-service/adapters/memory"
	"chorus/contexts/finance-core/settlement-service/application/workers"
	"chorus/contexts/finance-core/settlement-service/domain/entities"
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

func newAccrualJob(store *memory.Store) workers.AccrualJob {
	return workers.AccrualJob{
		Stats:   store,
		Wallets: store,
		Tx:      store,
		Config: staticConfig{snapshot: ports.ConfigSnapshot{
			CompensationMinor: map[string]int64{"audio": 50, "image": 20},
		}},
		Clock: fixedClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func TestAccrualJobComputesWalletFromAcceptedWork(t *testing.T) {
	store := memory.NewStore()
	store.SeedStats([]ports.WorkCounts{
		{UserID: "user-1", ByKind: map[string]int{"audio": 10, "image": 5}},
		{UserID: "user-2", ByKind: map[string]int{"image": 3}},
	})
	job := newAccrualJob(store)

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	wallet, err := store.GetWallet(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.AccruedMinor != 10*50+5*20 {
		t.Fatalf("expected accrued 600, got %d", wallet.AccruedMinor)
	}
	if wallet.AudioBenefitMinor != 500 || wallet.ImageBenefitMinor != 100 {
		t.Fatalf("expected itemized 500/100, got %d/%d", wallet.AudioBenefitMinor, wallet.ImageBenefitMinor)
	}
	other, err := store.GetWallet(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if other.AccruedMinor != 60 {
		t.Fatalf("expected accrued 60, got %d", other.AccruedMinor)
	}
}

func TestAccrualJobIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	store.SeedStats([]ports.WorkCounts{
		{UserID: "user-1", ByKind: map[string]int{"audio": 4}},
	})
	job := newAccrualJob(store)

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	wallet, _ := store.GetWallet(context.Background(), "user-1")
	if wallet.AccruedMinor != 200 {
		t.Fatalf("expected accrued 200 after repeated runs, got %d", wallet.AccruedMinor)
	}
}

func TestAccrualJobPreservesDepositCredits(t *testing.T) {
	store := memory.NewStore()
	store.SeedWallet(entities.Wallet{UserID: "user-1", DepositMinor: 5000})
	store.SeedStats([]ports.WorkCounts{
		{UserID: "user-1", ByKind: map[string]int{"audio": 120}},
	})
	job := newAccrualJob(store)

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	wallet, err := store.GetWallet(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.AccruedMinor != 6000 {
		t.Fatalf("expected work accrual 6000, got %d", wallet.AccruedMinor)
	}
	if wallet.DepositMinor != 5000 {
		t.Fatalf("recompute must not touch deposit credit, got %d", wallet.DepositMinor)
	}
	if wallet.BalanceMinor() != 11000 {
		t.Fatalf("expected balance 11000, got %d", wallet.BalanceMinor())
	}
}

func TestAccrualJobNeverLowersAccrual(t *testing.T) {
	store := memory.NewStore()
	store.SeedWallet(entities.Wallet{UserID: "user-1", AccruedMinor: 1000})
	store.SeedStats([]ports.WorkCounts{
		{UserID: "user-1", ByKind: map[string]int{"audio": 2}},
	})
	job := newAccrualJob(store)

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	wallet, _ := store.GetWallet(context.Background(), "user-1")
	if wallet.AccruedMinor != 1000 {
		t.Fatalf("manual accrual must not be lowered, got %d", wallet.AccruedMinor)
	}
}
