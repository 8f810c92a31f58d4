package settlementservice

import (
	"log/slog"

	httpadapter "chorus/contexts/finance-core/settlement-service/adapters/http"
	"chorus/contexts/finance-core/settlement-service/adapters/memory"
	"chorus/contexts/finance-core/settlement-service/application/commands"
	"chorus/contexts/finance-core/settlement-service/application/workers"
	"chorus/contexts/finance-core/settlement-service/ports"
)

type Module struct {
	Handler         httpadapter.Handler
	RecheckConsumer workers.RecheckConsumer
	AccrualJob      workers.AccrualJob
	Store           *memory.Store
}

type Dependencies struct {
	Transactions ports.TransactionRepository
	Wallets      ports.WalletRepository
	Provider     ports.PaymentProvider
	Scheduler    ports.TaskScheduler
	Stats        ports.ContributorStats
	Tx           ports.TxRunner
	Config       ports.ConfigProvider
	Outbox       ports.OutboxWriter
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	Subscriber   workers.TaskSubscriber
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	settlementUseCase := commands.SettlementUseCase{
		Transactions: deps.Transactions,
		Wallets:      deps.Wallets,
		Provider:     deps.Provider,
		Scheduler:    deps.Scheduler,
		Tx:           deps.Tx,
		Config:       deps.Config,
		Outbox:       deps.Outbox,
		Clock:        deps.Clock,
		IDGen:        deps.IDGen,
		Logger:       deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Settlement:   settlementUseCase,
			Transactions: deps.Transactions,
			Wallets:      deps.Wallets,
			Logger:       deps.Logger,
		},
		RecheckConsumer: workers.RecheckConsumer{
			Subscriber: deps.Subscriber,
			Settlement: settlementUseCase,
			Logger:     deps.Logger,
		},
		AccrualJob: workers.AccrualJob{
			Stats:   deps.Stats,
			Wallets: deps.Wallets,
			Tx:      deps.Tx,
			Config:  deps.Config,
			Clock:   deps.Clock,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(
	provider ports.PaymentProvider,
	scheduler ports.TaskScheduler,
	config ports.ConfigProvider,
	subscriber workers.TaskSubscriber,
	logger *slog.Logger,
) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Transactions: store,
		Wallets:      store,
		Provider:     provider,
		Scheduler:    scheduler,
		Stats:        store,
		Tx:           store,
		Config:       config,
		Outbox:       store,
		Clock:        store,
		IDGen:        store,
		Subscriber:   subscriber,
		Logger:       logger,
	})
	module.Store = store
	return module
}
