package assignmentservice

import (
	"log/slog"

	httpadapter "chorus/contexts/moderation-core/assignment-service/adapters/http"
	"chorus/contexts/moderation-core/assignment-service/adapters/memory"
	"chorus/contexts/moderation-core/assignment-service/application/commands"
	"chorus/contexts/moderation-core/assignment-service/application/workers"
	"chorus/contexts/moderation-core/assignment-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Expirer workers.LeaseExpirer
	Store   *memory.Store
}

type Dependencies struct {
	Assignments ports.AssignmentRepository
	Catalog     ports.ItemCatalog
	Voted       ports.VotedItemsSource
	Tx          ports.TxRunner
	Config      ports.Config
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	leaseUseCase := commands.LeaseUseCase{
		Assignments: deps.Assignments,
		Catalog:     deps.Catalog,
		Voted:       deps.Voted,
		Tx:          deps.Tx,
		Config:      deps.Config,
		Clock:       deps.Clock,
		IDGen:       deps.IDGen,
		Logger:      deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Leases: leaseUseCase,
			Config: deps.Config,
			Logger: deps.Logger,
		},
		Expirer: workers.LeaseExpirer{
			Assignments: deps.Assignments,
			Catalog:     deps.Catalog,
			Tx:          deps.Tx,
			Config:      deps.Config,
			Clock:       deps.Clock,
			Logger:      deps.Logger,
		},
	}
}

func NewInMemoryModule(config ports.Config, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Assignments: store,
		Catalog:     store,
		Voted:       store,
		Tx:          store,
		Config:      config,
		Clock:       store,
		IDGen:       store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
