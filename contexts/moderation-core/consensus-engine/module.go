package consensusengine

import (
	"log/slog"

	httpadapter "chorus/contexts/moderation-core/consensus-engine/adapters/http"
	"chorus/contexts/moderation-core/consensus-engine/adapters/memory"
	"chorus/contexts/moderation-core/consensus-engine/application/commands"
	"chorus/contexts/moderation-core/consensus-engine/application/queries"
	"chorus/contexts/moderation-core/consensus-engine/domain/entities"
	"chorus/contexts/moderation-core/consensus-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Items          ports.ItemRepository
	Validations    ports.ValidationRepository
	Transcriptions ports.TranscriptionRepository
	Tx             ports.TxRunner
	Config         ports.ConfigProvider
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	voteUseCase := commands.VoteUseCase{
		Items:          deps.Items,
		Validations:    deps.Validations,
		Transcriptions: deps.Transcriptions,
		Tx:             deps.Tx,
		Config:         deps.Config,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		Logger:         deps.Logger,
	}
	resolveUseCase := commands.ResolveUseCase{
		Items:  deps.Items,
		Tx:     deps.Tx,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	archiveUseCase := commands.ArchiveUseCase{
		Items:       deps.Items,
		Validations: deps.Validations,
		Tx:          deps.Tx,
		Clock:       deps.Clock,
		Logger:      deps.Logger,
	}
	progressUseCase := queries.ProgressUseCase{
		Items:       deps.Items,
		Validations: deps.Validations,
		Config:      deps.Config,
	}
	return Module{
		Handler: httpadapter.Handler{
			Votes:    voteUseCase,
			Resolve:  resolveUseCase,
			Archive:  archiveUseCase,
			Progress: progressUseCase,
			Logger:   deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []entities.Validatable, config ports.ConfigProvider, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Items:          store,
		Validations:    store,
		Transcriptions: store,
		Tx:             store,
		Config:         config,
		Outbox:         store,
		Clock:          store,
		IDGen:          store,
		Logger:         logger,
	})
	module.Store = store
	return module
}
