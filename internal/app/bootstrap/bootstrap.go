package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	settlementservice "chorus/contexts/finance-core/settlement-service"
	"chorus/contexts/finance-core/settlement-service/adapters/payhub"
	settlementpostgres "chorus/contexts/finance-core/settlement-service/adapters/postgres"
	queueadapter "chorus/contexts/finance-core/settlement-service/adapters/queue"
	settlementworkers "chorus/contexts/finance-core/settlement-service/application/workers"
	settlementports "chorus/contexts/finance-core/settlement-service/ports"
	assignmentservice "chorus/contexts/moderation-core/assignment-service"
	assignmentpostgres "chorus/contexts/moderation-core/assignment-service/adapters/postgres"
	assignmententities "chorus/contexts/moderation-core/assignment-service/domain/entities"
	consensusengine "chorus/contexts/moderation-core/consensus-engine"
	consensuspostgres "chorus/contexts/moderation-core/consensus-engine/adapters/postgres"
	consensusworkers "chorus/contexts/moderation-core/consensus-engine/application/workers"
	consensusentities "chorus/contexts/moderation-core/consensus-engine/domain/entities"
	consensusports "chorus/contexts/moderation-core/consensus-engine/ports"
	"chorus/internal/platform/config"
	"chorus/internal/platform/db"
	"chorus/internal/platform/httpserver"
	"chorus/internal/platform/messaging"
	"chorus/internal/platform/taskqueue"
	"chorus/internal/shared/events"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	recheck  settlementworkers.RecheckConsumer
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres        *db.Postgres
	consensusRelay  consensusworkers.OutboxRelay
	settlementRelay settlementworkers.OutboxRelay
	assignment      assignmentservice.Module
	settlement      settlementservice.Module
	cfg             config.Config
	pollInterval    time.Duration
	accrualInterval time.Duration
	logger          *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	consensusModule, assignmentModule, settlementModule := buildModules(cfg, pg, logger)

	server := httpserver.New(
		consensusModule,
		assignmentModule,
		settlementModule,
		logger,
		normalizeAddr(cfg.HTTPPort),
	)
	return &APIApp{
		server:   server,
		postgres: pg,
		recheck:  settlementModule.RecheckConsumer,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	consensusRepo := consensuspostgres.NewRepository(pg.DB, logger)
	settlementRepo := settlementpostgres.NewRepository(pg.DB, logger)
	_, assignmentModule, settlementModule := buildModules(cfg, pg, logger)

	return &WorkerApp{
		postgres: pg,
		consensusRelay: consensusworkers.OutboxRelay{
			Outbox:    consensusRepo,
			Publisher: consensusPublisher{bus: bus},
			Clock:     consensuspostgres.SystemClock{},
			Topic:     "moderation.decisions",
			BatchSize: 100,
			Logger:    logger,
		},
		settlementRelay: settlementworkers.OutboxRelay{
			Outbox:    settlementRepo,
			Publisher: settlementPublisher{bus: bus},
			Clock:     settlementpostgres.SystemClock{},
			Topic:     "finance.settlements",
			BatchSize: 100,
			Logger:    logger,
		},
		assignment:      assignmentModule,
		settlement:      settlementModule,
		cfg:             cfg,
		pollInterval:    2 * time.Second,
		accrualInterval: time.Minute,
		logger:          logger,
	}, nil
}

// buildModules wires the three bounded contexts against shared postgres and
// an in-process task queue. The queue lives in whichever process schedules on
// it, so the recheck consumer is attached in both API and worker builds.
func buildModules(
	cfg config.Config,
	pg *db.Postgres,
	logger *slog.Logger,
) (consensusengine.Module, assignmentservice.Module, settlementservice.Module) {
	consensusRepo := consensuspostgres.NewRepository(pg.DB, logger)
	consensusModule := consensusengine.NewModule(consensusengine.Dependencies{
		Items:          consensusRepo,
		Validations:    consensusRepo,
		Transcriptions: consensusRepo,
		Tx:             consensusRepo,
		Config:         consensusConfig{cfg: cfg},
		Outbox:         consensusRepo,
		Clock:          consensuspostgres.SystemClock{},
		IDGen:          consensuspostgres.UUIDGenerator{},
		Logger:         logger,
	})

	assignmentRepo := assignmentpostgres.NewRepository(pg.DB, logger)
	assignmentModule := assignmentservice.NewModule(assignmentservice.Dependencies{
		Assignments: assignmentRepo,
		Catalog:     assignmentRepo,
		Voted:       assignmentRepo,
		Tx:          assignmentRepo,
		Config:      assignmentConfig{cfg: cfg},
		Clock:       assignmentpostgres.SystemClock{},
		IDGen:       assignmentpostgres.UUIDGenerator{},
		Logger:      logger,
	})

	queue := taskqueue.NewQueue(logger)
	settlementRepo := settlementpostgres.NewRepository(pg.DB, logger)
	settlementModule := settlementservice.NewModule(settlementservice.Dependencies{
		Transactions: settlementRepo,
		Wallets:      settlementRepo,
		Provider: payhub.NewClient(payhub.Config{
			BaseURL: cfg.PayHubBaseURL,
			Token:   cfg.PayHubToken,
			Timeout: cfg.PayHubTimeout,
		}, logger),
		Scheduler:  queueadapter.Scheduler{Queue: queue},
		Stats:      settlementRepo,
		Tx:         settlementRepo,
		Config:     settlementConfig{cfg: cfg},
		Outbox:     settlementRepo,
		Clock:      settlementpostgres.SystemClock{},
		IDGen:      &settlementpostgres.TransactionIDGenerator{},
		Subscriber: queue,
		Logger:     logger,
	})

	return consensusModule, assignmentModule, settlementModule
}

func (a *APIApp) Run(ctx context.Context) error {
	if err := a.recheck.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.cfg.EnableRecheckConsumer {
		if err := w.settlement.RecheckConsumer.Start(ctx); err != nil {
			return err
		}
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			if w.cfg.EnableLeaseExpirer {
				if err := w.assignment.Expirer.RunOnce(ctx); err != nil {
					return err
				}
			}
			if w.cfg.EnableOutboxRelay {
				if err := w.consensusRelay.RunOnce(ctx); err != nil {
					return err
				}
				if err := w.settlementRelay.RunOnce(ctx); err != nil {
					return err
				}
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	g.Go(func() error {
		if !w.cfg.EnableAccrualJob {
			return nil
		}
		ticker := time.NewTicker(w.accrualInterval)
		defer ticker.Stop()
		for {
			if err := w.settlement.AccrualJob.RunOnce(ctx); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	return g.Wait()
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

type consensusConfig struct {
	cfg config.Config
}

func (c consensusConfig) Snapshot(context.Context) consensusports.ConfigSnapshot {
	return consensusports.ConfigSnapshot{
		RequiredQuorum: map[consensusentities.ItemKind]int{
			consensusentities.ItemKindImage:         c.cfg.QuorumImage,
			consensusentities.ItemKindAudio:         c.cfg.QuorumAudio,
			consensusentities.ItemKindTranscription: c.cfg.QuorumTranscription,
		},
		MaxVotesPerUser: c.cfg.MaxVotesPerUser,
		LeaseTTL: map[string]time.Duration{
			string(assignmententities.WorkTypeValidation):    c.cfg.LeaseTTLValidation,
			string(assignmententities.WorkTypeTranscription): c.cfg.LeaseTTLTranscription,
			string(assignmententities.WorkTypeResolution):    c.cfg.LeaseTTLResolution,
		},
		CompensationMinor: compensationRates(c.cfg),
	}
}

type assignmentConfig struct {
	cfg config.Config
}

func (c assignmentConfig) LeaseTTL(workType assignmententities.WorkType) time.Duration {
	switch workType {
	case assignmententities.WorkTypeTranscription:
		return c.cfg.LeaseTTLTranscription
	case assignmententities.WorkTypeResolution:
		return c.cfg.LeaseTTLResolution
	default:
		return c.cfg.LeaseTTLValidation
	}
}

func (c assignmentConfig) LeaseBatchSize() int {
	return c.cfg.LeaseBatchSize
}

type settlementConfig struct {
	cfg config.Config
}

func (c settlementConfig) Snapshot(context.Context) settlementports.ConfigSnapshot {
	return settlementports.ConfigSnapshot{
		RecheckRounds:     c.cfg.RecheckRounds,
		RecheckWait:       c.cfg.RecheckWait,
		CompensationMinor: compensationRates(c.cfg),
		MinPayoutMinor:    c.cfg.MinPayoutMinor,
	}
}

func compensationRates(cfg config.Config) map[string]int64 {
	return map[string]int64{
		string(consensusentities.ItemKindAudio):         cfg.CompensationAudioMinor,
		string(consensusentities.ItemKindImage):         cfg.CompensationImageMinor,
		string(consensusentities.ItemKindTranscription): cfg.CompensationTranscriptionMinor,
	}
}

type consensusPublisher struct {
	bus *messaging.Kafka
}

func (p consensusPublisher) Publish(ctx context.Context, topic string, envelope consensusports.EventEnvelope) error {
	return p.bus.Publish(ctx, topic, events.Envelope{
		EventID:       envelope.EventID,
		EventType:     envelope.EventType,
		SourceService: envelope.SourceService,
		OccurredAt:    envelope.OccurredAt,
		PartitionKey:  envelope.PartitionKey,
		SchemaVersion: envelope.SchemaVersion,
		Data:          envelope.Data,
	})
}

type settlementPublisher struct {
	bus *messaging.Kafka
}

func (p settlementPublisher) Publish(ctx context.Context, topic string, envelope settlementports.EventEnvelope) error {
	return p.bus.Publish(ctx, topic, events.Envelope{
		EventID:       envelope.EventID,
		EventType:     envelope.EventType,
		SourceService: envelope.SourceService,
		OccurredAt:    envelope.OccurredAt,
		PartitionKey:  envelope.PartitionKey,
		SchemaVersion: envelope.SchemaVersion,
		Data:          envelope.Data,
	})
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
