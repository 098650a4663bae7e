package royalty

import (
	"log/slog"
	"time"

	httpadapter "ygbackend/contexts/finance-core/royalty-service/adapters/http"
	"ygbackend/contexts/finance-core/royalty-service/adapters/memory"
	"ygbackend/contexts/finance-core/royalty-service/application"
	"ygbackend/contexts/finance-core/royalty-service/application/workers"
	"ygbackend/contexts/finance-core/royalty-service/ports"
)

type Module struct {
	Service                 application.Service
	Handler                 httpadapter.Handler
	ProjectionConsumer      workers.ProjectionConsumer
	PayoutCompletedConsumer workers.PayoutCompletedConsumer
	Store                   *memory.Store
}

type Dependencies struct {
	Repository     ports.Repository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Tx             ports.Transactor
	Subscriber     ports.EventSubscriber
	Dedup          ports.EventDedupStore
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	// PlatformFeeBps is taken as configured; zero means no fee.
	PlatformFeeBps int
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	feeBps := deps.PlatformFeeBps
	if feeBps == 0 {
		feeBps = -1
	}
	service := application.Service{
		Repo:           deps.Repository,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Tx:             deps.Tx,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		IdempotencyTTL: deps.IdempotencyTTL,
		PlatformFeeBps: feeBps,
		Logger:         deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
		ProjectionConsumer: workers.ProjectionConsumer{
			Subscriber: deps.Subscriber,
			Service:    service,
			Dedup:      deps.Dedup,
			Clock:      deps.Clock,
			Logger:     deps.Logger,
		},
		PayoutCompletedConsumer: workers.PayoutCompletedConsumer{
			Subscriber: deps.Subscriber,
			Service:    service,
			Dedup:      deps.Dedup,
			Clock:      deps.Clock,
			Logger:     deps.Logger,
		},
	}
}

func NewInMemoryModule(outbox ports.OutboxWriter, subscriber ports.EventSubscriber, dedup ports.EventDedupStore, feeBps int, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:     store,
		Idempotency:    store,
		Outbox:         outbox,
		Tx:             store,
		Subscriber:     subscriber,
		Dedup:          dedup,
		Clock:          store,
		IDGenerator:    store,
		PlatformFeeBps: feeBps,
		Logger:         logger,
	})
	module.Store = store
	return module
}
