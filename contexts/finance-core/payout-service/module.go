package payout

import (
	"log/slog"
	"time"

	httpadapter "ygbackend/contexts/finance-core/payout-service/adapters/http"
	"ygbackend/contexts/finance-core/payout-service/adapters/memory"
	"ygbackend/contexts/finance-core/payout-service/application"
	"ygbackend/contexts/finance-core/payout-service/application/workers"
	"ygbackend/contexts/finance-core/payout-service/ports"
	"ygbackend/internal/platform/retry"
)

type Module struct {
	Service                 application.Service
	Handler                 httpadapter.Handler
	StatementIssuedConsumer workers.StatementIssuedConsumer
	Processor               workers.PayoutProcessor
	Store                   *memory.Store
}

type Dependencies struct {
	Repository     ports.Repository
	Gateway        ports.StripeGateway
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Tx             ports.Transactor
	Subscriber     ports.EventSubscriber
	Dedup          ports.EventDedupStore
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	Retry          ports.RetryPolicy
	IdempotencyTTL time.Duration
	MinPayoutCents int64
	Country        string
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	retryPolicy := deps.Retry
	if retryPolicy == nil {
		retryPolicy = retry.Default()
	}
	service := application.Service{
		Repo:           deps.Repository,
		Gateway:        deps.Gateway,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Tx:             deps.Tx,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		Retry:          retryPolicy,
		IdempotencyTTL: deps.IdempotencyTTL,
		MinPayoutCents: deps.MinPayoutCents,
		Country:        deps.Country,
		Logger:         deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
		StatementIssuedConsumer: workers.StatementIssuedConsumer{
			Subscriber: deps.Subscriber,
			Service:    service,
			Dedup:      deps.Dedup,
			Clock:      deps.Clock,
			Logger:     deps.Logger,
		},
		Processor: workers.PayoutProcessor{Service: service, Logger: deps.Logger},
	}
}

// NewInMemoryModule keeps state in process. A nil gateway falls back to the
// Stripe sandbox keyed by webhookSecret.
func NewInMemoryModule(gateway ports.StripeGateway, webhookSecret string, outbox ports.OutboxWriter, subscriber ports.EventSubscriber, dedup ports.EventDedupStore, minPayoutCents int64, logger *slog.Logger) Module {
	store := memory.NewStore()
	if gateway == nil {
		gateway = memory.NewSandboxGateway(webhookSecret)
	}
	module := NewModule(Dependencies{
		Repository:     store,
		Gateway:        gateway,
		Idempotency:    store,
		Outbox:         outbox,
		Tx:             store,
		Subscriber:     subscriber,
		Dedup:          dedup,
		Clock:          store,
		IDGenerator:    store,
		MinPayoutCents: minPayoutCents,
		Logger:         logger,
	})
	module.Store = store
	return module
}
