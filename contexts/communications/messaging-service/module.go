package messaging

import (
	"log/slog"
	"time"

	httpadapter "ygbackend/contexts/communications/messaging-service/adapters/http"
	"ygbackend/contexts/communications/messaging-service/adapters/memory"
	"ygbackend/contexts/communications/messaging-service/application"
	"ygbackend/contexts/communications/messaging-service/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Repository     ports.Repository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Tx             ports.Transactor
	RateLimiter    ports.RateLimiter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:           deps.Repository,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Tx:             deps.Tx,
		RateLimiter:    deps.RateLimiter,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
	}
}

func NewInMemoryModule(outbox ports.OutboxWriter, limiter ports.RateLimiter, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Idempotency: store,
		Outbox:      outbox,
		Tx:          store,
		RateLimiter: limiter,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
