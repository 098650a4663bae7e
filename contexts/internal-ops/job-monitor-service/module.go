package jobmonitor

import (
	"log/slog"

	httpadapter "ygbackend/contexts/internal-ops/job-monitor-service/adapters/http"
	"ygbackend/contexts/internal-ops/job-monitor-service/adapters/memory"
	"ygbackend/contexts/internal-ops/job-monitor-service/application"
	"ygbackend/contexts/internal-ops/job-monitor-service/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Repository  ports.Repository
	History     ports.RunHistory
	Policies    ports.PolicyStore
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:     deps.Repository,
		History:  deps.History,
		Policies: deps.Policies,
		Outbox:   deps.Outbox,
		Clock:    deps.Clock,
		IDGen:    deps.IDGenerator,
		Logger:   deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

// NewInMemoryModule wires every port to one memory store. Outbox may be nil.
func NewInMemoryModule(outbox ports.OutboxWriter, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		History:     store,
		Policies:    store,
		Outbox:      outbox,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
