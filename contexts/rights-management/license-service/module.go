package license

import (
	"log/slog"
	"time"

	httpadapter "ygbackend/contexts/rights-management/license-service/adapters/http"
	"ygbackend/contexts/rights-management/license-service/adapters/memory"
	"ygbackend/contexts/rights-management/license-service/application/commands"
	"ygbackend/contexts/rights-management/license-service/application/queries"
	"ygbackend/contexts/rights-management/license-service/application/workers"
	"ygbackend/contexts/rights-management/license-service/ports"
)

type Module struct {
	Handler        httpadapter.Handler
	ExpirySweeper  workers.ExpirySweeper
	ExpiryNotifier workers.ExpiryNotifier
	Store          *memory.Store
}

type Dependencies struct {
	Licenses       ports.LicenseRepository
	Amendments     ports.AmendmentRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Tx             ports.Transactor
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	ExpiryNotice   time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Handler: httpadapter.Handler{
			CreateLicense: commands.CreateLicenseUseCase{
				Licenses:       deps.Licenses,
				Idempotency:    deps.Idempotency,
				Tx:             deps.Tx,
				Clock:          deps.Clock,
				IDGenerator:    deps.IDGenerator,
				IdempotencyTTL: deps.IdempotencyTTL,
				Logger:         deps.Logger,
			},
			Transition: commands.TransitionLicenseUseCase{
				Licenses:    deps.Licenses,
				Outbox:      deps.Outbox,
				Tx:          deps.Tx,
				Clock:       deps.Clock,
				IDGenerator: deps.IDGenerator,
				Logger:      deps.Logger,
			},
			ProposeAmendment: commands.ProposeAmendmentUseCase{
				Licenses:    deps.Licenses,
				Amendments:  deps.Amendments,
				Tx:          deps.Tx,
				Clock:       deps.Clock,
				IDGenerator: deps.IDGenerator,
				Logger:      deps.Logger,
			},
			DecideAmendment: commands.DecideAmendmentUseCase{
				Licenses:    deps.Licenses,
				Amendments:  deps.Amendments,
				Outbox:      deps.Outbox,
				Tx:          deps.Tx,
				Clock:       deps.Clock,
				IDGenerator: deps.IDGenerator,
				Logger:      deps.Logger,
			},
			RenewLicense: commands.RenewLicenseUseCase{
				Licenses:       deps.Licenses,
				Idempotency:    deps.Idempotency,
				Tx:             deps.Tx,
				Clock:          deps.Clock,
				IDGenerator:    deps.IDGenerator,
				IdempotencyTTL: deps.IdempotencyTTL,
				Logger:         deps.Logger,
			},
			GetLicense:     queries.GetLicenseUseCase{Licenses: deps.Licenses},
			ListLicenses:   queries.ListLicensesUseCase{Licenses: deps.Licenses, Clock: deps.Clock},
			CheckConflicts: queries.CheckConflictsUseCase{Licenses: deps.Licenses},
			ListAmendments: queries.ListAmendmentsUseCase{Licenses: deps.Licenses, Amendments: deps.Amendments},
			Logger:         deps.Logger,
		},
		ExpirySweeper: workers.ExpirySweeper{
			Licenses:    deps.Licenses,
			Outbox:      deps.Outbox,
			Tx:          deps.Tx,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		ExpiryNotifier: workers.ExpiryNotifier{
			Licenses:    deps.Licenses,
			Outbox:      deps.Outbox,
			Tx:          deps.Tx,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Window:      deps.ExpiryNotice,
			Logger:      deps.Logger,
		},
	}
}

func NewInMemoryModule(outbox ports.OutboxWriter, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Licenses:    store,
		Amendments:  store,
		Idempotency: store,
		Outbox:      outbox,
		Tx:          store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
