package media

import (
	"log/slog"
	"time"

	httpadapter "ygbackend/contexts/content/media-service/adapters/http"
	"ygbackend/contexts/content/media-service/adapters/memory"
	"ygbackend/contexts/content/media-service/adapters/signer"
	"ygbackend/contexts/content/media-service/application"
	"ygbackend/contexts/content/media-service/application/workers"
	"ygbackend/contexts/content/media-service/ports"
)

type Module struct {
	Service            application.Service
	Handler            httpadapter.Handler
	ProcessingConsumer workers.ProcessingConsumer
	StaleUploadSweeper workers.StaleUploadSweeper
	Store              *memory.Store
}

type Dependencies struct {
	Repository     ports.Repository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Tx             ports.Transactor
	Signer         ports.URLSigner
	Subscriber     ports.EventSubscriber
	Dedup          ports.EventDedupStore
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	QuotaBytes     int64
	UploadTTL      time.Duration
	DownloadTTL    time.Duration
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:           deps.Repository,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Tx:             deps.Tx,
		Signer:         deps.Signer,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		QuotaBytes:     deps.QuotaBytes,
		UploadTTL:      deps.UploadTTL,
		DownloadTTL:    deps.DownloadTTL,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
		ProcessingConsumer: workers.ProcessingConsumer{
			Subscriber: deps.Subscriber,
			Service:    service,
			Dedup:      deps.Dedup,
			Clock:      deps.Clock,
			Logger:     deps.Logger,
		},
		StaleUploadSweeper: workers.StaleUploadSweeper{Service: service, Logger: deps.Logger},
	}
}

// NewInMemoryModule signs URLs with secret against baseURL.
func NewInMemoryModule(outbox ports.OutboxWriter, secret string, baseURL string, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Idempotency: store,
		Outbox:      outbox,
		Tx:          store,
		Signer:      signer.NewHMACSigner(secret, baseURL),
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
