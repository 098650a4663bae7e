package notification

import (
	"log/slog"

	"ygbackend/contexts/communications/notification-service/adapters/email"
	httpadapter "ygbackend/contexts/communications/notification-service/adapters/http"
	"ygbackend/contexts/communications/notification-service/adapters/memory"
	"ygbackend/contexts/communications/notification-service/adapters/render"
	"ygbackend/contexts/communications/notification-service/application"
	"ygbackend/contexts/communications/notification-service/application/workers"
	"ygbackend/contexts/communications/notification-service/ports"
	"ygbackend/internal/platform/retry"
)

type Module struct {
	Service       application.Service
	Handler       httpadapter.Handler
	EventConsumer workers.EventConsumer
	EmailWorker   workers.EmailDeliveryWorker
	Store         *memory.Store
}

type Dependencies struct {
	Repository   ports.Repository
	Tx           ports.Transactor
	Subscriber   ports.EventSubscriber
	Dedup        ports.EventDedupStore
	Sender       ports.EmailSender
	Retry        ports.RetryPolicy
	Money        ports.MoneyFormatter
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	AdminUserIDs []string
	AppBaseURL   string
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	if deps.Retry == nil {
		deps.Retry = retry.Default()
	}
	if deps.Money == nil {
		deps.Money = render.NewMoneyFormatter("en-US")
	}
	if deps.Sender == nil {
		deps.Sender = email.LogSender{Logger: deps.Logger}
	}
	service := application.Service{
		Repo:   deps.Repository,
		Tx:     deps.Tx,
		Clock:  deps.Clock,
		IDGen:  deps.IDGenerator,
		Logger: deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
		EventConsumer: workers.EventConsumer{
			Subscriber:   deps.Subscriber,
			Service:      service,
			Dedup:        deps.Dedup,
			Clock:        deps.Clock,
			Money:        deps.Money,
			AdminUserIDs: deps.AdminUserIDs,
			Logger:       deps.Logger,
		},
		EmailWorker: workers.EmailDeliveryWorker{
			Repo:    deps.Repository,
			Sender:  deps.Sender,
			Retry:   deps.Retry,
			Clock:   deps.Clock,
			BaseURL: deps.AppBaseURL,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(subscriber ports.EventSubscriber, dedup ports.EventDedupStore, sender ports.EmailSender, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Tx:          store,
		Subscriber:  subscriber,
		Dedup:       dedup,
		Sender:      sender,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
