package bootstrap

import (
	"context"
	"log/slog"
	"time"

	messaging "ygbackend/contexts/communications/messaging-service"
	messagingmemory "ygbackend/contexts/communications/messaging-service/adapters/memory"
	messagingpostgres "ygbackend/contexts/communications/messaging-service/adapters/postgres"
	notification "ygbackend/contexts/communications/notification-service"
	notificationemail "ygbackend/contexts/communications/notification-service/adapters/email"
	notificationmemory "ygbackend/contexts/communications/notification-service/adapters/memory"
	notificationpostgres "ygbackend/contexts/communications/notification-service/adapters/postgres"
	notificationrender "ygbackend/contexts/communications/notification-service/adapters/render"
	notificationports "ygbackend/contexts/communications/notification-service/ports"
	media "ygbackend/contexts/content/media-service"
	mediamemory "ygbackend/contexts/content/media-service/adapters/memory"
	mediapostgres "ygbackend/contexts/content/media-service/adapters/postgres"
	mediasigner "ygbackend/contexts/content/media-service/adapters/signer"
	payout "ygbackend/contexts/finance-core/payout-service"
	payoutmemory "ygbackend/contexts/finance-core/payout-service/adapters/memory"
	payoutpostgres "ygbackend/contexts/finance-core/payout-service/adapters/postgres"
	stripeadapter "ygbackend/contexts/finance-core/payout-service/adapters/stripe"
	payoutports "ygbackend/contexts/finance-core/payout-service/ports"
	royalty "ygbackend/contexts/finance-core/royalty-service"
	royaltymemory "ygbackend/contexts/finance-core/royalty-service/adapters/memory"
	royaltypostgres "ygbackend/contexts/finance-core/royalty-service/adapters/postgres"
	jobmonitor "ygbackend/contexts/internal-ops/job-monitor-service"
	jobmonitormemory "ygbackend/contexts/internal-ops/job-monitor-service/adapters/memory"
	jobmonitorsqlite "ygbackend/contexts/internal-ops/job-monitor-service/adapters/sqlite"
	ipasset "ygbackend/contexts/rights-management/ip-asset-service"
	ipassetmemory "ygbackend/contexts/rights-management/ip-asset-service/adapters/memory"
	ipassetpostgres "ygbackend/contexts/rights-management/ip-asset-service/adapters/postgres"
	license "ygbackend/contexts/rights-management/license-service"
	licensememory "ygbackend/contexts/rights-management/license-service/adapters/memory"
	licensepostgres "ygbackend/contexts/rights-management/license-service/adapters/postgres"
	contractsv1 "ygbackend/contracts/gen/events/v1"
	"ygbackend/internal/platform/config"
	"ygbackend/internal/platform/db"
	"ygbackend/internal/platform/httpserver"
	platformmessaging "ygbackend/internal/platform/messaging"
	"ygbackend/internal/platform/ratelimit"
	"ygbackend/internal/platform/retry"
	"ygbackend/internal/shared/outbox"
)

// eventDedup is the dedup shape every consuming context declares.
type eventDedup interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
}

// backing is the storage every module is built on: Postgres when pg is set,
// per-module memory stores otherwise.
type backing struct {
	cfg    config.Config
	pg     *db.Postgres
	outbox outbox.Store
	bus    *platformmessaging.Kafka
	logger *slog.Logger
}

func (b backing) postgres() bool {
	return b.pg != nil
}

func (b backing) tx() db.Transactor {
	return db.Transactor{DB: b.pg.DB}
}

// eventSubscriber is the Subscribe shape every consuming context declares.
type eventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, contractsv1.Envelope) error) error
}

// txSubscriber runs each delivery in one transaction so the dedup row and the
// handler's writes commit or roll back together.
type txSubscriber struct {
	next eventSubscriber
	tx   db.Transactor
}

func (s txSubscriber) Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, contractsv1.Envelope) error) error {
	return s.next.Subscribe(ctx, topic, consumerGroup, func(ctx context.Context, event contractsv1.Envelope) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			return handler(ctx, event)
		})
	})
}

// subscriber is nil for a Postgres API process, which runs no consumers.
func (b backing) subscriber() eventSubscriber {
	if b.bus == nil {
		return nil
	}
	if b.postgres() {
		return txSubscriber{next: b.bus, tx: b.tx()}
	}
	return b.bus
}

func (b backing) dedup(consumer string) eventDedup {
	if b.postgres() {
		return outbox.NewGormDedup(b.pg.DB, consumer)
	}
	return outbox.NewMemoryDedup(consumer)
}

func (b backing) moduleLogger(name string) *slog.Logger {
	return b.logger.With("context", name)
}

func (b backing) buildModules() (httpserver.Modules, *jobmonitorsqlite.Store, error) {
	jobs, history, err := b.jobMonitorModule()
	if err != nil {
		return httpserver.Modules{}, nil, err
	}
	return httpserver.Modules{
		IPAsset:      b.ipAssetModule(),
		License:      b.licenseModule(),
		Media:        b.mediaModule(),
		Messaging:    b.messagingModule(),
		Notification: b.notificationModule(),
		Royalty:      b.royaltyModule(),
		Payout:       b.payoutModule(),
		JobMonitor:   jobs,
	}, history, nil
}

func (b backing) ipAssetModule() ipasset.Module {
	logger := b.moduleLogger("ip-asset")
	if b.postgres() {
		repo := ipassetpostgres.NewRepository(b.pg.DB, logger)
		return ipasset.NewModule(ipasset.Dependencies{
			Repository:     repo,
			Idempotency:    repo,
			Outbox:         b.outbox,
			Tx:             b.tx(),
			Clock:          ipassetpostgres.SystemClock{},
			IDGenerator:    ipassetpostgres.UUIDGenerator{},
			IdempotencyTTL: b.cfg.IdempotencyTTL,
			Logger:         logger,
		})
	}
	store := ipassetmemory.NewStore()
	module := ipasset.NewModule(ipasset.Dependencies{
		Repository:     store,
		Idempotency:    store,
		Outbox:         b.outbox,
		Tx:             store,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: b.cfg.IdempotencyTTL,
		Logger:         logger,
	})
	module.Store = store
	return module
}

func (b backing) licenseModule() license.Module {
	logger := b.moduleLogger("license")
	if b.postgres() {
		repo := licensepostgres.NewRepository(b.pg.DB, logger)
		return license.NewModule(license.Dependencies{
			Licenses:       repo,
			Amendments:     repo,
			Idempotency:    repo,
			Outbox:         b.outbox,
			Tx:             b.tx(),
			Clock:          licensepostgres.SystemClock{},
			IDGenerator:    licensepostgres.UUIDGenerator{},
			IdempotencyTTL: b.cfg.IdempotencyTTL,
			ExpiryNotice:   b.cfg.LicenseExpiryNotice,
			Logger:         logger,
		})
	}
	store := licensememory.NewStore()
	module := license.NewModule(license.Dependencies{
		Licenses:       store,
		Amendments:     store,
		Idempotency:    store,
		Outbox:         b.outbox,
		Tx:             store,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: b.cfg.IdempotencyTTL,
		ExpiryNotice:   b.cfg.LicenseExpiryNotice,
		Logger:         logger,
	})
	module.Store = store
	return module
}

func (b backing) mediaModule() media.Module {
	logger := b.moduleLogger("media")
	deps := media.Dependencies{
		Outbox:         b.outbox,
		Signer:         mediasigner.NewHMACSigner(b.cfg.Media.SigningSecret, b.cfg.Media.BaseURL),
		Subscriber:     b.subscriber(),
		Dedup:          b.dedup("media-processing-cg"),
		QuotaBytes:     b.cfg.Media.QuotaBytes,
		UploadTTL:      b.cfg.Media.UploadTTL,
		DownloadTTL:    b.cfg.Media.DownloadTTL,
		IdempotencyTTL: b.cfg.IdempotencyTTL,
		Logger:         logger,
	}
	if b.postgres() {
		repo := mediapostgres.NewRepository(b.pg.DB, logger)
		deps.Repository = repo
		deps.Idempotency = repo
		deps.Tx = b.tx()
		deps.Clock = mediapostgres.SystemClock{}
		deps.IDGenerator = mediapostgres.UUIDGenerator{}
		return media.NewModule(deps)
	}
	store := mediamemory.NewStore()
	deps.Repository = store
	deps.Idempotency = store
	deps.Tx = store
	deps.Clock = store
	deps.IDGenerator = store
	module := media.NewModule(deps)
	module.Store = store
	return module
}

func (b backing) messagingModule() messaging.Module {
	logger := b.moduleLogger("messaging")
	limiter := ratelimit.New(b.cfg.MessageRateLimit, time.Minute)
	if b.postgres() {
		repo := messagingpostgres.NewRepository(b.pg.DB, logger)
		return messaging.NewModule(messaging.Dependencies{
			Repository:     repo,
			Idempotency:    repo,
			Outbox:         b.outbox,
			Tx:             b.tx(),
			RateLimiter:    limiter,
			Clock:          messagingpostgres.SystemClock{},
			IDGenerator:    messagingpostgres.UUIDGenerator{},
			IdempotencyTTL: b.cfg.IdempotencyTTL,
			Logger:         logger,
		})
	}
	store := messagingmemory.NewStore()
	module := messaging.NewModule(messaging.Dependencies{
		Repository:     store,
		Idempotency:    store,
		Outbox:         b.outbox,
		Tx:             store,
		RateLimiter:    limiter,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: b.cfg.IdempotencyTTL,
		Logger:         logger,
	})
	module.Store = store
	return module
}

func (b backing) notificationModule() notification.Module {
	logger := b.moduleLogger("notification")
	deps := notification.Dependencies{
		Subscriber:   b.subscriber(),
		Dedup:        b.dedup("notification-events-cg"),
		Sender:       b.emailSender(logger),
		Retry:        retry.Default(),
		Money:        notificationrender.NewMoneyFormatter("en-US"),
		AdminUserIDs: b.cfg.AdminUserIDs,
		AppBaseURL:   b.cfg.AppBaseURL,
		Logger:       logger,
	}
	if b.postgres() {
		deps.Repository = notificationpostgres.NewRepository(b.pg.DB, logger)
		deps.Tx = b.tx()
		deps.Clock = notificationpostgres.SystemClock{}
		deps.IDGenerator = notificationpostgres.UUIDGenerator{}
		return notification.NewModule(deps)
	}
	store := notificationmemory.NewStore()
	deps.Repository = store
	deps.Tx = store
	deps.Clock = store
	deps.IDGenerator = store
	module := notification.NewModule(deps)
	module.Store = store
	return module
}

func (b backing) emailSender(logger *slog.Logger) notificationports.EmailSender {
	if b.cfg.SMTP.Host == "" {
		return notificationemail.LogSender{Logger: logger}
	}
	return notificationemail.NewSMTPSender(notificationemail.SMTPConfig{
		Host:     b.cfg.SMTP.Host,
		Port:     b.cfg.SMTP.Port,
		Username: b.cfg.SMTP.Username,
		Password: b.cfg.SMTP.Password,
		From:     b.cfg.SMTP.From,
	})
}

func (b backing) royaltyModule() royalty.Module {
	logger := b.moduleLogger("royalty")
	deps := royalty.Dependencies{
		Outbox:         b.outbox,
		Subscriber:     b.subscriber(),
		Dedup:          b.dedup("royalty-cg"),
		IdempotencyTTL: b.cfg.IdempotencyTTL,
		PlatformFeeBps: b.cfg.PlatformFeeBps,
		Logger:         logger,
	}
	if b.postgres() {
		repo := royaltypostgres.NewRepository(b.pg.DB, logger)
		deps.Repository = repo
		deps.Idempotency = repo
		deps.Tx = b.tx()
		deps.Clock = royaltypostgres.SystemClock{}
		deps.IDGenerator = royaltypostgres.UUIDGenerator{}
		return royalty.NewModule(deps)
	}
	store := royaltymemory.NewStore()
	deps.Repository = store
	deps.Idempotency = store
	deps.Tx = store
	deps.Clock = store
	deps.IDGenerator = store
	module := royalty.NewModule(deps)
	module.Store = store
	return module
}

func (b backing) payoutModule() payout.Module {
	logger := b.moduleLogger("payout")
	deps := payout.Dependencies{
		Gateway:        b.stripeGateway(logger),
		Outbox:         b.outbox,
		Subscriber:     b.subscriber(),
		Dedup:          b.dedup("payout-ledger-cg"),
		Retry:          retry.Default(),
		IdempotencyTTL: b.cfg.IdempotencyTTL,
		MinPayoutCents: b.cfg.MinPayoutCents,
		Country:        b.cfg.Stripe.Country,
		Logger:         logger,
	}
	if b.postgres() {
		repo := payoutpostgres.NewRepository(b.pg.DB, logger)
		deps.Repository = repo
		deps.Idempotency = repo
		deps.Tx = b.tx()
		deps.Clock = payoutpostgres.SystemClock{}
		deps.IDGenerator = payoutpostgres.UUIDGenerator{}
		return payout.NewModule(deps)
	}
	store := payoutmemory.NewStore()
	deps.Repository = store
	deps.Idempotency = store
	deps.Tx = store
	deps.Clock = store
	deps.IDGenerator = store
	module := payout.NewModule(deps)
	module.Store = store
	return module
}

// stripeGateway falls back to the in-process sandbox when no secret key is set.
func (b backing) stripeGateway(logger *slog.Logger) payoutports.StripeGateway {
	if b.cfg.Stripe.SecretKey == "" {
		logger.Warn("stripe secret key not set, using sandbox gateway",
			"event", "payout_sandbox_gateway",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return payoutmemory.NewSandboxGateway(b.cfg.Stripe.WebhookSecret)
	}
	return stripeadapter.NewGateway(stripeadapter.Config{
		SecretKey:     b.cfg.Stripe.SecretKey,
		WebhookSecret: b.cfg.Stripe.WebhookSecret,
		ReturnURL:     b.cfg.Stripe.ReturnURL,
		RefreshURL:    b.cfg.Stripe.RefreshURL,
	})
}

// jobMonitorModule keeps queue telemetry in SQLite unless JOB_HISTORY_DB is
// empty, in which case it stays in memory.
func (b backing) jobMonitorModule() (jobmonitor.Module, *jobmonitorsqlite.Store, error) {
	logger := b.moduleLogger("job-monitor")
	if b.cfg.JobHistoryDB == "" {
		store := jobmonitormemory.NewStore()
		module := jobmonitor.NewModule(jobmonitor.Dependencies{
			Repository:  store,
			History:     store,
			Policies:    store,
			Outbox:      b.outbox,
			Clock:       store,
			IDGenerator: store,
			Logger:      logger,
		})
		module.Store = store
		return module, nil, nil
	}
	store, err := jobmonitorsqlite.Open(b.cfg.JobHistoryDB)
	if err != nil {
		return jobmonitor.Module{}, nil, err
	}
	return jobmonitor.NewModule(jobmonitor.Dependencies{
		Repository:  store,
		History:     store,
		Policies:    store,
		Outbox:      b.outbox,
		Clock:       jobmonitorsqlite.SystemClock{},
		IDGenerator: jobmonitorsqlite.UUIDGenerator{},
		Logger:      logger,
	}), store, nil
}
