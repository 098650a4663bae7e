// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	jobmonitorsqlite "ygbackend/contexts/internal-ops/job-monitor-service/adapters/sqlite"
	"ygbackend/internal/platform/auth"
	"ygbackend/internal/platform/config"
	"ygbackend/internal/platform/db"
	"ygbackend/internal/platform/errtrack"
	"ygbackend/internal/platform/httpserver"
	"ygbackend/internal/platform/logging"
	platformmessaging "ygbackend/internal/platform/messaging"
	"ygbackend/internal/platform/migrate"
	"ygbackend/internal/platform/otel"
	"ygbackend/internal/platform/ratelimit"
	"ygbackend/internal/shared/outbox"
)

const moduleName = "internal/app/bootstrap"

// Version is stamped at build time with -ldflags.
var Version = "dev"

// Runtime holds the process-wide infrastructure and the wired modules.
type Runtime struct {
	Config   config.Config
	Logger   *slog.Logger
	Modules  httpserver.Modules
	Outbox   outbox.Store
	Bus      *platformmessaging.Kafka
	Reporter errtrack.Reporter

	postgres        *db.Postgres
	history         *jobmonitorsqlite.Store
	shutdownTracing func(context.Context) error
}

// NewRuntime connects storage and builds every module. withBus is false for
// an API process backed by Postgres: there the worker relays events.
func NewRuntime(ctx context.Context, cfg config.Config, process string, withBus bool) (*Runtime, error) {
	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel).With(
		"service", cfg.ServiceName,
		"process", process,
	)
	slog.SetDefault(logger)

	rt := &Runtime{Config: cfg, Logger: logger}

	reporter, err := errtrack.Init(cfg.SentryDSN, cfg.Environment, Version)
	if err != nil {
		return nil, fmt.Errorf("init error tracking: %w", err)
	}
	rt.Reporter = reporter

	shutdown, err := otel.Setup(ctx, cfg.ServiceName+"-"+process, cfg.OTELEndpoint, cfg.OTELEnabled)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	rt.shutdownTracing = shutdown

	if cfg.UsesPostgres() {
		if cfg.AutoMigrate {
			if err := (migrate.Runner{DSN: cfg.PostgresDSN, Logger: logger}).Up(); err != nil {
				return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), rt.Close(ctx))
			}
		}
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, errors.Join(err, rt.Close(ctx))
		}
		rt.postgres = pg
		rt.Outbox = outbox.NewGormStore(pg.DB)
	} else {
		rt.Outbox = outbox.NewMemoryStore()
		withBus = true
	}

	if withBus {
		bus, err := platformmessaging.NewKafka(cfg.KafkaBrokers, logger)
		if err != nil {
			return nil, errors.Join(err, rt.Close(ctx))
		}
		rt.Bus = bus
	}

	modules, history, err := backing{
		cfg:    cfg,
		pg:     rt.postgres,
		outbox: rt.Outbox,
		bus:    rt.Bus,
		logger: logger,
	}.buildModules()
	if err != nil {
		return nil, errors.Join(err, rt.Close(ctx))
	}
	rt.Modules = modules
	rt.history = history

	logger.Info("runtime built",
		"event", "bootstrap_runtime_built",
		"module", moduleName,
		"layer", "platform",
		"storage", cfg.StorageDriver,
		"bus", rt.Bus != nil,
		"version", Version,
	)
	return rt, nil
}

func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.history != nil {
		errs = append(errs, rt.history.Close())
	}
	if rt.postgres != nil {
		errs = append(errs, rt.postgres.Close())
	}
	if rt.shutdownTracing != nil {
		errs = append(errs, rt.shutdownTracing(ctx))
	}
	rt.Reporter.Flush(2 * time.Second)
	return errors.Join(errs...)
}

type APIApp struct {
	runtime    *Runtime
	server     *httpserver.Server
	limiter    *ratelimit.FixedWindowLimiter
	background *Background
}

// BuildAPI wires the HTTP process. With memory storage the background jobs
// run in the same process because nothing else can see the stores.
func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	rt, err := NewRuntime(ctx, cfg, "api", false)
	if err != nil {
		return nil, err
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = "ygbackend-dev-secret"
		rt.Logger.Warn("JWT_SECRET not set, using development secret",
			"event", "bootstrap_dev_jwt_secret",
			"module", moduleName,
			"layer", "platform",
		)
	}
	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RateLimitRequests > 0 {
		limiter = ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow)
	}

	app := &APIApp{
		runtime: rt,
		limiter: limiter,
		server: httpserver.New(rt.Modules, httpserver.Options{
			Addr:         normalizeAddr(cfg.HTTPPort),
			Tokens:       auth.Tokens{Secret: []byte(secret), Issuer: cfg.JWTIssuer},
			Limiter:      limiter,
			CORSOrigins:  cfg.CORSAllowedOrigins,
			AdminUserIDs: cfg.AdminUserIDs,
			Reporter:     rt.Reporter,
			Logger:       rt.Logger,
		}),
	}
	if !cfg.UsesPostgres() {
		app.background = NewBackground(rt)
	}
	return app, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	a.runtime.Logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", moduleName,
		"layer", "platform",
		"inline_workers", a.background != nil,
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.server.Start(groupCtx)
	})
	if a.limiter != nil {
		group.Go(func() error {
			sweepLimiter(groupCtx, a.limiter, a.runtime.Config.RateLimitWindow)
			return nil
		})
	}
	if a.background != nil {
		group.Go(func() error {
			return a.background.Run(groupCtx)
		})
	}
	return group.Wait()
}

func (a *APIApp) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.runtime.Close(ctx)
}

type WorkerApp struct {
	runtime    *Runtime
	background *Background
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !cfg.UsesPostgres() {
		return nil, errors.New("worker requires STORAGE_DRIVER=postgres; the api runs jobs inline in memory mode")
	}
	rt, err := NewRuntime(ctx, cfg, "worker", true)
	if err != nil {
		return nil, err
	}
	return &WorkerApp{runtime: rt, background: NewBackground(rt)}, nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.runtime.Logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", moduleName,
		"layer", "platform",
		"poll_interval", w.runtime.Config.WorkerPoll.String(),
	)
	return w.background.Run(ctx)
}

func (w *WorkerApp) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.runtime.Close(ctx)
}

func sweepLimiter(ctx context.Context, limiter *ratelimit.FixedWindowLimiter, window time.Duration) {
	if window <= 0 {
		window = time.Minute
	}
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
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
