package bootstrap

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ygbackend/contexts/internal-ops/job-monitor-service/adapters/policyfile"
	"ygbackend/contexts/internal-ops/job-monitor-service/adapters/runner"
	jobmonitorworkers "ygbackend/contexts/internal-ops/job-monitor-service/application/workers"
	jobmonitorports "ygbackend/contexts/internal-ops/job-monitor-service/ports"
	"ygbackend/internal/platform/jobs"
	"ygbackend/internal/shared/outbox"
)

const (
	QueueOutbox            = "outbox-relay"
	QueueLicenseExpiry     = "license-expiry"
	QueueLicenseNotice     = "license-expiry-notice"
	QueueMediaStaleUploads = "media-stale-uploads"
	QueueNotificationEmail = "notification-email"
	QueuePayoutProcessing  = "payout-processing"
	QueueJobMonitorScaling = "job-monitor-scaling"
	sweepInterval          = time.Minute
	scalingAdvisorInterval = 30 * time.Second
	defaultJobTimeout      = 30 * time.Second
	policyWatchDebounce    = 250 * time.Millisecond
	outboxRelayBatchSize   = 100
	outboxRelayMaxAttempts = 10
)

type consumer interface {
	Start(ctx context.Context) error
}

// Background runs the event consumers, the periodic jobs and the policy file
// watcher for one process.
type Background struct {
	runtime   *Runtime
	runner    jobs.Runner
	consumers map[string]consumer
	watcher   *policyfile.Watcher
}

func NewBackground(rt *Runtime) *Background {
	cfg := rt.Config
	workerID := strings.TrimSpace(cfg.WorkerID)
	if workerID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "worker"
		}
		workerID = host + "-" + strconv.Itoa(os.Getpid())
	}

	b := &Background{
		runtime: rt,
		runner: jobs.Runner{
			Jobs:           buildJobs(rt),
			Monitor:        runner.Monitor{Service: rt.Modules.JobMonitor.Service},
			WorkerID:       workerID,
			DefaultTimeout: defaultJobTimeout,
			Logger:         rt.Logger,
		},
		consumers: map[string]consumer{
			"media_processing":         rt.Modules.Media.ProcessingConsumer,
			"notification_events":      rt.Modules.Notification.EventConsumer,
			"royalty_projection":       rt.Modules.Royalty.ProjectionConsumer,
			"royalty_payout_completed": rt.Modules.Royalty.PayoutCompletedConsumer,
			"payout_statement_issued":  rt.Modules.Payout.StatementIssuedConsumer,
		},
	}
	if cfg.EnablePolicyWatch && strings.TrimSpace(cfg.JobPolicyFile) != "" {
		if store := rt.policyStore(); store != nil {
			b.watcher = &policyfile.Watcher{
				Path:     cfg.JobPolicyFile,
				Store:    store,
				Debounce: policyWatchDebounce,
				Logger:   rt.Logger,
			}
		}
	}
	return b
}

// Run blocks until ctx is cancelled or a component fails.
func (b *Background) Run(ctx context.Context) error {
	logger := b.runtime.Logger
	if b.runtime.Bus == nil {
		return errors.New("background: event bus is not configured")
	}
	for name, c := range b.consumers {
		if err := c.Start(ctx); err != nil {
			return err
		}
		logger.Info("consumer started",
			"event", "bootstrap_consumer_started",
			"module", moduleName,
			"layer", "worker",
			"consumer", name,
		)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return b.runner.Run(groupCtx)
	})
	if b.watcher != nil {
		group.Go(func() error {
			return b.watcher.Run(groupCtx)
		})
	}
	err := group.Wait()
	b.runtime.Bus.Wait()
	logger.Info("background stopped",
		"event", "bootstrap_background_stopped",
		"module", moduleName,
		"layer", "worker",
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func buildJobs(rt *Runtime) []jobs.Job {
	cfg := rt.Config
	modules := rt.Modules
	poll := cfg.WorkerPoll
	if poll <= 0 {
		poll = 2 * time.Second
	}

	relay := outbox.Relay{
		Store:       rt.Outbox,
		Publisher:   rt.Bus,
		BatchSize:   outboxRelayBatchSize,
		MaxAttempts: outboxRelayMaxAttempts,
		Logger:      rt.Logger,
	}
	list := []jobs.Job{
		{
			Name:     "outbox_relay",
			Queue:    QueueOutbox,
			Interval: poll,
			Run: func(ctx context.Context) (jobs.Result, error) {
				sent, err := relay.RunOnce(ctx)
				if err != nil {
					return jobs.Result{Processed: sent}, err
				}
				pending, err := rt.Outbox.CountPending(ctx)
				return jobs.Result{Processed: sent, Pending: pending}, err
			},
		},
		{
			Name:     "media_stale_upload_sweep",
			Queue:    QueueMediaStaleUploads,
			Interval: sweepInterval,
			Run:      countJob(modules.Media.StaleUploadSweeper.RunOnce),
		},
		{
			Name:     "job_monitor_scaling_advisor",
			Queue:    QueueJobMonitorScaling,
			Interval: scalingAdvisorInterval,
			Run: countJob(jobmonitorworkers.ScalingAdvisor{
				Service: modules.JobMonitor.Service,
				Logger:  rt.Logger,
			}.RunOnce),
		},
	}

	if cfg.EnableLicenseSweeps {
		list = append(list,
			jobs.Job{
				Name:     "license_expiry_sweep",
				Queue:    QueueLicenseExpiry,
				Interval: sweepInterval,
				Run:      countJob(modules.License.ExpirySweeper.RunOnce),
			},
			jobs.Job{
				Name:     "license_expiry_notice",
				Queue:    QueueLicenseNotice,
				Interval: sweepInterval,
				Run:      countJob(modules.License.ExpiryNotifier.RunOnce),
			},
		)
	}

	if cfg.EnableEmailDelivery {
		emails := modules.Notification.EmailWorker
		list = append(list, jobs.Job{
			Name:     "notification_email_delivery",
			Queue:    QueueNotificationEmail,
			Interval: poll,
			Run: func(ctx context.Context) (jobs.Result, error) {
				stats, err := emails.RunOnce(ctx)
				if err != nil {
					return jobs.Result{}, err
				}
				pending, err := emails.Pending(ctx)
				return jobs.Result{Processed: stats.Delivered + stats.Failed, Pending: pending}, err
			},
		})
	}

	if cfg.EnablePayoutProcessor {
		processor := modules.Payout.Processor
		list = append(list, jobs.Job{
			Name:     "payout_processing",
			Queue:    QueuePayoutProcessing,
			Interval: poll,
			Run: func(ctx context.Context) (jobs.Result, error) {
				stats, err := processor.RunOnce(ctx)
				if err != nil {
					return jobs.Result{}, err
				}
				pending, err := processor.Pending(ctx)
				return jobs.Result{Processed: stats.Paid + stats.Failed, Pending: pending}, err
			},
		})
	}
	return list
}

func countJob(run func(ctx context.Context) (int, error)) func(ctx context.Context) (jobs.Result, error) {
	return func(ctx context.Context) (jobs.Result, error) {
		n, err := run(ctx)
		return jobs.Result{Processed: n}, err
	}
}

func (rt *Runtime) policyStore() jobmonitorports.PolicyStore {
	if rt.history != nil {
		return rt.history
	}
	if rt.Modules.JobMonitor.Store != nil {
		return rt.Modules.JobMonitor.Store
	}
	return nil
}
