package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"ygbackend/contexts/internal-ops/job-monitor-service/domain/entities"
	domainerrors "ygbackend/contexts/internal-ops/job-monitor-service/domain/errors"
	"ygbackend/contexts/internal-ops/job-monitor-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const module = "internal-ops/job-monitor-service"

type Service struct {
	Repo     ports.Repository
	History  ports.RunHistory
	Policies ports.PolicyStore
	Outbox   ports.OutboxWriter
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

// RecordSnapshot stores a queue sample and re-evaluates the queue's health.
// Entering the critical state emits one alert event per transition.
func (s Service) RecordSnapshot(ctx context.Context, snapshot entities.QueueSnapshot) (entities.QueueHealth, error) {
	snapshot.Queue = strings.TrimSpace(snapshot.Queue)
	if err := snapshot.Validate(); err != nil {
		return entities.QueueHealth{}, err
	}
	now := s.now()
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = now
	}

	policy, err := s.Policies.GetPolicy(ctx, snapshot.Queue)
	if err != nil {
		return entities.QueueHealth{}, err
	}
	previous, hadPrevious, err := s.Repo.GetHealth(ctx, snapshot.Queue)
	if err != nil {
		return entities.QueueHealth{}, err
	}
	if err := s.Repo.SaveSnapshot(ctx, snapshot); err != nil {
		return entities.QueueHealth{}, err
	}

	health := entities.EvaluateHealth(snapshot, policy, now)
	if err := s.Repo.SaveHealth(ctx, health); err != nil {
		return entities.QueueHealth{}, err
	}

	logger := ResolveLogger(s.Logger)
	if hadPrevious && previous.Status != health.Status {
		logger.Info("queue health changed",
			"event", "job_monitor_health_changed",
			"module", module,
			"layer", "application",
			"queue", health.Queue,
			"from", previous.Status,
			"to", health.Status,
		)
	}
	if health.Status == entities.HealthCritical && (!hadPrevious || previous.Status != entities.HealthCritical) {
		logger.Warn("queue entered critical state",
			"event", "job_monitor_queue_critical",
			"module", module,
			"layer", "application",
			"queue", health.Queue,
			"issues", strings.Join(health.Issues, "; "),
		)
		if err := s.appendQueueCritical(ctx, health); err != nil {
			return entities.QueueHealth{}, err
		}
	}
	return health, nil
}

func (s Service) ListQueueHealth(ctx context.Context) ([]entities.QueueHealth, error) {
	queues, err := s.Repo.ListQueues(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(queues)
	items := make([]entities.QueueHealth, 0, len(queues))
	for _, queue := range queues {
		health, found, err := s.Repo.GetHealth(ctx, queue)
		if err != nil {
			return nil, err
		}
		if found {
			items = append(items, health)
		}
	}
	return items, nil
}

func (s Service) GetQueue(ctx context.Context, queue string) (ports.QueueOverview, error) {
	queue = strings.TrimSpace(queue)
	snapshot, err := s.Repo.LatestSnapshot(ctx, queue)
	if err != nil {
		return ports.QueueOverview{}, err
	}
	policy, err := s.Policies.GetPolicy(ctx, queue)
	if err != nil {
		return ports.QueueOverview{}, err
	}
	health, found, err := s.Repo.GetHealth(ctx, queue)
	if err != nil {
		return ports.QueueOverview{}, err
	}
	if !found {
		health = entities.EvaluateHealth(snapshot, policy, s.now())
	}
	timeout, err := s.GetTimeout(ctx, queue)
	if err != nil {
		return ports.QueueOverview{}, err
	}
	overview := ports.QueueOverview{
		Snapshot: snapshot,
		Health:   health,
		Timeout:  timeout,
		Policy:   policy,
	}
	decision, found, err := s.Repo.LastScalingDecision(ctx, queue)
	if err != nil {
		return ports.QueueOverview{}, err
	}
	if found {
		overview.Decision = &decision
	}
	return overview, nil
}

// RecommendScaling computes and records a worker-count decision from the
// latest snapshot.
func (s Service) RecommendScaling(ctx context.Context, queue string) (entities.ScalingDecision, error) {
	queue = strings.TrimSpace(queue)
	snapshot, err := s.Repo.LatestSnapshot(ctx, queue)
	if err != nil {
		return entities.ScalingDecision{}, err
	}
	policy, err := s.Policies.GetPolicy(ctx, queue)
	if err != nil {
		return entities.ScalingDecision{}, err
	}
	state, err := s.Repo.GetScalingState(ctx, queue)
	if err != nil {
		return entities.ScalingDecision{}, err
	}

	decision := entities.DecideScaling(snapshot, policy, state, s.now())
	if err := s.Repo.SaveScalingDecision(ctx, decision, state.Apply(decision)); err != nil {
		return entities.ScalingDecision{}, err
	}
	if decision.Action != entities.ScaleHold {
		ResolveLogger(s.Logger).Info("queue scaling recommended",
			"event", "job_monitor_scaling_recommended",
			"module", module,
			"layer", "application",
			"queue", queue,
			"action", decision.Action,
			"current_workers", decision.CurrentWorkers,
			"desired_workers", decision.DesiredWorkers,
			"reason", decision.Reason,
		)
	}
	return decision, nil
}

func (s Service) GetTimeout(ctx context.Context, queue string) (entities.TimeoutRecommendation, error) {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return entities.TimeoutRecommendation{}, domainerrors.ErrQueueNotFound
	}
	policy, err := s.Policies.GetPolicy(ctx, queue)
	if err != nil {
		return entities.TimeoutRecommendation{}, err
	}
	samples, err := s.Repo.ListLatencySamples(ctx, queue)
	if err != nil {
		return entities.TimeoutRecommendation{}, err
	}
	return entities.AdaptiveTimeout(queue, samples, policy), nil
}

// RecordJobRun appends a run to history; successful durations feed the
// adaptive timeout window.
func (s Service) RecordJobRun(ctx context.Context, run entities.JobRun) (entities.JobRun, error) {
	run.Queue = strings.TrimSpace(run.Queue)
	run.JobName = strings.TrimSpace(run.JobName)
	if err := run.Validate(); err != nil {
		return entities.JobRun{}, err
	}
	if strings.TrimSpace(run.RunID) == "" {
		id, err := s.IDGen.NewID(ctx)
		if err != nil {
			return entities.JobRun{}, err
		}
		run.RunID = id
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt.Add(-run.Duration)
	}
	if run.Attempt == 0 {
		run.Attempt = 1
	}

	if err := s.History.InsertRun(ctx, run); err != nil {
		return entities.JobRun{}, err
	}
	if run.Status == entities.RunSucceeded {
		if err := s.Repo.AppendLatencySample(ctx, run.Queue, run.Duration, entities.LatencyWindow); err != nil {
			return entities.JobRun{}, err
		}
	} else {
		ResolveLogger(s.Logger).Warn("job run failed",
			"event", "job_monitor_run_failed",
			"module", module,
			"layer", "application",
			"queue", run.Queue,
			"job_name", run.JobName,
			"attempt", run.Attempt,
			"error", run.Error,
		)
	}
	return run, nil
}

func (s Service) ListJobRuns(ctx context.Context, filter ports.RunFilter) ([]entities.JobRun, error) {
	filter.Queue = strings.TrimSpace(filter.Queue)
	if filter.Status != "" && filter.Status != entities.RunSucceeded && filter.Status != entities.RunFailed {
		return nil, domainerrors.ErrInvalidJobRun
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	return s.History.ListRuns(ctx, filter)
}

// Heartbeat stores a worker report and answers whether it should recycle.
func (s Service) Heartbeat(ctx context.Context, heartbeat entities.WorkerHeartbeat) (entities.RecycleDecision, error) {
	heartbeat.WorkerID = strings.TrimSpace(heartbeat.WorkerID)
	heartbeat.Queue = strings.TrimSpace(heartbeat.Queue)
	if err := heartbeat.Validate(); err != nil {
		return entities.RecycleDecision{}, err
	}
	now := s.now()
	heartbeat.LastSeenAt = now
	if heartbeat.StartedAt.IsZero() {
		heartbeat.StartedAt = now
	}
	policy, err := s.Policies.GetPolicy(ctx, heartbeat.Queue)
	if err != nil {
		return entities.RecycleDecision{}, err
	}

	decision := entities.EvaluateRecycle(heartbeat, policy, now)
	if decision.Recycle {
		// The worker restarts with a fresh identity; drop the old record.
		if err := s.Repo.DeleteHeartbeat(ctx, heartbeat.WorkerID); err != nil {
			return entities.RecycleDecision{}, err
		}
		ResolveLogger(s.Logger).Info("worker recycle requested",
			"event", "job_monitor_worker_recycle",
			"module", module,
			"layer", "application",
			"worker_id", heartbeat.WorkerID,
			"queue", heartbeat.Queue,
			"reason", decision.Reason,
			"detail", decision.Detail,
		)
		return decision, nil
	}
	if err := s.Repo.SaveHeartbeat(ctx, heartbeat); err != nil {
		return entities.RecycleDecision{}, err
	}
	return decision, nil
}

func (s Service) ListWorkers(ctx context.Context) ([]ports.WorkerStatus, error) {
	heartbeats, err := s.Repo.ListHeartbeats(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	items := make([]ports.WorkerStatus, 0, len(heartbeats))
	for _, heartbeat := range heartbeats {
		policy, err := s.Policies.GetPolicy(ctx, heartbeat.Queue)
		if err != nil {
			return nil, err
		}
		items = append(items, ports.WorkerStatus{
			Heartbeat: heartbeat,
			Decision:  entities.EvaluateRecycle(heartbeat, policy, now),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Heartbeat.WorkerID < items[j].Heartbeat.WorkerID
	})
	return items, nil
}

// ReapStaleWorkers drops heartbeats that outlived their queue's TTL and
// returns how many were removed.
func (s Service) ReapStaleWorkers(ctx context.Context) (int, error) {
	workers, err := s.ListWorkers(ctx)
	if err != nil {
		return 0, err
	}
	reaped := 0
	for _, worker := range workers {
		if worker.Decision.Reason != entities.RecycleStale {
			continue
		}
		if err := s.Repo.DeleteHeartbeat(ctx, worker.Heartbeat.WorkerID); err != nil {
			return reaped, err
		}
		reaped++
		ResolveLogger(s.Logger).Warn("stale worker reaped",
			"event", "job_monitor_worker_reaped",
			"module", module,
			"layer", "application",
			"worker_id", worker.Heartbeat.WorkerID,
			"queue", worker.Heartbeat.Queue,
			"detail", worker.Decision.Detail,
		)
	}
	return reaped, nil
}

func (s Service) GetPolicy(ctx context.Context, queue string) (entities.QueuePolicy, error) {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return entities.QueuePolicy{}, domainerrors.ErrInvalidPolicy
	}
	return s.Policies.GetPolicy(ctx, queue)
}

func (s Service) ListPolicies(ctx context.Context) ([]entities.QueuePolicy, error) {
	return s.Policies.ListPolicies(ctx)
}

func (s Service) UpsertPolicy(ctx context.Context, policy entities.QueuePolicy) (entities.QueuePolicy, error) {
	policy.Queue = strings.TrimSpace(policy.Queue)
	if err := policy.Validate(); err != nil {
		return entities.QueuePolicy{}, err
	}
	if err := s.Policies.UpsertPolicy(ctx, policy); err != nil {
		return entities.QueuePolicy{}, err
	}
	ResolveLogger(s.Logger).Info("queue policy updated",
		"event", "job_monitor_policy_updated",
		"module", module,
		"layer", "application",
		"queue", policy.Queue,
		"min_workers", policy.MinWorkers,
		"max_workers", policy.MaxWorkers,
	)
	return policy, nil
}

func (s Service) appendQueueCritical(ctx context.Context, health entities.QueueHealth) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(contractsv1.QueueCriticalData{
		Queue:       health.Queue,
		Issues:      health.Issues,
		Waiting:     health.Waiting,
		FailureRate: health.FailureRate,
		DetectedAt:  health.EvaluatedAt,
	})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        contractsv1.EventQueueCritical,
		OccurredAt:       health.EvaluatedAt,
		SourceService:    "job-monitor-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "queue",
		PartitionKey:     health.Queue,
		Data:             data,
	})
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
