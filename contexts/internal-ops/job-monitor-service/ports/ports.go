package ports

import (
	"context"
	"time"

	"ygbackend/contexts/internal-ops/job-monitor-service/domain/entities"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type Repository interface {
	SaveSnapshot(ctx context.Context, snapshot entities.QueueSnapshot) error
	LatestSnapshot(ctx context.Context, queue string) (entities.QueueSnapshot, error)
	ListQueues(ctx context.Context) ([]string, error)

	SaveHealth(ctx context.Context, health entities.QueueHealth) error
	GetHealth(ctx context.Context, queue string) (entities.QueueHealth, bool, error)

	GetScalingState(ctx context.Context, queue string) (entities.ScalingState, error)
	SaveScalingDecision(ctx context.Context, decision entities.ScalingDecision, state entities.ScalingState) error
	LastScalingDecision(ctx context.Context, queue string) (entities.ScalingDecision, bool, error)

	AppendLatencySample(ctx context.Context, queue string, duration time.Duration, keep int) error
	ListLatencySamples(ctx context.Context, queue string) ([]time.Duration, error)

	SaveHeartbeat(ctx context.Context, heartbeat entities.WorkerHeartbeat) error
	ListHeartbeats(ctx context.Context) ([]entities.WorkerHeartbeat, error)
	DeleteHeartbeat(ctx context.Context, workerID string) error
}

type RunFilter struct {
	Queue  string
	Status entities.RunStatus
	Limit  int
}

type RunHistory interface {
	InsertRun(ctx context.Context, run entities.JobRun) error
	ListRuns(ctx context.Context, filter RunFilter) ([]entities.JobRun, error)
}

type PolicyStore interface {
	GetPolicy(ctx context.Context, queue string) (entities.QueuePolicy, error)
	ListPolicies(ctx context.Context) ([]entities.QueuePolicy, error)
	UpsertPolicy(ctx context.Context, policy entities.QueuePolicy) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type QueueOverview struct {
	Snapshot entities.QueueSnapshot
	Health   entities.QueueHealth
	Decision *entities.ScalingDecision
	Timeout  entities.TimeoutRecommendation
	Policy   entities.QueuePolicy
}

type WorkerStatus struct {
	Heartbeat entities.WorkerHeartbeat
	Decision  entities.RecycleDecision
}
