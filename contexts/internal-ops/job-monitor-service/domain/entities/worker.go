package entities

import (
	"fmt"
	"strings"
	"time"

	domainerrors "ygbackend/contexts/internal-ops/job-monitor-service/domain/errors"
)

type WorkerHeartbeat struct {
	WorkerID      string
	Queue         string
	RSSMB         float64
	JobsProcessed int
	StartedAt     time.Time
	LastSeenAt    time.Time
}

func (h WorkerHeartbeat) Validate() error {
	if strings.TrimSpace(h.WorkerID) == "" || strings.TrimSpace(h.Queue) == "" {
		return domainerrors.ErrInvalidHeartbeat
	}
	if h.RSSMB < 0 || h.JobsProcessed < 0 {
		return domainerrors.ErrInvalidHeartbeat
	}
	return nil
}

type RecycleReason string

const (
	RecycleMemory RecycleReason = "memory_limit"
	RecycleJobs   RecycleReason = "job_limit"
	RecycleStale  RecycleReason = "stale_heartbeat"
)

type RecycleDecision struct {
	WorkerID string
	Queue    string
	Recycle  bool
	Reason   RecycleReason
	Detail   string
}

// EvaluateRecycle decides whether a worker should be restarted to reclaim
// memory or because it stopped reporting.
func EvaluateRecycle(heartbeat WorkerHeartbeat, policy QueuePolicy, now time.Time) RecycleDecision {
	decision := RecycleDecision{WorkerID: heartbeat.WorkerID, Queue: heartbeat.Queue}
	switch {
	case policy.HeartbeatTTL > 0 && now.Sub(heartbeat.LastSeenAt) > policy.HeartbeatTTL:
		decision.Recycle = true
		decision.Reason = RecycleStale
		decision.Detail = fmt.Sprintf("last heartbeat %s ago", now.Sub(heartbeat.LastSeenAt).Truncate(time.Second))
	case policy.MaxMemoryMB > 0 && heartbeat.RSSMB > policy.MaxMemoryMB:
		decision.Recycle = true
		decision.Reason = RecycleMemory
		decision.Detail = fmt.Sprintf("rss %.0fMB over %.0fMB limit", heartbeat.RSSMB, policy.MaxMemoryMB)
	case policy.MaxJobsPerWorker > 0 && heartbeat.JobsProcessed >= policy.MaxJobsPerWorker:
		decision.Recycle = true
		decision.Reason = RecycleJobs
		decision.Detail = fmt.Sprintf("processed %d jobs, limit %d", heartbeat.JobsProcessed, policy.MaxJobsPerWorker)
	}
	return decision
}
