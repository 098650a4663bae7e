package entities

import (
	"fmt"
	"math"
	"strings"
	"time"

	domainerrors "ygbackend/contexts/internal-ops/job-monitor-service/domain/errors"
)

type QueueSnapshot struct {
	Queue                string
	Waiting              int
	Active               int
	Completed            int
	Failed               int
	Delayed              int
	Paused               bool
	OldestWaitingSeconds float64
	Workers              int
	CapturedAt           time.Time
}

func (s QueueSnapshot) Validate() error {
	if strings.TrimSpace(s.Queue) == "" {
		return domainerrors.ErrInvalidSnapshot
	}
	if s.Waiting < 0 || s.Active < 0 || s.Completed < 0 || s.Failed < 0 || s.Delayed < 0 || s.Workers < 0 {
		return domainerrors.ErrInvalidSnapshot
	}
	if s.OldestWaitingSeconds < 0 || math.IsNaN(s.OldestWaitingSeconds) {
		return domainerrors.ErrInvalidSnapshot
	}
	return nil
}

// FailureRate is failed / (completed + failed) over the snapshot window.
func (s QueueSnapshot) FailureRate() float64 {
	processed := s.Completed + s.Failed
	if processed == 0 {
		return 0
	}
	return float64(s.Failed) / float64(processed)
}

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
	HealthPaused   HealthStatus = "paused"
)

type QueueHealth struct {
	Queue                string
	Status               HealthStatus
	Waiting              int
	Active               int
	Workers              int
	FailureRate          float64
	OldestWaitingSeconds float64
	Issues               []string
	EvaluatedAt          time.Time
}

// EvaluateHealth classifies a snapshot against the policy thresholds.
func EvaluateHealth(snapshot QueueSnapshot, policy QueuePolicy, now time.Time) QueueHealth {
	health := QueueHealth{
		Queue:                snapshot.Queue,
		Status:               HealthHealthy,
		Waiting:              snapshot.Waiting,
		Active:               snapshot.Active,
		Workers:              snapshot.Workers,
		FailureRate:          snapshot.FailureRate(),
		OldestWaitingSeconds: snapshot.OldestWaitingSeconds,
		Issues:               []string{},
		EvaluatedAt:          now.UTC(),
	}
	if snapshot.Paused {
		health.Status = HealthPaused
		health.Issues = append(health.Issues, "queue is paused")
		return health
	}

	var critical, degraded []string
	target := policy.TargetWait.Seconds()

	switch {
	case policy.CriticalDepth > 0 && snapshot.Waiting >= policy.CriticalDepth:
		critical = append(critical, fmt.Sprintf("waiting depth %d reached critical threshold %d", snapshot.Waiting, policy.CriticalDepth))
	case policy.WarnDepth > 0 && snapshot.Waiting >= policy.WarnDepth:
		degraded = append(degraded, fmt.Sprintf("waiting depth %d reached warning threshold %d", snapshot.Waiting, policy.WarnDepth))
	}

	rate := health.FailureRate
	switch {
	case policy.CriticalFailureRate > 0 && rate >= policy.CriticalFailureRate:
		critical = append(critical, fmt.Sprintf("failure rate %.2f reached critical threshold %.2f", rate, policy.CriticalFailureRate))
	case policy.WarnFailureRate > 0 && rate >= policy.WarnFailureRate:
		degraded = append(degraded, fmt.Sprintf("failure rate %.2f reached warning threshold %.2f", rate, policy.WarnFailureRate))
	}

	switch {
	case target > 0 && snapshot.OldestWaitingSeconds >= 3*target:
		critical = append(critical, fmt.Sprintf("oldest job waited %.0fs, over three times the %.0fs target", snapshot.OldestWaitingSeconds, target))
	case target > 0 && snapshot.OldestWaitingSeconds >= target:
		degraded = append(degraded, fmt.Sprintf("oldest job waited %.0fs, over the %.0fs target", snapshot.OldestWaitingSeconds, target))
	}

	switch {
	case len(critical) > 0:
		health.Status = HealthCritical
	case len(degraded) > 0:
		health.Status = HealthDegraded
	}
	health.Issues = append(append(health.Issues, critical...), degraded...)
	return health
}
