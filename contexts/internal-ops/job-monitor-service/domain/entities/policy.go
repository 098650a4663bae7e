package entities

import (
	"strings"
	"time"

	domainerrors "ygbackend/contexts/internal-ops/job-monitor-service/domain/errors"
)

// QueuePolicy carries every threshold the monitor evaluates for one queue.
type QueuePolicy struct {
	Queue string

	MinWorkers         int
	MaxWorkers         int
	JobsPerWorker      int
	TargetWait         time.Duration
	ScaleDownIdleRatio float64
	ScaleUpCooldown    time.Duration
	ScaleDownCooldown  time.Duration

	BaseTimeout       time.Duration
	MinTimeout        time.Duration
	MaxTimeout        time.Duration
	TimeoutMultiplier float64

	WarnDepth           int
	CriticalDepth       int
	WarnFailureRate     float64
	CriticalFailureRate float64

	MaxMemoryMB      float64
	MaxJobsPerWorker int
	HeartbeatTTL     time.Duration
}

func DefaultPolicy(queue string) QueuePolicy {
	return QueuePolicy{
		Queue:               queue,
		MinWorkers:          1,
		MaxWorkers:          10,
		JobsPerWorker:       50,
		TargetWait:          time.Minute,
		ScaleDownIdleRatio:  0.3,
		ScaleUpCooldown:     time.Minute,
		ScaleDownCooldown:   5 * time.Minute,
		BaseTimeout:         30 * time.Second,
		MinTimeout:          5 * time.Second,
		MaxTimeout:          5 * time.Minute,
		TimeoutMultiplier:   2,
		WarnDepth:           500,
		CriticalDepth:       2000,
		WarnFailureRate:     0.05,
		CriticalFailureRate: 0.2,
		MaxMemoryMB:         512,
		MaxJobsPerWorker:    10000,
		HeartbeatTTL:        2 * time.Minute,
	}
}

func (p QueuePolicy) Validate() error {
	switch {
	case strings.TrimSpace(p.Queue) == "":
		return domainerrors.ErrInvalidPolicy
	case p.MinWorkers < 0 || p.MaxWorkers < 1 || p.MaxWorkers < p.MinWorkers:
		return domainerrors.ErrInvalidPolicy
	case p.JobsPerWorker < 1:
		return domainerrors.ErrInvalidPolicy
	case p.ScaleDownIdleRatio < 0 || p.ScaleDownIdleRatio > 1:
		return domainerrors.ErrInvalidPolicy
	case p.MinTimeout <= 0 || p.MaxTimeout < p.MinTimeout:
		return domainerrors.ErrInvalidPolicy
	case p.BaseTimeout < p.MinTimeout || p.BaseTimeout > p.MaxTimeout:
		return domainerrors.ErrInvalidPolicy
	case p.TimeoutMultiplier < 1:
		return domainerrors.ErrInvalidPolicy
	case p.WarnDepth < 0 || p.CriticalDepth < p.WarnDepth:
		return domainerrors.ErrInvalidPolicy
	case p.WarnFailureRate < 0 || p.CriticalFailureRate > 1 || p.CriticalFailureRate < p.WarnFailureRate:
		return domainerrors.ErrInvalidPolicy
	case p.MaxMemoryMB < 0 || p.MaxJobsPerWorker < 0 || p.HeartbeatTTL < 0:
		return domainerrors.ErrInvalidPolicy
	}
	return nil
}
