package entities

import (
	"strings"
	"time"

	domainerrors "ygbackend/contexts/internal-ops/job-monitor-service/domain/errors"
)

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

type JobRun struct {
	RunID      string
	Queue      string
	JobName    string
	WorkerID   string
	Status     RunStatus
	Attempt    int
	Duration   time.Duration
	Processed  int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r JobRun) Validate() error {
	if strings.TrimSpace(r.Queue) == "" || strings.TrimSpace(r.JobName) == "" {
		return domainerrors.ErrInvalidJobRun
	}
	if r.Status != RunSucceeded && r.Status != RunFailed {
		return domainerrors.ErrInvalidJobRun
	}
	if r.Duration < 0 || r.Attempt < 0 || r.Processed < 0 {
		return domainerrors.ErrInvalidJobRun
	}
	if !r.FinishedAt.IsZero() && r.FinishedAt.Before(r.StartedAt) {
		return domainerrors.ErrInvalidJobRun
	}
	return nil
}
