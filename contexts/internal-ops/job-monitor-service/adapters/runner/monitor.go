package runner

import (
	"context"
	"time"

	"ygbackend/contexts/internal-ops/job-monitor-service/application"
	"ygbackend/contexts/internal-ops/job-monitor-service/domain/entities"
	"ygbackend/internal/platform/jobs"
)

// Monitor feeds the platform job runner's telemetry into the job monitor.
type Monitor struct {
	Service application.Service
}

func (m Monitor) Timeout(ctx context.Context, queue string) (time.Duration, error) {
	rec, err := m.Service.GetTimeout(ctx, queue)
	if err != nil {
		return 0, err
	}
	return rec.Timeout, nil
}

func (m Monitor) RecordRun(ctx context.Context, run jobs.RunRecord) error {
	status := entities.RunSucceeded
	if !run.Succeeded {
		status = entities.RunFailed
	}
	_, err := m.Service.RecordJobRun(ctx, entities.JobRun{
		Queue:      run.Queue,
		JobName:    run.JobName,
		WorkerID:   run.WorkerID,
		Status:     status,
		Attempt:    run.Attempt,
		Duration:   run.Duration,
		Processed:  run.Processed,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	})
	return err
}

func (m Monitor) ReportSnapshot(ctx context.Context, snapshot jobs.Snapshot) error {
	_, err := m.Service.RecordSnapshot(ctx, entities.QueueSnapshot{
		Queue:                snapshot.Queue,
		Waiting:              snapshot.Waiting,
		Active:               snapshot.Active,
		Completed:            snapshot.Completed,
		Failed:               snapshot.Failed,
		OldestWaitingSeconds: snapshot.OldestWaitingSeconds,
		Workers:              snapshot.Workers,
	})
	return err
}

func (m Monitor) Heartbeat(ctx context.Context, heartbeat jobs.Heartbeat) (jobs.Recycle, error) {
	decision, err := m.Service.Heartbeat(ctx, entities.WorkerHeartbeat{
		WorkerID:      heartbeat.WorkerID,
		Queue:         heartbeat.Queue,
		RSSMB:         heartbeat.RSSMB,
		JobsProcessed: heartbeat.JobsProcessed,
	})
	if err != nil {
		return jobs.Recycle{}, err
	}
	return jobs.Recycle{Recycle: decision.Recycle, Reason: string(decision.Reason)}, nil
}

var _ jobs.Monitor = Monitor{}
