package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"ygbackend/contexts/internal-ops/job-monitor-service/application"
	"ygbackend/contexts/internal-ops/job-monitor-service/domain/entities"
	domainerrors "ygbackend/contexts/internal-ops/job-monitor-service/domain/errors"
	"ygbackend/contexts/internal-ops/job-monitor-service/ports"
	httptransport "ygbackend/contexts/internal-ops/job-monitor-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) RecordSnapshotHandler(ctx context.Context, req httptransport.RecordSnapshotRequest) (httptransport.QueueHealthResponse, error) {
	health, err := h.Service.RecordSnapshot(ctx, entities.QueueSnapshot{
		Queue:                req.Queue,
		Waiting:              req.Waiting,
		Active:               req.Active,
		Completed:            req.Completed,
		Failed:               req.Failed,
		Delayed:              req.Delayed,
		Paused:               req.Paused,
		OldestWaitingSeconds: req.OldestWaitingSeconds,
		Workers:              req.Workers,
	})
	if err != nil {
		return httptransport.QueueHealthResponse{}, err
	}
	return httptransport.QueueHealthResponse{Status: "success", Data: toHealthDTO(health)}, nil
}

func (h Handler) ListQueueHealthHandler(ctx context.Context) (httptransport.QueueHealthListResponse, error) {
	items, err := h.Service.ListQueueHealth(ctx)
	if err != nil {
		return httptransport.QueueHealthListResponse{}, err
	}
	resp := httptransport.QueueHealthListResponse{
		Status: "success",
		Data:   make([]httptransport.QueueHealthDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toHealthDTO(item))
	}
	return resp, nil
}

func (h Handler) GetQueueHandler(ctx context.Context, queue string) (httptransport.QueueOverviewResponse, error) {
	overview, err := h.Service.GetQueue(ctx, queue)
	if err != nil {
		return httptransport.QueueOverviewResponse{}, err
	}
	resp := httptransport.QueueOverviewResponse{Status: "success"}
	resp.Data.Snapshot = toSnapshotDTO(overview.Snapshot)
	resp.Data.Health = toHealthDTO(overview.Health)
	resp.Data.Timeout = toTimeoutDTO(overview.Timeout)
	resp.Data.Policy = toPolicyDTO(overview.Policy)
	if overview.Decision != nil {
		decision := toDecisionDTO(*overview.Decision)
		resp.Data.Decision = &decision
	}
	return resp, nil
}

func (h Handler) RecommendScalingHandler(ctx context.Context, queue string) (httptransport.ScalingDecisionResponse, error) {
	decision, err := h.Service.RecommendScaling(ctx, queue)
	if err != nil {
		return httptransport.ScalingDecisionResponse{}, err
	}
	return httptransport.ScalingDecisionResponse{Status: "success", Data: toDecisionDTO(decision)}, nil
}

func (h Handler) GetTimeoutHandler(ctx context.Context, queue string) (httptransport.TimeoutResponse, error) {
	rec, err := h.Service.GetTimeout(ctx, queue)
	if err != nil {
		return httptransport.TimeoutResponse{}, err
	}
	return httptransport.TimeoutResponse{Status: "success", Data: toTimeoutDTO(rec)}, nil
}

func (h Handler) RecordJobRunHandler(ctx context.Context, req httptransport.RecordJobRunRequest) (httptransport.JobRunResponse, error) {
	run, err := h.Service.RecordJobRun(ctx, entities.JobRun{
		RunID:     req.RunID,
		Queue:     req.Queue,
		JobName:   req.JobName,
		WorkerID:  req.WorkerID,
		Status:    entities.RunStatus(req.Status),
		Attempt:   req.Attempt,
		Duration:  time.Duration(req.DurationMillis) * time.Millisecond,
		Processed: req.Processed,
		Error:     req.Error,
	})
	if err != nil {
		return httptransport.JobRunResponse{}, err
	}
	return httptransport.JobRunResponse{Status: "success", Data: toRunDTO(run)}, nil
}

func (h Handler) ListJobRunsHandler(ctx context.Context, req httptransport.ListJobRunsRequest) (httptransport.JobRunListResponse, error) {
	items, err := h.Service.ListJobRuns(ctx, ports.RunFilter{
		Queue:  req.Queue,
		Status: entities.RunStatus(req.Status),
		Limit:  req.Limit,
	})
	if err != nil {
		return httptransport.JobRunListResponse{}, err
	}
	resp := httptransport.JobRunListResponse{
		Status: "success",
		Data:   make([]httptransport.JobRunDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toRunDTO(item))
	}
	return resp, nil
}

func (h Handler) HeartbeatHandler(ctx context.Context, req httptransport.HeartbeatRequest) (httptransport.HeartbeatResponse, error) {
	decision, err := h.Service.Heartbeat(ctx, entities.WorkerHeartbeat{
		WorkerID:      req.WorkerID,
		Queue:         req.Queue,
		RSSMB:         req.RSSMB,
		JobsProcessed: req.JobsProcessed,
	})
	if err != nil {
		return httptransport.HeartbeatResponse{}, err
	}
	return httptransport.HeartbeatResponse{Status: "success", Data: toRecycleDTO(decision)}, nil
}

func (h Handler) ListWorkersHandler(ctx context.Context) (httptransport.WorkerListResponse, error) {
	items, err := h.Service.ListWorkers(ctx)
	if err != nil {
		return httptransport.WorkerListResponse{}, err
	}
	resp := httptransport.WorkerListResponse{
		Status: "success",
		Data:   make([]httptransport.WorkerDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, httptransport.WorkerDTO{
			WorkerID:      item.Heartbeat.WorkerID,
			Queue:         item.Heartbeat.Queue,
			RSSMB:         item.Heartbeat.RSSMB,
			JobsProcessed: item.Heartbeat.JobsProcessed,
			StartedAt:     formatTime(item.Heartbeat.StartedAt),
			LastSeenAt:    formatTime(item.Heartbeat.LastSeenAt),
			Recycle:       toRecycleDTO(item.Decision),
		})
	}
	return resp, nil
}

func (h Handler) GetPolicyHandler(ctx context.Context, queue string) (httptransport.QueuePolicyResponse, error) {
	policy, err := h.Service.GetPolicy(ctx, queue)
	if err != nil {
		return httptransport.QueuePolicyResponse{}, err
	}
	return httptransport.QueuePolicyResponse{Status: "success", Data: toPolicyDTO(policy)}, nil
}

func (h Handler) ListPoliciesHandler(ctx context.Context) (httptransport.QueuePolicyListResponse, error) {
	items, err := h.Service.ListPolicies(ctx)
	if err != nil {
		return httptransport.QueuePolicyListResponse{}, err
	}
	resp := httptransport.QueuePolicyListResponse{
		Status: "success",
		Data:   make([]httptransport.QueuePolicyDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toPolicyDTO(item))
	}
	return resp, nil
}

// UpsertPolicyHandler overlays the request on the queue's current policy;
// empty duration fields keep their current value.
func (h Handler) UpsertPolicyHandler(ctx context.Context, queue string, req httptransport.QueuePolicyDTO) (httptransport.QueuePolicyResponse, error) {
	current, err := h.Service.GetPolicy(ctx, queue)
	if err != nil {
		return httptransport.QueuePolicyResponse{}, err
	}
	policy, err := fromPolicyDTO(current, req)
	if err != nil {
		return httptransport.QueuePolicyResponse{}, err
	}
	saved, err := h.Service.UpsertPolicy(ctx, policy)
	if err != nil {
		return httptransport.QueuePolicyResponse{}, err
	}
	return httptransport.QueuePolicyResponse{Status: "success", Data: toPolicyDTO(saved)}, nil
}

func toHealthDTO(health entities.QueueHealth) httptransport.QueueHealthDTO {
	issues := health.Issues
	if issues == nil {
		issues = []string{}
	}
	return httptransport.QueueHealthDTO{
		Queue:                health.Queue,
		Status:               string(health.Status),
		Waiting:              health.Waiting,
		Active:               health.Active,
		Workers:              health.Workers,
		FailureRate:          health.FailureRate,
		OldestWaitingSeconds: health.OldestWaitingSeconds,
		Issues:               issues,
		EvaluatedAt:          formatTime(health.EvaluatedAt),
	}
}

func toSnapshotDTO(s entities.QueueSnapshot) httptransport.SnapshotDTO {
	return httptransport.SnapshotDTO{
		Queue:                s.Queue,
		Waiting:              s.Waiting,
		Active:               s.Active,
		Completed:            s.Completed,
		Failed:               s.Failed,
		Delayed:              s.Delayed,
		Paused:               s.Paused,
		OldestWaitingSeconds: s.OldestWaitingSeconds,
		Workers:              s.Workers,
		CapturedAt:           formatTime(s.CapturedAt),
	}
}

func toDecisionDTO(d entities.ScalingDecision) httptransport.ScalingDecisionDTO {
	return httptransport.ScalingDecisionDTO{
		Queue:          d.Queue,
		CurrentWorkers: d.CurrentWorkers,
		DesiredWorkers: d.DesiredWorkers,
		Action:         string(d.Action),
		Reason:         d.Reason,
		DecidedAt:      formatTime(d.DecidedAt),
	}
}

func toTimeoutDTO(rec entities.TimeoutRecommendation) httptransport.TimeoutDTO {
	return httptransport.TimeoutDTO{
		Queue:          rec.Queue,
		TimeoutSeconds: int64(rec.Timeout / time.Second),
		P95Millis:      rec.P95.Milliseconds(),
		SampleCount:    rec.SampleCount,
		Source:         string(rec.Source),
	}
}

func toRunDTO(run entities.JobRun) httptransport.JobRunDTO {
	return httptransport.JobRunDTO{
		RunID:          run.RunID,
		Queue:          run.Queue,
		JobName:        run.JobName,
		WorkerID:       run.WorkerID,
		Status:         string(run.Status),
		Attempt:        run.Attempt,
		DurationMillis: run.Duration.Milliseconds(),
		Processed:      run.Processed,
		Error:          run.Error,
		StartedAt:      formatTime(run.StartedAt),
		FinishedAt:     formatTime(run.FinishedAt),
	}
}

func toRecycleDTO(d entities.RecycleDecision) httptransport.RecycleDecisionDTO {
	return httptransport.RecycleDecisionDTO{
		WorkerID: d.WorkerID,
		Queue:    d.Queue,
		Recycle:  d.Recycle,
		Reason:   string(d.Reason),
		Detail:   d.Detail,
	}
}

func toPolicyDTO(p entities.QueuePolicy) httptransport.QueuePolicyDTO {
	return httptransport.QueuePolicyDTO{
		Queue:               p.Queue,
		MinWorkers:          p.MinWorkers,
		MaxWorkers:          p.MaxWorkers,
		JobsPerWorker:       p.JobsPerWorker,
		TargetWait:          p.TargetWait.String(),
		ScaleDownIdleRatio:  p.ScaleDownIdleRatio,
		ScaleUpCooldown:     p.ScaleUpCooldown.String(),
		ScaleDownCooldown:   p.ScaleDownCooldown.String(),
		BaseTimeout:         p.BaseTimeout.String(),
		MinTimeout:          p.MinTimeout.String(),
		MaxTimeout:          p.MaxTimeout.String(),
		TimeoutMultiplier:   p.TimeoutMultiplier,
		WarnDepth:           p.WarnDepth,
		CriticalDepth:       p.CriticalDepth,
		WarnFailureRate:     p.WarnFailureRate,
		CriticalFailureRate: p.CriticalFailureRate,
		MaxMemoryMB:         p.MaxMemoryMB,
		MaxJobsPerWorker:    p.MaxJobsPerWorker,
		HeartbeatTTL:        p.HeartbeatTTL.String(),
	}
}

func fromPolicyDTO(base entities.QueuePolicy, req httptransport.QueuePolicyDTO) (entities.QueuePolicy, error) {
	p := base
	p.MinWorkers = req.MinWorkers
	p.MaxWorkers = req.MaxWorkers
	p.JobsPerWorker = req.JobsPerWorker
	p.ScaleDownIdleRatio = req.ScaleDownIdleRatio
	p.TimeoutMultiplier = req.TimeoutMultiplier
	p.WarnDepth = req.WarnDepth
	p.CriticalDepth = req.CriticalDepth
	p.WarnFailureRate = req.WarnFailureRate
	p.CriticalFailureRate = req.CriticalFailureRate
	p.MaxMemoryMB = req.MaxMemoryMB
	p.MaxJobsPerWorker = req.MaxJobsPerWorker

	durations := []struct {
		raw   string
		field *time.Duration
	}{
		{req.TargetWait, &p.TargetWait},
		{req.ScaleUpCooldown, &p.ScaleUpCooldown},
		{req.ScaleDownCooldown, &p.ScaleDownCooldown},
		{req.BaseTimeout, &p.BaseTimeout},
		{req.MinTimeout, &p.MinTimeout},
		{req.MaxTimeout, &p.MaxTimeout},
		{req.HeartbeatTTL, &p.HeartbeatTTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return entities.QueuePolicy{}, domainerrors.ErrInvalidPolicy
		}
		*d.field = parsed
	}
	return p, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
