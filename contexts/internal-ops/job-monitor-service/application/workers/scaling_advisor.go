package workers

import (
	"context"
	"log/slog"

	"ygbackend/contexts/internal-ops/job-monitor-service/application"
)

// ScalingAdvisor refreshes the scaling decision of every known queue and
// reaps workers that stopped sending heartbeats.
type ScalingAdvisor struct {
	Service application.Service
	Logger  *slog.Logger
}

// RunOnce returns the number of queues evaluated.
func (w ScalingAdvisor) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(w.Logger)
	health, err := w.Service.ListQueueHealth(ctx)
	if err != nil {
		return 0, err
	}
	evaluated := 0
	for _, item := range health {
		if err := ctx.Err(); err != nil {
			return evaluated, err
		}
		if _, err := w.Service.RecommendScaling(ctx, item.Queue); err != nil {
			logger.Warn("scaling recommendation failed",
				"event", "job_monitor_scaling_failed",
				"module", "internal-ops/job-monitor-service",
				"layer", "worker",
				"queue", item.Queue,
				"error", err.Error(),
			)
			continue
		}
		evaluated++
	}
	if _, err := w.Service.ReapStaleWorkers(ctx); err != nil {
		return evaluated, err
	}
	return evaluated, nil
}
