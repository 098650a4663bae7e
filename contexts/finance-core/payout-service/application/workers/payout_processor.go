package workers

import (
	"context"
	"log/slog"

	"ygbackend/contexts/finance-core/payout-service/application"
	"ygbackend/contexts/finance-core/payout-service/domain/entities"
)

const defaultPayoutBatch = 25

// PayoutProcessor drains due payouts one transfer attempt at a time.
type PayoutProcessor struct {
	Service   application.Service
	BatchSize int
	Logger    *slog.Logger
}

type ProcessStats struct {
	Paid     int
	Retrying int
	Failed   int
	Skipped  int
}

func (p PayoutProcessor) RunOnce(ctx context.Context) (ProcessStats, error) {
	batch := p.BatchSize
	if batch <= 0 {
		batch = defaultPayoutBatch
	}
	due, err := p.Service.DuePayouts(ctx, batch)
	if err != nil {
		return ProcessStats{}, err
	}
	var stats ProcessStats
	for _, payoutID := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		payout, err := p.Service.ProcessPayout(ctx, payoutID)
		if err != nil {
			return stats, err
		}
		switch payout.Status {
		case entities.PayoutPaid:
			stats.Paid++
		case entities.PayoutFailed:
			stats.Failed++
		case entities.PayoutPending:
			stats.Retrying++
		default:
			stats.Skipped++
		}
	}
	if len(due) > 0 {
		application.ResolveLogger(p.Logger).Info("payout batch processed",
			"event", "payout_batch",
			"module", module,
			"layer", "worker",
			"paid", stats.Paid,
			"retrying", stats.Retrying,
			"failed", stats.Failed,
			"skipped", stats.Skipped,
		)
	}
	return stats, nil
}

// Pending is the number of payouts due now, reported as queue depth.
func (p PayoutProcessor) Pending(ctx context.Context) (int, error) {
	due, err := p.Service.DuePayouts(ctx, 1000)
	if err != nil {
		return 0, err
	}
	return len(due), nil
}
