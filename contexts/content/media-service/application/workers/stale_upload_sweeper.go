package workers

import (
	"context"
	"log/slog"

	"ygbackend/contexts/content/media-service/application"
)

// StaleUploadSweeper fails pending uploads that outlived their signed URL.
type StaleUploadSweeper struct {
	Service   application.Service
	BatchSize int
	Logger    *slog.Logger
}

func (w StaleUploadSweeper) RunOnce(ctx context.Context) (int, error) {
	limit := w.BatchSize
	if limit <= 0 {
		limit = 100
	}
	expired, err := w.Service.ExpireStaleUploads(ctx, limit)
	if err != nil {
		return expired, err
	}
	if expired > 0 {
		application.ResolveLogger(w.Logger).Info("stale uploads expired",
			"event", "media_stale_uploads_expired",
			"module", module,
			"layer", "worker",
			"count", expired,
		)
	}
	return expired, nil
}
