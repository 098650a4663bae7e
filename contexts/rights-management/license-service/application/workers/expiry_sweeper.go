package workers

import (
	"context"
	"log/slog"
	"time"

	"ygbackend/contexts/rights-management/license-service/application"
	"ygbackend/contexts/rights-management/license-service/domain/entities"
	"ygbackend/contexts/rights-management/license-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const defaultBatchSize = 100

// ExpirySweeper moves active licenses past their end date to expired.
type ExpirySweeper struct {
	Licenses    ports.LicenseRepository
	Outbox      ports.OutboxWriter
	Tx          ports.Transactor
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	BatchSize   int
	Logger      *slog.Logger
}

// RunOnce expires one batch and reports how many licenses changed.
func (w ExpirySweeper) RunOnce(ctx context.Context) (int, error) {
	now := application.Now(w.Clock)
	candidates, err := w.Licenses.ListEndedActive(ctx, now, batchSize(w.BatchSize))
	if err != nil {
		return 0, err
	}
	logger := application.ResolveLogger(w.Logger)
	expired := 0
	for _, candidate := range candidates {
		changed := false
		err := application.WithinTx(ctx, w.Tx, func(ctx context.Context) error {
			license, err := w.Licenses.GetLicenseForUpdate(ctx, candidate.LicenseID)
			if err != nil {
				return err
			}
			if license.Status != entities.LicenseStatusActive || license.EndDate.After(now) {
				return nil
			}
			license.Status = entities.LicenseStatusExpired
			license.UpdatedAt = now
			if err := w.Licenses.UpdateLicense(ctx, license); err != nil {
				return err
			}
			changed = true
			return application.AppendLicenseEvent(ctx, w.Outbox, w.IDGenerator, contractsv1.EventLicenseExpired, license, now, "")
		})
		if err != nil {
			logger.Error("license expiry failed",
				"event", "license_expiry_failed",
				"module", application.Module,
				"layer", "worker",
				"license_id", candidate.LicenseID,
				"error", err.Error(),
			)
			return expired, err
		}
		if changed {
			expired++
		}
	}
	if expired > 0 {
		logger.Info("licenses expired",
			"event", "license_expiry_swept",
			"module", application.Module,
			"layer", "worker",
			"count", expired,
		)
	}
	return expired, nil
}

// ExpiryNotifier announces licenses ending within Window exactly once.
type ExpiryNotifier struct {
	Licenses    ports.LicenseRepository
	Outbox      ports.OutboxWriter
	Tx          ports.Transactor
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Window      time.Duration
	BatchSize   int
	Logger      *slog.Logger
}

func (w ExpiryNotifier) RunOnce(ctx context.Context) (int, error) {
	window := w.Window
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	now := application.Now(w.Clock)
	candidates, err := w.Licenses.ListExpiringUnnoticed(ctx, now, now.Add(window), batchSize(w.BatchSize))
	if err != nil {
		return 0, err
	}
	noticed := 0
	for _, candidate := range candidates {
		changed := false
		err := application.WithinTx(ctx, w.Tx, func(ctx context.Context) error {
			license, err := w.Licenses.GetLicenseForUpdate(ctx, candidate.LicenseID)
			if err != nil {
				return err
			}
			if license.Status != entities.LicenseStatusActive || license.ExpiryNoticeSentAt != nil {
				return nil
			}
			license.ExpiryNoticeSentAt = &now
			license.UpdatedAt = now
			if err := w.Licenses.UpdateLicense(ctx, license); err != nil {
				return err
			}
			changed = true
			return application.AppendLicenseEvent(ctx, w.Outbox, w.IDGenerator, contractsv1.EventLicenseExpiring, license, now, "")
		})
		if err != nil {
			return noticed, err
		}
		if changed {
			noticed++
		}
	}
	if noticed > 0 {
		application.ResolveLogger(w.Logger).Info("license expiry notices queued",
			"event", "license_expiry_noticed",
			"module", application.Module,
			"layer", "worker",
			"count", noticed,
		)
	}
	return noticed, nil
}

func batchSize(size int) int {
	if size <= 0 {
		return defaultBatchSize
	}
	return size
}
