package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/rights-management/license-service/application"
	"ygbackend/contexts/rights-management/license-service/domain/entities"
	domainerrors "ygbackend/contexts/rights-management/license-service/domain/errors"
	"ygbackend/contexts/rights-management/license-service/ports"
)

type CreateLicenseCommand struct {
	IdempotencyKey string
	Actor          ports.Actor
	IPAssetID      string
	LicensorID     string
	LicenseeID     string
	Media          []string
	Placements     []string
	Territories    []string
	Exclusive      bool
	StartDate      time.Time
	EndDate        time.Time
	FeeCents       int64
	Currency       string
	RevShareBps    int
}

type LicenseResult struct {
	License  entities.License
	Replayed bool
}

type CreateLicenseUseCase struct {
	Licenses       ports.LicenseRepository
	Idempotency    ports.IdempotencyStore
	Tx             ports.Transactor
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func (uc CreateLicenseUseCase) Execute(ctx context.Context, cmd CreateLicenseCommand) (LicenseResult, error) {
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return LicenseResult{}, domainerrors.ErrIdempotencyKeyRequired
	}
	license := entities.License{
		IPAssetID:  strings.TrimSpace(cmd.IPAssetID),
		LicensorID: strings.TrimSpace(cmd.LicensorID),
		LicenseeID: strings.TrimSpace(cmd.LicenseeID),
		Status:     entities.LicenseStatusDraft,
		Scope: entities.Scope{
			Media:       entities.NormalizeList(cmd.Media, false),
			Placements:  entities.NormalizeList(cmd.Placements, false),
			Territories: entities.NormalizeList(cmd.Territories, true),
			Exclusive:   cmd.Exclusive,
		},
		StartDate:   cmd.StartDate.UTC(),
		EndDate:     cmd.EndDate.UTC(),
		FeeCents:    cmd.FeeCents,
		Currency:    entities.NormalizeCurrency(cmd.Currency),
		RevShareBps: cmd.RevShareBps,
		Version:     1,
	}
	if !license.Validate() {
		return LicenseResult{}, domainerrors.ErrInvalidLicenseInput
	}
	if !cmd.Actor.IsAdmin && !license.IsParty(cmd.Actor.UserID) {
		return LicenseResult{}, domainerrors.ErrForbidden
	}

	requestHash, err := application.HashRequest(map[string]any{
		"actor":        cmd.Actor.UserID,
		"ip_asset_id":  license.IPAssetID,
		"licensor_id":  license.LicensorID,
		"licensee_id":  license.LicenseeID,
		"scope":        license.Scope,
		"start_date":   license.StartDate,
		"end_date":     license.EndDate,
		"fee_cents":    license.FeeCents,
		"currency":     license.Currency,
		"rev_share_bp": license.RevShareBps,
	})
	if err != nil {
		return LicenseResult{}, err
	}
	now := application.Now(uc.Clock)
	var stored entities.License
	replayed, err := application.Replay(ctx, uc.Idempotency, cmd.IdempotencyKey, requestHash, now, &stored)
	if err != nil {
		return LicenseResult{}, err
	}
	if replayed {
		return LicenseResult{License: stored, Replayed: true}, nil
	}

	licenseID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return LicenseResult{}, err
	}
	license.LicenseID = licenseID
	license.CreatedAt = now
	license.UpdatedAt = now

	err = application.WithinTx(ctx, uc.Tx, func(ctx context.Context) error {
		if err := ensureNoConflict(ctx, uc.Licenses, license); err != nil {
			return err
		}
		if err := uc.Licenses.CreateLicense(ctx, license); err != nil {
			return err
		}
		ttl := uc.IdempotencyTTL
		if ttl <= 0 {
			ttl = application.DefaultIdempotencyTTL
		}
		return application.Remember(ctx, uc.Idempotency, cmd.IdempotencyKey, requestHash, now.Add(ttl), license)
	})
	if err != nil {
		return LicenseResult{}, err
	}

	application.ResolveLogger(uc.Logger).Info("license created",
		"event", "license_created",
		"module", application.Module,
		"layer", "application",
		"license_id", license.LicenseID,
		"ip_asset_id", license.IPAssetID,
		"exclusive", license.Scope.Exclusive,
	)
	return LicenseResult{License: license}, nil
}

// ensureNoConflict rejects a grant that collides with a pending or active
// license on the same asset.
func ensureNoConflict(ctx context.Context, repo ports.LicenseRepository, candidate entities.License) error {
	existing, err := repo.ListBlockingLicenses(ctx, candidate.IPAssetID)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if candidate.ConflictsWith(other) {
			return domainerrors.ErrExclusivityConflict
		}
	}
	return nil
}
