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

type RenewLicenseCommand struct {
	IdempotencyKey   string
	LicenseID        string
	Actor            ports.Actor
	FeeAdjustmentBps int
}

type RenewLicenseUseCase struct {
	Licenses       ports.LicenseRepository
	Idempotency    ports.IdempotencyStore
	Tx             ports.Transactor
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// Execute drafts a follow-on license that starts when the current one ends
// and runs for the same length.
func (uc RenewLicenseUseCase) Execute(ctx context.Context, cmd RenewLicenseCommand) (LicenseResult, error) {
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return LicenseResult{}, domainerrors.ErrIdempotencyKeyRequired
	}
	if cmd.FeeAdjustmentBps < -entities.MaxRevShareBps || cmd.FeeAdjustmentBps > entities.MaxRevShareBps {
		return LicenseResult{}, domainerrors.ErrInvalidLicenseInput
	}
	requestHash, err := application.HashRequest(map[string]any{
		"license_id":         strings.TrimSpace(cmd.LicenseID),
		"actor":              cmd.Actor.UserID,
		"fee_adjustment_bps": cmd.FeeAdjustmentBps,
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

	var renewal entities.License
	err = application.WithinTx(ctx, uc.Tx, func(ctx context.Context) error {
		parent, err := uc.Licenses.GetLicense(ctx, strings.TrimSpace(cmd.LicenseID))
		if err != nil {
			return err
		}
		if !parent.IsParty(cmd.Actor.UserID) && !cmd.Actor.IsAdmin {
			return domainerrors.ErrForbidden
		}
		if parent.Status != entities.LicenseStatusActive && parent.Status != entities.LicenseStatusExpired {
			return domainerrors.ErrInvalidStateTransition
		}
		licenseID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return err
		}
		renewal = entities.License{
			LicenseID:  licenseID,
			IPAssetID:  parent.IPAssetID,
			LicensorID: parent.LicensorID,
			LicenseeID: parent.LicenseeID,
			Status:     entities.LicenseStatusDraft,
			Scope: entities.Scope{
				Media:       append([]string(nil), parent.Scope.Media...),
				Placements:  append([]string(nil), parent.Scope.Placements...),
				Territories: append([]string(nil), parent.Scope.Territories...),
				Exclusive:   parent.Scope.Exclusive,
			},
			StartDate:       parent.EndDate,
			EndDate:         parent.EndDate.Add(parent.Duration()),
			FeeCents:        entities.RenewedFee(parent.FeeCents, cmd.FeeAdjustmentBps),
			Currency:        parent.Currency,
			RevShareBps:     parent.RevShareBps,
			ParentLicenseID: parent.LicenseID,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := uc.Licenses.CreateLicense(ctx, renewal); err != nil {
			return err
		}
		ttl := uc.IdempotencyTTL
		if ttl <= 0 {
			ttl = application.DefaultIdempotencyTTL
		}
		return application.Remember(ctx, uc.Idempotency, cmd.IdempotencyKey, requestHash, now.Add(ttl), renewal)
	})
	if err != nil {
		return LicenseResult{}, err
	}

	application.ResolveLogger(uc.Logger).Info("license renewal drafted",
		"event", "license_renewed",
		"module", application.Module,
		"layer", "application",
		"license_id", renewal.LicenseID,
		"parent_license_id", renewal.ParentLicenseID,
		"fee_cents", renewal.FeeCents,
	)
	return LicenseResult{License: renewal}, nil
}
