package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"ygbackend/contexts/rights-management/license-service/application"
	"ygbackend/contexts/rights-management/license-service/domain/entities"
	domainerrors "ygbackend/contexts/rights-management/license-service/domain/errors"
	"ygbackend/contexts/rights-management/license-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type ProposeAmendmentCommand struct {
	LicenseID string
	Actor     ports.Actor
	Changes   entities.AmendmentChanges
	Reason    string
}

type ProposeAmendmentUseCase struct {
	Licenses    ports.LicenseRepository
	Amendments  ports.AmendmentRepository
	Tx          ports.Transactor
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// Execute records the proposal against the license version it was made on.
func (uc ProposeAmendmentUseCase) Execute(ctx context.Context, cmd ProposeAmendmentCommand) (entities.Amendment, error) {
	if cmd.Changes.Empty() {
		return entities.Amendment{}, domainerrors.ErrInvalidAmendment
	}
	var amendment entities.Amendment
	err := application.WithinTx(ctx, uc.Tx, func(ctx context.Context) error {
		license, err := uc.Licenses.GetLicense(ctx, strings.TrimSpace(cmd.LicenseID))
		if err != nil {
			return err
		}
		if !license.IsParty(cmd.Actor.UserID) && !cmd.Actor.IsAdmin {
			return domainerrors.ErrForbidden
		}
		if license.Status != entities.LicenseStatusActive {
			return domainerrors.ErrInvalidStateTransition
		}
		if !cmd.Changes.Apply(license).Validate() {
			return domainerrors.ErrInvalidAmendment
		}
		amendmentID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return err
		}
		amendment = entities.Amendment{
			AmendmentID: amendmentID,
			LicenseID:   license.LicenseID,
			ProposedBy:  strings.TrimSpace(cmd.Actor.UserID),
			BaseVersion: license.Version,
			Changes:     cmd.Changes,
			Reason:      strings.TrimSpace(cmd.Reason),
			Status:      entities.AmendmentProposed,
			CreatedAt:   application.Now(uc.Clock),
		}
		return uc.Amendments.CreateAmendment(ctx, amendment)
	})
	if err != nil {
		return entities.Amendment{}, err
	}

	application.ResolveLogger(uc.Logger).Info("license amendment proposed",
		"event", "license_amendment_proposed",
		"module", application.Module,
		"layer", "application",
		"license_id", amendment.LicenseID,
		"amendment_id", amendment.AmendmentID,
		"base_version", amendment.BaseVersion,
	)
	return amendment, nil
}

type DecideAmendmentCommand struct {
	AmendmentID string
	Actor       ports.Actor
	Approve     bool
}

type DecideAmendmentResult struct {
	Amendment entities.Amendment
	License   entities.License
}

type DecideAmendmentUseCase struct {
	Licenses    ports.LicenseRepository
	Amendments  ports.AmendmentRepository
	Outbox      ports.OutboxWriter
	Tx          ports.Transactor
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// Execute approves or rejects a proposal. Approval fails with
// ErrVersionConflict when another amendment was applied after this one was
// proposed.
func (uc DecideAmendmentUseCase) Execute(ctx context.Context, cmd DecideAmendmentCommand) (DecideAmendmentResult, error) {
	var result DecideAmendmentResult
	err := application.WithinTx(ctx, uc.Tx, func(ctx context.Context) error {
		amendment, err := uc.Amendments.GetAmendmentForUpdate(ctx, strings.TrimSpace(cmd.AmendmentID))
		if err != nil {
			return err
		}
		license, err := uc.Licenses.GetLicenseForUpdate(ctx, amendment.LicenseID)
		if err != nil {
			return err
		}
		if !canDecide(amendment, license, cmd.Actor) {
			return domainerrors.ErrForbidden
		}
		if amendment.Status != entities.AmendmentProposed {
			return domainerrors.ErrAmendmentDecided
		}

		now := application.Now(uc.Clock)
		amendment.DecidedBy = strings.TrimSpace(cmd.Actor.UserID)
		amendment.DecidedAt = &now
		if !cmd.Approve {
			amendment.Status = entities.AmendmentRejected
			result = DecideAmendmentResult{Amendment: amendment, License: license}
			return uc.Amendments.UpdateAmendment(ctx, amendment)
		}

		if license.Version != amendment.BaseVersion {
			return domainerrors.ErrVersionConflict
		}
		if license.Status != entities.LicenseStatusActive {
			return domainerrors.ErrInvalidStateTransition
		}
		amended := amendment.Changes.Apply(license)
		if !amended.Validate() {
			return domainerrors.ErrInvalidAmendment
		}
		if err := ensureNoConflict(ctx, uc.Licenses, amended); err != nil {
			return err
		}
		amended.Version++
		amended.UpdatedAt = now
		if amendment.Changes.EndDate != nil {
			amended.ExpiryNoticeSentAt = nil
		}
		amendment.Status = entities.AmendmentApproved
		if err := uc.Licenses.UpdateLicense(ctx, amended); err != nil {
			return err
		}
		if err := uc.Amendments.UpdateAmendment(ctx, amendment); err != nil {
			return err
		}
		result = DecideAmendmentResult{Amendment: amendment, License: amended}
		return application.AppendLicenseEvent(ctx, uc.Outbox, uc.IDGenerator, contractsv1.EventLicenseAmended, amended, now, amendment.Reason)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrVersionConflict) {
			application.ResolveLogger(uc.Logger).Warn("license amendment conflicts with newer version",
				"event", "license_amendment_version_conflict",
				"module", application.Module,
				"layer", "application",
				"amendment_id", cmd.AmendmentID,
			)
		}
		return DecideAmendmentResult{}, err
	}

	application.ResolveLogger(uc.Logger).Info("license amendment decided",
		"event", "license_amendment_decided",
		"module", application.Module,
		"layer", "application",
		"license_id", result.License.LicenseID,
		"amendment_id", result.Amendment.AmendmentID,
		"status", result.Amendment.Status,
		"version", result.License.Version,
	)
	return result, nil
}

// canDecide requires the counterparty of the proposer, or an admin.
func canDecide(amendment entities.Amendment, license entities.License, actor ports.Actor) bool {
	if actor.IsAdmin {
		return true
	}
	userID := strings.TrimSpace(actor.UserID)
	return license.IsParty(userID) && userID != amendment.ProposedBy
}
