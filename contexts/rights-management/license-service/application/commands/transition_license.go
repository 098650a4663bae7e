package commands

import (
	"context"
	"log/slog"
	"strings"

	"ygbackend/contexts/rights-management/license-service/application"
	"ygbackend/contexts/rights-management/license-service/domain/entities"
	domainerrors "ygbackend/contexts/rights-management/license-service/domain/errors"
	"ygbackend/contexts/rights-management/license-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type TransitionLicenseCommand struct {
	LicenseID string
	Actor     ports.Actor
	Action    entities.Action
	Reason    string
}

type TransitionLicenseUseCase struct {
	Licenses    ports.LicenseRepository
	Outbox      ports.OutboxWriter
	Tx          ports.Transactor
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc TransitionLicenseUseCase) Execute(ctx context.Context, cmd TransitionLicenseCommand) (entities.License, error) {
	action := entities.Action(strings.ToLower(strings.TrimSpace(string(cmd.Action))))
	if !action.Valid() {
		return entities.License{}, domainerrors.ErrInvalidStateTransition
	}
	reason := strings.TrimSpace(cmd.Reason)
	if (action == entities.ActionReject || action == entities.ActionTerminate) && reason == "" {
		return entities.License{}, domainerrors.ErrInvalidLicenseInput
	}

	var updated entities.License
	var from entities.LicenseStatus
	err := application.WithinTx(ctx, uc.Tx, func(ctx context.Context) error {
		license, err := uc.Licenses.GetLicenseForUpdate(ctx, strings.TrimSpace(cmd.LicenseID))
		if err != nil {
			return err
		}
		if !allowed(action, license, cmd.Actor) {
			return domainerrors.ErrForbidden
		}
		target, ok := action.Target(license.Status)
		if !ok {
			return domainerrors.ErrInvalidStateTransition
		}
		now := application.Now(uc.Clock)
		if target == entities.LicenseStatusActive && !license.EndDate.After(now) {
			return domainerrors.ErrInvalidStateTransition
		}
		// Every move into a blocking status re-checks exclusivity: a suspended
		// grant releases its territory until it is reinstated.
		if target.Blocking() {
			if err := ensureNoConflict(ctx, uc.Licenses, license); err != nil {
				return err
			}
		}
		if action == entities.ActionApprove {
			license.SignedAt = &now
		}
		if action == entities.ActionTerminate {
			license.TerminatedAt = &now
			license.TerminationReason = reason
		}
		from = license.Status
		license.Status = target
		license.UpdatedAt = now
		if err := uc.Licenses.UpdateLicense(ctx, license); err != nil {
			return err
		}
		updated = license

		switch action {
		case entities.ActionApprove:
			return application.AppendLicenseEvent(ctx, uc.Outbox, uc.IDGenerator, contractsv1.EventLicenseActivated, license, now, "")
		case entities.ActionTerminate:
			return application.AppendLicenseEvent(ctx, uc.Outbox, uc.IDGenerator, contractsv1.EventLicenseTerminated, license, now, reason)
		}
		return nil
	})
	if err != nil {
		return entities.License{}, err
	}

	application.ResolveLogger(uc.Logger).Info("license status changed",
		"event", "license_status_changed",
		"module", application.Module,
		"layer", "application",
		"license_id", updated.LicenseID,
		"action", action,
		"from", from,
		"to", updated.Status,
		"actor_id", cmd.Actor.UserID,
	)
	return updated, nil
}

func allowed(action entities.Action, license entities.License, actor ports.Actor) bool {
	switch action {
	case entities.ActionSubmit:
		return license.IsParty(actor.UserID)
	case entities.ActionApprove, entities.ActionReject:
		return actor.IsAdmin || strings.TrimSpace(actor.UserID) == license.LicensorID
	case entities.ActionSuspend, entities.ActionReinstate:
		return actor.IsAdmin
	case entities.ActionTerminate:
		return actor.IsAdmin || license.IsParty(actor.UserID)
	}
	return false
}
