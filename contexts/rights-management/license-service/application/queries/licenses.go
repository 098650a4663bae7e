package queries

import (
	"context"
	"strings"
	"time"

	"ygbackend/contexts/rights-management/license-service/application"
	"ygbackend/contexts/rights-management/license-service/domain/entities"
	domainerrors "ygbackend/contexts/rights-management/license-service/domain/errors"
	"ygbackend/contexts/rights-management/license-service/ports"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type GetLicenseUseCase struct {
	Licenses ports.LicenseRepository
}

func (uc GetLicenseUseCase) Execute(ctx context.Context, licenseID string, actor ports.Actor) (entities.License, error) {
	license, err := uc.Licenses.GetLicense(ctx, strings.TrimSpace(licenseID))
	if err != nil {
		return entities.License{}, err
	}
	if !actor.IsAdmin && !license.IsParty(actor.UserID) {
		return entities.License{}, domainerrors.ErrLicenseNotFound
	}
	return license, nil
}

type ListLicensesQuery struct {
	Actor              ports.Actor
	Status             string
	IPAssetID          string
	LicenseeID         string
	LicensorID         string
	ExpiringWithinDays int
	Offset             int
	Limit              int
}

type ListLicensesUseCase struct {
	Licenses ports.LicenseRepository
	Clock    ports.Clock
}

// Execute returns one page and whether another follows. Non-admin callers
// only see licenses they are a party to.
func (uc ListLicensesUseCase) Execute(ctx context.Context, query ListLicensesQuery) ([]entities.License, bool, error) {
	filter := ports.LicenseFilter{
		Status:     entities.LicenseStatus(strings.ToLower(strings.TrimSpace(query.Status))),
		IPAssetID:  strings.TrimSpace(query.IPAssetID),
		LicenseeID: strings.TrimSpace(query.LicenseeID),
		LicensorID: strings.TrimSpace(query.LicensorID),
		Offset:     query.Offset,
		Limit:      query.Limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, false, domainerrors.ErrInvalidLicenseInput
	}
	if query.ExpiringWithinDays < 0 {
		return nil, false, domainerrors.ErrInvalidLicenseInput
	}
	if query.ExpiringWithinDays > 0 {
		now := application.Now(uc.Clock)
		until := now.Add(time.Duration(query.ExpiringWithinDays) * 24 * time.Hour)
		filter.EndingAfter = &now
		filter.EndingBefore = &until
		if filter.Status == "" {
			filter.Status = entities.LicenseStatusActive
		}
	}
	if !query.Actor.IsAdmin {
		filter.PartyID = strings.TrimSpace(query.Actor.UserID)
		if filter.PartyID == "" {
			return nil, false, domainerrors.ErrForbidden
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	limit := filter.Limit
	filter.Limit++
	items, err := uc.Licenses.ListLicenses(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if len(items) > limit {
		return items[:limit], true, nil
	}
	return items, false, nil
}

type CheckConflictsQuery struct {
	IPAssetID   string
	Territories []string
	StartDate   time.Time
	EndDate     time.Time
	Exclusive   bool
}

type CheckConflictsUseCase struct {
	Licenses ports.LicenseRepository
}

// Execute lists the pending or active grants a proposed license would
// collide with.
func (uc CheckConflictsUseCase) Execute(ctx context.Context, query CheckConflictsQuery) ([]entities.License, error) {
	candidate := entities.License{
		IPAssetID: strings.TrimSpace(query.IPAssetID),
		Scope: entities.Scope{
			Territories: entities.NormalizeList(query.Territories, true),
			Exclusive:   query.Exclusive,
		},
		StartDate: query.StartDate.UTC(),
		EndDate:   query.EndDate.UTC(),
	}
	if candidate.IPAssetID == "" || len(candidate.Scope.Territories) == 0 || !candidate.EndDate.After(candidate.StartDate) {
		return nil, domainerrors.ErrInvalidLicenseInput
	}
	existing, err := uc.Licenses.ListBlockingLicenses(ctx, candidate.IPAssetID)
	if err != nil {
		return nil, err
	}
	conflicts := make([]entities.License, 0)
	for _, other := range existing {
		if candidate.ConflictsWith(other) {
			conflicts = append(conflicts, other)
		}
	}
	return conflicts, nil
}

type ListAmendmentsUseCase struct {
	Licenses   ports.LicenseRepository
	Amendments ports.AmendmentRepository
}

func (uc ListAmendmentsUseCase) Execute(ctx context.Context, licenseID string, actor ports.Actor) ([]entities.Amendment, error) {
	license, err := GetLicenseUseCase{Licenses: uc.Licenses}.Execute(ctx, licenseID, actor)
	if err != nil {
		return nil, err
	}
	return uc.Amendments.ListAmendments(ctx, license.LicenseID)
}
