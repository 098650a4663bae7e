package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/rights-management/license-service/application/commands"
	"ygbackend/contexts/rights-management/license-service/application/queries"
	"ygbackend/contexts/rights-management/license-service/domain/entities"
	domainerrors "ygbackend/contexts/rights-management/license-service/domain/errors"
	"ygbackend/contexts/rights-management/license-service/ports"
	httptransport "ygbackend/contexts/rights-management/license-service/transport/http"
	"ygbackend/internal/shared/pagination"
)

type Handler struct {
	CreateLicense    commands.CreateLicenseUseCase
	Transition       commands.TransitionLicenseUseCase
	ProposeAmendment commands.ProposeAmendmentUseCase
	DecideAmendment  commands.DecideAmendmentUseCase
	RenewLicense     commands.RenewLicenseUseCase
	GetLicense       queries.GetLicenseUseCase
	ListLicenses     queries.ListLicensesUseCase
	CheckConflicts   queries.CheckConflictsUseCase
	ListAmendments   queries.ListAmendmentsUseCase
	Logger           *slog.Logger
}

func (h Handler) CreateLicenseHandler(
	ctx context.Context,
	actor ports.Actor,
	idempotencyKey string,
	req httptransport.CreateLicenseRequest,
) (httptransport.LicenseResponse, error) {
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return httptransport.LicenseResponse{}, err
	}
	result, err := h.CreateLicense.Execute(ctx, commands.CreateLicenseCommand{
		IdempotencyKey: idempotencyKey,
		Actor:          actor,
		IPAssetID:      req.IPAssetID,
		LicensorID:     req.LicensorID,
		LicenseeID:     req.LicenseeID,
		Media:          append([]string(nil), req.Scope.Media...),
		Placements:     append([]string(nil), req.Scope.Placements...),
		Territories:    append([]string(nil), req.Scope.Territories...),
		Exclusive:      req.Scope.Exclusive,
		StartDate:      start,
		EndDate:        end,
		FeeCents:       req.FeeCents,
		Currency:       req.Currency,
		RevShareBps:    req.RevShareBps,
	})
	if err != nil {
		return httptransport.LicenseResponse{}, err
	}
	return httptransport.LicenseResponse{Status: "success", Data: mapLicense(result.License), Replayed: result.Replayed}, nil
}

func (h Handler) GetLicenseHandler(ctx context.Context, actor ports.Actor, licenseID string) (httptransport.LicenseResponse, error) {
	license, err := h.GetLicense.Execute(ctx, licenseID, actor)
	if err != nil {
		return httptransport.LicenseResponse{}, err
	}
	return httptransport.LicenseResponse{Status: "success", Data: mapLicense(license)}, nil
}

func (h Handler) ListLicensesHandler(ctx context.Context, actor ports.Actor, req httptransport.ListLicensesRequest) (httptransport.ListLicensesResponse, error) {
	offset := pagination.DecodeCursor(req.Cursor)
	items, hasMore, err := h.ListLicenses.Execute(ctx, queries.ListLicensesQuery{
		Actor:              actor,
		Status:             req.Status,
		IPAssetID:          req.IPAssetID,
		LicenseeID:         req.LicenseeID,
		LicensorID:         req.LicensorID,
		ExpiringWithinDays: req.ExpiringWithinDays,
		Offset:             offset,
		Limit:              pagination.NormalizeLimit(req.Limit),
	})
	if err != nil {
		return httptransport.ListLicensesResponse{}, err
	}
	resp := httptransport.ListLicensesResponse{Status: "success", Data: make([]httptransport.LicenseDTO, 0, len(items))}
	for _, item := range items {
		resp.Data = append(resp.Data, mapLicense(item))
	}
	if hasMore {
		resp.NextCursor = pagination.EncodeCursor(offset + len(items))
	}
	return resp, nil
}

func (h Handler) TransitionHandler(
	ctx context.Context,
	actor ports.Actor,
	licenseID string,
	action string,
	req httptransport.TransitionRequest,
) (httptransport.LicenseResponse, error) {
	license, err := h.Transition.Execute(ctx, commands.TransitionLicenseCommand{
		LicenseID: licenseID,
		Actor:     actor,
		Action:    entities.Action(action),
		Reason:    req.Reason,
	})
	if err != nil {
		return httptransport.LicenseResponse{}, err
	}
	return httptransport.LicenseResponse{Status: "success", Data: mapLicense(license)}, nil
}

func (h Handler) CheckConflictsHandler(ctx context.Context, req httptransport.CheckConflictsRequest) (httptransport.CheckConflictsResponse, error) {
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return httptransport.CheckConflictsResponse{}, err
	}
	conflicts, err := h.CheckConflicts.Execute(ctx, queries.CheckConflictsQuery{
		IPAssetID:   req.IPAssetID,
		Territories: append([]string(nil), req.Territories...),
		StartDate:   start,
		EndDate:     end,
		Exclusive:   req.Exclusive,
	})
	if err != nil {
		return httptransport.CheckConflictsResponse{}, err
	}
	resp := httptransport.CheckConflictsResponse{
		Status:      "success",
		HasConflict: len(conflicts) > 0,
		Conflicts:   make([]httptransport.LicenseDTO, 0, len(conflicts)),
	}
	for _, item := range conflicts {
		resp.Conflicts = append(resp.Conflicts, mapLicense(item))
	}
	return resp, nil
}

func (h Handler) ProposeAmendmentHandler(
	ctx context.Context,
	actor ports.Actor,
	licenseID string,
	req httptransport.ProposeAmendmentRequest,
) (httptransport.AmendmentResponse, error) {
	changes := entities.AmendmentChanges{
		FeeCents:    req.Changes.FeeCents,
		RevShareBps: req.Changes.RevShareBps,
		Territories: append([]string(nil), req.Changes.Territories...),
	}
	if req.Changes.EndDate != nil {
		end, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.Changes.EndDate))
		if err != nil {
			return httptransport.AmendmentResponse{}, domainerrors.ErrInvalidAmendment
		}
		end = end.UTC()
		changes.EndDate = &end
	}
	amendment, err := h.ProposeAmendment.Execute(ctx, commands.ProposeAmendmentCommand{
		LicenseID: licenseID,
		Actor:     actor,
		Changes:   changes,
		Reason:    req.Reason,
	})
	if err != nil {
		return httptransport.AmendmentResponse{}, err
	}
	return httptransport.AmendmentResponse{Status: "success", Data: mapAmendment(amendment)}, nil
}

func (h Handler) DecideAmendmentHandler(
	ctx context.Context,
	actor ports.Actor,
	amendmentID string,
	approve bool,
) (httptransport.DecideAmendmentResponse, error) {
	result, err := h.DecideAmendment.Execute(ctx, commands.DecideAmendmentCommand{
		AmendmentID: amendmentID,
		Actor:       actor,
		Approve:     approve,
	})
	if err != nil {
		return httptransport.DecideAmendmentResponse{}, err
	}
	return httptransport.DecideAmendmentResponse{
		Status:    "success",
		Amendment: mapAmendment(result.Amendment),
		License:   mapLicense(result.License),
	}, nil
}

func (h Handler) ListAmendmentsHandler(ctx context.Context, actor ports.Actor, licenseID string) (httptransport.ListAmendmentsResponse, error) {
	items, err := h.ListAmendments.Execute(ctx, licenseID, actor)
	if err != nil {
		return httptransport.ListAmendmentsResponse{}, err
	}
	resp := httptransport.ListAmendmentsResponse{Status: "success", Data: make([]httptransport.AmendmentDTO, 0, len(items))}
	for _, item := range items {
		resp.Data = append(resp.Data, mapAmendment(item))
	}
	return resp, nil
}

func (h Handler) RenewLicenseHandler(
	ctx context.Context,
	actor ports.Actor,
	idempotencyKey string,
	licenseID string,
	req httptransport.RenewLicenseRequest,
) (httptransport.LicenseResponse, error) {
	result, err := h.RenewLicense.Execute(ctx, commands.RenewLicenseCommand{
		IdempotencyKey:   idempotencyKey,
		LicenseID:        licenseID,
		Actor:            actor,
		FeeAdjustmentBps: req.FeeAdjustmentBps,
	})
	if err != nil {
		return httptransport.LicenseResponse{}, err
	}
	return httptransport.LicenseResponse{Status: "success", Data: mapLicense(result.License), Replayed: result.Replayed}, nil
}

func parseRange(startRaw string, endRaw string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(startRaw))
	if err != nil {
		return time.Time{}, time.Time{}, domainerrors.ErrInvalidLicenseInput
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(endRaw))
	if err != nil {
		return time.Time{}, time.Time{}, domainerrors.ErrInvalidLicenseInput
	}
	return start.UTC(), end.UTC(), nil
}

func mapLicense(license entities.License) httptransport.LicenseDTO {
	return httptransport.LicenseDTO{
		LicenseID:  license.LicenseID,
		IPAssetID:  license.IPAssetID,
		LicensorID: license.LicensorID,
		LicenseeID: license.LicenseeID,
		Status:     string(license.Status),
		Scope: httptransport.ScopeDTO{
			Media:       append([]string{}, license.Scope.Media...),
			Placements:  append([]string{}, license.Scope.Placements...),
			Territories: append([]string{}, license.Scope.Territories...),
			Exclusive:   license.Scope.Exclusive,
		},
		StartDate:          formatTime(license.StartDate),
		EndDate:            formatTime(license.EndDate),
		FeeCents:           license.FeeCents,
		Currency:           license.Currency,
		RevShareBps:        license.RevShareBps,
		ParentLicenseID:    license.ParentLicenseID,
		Version:            license.Version,
		SignedAt:           formatTimePtr(license.SignedAt),
		TerminatedAt:       formatTimePtr(license.TerminatedAt),
		TerminationReason:  license.TerminationReason,
		ExpiryNoticeSentAt: formatTimePtr(license.ExpiryNoticeSentAt),
		CreatedAt:          formatTime(license.CreatedAt),
		UpdatedAt:          formatTime(license.UpdatedAt),
	}
}

func mapAmendment(amendment entities.Amendment) httptransport.AmendmentDTO {
	dto := httptransport.AmendmentDTO{
		AmendmentID: amendment.AmendmentID,
		LicenseID:   amendment.LicenseID,
		ProposedBy:  amendment.ProposedBy,
		BaseVersion: amendment.BaseVersion,
		Changes: httptransport.AmendmentChangesDTO{
			FeeCents:    amendment.Changes.FeeCents,
			RevShareBps: amendment.Changes.RevShareBps,
			Territories: append([]string(nil), amendment.Changes.Territories...),
		},
		Reason:    amendment.Reason,
		Status:    string(amendment.Status),
		DecidedBy: amendment.DecidedBy,
		DecidedAt: formatTimePtr(amendment.DecidedAt),
		CreatedAt: formatTime(amendment.CreatedAt),
	}
	if amendment.Changes.EndDate != nil {
		end := formatTime(*amendment.Changes.EndDate)
		dto.Changes.EndDate = &end
	}
	return dto
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatTimePtr(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}
