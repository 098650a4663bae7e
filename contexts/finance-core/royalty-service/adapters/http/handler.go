package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/finance-core/royalty-service/application"
	"ygbackend/contexts/finance-core/royalty-service/domain/entities"
	domainerrors "ygbackend/contexts/finance-core/royalty-service/domain/errors"
	"ygbackend/contexts/finance-core/royalty-service/ports"
	httptransport "ygbackend/contexts/finance-core/royalty-service/transport/http"
	"ygbackend/internal/shared/pagination"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) RecordRevenueHandler(ctx context.Context, actor ports.Actor, req httptransport.RecordRevenueRequest) (httptransport.RevenueResponse, error) {
	occurredAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.OccurredAt))
	if err != nil {
		return httptransport.RevenueResponse{}, domainerrors.ErrInvalidRevenueInput
	}
	result, err := h.Service.RecordRevenue(ctx, actor, application.RecordRevenueInput{
		EntryID:    req.EntryID,
		LicenseID:  req.LicenseID,
		IPAssetID:  req.IPAssetID,
		GrossCents: req.GrossCents,
		Currency:   req.Currency,
		OccurredAt: occurredAt,
		Source:     req.Source,
	})
	if err != nil {
		return httptransport.RevenueResponse{}, err
	}
	entry := result.Entry
	return httptransport.RevenueResponse{
		Status:  "success",
		Created: result.Created,
		Data: httptransport.RevenueDTO{
			EntryID:    entry.EntryID,
			LicenseID:  entry.LicenseID,
			IPAssetID:  entry.IPAssetID,
			GrossCents: entry.GrossCents,
			Currency:   entry.Currency,
			OccurredAt: entry.OccurredAt.UTC().Format(time.RFC3339),
			Source:     entry.Source,
		},
	}, nil
}

func (h Handler) CreateRunHandler(ctx context.Context, actor ports.Actor, idempotencyKey string, req httptransport.CreateRunRequest) (httptransport.RunResponse, error) {
	start, errStart := time.Parse(time.RFC3339, strings.TrimSpace(req.PeriodStart))
	end, errEnd := time.Parse(time.RFC3339, strings.TrimSpace(req.PeriodEnd))
	if errStart != nil || errEnd != nil {
		return httptransport.RunResponse{}, domainerrors.ErrInvalidPeriod
	}
	result, err := h.Service.CreateRun(ctx, actor, idempotencyKey, start, end)
	if err != nil {
		return httptransport.RunResponse{}, err
	}
	return httptransport.RunResponse{Status: "success", Data: toRunDTO(result.Run), Replayed: result.Replayed}, nil
}

func (h Handler) CalculateRunHandler(ctx context.Context, actor ports.Actor, runID string) (httptransport.RunResponse, error) {
	run, err := h.Service.CalculateRun(ctx, actor, runID)
	if err != nil {
		return httptransport.RunResponse{}, err
	}
	return httptransport.RunResponse{Status: "success", Data: toRunDTO(run)}, nil
}

func (h Handler) LockRunHandler(ctx context.Context, actor ports.Actor, runID string) (httptransport.RunResponse, error) {
	run, err := h.Service.LockRun(ctx, actor, runID)
	if err != nil {
		return httptransport.RunResponse{}, err
	}
	return httptransport.RunResponse{Status: "success", Data: toRunDTO(run)}, nil
}

func (h Handler) GetRunHandler(ctx context.Context, actor ports.Actor, runID string) (httptransport.RunResponse, error) {
	run, err := h.Service.GetRun(ctx, actor, runID)
	if err != nil {
		return httptransport.RunResponse{}, err
	}
	return httptransport.RunResponse{Status: "success", Data: toRunDTO(run)}, nil
}

func (h Handler) ListRunsHandler(ctx context.Context, actor ports.Actor, req httptransport.ListRunsRequest) (httptransport.ListRunsResponse, error) {
	offset := pagination.DecodeCursor(req.Cursor)
	runs, hasMore, err := h.Service.ListRuns(ctx, actor, ports.RunFilter{
		Status: entities.RunStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Offset: offset,
		Limit:  pagination.NormalizeLimit(req.Limit),
	})
	if err != nil {
		return httptransport.ListRunsResponse{}, err
	}
	resp := httptransport.ListRunsResponse{Status: "success", Data: make([]httptransport.RunDTO, 0, len(runs))}
	for _, run := range runs {
		resp.Data = append(resp.Data, toRunDTO(run))
	}
	if hasMore {
		resp.NextCursor = pagination.EncodeCursor(offset + len(runs))
	}
	return resp, nil
}

func (h Handler) ListStatementsHandler(ctx context.Context, actor ports.Actor, req httptransport.ListStatementsRequest) (httptransport.ListStatementsResponse, error) {
	offset := pagination.DecodeCursor(req.Cursor)
	statements, hasMore, err := h.Service.ListStatements(ctx, actor, ports.StatementFilter{
		CreatorID: strings.TrimSpace(req.CreatorID),
		RunID:     strings.TrimSpace(req.RunID),
		Status:    entities.StatementStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Offset:    offset,
		Limit:     pagination.NormalizeLimit(req.Limit),
	})
	if err != nil {
		return httptransport.ListStatementsResponse{}, err
	}
	resp := httptransport.ListStatementsResponse{Status: "success", Data: make([]httptransport.StatementDTO, 0, len(statements))}
	for _, statement := range statements {
		// Lines are only returned on the single statement view.
		dto := toStatementDTO(statement)
		dto.Lines = nil
		resp.Data = append(resp.Data, dto)
	}
	if hasMore {
		resp.NextCursor = pagination.EncodeCursor(offset + len(statements))
	}
	return resp, nil
}

func (h Handler) GetStatementHandler(ctx context.Context, actor ports.Actor, statementID string) (httptransport.StatementResponse, error) {
	statement, err := h.Service.GetStatement(ctx, actor, statementID)
	if err != nil {
		return httptransport.StatementResponse{}, err
	}
	return httptransport.StatementResponse{Status: "success", Data: toStatementDTO(statement)}, nil
}

func (h Handler) ReviewStatementHandler(ctx context.Context, actor ports.Actor, statementID string) (httptransport.StatementResponse, error) {
	statement, err := h.Service.ReviewStatement(ctx, actor, statementID)
	if err != nil {
		return httptransport.StatementResponse{}, err
	}
	return httptransport.StatementResponse{Status: "success", Data: toStatementDTO(statement)}, nil
}

func (h Handler) DisputeStatementHandler(ctx context.Context, actor ports.Actor, statementID string, req httptransport.DisputeStatementRequest) (httptransport.StatementResponse, error) {
	statement, err := h.Service.DisputeStatement(ctx, actor, statementID, req.Reason)
	if err != nil {
		return httptransport.StatementResponse{}, err
	}
	return httptransport.StatementResponse{Status: "success", Data: toStatementDTO(statement)}, nil
}

func (h Handler) ResolveDisputeHandler(ctx context.Context, actor ports.Actor, statementID string, req httptransport.ResolveDisputeRequest) (httptransport.StatementResponse, error) {
	statement, err := h.Service.ResolveDispute(ctx, actor, statementID, req.AdjustmentCents, req.Note)
	if err != nil {
		return httptransport.StatementResponse{}, err
	}
	return httptransport.StatementResponse{Status: "success", Data: toStatementDTO(statement)}, nil
}

func (h Handler) EarningsSummaryHandler(ctx context.Context, actor ports.Actor, creatorID string) (httptransport.EarningsSummaryResponse, error) {
	summary, err := h.Service.EarningsSummary(ctx, actor, creatorID)
	if err != nil {
		return httptransport.EarningsSummaryResponse{}, err
	}
	var resp httptransport.EarningsSummaryResponse
	resp.Status = "success"
	resp.Data.CreatorID = summary.CreatorID
	resp.Data.StatementCount = summary.StatementCount
	resp.Data.Currencies = make([]httptransport.CurrencyTotalsDTO, 0, len(summary.Currencies))
	for _, totals := range summary.Currencies {
		byStatus := make(map[string]int64, len(totals.ByStatus))
		for status, cents := range totals.ByStatus {
			byStatus[string(status)] = cents
		}
		resp.Data.Currencies = append(resp.Data.Currencies, httptransport.CurrencyTotalsDTO{
			Currency:         totals.Currency,
			EarningsCents:    totals.EarningsCents,
			FeeCents:         totals.FeeCents,
			AdjustmentCents:  totals.AdjustmentCents,
			NetPayableCents:  totals.NetPayableCents,
			OutstandingCents: totals.OutstandingCents,
			PaidCents:        totals.PaidCents,
			ByStatus:         byStatus,
		})
	}
	return resp, nil
}

func (h Handler) FeeBreakdownHandler(amountCents int64) (httptransport.FeeBreakdownResponse, error) {
	breakdown, err := h.Service.FeeBreakdown(amountCents)
	if err != nil {
		return httptransport.FeeBreakdownResponse{}, err
	}
	var resp httptransport.FeeBreakdownResponse
	resp.Status = "success"
	resp.Data.GrossCents = breakdown.GrossCents
	resp.Data.FeeBps = breakdown.FeeBps
	resp.Data.FeeCents = breakdown.FeeCents
	resp.Data.NetCents = breakdown.NetCents
	return resp, nil
}

func toRunDTO(run entities.RoyaltyRun) httptransport.RunDTO {
	dto := httptransport.RunDTO{
		RunID:             run.RunID,
		PeriodStart:       run.PeriodStart.UTC().Format(time.RFC3339),
		PeriodEnd:         run.PeriodEnd.UTC().Format(time.RFC3339),
		Status:            string(run.Status),
		TotalRevenueCents: run.TotalRevenueCents,
		TotalRoyaltyCents: run.TotalRoyaltyCents,
		TotalFeeCents:     run.TotalFeeCents,
		StatementCount:    run.StatementCount,
		CreatedBy:         run.CreatedBy,
		CreatedAt:         run.CreatedAt.UTC().Format(time.RFC3339),
		CalculatedAt:      formatOptional(run.CalculatedAt),
		LockedAt:          formatOptional(run.LockedAt),
	}
	for _, skipped := range run.Skipped {
		dto.Skipped = append(dto.Skipped, httptransport.SkippedEntryDTO{
			EntryID:   skipped.EntryID,
			LicenseID: skipped.LicenseID,
			Reason:    string(skipped.Reason),
		})
	}
	return dto
}

func toStatementDTO(statement entities.Statement) httptransport.StatementDTO {
	dto := httptransport.StatementDTO{
		StatementID:     statement.StatementID,
		RunID:           statement.RunID,
		CreatorID:       statement.CreatorID,
		Currency:        statement.Currency,
		PeriodStart:     statement.PeriodStart.UTC().Format(time.RFC3339),
		PeriodEnd:       statement.PeriodEnd.UTC().Format(time.RFC3339),
		EarningsCents:   statement.EarningsCents,
		FeeCents:        statement.FeeCents,
		AdjustmentCents: statement.AdjustmentCents,
		NetPayableCents: statement.NetPayableCents,
		Status:          string(statement.Status),
		DisputeReason:   statement.DisputeReason,
		ResolutionNote:  statement.ResolutionNote,
		PayoutID:        statement.PayoutID,
		IssuedAt:        formatOptional(statement.IssuedAt),
		PaidAt:          formatOptional(statement.PaidAt),
	}
	for _, line := range statement.Lines {
		dto.Lines = append(dto.Lines, httptransport.LineDTO{
			LicenseID:    line.LicenseID,
			IPAssetID:    line.IPAssetID,
			EntryID:      line.EntryID,
			RevenueCents: line.RevenueCents,
			RevShareBps:  line.RevShareBps,
			OwnershipBps: line.OwnershipBps,
			RoyaltyCents: line.RoyaltyCents,
		})
	}
	return dto
}

func formatOptional(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
