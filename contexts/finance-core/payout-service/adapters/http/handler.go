package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/finance-core/payout-service/application"
	"ygbackend/contexts/finance-core/payout-service/domain/entities"
	"ygbackend/contexts/finance-core/payout-service/ports"
	httptransport "ygbackend/contexts/finance-core/payout-service/transport/http"
	"ygbackend/internal/shared/pagination"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) StartOnboardingHandler(ctx context.Context, actor ports.Actor, req httptransport.StartOnboardingRequest) (httptransport.OnboardingResponse, error) {
	result, err := h.Service.StartOnboarding(ctx, actor, req.Email)
	if err != nil {
		return httptransport.OnboardingResponse{}, err
	}
	return httptransport.OnboardingResponse{Status: "success", Data: toOnboardingDTO(result)}, nil
}

func (h Handler) RefreshOnboardingHandler(ctx context.Context, actor ports.Actor) (httptransport.OnboardingResponse, error) {
	result, err := h.Service.RefreshOnboardingLink(ctx, actor)
	if err != nil {
		return httptransport.OnboardingResponse{}, err
	}
	return httptransport.OnboardingResponse{Status: "success", Data: toOnboardingDTO(result)}, nil
}

func (h Handler) GetAccountHandler(ctx context.Context, actor ports.Actor, userID string, sync bool) (httptransport.AccountResponse, error) {
	account, err := h.Service.GetAccount(ctx, actor, userID, sync)
	if err != nil {
		return httptransport.AccountResponse{}, err
	}
	return httptransport.AccountResponse{Status: "success", Data: toAccountDTO(account)}, nil
}

func (h Handler) WebhookHandler(ctx context.Context, payload []byte, signature string) (httptransport.WebhookResponse, error) {
	result, err := h.Service.HandleWebhook(ctx, payload, signature)
	if err != nil {
		return httptransport.WebhookResponse{}, err
	}
	return httptransport.WebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		Handled:   result.Handled,
		Duplicate: result.Duplicate,
	}, nil
}

func (h Handler) GetBalanceHandler(ctx context.Context, actor ports.Actor, userID string) (httptransport.BalanceResponse, error) {
	result, err := h.Service.GetBalance(ctx, actor, userID)
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	resp := httptransport.BalanceResponse{
		Status:         "success",
		UserID:         result.UserID,
		MinPayoutCents: result.MinPayoutCents,
		Data:           make([]httptransport.BalanceDTO, 0, len(result.Balances)),
	}
	for _, balance := range result.Balances {
		resp.Data = append(resp.Data, httptransport.BalanceDTO{
			Currency:       balance.Currency,
			AvailableCents: balance.AvailableCents,
			ReservedCents:  balance.ReservedCents,
			PaidCents:      balance.PaidCents,
		})
	}
	return resp, nil
}

func (h Handler) RequestPayoutHandler(ctx context.Context, actor ports.Actor, idempotencyKey string, req httptransport.RequestPayoutRequest) (httptransport.PayoutResponse, error) {
	result, err := h.Service.RequestPayout(ctx, actor, idempotencyKey, application.RequestPayoutInput{
		StatementIDs: req.StatementIDs,
		Currency:     req.Currency,
	})
	if err != nil {
		return httptransport.PayoutResponse{}, err
	}
	return httptransport.PayoutResponse{Status: "success", Data: toPayoutDTO(result.Payout), Replayed: result.Replayed}, nil
}

func (h Handler) ListPayoutsHandler(ctx context.Context, actor ports.Actor, req httptransport.ListPayoutsRequest) (httptransport.ListPayoutsResponse, error) {
	offset := pagination.DecodeCursor(req.Cursor)
	payouts, hasMore, err := h.Service.ListPayouts(ctx, actor, ports.PayoutFilter{
		UserID: strings.TrimSpace(req.UserID),
		Status: entities.PayoutStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Offset: offset,
		Limit:  pagination.NormalizeLimit(req.Limit),
	})
	if err != nil {
		return httptransport.ListPayoutsResponse{}, err
	}
	resp := httptransport.ListPayoutsResponse{Status: "success", Data: make([]httptransport.PayoutDTO, 0, len(payouts))}
	for _, payout := range payouts {
		resp.Data = append(resp.Data, toPayoutDTO(payout))
	}
	if hasMore {
		resp.NextCursor = pagination.EncodeCursor(offset + len(payouts))
	}
	return resp, nil
}

func (h Handler) GetPayoutHandler(ctx context.Context, actor ports.Actor, payoutID string) (httptransport.PayoutResponse, error) {
	payout, err := h.Service.GetPayout(ctx, actor, payoutID)
	if err != nil {
		return httptransport.PayoutResponse{}, err
	}
	return httptransport.PayoutResponse{Status: "success", Data: toPayoutDTO(payout)}, nil
}

func toOnboardingDTO(result application.OnboardingResult) httptransport.OnboardingDTO {
	return httptransport.OnboardingDTO{
		Account:   toAccountDTO(result.Account),
		URL:       result.URL,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func toAccountDTO(account entities.ConnectedAccount) httptransport.AccountDTO {
	requirements := account.RequirementsDue
	if requirements == nil {
		requirements = []string{}
	}
	return httptransport.AccountDTO{
		UserID:           account.UserID,
		StripeAccountID:  account.StripeAccountID,
		Status:           string(account.Status),
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
		RequirementsDue:  requirements,
		DisabledReason:   account.DisabledReason,
		Country:          account.Country,
		Email:            account.Email,
		UpdatedAt:        account.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toPayoutDTO(payout entities.Payout) httptransport.PayoutDTO {
	dto := httptransport.PayoutDTO{
		PayoutID:         payout.PayoutID,
		UserID:           payout.UserID,
		AmountCents:      payout.AmountCents,
		Currency:         payout.Currency,
		Status:           string(payout.Status),
		StripeTransferID: payout.StripeTransferID,
		StatementIDs:     append([]string{}, payout.StatementIDs...),
		Attempts:         payout.Attempts,
		FailureReason:    payout.FailureReason,
		RequestedAt:      payout.RequestedAt.UTC().Format(time.RFC3339),
	}
	if payout.Status == entities.PayoutPending && !payout.NextAttemptAt.IsZero() {
		dto.NextAttemptAt = payout.NextAttemptAt.UTC().Format(time.RFC3339)
	}
	if payout.CompletedAt != nil {
		dto.CompletedAt = payout.CompletedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
