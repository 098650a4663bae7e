package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	payouterrors "ygbackend/contexts/finance-core/payout-service/domain/errors"
	payoutports "ygbackend/contexts/finance-core/payout-service/ports"
	payouthttp "ygbackend/contexts/finance-core/payout-service/transport/http"
)

// Stripe event payloads stay well below this.
const maxWebhookBytes = 256 << 10

func (s *Server) registerPayoutRoutes(r chi.Router) {
	r.Post("/v1/payouts/onboarding", s.handleStartOnboarding)
	r.Post("/v1/payouts/onboarding/refresh", s.handleRefreshOnboarding)
	r.Get("/v1/payouts/accounts/{user_id}", s.handleGetPayoutAccount)
	r.Get("/v1/payouts/balances/{user_id}", s.handleGetBalance)
	r.Post("/v1/payouts", s.handleRequestPayout)
	r.Get("/v1/payouts", s.handleListPayouts)
	r.Get("/v1/payouts/{payout_id}", s.handleGetPayout)
}

func payoutActor(r *http.Request) payoutports.Actor {
	p := principal(r)
	return payoutports.Actor{UserID: p.UserID, IsAdmin: p.IsAdmin()}
}

func (s *Server) handleStartOnboarding(w http.ResponseWriter, r *http.Request) {
	var req payouthttp.StartOnboardingRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Payout.Handler.StartOnboardingHandler(r.Context(), payoutActor(r), req)
	if err != nil {
		s.writeDomainError(w, r, err, payoutErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefreshOnboarding(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Payout.Handler.RefreshOnboardingHandler(r.Context(), payoutActor(r))
	if err != nil {
		s.writeDomainError(w, r, err, payoutErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPayoutAccount(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Payout.Handler.GetAccountHandler(r.Context(), payoutActor(r), chi.URLParam(r, "user_id"), queryBool(r, "sync"))
	if err != nil {
		s.writeDomainError(w, r, err, payoutErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Payout.Handler.GetBalanceHandler(r.Context(), payoutActor(r), chi.URLParam(r, "user_id"))
	if err != nil {
		s.writeDomainError(w, r, err, payoutErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRequestPayout(w http.ResponseWriter, r *http.Request) {
	var req payouthttp.RequestPayoutRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Payout.Handler.RequestPayoutHandler(r.Context(), payoutActor(r), idempotencyKey(r), req)
	if err != nil {
		s.writeDomainError(w, r, err, payoutErrorStatus)
		return
	}
	writeJSON(w, createdStatus(resp.Replayed), resp)
}

func (s *Server) handleListPayouts(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	query := r.URL.Query()
	resp, err := s.modules.Payout.Handler.ListPayoutsHandler(r.Context(), payoutActor(r), payouthttp.ListPayoutsRequest{
		UserID: query.Get("user_id"),
		Status: query.Get("status"),
		Cursor: query.Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err, payoutErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPayout(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Payout.Handler.GetPayoutHandler(r.Context(), payoutActor(r), chi.URLParam(r, "payout_id"))
	if err != nil {
		s.writeDomainError(w, r, err, payoutErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStripeWebhook needs the untouched body; the signature covers the raw bytes.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook payload is too large")
		return
	}
	resp, err := s.modules.Payout.Handler.WebhookHandler(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		s.writeDomainError(w, r, err, payoutErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func payoutErrorStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, payouterrors.ErrInvalidPayoutInput):
		return http.StatusBadRequest, "invalid_payout_input", true
	case errors.Is(err, payouterrors.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest, "idempotency_key_required", true
	case errors.Is(err, payouterrors.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature", true
	case errors.Is(err, payouterrors.ErrAccountNotFound):
		return http.StatusNotFound, "account_not_found", true
	case errors.Is(err, payouterrors.ErrPayoutNotFound):
		return http.StatusNotFound, "payout_not_found", true
	case errors.Is(err, payouterrors.ErrForbidden):
		return http.StatusForbidden, "forbidden", true
	case errors.Is(err, payouterrors.ErrAccountNotReady):
		return http.StatusConflict, "account_not_ready", true
	case errors.Is(err, payouterrors.ErrNothingToPay):
		return http.StatusUnprocessableEntity, "nothing_to_pay", true
	case errors.Is(err, payouterrors.ErrBelowMinimum):
		return http.StatusUnprocessableEntity, "below_minimum", true
	case errors.Is(err, payouterrors.ErrMixedCurrency):
		return http.StatusUnprocessableEntity, "mixed_currency", true
	case errors.Is(err, payouterrors.ErrIdempotencyKeyConflict):
		return http.StatusConflict, "idempotency_conflict", true
	case errors.Is(err, payouterrors.ErrGatewayUnavailable):
		return http.StatusBadGateway, "gateway_unavailable", true
	default:
		return 0, "", false
	}
}
