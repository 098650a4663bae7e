package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	royaltyerrors "ygbackend/contexts/finance-core/royalty-service/domain/errors"
	royaltyports "ygbackend/contexts/finance-core/royalty-service/ports"
	royaltyhttp "ygbackend/contexts/finance-core/royalty-service/transport/http"
)

func (s *Server) registerRoyaltyRoutes(r chi.Router) {
	r.Route("/v1/royalties", func(r chi.Router) {
		r.Post("/revenue", s.handleRecordRevenue)
		r.Post("/runs", s.handleCreateRoyaltyRun)
		r.Get("/runs", s.handleListRoyaltyRuns)
		r.Get("/runs/{run_id}", s.handleGetRoyaltyRun)
		r.Post("/runs/{run_id}/calculate", s.handleCalculateRoyaltyRun)
		r.Post("/runs/{run_id}/lock", s.handleLockRoyaltyRun)
		r.Get("/statements", s.handleListStatements)
		r.Get("/statements/{statement_id}", s.handleGetStatement)
		r.Post("/statements/{statement_id}/review", s.handleReviewStatement)
		r.Post("/statements/{statement_id}/dispute", s.handleDisputeStatement)
		r.Post("/statements/{statement_id}/resolve", s.handleResolveDispute)
		r.Get("/creators/{creator_id}/earnings", s.handleEarningsSummary)
		r.Get("/fee-breakdown", s.handleFeeBreakdown)
	})
}

func royaltyActor(r *http.Request) royaltyports.Actor {
	p := principal(r)
	return royaltyports.Actor{UserID: p.UserID, IsAdmin: p.IsAdmin()}
}

func (s *Server) handleRecordRevenue(w http.ResponseWriter, r *http.Request) {
	var req royaltyhttp.RecordRevenueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Royalty.Handler.RecordRevenueHandler(r.Context(), royaltyActor(r), req)
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCreateRoyaltyRun(w http.ResponseWriter, r *http.Request) {
	var req royaltyhttp.CreateRunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Royalty.Handler.CreateRunHandler(r.Context(), royaltyActor(r), idempotencyKey(r), req)
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, createdStatus(resp.Replayed), resp)
}

func (s *Server) handleListRoyaltyRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	query := r.URL.Query()
	resp, err := s.modules.Royalty.Handler.ListRunsHandler(r.Context(), royaltyActor(r), royaltyhttp.ListRunsRequest{
		Status: query.Get("status"),
		Cursor: query.Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRoyaltyRun(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Royalty.Handler.GetRunHandler(r.Context(), royaltyActor(r), chi.URLParam(r, "run_id"))
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCalculateRoyaltyRun(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Royalty.Handler.CalculateRunHandler(r.Context(), royaltyActor(r), chi.URLParam(r, "run_id"))
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLockRoyaltyRun(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Royalty.Handler.LockRunHandler(r.Context(), royaltyActor(r), chi.URLParam(r, "run_id"))
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	query := r.URL.Query()
	resp, err := s.modules.Royalty.Handler.ListStatementsHandler(r.Context(), royaltyActor(r), royaltyhttp.ListStatementsRequest{
		CreatorID: query.Get("creator_id"),
		RunID:     query.Get("run_id"),
		Status:    query.Get("status"),
		Cursor:    query.Get("cursor"),
		Limit:     limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Royalty.Handler.GetStatementHandler(r.Context(), royaltyActor(r), chi.URLParam(r, "statement_id"))
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReviewStatement(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Royalty.Handler.ReviewStatementHandler(r.Context(), royaltyActor(r), chi.URLParam(r, "statement_id"))
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDisputeStatement(w http.ResponseWriter, r *http.Request) {
	var req royaltyhttp.DisputeStatementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Royalty.Handler.DisputeStatementHandler(r.Context(), royaltyActor(r), chi.URLParam(r, "statement_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req royaltyhttp.ResolveDisputeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Royalty.Handler.ResolveDisputeHandler(r.Context(), royaltyActor(r), chi.URLParam(r, "statement_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEarningsSummary(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Royalty.Handler.EarningsSummaryHandler(r.Context(), royaltyActor(r), chi.URLParam(r, "creator_id"))
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFeeBreakdown(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("amount_cents")), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount_cents", "amount_cents must be an integer")
		return
	}
	resp, err := s.modules.Royalty.Handler.FeeBreakdownHandler(amount)
	if err != nil {
		s.writeDomainError(w, r, err, royaltyErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func royaltyErrorStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, royaltyerrors.ErrInvalidRevenueInput):
		return http.StatusBadRequest, "invalid_revenue_input", true
	case errors.Is(err, royaltyerrors.ErrInvalidPeriod):
		return http.StatusBadRequest, "invalid_period", true
	case errors.Is(err, royaltyerrors.ErrInvalidDisputeInput):
		return http.StatusBadRequest, "invalid_dispute_input", true
	case errors.Is(err, royaltyerrors.ErrInvalidAdjustment):
		return http.StatusUnprocessableEntity, "invalid_adjustment", true
	case errors.Is(err, royaltyerrors.ErrRunNotFound):
		return http.StatusNotFound, "run_not_found", true
	case errors.Is(err, royaltyerrors.ErrStatementNotFound):
		return http.StatusNotFound, "statement_not_found", true
	case errors.Is(err, royaltyerrors.ErrForbidden):
		return http.StatusForbidden, "forbidden", true
	case errors.Is(err, royaltyerrors.ErrRevenueConflict):
		return http.StatusConflict, "revenue_conflict", true
	case errors.Is(err, royaltyerrors.ErrRunOverlap):
		return http.StatusConflict, "run_overlap", true
	case errors.Is(err, royaltyerrors.ErrInvalidRunState):
		return http.StatusConflict, "invalid_run_state", true
	case errors.Is(err, royaltyerrors.ErrInvalidStatementState):
		return http.StatusConflict, "invalid_statement_state", true
	case errors.Is(err, royaltyerrors.ErrIdempotencyKeyConflict):
		return http.StatusConflict, "idempotency_conflict", true
	default:
		return 0, "", false
	}
}
