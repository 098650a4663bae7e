package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	licenseerrors "ygbackend/contexts/rights-management/license-service/domain/errors"
	licenseports "ygbackend/contexts/rights-management/license-service/ports"
	licensehttp "ygbackend/contexts/rights-management/license-service/transport/http"
)

var licenseActions = []string{"submit", "approve", "reject", "suspend", "reinstate", "terminate"}

func (s *Server) registerLicenseRoutes(r chi.Router) {
	r.Route("/v1/licenses", func(r chi.Router) {
		r.Post("/", s.handleCreateLicense)
		r.Get("/", s.handleListLicenses)
		r.Post("/conflicts", s.handleCheckLicenseConflicts)
		r.Post("/amendments/{amendment_id}/approve", s.handleDecideAmendment(true))
		r.Post("/amendments/{amendment_id}/reject", s.handleDecideAmendment(false))
		r.Get("/{license_id}", s.handleGetLicense)
		for _, action := range licenseActions {
			r.Post("/{license_id}/"+action, s.handleTransitionLicense(action))
		}
		r.Post("/{license_id}/renew", s.handleRenewLicense)
		r.Get("/{license_id}/amendments", s.handleListAmendments)
		r.Post("/{license_id}/amendments", s.handleProposeAmendment)
	})
}

func licenseActor(r *http.Request) licenseports.Actor {
	p := principal(r)
	return licenseports.Actor{UserID: p.UserID, IsAdmin: p.IsAdmin()}
}

func (s *Server) handleCreateLicense(w http.ResponseWriter, r *http.Request) {
	var req licensehttp.CreateLicenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.License.Handler.CreateLicenseHandler(r.Context(), licenseActor(r), idempotencyKey(r), req)
	if err != nil {
		s.writeDomainError(w, r, err, licenseErrorStatus)
		return
	}
	writeJSON(w, createdStatus(resp.Replayed), resp)
}

func (s *Server) handleListLicenses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	expiring, ok := queryInt(w, r, "expiring_within_days")
	if !ok {
		return
	}
	resp, err := s.modules.License.Handler.ListLicensesHandler(r.Context(), licenseActor(r), licensehttp.ListLicensesRequest{
		Status:             query.Get("status"),
		IPAssetID:          query.Get("ip_asset_id"),
		LicenseeID:         query.Get("licensee_id"),
		LicensorID:         query.Get("licensor_id"),
		ExpiringWithinDays: expiring,
		Cursor:             query.Get("cursor"),
		Limit:              limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err, licenseErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetLicense(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.License.Handler.GetLicenseHandler(r.Context(), licenseActor(r), chi.URLParam(r, "license_id"))
	if err != nil {
		s.writeDomainError(w, r, err, licenseErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCheckLicenseConflicts(w http.ResponseWriter, r *http.Request) {
	var req licensehttp.CheckConflictsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.License.Handler.CheckConflictsHandler(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err, licenseErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransitionLicense(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req licensehttp.TransitionRequest
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}
		resp, err := s.modules.License.Handler.TransitionHandler(r.Context(), licenseActor(r), chi.URLParam(r, "license_id"), action, req)
		if err != nil {
			s.writeDomainError(w, r, err, licenseErrorStatus)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleRenewLicense(w http.ResponseWriter, r *http.Request) {
	var req licensehttp.RenewLicenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.License.Handler.RenewLicenseHandler(r.Context(), licenseActor(r), idempotencyKey(r), chi.URLParam(r, "license_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err, licenseErrorStatus)
		return
	}
	writeJSON(w, createdStatus(resp.Replayed), resp)
}

func (s *Server) handleProposeAmendment(w http.ResponseWriter, r *http.Request) {
	var req licensehttp.ProposeAmendmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.License.Handler.ProposeAmendmentHandler(r.Context(), licenseActor(r), chi.URLParam(r, "license_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err, licenseErrorStatus)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListAmendments(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.License.Handler.ListAmendmentsHandler(r.Context(), licenseActor(r), chi.URLParam(r, "license_id"))
	if err != nil {
		s.writeDomainError(w, r, err, licenseErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDecideAmendment(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := s.modules.License.Handler.DecideAmendmentHandler(r.Context(), licenseActor(r), chi.URLParam(r, "amendment_id"), approve)
		if err != nil {
			s.writeDomainError(w, r, err, licenseErrorStatus)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func licenseErrorStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, licenseerrors.ErrInvalidLicenseInput):
		return http.StatusBadRequest, "invalid_license_input", true
	case errors.Is(err, licenseerrors.ErrInvalidAmendment):
		return http.StatusUnprocessableEntity, "invalid_amendment", true
	case errors.Is(err, licenseerrors.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest, "idempotency_key_required", true
	case errors.Is(err, licenseerrors.ErrLicenseNotFound):
		return http.StatusNotFound, "license_not_found", true
	case errors.Is(err, licenseerrors.ErrAmendmentNotFound):
		return http.StatusNotFound, "amendment_not_found", true
	case errors.Is(err, licenseerrors.ErrForbidden):
		return http.StatusForbidden, "forbidden", true
	case errors.Is(err, licenseerrors.ErrInvalidStateTransition):
		return http.StatusConflict, "invalid_state_transition", true
	case errors.Is(err, licenseerrors.ErrExclusivityConflict):
		return http.StatusConflict, "exclusivity_conflict", true
	case errors.Is(err, licenseerrors.ErrVersionConflict):
		return http.StatusConflict, "version_conflict", true
	case errors.Is(err, licenseerrors.ErrAmendmentDecided):
		return http.StatusConflict, "amendment_decided", true
	case errors.Is(err, licenseerrors.ErrIdempotencyKeyConflict):
		return http.StatusConflict, "idempotency_conflict", true
	default:
		return 0, "", false
	}
}
