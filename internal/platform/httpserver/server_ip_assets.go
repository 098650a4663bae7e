package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	ipasseterrors "ygbackend/contexts/rights-management/ip-asset-service/domain/errors"
	ipassetports "ygbackend/contexts/rights-management/ip-asset-service/ports"
	ipassethttp "ygbackend/contexts/rights-management/ip-asset-service/transport/http"
)

func (s *Server) registerIPAssetRoutes(r chi.Router) {
	r.Route("/v1/ip-assets", func(r chi.Router) {
		r.Post("/", s.handleCreateAsset)
		r.Get("/", s.handleListAssets)
		r.Get("/{asset_id}", s.handleGetAsset)
		r.Patch("/{asset_id}", s.handleUpdateAsset)
		r.Delete("/{asset_id}", s.handleDeleteAsset)
		r.Post("/{asset_id}/transitions", s.handleTransitionAsset)
		r.Put("/{asset_id}/ownership", s.handleSetOwnership)
	})
}

func ipAssetActor(r *http.Request) ipassetports.Actor {
	p := principal(r)
	return ipassetports.Actor{UserID: p.UserID, IsAdmin: p.IsAdmin()}
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req ipassethttp.CreateAssetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.IPAsset.Handler.CreateAssetHandler(r.Context(), ipAssetActor(r), idempotencyKey(r), req)
	if err != nil {
		s.writeDomainError(w, r, err, ipAssetErrorStatus)
		return
	}
	writeJSON(w, createdStatus(resp.Replayed), resp)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	resp, err := s.modules.IPAsset.Handler.ListAssetsHandler(r.Context(), ipassethttp.ListAssetsRequest{
		Status:    query.Get("status"),
		Type:      query.Get("type"),
		CreatorID: query.Get("creator_id"),
		Search:    query.Get("q"),
		Cursor:    query.Get("cursor"),
		Limit:     limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err, ipAssetErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.IPAsset.Handler.GetAssetHandler(r.Context(), chi.URLParam(r, "asset_id"))
	if err != nil {
		s.writeDomainError(w, r, err, ipAssetErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	var req ipassethttp.UpdateAssetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.IPAsset.Handler.UpdateAssetHandler(r.Context(), ipAssetActor(r), chi.URLParam(r, "asset_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err, ipAssetErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.modules.IPAsset.Handler.DeleteAssetHandler(r.Context(), ipAssetActor(r), chi.URLParam(r, "asset_id")); err != nil {
		s.writeDomainError(w, r, err, ipAssetErrorStatus)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransitionAsset(w http.ResponseWriter, r *http.Request) {
	var req ipassethttp.TransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.IPAsset.Handler.TransitionHandler(r.Context(), ipAssetActor(r), chi.URLParam(r, "asset_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err, ipAssetErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetOwnership(w http.ResponseWriter, r *http.Request) {
	var req ipassethttp.SetOwnershipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.IPAsset.Handler.SetOwnershipHandler(r.Context(), ipAssetActor(r), chi.URLParam(r, "asset_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err, ipAssetErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func ipAssetErrorStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, ipasseterrors.ErrInvalidAssetInput):
		return http.StatusBadRequest, "invalid_asset_input", true
	case errors.Is(err, ipasseterrors.ErrInvalidOwnership):
		return http.StatusUnprocessableEntity, "invalid_ownership", true
	case errors.Is(err, ipasseterrors.ErrAssetNotFound):
		return http.StatusNotFound, "asset_not_found", true
	case errors.Is(err, ipasseterrors.ErrForbidden):
		return http.StatusForbidden, "forbidden", true
	case errors.Is(err, ipasseterrors.ErrInvalidStateTransition):
		return http.StatusConflict, "invalid_state_transition", true
	case errors.Is(err, ipasseterrors.ErrAssetNotEditable):
		return http.StatusConflict, "asset_not_editable", true
	case errors.Is(err, ipasseterrors.ErrAssetNotDeletable):
		return http.StatusConflict, "asset_not_deletable", true
	case errors.Is(err, ipasseterrors.ErrVersionConflict):
		return http.StatusConflict, "version_conflict", true
	case errors.Is(err, ipasseterrors.ErrIdempotencyKeyConflict):
		return http.StatusConflict, "idempotency_conflict", true
	default:
		return 0, "", false
	}
}
