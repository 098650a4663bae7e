package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	mediaerrors "ygbackend/contexts/content/media-service/domain/errors"
	mediaports "ygbackend/contexts/content/media-service/ports"
	mediahttp "ygbackend/contexts/content/media-service/transport/http"
)

func (s *Server) registerMediaRoutes(r chi.Router) {
	r.Route("/v1/media", func(r chi.Router) {
		r.Post("/uploads", s.handleInitiateUpload)
		r.Get("/", s.handleListMedia)
		r.Post("/bulk-delete", s.handleBulkDeleteMedia)
		r.Get("/{media_id}", s.handleGetMedia)
		r.Patch("/{media_id}", s.handleUpdateMediaMetadata)
		r.Delete("/{media_id}", s.handleDeleteMedia)
		r.Post("/{media_id}/confirm", s.handleConfirmUpload)
		r.Get("/{media_id}/download-url", s.handleMediaDownloadURL)
	})
}

func mediaActor(r *http.Request) mediaports.Actor {
	p := principal(r)
	return mediaports.Actor{UserID: p.UserID, IsAdmin: p.IsAdmin()}
}

func (s *Server) handleInitiateUpload(w http.ResponseWriter, r *http.Request) {
	var req mediahttp.InitiateUploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Media.Handler.InitiateUploadHandler(r.Context(), mediaActor(r), idempotencyKey(r), req)
	if err != nil {
		s.writeDomainError(w, r, err, mediaErrorStatus)
		return
	}
	writeJSON(w, createdStatus(resp.Replayed), resp)
}

func (s *Server) handleConfirmUpload(w http.ResponseWriter, r *http.Request) {
	var req mediahttp.ConfirmUploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Media.Handler.ConfirmUploadHandler(r.Context(), mediaActor(r), chi.URLParam(r, "media_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err, mediaErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Media.Handler.GetMediaHandler(r.Context(), mediaActor(r), chi.URLParam(r, "media_id"))
	if err != nil {
		s.writeDomainError(w, r, err, mediaErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	resp, err := s.modules.Media.Handler.ListMediaHandler(r.Context(), mediaActor(r), mediahttp.ListMediaRequest{
		OwnerID: query.Get("owner_id"),
		Type:    query.Get("type"),
		Status:  query.Get("status"),
		Tag:     query.Get("tag"),
		Search:  query.Get("q"),
		Cursor:  query.Get("cursor"),
		Limit:   limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err, mediaErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateMediaMetadata(w http.ResponseWriter, r *http.Request) {
	var req mediahttp.UpdateMetadataRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Media.Handler.UpdateMetadataHandler(r.Context(), mediaActor(r), chi.URLParam(r, "media_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err, mediaErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	if err := s.modules.Media.Handler.DeleteMediaHandler(r.Context(), mediaActor(r), chi.URLParam(r, "media_id")); err != nil {
		s.writeDomainError(w, r, err, mediaErrorStatus)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkDeleteMedia(w http.ResponseWriter, r *http.Request) {
	var req mediahttp.BulkDeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Media.Handler.BulkDeleteHandler(r.Context(), mediaActor(r), req)
	if err != nil {
		s.writeDomainError(w, r, err, mediaErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMediaDownloadURL(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Media.Handler.DownloadURLHandler(r.Context(), mediaActor(r), chi.URLParam(r, "media_id"))
	if err != nil {
		s.writeDomainError(w, r, err, mediaErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func mediaErrorStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, mediaerrors.ErrInvalidMediaInput):
		return http.StatusBadRequest, "invalid_media_input", true
	case errors.Is(err, mediaerrors.ErrUnsupportedMimeType):
		return http.StatusUnsupportedMediaType, "unsupported_mime_type", true
	case errors.Is(err, mediaerrors.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "file_too_large", true
	case errors.Is(err, mediaerrors.ErrQuotaExceeded):
		return http.StatusInsufficientStorage, "quota_exceeded", true
	case errors.Is(err, mediaerrors.ErrTooManyItems):
		return http.StatusBadRequest, "too_many_items", true
	case errors.Is(err, mediaerrors.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest, "idempotency_key_required", true
	case errors.Is(err, mediaerrors.ErrMediaNotFound):
		return http.StatusNotFound, "media_not_found", true
	case errors.Is(err, mediaerrors.ErrForbidden):
		return http.StatusForbidden, "forbidden", true
	case errors.Is(err, mediaerrors.ErrInvalidStateTransition):
		return http.StatusConflict, "invalid_state_transition", true
	case errors.Is(err, mediaerrors.ErrMediaNotReady):
		return http.StatusConflict, "media_not_ready", true
	case errors.Is(err, mediaerrors.ErrIdempotencyKeyConflict):
		return http.StatusConflict, "idempotency_conflict", true
	default:
		return 0, "", false
	}
}
