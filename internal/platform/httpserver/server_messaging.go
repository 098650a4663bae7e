package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	messagingerrors "ygbackend/contexts/communications/messaging-service/domain/errors"
	messagingports "ygbackend/contexts/communications/messaging-service/ports"
	messaginghttp "ygbackend/contexts/communications/messaging-service/transport/http"
)

func (s *Server) registerMessagingRoutes(r chi.Router) {
	r.Route("/v1/messaging", func(r chi.Router) {
		r.Post("/threads", s.handleCreateThread)
		r.Get("/threads", s.handleListThreads)
		r.Get("/threads/{thread_id}", s.handleGetThread)
		r.Post("/threads/{thread_id}/messages", s.handleSendMessage)
		r.Get("/threads/{thread_id}/messages", s.handleListMessages)
		r.Post("/threads/{thread_id}/read", s.handleMarkThreadRead)
		r.Post("/threads/{thread_id}/archive", s.handleArchiveThread(true))
		r.Post("/threads/{thread_id}/unarchive", s.handleArchiveThread(false))
		r.Patch("/messages/{message_id}", s.handleEditMessage)
		r.Delete("/messages/{message_id}", s.handleDeleteMessage)
		r.Get("/unread-count", s.handleMessagingUnreadCount)
		r.Get("/search", s.handleSearchMessages)
	})
}

func messagingActor(r *http.Request) messagingports.Actor {
	p := principal(r)
	return messagingports.Actor{UserID: p.UserID, IsAdmin: p.IsAdmin()}
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req messaginghttp.CreateThreadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Messaging.Handler.CreateThreadHandler(r.Context(), messagingActor(r), idempotencyKey(r), req)
	if err != nil {
		s.writeDomainError(w, r, err, messagingErrorStatus)
		return
	}
	writeJSON(w, createdStatus(resp.Replayed), resp)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	resp, err := s.modules.Messaging.Handler.ListThreadsHandler(r.Context(), messagingActor(r), messaginghttp.ListThreadsRequest{
		IncludeArchived: queryBool(r, "include_archived"),
		Cursor:          r.URL.Query().Get("cursor"),
		Limit:           limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err, messagingErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Messaging.Handler.GetThreadHandler(r.Context(), messagingActor(r), chi.URLParam(r, "thread_id"))
	if err != nil {
		s.writeDomainError(w, r, err, messagingErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messaginghttp.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Messaging.Handler.SendMessageHandler(r.Context(), messagingActor(r), idempotencyKey(r), chi.URLParam(r, "thread_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err, messagingErrorStatus)
		return
	}
	writeJSON(w, createdStatus(resp.Replayed), resp)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	resp, err := s.modules.Messaging.Handler.ListMessagesHandler(r.Context(), messagingActor(r), chi.URLParam(r, "thread_id"), messaginghttp.ListMessagesRequest{
		Before: r.URL.Query().Get("before"),
		Limit:  limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err, messagingErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	var req messaginghttp.EditMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Messaging.Handler.EditMessageHandler(r.Context(), messagingActor(r), chi.URLParam(r, "message_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err, messagingErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.modules.Messaging.Handler.DeleteMessageHandler(r.Context(), messagingActor(r), chi.URLParam(r, "message_id")); err != nil {
		s.writeDomainError(w, r, err, messagingErrorStatus)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkThreadRead(w http.ResponseWriter, r *http.Request) {
	if err := s.modules.Messaging.Handler.MarkThreadReadHandler(r.Context(), messagingActor(r), chi.URLParam(r, "thread_id")); err != nil {
		s.writeDomainError(w, r, err, messagingErrorStatus)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchiveThread(archived bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.modules.Messaging.Handler.ArchiveThreadHandler(r.Context(), messagingActor(r), chi.URLParam(r, "thread_id"), archived); err != nil {
			s.writeDomainError(w, r, err, messagingErrorStatus)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleMessagingUnreadCount(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Messaging.Handler.UnreadCountHandler(r.Context(), messagingActor(r))
	if err != nil {
		s.writeDomainError(w, r, err, messagingErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchMessages(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	resp, err := s.modules.Messaging.Handler.SearchMessagesHandler(r.Context(), messagingActor(r), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.writeDomainError(w, r, err, messagingErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func messagingErrorStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, messagingerrors.ErrInvalidThreadInput):
		return http.StatusBadRequest, "invalid_thread_input", true
	case errors.Is(err, messagingerrors.ErrInvalidMessageInput):
		return http.StatusBadRequest, "invalid_message_input", true
	case errors.Is(err, messagingerrors.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest, "idempotency_key_required", true
	case errors.Is(err, messagingerrors.ErrThreadNotFound):
		return http.StatusNotFound, "thread_not_found", true
	case errors.Is(err, messagingerrors.ErrMessageNotFound):
		return http.StatusNotFound, "message_not_found", true
	case errors.Is(err, messagingerrors.ErrForbidden):
		return http.StatusForbidden, "forbidden", true
	case errors.Is(err, messagingerrors.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", true
	case errors.Is(err, messagingerrors.ErrEditWindowClosed):
		return http.StatusConflict, "edit_window_closed", true
	case errors.Is(err, messagingerrors.ErrMessageDeleted):
		return http.StatusGone, "message_deleted", true
	case errors.Is(err, messagingerrors.ErrIdempotencyKeyConflict):
		return http.StatusConflict, "idempotency_conflict", true
	default:
		return 0, "", false
	}
}
