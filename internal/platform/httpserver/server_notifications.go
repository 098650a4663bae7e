package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	notificationerrors "ygbackend/contexts/communications/notification-service/domain/errors"
	notificationports "ygbackend/contexts/communications/notification-service/ports"
	notificationhttp "ygbackend/contexts/communications/notification-service/transport/http"
)

func (s *Server) registerNotificationRoutes(r chi.Router) {
	r.Route("/v1/notifications", func(r chi.Router) {
		r.Get("/", s.handleListNotifications)
		r.Get("/unread-count", s.handleNotificationUnreadCount)
		r.Get("/poll", s.handlePollNotifications)
		r.Post("/read-all", s.handleMarkAllNotificationsRead)
		r.Get("/preferences", s.handleGetNotificationPreferences)
		r.Put("/preferences", s.handleUpdateNotificationPreferences)
		r.Post("/{notification_id}/read", s.handleMarkNotificationRead)
		r.Delete("/{notification_id}", s.handleDeleteNotification)
	})
}

func notificationActor(r *http.Request) notificationports.Actor {
	p := principal(r)
	return notificationports.Actor{UserID: p.UserID, IsAdmin: p.IsAdmin()}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	resp, err := s.modules.Notification.Handler.ListNotificationsHandler(r.Context(), notificationActor(r), notificationhttp.ListNotificationsRequest{
		Read:     query.Get("read"),
		Type:     query.Get("type"),
		Priority: query.Get("priority"),
		Cursor:   query.Get("cursor"),
		Limit:    limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err, notificationErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNotificationUnreadCount(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Notification.Handler.UnreadCountHandler(r.Context(), notificationActor(r))
	if err != nil {
		s.writeDomainError(w, r, err, notificationErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePollNotifications(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since", "since must be an RFC3339 timestamp")
			return
		}
		since = parsed
	}
	resp, err := s.modules.Notification.Handler.PollHandler(r.Context(), notificationActor(r), since)
	if err != nil {
		s.writeDomainError(w, r, err, notificationErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.modules.Notification.Handler.MarkReadHandler(r.Context(), notificationActor(r), chi.URLParam(r, "notification_id")); err != nil {
		s.writeDomainError(w, r, err, notificationErrorStatus)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Notification.Handler.MarkAllReadHandler(r.Context(), notificationActor(r))
	if err != nil {
		s.writeDomainError(w, r, err, notificationErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.modules.Notification.Handler.DeleteHandler(r.Context(), notificationActor(r), chi.URLParam(r, "notification_id")); err != nil {
		s.writeDomainError(w, r, err, notificationErrorStatus)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Notification.Handler.GetPreferencesHandler(r.Context(), notificationActor(r))
	if err != nil {
		s.writeDomainError(w, r, err, notificationErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	var req notificationhttp.UpdatePreferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Notification.Handler.UpdatePreferencesHandler(r.Context(), notificationActor(r), req)
	if err != nil {
		s.writeDomainError(w, r, err, notificationErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func notificationErrorStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, notificationerrors.ErrInvalidNotificationInput):
		return http.StatusBadRequest, "invalid_notification_input", true
	case errors.Is(err, notificationerrors.ErrInvalidPreferences):
		return http.StatusBadRequest, "invalid_preferences", true
	case errors.Is(err, notificationerrors.ErrNotificationNotFound):
		return http.StatusNotFound, "notification_not_found", true
	case errors.Is(err, notificationerrors.ErrDeliveryNotFound):
		return http.StatusNotFound, "delivery_not_found", true
	case errors.Is(err, notificationerrors.ErrForbidden):
		return http.StatusForbidden, "forbidden", true
	default:
		return 0, "", false
	}
}
