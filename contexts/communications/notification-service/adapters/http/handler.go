package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/communications/notification-service/application"
	"ygbackend/contexts/communications/notification-service/domain/entities"
	"ygbackend/contexts/communications/notification-service/ports"
	httptransport "ygbackend/contexts/communications/notification-service/transport/http"
	"ygbackend/internal/shared/pagination"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) ListNotificationsHandler(ctx context.Context, actor ports.Actor, req httptransport.ListNotificationsRequest) (httptransport.ListNotificationsResponse, error) {
	offset := pagination.DecodeCursor(req.Cursor)
	items, hasMore, err := h.Service.List(ctx, actor, ports.NotificationFilter{
		Read:     ports.ReadFilter(strings.ToLower(strings.TrimSpace(req.Read))),
		Type:     entities.NotificationType(strings.ToLower(strings.TrimSpace(req.Type))),
		Priority: entities.Priority(strings.ToLower(strings.TrimSpace(req.Priority))),
		Offset:   offset,
		Limit:    pagination.NormalizeLimit(req.Limit),
	})
	if err != nil {
		return httptransport.ListNotificationsResponse{}, err
	}
	resp := httptransport.ListNotificationsResponse{Status: "success", Data: toNotificationDTOs(items)}
	if hasMore {
		resp.NextCursor = pagination.EncodeCursor(offset + len(items))
	}
	return resp, nil
}

func (h Handler) UnreadCountHandler(ctx context.Context, actor ports.Actor) (httptransport.UnreadCountResponse, error) {
	count, err := h.Service.UnreadCount(ctx, actor)
	if err != nil {
		return httptransport.UnreadCountResponse{}, err
	}
	return httptransport.UnreadCountResponse{Status: "success", UnreadCount: count}, nil
}

func (h Handler) PollHandler(ctx context.Context, actor ports.Actor, since time.Time) (httptransport.PollResponse, error) {
	result, err := h.Service.Poll(ctx, actor, since)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return httptransport.PollResponse{
		Status:           "success",
		Notifications:    toNotificationDTOs(result.Notifications),
		UnreadCount:      result.UnreadCount,
		PollAfterSeconds: result.PollAfterSeconds,
		ServerTime:       result.ServerTime.UTC().Format(time.RFC3339Nano),
	}, nil
}

func (h Handler) MarkReadHandler(ctx context.Context, actor ports.Actor, notificationID string) error {
	return h.Service.MarkRead(ctx, notificationID, actor)
}

func (h Handler) MarkAllReadHandler(ctx context.Context, actor ports.Actor) (httptransport.MarkAllReadResponse, error) {
	updated, err := h.Service.MarkAllRead(ctx, actor)
	if err != nil {
		return httptransport.MarkAllReadResponse{}, err
	}
	return httptransport.MarkAllReadResponse{Status: "success", Updated: updated}, nil
}

func (h Handler) DeleteHandler(ctx context.Context, actor ports.Actor, notificationID string) error {
	return h.Service.Delete(ctx, notificationID, actor)
}

func (h Handler) GetPreferencesHandler(ctx context.Context, actor ports.Actor) (httptransport.PreferencesResponse, error) {
	prefs, err := h.Service.GetPreferences(ctx, actor)
	if err != nil {
		return httptransport.PreferencesResponse{}, err
	}
	return httptransport.PreferencesResponse{Status: "success", Data: toPreferencesDTO(prefs)}, nil
}

func (h Handler) UpdatePreferencesHandler(ctx context.Context, actor ports.Actor, req httptransport.UpdatePreferencesRequest) (httptransport.PreferencesResponse, error) {
	input := application.PreferencesInput{
		EmailEnabled: req.EmailEnabled,
		EmailAddress: req.EmailAddress,
	}
	if len(req.EnabledTypes) > 0 {
		input.EnabledTypes = make(map[entities.NotificationType]bool, len(req.EnabledTypes))
		for typ, enabled := range req.EnabledTypes {
			input.EnabledTypes[entities.NotificationType(strings.ToLower(strings.TrimSpace(typ)))] = enabled
		}
	}
	if req.DigestFrequency != nil {
		frequency := entities.DigestFrequency(strings.ToLower(strings.TrimSpace(*req.DigestFrequency)))
		input.DigestFrequency = &frequency
	}
	prefs, err := h.Service.UpdatePreferences(ctx, actor, input)
	if err != nil {
		return httptransport.PreferencesResponse{}, err
	}
	return httptransport.PreferencesResponse{Status: "success", Data: toPreferencesDTO(prefs)}, nil
}

func toNotificationDTOs(items []entities.Notification) []httptransport.NotificationDTO {
	out := make([]httptransport.NotificationDTO, 0, len(items))
	for _, item := range items {
		dto := httptransport.NotificationDTO{
			NotificationID: item.NotificationID,
			Type:           string(item.Type),
			Title:          item.Title,
			Message:        item.Message,
			ActionURL:      item.ActionURL,
			Priority:       string(item.Priority),
			Metadata:       item.Metadata,
			Read:           item.Read(),
			CreatedAt:      item.CreatedAt.UTC().Format(time.RFC3339),
		}
		if item.ReadAt != nil {
			dto.ReadAt = item.ReadAt.UTC().Format(time.RFC3339)
		}
		out = append(out, dto)
	}
	return out
}

func toPreferencesDTO(prefs entities.Preferences) httptransport.PreferencesDTO {
	enabled := make(map[string]bool, len(entities.AllTypes))
	for _, typ := range entities.AllTypes {
		enabled[string(typ)] = prefs.TypeEnabled(typ)
	}
	return httptransport.PreferencesDTO{
		EnabledTypes:    enabled,
		EmailEnabled:    prefs.EmailEnabled,
		EmailAddress:    prefs.EmailAddress,
		DigestFrequency: string(prefs.DigestFrequency),
	}
}
