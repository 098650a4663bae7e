package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"ygbackend/contexts/communications/messaging-service/application"
	"ygbackend/contexts/communications/messaging-service/domain/entities"
	"ygbackend/contexts/communications/messaging-service/ports"
	httptransport "ygbackend/contexts/communications/messaging-service/transport/http"
	"ygbackend/internal/shared/pagination"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreateThreadHandler(
	ctx context.Context,
	actor ports.Actor,
	idempotencyKey string,
	req httptransport.CreateThreadRequest,
) (httptransport.CreateThreadResponse, error) {
	result, err := h.Service.CreateThread(ctx, application.CreateThreadInput{
		IdempotencyKey: idempotencyKey,
		Actor:          actor,
		Subject:        req.Subject,
		ParticipantIDs: append([]string(nil), req.ParticipantIDs...),
		FirstMessage:   req.Message,
		AttachmentIDs:  append([]string(nil), req.AttachmentIDs...),
	})
	if err != nil {
		return httptransport.CreateThreadResponse{}, err
	}
	resp := httptransport.CreateThreadResponse{
		Status:   "success",
		Data:     toThreadDTO(application.ThreadSummary{Thread: result.Thread}),
		Replayed: result.Replayed,
	}
	if result.FirstMessage != nil {
		message := toMessageDTO(*result.FirstMessage)
		resp.Message = &message
	}
	return resp, nil
}

func (h Handler) GetThreadHandler(ctx context.Context, actor ports.Actor, threadID string) (httptransport.ThreadResponse, error) {
	summary, err := h.Service.GetThread(ctx, threadID, actor)
	if err != nil {
		return httptransport.ThreadResponse{}, err
	}
	return httptransport.ThreadResponse{Status: "success", Data: toThreadDTO(summary)}, nil
}

func (h Handler) ListThreadsHandler(ctx context.Context, actor ports.Actor, req httptransport.ListThreadsRequest) (httptransport.ListThreadsResponse, error) {
	offset := pagination.DecodeCursor(req.Cursor)
	items, hasMore, err := h.Service.ListThreads(ctx, actor, req.IncludeArchived, offset, pagination.NormalizeLimit(req.Limit))
	if err != nil {
		return httptransport.ListThreadsResponse{}, err
	}
	resp := httptransport.ListThreadsResponse{Status: "success", Data: make([]httptransport.ThreadDTO, 0, len(items))}
	for _, item := range items {
		resp.Data = append(resp.Data, toThreadDTO(item))
	}
	if hasMore {
		resp.NextCursor = pagination.EncodeCursor(offset + len(items))
	}
	return resp, nil
}

func (h Handler) SendMessageHandler(
	ctx context.Context,
	actor ports.Actor,
	idempotencyKey string,
	threadID string,
	req httptransport.SendMessageRequest,
) (httptransport.MessageResponse, error) {
	result, err := h.Service.SendMessage(ctx, application.SendMessageInput{
		IdempotencyKey: idempotencyKey,
		Actor:          actor,
		ThreadID:       threadID,
		Body:           req.Body,
		AttachmentIDs:  append([]string(nil), req.AttachmentIDs...),
	})
	if err != nil {
		return httptransport.MessageResponse{}, err
	}
	return httptransport.MessageResponse{Status: "success", Data: toMessageDTO(result.Message), Replayed: result.Replayed}, nil
}

// ListMessagesHandler uses the oldest message id of a page as the next cursor.
func (h Handler) ListMessagesHandler(ctx context.Context, actor ports.Actor, threadID string, req httptransport.ListMessagesRequest) (httptransport.ListMessagesResponse, error) {
	messages, hasMore, err := h.Service.ListMessages(ctx, threadID, actor, req.Before, pagination.NormalizeLimit(req.Limit))
	if err != nil {
		return httptransport.ListMessagesResponse{}, err
	}
	resp := httptransport.ListMessagesResponse{Status: "success", Data: make([]httptransport.MessageDTO, 0, len(messages))}
	for _, message := range messages {
		resp.Data = append(resp.Data, toMessageDTO(message))
	}
	if hasMore && len(messages) > 0 {
		resp.NextCursor = messages[len(messages)-1].MessageID
	}
	return resp, nil
}

func (h Handler) EditMessageHandler(ctx context.Context, actor ports.Actor, messageID string, req httptransport.EditMessageRequest) (httptransport.MessageResponse, error) {
	message, err := h.Service.EditMessage(ctx, messageID, actor, req.Body)
	if err != nil {
		return httptransport.MessageResponse{}, err
	}
	return httptransport.MessageResponse{Status: "success", Data: toMessageDTO(message)}, nil
}

func (h Handler) DeleteMessageHandler(ctx context.Context, actor ports.Actor, messageID string) error {
	return h.Service.DeleteMessage(ctx, messageID, actor)
}

func (h Handler) MarkThreadReadHandler(ctx context.Context, actor ports.Actor, threadID string) error {
	return h.Service.MarkThreadRead(ctx, threadID, actor)
}

func (h Handler) ArchiveThreadHandler(ctx context.Context, actor ports.Actor, threadID string, archived bool) error {
	if archived {
		return h.Service.ArchiveThread(ctx, threadID, actor)
	}
	return h.Service.UnarchiveThread(ctx, threadID, actor)
}

func (h Handler) UnreadCountHandler(ctx context.Context, actor ports.Actor) (httptransport.UnreadCountResponse, error) {
	count, err := h.Service.UnreadCount(ctx, actor)
	if err != nil {
		return httptransport.UnreadCountResponse{}, err
	}
	return httptransport.UnreadCountResponse{Status: "success", UnreadCount: count}, nil
}

func (h Handler) SearchMessagesHandler(ctx context.Context, actor ports.Actor, query string, limit int) (httptransport.SearchMessagesResponse, error) {
	messages, err := h.Service.SearchMessages(ctx, actor, query, limit)
	if err != nil {
		return httptransport.SearchMessagesResponse{}, err
	}
	resp := httptransport.SearchMessagesResponse{Status: "success", Data: make([]httptransport.MessageDTO, 0, len(messages))}
	for _, message := range messages {
		resp.Data = append(resp.Data, toMessageDTO(message))
	}
	return resp, nil
}

func toThreadDTO(summary application.ThreadSummary) httptransport.ThreadDTO {
	thread := summary.Thread
	return httptransport.ThreadDTO{
		ThreadID:       thread.ThreadID,
		Subject:        thread.Subject,
		ParticipantIDs: append([]string{}, thread.ParticipantIDs...),
		CreatedBy:      thread.CreatedBy,
		LastMessageAt:  thread.LastMessageAt.UTC().Format(time.RFC3339),
		CreatedAt:      thread.CreatedAt.UTC().Format(time.RFC3339),
		UnreadCount:    summary.UnreadCount,
		Archived:       summary.Archived,
	}
}

func toMessageDTO(message entities.Message) httptransport.MessageDTO {
	dto := httptransport.MessageDTO{
		MessageID:     message.MessageID,
		ThreadID:      message.ThreadID,
		SenderID:      message.SenderID,
		Body:          message.Body,
		AttachmentIDs: append([]string{}, message.AttachmentIDs...),
		CreatedAt:     message.CreatedAt.UTC().Format(time.RFC3339),
		Deleted:       message.Deleted(),
	}
	if message.EditedAt != nil {
		dto.EditedAt = message.EditedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
