package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/content/media-service/application"
	"ygbackend/contexts/content/media-service/domain/entities"
	"ygbackend/contexts/content/media-service/ports"
	httptransport "ygbackend/contexts/content/media-service/transport/http"
	"ygbackend/internal/shared/pagination"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) InitiateUploadHandler(
	ctx context.Context,
	actor ports.Actor,
	idempotencyKey string,
	req httptransport.InitiateUploadRequest,
) (httptransport.InitiateUploadResponse, error) {
	ticket, err := h.Service.InitiateUpload(ctx, application.InitiateUploadInput{
		IdempotencyKey: idempotencyKey,
		OwnerID:        actor.UserID,
		Filename:       req.Filename,
		Title:          req.Title,
		MimeType:       req.MimeType,
		SizeBytes:      req.SizeBytes,
		Tags:           append([]string(nil), req.Tags...),
	})
	if err != nil {
		return httptransport.InitiateUploadResponse{}, err
	}
	return httptransport.InitiateUploadResponse{
		Status:    "success",
		Data:      toMediaDTO(ticket.Media),
		UploadURL: ticket.UploadURL,
		ExpiresAt: ticket.ExpiresAt.UTC().Format(time.RFC3339),
		Replayed:  ticket.Replayed,
	}, nil
}

func (h Handler) ConfirmUploadHandler(ctx context.Context, actor ports.Actor, mediaID string, req httptransport.ConfirmUploadRequest) (httptransport.MediaResponse, error) {
	item, err := h.Service.ConfirmUpload(ctx, mediaID, actor, req.Checksum)
	if err != nil {
		return httptransport.MediaResponse{}, err
	}
	return httptransport.MediaResponse{Status: "success", Data: toMediaDTO(item)}, nil
}

func (h Handler) GetMediaHandler(ctx context.Context, actor ports.Actor, mediaID string) (httptransport.MediaResponse, error) {
	item, err := h.Service.GetMedia(ctx, mediaID, actor)
	if err != nil {
		return httptransport.MediaResponse{}, err
	}
	return httptransport.MediaResponse{Status: "success", Data: toMediaDTO(item)}, nil
}

func (h Handler) ListMediaHandler(ctx context.Context, actor ports.Actor, req httptransport.ListMediaRequest) (httptransport.ListMediaResponse, error) {
	offset := pagination.DecodeCursor(req.Cursor)
	items, hasMore, err := h.Service.ListMedia(ctx, actor, ports.MediaFilter{
		OwnerID: req.OwnerID,
		Type:    entities.MediaType(strings.ToLower(strings.TrimSpace(req.Type))),
		Status:  entities.MediaStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Tag:     req.Tag,
		Search:  req.Search,
		Offset:  offset,
		Limit:   pagination.NormalizeLimit(req.Limit),
	})
	if err != nil {
		return httptransport.ListMediaResponse{}, err
	}
	resp := httptransport.ListMediaResponse{Status: "success", Data: make([]httptransport.MediaDTO, 0, len(items))}
	for _, item := range items {
		resp.Data = append(resp.Data, toMediaDTO(item))
	}
	if hasMore {
		resp.NextCursor = pagination.EncodeCursor(offset + len(items))
	}
	return resp, nil
}

func (h Handler) UpdateMetadataHandler(ctx context.Context, actor ports.Actor, mediaID string, req httptransport.UpdateMetadataRequest) (httptransport.MediaResponse, error) {
	item, err := h.Service.UpdateMetadata(ctx, application.MetadataInput{
		MediaID: mediaID,
		Actor:   actor,
		Title:   req.Title,
		AltText: req.AltText,
		Tags:    req.Tags,
	})
	if err != nil {
		return httptransport.MediaResponse{}, err
	}
	return httptransport.MediaResponse{Status: "success", Data: toMediaDTO(item)}, nil
}

func (h Handler) DeleteMediaHandler(ctx context.Context, actor ports.Actor, mediaID string) error {
	return h.Service.DeleteMedia(ctx, mediaID, actor)
}

func (h Handler) BulkDeleteHandler(ctx context.Context, actor ports.Actor, req httptransport.BulkDeleteRequest) (httptransport.BulkDeleteResponse, error) {
	results, err := h.Service.BulkDelete(ctx, req.MediaIDs, actor)
	if err != nil {
		return httptransport.BulkDeleteResponse{}, err
	}
	resp := httptransport.BulkDeleteResponse{Status: "success", Results: make([]httptransport.BulkDeleteItemDTO, 0, len(results))}
	for _, result := range results {
		item := httptransport.BulkDeleteItemDTO{MediaID: result.MediaID, Deleted: result.Deleted}
		if result.Error != nil {
			item.Error = result.Error.Error()
		} else {
			resp.Deleted++
		}
		resp.Results = append(resp.Results, item)
	}
	return resp, nil
}

func (h Handler) DownloadURLHandler(ctx context.Context, actor ports.Actor, mediaID string) (httptransport.DownloadURLResponse, error) {
	link, err := h.Service.DownloadURL(ctx, mediaID, actor)
	if err != nil {
		return httptransport.DownloadURLResponse{}, err
	}
	return httptransport.DownloadURLResponse{
		Status:    "success",
		URL:       link.URL,
		ExpiresAt: link.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func toMediaDTO(item entities.MediaItem) httptransport.MediaDTO {
	return httptransport.MediaDTO{
		MediaID:       item.MediaID,
		OwnerID:       item.OwnerID,
		Filename:      item.Filename,
		Title:         item.Title,
		MimeType:      item.MimeType,
		Type:          string(item.Type),
		SizeBytes:     item.SizeBytes,
		Status:        string(item.Status),
		Checksum:      item.Checksum,
		AltText:       item.AltText,
		Tags:          append([]string{}, item.Tags...),
		FailureReason: item.FailureReason,
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
