package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/rights-management/ip-asset-service/application"
	"ygbackend/contexts/rights-management/ip-asset-service/domain/entities"
	domainerrors "ygbackend/contexts/rights-management/ip-asset-service/domain/errors"
	"ygbackend/contexts/rights-management/ip-asset-service/ports"
	httptransport "ygbackend/contexts/rights-management/ip-asset-service/transport/http"
	"ygbackend/internal/shared/pagination"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreateAssetHandler(
	ctx context.Context,
	actor ports.Actor,
	idempotencyKey string,
	req httptransport.CreateAssetRequest,
) (httptransport.CreateAssetResponse, error) {
	result, err := h.Service.CreateAsset(ctx, application.CreateAssetInput{
		IdempotencyKey: idempotencyKey,
		Actor:          actor,
		Title:          req.Title,
		Description:    req.Description,
		Type:           entities.AssetType(req.Type),
		MediaID:        req.MediaID,
		Tags:           append([]string(nil), req.Tags...),
	})
	if err != nil {
		return httptransport.CreateAssetResponse{}, err
	}
	return httptransport.CreateAssetResponse{
		Status:   "success",
		Data:     toAssetDTO(result.Asset),
		Replayed: result.Replayed,
	}, nil
}

func (h Handler) GetAssetHandler(ctx context.Context, assetID string) (httptransport.AssetResponse, error) {
	asset, err := h.Service.GetAsset(ctx, assetID)
	if err != nil {
		return httptransport.AssetResponse{}, err
	}
	return httptransport.AssetResponse{Status: "success", Data: toAssetDTO(asset)}, nil
}

func (h Handler) ListAssetsHandler(ctx context.Context, req httptransport.ListAssetsRequest) (httptransport.ListAssetsResponse, error) {
	offset := pagination.DecodeCursor(req.Cursor)
	limit := pagination.NormalizeLimit(req.Limit)
	items, hasMore, err := h.Service.ListAssets(ctx, ports.AssetFilter{
		Status:    entities.AssetStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Type:      entities.AssetType(strings.ToLower(strings.TrimSpace(req.Type))),
		CreatorID: req.CreatorID,
		Search:    req.Search,
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		return httptransport.ListAssetsResponse{}, err
	}
	resp := httptransport.ListAssetsResponse{
		Status: "success",
		Data:   make([]httptransport.AssetDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toAssetDTO(item))
	}
	if hasMore {
		resp.NextCursor = pagination.EncodeCursor(offset + len(items))
	}
	return resp, nil
}

func (h Handler) UpdateAssetHandler(
	ctx context.Context,
	actor ports.Actor,
	assetID string,
	req httptransport.UpdateAssetRequest,
) (httptransport.AssetResponse, error) {
	asset, err := h.Service.UpdateAsset(ctx, application.UpdateAssetInput{
		AssetID:     assetID,
		Actor:       actor,
		Title:       req.Title,
		Description: req.Description,
		MediaID:     req.MediaID,
		Tags:        req.Tags,
	})
	if err != nil {
		return httptransport.AssetResponse{}, err
	}
	return httptransport.AssetResponse{Status: "success", Data: toAssetDTO(asset)}, nil
}

func (h Handler) TransitionHandler(
	ctx context.Context,
	actor ports.Actor,
	assetID string,
	req httptransport.TransitionRequest,
) (httptransport.AssetResponse, error) {
	asset, err := h.Service.TransitionStatus(ctx, assetID, actor, entities.AssetStatus(req.Status), req.Reason)
	if err != nil {
		return httptransport.AssetResponse{}, err
	}
	return httptransport.AssetResponse{Status: "success", Data: toAssetDTO(asset)}, nil
}

func (h Handler) SetOwnershipHandler(
	ctx context.Context,
	actor ports.Actor,
	assetID string,
	req httptransport.SetOwnershipRequest,
) (httptransport.AssetResponse, error) {
	owners := make([]entities.Ownership, 0, len(req.Owners))
	for _, item := range req.Owners {
		owner := entities.Ownership{
			CreatorID: item.CreatorID,
			ShareBps:  item.ShareBps,
			Type:      entities.OwnershipType(strings.ToLower(strings.TrimSpace(item.Type))),
		}
		if item.Type == "" {
			owner.Type = entities.OwnershipContributor
		}
		if strings.TrimSpace(item.StartDate) != "" {
			start, err := time.Parse(time.RFC3339, item.StartDate)
			if err != nil {
				return httptransport.AssetResponse{}, domainerrors.ErrInvalidOwnership
			}
			owner.StartDate = start.UTC()
		}
		if strings.TrimSpace(item.EndDate) != "" {
			end, err := time.Parse(time.RFC3339, item.EndDate)
			if err != nil {
				return httptransport.AssetResponse{}, domainerrors.ErrInvalidOwnership
			}
			end = end.UTC()
			owner.EndDate = &end
		}
		owners = append(owners, owner)
	}
	asset, err := h.Service.SetOwnership(ctx, assetID, actor, owners)
	if err != nil {
		return httptransport.AssetResponse{}, err
	}
	return httptransport.AssetResponse{Status: "success", Data: toAssetDTO(asset)}, nil
}

func (h Handler) DeleteAssetHandler(ctx context.Context, actor ports.Actor, assetID string) error {
	return h.Service.DeleteAsset(ctx, assetID, actor)
}

func toAssetDTO(asset entities.IPAsset) httptransport.AssetDTO {
	dto := httptransport.AssetDTO{
		AssetID:     asset.AssetID,
		Title:       asset.Title,
		Description: asset.Description,
		Type:        string(asset.Type),
		Status:      string(asset.Status),
		CreatedBy:   asset.CreatedBy,
		MediaID:     asset.MediaID,
		Tags:        append([]string{}, asset.Tags...),
		Owners:      make([]httptransport.OwnershipDTO, 0, len(asset.Owners)),
		Version:     asset.Version,
		CreatedAt:   asset.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   asset.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for _, owner := range asset.Owners {
		item := httptransport.OwnershipDTO{
			CreatorID: owner.CreatorID,
			ShareBps:  owner.ShareBps,
			Type:      string(owner.Type),
		}
		if !owner.StartDate.IsZero() {
			item.StartDate = owner.StartDate.UTC().Format(time.RFC3339)
		}
		if owner.EndDate != nil {
			item.EndDate = owner.EndDate.UTC().Format(time.RFC3339)
		}
		dto.Owners = append(dto.Owners, item)
	}
	return dto
}
