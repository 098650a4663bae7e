package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/rights-management/ip-asset-service/domain/entities"
	domainerrors "ygbackend/contexts/rights-management/ip-asset-service/domain/errors"
	"ygbackend/contexts/rights-management/ip-asset-service/ports"
)

const (
	module                = "rights-management/ip-asset-service"
	defaultIdempotencyTTL = 7 * 24 * time.Hour
	defaultPageSize       = 20
	maxPageSize           = 100
)

type Service struct {
	Repo           ports.Repository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Tx             ports.Transactor
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

type CreateAssetInput struct {
	IdempotencyKey string
	Actor          ports.Actor
	Title          string
	Description    string
	Type           entities.AssetType
	MediaID        string
	Tags           []string
}

type CreateAssetResult struct {
	Asset    entities.IPAsset
	Replayed bool
}

type UpdateAssetInput struct {
	AssetID     string
	Actor       ports.Actor
	Title       *string
	Description *string
	MediaID     *string
	Tags        *[]string
}

func (s Service) CreateAsset(ctx context.Context, input CreateAssetInput) (CreateAssetResult, error) {
	creator := strings.TrimSpace(input.Actor.UserID)
	if creator == "" {
		return CreateAssetResult{}, domainerrors.ErrForbidden
	}
	requestHash, err := hashRequest(map[string]any{
		"creator":     creator,
		"title":       strings.TrimSpace(input.Title),
		"description": input.Description,
		"type":        input.Type,
		"media_id":    strings.TrimSpace(input.MediaID),
		"tags":        input.Tags,
	})
	if err != nil {
		return CreateAssetResult{}, err
	}
	var stored entities.IPAsset
	replayed, err := s.replay(ctx, input.IdempotencyKey, requestHash, &stored)
	if err != nil {
		return CreateAssetResult{}, err
	}
	if replayed {
		return CreateAssetResult{Asset: stored, Replayed: true}, nil
	}

	now := s.now()
	assetID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return CreateAssetResult{}, err
	}
	asset := entities.IPAsset{
		AssetID:     assetID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Type:        entities.AssetType(strings.ToLower(strings.TrimSpace(string(input.Type)))),
		Status:      entities.AssetStatusDraft,
		CreatedBy:   creator,
		MediaID:     strings.TrimSpace(input.MediaID),
		Tags:        entities.NormalizeTags(input.Tags),
		Owners:      entities.SoleOwner(creator, now),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !asset.ValidateBasics() {
		return CreateAssetResult{}, domainerrors.ErrInvalidAssetInput
	}

	err = s.withinTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.CreateAsset(ctx, asset); err != nil {
			return err
		}
		return s.appendOwnershipChanged(ctx, asset)
	})
	if err != nil {
		return CreateAssetResult{}, err
	}
	if err := s.remember(ctx, input.IdempotencyKey, requestHash, asset); err != nil {
		return CreateAssetResult{}, err
	}

	ResolveLogger(s.Logger).Info("ip asset created",
		"event", "ip_asset_created",
		"module", module,
		"layer", "application",
		"asset_id", asset.AssetID,
		"created_by", asset.CreatedBy,
		"type", asset.Type,
	)
	return CreateAssetResult{Asset: asset}, nil
}

// GetAsset hides soft-deleted assets.
func (s Service) GetAsset(ctx context.Context, assetID string) (entities.IPAsset, error) {
	asset, err := s.Repo.GetAsset(ctx, strings.TrimSpace(assetID))
	if err != nil {
		return entities.IPAsset{}, err
	}
	if asset.DeletedAt != nil {
		return entities.IPAsset{}, domainerrors.ErrAssetNotFound
	}
	return asset, nil
}

// ListAssets returns one page newest first and whether more rows follow.
func (s Service) ListAssets(ctx context.Context, filter ports.AssetFilter) ([]entities.IPAsset, bool, error) {
	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, false, domainerrors.ErrInvalidAssetInput
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, false, domainerrors.ErrInvalidAssetInput
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.CreatorID = strings.TrimSpace(filter.CreatorID)
	filter.Search = strings.TrimSpace(filter.Search)

	limit := filter.Limit
	filter.Limit = limit + 1
	items, err := s.Repo.ListAssets(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if len(items) > limit {
		return items[:limit], true, nil
	}
	return items, false, nil
}

func (s Service) UpdateAsset(ctx context.Context, input UpdateAssetInput) (entities.IPAsset, error) {
	asset, err := s.GetAsset(ctx, input.AssetID)
	if err != nil {
		return entities.IPAsset{}, err
	}
	if !canManage(asset, input.Actor) {
		return entities.IPAsset{}, domainerrors.ErrForbidden
	}
	if !asset.Editable() {
		return entities.IPAsset{}, domainerrors.ErrAssetNotEditable
	}
	expected := asset.Version
	if input.Title != nil {
		asset.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		asset.Description = strings.TrimSpace(*input.Description)
	}
	if input.MediaID != nil {
		asset.MediaID = strings.TrimSpace(*input.MediaID)
	}
	if input.Tags != nil {
		asset.Tags = entities.NormalizeTags(*input.Tags)
	}
	if !asset.ValidateBasics() {
		return entities.IPAsset{}, domainerrors.ErrInvalidAssetInput
	}
	asset.Version++
	asset.UpdatedAt = s.now()
	if err := s.Repo.UpdateAsset(ctx, asset, expected); err != nil {
		return entities.IPAsset{}, err
	}
	return asset, nil
}

// TransitionStatus moves the asset through the status machine. Publishing
// emits ip_asset.published.
func (s Service) TransitionStatus(ctx context.Context, assetID string, actor ports.Actor, target entities.AssetStatus, reason string) (entities.IPAsset, error) {
	target = entities.AssetStatus(strings.ToLower(strings.TrimSpace(string(target))))
	if !validStatus(target) {
		return entities.IPAsset{}, domainerrors.ErrInvalidStateTransition
	}
	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return entities.IPAsset{}, err
	}
	if entities.RequiresAdmin(target) {
		if !actor.IsAdmin {
			return entities.IPAsset{}, domainerrors.ErrForbidden
		}
	} else if !canManage(asset, actor) {
		return entities.IPAsset{}, domainerrors.ErrForbidden
	}
	if !entities.CanTransition(asset.Status, target) {
		return entities.IPAsset{}, domainerrors.ErrInvalidStateTransition
	}

	from := asset.Status
	expected := asset.Version
	asset.Status = target
	asset.Version++
	asset.UpdatedAt = s.now()
	err = s.withinTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.UpdateAsset(ctx, asset, expected); err != nil {
			return err
		}
		if target == entities.AssetStatusPublished {
			return s.appendPublished(ctx, asset)
		}
		return nil
	})
	if err != nil {
		return entities.IPAsset{}, err
	}

	ResolveLogger(s.Logger).Info("ip asset status changed",
		"event", "ip_asset_status_changed",
		"module", module,
		"layer", "application",
		"asset_id", asset.AssetID,
		"from", from,
		"to", target,
		"actor_id", actor.UserID,
		"reason", strings.TrimSpace(reason),
	)
	return asset, nil
}

// SetOwnership replaces the whole owner split.
func (s Service) SetOwnership(ctx context.Context, assetID string, actor ports.Actor, owners []entities.Ownership) (entities.IPAsset, error) {
	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return entities.IPAsset{}, err
	}
	if !canManage(asset, actor) {
		return entities.IPAsset{}, domainerrors.ErrForbidden
	}
	if asset.Status == entities.AssetStatusArchived {
		return entities.IPAsset{}, domainerrors.ErrAssetNotEditable
	}
	now := s.now()
	normalized := make([]entities.Ownership, 0, len(owners))
	for _, owner := range owners {
		owner.CreatorID = strings.TrimSpace(owner.CreatorID)
		if owner.StartDate.IsZero() {
			owner.StartDate = now
		}
		normalized = append(normalized, owner)
	}
	if err := entities.ValidateOwners(normalized); err != nil {
		return entities.IPAsset{}, err
	}

	expected := asset.Version
	asset.Owners = normalized
	asset.Version++
	asset.UpdatedAt = now
	err = s.withinTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.UpdateAsset(ctx, asset, expected); err != nil {
			return err
		}
		return s.appendOwnershipChanged(ctx, asset)
	})
	if err != nil {
		return entities.IPAsset{}, err
	}

	ResolveLogger(s.Logger).Info("ip asset ownership changed",
		"event", "ip_asset_ownership_changed",
		"module", module,
		"layer", "application",
		"asset_id", asset.AssetID,
		"owners", len(asset.Owners),
		"version", asset.Version,
	)
	return asset, nil
}

func (s Service) DeleteAsset(ctx context.Context, assetID string, actor ports.Actor) error {
	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	if !canManage(asset, actor) {
		return domainerrors.ErrForbidden
	}
	if !asset.Deletable() {
		return domainerrors.ErrAssetNotDeletable
	}
	now := s.now()
	expected := asset.Version
	asset.DeletedAt = &now
	asset.Version++
	asset.UpdatedAt = now
	if err := s.Repo.UpdateAsset(ctx, asset, expected); err != nil {
		return err
	}

	ResolveLogger(s.Logger).Info("ip asset deleted",
		"event", "ip_asset_deleted",
		"module", module,
		"layer", "application",
		"asset_id", asset.AssetID,
		"actor_id", actor.UserID,
	)
	return nil
}

func (s Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithinTx(ctx, fn)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func canManage(asset entities.IPAsset, actor ports.Actor) bool {
	if actor.IsAdmin {
		return true
	}
	return strings.TrimSpace(actor.UserID) != "" && strings.TrimSpace(actor.UserID) == asset.CreatedBy
}

func validStatus(status entities.AssetStatus) bool {
	switch status {
	case entities.AssetStatusDraft, entities.AssetStatusReview, entities.AssetStatusApproved,
		entities.AssetStatusRejected, entities.AssetStatusPublished, entities.AssetStatusArchived:
		return true
	}
	return false
}
