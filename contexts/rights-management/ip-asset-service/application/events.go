package application

import (
	"context"
	"encoding/json"
	"time"

	"ygbackend/contexts/rights-management/ip-asset-service/domain/entities"
	"ygbackend/contexts/rights-management/ip-asset-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const sourceService = "ip-asset-service"

func (s Service) appendEvent(ctx context.Context, eventType string, assetID string, occurredAt time.Time, data any) error {
	if s.Outbox == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "asset_id",
		PartitionKey:     assetID,
		Data:             payload,
	})
}

func (s Service) appendOwnershipChanged(ctx context.Context, asset entities.IPAsset) error {
	owners := make([]contractsv1.OwnerShare, 0, len(asset.Owners))
	for _, owner := range asset.Owners {
		owners = append(owners, contractsv1.OwnerShare{CreatorID: owner.CreatorID, ShareBps: owner.ShareBps})
	}
	return s.appendEvent(ctx, contractsv1.EventIPAssetOwnershipChanged, asset.AssetID, asset.UpdatedAt, contractsv1.IPAssetOwnershipChangedData{
		AssetID:   asset.AssetID,
		Owners:    owners,
		Version:   asset.Version,
		ChangedAt: asset.UpdatedAt.UTC(),
	})
}

func (s Service) appendPublished(ctx context.Context, asset entities.IPAsset) error {
	return s.appendEvent(ctx, contractsv1.EventIPAssetPublished, asset.AssetID, asset.UpdatedAt, contractsv1.IPAssetPublishedData{
		AssetID:   asset.AssetID,
		CreatedBy: asset.CreatedBy,
		Title:     asset.Title,
	})
}
