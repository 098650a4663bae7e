package application

import (
	"context"
	"encoding/json"
	"time"

	"ygbackend/contexts/content/media-service/domain/entities"
	"ygbackend/contexts/content/media-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const sourceService = "media-service"

func (s Service) appendMediaEvent(ctx context.Context, eventType string, item entities.MediaItem, occurredAt time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	payload, err := json.Marshal(contractsv1.MediaData{
		MediaID:       item.MediaID,
		OwnerID:       item.OwnerID,
		Filename:      item.Filename,
		MediaType:     string(item.Type),
		Status:        string(item.Status),
		FailureReason: item.FailureReason,
	})
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
		PartitionKeyPath: "media_id",
		PartitionKey:     item.MediaID,
		Data:             payload,
	})
}
