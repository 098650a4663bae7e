package application

import (
	"context"
	"encoding/json"

	"ygbackend/contexts/communications/messaging-service/domain/entities"
	"ygbackend/contexts/communications/messaging-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const sourceService = "messaging-service"

func (s Service) appendMessageSent(ctx context.Context, thread entities.Thread, message entities.Message) error {
	if s.Outbox == nil {
		return nil
	}
	payload, err := json.Marshal(contractsv1.MessageSentData{
		ThreadID:     thread.ThreadID,
		MessageID:    message.MessageID,
		SenderID:     message.SenderID,
		RecipientIDs: thread.Recipients(message.SenderID),
		Preview:      entities.Preview(message.Body),
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
		EventType:        contractsv1.EventMessageSent,
		OccurredAt:       message.CreatedAt.UTC(),
		SourceService:    sourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "thread_id",
		PartitionKey:     thread.ThreadID,
		Data:             payload,
	})
}
