package application

import (
	"context"
	"encoding/json"

	"ygbackend/contexts/finance-core/royalty-service/domain/entities"
	"ygbackend/contexts/finance-core/royalty-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const sourceService = "royalty-service"

func (s Service) appendStatementIssued(ctx context.Context, statement entities.Statement) error {
	if s.Outbox == nil {
		return nil
	}
	payload, err := json.Marshal(contractsv1.RoyaltyStatementIssuedData{
		StatementID:     statement.StatementID,
		RunID:           statement.RunID,
		CreatorID:       statement.CreatorID,
		NetPayableCents: statement.NetPayableCents,
		Currency:        statement.Currency,
		PeriodStart:     statement.PeriodStart.UTC(),
		PeriodEnd:       statement.PeriodEnd.UTC(),
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
		EventType:        contractsv1.EventRoyaltyStatementIssued,
		OccurredAt:       s.now(),
		SourceService:    sourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "creator_id",
		PartitionKey:     statement.CreatorID,
		Data:             payload,
	})
}
