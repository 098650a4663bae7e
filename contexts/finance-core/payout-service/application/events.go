package application

import (
	"context"
	"encoding/json"

	"ygbackend/contexts/finance-core/payout-service/domain/entities"
	"ygbackend/contexts/finance-core/payout-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const (
	sourceService   = "payout-service"
	payoutCompleted = contractsv1.EventPayoutCompleted
	payoutFailed    = contractsv1.EventPayoutFailed
)

func (s Service) appendPayoutEvent(ctx context.Context, eventType string, payout entities.Payout) error {
	if s.Outbox == nil {
		return nil
	}
	payload, err := json.Marshal(contractsv1.PayoutData{
		PayoutID:      payout.PayoutID,
		UserID:        payout.UserID,
		AmountCents:   payout.AmountCents,
		Currency:      payout.Currency,
		StatementIDs:  append([]string(nil), payout.StatementIDs...),
		TransferID:    payout.StripeTransferID,
		FailureReason: payout.FailureReason,
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
		OccurredAt:       s.now(),
		SourceService:    sourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "user_id",
		PartitionKey:     payout.UserID,
		Data:             payload,
	})
}
