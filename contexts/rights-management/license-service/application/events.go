package application

import (
	"context"
	"encoding/json"
	"time"

	"ygbackend/contexts/rights-management/license-service/domain/entities"
	"ygbackend/contexts/rights-management/license-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const SourceService = "license-service"

// AppendLicenseEvent writes one license lifecycle event to the outbox. A nil
// outbox disables publishing.
func AppendLicenseEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idGen ports.IDGenerator,
	eventType string,
	license entities.License,
	occurredAt time.Time,
	reason string,
) error {
	if outbox == nil {
		return nil
	}
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(contractsv1.LicenseData{
		LicenseID:   license.LicenseID,
		IPAssetID:   license.IPAssetID,
		LicensorID:  license.LicensorID,
		LicenseeID:  license.LicenseeID,
		Status:      string(license.Status),
		RevShareBps: license.RevShareBps,
		FeeCents:    license.FeeCents,
		Currency:    license.Currency,
		StartDate:   license.StartDate.UTC(),
		EndDate:     license.EndDate.UTC(),
		Version:     license.Version,
		Reason:      reason,
	})
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    SourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "license_id",
		PartitionKey:     license.LicenseID,
		Data:             payload,
	})
}

func WithinTx(ctx context.Context, tx ports.Transactor, fn func(ctx context.Context) error) error {
	if tx == nil {
		return fn(ctx)
	}
	return tx.WithinTx(ctx, fn)
}

func Now(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}
