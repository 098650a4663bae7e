package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/finance-core/royalty-service/application"
	"ygbackend/contexts/finance-core/royalty-service/domain/entities"
	"ygbackend/contexts/finance-core/royalty-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const (
	module             = "finance-core/royalty-service"
	defaultDedupWindow = 7 * 24 * time.Hour
)

// ProjectionConsumer keeps the license terms and ownership splits used by
// royalty calculation in step with the rights contexts.
type ProjectionConsumer struct {
	Subscriber    ports.EventSubscriber
	Service       application.Service
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

var projectionTopics = []string{
	contractsv1.EventLicenseActivated,
	contractsv1.EventLicenseAmended,
	contractsv1.EventIPAssetOwnershipChanged,
}

func (c ProjectionConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("royalty projection consumer disabled",
			"event", "royalty_projection_consumer_disabled",
			"module", module,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = "royalty-projections-cg"
	}
	for _, topic := range projectionTopics {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (c ProjectionConsumer) handle(ctx context.Context, event ports.EventEnvelope) error {
	return once(ctx, c.Dedup, event, now(c.Clock).Add(ttlOrDefault(c.DedupTTL)), c.apply)
}

func (c ProjectionConsumer) apply(ctx context.Context, event ports.EventEnvelope) error {
	var applied bool
	var err error
	switch event.EventType {
	case contractsv1.EventLicenseActivated, contractsv1.EventLicenseAmended:
		var data contractsv1.LicenseData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s payload: %w", event.EventType, err)
		}
		applied, err = c.Service.ApplyLicenseTerms(ctx, entities.LicenseTerms{
			LicenseID:   data.LicenseID,
			IPAssetID:   data.IPAssetID,
			LicensorID:  data.LicensorID,
			RevShareBps: data.RevShareBps,
			Version:     data.Version,
		})
	case contractsv1.EventIPAssetOwnershipChanged:
		var data contractsv1.IPAssetOwnershipChangedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s payload: %w", event.EventType, err)
		}
		owners := make([]entities.OwnerShare, 0, len(data.Owners))
		for _, owner := range data.Owners {
			owners = append(owners, entities.OwnerShare{CreatorID: owner.CreatorID, ShareBps: owner.ShareBps})
		}
		applied, err = c.Service.ApplyOwnership(ctx, entities.Ownership{
			IPAssetID: data.AssetID,
			Owners:    owners,
			Version:   data.Version,
		})
	default:
		return nil
	}
	if err != nil {
		return err
	}
	application.ResolveLogger(c.Logger).Debug("royalty projection updated",
		"event", "royalty_projection_updated",
		"module", module,
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"applied", applied,
	)
	return nil
}

// once runs apply unless the event was already handled. A failed apply
// releases the reservation so the redelivered event runs again.
func once(
	ctx context.Context,
	dedup ports.EventDedupStore,
	event ports.EventEnvelope,
	expiresAt time.Time,
	apply func(context.Context, ports.EventEnvelope) error,
) error {
	alreadyProcessed, err := reserve(ctx, dedup, event, expiresAt)
	if err != nil || alreadyProcessed {
		return err
	}
	if err := apply(ctx, event); err != nil {
		if dedup != nil {
			if releaseErr := dedup.ReleaseEvent(ctx, event.EventID); releaseErr != nil {
				return errors.Join(err, releaseErr)
			}
		}
		return err
	}
	return nil
}

func reserve(ctx context.Context, dedup ports.EventDedupStore, event ports.EventEnvelope, expiresAt time.Time) (bool, error) {
	if dedup == nil {
		return false, nil
	}
	sum := sha256.Sum256(event.Data)
	return dedup.ReserveEvent(ctx, event.EventID, hex.EncodeToString(sum[:]), expiresAt)
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultDedupWindow
	}
	return ttl
}

func now(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}
