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

	"ygbackend/contexts/finance-core/payout-service/application"
	"ygbackend/contexts/finance-core/payout-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const (
	module             = "finance-core/payout-service"
	defaultDedupWindow = 7 * 24 * time.Hour
)

// StatementIssuedConsumer credits issued royalty statements to the payout
// ledger.
type StatementIssuedConsumer struct {
	Subscriber    ports.EventSubscriber
	Service       application.Service
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c StatementIssuedConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("payout ledger consumer disabled",
			"event", "payout_ledger_consumer_disabled",
			"module", module,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = "payout-ledger-cg"
	}
	return c.Subscriber.Subscribe(ctx, contractsv1.EventRoyaltyStatementIssued, group, c.handle)
}

func (c StatementIssuedConsumer) handle(ctx context.Context, event ports.EventEnvelope) error {
	return once(ctx, c.Dedup, event, now(c.Clock).Add(ttlOrDefault(c.DedupTTL)), c.apply)
}

func (c StatementIssuedConsumer) apply(ctx context.Context, event ports.EventEnvelope) error {
	var data contractsv1.RoyaltyStatementIssuedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	entry, changed, err := c.Service.CreditStatement(ctx, application.CreditInput{
		StatementID:     data.StatementID,
		CreatorID:       data.CreatorID,
		NetPayableCents: data.NetPayableCents,
		Currency:        data.Currency,
	})
	if err != nil {
		return err
	}
	if changed {
		application.ResolveLogger(c.Logger).Info("payout ledger credited",
			"event", "payout_ledger_credited",
			"module", module,
			"layer", "worker",
			"event_id", event.EventID,
			"statement_id", entry.StatementID,
			"user_id", entry.UserID,
			"amount_cents", entry.AmountCents,
		)
	}
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
