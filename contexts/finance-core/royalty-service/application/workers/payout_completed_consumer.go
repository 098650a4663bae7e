package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/finance-core/royalty-service/application"
	"ygbackend/contexts/finance-core/royalty-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

// PayoutCompletedConsumer marks statements paid once their payout lands.
type PayoutCompletedConsumer struct {
	Subscriber    ports.EventSubscriber
	Service       application.Service
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c PayoutCompletedConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("royalty payout consumer disabled",
			"event", "royalty_payout_consumer_disabled",
			"module", module,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = "royalty-payouts-cg"
	}
	return c.Subscriber.Subscribe(ctx, contractsv1.EventPayoutCompleted, group, c.handle)
}

func (c PayoutCompletedConsumer) handle(ctx context.Context, event ports.EventEnvelope) error {
	return once(ctx, c.Dedup, event, now(c.Clock).Add(ttlOrDefault(c.DedupTTL)), c.apply)
}

func (c PayoutCompletedConsumer) apply(ctx context.Context, event ports.EventEnvelope) error {
	var data contractsv1.PayoutData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	paidAt := event.OccurredAt
	if paidAt.IsZero() {
		paidAt = now(c.Clock)
	}
	updated, err := c.Service.MarkStatementsPaid(ctx, data.PayoutID, data.StatementIDs, paidAt)
	if err != nil {
		return err
	}
	application.ResolveLogger(c.Logger).Info("royalty statements paid",
		"event", "royalty_statements_paid",
		"module", module,
		"layer", "worker",
		"event_id", event.EventID,
		"payout_id", data.PayoutID,
		"updated", updated,
	)
	return nil
}
