package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	contractsv1 "ygbackend/contracts/gen/events/v1"
)

// Relay publishes pending outbox rows on a topic named after the event type.
type Relay struct {
	Store       Store
	Publisher   Publisher
	Clock       Clock
	BatchSize   int
	MaxAttempts int
	Logger      *slog.Logger
}

// RunOnce relays one batch and reports how many rows were published.
func (r Relay) RunOnce(ctx context.Context) (int, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Store.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list pending failed",
			"event", "outbox_list_failed",
			"module", "internal/shared/outbox",
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}

	sent := 0
	for _, message := range pending {
		var envelope contractsv1.Envelope
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			logger.Error("outbox payload decode failed",
				"event", "outbox_decode_failed",
				"module", "internal/shared/outbox",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			if markErr := r.Store.MarkOutboxFailed(ctx, message.OutboxID, err.Error(), 1); markErr != nil {
				return sent, markErr
			}
			continue
		}

		if err := r.Publisher.Publish(ctx, envelope.EventType, envelope); err != nil {
			logger.Error("outbox publish failed",
				"event", "outbox_publish_failed",
				"module", "internal/shared/outbox",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"event_type", envelope.EventType,
				"error", err.Error(),
			)
			if markErr := r.Store.MarkOutboxFailed(ctx, message.OutboxID, err.Error(), r.MaxAttempts); markErr != nil {
				return sent, markErr
			}
			return sent, err
		}
		if err := r.Store.MarkOutboxSent(ctx, message.OutboxID, r.now()); err != nil {
			logger.Error("outbox mark sent failed",
				"event", "outbox_mark_sent_failed",
				"module", "internal/shared/outbox",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return sent, err
		}
		sent++
	}

	if sent > 0 {
		logger.Info("outbox relay cycle completed",
			"event", "outbox_relay_completed",
			"module", "internal/shared/outbox",
			"layer", "worker",
			"sent_count", sent,
		)
	}
	return sent, nil
}

func (r Relay) now() time.Time {
	if r.Clock != nil {
		return r.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
