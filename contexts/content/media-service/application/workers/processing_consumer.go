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

	"ygbackend/contexts/content/media-service/application"
	"ygbackend/contexts/content/media-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const (
	module                       = "content/media-service"
	defaultProcessingGroup       = "media-service-processing-cg"
	defaultProcessingDedupWindow = 7 * 24 * time.Hour
)

// ProcessingConsumer moves uploaded media through processing. Processors
// return an error to mark the item failed.
type ProcessingConsumer struct {
	Subscriber    ports.EventSubscriber
	Service       application.Service
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	Process       func(ctx context.Context, media contractsv1.MediaData) error
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c ProcessingConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("media processing consumer disabled",
			"event", "media_processing_consumer_disabled",
			"module", module,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultProcessingGroup
	}
	return c.Subscriber.Subscribe(ctx, contractsv1.EventMediaUploaded, group, c.handle)
}

func (c ProcessingConsumer) handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	ttl := c.DedupTTL
	if ttl <= 0 {
		ttl = defaultProcessingDedupWindow
	}
	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), now.Add(ttl))
	if err != nil {
		return err
	}
	if alreadyProcessed {
		logger.Debug("media.uploaded already processed",
			"event", "media_uploaded_replayed",
			"module", module,
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	if err := c.apply(ctx, event); err != nil {
		if releaseErr := c.Dedup.ReleaseEvent(ctx, event.EventID); releaseErr != nil {
			return errors.Join(err, releaseErr)
		}
		return err
	}
	return nil
}

func (c ProcessingConsumer) apply(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload contractsv1.MediaData
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode media.uploaded payload: %w", err)
	}
	if strings.TrimSpace(payload.MediaID) == "" {
		return fmt.Errorf("media.uploaded payload missing media_id")
	}

	if _, err := c.Service.StartProcessing(ctx, payload.MediaID); err != nil {
		logger.Error("media processing could not start",
			"event", "media_processing_start_failed",
			"module", module,
			"layer", "worker",
			"media_id", payload.MediaID,
			"error", err.Error(),
		)
		return err
	}
	if c.Process != nil {
		if procErr := c.Process(ctx, payload); procErr != nil {
			if _, err := c.Service.FailProcessing(ctx, payload.MediaID, procErr.Error()); err != nil {
				return err
			}
			logger.Warn("media processing failed",
				"event", "media_processing_failed",
				"module", module,
				"layer", "worker",
				"media_id", payload.MediaID,
				"error", procErr.Error(),
			)
			return nil
		}
	}
	if _, err := c.Service.CompleteProcessing(ctx, payload.MediaID); err != nil {
		return err
	}
	logger.Info("media.uploaded projected",
		"event", "media_processing_completed",
		"module", module,
		"layer", "worker",
		"event_id", event.EventID,
		"media_id", payload.MediaID,
	)
	return nil
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
