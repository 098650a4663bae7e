package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	contractsv1 "ygbackend/contracts/gen/events/v1"
	"ygbackend/internal/platform/retry"
)

const (
	platformModule       = "internal/platform/messaging"
	subscriberBuffer     = 128
	defaultMaxDeliveries = 5
)

// ErrSubscriberStopped is returned by Publish when a consumer group on the
// topic has shut down; the caller keeps the event for a later attempt.
var ErrSubscriberStopped = errors.New("messaging: subscriber stopped")

// Kafka is the event bus adapter used by outbox relays and consumers.
// The implementation is in-process publish/subscribe; topic and consumer
// group semantics mirror the broker so adapters can be swapped later.
//
// Delivery is at least once: Publish waits for room in every consumer
// group's buffer, and a handler error redelivers the event on the
// Redelivery schedule up to MaxDeliveries times.
type Kafka struct {
	// Redelivery spaces handler retries; NewKafka starts at 200ms doubling
	// up to 10s.
	Redelivery retry.Exponential
	// MaxDeliveries bounds attempts per event, the first one included.
	MaxDeliveries int

	mu          sync.RWMutex
	brokers     []string
	subscribers map[string][]subscription
	wg          sync.WaitGroup
	logger      *slog.Logger
}

type subscription struct {
	group string
	ch    chan contractsv1.Envelope
	done  chan struct{}
}

func NewKafka(brokers []string, logger *slog.Logger) (*Kafka, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{
		Redelivery:    retry.Exponential{Initial: 200 * time.Millisecond, Max: 10 * time.Second, Multiplier: 2},
		MaxDeliveries: defaultMaxDeliveries,
		brokers:       append([]string(nil), brokers...),
		subscribers:   make(map[string][]subscription),
		logger:        logger,
	}, nil
}

// Publish hands event to every consumer group subscribed to topic. It blocks
// while a group's buffer is full and fails if ctx ends or a group stopped
// before accepting the event.
func (k *Kafka) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	k.mu.RLock()
	subs := append([]subscription(nil), k.subscribers[topic]...)
	k.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- event:
			continue
		default:
		}
		k.logger.Debug("subscriber buffer full, waiting",
			"event", "kafka_publish_backpressure",
			"module", platformModule,
			"layer", "platform",
			"topic", topic,
			"consumer_group", sub.group,
			"event_id", event.EventID,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.done:
			return fmt.Errorf("%w: topic %s group %s", ErrSubscriberStopped, topic, sub.group)
		case sub.ch <- event:
		}
	}

	k.logger.Debug("event published",
		"event", "kafka_publish",
		"module", platformModule,
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"subscribers", len(subs),
	)
	return nil
}

// Subscribe delivers topic events to handler until ctx is cancelled.
func (k *Kafka) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, contractsv1.Envelope) error,
) error {
	sub := subscription{
		group: consumerGroup,
		ch:    make(chan contractsv1.Envelope, subscriberBuffer),
		done:  make(chan struct{}),
	}

	k.mu.Lock()
	k.subscribers[topic] = append(k.subscribers[topic], sub)
	k.mu.Unlock()

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		defer close(sub.done)
		defer k.removeSubscriber(topic, sub.ch)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-sub.ch:
				if !k.deliver(ctx, topic, consumerGroup, event, handler) {
					return
				}
			}
		}
	}()
	return nil
}

// deliver runs handler until it succeeds or attempts run out. It reports
// false when ctx ended while waiting to retry.
func (k *Kafka) deliver(
	ctx context.Context,
	topic string,
	consumerGroup string,
	event contractsv1.Envelope,
	handler func(context.Context, contractsv1.Envelope) error,
) bool {
	maxDeliveries := k.MaxDeliveries
	if maxDeliveries <= 0 {
		maxDeliveries = defaultMaxDeliveries
	}
	for attempt := 1; ; attempt++ {
		err := handler(ctx, event)
		if err == nil {
			return true
		}
		if attempt >= maxDeliveries {
			k.logger.Error("consumer gave up on event",
				"event", "kafka_consume_dead_lettered",
				"module", platformModule,
				"layer", "platform",
				"topic", topic,
				"consumer_group", consumerGroup,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"attempts", attempt,
				"error", err.Error(),
			)
			return true
		}
		delay := k.Redelivery.Delay(attempt)
		k.logger.Warn("consumer handler failed, redelivering",
			"event", "kafka_consume_failed",
			"module", platformModule,
			"layer", "platform",
			"topic", topic,
			"consumer_group", consumerGroup,
			"event_id", event.EventID,
			"event_type", event.EventType,
			"attempt", attempt,
			"retry_in", delay.String(),
			"error", err.Error(),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// Wait blocks until every subscriber goroutine has observed its context.
func (k *Kafka) Wait() {
	k.wg.Wait()
}

func (k *Kafka) removeSubscriber(topic string, target chan contractsv1.Envelope) {
	k.mu.Lock()
	defer k.mu.Unlock()

	items := k.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]subscription, 0, len(items))
	for _, item := range items {
		if item.ch != target {
			filtered = append(filtered, item)
		}
	}
	k.subscribers[topic] = filtered
}
