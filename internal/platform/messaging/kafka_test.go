package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	contractsv1 "ygbackend/contracts/gen/events/v1"
	"ygbackend/internal/platform/retry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestKafkaDeliversToEveryConsumerGroup(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	received := make(chan string, 2)
	handler := func(group string) func(context.Context, contractsv1.Envelope) error {
		return func(_ context.Context, event contractsv1.Envelope) error {
			received <- group + ":" + event.EventID
			return nil
		}
	}
	require.NoError(t, bus.Subscribe(ctx, contractsv1.EventLicenseActivated, "royalty-cg", handler("royalty-cg")))
	require.NoError(t, bus.Subscribe(ctx, contractsv1.EventLicenseActivated, "notification-cg", handler("notification-cg")))

	require.NoError(t, bus.Publish(ctx, contractsv1.EventLicenseActivated, contractsv1.Envelope{
		EventID:   "evt-1",
		EventType: contractsv1.EventLicenseActivated,
	}))

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case value := <-received:
			got[value] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery, got %v", got)
		}
	}
	require.True(t, got["royalty-cg:evt-1"])
	require.True(t, got["notification-cg:evt-1"])

	cancel()
	bus.Wait()
}

func fastRetries(bus *Kafka, maxDeliveries int) {
	bus.Redelivery = retry.Exponential{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2}
	bus.MaxDeliveries = maxDeliveries
}

func TestKafkaRedeliversUntilHandlerSucceeds(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	require.NoError(t, err)
	fastRetries(bus, 5)
	ctx, cancel := context.WithCancel(context.Background())

	var attempts atomic.Int32
	done := make(chan struct{})
	require.NoError(t, bus.Subscribe(ctx, "topic", "cg", func(context.Context, contractsv1.Envelope) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}))
	require.NoError(t, bus.Publish(ctx, "topic", contractsv1.Envelope{EventID: "a"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("event was not redelivered, attempts=%d", attempts.Load())
	}
	require.EqualValues(t, 3, attempts.Load())
	cancel()
	bus.Wait()
}

func TestKafkaGivesUpAfterMaxDeliveriesAndMovesOn(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	require.NoError(t, err)
	fastRetries(bus, 2)
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	seen := map[string]int{}
	next := make(chan struct{}, 1)
	require.NoError(t, bus.Subscribe(ctx, "topic", "cg", func(_ context.Context, event contractsv1.Envelope) error {
		mu.Lock()
		seen[event.EventID]++
		mu.Unlock()
		if event.EventID == "poison" {
			return errors.New("boom")
		}
		next <- struct{}{}
		return nil
	}))
	require.NoError(t, bus.Publish(ctx, "topic", contractsv1.Envelope{EventID: "poison"}))
	require.NoError(t, bus.Publish(ctx, "topic", contractsv1.Envelope{EventID: "ok"}))

	select {
	case <-next:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer stalled behind a failing event")
	}
	mu.Lock()
	require.Equal(t, 2, seen["poison"])
	require.Equal(t, 1, seen["ok"])
	mu.Unlock()
	cancel()
	bus.Wait()
}

func TestKafkaPublishWaitsForSlowSubscriber(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	const total = subscriberBuffer + 72
	var handled atomic.Int32
	require.NoError(t, bus.Subscribe(ctx, "topic", "cg", func(context.Context, contractsv1.Envelope) error {
		time.Sleep(100 * time.Microsecond)
		handled.Add(1)
		return nil
	}))
	for i := 0; i < total; i++ {
		require.NoError(t, bus.Publish(ctx, "topic", contractsv1.Envelope{EventID: fmt.Sprintf("evt-%d", i)}))
	}
	require.Eventually(t, func() bool { return handled.Load() == total }, 5*time.Second, 5*time.Millisecond)

	cancel()
	bus.Wait()
}

func TestKafkaPublishFailsWhenContextEnds(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	require.NoError(t, err)
	subCtx, stopSub := context.WithCancel(context.Background())

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	require.NoError(t, bus.Subscribe(subCtx, "topic", "cg", func(context.Context, contractsv1.Envelope) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}))
	require.NoError(t, bus.Publish(context.Background(), "topic", contractsv1.Envelope{EventID: "held"}))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never started")
	}
	for i := 0; i < subscriberBuffer; i++ {
		require.NoError(t, bus.Publish(context.Background(), "topic", contractsv1.Envelope{EventID: fmt.Sprintf("evt-%d", i)}))
	}

	pubCtx, cancelPub := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelPub()
	err = bus.Publish(pubCtx, "topic", contractsv1.Envelope{EventID: "overflow"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	stopSub()
	close(release)
	bus.Wait()
}

func TestKafkaPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus, err := NewKafka([]string{"localhost:9092"}, nil)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), "nobody", contractsv1.Envelope{EventID: "x"}))
}
