package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type recordingPublisher struct {
	topics []string
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ contractsv1.Envelope) error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func envelope(id string, eventType string, at time.Time) contractsv1.Envelope {
	return contractsv1.Envelope{
		EventID:       id,
		EventType:     eventType,
		OccurredAt:    at,
		SourceService: "license-service",
		SchemaVersion: 1,
		Data:          []byte(`{"license_id":"lic-1"}`),
	}
}

func TestMemoryStoreAppendIsIdempotentPerEventID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendOutbox(ctx, envelope("evt-1", contractsv1.EventLicenseActivated, now)))
	require.NoError(t, store.AppendOutbox(ctx, envelope("evt-1", contractsv1.EventLicenseActivated, now)))

	conflicting := envelope("evt-1", contractsv1.EventLicenseActivated, now)
	conflicting.Data = []byte(`{"license_id":"lic-2"}`)
	require.ErrorIs(t, store.AppendOutbox(ctx, conflicting), ErrPayloadConflict)

	count, err := store.CountPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRelayPublishesByEventTypeInOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendOutbox(ctx, envelope("evt-2", contractsv1.EventLicenseExpired, now.Add(time.Minute))))
	require.NoError(t, store.AppendOutbox(ctx, envelope("evt-1", contractsv1.EventLicenseActivated, now)))

	publisher := &recordingPublisher{}
	sent, err := Relay{Store: store, Publisher: publisher}.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, sent)
	require.Equal(t, []string{contractsv1.EventLicenseActivated, contractsv1.EventLicenseExpired}, publisher.topics)

	count, err := store.CountPending(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestRelayMarksFailedAfterMaxAttempts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.AppendOutbox(ctx, envelope("evt-1", contractsv1.EventLicenseActivated, time.Now())))

	relay := Relay{Store: store, Publisher: &recordingPublisher{fail: true}, MaxAttempts: 2}
	_, err := relay.RunOnce(ctx)
	require.Error(t, err)
	count, _ := store.CountPending(ctx)
	require.Equal(t, 1, count)

	_, err = relay.RunOnce(ctx)
	require.Error(t, err)
	count, _ = store.CountPending(ctx)
	require.Zero(t, count)
}

func TestMemoryDedupDetectsReplayAndConflict(t *testing.T) {
	dedup := NewMemoryDedup("notification-service")
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	seen, err := dedup.ReserveEvent(ctx, "evt-1", "hash-a", expires)
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = dedup.ReserveEvent(ctx, "evt-1", "hash-a", expires)
	require.NoError(t, err)
	require.True(t, seen)

	_, err = dedup.ReserveEvent(ctx, "evt-1", "hash-b", expires)
	require.ErrorIs(t, err, ErrDedupConflict)
}

func TestMemoryDedupReleaseAllowsRedelivery(t *testing.T) {
	dedup := NewMemoryDedup("payout-ledger-cg")
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	seen, err := dedup.ReserveEvent(ctx, "evt-1", "hash-a", expires)
	require.NoError(t, err)
	require.False(t, seen)
	require.NoError(t, dedup.ReleaseEvent(ctx, "evt-1"))

	seen, err = dedup.ReserveEvent(ctx, "evt-1", "hash-a", expires)
	require.NoError(t, err)
	require.False(t, seen, "a released event is processed again")
}
