package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReplayAndConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, Record{Key: "idem-1", RequestHash: "a", Payload: []byte(`{}`), ExpiresAt: now.Add(time.Hour)}))
	record, found, err := store.Lookup(ctx, "idem-1", now)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "a", record.RequestHash)

	require.NoError(t, store.Save(ctx, Record{Key: "idem-1", RequestHash: "a", ExpiresAt: now.Add(time.Hour)}))
	require.ErrorIs(t, store.Save(ctx, Record{Key: "idem-1", RequestHash: "b", ExpiresAt: now.Add(time.Hour)}), ErrConflict)
}

func TestMemoryStoreExpiresRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, Record{Key: "idem-2", RequestHash: "a", ExpiresAt: now.Add(time.Minute)}))
	_, found, err := store.Lookup(ctx, "idem-2", now.Add(2*time.Minute))
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryStoreRejectsBlankKey(t *testing.T) {
	require.ErrorIs(t, NewMemoryStore().Save(context.Background(), Record{Key: "  "}), ErrInvalidKey)
}
