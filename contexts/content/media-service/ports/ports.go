package ports

import (
	"context"
	"time"

	"ygbackend/contexts/content/media-service/domain/entities"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type Actor struct {
	UserID  string
	IsAdmin bool
}

type MediaFilter struct {
	OwnerID string
	Type    entities.MediaType
	Status  entities.MediaStatus
	Tag     string
	Search  string
	Offset  int
	Limit   int
}

type Repository interface {
	CreateMedia(ctx context.Context, item entities.MediaItem) error
	GetMedia(ctx context.Context, mediaID string) (entities.MediaItem, error)
	UpdateMedia(ctx context.Context, item entities.MediaItem) error
	ListMedia(ctx context.Context, filter MediaFilter) ([]entities.MediaItem, error)
	UsageBytes(ctx context.Context, ownerID string) (int64, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]entities.MediaItem, error)
}

// URLSigner produces time limited URLs for the object store.
type URLSigner interface {
	SignURL(method string, storageKey string, expiresAt time.Time) string
	Verify(method string, storageKey string, expiresAt time.Time, signature string, now time.Time) bool
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, EventEnvelope) error) error
}

type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
}
