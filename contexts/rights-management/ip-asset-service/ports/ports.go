package ports

import (
	"context"
	"time"

	"ygbackend/contexts/rights-management/ip-asset-service/domain/entities"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

// Actor is the authenticated caller as seen by the asset service.
type Actor struct {
	UserID  string
	IsAdmin bool
}

type AssetFilter struct {
	Status    entities.AssetStatus
	Type      entities.AssetType
	CreatorID string
	Search    string
	Offset    int
	Limit     int
}

type Repository interface {
	CreateAsset(ctx context.Context, asset entities.IPAsset) error
	GetAsset(ctx context.Context, assetID string) (entities.IPAsset, error)
	// UpdateAsset persists asset only when the stored version still equals
	// expectedVersion; otherwise it returns ErrVersionConflict.
	UpdateAsset(ctx context.Context, asset entities.IPAsset, expectedVersion int) error
	ListAssets(ctx context.Context, filter AssetFilter) ([]entities.IPAsset, error)
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
