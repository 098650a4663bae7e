package ports

import (
	"context"
	"time"

	"ygbackend/contexts/finance-core/royalty-service/domain/entities"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type Actor struct {
	UserID  string
	IsAdmin bool
}

type RunFilter struct {
	Status entities.RunStatus
	Offset int
	Limit  int
}

type StatementFilter struct {
	CreatorID  string
	RunID      string
	Status     entities.StatementStatus
	IssuedOnly bool
	Offset     int
	// Limit <= 0 returns every match.
	Limit int
}

type Repository interface {
	CreateRevenue(ctx context.Context, entry entities.RevenueEntry) error
	GetRevenue(ctx context.Context, entryID string) (entities.RevenueEntry, bool, error)
	ListRevenue(ctx context.Context, start time.Time, end time.Time) ([]entities.RevenueEntry, error)

	CreateRun(ctx context.Context, run entities.RoyaltyRun) error
	GetRun(ctx context.Context, runID string) (entities.RoyaltyRun, error)
	// GetRunForUpdate locks the run row for the surrounding transaction.
	GetRunForUpdate(ctx context.Context, runID string) (entities.RoyaltyRun, error)
	UpdateRun(ctx context.Context, run entities.RoyaltyRun) error
	ListRuns(ctx context.Context, filter RunFilter) ([]entities.RoyaltyRun, error)
	HasOverlappingLockedRun(ctx context.Context, start time.Time, end time.Time, excludeRunID string) (bool, error)

	ReplaceStatements(ctx context.Context, runID string, statements []entities.Statement) error
	GetStatement(ctx context.Context, statementID string) (entities.Statement, error)
	UpdateStatement(ctx context.Context, statement entities.Statement) error
	ListStatements(ctx context.Context, filter StatementFilter) ([]entities.Statement, error)

	GetLicenseTerms(ctx context.Context, licenseID string) (entities.LicenseTerms, bool, error)
	PutLicenseTerms(ctx context.Context, terms entities.LicenseTerms) error
	GetOwnership(ctx context.Context, ipAssetID string) (entities.Ownership, bool, error)
	PutOwnership(ctx context.Context, ownership entities.Ownership) error
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
