package ports

import (
	"context"
	"time"

	"ygbackend/contexts/rights-management/license-service/domain/entities"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type Actor struct {
	UserID  string
	IsAdmin bool
}

type LicenseFilter struct {
	Status     entities.LicenseStatus
	IPAssetID  string
	LicenseeID string
	LicensorID string
	// PartyID limits results to licenses where the user is either side.
	PartyID      string
	EndingAfter  *time.Time
	EndingBefore *time.Time
	Offset       int
	Limit        int
}

type LicenseRepository interface {
	CreateLicense(ctx context.Context, license entities.License) error
	GetLicense(ctx context.Context, licenseID string) (entities.License, error)
	// GetLicenseForUpdate locks the row for the surrounding transaction.
	GetLicenseForUpdate(ctx context.Context, licenseID string) (entities.License, error)
	UpdateLicense(ctx context.Context, license entities.License) error
	ListLicenses(ctx context.Context, filter LicenseFilter) ([]entities.License, error)
	ListBlockingLicenses(ctx context.Context, ipAssetID string) ([]entities.License, error)
	ListEndedActive(ctx context.Context, now time.Time, limit int) ([]entities.License, error)
	ListExpiringUnnoticed(ctx context.Context, now time.Time, until time.Time, limit int) ([]entities.License, error)
}

type AmendmentRepository interface {
	CreateAmendment(ctx context.Context, amendment entities.Amendment) error
	GetAmendmentForUpdate(ctx context.Context, amendmentID string) (entities.Amendment, error)
	UpdateAmendment(ctx context.Context, amendment entities.Amendment) error
	ListAmendments(ctx context.Context, licenseID string) ([]entities.Amendment, error)
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
