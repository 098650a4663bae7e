package ports

import (
	"context"
	"time"

	"ygbackend/contexts/finance-core/payout-service/domain/entities"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type Actor struct {
	UserID  string
	IsAdmin bool
}

// AccountSnapshot is the gateway's view of a connected account.
type AccountSnapshot struct {
	StripeAccountID  string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	RequirementsDue  []string
	DisabledReason   string
	Country          string
	Email            string
}

type CreateAccountRequest struct {
	UserID  string
	Email   string
	Country string
}

type OnboardingLink struct {
	URL       string
	ExpiresAt time.Time
}

type TransferRequest struct {
	PayoutID             string
	DestinationAccountID string
	AmountCents          int64
	Currency             string
	Description          string
}

type TransferResult struct {
	TransferID string
}

const (
	WebhookAccountUpdated   = "account.updated"
	WebhookTransferReversed = "transfer.reversed"
)

// WebhookEvent is a verified gateway callback. Account is set for account
// events; the transfer fields are set for transfer events.
type WebhookEvent struct {
	EventID    string
	Type       string
	Account    *AccountSnapshot
	TransferID string
	PayoutID   string
}

type StripeGateway interface {
	CreateExpressAccount(ctx context.Context, req CreateAccountRequest) (AccountSnapshot, error)
	CreateOnboardingLink(ctx context.Context, stripeAccountID string) (OnboardingLink, error)
	GetAccount(ctx context.Context, stripeAccountID string) (AccountSnapshot, error)
	// CreateTransfer must be idempotent per PayoutID.
	CreateTransfer(ctx context.Context, req TransferRequest) (TransferResult, error)
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}

type RetryPolicy interface {
	Delay(attempt int) time.Duration
}

type LedgerFilter struct {
	UserID   string
	Status   entities.LedgerStatus
	PayoutID string
}

type PayoutFilter struct {
	UserID string
	Status entities.PayoutStatus
	Offset int
	Limit  int
}

type Repository interface {
	GetAccountByUser(ctx context.Context, userID string) (entities.ConnectedAccount, bool, error)
	GetAccountByStripeID(ctx context.Context, stripeAccountID string) (entities.ConnectedAccount, bool, error)
	SaveAccount(ctx context.Context, account entities.ConnectedAccount) error

	GetLedgerEntryByStatement(ctx context.Context, statementID string) (entities.LedgerEntry, bool, error)
	SaveLedgerEntry(ctx context.Context, entry entities.LedgerEntry) error
	// ListLedgerEntries locks the returned rows for the surrounding transaction.
	ListLedgerEntries(ctx context.Context, filter LedgerFilter) ([]entities.LedgerEntry, error)

	CreatePayout(ctx context.Context, payout entities.Payout) error
	GetPayout(ctx context.Context, payoutID string) (entities.Payout, error)
	GetPayoutForUpdate(ctx context.Context, payoutID string) (entities.Payout, error)
	GetPayoutByTransferID(ctx context.Context, transferID string) (entities.Payout, bool, error)
	UpdatePayout(ctx context.Context, payout entities.Payout) error
	ListPayouts(ctx context.Context, filter PayoutFilter) ([]entities.Payout, error)
	// ListDuePayouts returns ids of pending payouts and stale processing
	// payouts whose NextAttemptAt is not after now, oldest first.
	ListDuePayouts(ctx context.Context, now time.Time, limit int) ([]string, error)

	WebhookProcessed(ctx context.Context, eventID string) (bool, error)
	RecordWebhook(ctx context.Context, eventID string, eventType string, receivedAt time.Time) error
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
