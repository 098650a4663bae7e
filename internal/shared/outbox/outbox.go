// Package outbox holds the transactional outbox shared by every bounded
// context: rows are appended next to state changes and a relay publishes
// pending rows to the message bus.
package outbox

import (
	"context"
	"errors"
	"time"

	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

const defaultMaxAttempts = 5

var (
	ErrInvalidEnvelope = errors.New("outbox envelope requires event id and type")
	ErrPayloadConflict = errors.New("outbox event id already used with different payload")
	ErrNotFound        = errors.New("outbox message not found")
)

type Message struct {
	OutboxID      string
	SourceService string
	EventType     string
	PartitionKey  string
	Payload       []byte
	Status        string
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	SentAt        *time.Time
}

type Store interface {
	AppendOutbox(ctx context.Context, envelope contractsv1.Envelope) error
	ListPendingOutbox(ctx context.Context, limit int) ([]Message, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
	MarkOutboxFailed(ctx context.Context, outboxID string, reason string, maxAttempts int) error
	CountPending(ctx context.Context) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, event contractsv1.Envelope) error
}

type Clock interface {
	Now() time.Time
}

func validEnvelope(envelope contractsv1.Envelope) bool {
	return envelope.EventID != "" && envelope.EventType != ""
}
