package ports

import (
	"context"
	"time"

	"ygbackend/contexts/communications/messaging-service/domain/entities"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type Actor struct {
	UserID  string
	IsAdmin bool
}

type ThreadFilter struct {
	UserID          string
	IncludeArchived bool
	Offset          int
	Limit           int
}

type MessageFilter struct {
	ThreadID string
	// Messages strictly older than (BeforeAt, BeforeID) in newest-first order.
	BeforeAt time.Time
	BeforeID string
	Limit    int
}

type SearchFilter struct {
	UserID string
	Query  string
	Limit  int
}

type Repository interface {
	CreateThread(ctx context.Context, thread entities.Thread) error
	GetThread(ctx context.Context, threadID string) (entities.Thread, error)
	TouchThread(ctx context.Context, threadID string, lastMessageAt time.Time) error
	ListThreads(ctx context.Context, filter ThreadFilter) ([]entities.Thread, error)

	CreateMessage(ctx context.Context, message entities.Message) error
	GetMessage(ctx context.Context, messageID string) (entities.Message, error)
	UpdateMessage(ctx context.Context, message entities.Message) error
	ListMessages(ctx context.Context, filter MessageFilter) ([]entities.Message, error)
	SearchMessages(ctx context.Context, filter SearchFilter) ([]entities.Message, error)

	GetThreadState(ctx context.Context, userID string, threadID string) (entities.ThreadState, bool, error)
	PutThreadState(ctx context.Context, state entities.ThreadState) error
	// CountUnread counts live messages from other senders after the user's
	// last read mark. An empty threadID counts across all non-archived threads.
	CountUnread(ctx context.Context, userID string, threadID string) (int, error)
}

// RateLimiter admits at most N sends per key per window.
type RateLimiter interface {
	Allow(key string) bool
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
