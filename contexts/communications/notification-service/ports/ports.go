package ports

import (
	"context"
	"time"

	"ygbackend/contexts/communications/notification-service/domain/entities"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type Actor struct {
	UserID  string
	IsAdmin bool
}

type ReadFilter string

const (
	ReadAll    ReadFilter = ""
	ReadOnly   ReadFilter = "read"
	UnreadOnly ReadFilter = "unread"
)

type NotificationFilter struct {
	UserID       string
	Read         ReadFilter
	Type         entities.NotificationType
	Priority     entities.Priority
	CreatedAfter time.Time
	Offset       int
	Limit        int
}

type UnreadCounts struct {
	Total  int
	Urgent int
}

type Repository interface {
	// CreateNotification returns the existing row with created=false when the
	// user already has a notification with the same non-empty dedupe key.
	CreateNotification(ctx context.Context, notification entities.Notification) (entities.Notification, bool, error)
	GetNotification(ctx context.Context, notificationID string) (entities.Notification, error)
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]entities.Notification, error)
	CountUnread(ctx context.Context, userID string) (UnreadCounts, error)
	MarkRead(ctx context.Context, notificationID string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)
	DeleteNotification(ctx context.Context, notificationID string) error

	GetPreferences(ctx context.Context, userID string) (entities.Preferences, bool, error)
	PutPreferences(ctx context.Context, preferences entities.Preferences) error

	CreateDelivery(ctx context.Context, delivery entities.Delivery) error
	ListDueDeliveries(ctx context.Context, now time.Time, limit int) ([]entities.Delivery, error)
	UpdateDelivery(ctx context.Context, delivery entities.Delivery) error
}

type EmailMessage struct {
	To      string
	Subject string
	Body    string
}

type EmailSender interface {
	Send(ctx context.Context, message EmailMessage) error
}

// RetryPolicy returns the wait before retry number attempt (1-based).
type RetryPolicy interface {
	Delay(attempt int) time.Duration
}

// MoneyFormatter renders integer cents for humans.
type MoneyFormatter interface {
	Format(amountCents int64, currency string) string
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

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, EventEnvelope) error) error
}

type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
}
