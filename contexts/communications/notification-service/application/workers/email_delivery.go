package workers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/communications/notification-service/application"
	"ygbackend/contexts/communications/notification-service/domain/entities"
	domainerrors "ygbackend/contexts/communications/notification-service/domain/errors"
	"ygbackend/contexts/communications/notification-service/ports"
)

const defaultDeliveryBatch = 50

var errNoEmailAddress = errors.New("user has no email address on file")

// EmailDeliveryWorker sends due email deliveries and reschedules failures
// through Retry until MaxDeliveryAttempts is reached.
type EmailDeliveryWorker struct {
	Repo      ports.Repository
	Sender    ports.EmailSender
	Retry     ports.RetryPolicy
	Clock     ports.Clock
	BaseURL   string
	BatchSize int
	Logger    *slog.Logger
}

type DeliveryStats struct {
	Delivered int
	Retrying  int
	Failed    int
}

func (w EmailDeliveryWorker) RunOnce(ctx context.Context) (DeliveryStats, error) {
	logger := application.ResolveLogger(w.Logger)
	batch := w.BatchSize
	if batch <= 0 {
		batch = defaultDeliveryBatch
	}
	now := w.now()
	due, err := w.Repo.ListDueDeliveries(ctx, now, batch)
	if err != nil {
		return DeliveryStats{}, err
	}
	var stats DeliveryStats
	for _, delivery := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		sendErr := w.deliver(ctx, delivery)
		if sendErr == nil {
			delivery.RecordSuccess(now)
			stats.Delivered++
		} else {
			delay := time.Minute
			if w.Retry != nil {
				delay = w.Retry.Delay(delivery.Attempts + 1)
			}
			delivery.RecordFailure(sendErr.Error(), now, delay)
			if delivery.Status == entities.DeliveryFailed {
				stats.Failed++
				logger.Warn("notification email delivery gave up",
					"event", "notification_email_failed",
					"module", module,
					"layer", "worker",
					"delivery_id", delivery.DeliveryID,
					"attempts", delivery.Attempts,
					"error", sendErr.Error(),
				)
			} else {
				stats.Retrying++
			}
		}
		if err := w.Repo.UpdateDelivery(ctx, delivery); err != nil {
			return stats, err
		}
	}
	if len(due) > 0 {
		logger.Info("notification email batch processed",
			"event", "notification_email_batch",
			"module", module,
			"layer", "worker",
			"delivered", stats.Delivered,
			"retrying", stats.Retrying,
			"failed", stats.Failed,
		)
	}
	return stats, nil
}

// Pending is the number of deliveries due now, reported as queue depth.
func (w EmailDeliveryWorker) Pending(ctx context.Context) (int, error) {
	due, err := w.Repo.ListDueDeliveries(ctx, w.now(), 1000)
	if err != nil {
		return 0, err
	}
	return len(due), nil
}

func (w EmailDeliveryWorker) deliver(ctx context.Context, delivery entities.Delivery) error {
	notification, err := w.Repo.GetNotification(ctx, delivery.NotificationID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotificationNotFound) {
			return errors.New("notification was deleted")
		}
		return err
	}
	prefs, found, err := w.Repo.GetPreferences(ctx, delivery.UserID)
	if err != nil {
		return err
	}
	if !found || strings.TrimSpace(prefs.EmailAddress) == "" {
		return errNoEmailAddress
	}
	body := notification.Message
	if notification.ActionURL != "" {
		body += "\n\n" + strings.TrimRight(w.BaseURL, "/") + notification.ActionURL
	}
	return w.Sender.Send(ctx, ports.EmailMessage{
		To:      prefs.EmailAddress,
		Subject: notification.Title,
		Body:    body,
	})
}

func (w EmailDeliveryWorker) now() time.Time {
	if w.Clock == nil {
		return time.Now().UTC()
	}
	return w.Clock.Now().UTC()
}
