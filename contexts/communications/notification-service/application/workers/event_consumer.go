package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/communications/notification-service/application"
	"ygbackend/contexts/communications/notification-service/domain/entities"
	"ygbackend/contexts/communications/notification-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const (
	module               = "communications/notification-service"
	defaultConsumerGroup = "notification-service-cg"
	defaultDedupWindow   = 7 * 24 * time.Hour
)

// Topics the consumer turns into user notifications.
var Topics = []string{
	contractsv1.EventLicenseActivated,
	contractsv1.EventLicenseAmended,
	contractsv1.EventLicenseExpiring,
	contractsv1.EventLicenseExpired,
	contractsv1.EventLicenseTerminated,
	contractsv1.EventMessageSent,
	contractsv1.EventPayoutCompleted,
	contractsv1.EventPayoutFailed,
	contractsv1.EventRoyaltyStatementIssued,
	contractsv1.EventQueueCritical,
}

type EventConsumer struct {
	Subscriber    ports.EventSubscriber
	Service       application.Service
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	Money         ports.MoneyFormatter
	AdminUserIDs  []string
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c EventConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("notification event consumer disabled",
			"event", "notification_consumer_disabled",
			"module", module,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultConsumerGroup
	}
	for _, topic := range Topics {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (c EventConsumer) handle(ctx context.Context, event ports.EventEnvelope) error {
	ttl := c.DedupTTL
	if ttl <= 0 {
		ttl = defaultDedupWindow
	}
	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), c.now().Add(ttl))
	if err != nil {
		return err
	}
	if alreadyProcessed {
		return nil
	}

	if err := c.apply(ctx, event); err != nil {
		if releaseErr := c.Dedup.ReleaseEvent(ctx, event.EventID); releaseErr != nil {
			return errors.Join(err, releaseErr)
		}
		return err
	}
	return nil
}

func (c EventConsumer) apply(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)

	inputs, err := c.notificationsFor(event)
	if err != nil {
		logger.Error("notification event could not be mapped",
			"event", "notification_event_decode_failed",
			"module", module,
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return err
	}
	created := 0
	for _, input := range inputs {
		result, err := c.Service.Create(ctx, input)
		if err != nil {
			return err
		}
		if result.Created {
			created++
		}
	}
	logger.Info("notification event projected",
		"event", "notification_event_projected",
		"module", module,
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"created", created,
	)
	return nil
}

func (c EventConsumer) notificationsFor(event ports.EventEnvelope) ([]application.CreateInput, error) {
	switch event.EventType {
	case contractsv1.EventLicenseActivated,
		contractsv1.EventLicenseAmended,
		contractsv1.EventLicenseExpiring,
		contractsv1.EventLicenseExpired,
		contractsv1.EventLicenseTerminated:
		var data contractsv1.LicenseData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", event.EventType, err)
		}
		title, message, priority := licenseCopy(event.EventType, data)
		return fanOut(event.EventID, []string{data.LicensorID, data.LicenseeID}, application.CreateInput{
			Type:      entities.TypeLicense,
			Title:     title,
			Message:   message,
			ActionURL: "/licenses/" + data.LicenseID,
			Priority:  priority,
			Metadata:  map[string]string{"license_id": data.LicenseID, "ip_asset_id": data.IPAssetID},
		}), nil

	case contractsv1.EventMessageSent:
		var data contractsv1.MessageSentData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", event.EventType, err)
		}
		return fanOut(event.EventID, data.RecipientIDs, application.CreateInput{
			Type:      entities.TypeMessage,
			Title:     "New message",
			Message:   nonEmpty(data.Preview, "You have a new message."),
			ActionURL: "/messages/threads/" + data.ThreadID,
			Priority:  entities.PriorityLow,
			Metadata:  map[string]string{"thread_id": data.ThreadID, "message_id": data.MessageID, "sender_id": data.SenderID},
		}), nil

	case contractsv1.EventPayoutCompleted, contractsv1.EventPayoutFailed:
		var data contractsv1.PayoutData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", event.EventType, err)
		}
		amount := c.formatMoney(data.AmountCents, data.Currency)
		input := application.CreateInput{
			Type:      entities.TypePayout,
			Title:     "Payout sent",
			Message:   fmt.Sprintf("Your payout of %s is on its way.", amount),
			ActionURL: "/payouts/" + data.PayoutID,
			Priority:  entities.PriorityMedium,
			Metadata:  map[string]string{"payout_id": data.PayoutID},
		}
		if event.EventType == contractsv1.EventPayoutFailed {
			input.Title = "Payout failed"
			input.Message = fmt.Sprintf("Your payout of %s could not be completed: %s", amount, nonEmpty(data.FailureReason, "unknown error"))
			input.Priority = entities.PriorityUrgent
		}
		return fanOut(event.EventID, []string{data.UserID}, input), nil

	case contractsv1.EventRoyaltyStatementIssued:
		var data contractsv1.RoyaltyStatementIssuedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", event.EventType, err)
		}
		return fanOut(event.EventID, []string{data.CreatorID}, application.CreateInput{
			Type:  entities.TypeRoyalty,
			Title: "Royalty statement ready",
			Message: fmt.Sprintf("Your statement for %s to %s is ready. Net payable: %s.",
				data.PeriodStart.UTC().Format("2006-01-02"),
				data.PeriodEnd.UTC().Format("2006-01-02"),
				c.formatMoney(data.NetPayableCents, data.Currency),
			),
			ActionURL: "/royalties/statements/" + data.StatementID,
			Priority:  entities.PriorityMedium,
			Metadata:  map[string]string{"statement_id": data.StatementID, "run_id": data.RunID},
		}), nil

	case contractsv1.EventQueueCritical:
		var data contractsv1.QueueCriticalData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", event.EventType, err)
		}
		return fanOut(event.EventID, c.AdminUserIDs, application.CreateInput{
			Type:      entities.TypeSystem,
			Title:     fmt.Sprintf("Queue %s is critical", data.Queue),
			Message:   fmt.Sprintf("%d jobs waiting. %s", data.Waiting, strings.Join(data.Issues, "; ")),
			ActionURL: "/admin/jobs/queues/" + data.Queue,
			Priority:  entities.PriorityUrgent,
			Metadata:  map[string]string{"queue": data.Queue},
		}), nil
	}
	return nil, nil
}

func licenseCopy(eventType string, data contractsv1.LicenseData) (string, string, entities.Priority) {
	switch eventType {
	case contractsv1.EventLicenseActivated:
		return "License activated", fmt.Sprintf("License %s is now active.", data.LicenseID), entities.PriorityMedium
	case contractsv1.EventLicenseAmended:
		return "License amended", fmt.Sprintf("License %s was amended (version %d).", data.LicenseID, data.Version), entities.PriorityMedium
	case contractsv1.EventLicenseExpiring:
		return "License expiring soon", fmt.Sprintf("License %s ends on %s.", data.LicenseID, data.EndDate.UTC().Format("2006-01-02")), entities.PriorityHigh
	case contractsv1.EventLicenseExpired:
		return "License expired", fmt.Sprintf("License %s has expired.", data.LicenseID), entities.PriorityMedium
	default:
		message := fmt.Sprintf("License %s was terminated.", data.LicenseID)
		if data.Reason != "" {
			message = fmt.Sprintf("License %s was terminated: %s", data.LicenseID, data.Reason)
		}
		return "License terminated", message, entities.PriorityHigh
	}
}

// fanOut copies template for each distinct recipient, keyed by event id so
// redelivered events do not notify twice.
func fanOut(eventID string, userIDs []string, template application.CreateInput) []application.CreateInput {
	seen := map[string]struct{}{}
	out := make([]application.CreateInput, 0, len(userIDs))
	for _, userID := range userIDs {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		input := template
		input.UserID = userID
		input.DedupeKey = eventID
		out = append(out, input)
	}
	return out
}

func (c EventConsumer) formatMoney(amountCents int64, currency string) string {
	if c.Money != nil {
		return c.Money.Format(amountCents, currency)
	}
	sign := ""
	if amountCents < 0 {
		sign = "-"
		amountCents = -amountCents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amountCents/100, amountCents%100, strings.ToUpper(currency))
}

func (c EventConsumer) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now().UTC()
}

func nonEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
