package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/communications/notification-service/domain/entities"
	domainerrors "ygbackend/contexts/communications/notification-service/domain/errors"
	"ygbackend/contexts/communications/notification-service/ports"
)

const (
	module          = "communications/notification-service"
	defaultPageSize = 20
	maxPageSize     = 100
	maxPollItems    = 50
)

type Service struct {
	Repo   ports.Repository
	Tx     ports.Transactor
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

type CreateInput struct {
	UserID    string
	Type      entities.NotificationType
	Title     string
	Message   string
	ActionURL string
	Priority  entities.Priority
	DedupeKey string
	Metadata  map[string]string
}

type CreateResult struct {
	Notification entities.Notification
	Created      bool
	// Skipped is set when the user's preferences disable the type.
	Skipped     bool
	EmailQueued bool
}

type PollResult struct {
	Notifications    []entities.Notification
	UnreadCount      int
	PollAfterSeconds int
	ServerTime       time.Time
}

type PreferencesInput struct {
	EnabledTypes    map[entities.NotificationType]bool
	EmailEnabled    *bool
	EmailAddress    *string
	DigestFrequency *entities.DigestFrequency
}

func (s Service) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	if input.Priority == "" {
		input.Priority = entities.PriorityMedium
	}
	notification := entities.Notification{
		UserID:    strings.TrimSpace(input.UserID),
		Type:      input.Type,
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		ActionURL: strings.TrimSpace(input.ActionURL),
		Priority:  input.Priority,
		DedupeKey: strings.TrimSpace(input.DedupeKey),
		Metadata:  copyMetadata(input.Metadata),
	}
	if !notification.Validate() {
		return CreateResult{}, domainerrors.ErrInvalidNotificationInput
	}

	var result CreateResult
	err := s.withinTx(ctx, func(ctx context.Context) error {
		prefs, err := s.preferences(ctx, notification.UserID)
		if err != nil {
			return err
		}
		if !prefs.TypeEnabled(notification.Type) && notification.Priority != entities.PriorityUrgent {
			result.Skipped = true
			return nil
		}
		notificationID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		notification.NotificationID = notificationID
		notification.CreatedAt = s.now()
		stored, created, err := s.Repo.CreateNotification(ctx, notification)
		if err != nil {
			return err
		}
		result.Notification = stored
		result.Created = created
		if !created || !notification.Priority.Immediate() || !prefs.EmailsImmediately() {
			return nil
		}
		deliveryID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		result.EmailQueued = true
		return s.Repo.CreateDelivery(ctx, entities.Delivery{
			DeliveryID:     deliveryID,
			NotificationID: stored.NotificationID,
			UserID:         stored.UserID,
			Channel:        entities.ChannelEmail,
			Status:         entities.DeliveryPending,
			NextAttemptAt:  stored.CreatedAt,
			CreatedAt:      stored.CreatedAt,
		})
	})
	if err != nil {
		return CreateResult{}, err
	}
	if result.Created {
		ResolveLogger(s.Logger).Debug("notification created",
			"event", "notification_created",
			"module", module,
			"layer", "application",
			"notification_id", result.Notification.NotificationID,
			"user_id", result.Notification.UserID,
			"type", result.Notification.Type,
			"email_queued", result.EmailQueued,
		)
	}
	return result, nil
}

func (s Service) List(ctx context.Context, actor ports.Actor, filter ports.NotificationFilter) ([]entities.Notification, bool, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return nil, false, domainerrors.ErrForbidden
	}
	filter.UserID = actor.UserID
	switch filter.Read {
	case ports.ReadAll, ports.ReadOnly, ports.UnreadOnly:
	default:
		return nil, false, domainerrors.ErrInvalidNotificationInput
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, false, domainerrors.ErrInvalidNotificationInput
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, false, domainerrors.ErrInvalidNotificationInput
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	limit := filter.Limit
	filter.Limit++
	items, err := s.Repo.ListNotifications(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if len(items) > limit {
		return items[:limit], true, nil
	}
	return items, false, nil
}

func (s Service) UnreadCount(ctx context.Context, actor ports.Actor) (int, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return 0, domainerrors.ErrForbidden
	}
	counts, err := s.Repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return 0, err
	}
	return counts.Total, nil
}

// Poll returns what arrived after since along with the next poll interval.
// A zero since returns the latest unread notifications.
func (s Service) Poll(ctx context.Context, actor ports.Actor, since time.Time) (PollResult, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return PollResult{}, domainerrors.ErrForbidden
	}
	filter := ports.NotificationFilter{UserID: actor.UserID, Limit: maxPollItems}
	if since.IsZero() {
		filter.Read = ports.UnreadOnly
	} else {
		filter.CreatedAfter = since.UTC()
	}
	items, err := s.Repo.ListNotifications(ctx, filter)
	if err != nil {
		return PollResult{}, err
	}
	counts, err := s.Repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return PollResult{}, err
	}
	return PollResult{
		Notifications:    items,
		UnreadCount:      counts.Total,
		PollAfterSeconds: entities.PollAfterSeconds(counts.Urgent, len(items)),
		ServerTime:       s.now(),
	}, nil
}

func (s Service) MarkRead(ctx context.Context, notificationID string, actor ports.Actor) error {
	notification, err := s.owned(ctx, notificationID, actor)
	if err != nil {
		return err
	}
	if notification.Read() {
		return nil
	}
	return s.Repo.MarkRead(ctx, notification.NotificationID, s.now())
}

func (s Service) MarkAllRead(ctx context.Context, actor ports.Actor) (int, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return 0, domainerrors.ErrForbidden
	}
	return s.Repo.MarkAllRead(ctx, actor.UserID, s.now())
}

func (s Service) Delete(ctx context.Context, notificationID string, actor ports.Actor) error {
	notification, err := s.owned(ctx, notificationID, actor)
	if err != nil {
		return err
	}
	return s.Repo.DeleteNotification(ctx, notification.NotificationID)
}

func (s Service) GetPreferences(ctx context.Context, actor ports.Actor) (entities.Preferences, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return entities.Preferences{}, domainerrors.ErrForbidden
	}
	return s.preferences(ctx, actor.UserID)
}

func (s Service) UpdatePreferences(ctx context.Context, actor ports.Actor, input PreferencesInput) (entities.Preferences, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return entities.Preferences{}, domainerrors.ErrForbidden
	}
	var updated entities.Preferences
	err := s.withinTx(ctx, func(ctx context.Context) error {
		prefs, err := s.preferences(ctx, actor.UserID)
		if err != nil {
			return err
		}
		for typ, enabled := range input.EnabledTypes {
			if !typ.Valid() {
				return domainerrors.ErrInvalidPreferences
			}
			prefs.EnabledTypes[typ] = enabled
		}
		if input.EmailEnabled != nil {
			prefs.EmailEnabled = *input.EmailEnabled
		}
		if input.EmailAddress != nil {
			address := strings.TrimSpace(*input.EmailAddress)
			if !entities.ValidEmailAddress(address) {
				return domainerrors.ErrInvalidPreferences
			}
			prefs.EmailAddress = address
		}
		if input.DigestFrequency != nil {
			if !input.DigestFrequency.Valid() {
				return domainerrors.ErrInvalidPreferences
			}
			prefs.DigestFrequency = *input.DigestFrequency
		}
		prefs.UpdatedAt = s.now()
		updated = prefs
		return s.Repo.PutPreferences(ctx, prefs)
	})
	if err != nil {
		return entities.Preferences{}, err
	}
	return updated, nil
}

func (s Service) owned(ctx context.Context, notificationID string, actor ports.Actor) (entities.Notification, error) {
	notification, err := s.Repo.GetNotification(ctx, strings.TrimSpace(notificationID))
	if err != nil {
		return entities.Notification{}, err
	}
	if notification.UserID != actor.UserID {
		return entities.Notification{}, domainerrors.ErrNotificationNotFound
	}
	return notification, nil
}

func (s Service) preferences(ctx context.Context, userID string) (entities.Preferences, error) {
	prefs, found, err := s.Repo.GetPreferences(ctx, userID)
	if err != nil {
		return entities.Preferences{}, err
	}
	if !found {
		return entities.DefaultPreferences(userID), nil
	}
	if prefs.EnabledTypes == nil {
		prefs.EnabledTypes = map[entities.NotificationType]bool{}
	}
	return prefs, nil
}

func (s Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithinTx(ctx, fn)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func copyMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
