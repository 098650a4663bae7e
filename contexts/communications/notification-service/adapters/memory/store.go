package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ygbackend/contexts/communications/notification-service/domain/entities"
	domainerrors "ygbackend/contexts/communications/notification-service/domain/errors"
	"ygbackend/contexts/communications/notification-service/ports"

	"github.com/google/uuid"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	notifications map[string]entities.Notification
	preferences   map[string]entities.Preferences
	deliveries    map[string]entities.Delivery
}

func NewStore() *Store {
	return &Store{
		notifications: make(map[string]entities.Notification),
		preferences:   make(map[string]entities.Preferences),
		deliveries:    make(map[string]entities.Delivery),
	}
}

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *Store) CreateNotification(_ context.Context, notification entities.Notification) (entities.Notification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if notification.DedupeKey != "" {
		for _, existing := range s.notifications {
			if existing.UserID == notification.UserID && existing.DedupeKey == notification.DedupeKey {
				return cloneNotification(existing), false, nil
			}
		}
	}
	s.notifications[notification.NotificationID] = cloneNotification(notification)
	return cloneNotification(notification), true, nil
}

func (s *Store) GetNotification(_ context.Context, notificationID string) (entities.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	notification, ok := s.notifications[notificationID]
	if !ok {
		return entities.Notification{}, domainerrors.ErrNotificationNotFound
	}
	return cloneNotification(notification), nil
}

func (s *Store) ListNotifications(_ context.Context, filter ports.NotificationFilter) ([]entities.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Notification, 0)
	for _, notification := range s.notifications {
		if notification.UserID != filter.UserID {
			continue
		}
		if filter.Read == ports.ReadOnly && !notification.Read() {
			continue
		}
		if filter.Read == ports.UnreadOnly && notification.Read() {
			continue
		}
		if filter.Type != "" && notification.Type != filter.Type {
			continue
		}
		if filter.Priority != "" && notification.Priority != filter.Priority {
			continue
		}
		if !filter.CreatedAfter.IsZero() && !notification.CreatedAt.After(filter.CreatedAfter) {
			continue
		}
		items = append(items, cloneNotification(notification))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].NotificationID > items[j].NotificationID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if filter.Offset >= len(items) {
		return []entities.Notification{}, nil
	}
	items = items[filter.Offset:]
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *Store) CountUnread(_ context.Context, userID string) (ports.UnreadCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts ports.UnreadCounts
	for _, notification := range s.notifications {
		if notification.UserID != userID || notification.Read() {
			continue
		}
		counts.Total++
		if notification.Priority == entities.PriorityUrgent {
			counts.Urgent++
		}
	}
	return counts, nil
}

func (s *Store) MarkRead(_ context.Context, notificationID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification, ok := s.notifications[notificationID]
	if !ok {
		return domainerrors.ErrNotificationNotFound
	}
	if notification.ReadAt == nil {
		notification.ReadAt = &at
		s.notifications[notificationID] = notification
	}
	return nil
}

func (s *Store) MarkAllRead(_ context.Context, userID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for id, notification := range s.notifications {
		if notification.UserID != userID || notification.Read() {
			continue
		}
		readAt := at
		notification.ReadAt = &readAt
		s.notifications[id] = notification
		updated++
	}
	return updated, nil
}

func (s *Store) DeleteNotification(_ context.Context, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[notificationID]; !ok {
		return domainerrors.ErrNotificationNotFound
	}
	delete(s.notifications, notificationID)
	return nil
}

func (s *Store) GetPreferences(_ context.Context, userID string) (entities.Preferences, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs, ok := s.preferences[userID]
	if !ok {
		return entities.Preferences{}, false, nil
	}
	return clonePreferences(prefs), true, nil
}

func (s *Store) PutPreferences(_ context.Context, preferences entities.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[preferences.UserID] = clonePreferences(preferences)
	return nil
}

func (s *Store) CreateDelivery(_ context.Context, delivery entities.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries[delivery.DeliveryID] = delivery
	return nil
}

func (s *Store) ListDueDeliveries(_ context.Context, now time.Time, limit int) ([]entities.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Delivery, 0)
	for _, delivery := range s.deliveries {
		if delivery.Status == entities.DeliveryPending && !delivery.NextAttemptAt.After(now) {
			items = append(items, delivery)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].NextAttemptAt.Equal(items[j].NextAttemptAt) {
			return items[i].DeliveryID < items[j].DeliveryID
		}
		return items[i].NextAttemptAt.Before(items[j].NextAttemptAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) UpdateDelivery(_ context.Context, delivery entities.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[delivery.DeliveryID]; !ok {
		return domainerrors.ErrDeliveryNotFound
	}
	s.deliveries[delivery.DeliveryID] = delivery
	return nil
}

// Deliveries returns every delivery; used by tests.
func (s *Store) Deliveries() []entities.Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Delivery, 0, len(s.deliveries))
	for _, delivery := range s.deliveries {
		out = append(out, delivery)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveryID < out[j].DeliveryID })
	return out
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(context.Context) (string, error) {
	return uuid.NewString(), nil
}

func cloneNotification(notification entities.Notification) entities.Notification {
	if notification.Metadata != nil {
		metadata := make(map[string]string, len(notification.Metadata))
		for k, v := range notification.Metadata {
			metadata[k] = v
		}
		notification.Metadata = metadata
	}
	if notification.ReadAt != nil {
		readAt := *notification.ReadAt
		notification.ReadAt = &readAt
	}
	return notification
}

func clonePreferences(prefs entities.Preferences) entities.Preferences {
	enabled := make(map[entities.NotificationType]bool, len(prefs.EnabledTypes))
	for k, v := range prefs.EnabledTypes {
		enabled[k] = v
	}
	prefs.EnabledTypes = enabled
	return prefs
}
