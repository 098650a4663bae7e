package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"ygbackend/contexts/communications/notification-service/application"
	"ygbackend/contexts/communications/notification-service/domain/entities"
	domainerrors "ygbackend/contexts/communications/notification-service/domain/errors"
	"ygbackend/contexts/communications/notification-service/ports"
	"ygbackend/internal/platform/db"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(conn *gorm.DB, logger *slog.Logger) *Repository {
	return &Repository{db: conn, logger: application.ResolveLogger(logger)}
}

type notificationModel struct {
	NotificationID string     `gorm:"column:notification_id;primaryKey"`
	UserID         string     `gorm:"column:user_id"`
	Type           string     `gorm:"column:notification_type"`
	Title          string     `gorm:"column:title"`
	Message        string     `gorm:"column:message"`
	ActionURL      string     `gorm:"column:action_url"`
	Priority       string     `gorm:"column:priority"`
	DedupeKey      *string    `gorm:"column:dedupe_key"`
	Metadata       []byte     `gorm:"column:metadata;type:jsonb"`
	ReadAt         *time.Time `gorm:"column:read_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
}

func (notificationModel) TableName() string { return "notifications" }

type preferencesModel struct {
	UserID          string    `gorm:"column:user_id;primaryKey"`
	EnabledTypes    []byte    `gorm:"column:enabled_types;type:jsonb"`
	EmailEnabled    bool      `gorm:"column:email_enabled"`
	EmailAddress    string    `gorm:"column:email_address"`
	DigestFrequency string    `gorm:"column:digest_frequency"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (preferencesModel) TableName() string { return "notification_preferences" }

type deliveryModel struct {
	DeliveryID     string     `gorm:"column:delivery_id;primaryKey"`
	NotificationID string     `gorm:"column:notification_id"`
	UserID         string     `gorm:"column:user_id"`
	Channel        string     `gorm:"column:channel"`
	Status         string     `gorm:"column:status"`
	Attempts       int        `gorm:"column:attempts"`
	NextAttemptAt  time.Time  `gorm:"column:next_attempt_at"`
	LastError      string     `gorm:"column:last_error"`
	DeliveredAt    *time.Time `gorm:"column:delivered_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
}

func (deliveryModel) TableName() string { return "notification_deliveries" }

func (r *Repository) CreateNotification(ctx context.Context, notification entities.Notification) (entities.Notification, bool, error) {
	row, err := notificationModelFromEntity(notification)
	if err != nil {
		return entities.Notification{}, false, err
	}
	conn := db.Conn(ctx, r.db)
	if row.DedupeKey == nil {
		if err := conn.Create(&row).Error; err != nil {
			return entities.Notification{}, false, err
		}
		return notification, true, nil
	}
	result := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return entities.Notification{}, false, result.Error
	}
	if result.RowsAffected == 1 {
		return notification, true, nil
	}
	var existing notificationModel
	if err := conn.Where("user_id = ? AND dedupe_key = ?", notification.UserID, *row.DedupeKey).First(&existing).Error; err != nil {
		return entities.Notification{}, false, err
	}
	out, err := existing.toEntity()
	return out, false, err
}

func (r *Repository) GetNotification(ctx context.Context, notificationID string) (entities.Notification, error) {
	var row notificationModel
	if err := db.Conn(ctx, r.db).Where("notification_id = ?", notificationID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Notification{}, domainerrors.ErrNotificationNotFound
		}
		return entities.Notification{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListNotifications(ctx context.Context, filter ports.NotificationFilter) ([]entities.Notification, error) {
	query := db.Conn(ctx, r.db).Where("user_id = ?", filter.UserID)
	switch filter.Read {
	case ports.ReadOnly:
		query = query.Where("read_at IS NOT NULL")
	case ports.UnreadOnly:
		query = query.Where("read_at IS NULL")
	}
	if filter.Type != "" {
		query = query.Where("notification_type = ?", string(filter.Type))
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", string(filter.Priority))
	}
	if !filter.CreatedAfter.IsZero() {
		query = query.Where("created_at > ?", filter.CreatedAfter.UTC())
	}
	var rows []notificationModel
	if err := query.
		Order("created_at DESC").
		Order("notification_id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.Notification, 0, len(rows))
	for _, row := range rows {
		notification, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, notification)
	}
	return out, nil
}

func (r *Repository) CountUnread(ctx context.Context, userID string) (ports.UnreadCounts, error) {
	var row struct {
		Total  int
		Urgent int
	}
	err := db.Conn(ctx, r.db).Model(&notificationModel{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE priority = ?) AS urgent", string(entities.PriorityUrgent)).
		Where("user_id = ? AND read_at IS NULL", userID).
		Scan(&row).Error
	if err != nil {
		return ports.UnreadCounts{}, err
	}
	return ports.UnreadCounts{Total: row.Total, Urgent: row.Urgent}, nil
}

func (r *Repository) MarkRead(ctx context.Context, notificationID string, at time.Time) error {
	result := db.Conn(ctx, r.db).Model(&notificationModel{}).
		Where("notification_id = ?", notificationID).
		Update("read_at", gorm.Expr("COALESCE(read_at, ?)", at.UTC()))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotificationNotFound
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	result := db.Conn(ctx, r.db).Model(&notificationModel{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", at.UTC())
	return int(result.RowsAffected), result.Error
}

func (r *Repository) DeleteNotification(ctx context.Context, notificationID string) error {
	return db.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("notification_id = ?", notificationID).Delete(&deliveryModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("notification_id = ?", notificationID).Delete(&notificationModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrNotificationNotFound
		}
		return nil
	})
}

func (r *Repository) GetPreferences(ctx context.Context, userID string) (entities.Preferences, bool, error) {
	var row preferencesModel
	if err := db.Conn(ctx, r.db).Where("user_id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Preferences{}, false, nil
		}
		return entities.Preferences{}, false, err
	}
	enabled := map[entities.NotificationType]bool{}
	if len(row.EnabledTypes) > 0 {
		if err := json.Unmarshal(row.EnabledTypes, &enabled); err != nil {
			return entities.Preferences{}, false, err
		}
	}
	return entities.Preferences{
		UserID:          row.UserID,
		EnabledTypes:    enabled,
		EmailEnabled:    row.EmailEnabled,
		EmailAddress:    row.EmailAddress,
		DigestFrequency: entities.DigestFrequency(row.DigestFrequency),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}, true, nil
}

func (r *Repository) PutPreferences(ctx context.Context, preferences entities.Preferences) error {
	enabled, err := json.Marshal(preferences.EnabledTypes)
	if err != nil {
		return err
	}
	row := preferencesModel{
		UserID:          preferences.UserID,
		EnabledTypes:    enabled,
		EmailEnabled:    preferences.EmailEnabled,
		EmailAddress:    preferences.EmailAddress,
		DigestFrequency: string(preferences.DigestFrequency),
		UpdatedAt:       preferences.UpdatedAt.UTC(),
	}
	return db.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled_types", "email_enabled", "email_address", "digest_frequency", "updated_at"}),
	}).Create(&row).Error
}

func (r *Repository) CreateDelivery(ctx context.Context, delivery entities.Delivery) error {
	row := deliveryModelFromEntity(delivery)
	if err := db.Conn(ctx, r.db).Create(&row).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil
		}
		return err
	}
	return nil
}

func (r *Repository) ListDueDeliveries(ctx context.Context, now time.Time, limit int) ([]entities.Delivery, error) {
	var rows []deliveryModel
	err := db.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND next_attempt_at <= ?", string(entities.DeliveryPending), now.UTC()).
		Order("next_attempt_at ASC").
		Order("delivery_id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entities.Delivery, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) UpdateDelivery(ctx context.Context, delivery entities.Delivery) error {
	result := db.Conn(ctx, r.db).Model(&deliveryModel{}).
		Where("delivery_id = ?", delivery.DeliveryID).
		Updates(map[string]any{
			"status":          string(delivery.Status),
			"attempts":        delivery.Attempts,
			"next_attempt_at": delivery.NextAttemptAt.UTC(),
			"last_error":      delivery.LastError,
			"delivered_at":    delivery.DeliveredAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrDeliveryNotFound
	}
	return nil
}

func notificationModelFromEntity(notification entities.Notification) (notificationModel, error) {
	var metadata []byte
	if len(notification.Metadata) > 0 {
		raw, err := json.Marshal(notification.Metadata)
		if err != nil {
			return notificationModel{}, err
		}
		metadata = raw
	}
	row := notificationModel{
		NotificationID: notification.NotificationID,
		UserID:         notification.UserID,
		Type:           string(notification.Type),
		Title:          notification.Title,
		Message:        notification.Message,
		ActionURL:      notification.ActionURL,
		Priority:       string(notification.Priority),
		Metadata:       metadata,
		ReadAt:         notification.ReadAt,
		CreatedAt:      notification.CreatedAt.UTC(),
	}
	if notification.DedupeKey != "" {
		key := notification.DedupeKey
		row.DedupeKey = &key
	}
	return row, nil
}

func (row notificationModel) toEntity() (entities.Notification, error) {
	notification := entities.Notification{
		NotificationID: row.NotificationID,
		UserID:         row.UserID,
		Type:           entities.NotificationType(row.Type),
		Title:          row.Title,
		Message:        row.Message,
		ActionURL:      row.ActionURL,
		Priority:       entities.Priority(row.Priority),
		CreatedAt:      row.CreatedAt.UTC(),
	}
	if row.DedupeKey != nil {
		notification.DedupeKey = *row.DedupeKey
	}
	if row.ReadAt != nil {
		readAt := row.ReadAt.UTC()
		notification.ReadAt = &readAt
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &notification.Metadata); err != nil {
			return entities.Notification{}, err
		}
	}
	return notification, nil
}

func deliveryModelFromEntity(delivery entities.Delivery) deliveryModel {
	return deliveryModel{
		DeliveryID:     delivery.DeliveryID,
		NotificationID: delivery.NotificationID,
		UserID:         delivery.UserID,
		Channel:        string(delivery.Channel),
		Status:         string(delivery.Status),
		Attempts:       delivery.Attempts,
		NextAttemptAt:  delivery.NextAttemptAt.UTC(),
		LastError:      delivery.LastError,
		DeliveredAt:    delivery.DeliveredAt,
		CreatedAt:      delivery.CreatedAt.UTC(),
	}
}

func (row deliveryModel) toEntity() entities.Delivery {
	delivery := entities.Delivery{
		DeliveryID:     row.DeliveryID,
		NotificationID: row.NotificationID,
		UserID:         row.UserID,
		Channel:        entities.Channel(row.Channel),
		Status:         entities.DeliveryStatus(row.Status),
		Attempts:       row.Attempts,
		NextAttemptAt:  row.NextAttemptAt.UTC(),
		LastError:      row.LastError,
		CreatedAt:      row.CreatedAt.UTC(),
	}
	if row.DeliveredAt != nil {
		deliveredAt := row.DeliveredAt.UTC()
		delivery.DeliveredAt = &deliveredAt
	}
	return delivery
}
