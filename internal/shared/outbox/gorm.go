package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	contractsv1 "ygbackend/contracts/gen/events/v1"
	"ygbackend/internal/platform/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(conn *gorm.DB) *GormStore {
	return &GormStore{db: conn}
}

func (s *GormStore) AppendOutbox(ctx context.Context, envelope contractsv1.Envelope) error {
	if !validEnvelope(envelope) {
		return ErrInvalidEnvelope
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:      strings.TrimSpace(envelope.EventID),
		SourceService: envelope.SourceService,
		EventType:     envelope.EventType,
		PartitionKey:  envelope.PartitionKey,
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     envelope.OccurredAt.UTC(),
	}
	result := db.Conn(ctx, s.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := db.Conn(ctx, s.db).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return err
	}
	if string(existing.Payload) != string(payload) {
		return ErrPayloadConflict
	}
	return nil
}

func (s *GormStore) ListPendingOutbox(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := db.Conn(ctx, s.db).
		Where("status = ?", StatusPending).
		Order("created_at ASC").
		Order("outbox_id ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]Message, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toMessage())
	}
	return items, nil
}

func (s *GormStore) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := db.Conn(ctx, s.db).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  StatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) MarkOutboxFailed(ctx context.Context, outboxID string, reason string, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	result := db.Conn(ctx, s.db).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
			"status": gorm.Expr(
				"CASE WHEN attempts + 1 >= ? THEN ? ELSE status END",
				maxAttempts,
				StatusFailed,
			),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CountPending(ctx context.Context) (int, error) {
	var count int64
	if err := db.Conn(ctx, s.db).
		Model(&outboxModel{}).
		Where("status = ?", StatusPending).
		Count(&count).
		Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

type outboxModel struct {
	OutboxID      string     `gorm:"column:outbox_id;primaryKey"`
	SourceService string     `gorm:"column:source_service"`
	EventType     string     `gorm:"column:event_type"`
	PartitionKey  string     `gorm:"column:partition_key"`
	Payload       []byte     `gorm:"column:payload"`
	Status        string     `gorm:"column:status"`
	Attempts      int        `gorm:"column:attempts"`
	LastError     string     `gorm:"column:last_error"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	SentAt        *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "outbox_messages"
}

func (m outboxModel) toMessage() Message {
	return Message{
		OutboxID:      m.OutboxID,
		SourceService: m.SourceService,
		EventType:     m.EventType,
		PartitionKey:  m.PartitionKey,
		Payload:       append([]byte(nil), m.Payload...),
		Status:        m.Status,
		Attempts:      m.Attempts,
		LastError:     m.LastError,
		CreatedAt:     m.CreatedAt.UTC(),
		SentAt:        m.SentAt,
	}
}
