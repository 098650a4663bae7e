package outbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"ygbackend/internal/platform/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDedupConflict = errors.New("event id already processed with different payload")

type dedupEntry struct {
	PayloadHash string
	ExpiresAt   time.Time
}

// MemoryDedup records processed event ids per consumer scope.
type MemoryDedup struct {
	mu      sync.Mutex
	scope   string
	entries map[string]dedupEntry
}

func NewMemoryDedup(scope string) *MemoryDedup {
	return &MemoryDedup{
		scope:   scope,
		entries: make(map[string]dedupEntry),
	}
}

func (d *MemoryDedup) ReserveEvent(_ context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	key := strings.TrimSpace(eventID)
	if key == "" {
		return false, ErrInvalidEnvelope
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := d.entries[key]; ok && existing.ExpiresAt.After(now) {
		if existing.PayloadHash != payloadHash {
			return false, ErrDedupConflict
		}
		return true, nil
	}
	d.entries[key] = dedupEntry{PayloadHash: payloadHash, ExpiresAt: expiresAt.UTC()}
	return false, nil
}

// ReleaseEvent forgets a reservation whose handler failed so a redelivery is
// processed again.
func (d *MemoryDedup) ReleaseEvent(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, strings.TrimSpace(eventID))
	return nil
}

// GormDedup is the Postgres-backed dedup table shared by all consumers; rows
// are keyed by (consumer, event_id).
type GormDedup struct {
	db       *gorm.DB
	consumer string
}

func NewGormDedup(conn *gorm.DB, consumer string) *GormDedup {
	return &GormDedup{db: conn, consumer: consumer}
}

func (d *GormDedup) ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	key := strings.TrimSpace(eventID)
	if key == "" {
		return false, ErrInvalidEnvelope
	}
	row := eventDedupModel{
		Consumer:    d.consumer,
		EventID:     key,
		PayloadHash: payloadHash,
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	result := db.Conn(ctx, d.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "consumer"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := db.Conn(ctx, d.db).
		Select("payload_hash").
		Where("consumer = ? AND event_id = ?", d.consumer, key).
		First(&existing).
		Error; err != nil {
		return false, err
	}
	if existing.PayloadHash != payloadHash {
		return false, ErrDedupConflict
	}
	return true, nil
}

// ReleaseEvent deletes the reservation. Inside a handler transaction the
// rollback already discards it; this covers handlers run without one.
func (d *GormDedup) ReleaseEvent(ctx context.Context, eventID string) error {
	return db.Conn(ctx, d.db).
		Where("consumer = ? AND event_id = ?", d.consumer, strings.TrimSpace(eventID)).
		Delete(&eventDedupModel{}).
		Error
}

type eventDedupModel struct {
	Consumer    string    `gorm:"column:consumer;primaryKey"`
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "event_dedup"
}
