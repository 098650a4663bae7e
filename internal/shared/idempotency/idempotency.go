// Package idempotency stores request fingerprints and the response they
// produced so retried writes replay instead of re-executing.
package idempotency

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

var (
	ErrConflict   = errors.New("idempotency key already used with different payload")
	ErrInvalidKey = errors.New("idempotency key is required")
)

type Record struct {
	Key         string
	RequestHash string
	Payload     []byte
	ExpiresAt   time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Lookup(_ context.Context, key string, now time.Time) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.TrimSpace(key)
	record, ok := s.records[key]
	if !ok {
		return Record{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.records, key)
		return Record{}, false, nil
	}
	return record, true, nil
}

func (s *MemoryStore) Save(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	if key == "" {
		return ErrInvalidKey
	}
	if existing, ok := s.records[key]; ok && existing.ExpiresAt.After(time.Now().UTC()) {
		if existing.RequestHash != record.RequestHash {
			return ErrConflict
		}
		return nil
	}
	record.Key = key
	s.records[key] = record
	return nil
}

// GormStore keeps every context's keys in one table, separated by scope.
type GormStore struct {
	db    *gorm.DB
	scope string
}

func NewGormStore(conn *gorm.DB, scope string) *GormStore {
	return &GormStore{db: conn, scope: scope}
}

func (s *GormStore) Lookup(ctx context.Context, key string, now time.Time) (Record, bool, error) {
	var row idempotencyModel
	err := db.Conn(ctx, s.db).
		Where("scope = ? AND key = ?", s.scope, strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	if !row.ExpiresAt.After(now.UTC()) {
		if err := db.Conn(ctx, s.db).
			Where("scope = ? AND key = ?", s.scope, row.Key).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return Record{}, false, err
		}
		return Record{}, false, nil
	}
	return Record{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		Payload:     append([]byte(nil), row.Payload...),
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (s *GormStore) Save(ctx context.Context, record Record) error {
	key := strings.TrimSpace(record.Key)
	if key == "" {
		return ErrInvalidKey
	}
	row := idempotencyModel{
		Scope:       s.scope,
		Key:         key,
		RequestHash: record.RequestHash,
		Payload:     record.Payload,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	result := db.Conn(ctx, s.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope"}, {Name: "key"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := db.Conn(ctx, s.db).
		Select("request_hash").
		Where("scope = ? AND key = ?", s.scope, key).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RequestHash != record.RequestHash {
		return ErrConflict
	}
	return nil
}

type idempotencyModel struct {
	Scope       string    `gorm:"column:scope;primaryKey"`
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	Payload     []byte    `gorm:"column:payload"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "idempotency_keys"
}
