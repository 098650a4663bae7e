package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ygbackend/contexts/content/media-service/domain/entities"
	domainerrors "ygbackend/contexts/content/media-service/domain/errors"
	"ygbackend/contexts/content/media-service/ports"

	"github.com/google/uuid"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	items       map[string]entities.MediaItem
	idempotency map[string]ports.IdempotencyRecord
}

func NewStore() *Store {
	return &Store{
		items:       make(map[string]entities.MediaItem),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

type txKey struct{}

// WithinTx serializes quota checks with the inserts that depend on them.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *Store) CreateMedia(_ context.Context, item entities.MediaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.MediaID]; exists {
		return domainerrors.ErrInvalidMediaInput
	}
	s.items[item.MediaID] = cloneItem(item)
	return nil
}

func (s *Store) GetMedia(_ context.Context, mediaID string) (entities.MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[mediaID]
	if !ok {
		return entities.MediaItem{}, domainerrors.ErrMediaNotFound
	}
	return cloneItem(item), nil
}

func (s *Store) UpdateMedia(_ context.Context, item entities.MediaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.MediaID]; !ok {
		return domainerrors.ErrMediaNotFound
	}
	s.items[item.MediaID] = cloneItem(item)
	return nil
}

func (s *Store) ListMedia(_ context.Context, filter ports.MediaFilter) ([]entities.MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(filter.Search)
	items := make([]entities.MediaItem, 0)
	for _, item := range s.items {
		if !item.CountsTowardQuota() || item.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Tag != "" && !hasTag(item.Tags, filter.Tag) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.Title), search) &&
			!strings.Contains(strings.ToLower(item.Filename), search) {
			continue
		}
		items = append(items, cloneItem(item))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].MediaID > items[j].MediaID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if filter.Offset >= len(items) {
		return []entities.MediaItem{}, nil
	}
	items = items[filter.Offset:]
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *Store) UsageBytes(_ context.Context, ownerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, item := range s.items {
		if item.OwnerID == ownerID && item.CountsTowardQuota() {
			total += item.SizeBytes
		}
	}
	return total, nil
}

func (s *Store) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]entities.MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.MediaItem, 0)
	for _, item := range s.items {
		if item.Status == entities.StatusPendingUpload && item.CreatedAt.Before(createdBefore) {
			items = append(items, cloneItem(item))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.idempotency[key]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if now.After(record.ExpiresAt) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.idempotency[record.Key]; ok && existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(context.Context) (string, error) {
	return uuid.NewString(), nil
}

func hasTag(tags []string, tag string) bool {
	for _, candidate := range tags {
		if candidate == tag {
			return true
		}
	}
	return false
}

func cloneItem(item entities.MediaItem) entities.MediaItem {
	item.Tags = append([]string(nil), item.Tags...)
	if item.DeletedAt != nil {
		deleted := *item.DeletedAt
		item.DeletedAt = &deleted
	}
	return item
}
