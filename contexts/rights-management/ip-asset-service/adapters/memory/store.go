package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ygbackend/contexts/rights-management/ip-asset-service/domain/entities"
	domainerrors "ygbackend/contexts/rights-management/ip-asset-service/domain/errors"
	"ygbackend/contexts/rights-management/ip-asset-service/ports"

	"github.com/google/uuid"
)

// Store holds assets for the memory driver. WithinTx serializes writers so
// version checks and ownership updates do not interleave.
type Store struct {
	txMu        sync.Mutex
	mu          sync.RWMutex
	assets      map[string]entities.IPAsset
	idempotency map[string]ports.IdempotencyRecord
}

func NewStore() *Store {
	return &Store{
		assets:      make(map[string]entities.IPAsset),
		idempotency: make(map[string]ports.IdempotencyRecord),
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

func (s *Store) CreateAsset(_ context.Context, asset entities.IPAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assets[asset.AssetID]; exists {
		return domainerrors.ErrVersionConflict
	}
	s.assets[asset.AssetID] = cloneAsset(asset)
	return nil
}

func (s *Store) GetAsset(_ context.Context, assetID string) (entities.IPAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[assetID]
	if !ok {
		return entities.IPAsset{}, domainerrors.ErrAssetNotFound
	}
	return cloneAsset(asset), nil
}

func (s *Store) UpdateAsset(_ context.Context, asset entities.IPAsset, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.assets[asset.AssetID]
	if !ok {
		return domainerrors.ErrAssetNotFound
	}
	if current.Version != expectedVersion {
		return domainerrors.ErrVersionConflict
	}
	s.assets[asset.AssetID] = cloneAsset(asset)
	return nil
}

func (s *Store) ListAssets(_ context.Context, filter ports.AssetFilter) ([]entities.IPAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(filter.Search)
	items := make([]entities.IPAsset, 0)
	for _, asset := range s.assets {
		if asset.DeletedAt != nil {
			continue
		}
		if filter.Status != "" && asset.Status != filter.Status {
			continue
		}
		if filter.Type != "" && asset.Type != filter.Type {
			continue
		}
		if filter.CreatorID != "" && asset.CreatedBy != filter.CreatorID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(asset.Title), search) &&
			!strings.Contains(strings.ToLower(asset.Description), search) {
			continue
		}
		items = append(items, cloneAsset(asset))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].AssetID > items[j].AssetID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if filter.Offset >= len(items) {
		return []entities.IPAsset{}, nil
	}
	items = items[filter.Offset:]
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
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

func cloneAsset(asset entities.IPAsset) entities.IPAsset {
	asset.Tags = append([]string(nil), asset.Tags...)
	asset.Owners = append([]entities.Ownership(nil), asset.Owners...)
	if asset.DeletedAt != nil {
		deleted := *asset.DeletedAt
		asset.DeletedAt = &deleted
	}
	return asset
}
