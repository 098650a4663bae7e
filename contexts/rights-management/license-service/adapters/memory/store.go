package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ygbackend/contexts/rights-management/license-service/domain/entities"
	domainerrors "ygbackend/contexts/rights-management/license-service/domain/errors"
	"ygbackend/contexts/rights-management/license-service/ports"

	"github.com/google/uuid"
)

// Store holds licenses for the memory driver. WithinTx serializes writers so
// read-check-write sequences behave like the row locks of the SQL driver.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	licenses    map[string]entities.License
	amendments  map[string]entities.Amendment
	idempotency map[string]ports.IdempotencyRecord
}

func NewStore() *Store {
	return &Store{
		licenses:    make(map[string]entities.License),
		amendments:  make(map[string]entities.Amendment),
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

func (s *Store) CreateLicense(_ context.Context, license entities.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.licenses[license.LicenseID]; exists {
		return domainerrors.ErrInvalidLicenseInput
	}
	s.licenses[license.LicenseID] = cloneLicense(license)
	return nil
}

func (s *Store) GetLicense(_ context.Context, licenseID string) (entities.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	license, ok := s.licenses[licenseID]
	if !ok {
		return entities.License{}, domainerrors.ErrLicenseNotFound
	}
	return cloneLicense(license), nil
}

func (s *Store) GetLicenseForUpdate(ctx context.Context, licenseID string) (entities.License, error) {
	return s.GetLicense(ctx, licenseID)
}

func (s *Store) UpdateLicense(_ context.Context, license entities.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.licenses[license.LicenseID]; !ok {
		return domainerrors.ErrLicenseNotFound
	}
	s.licenses[license.LicenseID] = cloneLicense(license)
	return nil
}

func (s *Store) ListLicenses(_ context.Context, filter ports.LicenseFilter) ([]entities.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.License, 0)
	for _, license := range s.licenses {
		if !matches(license, filter) {
			continue
		}
		items = append(items, cloneLicense(license))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].LicenseID > items[j].LicenseID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if filter.Offset >= len(items) {
		return []entities.License{}, nil
	}
	items = items[filter.Offset:]
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *Store) ListBlockingLicenses(_ context.Context, ipAssetID string) ([]entities.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.License, 0)
	for _, license := range s.licenses {
		if license.IPAssetID == ipAssetID && license.Status.Blocking() {
			items = append(items, cloneLicense(license))
		}
	}
	return items, nil
}

func (s *Store) ListEndedActive(_ context.Context, now time.Time, limit int) ([]entities.License, error) {
	return s.selectActive(limit, func(license entities.License) bool {
		return !license.EndDate.After(now)
	}), nil
}

func (s *Store) ListExpiringUnnoticed(_ context.Context, now time.Time, until time.Time, limit int) ([]entities.License, error) {
	return s.selectActive(limit, func(license entities.License) bool {
		return license.ExpiryNoticeSentAt == nil && license.EndDate.After(now) && !license.EndDate.After(until)
	}), nil
}

func (s *Store) selectActive(limit int, keep func(entities.License) bool) []entities.License {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.License, 0)
	for _, license := range s.licenses {
		if license.Status == entities.LicenseStatusActive && keep(license) {
			items = append(items, cloneLicense(license))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].EndDate.Before(items[j].EndDate) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (s *Store) CreateAmendment(_ context.Context, amendment entities.Amendment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.amendments[amendment.AmendmentID] = amendment
	return nil
}

func (s *Store) GetAmendmentForUpdate(_ context.Context, amendmentID string) (entities.Amendment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	amendment, ok := s.amendments[amendmentID]
	if !ok {
		return entities.Amendment{}, domainerrors.ErrAmendmentNotFound
	}
	return amendment, nil
}

func (s *Store) UpdateAmendment(_ context.Context, amendment entities.Amendment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.amendments[amendment.AmendmentID]; !ok {
		return domainerrors.ErrAmendmentNotFound
	}
	s.amendments[amendment.AmendmentID] = amendment
	return nil
}

func (s *Store) ListAmendments(_ context.Context, licenseID string) ([]entities.Amendment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Amendment, 0)
	for _, amendment := range s.amendments {
		if amendment.LicenseID == licenseID {
			items = append(items, amendment)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
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

func matches(license entities.License, filter ports.LicenseFilter) bool {
	if filter.Status != "" && license.Status != filter.Status {
		return false
	}
	if filter.IPAssetID != "" && license.IPAssetID != filter.IPAssetID {
		return false
	}
	if filter.LicenseeID != "" && license.LicenseeID != filter.LicenseeID {
		return false
	}
	if filter.LicensorID != "" && license.LicensorID != filter.LicensorID {
		return false
	}
	if filter.PartyID != "" && !license.IsParty(filter.PartyID) {
		return false
	}
	if filter.EndingAfter != nil && !license.EndDate.After(*filter.EndingAfter) {
		return false
	}
	if filter.EndingBefore != nil && license.EndDate.After(*filter.EndingBefore) {
		return false
	}
	return true
}

func cloneLicense(license entities.License) entities.License {
	license.Scope.Media = append([]string(nil), license.Scope.Media...)
	license.Scope.Placements = append([]string(nil), license.Scope.Placements...)
	license.Scope.Territories = append([]string(nil), license.Scope.Territories...)
	return license
}
