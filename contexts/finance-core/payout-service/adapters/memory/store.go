package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ygbackend/contexts/finance-core/payout-service/domain/entities"
	domainerrors "ygbackend/contexts/finance-core/payout-service/domain/errors"
	"ygbackend/contexts/finance-core/payout-service/ports"

	"github.com/google/uuid"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	accounts    map[string]entities.ConnectedAccount
	ledger      map[string]entities.LedgerEntry
	payouts     map[string]entities.Payout
	webhooks    map[string]time.Time
	idempotency map[string]ports.IdempotencyRecord
}

func NewStore() *Store {
	return &Store{
		accounts:    make(map[string]entities.ConnectedAccount),
		ledger:      make(map[string]entities.LedgerEntry),
		payouts:     make(map[string]entities.Payout),
		webhooks:    make(map[string]time.Time),
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

func (s *Store) GetAccountByUser(_ context.Context, userID string) (entities.ConnectedAccount, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[userID]
	return cloneAccount(account), ok, nil
}

func (s *Store) GetAccountByStripeID(_ context.Context, stripeAccountID string) (entities.ConnectedAccount, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.accounts {
		if account.StripeAccountID == stripeAccountID {
			return cloneAccount(account), true, nil
		}
	}
	return entities.ConnectedAccount{}, false, nil
}

func (s *Store) SaveAccount(_ context.Context, account entities.ConnectedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.UserID] = cloneAccount(account)
	return nil
}

func (s *Store) GetLedgerEntryByStatement(_ context.Context, statementID string) (entities.LedgerEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.ledger {
		if entry.StatementID == statementID {
			return entry, true, nil
		}
	}
	return entities.LedgerEntry{}, false, nil
}

func (s *Store) SaveLedgerEntry(_ context.Context, entry entities.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger[entry.EntryID] = entry
	return nil
}

func (s *Store) ListLedgerEntries(_ context.Context, filter ports.LedgerFilter) ([]entities.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.LedgerEntry, 0)
	for _, entry := range s.ledger {
		if filter.UserID != "" && entry.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		if filter.PayoutID != "" && entry.PayoutID != filter.PayoutID {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].EntryID < out[j].EntryID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreatePayout(_ context.Context, payout entities.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payouts[payout.PayoutID] = clonePayout(payout)
	return nil
}

func (s *Store) GetPayout(_ context.Context, payoutID string) (entities.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payout, ok := s.payouts[payoutID]
	if !ok {
		return entities.Payout{}, domainerrors.ErrPayoutNotFound
	}
	return clonePayout(payout), nil
}

func (s *Store) GetPayoutForUpdate(ctx context.Context, payoutID string) (entities.Payout, error) {
	return s.GetPayout(ctx, payoutID)
}

func (s *Store) GetPayoutByTransferID(_ context.Context, transferID string) (entities.Payout, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, payout := range s.payouts {
		if payout.StripeTransferID == transferID {
			return clonePayout(payout), true, nil
		}
	}
	return entities.Payout{}, false, nil
}

func (s *Store) UpdatePayout(_ context.Context, payout entities.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payouts[payout.PayoutID]; !ok {
		return domainerrors.ErrPayoutNotFound
	}
	s.payouts[payout.PayoutID] = clonePayout(payout)
	return nil
}

func (s *Store) ListPayouts(_ context.Context, filter ports.PayoutFilter) ([]entities.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Payout, 0)
	for _, payout := range s.payouts {
		if filter.UserID != "" && payout.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && payout.Status != filter.Status {
			continue
		}
		out = append(out, clonePayout(payout))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].PayoutID > out[j].PayoutID
		}
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func (s *Store) ListDuePayouts(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	due := make([]entities.Payout, 0)
	for _, payout := range s.payouts {
		if payout.Status != entities.PayoutPending && payout.Status != entities.PayoutProcessing {
			continue
		}
		if payout.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, payout)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
			return due[i].PayoutID < due[j].PayoutID
		}
		return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
	})
	due = page(due, 0, limit)
	ids := make([]string, 0, len(due))
	for _, payout := range due {
		ids = append(ids, payout.PayoutID)
	}
	return ids, nil
}

func (s *Store) WebhookProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.webhooks[eventID]
	return ok, nil
}

func (s *Store) RecordWebhook(_ context.Context, eventID string, _ string, receivedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[eventID] = receivedAt
	return nil
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

func cloneAccount(account entities.ConnectedAccount) entities.ConnectedAccount {
	account.RequirementsDue = append([]string(nil), account.RequirementsDue...)
	return account
}

func clonePayout(payout entities.Payout) entities.Payout {
	payout.StatementIDs = append([]string(nil), payout.StatementIDs...)
	if payout.CompletedAt != nil {
		completedAt := *payout.CompletedAt
		payout.CompletedAt = &completedAt
	}
	return payout
}

func page[T any](items []T, offset int, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
