package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ygbackend/contexts/finance-core/royalty-service/domain/entities"
	domainerrors "ygbackend/contexts/finance-core/royalty-service/domain/errors"
	"ygbackend/contexts/finance-core/royalty-service/ports"

	"github.com/google/uuid"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	revenue     map[string]entities.RevenueEntry
	runs        map[string]entities.RoyaltyRun
	statements  map[string]entities.Statement
	terms       map[string]entities.LicenseTerms
	ownership   map[string]entities.Ownership
	idempotency map[string]ports.IdempotencyRecord
}

func NewStore() *Store {
	return &Store{
		revenue:     make(map[string]entities.RevenueEntry),
		runs:        make(map[string]entities.RoyaltyRun),
		statements:  make(map[string]entities.Statement),
		terms:       make(map[string]entities.LicenseTerms),
		ownership:   make(map[string]entities.Ownership),
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

func (s *Store) CreateRevenue(_ context.Context, entry entities.RevenueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.revenue[entry.EntryID]; exists {
		return domainerrors.ErrRevenueConflict
	}
	s.revenue[entry.EntryID] = entry
	return nil
}

func (s *Store) GetRevenue(_ context.Context, entryID string) (entities.RevenueEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.revenue[entryID]
	return entry, ok, nil
}

func (s *Store) ListRevenue(_ context.Context, start time.Time, end time.Time) ([]entities.RevenueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.RevenueEntry, 0)
	for _, entry := range s.revenue {
		if entry.InPeriod(start, end) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out, nil
}

func (s *Store) CreateRun(_ context.Context, run entities.RoyaltyRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = cloneRun(run)
	return nil
}

func (s *Store) GetRun(_ context.Context, runID string) (entities.RoyaltyRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return entities.RoyaltyRun{}, domainerrors.ErrRunNotFound
	}
	return cloneRun(run), nil
}

func (s *Store) GetRunForUpdate(ctx context.Context, runID string) (entities.RoyaltyRun, error) {
	return s.GetRun(ctx, runID)
}

func (s *Store) UpdateRun(_ context.Context, run entities.RoyaltyRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.RunID]; !ok {
		return domainerrors.ErrRunNotFound
	}
	s.runs[run.RunID] = cloneRun(run)
	return nil
}

func (s *Store) ListRuns(_ context.Context, filter ports.RunFilter) ([]entities.RoyaltyRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.RoyaltyRun, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, cloneRun(run))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].RunID > out[j].RunID
		}
		return out[i].PeriodStart.After(out[j].PeriodStart)
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func (s *Store) HasOverlappingLockedRun(_ context.Context, start time.Time, end time.Time, excludeRunID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, run := range s.runs {
		if run.RunID != excludeRunID && run.Status == entities.RunLocked && run.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ReplaceStatements(_ context.Context, runID string, statements []entities.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, statement := range s.statements {
		if statement.RunID == runID {
			delete(s.statements, id)
		}
	}
	for _, statement := range statements {
		s.statements[statement.StatementID] = cloneStatement(statement)
	}
	return nil
}

func (s *Store) GetStatement(_ context.Context, statementID string) (entities.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	statement, ok := s.statements[statementID]
	if !ok {
		return entities.Statement{}, domainerrors.ErrStatementNotFound
	}
	return cloneStatement(statement), nil
}

func (s *Store) UpdateStatement(_ context.Context, statement entities.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statements[statement.StatementID]; !ok {
		return domainerrors.ErrStatementNotFound
	}
	s.statements[statement.StatementID] = cloneStatement(statement)
	return nil
}

func (s *Store) ListStatements(_ context.Context, filter ports.StatementFilter) ([]entities.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Statement, 0)
	for _, statement := range s.statements {
		if filter.CreatorID != "" && statement.CreatorID != filter.CreatorID {
			continue
		}
		if filter.RunID != "" && statement.RunID != filter.RunID {
			continue
		}
		if filter.Status != "" && statement.Status != filter.Status {
			continue
		}
		if filter.IssuedOnly && !statement.Issued() {
			continue
		}
		out = append(out, cloneStatement(statement))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PeriodStart.Equal(out[j].PeriodStart) {
			if out[i].CreatorID == out[j].CreatorID {
				return out[i].StatementID < out[j].StatementID
			}
			return out[i].CreatorID < out[j].CreatorID
		}
		return out[i].PeriodStart.After(out[j].PeriodStart)
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func (s *Store) GetLicenseTerms(_ context.Context, licenseID string) (entities.LicenseTerms, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	terms, ok := s.terms[licenseID]
	return terms, ok, nil
}

func (s *Store) PutLicenseTerms(_ context.Context, terms entities.LicenseTerms) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terms[terms.LicenseID] = terms
	return nil
}

func (s *Store) GetOwnership(_ context.Context, ipAssetID string) (entities.Ownership, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ownership, ok := s.ownership[ipAssetID]
	if !ok {
		return entities.Ownership{}, false, nil
	}
	ownership.Owners = append([]entities.OwnerShare(nil), ownership.Owners...)
	return ownership, true, nil
}

func (s *Store) PutOwnership(_ context.Context, ownership entities.Ownership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ownership.Owners = append([]entities.OwnerShare(nil), ownership.Owners...)
	s.ownership[ownership.IPAssetID] = ownership
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

func cloneRun(run entities.RoyaltyRun) entities.RoyaltyRun {
	run.Skipped = append([]entities.SkippedEntry(nil), run.Skipped...)
	return run
}

func cloneStatement(statement entities.Statement) entities.Statement {
	statement.Lines = append([]entities.Line(nil), statement.Lines...)
	return statement
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
