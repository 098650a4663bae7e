package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/finance-core/royalty-service/domain/entities"
	domainerrors "ygbackend/contexts/finance-core/royalty-service/domain/errors"
	"ygbackend/contexts/finance-core/royalty-service/ports"
)

const (
	module                = "finance-core/royalty-service"
	defaultIdempotencyTTL = 7 * 24 * time.Hour
	defaultPageSize       = 20
	maxPageSize           = 100
	defaultFeeBps         = 1000
)

type Service struct {
	Repo           ports.Repository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Tx             ports.Transactor
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	// PlatformFeeBps of -1 disables the fee; 0 falls back to the default.
	PlatformFeeBps int
	Logger         *slog.Logger
}

type RecordRevenueInput struct {
	EntryID    string
	LicenseID  string
	IPAssetID  string
	GrossCents int64
	Currency   string
	OccurredAt time.Time
	Source     string
}

type RevenueResult struct {
	Entry   entities.RevenueEntry
	Created bool
}

type RunResult struct {
	Run      entities.RoyaltyRun `json:"run"`
	Replayed bool                `json:"-"`
}

type CurrencyTotals struct {
	Currency        string
	EarningsCents   int64
	FeeCents        int64
	AdjustmentCents int64
	NetPayableCents int64
	// Outstanding is net payable that has not been paid yet.
	OutstandingCents int64
	PaidCents        int64
	ByStatus         map[entities.StatementStatus]int64
}

type EarningsSummary struct {
	CreatorID      string
	StatementCount int
	Currencies     []CurrencyTotals
}

// RecordRevenue stores a revenue entry once. Re-sending the same entry is a
// no-op; the same id with different values is a conflict.
func (s Service) RecordRevenue(ctx context.Context, actor ports.Actor, input RecordRevenueInput) (RevenueResult, error) {
	if !actor.IsAdmin {
		return RevenueResult{}, domainerrors.ErrForbidden
	}
	entry := entities.RevenueEntry{
		EntryID:    strings.TrimSpace(input.EntryID),
		LicenseID:  strings.TrimSpace(input.LicenseID),
		IPAssetID:  strings.TrimSpace(input.IPAssetID),
		GrossCents: input.GrossCents,
		Currency:   strings.ToLower(strings.TrimSpace(input.Currency)),
		OccurredAt: input.OccurredAt.UTC(),
		Source:     strings.TrimSpace(input.Source),
	}
	if !entry.Valid() {
		return RevenueResult{}, domainerrors.ErrInvalidRevenueInput
	}

	var result RevenueResult
	err := s.withinTx(ctx, func(ctx context.Context) error {
		existing, found, err := s.Repo.GetRevenue(ctx, entry.EntryID)
		if err != nil {
			return err
		}
		if found {
			if !existing.SameAs(entry) {
				return domainerrors.ErrRevenueConflict
			}
			result = RevenueResult{Entry: existing}
			return nil
		}
		if entry.IPAssetID == "" {
			terms, ok, err := s.Repo.GetLicenseTerms(ctx, entry.LicenseID)
			if err != nil {
				return err
			}
			if ok {
				entry.IPAssetID = terms.IPAssetID
			}
		}
		entry.CreatedAt = s.now()
		if err := s.Repo.CreateRevenue(ctx, entry); err != nil {
			return err
		}
		result = RevenueResult{Entry: entry, Created: true}
		return nil
	})
	if err != nil {
		return RevenueResult{}, err
	}
	return result, nil
}

func (s Service) CreateRun(ctx context.Context, actor ports.Actor, idempotencyKey string, periodStart time.Time, periodEnd time.Time) (RunResult, error) {
	if !actor.IsAdmin {
		return RunResult{}, domainerrors.ErrForbidden
	}
	periodStart, periodEnd = periodStart.UTC(), periodEnd.UTC()
	if periodStart.IsZero() || !periodEnd.After(periodStart) {
		return RunResult{}, domainerrors.ErrInvalidPeriod
	}
	requestHash, err := hashRequest(map[string]any{
		"period_start": periodStart.Format(time.RFC3339Nano),
		"period_end":   periodEnd.Format(time.RFC3339Nano),
	})
	if err != nil {
		return RunResult{}, err
	}

	var result RunResult
	err = s.withinTx(ctx, func(ctx context.Context) error {
		var replayed RunResult
		ok, err := s.replay(ctx, idempotencyKey, requestHash, &replayed)
		if err != nil {
			return err
		}
		if ok {
			replayed.Replayed = true
			result = replayed
			return nil
		}
		overlap, err := s.Repo.HasOverlappingLockedRun(ctx, periodStart, periodEnd, "")
		if err != nil {
			return err
		}
		if overlap {
			return domainerrors.ErrRunOverlap
		}
		runID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		run := entities.RoyaltyRun{
			RunID:       runID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			Status:      entities.RunDraft,
			CreatedBy:   actor.UserID,
			CreatedAt:   s.now(),
		}
		if err := s.Repo.CreateRun(ctx, run); err != nil {
			return err
		}
		result = RunResult{Run: run}
		return s.remember(ctx, idempotencyKey, requestHash, result)
	})
	if err != nil {
		return RunResult{}, err
	}
	if !result.Replayed {
		ResolveLogger(s.Logger).Info("royalty run created",
			"event", "royalty_run_created",
			"module", module,
			"layer", "application",
			"run_id", result.Run.RunID,
			"period_start", periodStart,
			"period_end", periodEnd,
		)
	}
	return result, nil
}

// CalculateRun recomputes every statement of a draft or calculated run from
// the revenue and projections currently on file.
func (s Service) CalculateRun(ctx context.Context, actor ports.Actor, runID string) (entities.RoyaltyRun, error) {
	if !actor.IsAdmin {
		return entities.RoyaltyRun{}, domainerrors.ErrForbidden
	}
	var run entities.RoyaltyRun
	err := s.withinTx(ctx, func(ctx context.Context) error {
		var err error
		run, err = s.Repo.GetRunForUpdate(ctx, strings.TrimSpace(runID))
		if err != nil {
			return err
		}
		if !run.CanCalculate() {
			return domainerrors.ErrInvalidRunState
		}
		entries, err := s.Repo.ListRevenue(ctx, run.PeriodStart, run.PeriodEnd)
		if err != nil {
			return err
		}
		input := entities.CalculationInput{
			RunID:       run.RunID,
			PeriodStart: run.PeriodStart,
			PeriodEnd:   run.PeriodEnd,
			Entries:     entries,
			Terms:       map[string]entities.LicenseTerms{},
			Ownership:   map[string]entities.Ownership{},
			FeeBps:      s.feeBps(),
		}
		for _, entry := range entries {
			if err := s.loadProjections(ctx, entry, input); err != nil {
				return err
			}
		}
		calculated := entities.Calculate(input)

		now := s.now()
		statements := calculated.Statements
		for i := range statements {
			statementID, err := s.IDGen.NewID(ctx)
			if err != nil {
				return err
			}
			statements[i].StatementID = statementID
			statements[i].Status = entities.StatementPending
			statements[i].CreatedAt = now
			statements[i].UpdatedAt = now
		}
		if err := s.Repo.ReplaceStatements(ctx, run.RunID, statements); err != nil {
			return err
		}
		run.Status = entities.RunCalculated
		run.TotalRevenueCents = calculated.TotalRevenueCents
		run.TotalRoyaltyCents = calculated.TotalRoyaltyCents
		run.TotalFeeCents = calculated.TotalFeeCents
		run.StatementCount = len(statements)
		run.Skipped = calculated.Skipped
		run.CalculatedAt = &now
		return s.Repo.UpdateRun(ctx, run)
	})
	if err != nil {
		return entities.RoyaltyRun{}, err
	}
	ResolveLogger(s.Logger).Info("royalty run calculated",
		"event", "royalty_run_calculated",
		"module", module,
		"layer", "application",
		"run_id", run.RunID,
		"statements", run.StatementCount,
		"skipped", len(run.Skipped),
		"royalty_cents", run.TotalRoyaltyCents,
	)
	return run, nil
}

// LockRun freezes a calculated run and issues its statements.
func (s Service) LockRun(ctx context.Context, actor ports.Actor, runID string) (entities.RoyaltyRun, error) {
	if !actor.IsAdmin {
		return entities.RoyaltyRun{}, domainerrors.ErrForbidden
	}
	var run entities.RoyaltyRun
	err := s.withinTx(ctx, func(ctx context.Context) error {
		var err error
		run, err = s.Repo.GetRunForUpdate(ctx, strings.TrimSpace(runID))
		if err != nil {
			return err
		}
		if !run.CanLock() {
			return domainerrors.ErrInvalidRunState
		}
		overlap, err := s.Repo.HasOverlappingLockedRun(ctx, run.PeriodStart, run.PeriodEnd, run.RunID)
		if err != nil {
			return err
		}
		if overlap {
			return domainerrors.ErrRunOverlap
		}
		statements, err := s.Repo.ListStatements(ctx, ports.StatementFilter{RunID: run.RunID})
		if err != nil {
			return err
		}
		now := s.now()
		for _, statement := range statements {
			issuedAt := now
			statement.IssuedAt = &issuedAt
			statement.UpdatedAt = now
			if err := s.Repo.UpdateStatement(ctx, statement); err != nil {
				return err
			}
			if err := s.appendStatementIssued(ctx, statement); err != nil {
				return err
			}
		}
		run.Status = entities.RunLocked
		run.LockedAt = &now
		return s.Repo.UpdateRun(ctx, run)
	})
	if err != nil {
		return entities.RoyaltyRun{}, err
	}
	ResolveLogger(s.Logger).Info("royalty run locked",
		"event", "royalty_run_locked",
		"module", module,
		"layer", "application",
		"run_id", run.RunID,
		"statements", run.StatementCount,
	)
	return run, nil
}

func (s Service) GetRun(ctx context.Context, actor ports.Actor, runID string) (entities.RoyaltyRun, error) {
	if !actor.IsAdmin {
		return entities.RoyaltyRun{}, domainerrors.ErrForbidden
	}
	return s.Repo.GetRun(ctx, strings.TrimSpace(runID))
}

func (s Service) ListRuns(ctx context.Context, actor ports.Actor, filter ports.RunFilter) ([]entities.RoyaltyRun, bool, error) {
	if !actor.IsAdmin {
		return nil, false, domainerrors.ErrForbidden
	}
	switch filter.Status {
	case "", entities.RunDraft, entities.RunCalculated, entities.RunLocked:
	default:
		return nil, false, domainerrors.ErrInvalidRunState
	}
	limit := normalizeLimit(filter.Limit)
	filter.Limit = limit + 1
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	runs, err := s.Repo.ListRuns(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if len(runs) > limit {
		return runs[:limit], true, nil
	}
	return runs, false, nil
}

// ListStatements scopes non-admins to their own issued statements.
func (s Service) ListStatements(ctx context.Context, actor ports.Actor, filter ports.StatementFilter) ([]entities.Statement, bool, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return nil, false, domainerrors.ErrForbidden
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, false, domainerrors.ErrInvalidStatementState
	}
	if !actor.IsAdmin {
		filter.CreatorID = actor.UserID
		filter.IssuedOnly = true
	}
	limit := normalizeLimit(filter.Limit)
	filter.Limit = limit + 1
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	statements, err := s.Repo.ListStatements(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if len(statements) > limit {
		return statements[:limit], true, nil
	}
	return statements, false, nil
}

func (s Service) GetStatement(ctx context.Context, actor ports.Actor, statementID string) (entities.Statement, error) {
	return s.visibleStatement(ctx, actor, statementID)
}

func (s Service) ReviewStatement(ctx context.Context, actor ports.Actor, statementID string) (entities.Statement, error) {
	return s.transition(ctx, actor, statementID, false, func(statement *entities.Statement, now time.Time) error {
		if !statement.Review(now) {
			return domainerrors.ErrInvalidStatementState
		}
		return nil
	})
}

func (s Service) DisputeStatement(ctx context.Context, actor ports.Actor, statementID string, reason string) (entities.Statement, error) {
	reason = strings.TrimSpace(reason)
	if !entities.ValidReason(reason) {
		return entities.Statement{}, domainerrors.ErrInvalidDisputeInput
	}
	statement, err := s.transition(ctx, actor, statementID, false, func(statement *entities.Statement, now time.Time) error {
		if !statement.Dispute(reason, now) {
			return domainerrors.ErrInvalidStatementState
		}
		return nil
	})
	if err != nil {
		return entities.Statement{}, err
	}
	ResolveLogger(s.Logger).Info("royalty statement disputed",
		"event", "royalty_statement_disputed",
		"module", module,
		"layer", "application",
		"statement_id", statement.StatementID,
		"creator_id", statement.CreatorID,
	)
	return statement, nil
}

// ResolveDispute closes a dispute with an adjustment and re-issues the
// statement so downstream balances pick up the new net.
func (s Service) ResolveDispute(ctx context.Context, actor ports.Actor, statementID string, adjustmentCents int64, note string) (entities.Statement, error) {
	if !actor.IsAdmin {
		return entities.Statement{}, domainerrors.ErrForbidden
	}
	note = strings.TrimSpace(note)
	if !entities.ValidReason(note) {
		return entities.Statement{}, domainerrors.ErrInvalidDisputeInput
	}
	return s.transition(ctx, actor, statementID, true, func(statement *entities.Statement, now time.Time) error {
		if statement.Status != entities.StatementDisputed {
			return domainerrors.ErrInvalidStatementState
		}
		if !statement.Resolve(adjustmentCents, note, now) {
			return domainerrors.ErrInvalidAdjustment
		}
		return nil
	})
}

// MarkStatementsPaid is driven by payout completion. Statements already paid
// are left alone; unknown ids are logged and skipped.
func (s Service) MarkStatementsPaid(ctx context.Context, payoutID string, statementIDs []string, paidAt time.Time) (int, error) {
	updated := 0
	err := s.withinTx(ctx, func(ctx context.Context) error {
		for _, statementID := range statementIDs {
			statement, err := s.Repo.GetStatement(ctx, strings.TrimSpace(statementID))
			if err != nil {
				if errors.Is(err, domainerrors.ErrStatementNotFound) {
					ResolveLogger(s.Logger).Warn("paid statement not found",
						"event", "royalty_paid_statement_missing",
						"module", module,
						"layer", "application",
						"statement_id", statementID,
						"payout_id", payoutID,
					)
					continue
				}
				return err
			}
			if !statement.MarkPaid(payoutID, paidAt.UTC()) {
				continue
			}
			if err := s.Repo.UpdateStatement(ctx, statement); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (s Service) EarningsSummary(ctx context.Context, actor ports.Actor, creatorID string) (EarningsSummary, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		creatorID = actor.UserID
	}
	if creatorID == "" || (creatorID != actor.UserID && !actor.IsAdmin) {
		return EarningsSummary{}, domainerrors.ErrForbidden
	}
	statements, err := s.Repo.ListStatements(ctx, ports.StatementFilter{CreatorID: creatorID, IssuedOnly: true})
	if err != nil {
		return EarningsSummary{}, err
	}
	summary := EarningsSummary{CreatorID: creatorID, StatementCount: len(statements)}
	index := map[string]int{}
	for _, statement := range statements {
		i, ok := index[statement.Currency]
		if !ok {
			i = len(summary.Currencies)
			index[statement.Currency] = i
			summary.Currencies = append(summary.Currencies, CurrencyTotals{
				Currency: statement.Currency,
				ByStatus: map[entities.StatementStatus]int64{},
			})
		}
		totals := &summary.Currencies[i]
		totals.EarningsCents += statement.EarningsCents
		totals.FeeCents += statement.FeeCents
		totals.AdjustmentCents += statement.AdjustmentCents
		totals.NetPayableCents += statement.NetPayableCents
		totals.ByStatus[statement.Status] += statement.NetPayableCents
		if statement.Status == entities.StatementPaid {
			totals.PaidCents += statement.NetPayableCents
		} else {
			totals.OutstandingCents += statement.NetPayableCents
		}
	}
	return summary, nil
}

// FeeBreakdown previews the platform fee on an amount.
func (s Service) FeeBreakdown(amountCents int64) (entities.FeeBreakdown, error) {
	if amountCents < 0 {
		return entities.FeeBreakdown{}, domainerrors.ErrInvalidRevenueInput
	}
	return entities.BreakdownFee(amountCents, s.feeBps()), nil
}

// ApplyLicenseTerms upserts the license projection unless a newer version is
// already on file.
func (s Service) ApplyLicenseTerms(ctx context.Context, terms entities.LicenseTerms) (bool, error) {
	terms.LicenseID = strings.TrimSpace(terms.LicenseID)
	if terms.LicenseID == "" || terms.RevShareBps < 0 || terms.RevShareBps > entities.MaxBps {
		return false, domainerrors.ErrInvalidRevenueInput
	}
	applied := false
	err := s.withinTx(ctx, func(ctx context.Context) error {
		existing, found, err := s.Repo.GetLicenseTerms(ctx, terms.LicenseID)
		if err != nil {
			return err
		}
		if found && existing.Version > terms.Version {
			return nil
		}
		terms.UpdatedAt = s.now()
		applied = true
		return s.Repo.PutLicenseTerms(ctx, terms)
	})
	return applied, err
}

func (s Service) ApplyOwnership(ctx context.Context, ownership entities.Ownership) (bool, error) {
	ownership.IPAssetID = strings.TrimSpace(ownership.IPAssetID)
	if ownership.IPAssetID == "" || ownership.TotalBps() > entities.MaxBps {
		return false, domainerrors.ErrInvalidRevenueInput
	}
	applied := false
	err := s.withinTx(ctx, func(ctx context.Context) error {
		existing, found, err := s.Repo.GetOwnership(ctx, ownership.IPAssetID)
		if err != nil {
			return err
		}
		if found && existing.Version > ownership.Version {
			return nil
		}
		ownership.UpdatedAt = s.now()
		applied = true
		return s.Repo.PutOwnership(ctx, ownership)
	})
	return applied, err
}

func (s Service) transition(
	ctx context.Context,
	actor ports.Actor,
	statementID string,
	reissue bool,
	apply func(statement *entities.Statement, now time.Time) error,
) (entities.Statement, error) {
	var statement entities.Statement
	err := s.withinTx(ctx, func(ctx context.Context) error {
		var err error
		statement, err = s.visibleStatement(ctx, actor, statementID)
		if err != nil {
			return err
		}
		if err := apply(&statement, s.now()); err != nil {
			return err
		}
		if err := s.Repo.UpdateStatement(ctx, statement); err != nil {
			return err
		}
		if reissue {
			return s.appendStatementIssued(ctx, statement)
		}
		return nil
	})
	if err != nil {
		return entities.Statement{}, err
	}
	return statement, nil
}

// visibleStatement hides unissued and foreign statements from non-admins.
func (s Service) visibleStatement(ctx context.Context, actor ports.Actor, statementID string) (entities.Statement, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return entities.Statement{}, domainerrors.ErrForbidden
	}
	statement, err := s.Repo.GetStatement(ctx, strings.TrimSpace(statementID))
	if err != nil {
		return entities.Statement{}, err
	}
	if actor.IsAdmin {
		return statement, nil
	}
	if statement.CreatorID != actor.UserID || !statement.Issued() {
		return entities.Statement{}, domainerrors.ErrStatementNotFound
	}
	return statement, nil
}

func (s Service) loadProjections(ctx context.Context, entry entities.RevenueEntry, input entities.CalculationInput) error {
	terms, found := input.Terms[entry.LicenseID]
	if !found {
		loaded, ok, err := s.Repo.GetLicenseTerms(ctx, entry.LicenseID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		terms = loaded
		input.Terms[entry.LicenseID] = terms
	}
	assetID := terms.IPAssetID
	if assetID == "" {
		assetID = entry.IPAssetID
	}
	if _, found := input.Ownership[assetID]; found || assetID == "" {
		return nil
	}
	ownership, ok, err := s.Repo.GetOwnership(ctx, assetID)
	if err != nil {
		return err
	}
	if ok {
		input.Ownership[assetID] = ownership
	}
	return nil
}

func (s Service) feeBps() int {
	switch {
	case s.PlatformFeeBps < 0:
		return 0
	case s.PlatformFeeBps == 0:
		return defaultFeeBps
	case s.PlatformFeeBps > entities.MaxBps:
		return entities.MaxBps
	default:
		return s.PlatformFeeBps
	}
}

func (s Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithinTx(ctx, fn)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
