package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"ygbackend/contexts/finance-core/royalty-service/adapters/memory"
	"ygbackend/contexts/finance-core/royalty-service/domain/entities"
	domainerrors "ygbackend/contexts/finance-core/royalty-service/domain/errors"
	"ygbackend/contexts/finance-core/royalty-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type sequenceIDs struct{ next int }

func (s *sequenceIDs) NewID(context.Context) (string, error) {
	s.next++
	return fmt.Sprintf("id-%03d", s.next), nil
}

type recordingOutbox struct{ events []ports.EventEnvelope }

func (o *recordingOutbox) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	o.events = append(o.events, envelope)
	return nil
}

var (
	admin = ports.Actor{UserID: "ops", IsAdmin: true}
	alice = ports.Actor{UserID: "alice"}
	bob   = ports.Actor{UserID: "bob"}

	january  = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	february = time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	march    = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
)

func newTestService() (Service, *recordingOutbox) {
	store := memory.NewStore()
	outbox := &recordingOutbox{}
	return Service{
		Repo:           store,
		Idempotency:    store,
		Outbox:         outbox,
		Tx:             store,
		Clock:          &fixedClock{now: time.Date(2026, time.February, 3, 10, 0, 0, 0, time.UTC)},
		IDGen:          &sequenceIDs{},
		PlatformFeeBps: 1000,
	}, outbox
}

func seedProjections(t *testing.T, svc Service) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.ApplyLicenseTerms(ctx, entities.LicenseTerms{LicenseID: "lic-1", IPAssetID: "asset-1", RevShareBps: 2500, Version: 1}); err != nil {
		t.Fatalf("terms: %v", err)
	}
	if _, err := svc.ApplyOwnership(ctx, entities.Ownership{IPAssetID: "asset-1", Version: 1, Owners: []entities.OwnerShare{
		{CreatorID: "alice", ShareBps: 5000},
		{CreatorID: "bob", ShareBps: 5000},
	}}); err != nil {
		t.Fatalf("ownership: %v", err)
	}
}

func recordRevenue(t *testing.T, svc Service, entryID string, licenseID string, cents int64, at time.Time) {
	t.Helper()
	if _, err := svc.RecordRevenue(context.Background(), admin, RecordRevenueInput{
		EntryID:    entryID,
		LicenseID:  licenseID,
		GrossCents: cents,
		Currency:   "USD",
		OccurredAt: at,
		Source:     "stripe",
	}); err != nil {
		t.Fatalf("record revenue %s: %v", entryID, err)
	}
}

func lockedJanuaryRun(t *testing.T, svc Service) entities.RoyaltyRun {
	t.Helper()
	ctx := context.Background()
	seedProjections(t, svc)
	recordRevenue(t, svc, "rev-1", "lic-1", 10001, january.Add(24*time.Hour))
	created, err := svc.CreateRun(ctx, admin, "run-jan", january, february)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if _, err := svc.CalculateRun(ctx, admin, created.Run.RunID); err != nil {
		t.Fatalf("calculate: %v", err)
	}
	locked, err := svc.LockRun(ctx, admin, created.Run.RunID)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	return locked
}

func statementFor(t *testing.T, svc Service, actor ports.Actor) entities.Statement {
	t.Helper()
	statements, _, err := svc.ListStatements(context.Background(), actor, ports.StatementFilter{})
	if err != nil || len(statements) != 1 {
		t.Fatalf("expected one statement for %s, got %d err=%v", actor.UserID, len(statements), err)
	}
	return statements[0]
}

func TestRecordRevenueIsIdempotentByEntryID(t *testing.T) {
	svc, _ := newTestService()
	seedProjections(t, svc)
	ctx := context.Background()
	input := RecordRevenueInput{EntryID: "rev-1", LicenseID: "lic-1", GrossCents: 500, Currency: "usd", OccurredAt: january}

	first, err := svc.RecordRevenue(ctx, admin, input)
	if err != nil || !first.Created {
		t.Fatalf("expected created entry, got %+v err=%v", first, err)
	}
	if first.Entry.IPAssetID != "asset-1" {
		t.Fatalf("expected asset from license terms, got %q", first.Entry.IPAssetID)
	}
	again, err := svc.RecordRevenue(ctx, admin, input)
	if err != nil || again.Created {
		t.Fatalf("expected replay without insert, got %+v err=%v", again, err)
	}
	input.GrossCents = 501
	if _, err := svc.RecordRevenue(ctx, admin, input); !errors.Is(err, domainerrors.ErrRevenueConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.RecordRevenue(ctx, alice, input); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.RecordRevenue(ctx, admin, RecordRevenueInput{EntryID: "rev-2", LicenseID: "lic-1", GrossCents: 5, Currency: "dollars", OccurredAt: january}); !errors.Is(err, domainerrors.ErrInvalidRevenueInput) {
		t.Fatalf("expected invalid currency, got %v", err)
	}
}

func TestCreateRunValidatesPeriodAndReplays(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateRun(ctx, admin, "", february, january); !errors.Is(err, domainerrors.ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
	first, err := svc.CreateRun(ctx, admin, "key-1", january, february)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	replay, err := svc.CreateRun(ctx, admin, "key-1", january, february)
	if err != nil || !replay.Replayed || replay.Run.RunID != first.Run.RunID {
		t.Fatalf("expected replay of %s, got %+v err=%v", first.Run.RunID, replay, err)
	}
	if _, err := svc.CreateRun(ctx, admin, "key-1", january, march); !errors.Is(err, domainerrors.ErrIdempotencyKeyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestLockedRunBlocksOverlappingRuns(t *testing.T) {
	svc, _ := newTestService()
	lockedJanuaryRun(t, svc)
	ctx := context.Background()
	if _, err := svc.CreateRun(ctx, admin, "", january.Add(15*24*time.Hour), march); !errors.Is(err, domainerrors.ErrRunOverlap) {
		t.Fatalf("expected overlap, got %v", err)
	}
	if _, err := svc.CreateRun(ctx, admin, "", february, march); err != nil {
		t.Fatalf("adjacent run should be allowed: %v", err)
	}
}

func TestCalculateAndLockIssuesStatements(t *testing.T) {
	svc, outbox := newTestService()
	ctx := context.Background()
	seedProjections(t, svc)
	recordRevenue(t, svc, "rev-1", "lic-1", 10001, january.Add(time.Hour))
	recordRevenue(t, svc, "rev-2", "lic-missing", 700, january.Add(2*time.Hour))
	recordRevenue(t, svc, "rev-3", "lic-1", 9999, february)

	created, err := svc.CreateRun(ctx, admin, "", january, february)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.LockRun(ctx, admin, created.Run.RunID); !errors.Is(err, domainerrors.ErrInvalidRunState) {
		t.Fatalf("draft runs cannot be locked, got %v", err)
	}
	run, err := svc.CalculateRun(ctx, admin, created.Run.RunID)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// floor(10001 * 0.25) = 2500, split 1250/1250, fee 125 each.
	if run.Status != entities.RunCalculated || run.TotalRoyaltyCents != 2500 || run.TotalFeeCents != 250 || run.StatementCount != 2 {
		t.Fatalf("unexpected run totals %+v", run)
	}
	if len(run.Skipped) != 1 || run.Skipped[0].EntryID != "rev-2" || run.Skipped[0].Reason != entities.SkipMissingTerms {
		t.Fatalf("unexpected skipped entries %+v", run.Skipped)
	}

	// Creators do not see statements before the run is locked.
	if statements, _, err := svc.ListStatements(ctx, alice, ports.StatementFilter{}); err != nil || len(statements) != 0 {
		t.Fatalf("expected no visible statements before lock, got %d err=%v", len(statements), err)
	}

	recalculated, err := svc.CalculateRun(ctx, admin, run.RunID)
	if err != nil || recalculated.StatementCount != 2 {
		t.Fatalf("recalculate: %+v err=%v", recalculated, err)
	}
	all, _, err := svc.ListStatements(ctx, admin, ports.StatementFilter{RunID: run.RunID})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected statements replaced rather than duplicated, got %d err=%v", len(all), err)
	}

	locked, err := svc.LockRun(ctx, admin, run.RunID)
	if err != nil || locked.Status != entities.RunLocked || locked.LockedAt == nil {
		t.Fatalf("lock: %+v err=%v", locked, err)
	}
	if _, err := svc.CalculateRun(ctx, admin, run.RunID); !errors.Is(err, domainerrors.ErrInvalidRunState) {
		t.Fatalf("locked runs cannot be recalculated, got %v", err)
	}

	if len(outbox.events) != 2 {
		t.Fatalf("expected one issued event per statement, got %d", len(outbox.events))
	}
	var data contractsv1.RoyaltyStatementIssuedData
	if err := json.Unmarshal(outbox.events[0].Data, &data); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if outbox.events[0].EventType != contractsv1.EventRoyaltyStatementIssued || data.NetPayableCents != 1125 || data.Currency != "usd" {
		t.Fatalf("unexpected event %+v data=%+v", outbox.events[0], data)
	}

	mine := statementFor(t, svc, alice)
	if mine.CreatorID != "alice" || mine.EarningsCents != 1250 || mine.NetPayableCents != 1125 || !mine.Issued() {
		t.Fatalf("unexpected statement %+v", mine)
	}
	if _, err := svc.GetStatement(ctx, bob, mine.StatementID); !errors.Is(err, domainerrors.ErrStatementNotFound) {
		t.Fatalf("expected foreign statement to be hidden, got %v", err)
	}
}

func TestDisputeLifecycle(t *testing.T) {
	svc, outbox := newTestService()
	lockedJanuaryRun(t, svc)
	ctx := context.Background()
	statement := statementFor(t, svc, alice)

	if _, err := svc.DisputeStatement(ctx, alice, statement.StatementID, "  "); !errors.Is(err, domainerrors.ErrInvalidDisputeInput) {
		t.Fatalf("expected reason to be required, got %v", err)
	}
	if _, err := svc.ReviewStatement(ctx, alice, statement.StatementID); err != nil {
		t.Fatalf("review: %v", err)
	}
	disputed, err := svc.DisputeStatement(ctx, alice, statement.StatementID, "missing March sync revenue")
	if err != nil || disputed.Status != entities.StatementDisputed {
		t.Fatalf("dispute: %+v err=%v", disputed, err)
	}
	if _, err := svc.ResolveDispute(ctx, alice, statement.StatementID, 100, "self-approved"); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("only admins resolve disputes, got %v", err)
	}
	if _, err := svc.ResolveDispute(ctx, admin, statement.StatementID, -5000, "clawback"); !errors.Is(err, domainerrors.ErrInvalidAdjustment) {
		t.Fatalf("expected negative net to be rejected, got %v", err)
	}

	issuedBefore := len(outbox.events)
	resolved, err := svc.ResolveDispute(ctx, admin, statement.StatementID, 250, "added missing revenue")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != entities.StatementResolved || resolved.NetPayableCents != statement.NetPayableCents+250 {
		t.Fatalf("unexpected resolved statement %+v", resolved)
	}
	if len(outbox.events) != issuedBefore+1 {
		t.Fatalf("expected resolution to re-issue the statement")
	}
	if _, err := svc.DisputeStatement(ctx, alice, statement.StatementID, "again"); !errors.Is(err, domainerrors.ErrInvalidStatementState) {
		t.Fatalf("expected resolved statement to stay closed, got %v", err)
	}
}

func TestMarkStatementsPaidAndSummary(t *testing.T) {
	svc, _ := newTestService()
	lockedJanuaryRun(t, svc)
	ctx := context.Background()
	statement := statementFor(t, svc, alice)

	paidAt := time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)
	updated, err := svc.MarkStatementsPaid(ctx, "payout-1", []string{statement.StatementID, "missing"}, paidAt)
	if err != nil || updated != 1 {
		t.Fatalf("expected one statement paid, got %d err=%v", updated, err)
	}
	again, err := svc.MarkStatementsPaid(ctx, "payout-2", []string{statement.StatementID}, paidAt)
	if err != nil || again != 0 {
		t.Fatalf("expected paid statement to be left alone, got %d err=%v", again, err)
	}

	summary, err := svc.EarningsSummary(ctx, alice, "")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.StatementCount != 1 || len(summary.Currencies) != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	totals := summary.Currencies[0]
	if totals.PaidCents != statement.NetPayableCents || totals.OutstandingCents != 0 || totals.ByStatus[entities.StatementPaid] != statement.NetPayableCents {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if _, err := svc.EarningsSummary(ctx, bob, "alice"); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden summary for another creator, got %v", err)
	}
	if _, err := svc.EarningsSummary(ctx, admin, "alice"); err != nil {
		t.Fatalf("admin summary: %v", err)
	}
}

func TestProjectionsIgnoreStaleVersions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if applied, err := svc.ApplyLicenseTerms(ctx, entities.LicenseTerms{LicenseID: "lic-1", IPAssetID: "asset-1", RevShareBps: 3000, Version: 2}); err != nil || !applied {
		t.Fatalf("apply v2: %v", err)
	}
	if applied, err := svc.ApplyLicenseTerms(ctx, entities.LicenseTerms{LicenseID: "lic-1", IPAssetID: "asset-1", RevShareBps: 1000, Version: 1}); err != nil || applied {
		t.Fatalf("expected stale terms to be ignored, applied=%v err=%v", applied, err)
	}
	terms, _, _ := svc.Repo.GetLicenseTerms(ctx, "lic-1")
	if terms.RevShareBps != 3000 {
		t.Fatalf("expected newest terms to win, got %+v", terms)
	}
	if _, err := svc.ApplyOwnership(ctx, entities.Ownership{IPAssetID: "asset-1", Owners: []entities.OwnerShare{{CreatorID: "a", ShareBps: 10001}}}); !errors.Is(err, domainerrors.ErrInvalidRevenueInput) {
		t.Fatalf("expected over-allocated ownership to be rejected, got %v", err)
	}
}

func TestFeeBreakdown(t *testing.T) {
	svc, _ := newTestService()
	breakdown, err := svc.FeeBreakdown(2599)
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if breakdown.FeeCents != 259 || breakdown.NetCents != 2340 || breakdown.FeeBps != 1000 {
		t.Fatalf("unexpected breakdown %+v", breakdown)
	}
	svc.PlatformFeeBps = -1
	free, _ := svc.FeeBreakdown(2599)
	if free.FeeCents != 0 {
		t.Fatalf("expected disabled fee, got %+v", free)
	}
}
