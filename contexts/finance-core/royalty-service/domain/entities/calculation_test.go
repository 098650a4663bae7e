package entities

import (
	"testing"
	"time"
)

func TestSplitLargestRemainderSumsExactly(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		owners []OwnerShare
		want   map[string]int64
	}{
		{
			name:   "even thirds",
			amount: 100,
			owners: []OwnerShare{{CreatorID: "c", ShareBps: 3334}, {CreatorID: "a", ShareBps: 3333}, {CreatorID: "b", ShareBps: 3333}},
			want:   map[string]int64{"a": 33, "b": 33, "c": 34},
		},
		{
			name:   "ties go to lowest creator id",
			amount: 1,
			owners: []OwnerShare{{CreatorID: "b", ShareBps: 5000}, {CreatorID: "a", ShareBps: 5000}},
			want:   map[string]int64{"a": 1, "b": 0},
		},
		{
			name:   "largest remainder wins",
			amount: 7,
			owners: []OwnerShare{{CreatorID: "a", ShareBps: 1500}, {CreatorID: "b", ShareBps: 8500}},
			want:   map[string]int64{"a": 1, "b": 6},
		},
		{
			name:   "single owner",
			amount: 999,
			owners: []OwnerShare{{CreatorID: "solo", ShareBps: 10000}},
			want:   map[string]int64{"solo": 999},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitLargestRemainder(tc.amount, tc.owners)
			var sum int64
			for creator, want := range tc.want {
				if got[creator] != want {
					t.Fatalf("%s: expected %d, got %d (%v)", creator, want, got[creator], got)
				}
				sum += got[creator]
			}
			if sum != tc.amount {
				t.Fatalf("expected parts to sum to %d, got %d", tc.amount, sum)
			}
		})
	}
}

func TestSplitLargestRemainderWithoutOwners(t *testing.T) {
	if got := SplitLargestRemainder(100, nil); len(got) != 0 {
		t.Fatalf("expected empty split, got %v", got)
	}
	if got := SplitLargestRemainder(0, []OwnerShare{{CreatorID: "a", ShareBps: 10000}}); got["a"] != 0 {
		t.Fatalf("expected zero split, got %v", got)
	}
}

func TestBreakdownFeeFloors(t *testing.T) {
	got := BreakdownFee(999, 1000)
	if got.FeeCents != 99 || got.NetCents != 900 {
		t.Fatalf("unexpected breakdown %+v", got)
	}
	if zero := BreakdownFee(-5, 1000); zero.FeeCents != 0 {
		t.Fatalf("expected no fee on negative amounts, got %+v", zero)
	}
}

func TestCalculate(t *testing.T) {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	entries := []RevenueEntry{
		{EntryID: "r1", LicenseID: "lic-1", GrossCents: 10001, Currency: "usd", OccurredAt: start},
		{EntryID: "r2", LicenseID: "lic-1", GrossCents: 5000, Currency: "usd", OccurredAt: end.Add(-time.Second)},
		{EntryID: "r3", LicenseID: "lic-1", GrossCents: 7000, Currency: "usd", OccurredAt: end},
		{EntryID: "r4", LicenseID: "lic-unknown", GrossCents: 100, Currency: "usd", OccurredAt: start},
		{EntryID: "r5", LicenseID: "lic-2", GrossCents: 100, Currency: "usd", OccurredAt: start},
	}
	result := Calculate(CalculationInput{
		RunID:       "run-1",
		PeriodStart: start,
		PeriodEnd:   end,
		Entries:     entries,
		Terms: map[string]LicenseTerms{
			"lic-1": {LicenseID: "lic-1", IPAssetID: "asset-1", RevShareBps: 2000},
			"lic-2": {LicenseID: "lic-2", IPAssetID: "asset-orphan", RevShareBps: 5000},
		},
		Ownership: map[string]Ownership{
			"asset-1": {IPAssetID: "asset-1", Owners: []OwnerShare{{CreatorID: "bob", ShareBps: 4000}, {CreatorID: "alice", ShareBps: 6000}}},
		},
		FeeBps: 1000,
	})

	if result.TotalRevenueCents != 15201 {
		t.Fatalf("expected in-period revenue 15201, got %d", result.TotalRevenueCents)
	}
	// r1: floor(10001*0.2)=2000, r2: 1000.
	if result.TotalRoyaltyCents != 3000 {
		t.Fatalf("expected royalty 3000, got %d", result.TotalRoyaltyCents)
	}
	if len(result.Skipped) != 2 || result.Skipped[0].Reason != SkipMissingTerms || result.Skipped[1].Reason != SkipMissingOwnership {
		t.Fatalf("unexpected skipped entries %+v", result.Skipped)
	}
	if len(result.Statements) != 2 {
		t.Fatalf("expected two statements, got %d", len(result.Statements))
	}
	alice, bob := result.Statements[0], result.Statements[1]
	if alice.CreatorID != "alice" || alice.EarningsCents != 1800 || alice.FeeCents != 180 || alice.NetPayableCents != 1620 {
		t.Fatalf("unexpected alice statement %+v", alice)
	}
	if bob.CreatorID != "bob" || bob.EarningsCents != 1200 || len(bob.Lines) != 2 {
		t.Fatalf("unexpected bob statement %+v", bob)
	}
	if result.TotalFeeCents != alice.FeeCents+bob.FeeCents {
		t.Fatalf("fee total mismatch")
	}
}

func TestStatementTransitions(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	statement := Statement{EarningsCents: 1000, FeeCents: 100, NetPayableCents: 900, Status: StatementPending}
	if !statement.Review(now) || statement.Review(now) {
		t.Fatalf("expected review to succeed exactly once")
	}
	if !statement.Dispute("missing line", now) {
		t.Fatalf("expected reviewed statement to be disputable")
	}
	if statement.Resolve(-901, "too much", now) {
		t.Fatalf("expected negative net to be rejected")
	}
	if statement.Status != StatementDisputed {
		t.Fatalf("rejected resolve must not change status")
	}
	if !statement.Resolve(-100, "duplicate revenue", now) || statement.NetPayableCents != 800 {
		t.Fatalf("unexpected resolved statement %+v", statement)
	}
	if statement.Dispute("again", now) {
		t.Fatalf("resolved statements cannot be disputed again")
	}
	if !statement.MarkPaid("payout-1", now) || statement.MarkPaid("payout-2", now) || statement.PayoutID != "payout-1" {
		t.Fatalf("expected single paid transition, got %+v", statement)
	}
}

func TestRunOverlaps(t *testing.T) {
	jan := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	feb := jan.AddDate(0, 1, 0)
	mar := jan.AddDate(0, 2, 0)
	run := RoyaltyRun{PeriodStart: jan, PeriodEnd: feb}
	if run.Overlaps(feb, mar) {
		t.Fatalf("adjacent periods must not overlap")
	}
	if !run.Overlaps(jan.AddDate(0, 0, 15), mar) {
		t.Fatalf("expected overlap")
	}
}
