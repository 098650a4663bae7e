package entities

import (
	"testing"
	"time"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name    string
		account ConnectedAccount
		want    AccountStatus
	}{
		{"fresh", ConnectedAccount{}, AccountOnboarding},
		{"active", ConnectedAccount{ChargesEnabled: true, PayoutsEnabled: true, DetailsSubmitted: true}, AccountActive},
		{"restricted", ConnectedAccount{DetailsSubmitted: true, RequirementsDue: []string{"external_account"}}, AccountRestricted},
		{"submitted without requirements", ConnectedAccount{DetailsSubmitted: true}, AccountOnboarding},
		{"disabled wins", ConnectedAccount{ChargesEnabled: true, PayoutsEnabled: true, DetailsSubmitted: true, DisabledReason: "rejected.fraud"}, AccountDisabled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus(tc.account); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestPayoutAttemptsAndFailure(t *testing.T) {
	now := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	payout := Payout{Status: PayoutPending, NextAttemptAt: now}

	for attempt := 1; attempt < MaxPayoutAttempts; attempt++ {
		if !payout.BeginAttempt(now, time.Minute) {
			t.Fatalf("attempt %d: expected claim", attempt)
		}
		if payout.BeginAttempt(now, time.Minute) {
			t.Fatalf("attempt %d: leased payout must not be claimed twice", attempt)
		}
		if payout.RecordFailure("card_declined", now, time.Hour) {
			t.Fatalf("attempt %d: failure should not be final yet", attempt)
		}
		if payout.BeginAttempt(now, time.Minute) {
			t.Fatalf("attempt %d: payout must wait for its retry delay", attempt)
		}
		now = payout.NextAttemptAt
	}
	if !payout.BeginAttempt(now, time.Minute) {
		t.Fatalf("expected final attempt to be claimable")
	}
	if !payout.RecordFailure("card_declined", now, time.Hour) || payout.Status != PayoutFailed {
		t.Fatalf("expected final failure, got %+v", payout)
	}
}

func TestExpiredLeaseIsReclaimable(t *testing.T) {
	now := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	payout := Payout{Status: PayoutPending, NextAttemptAt: now}
	payout.BeginAttempt(now, 10*time.Minute)
	if !payout.BeginAttempt(now.Add(11*time.Minute), 10*time.Minute) || payout.Attempts != 2 {
		t.Fatalf("expected stale processing payout to be reclaimed, got %+v", payout)
	}
}

func TestBalances(t *testing.T) {
	balances := Balances([]LedgerEntry{
		{Currency: "usd", AmountCents: 100, Status: LedgerAvailable},
		{Currency: "usd", AmountCents: 50, Status: LedgerReserved},
		{Currency: "eur", AmountCents: 70, Status: LedgerPaid},
		{Currency: "usd", AmountCents: 25, Status: LedgerPaid},
	})
	if len(balances) != 2 {
		t.Fatalf("expected two currencies, got %+v", balances)
	}
	if usd := balances[0]; usd.AvailableCents != 100 || usd.ReservedCents != 50 || usd.PaidCents != 25 {
		t.Fatalf("unexpected usd balance %+v", usd)
	}
	if eur := balances[1]; eur.PaidCents != 70 {
		t.Fatalf("unexpected eur balance %+v", eur)
	}
}
