package workers

import (
	"context"
	"testing"
	"time"

	"ygbackend/contexts/rights-management/license-service/adapters/memory"
	"ygbackend/contexts/rights-management/license-service/domain/entities"
	"ygbackend/contexts/rights-management/license-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingOutbox struct{ events []ports.EventEnvelope }

func (o *recordingOutbox) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	o.events = append(o.events, envelope)
	return nil
}

func seedActive(t *testing.T, store *memory.Store, id string, end time.Time) {
	t.Helper()
	err := store.CreateLicense(context.Background(), entities.License{
		LicenseID:   id,
		IPAssetID:   "asset-1",
		LicensorID:  "owner",
		LicenseeID:  "brand",
		Status:      entities.LicenseStatusActive,
		Scope:       entities.Scope{Territories: []string{"US"}},
		StartDate:   end.AddDate(0, -6, 0),
		EndDate:     end,
		Currency:    "usd",
		Version:     1,
		CreatedAt:   end.AddDate(0, -6, 0),
		UpdatedAt:   end.AddDate(0, -6, 0),
		RevShareBps: 500,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestExpirySweeperExpiresEndedLicenses(t *testing.T) {
	now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	outbox := &recordingOutbox{}
	seedActive(t, store, "ended", now.Add(-time.Hour))
	seedActive(t, store, "running", now.Add(48*time.Hour))

	sweeper := ExpirySweeper{Licenses: store, Outbox: outbox, Tx: store, Clock: fixedClock{now: now}, IDGenerator: store}
	count, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 1 || len(outbox.events) != 1 || outbox.events[0].EventType != contractsv1.EventLicenseExpired {
		t.Fatalf("expected one expiry event, got %d %+v", count, outbox.events)
	}
	ended, _ := store.GetLicense(context.Background(), "ended")
	if ended.Status != entities.LicenseStatusExpired {
		t.Fatalf("expected expired status, got %s", ended.Status)
	}

	count, err = sweeper.RunOnce(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("expected idle second sweep, got %d %v", count, err)
	}
}

func TestExpiryNotifierSendsOnce(t *testing.T) {
	now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	outbox := &recordingOutbox{}
	seedActive(t, store, "soon", now.Add(3*24*time.Hour))
	seedActive(t, store, "later", now.Add(30*24*time.Hour))

	notifier := ExpiryNotifier{Licenses: store, Outbox: outbox, Tx: store, Clock: fixedClock{now: now}, IDGenerator: store, Window: 7 * 24 * time.Hour}
	count, err := notifier.RunOnce(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("expected one notice, got %d %v", count, err)
	}
	if outbox.events[0].EventType != contractsv1.EventLicenseExpiring || outbox.events[0].PartitionKey != "soon" {
		t.Fatalf("unexpected event: %+v", outbox.events[0])
	}
	count, err = notifier.RunOnce(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("expected notice to be sent once, got %d %v", count, err)
	}
}
