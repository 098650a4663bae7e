package workers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ygbackend/contexts/finance-core/royalty-service/adapters/memory"
	"ygbackend/contexts/finance-core/royalty-service/application"
	"ygbackend/contexts/finance-core/royalty-service/domain/entities"
	"ygbackend/contexts/finance-core/royalty-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type capturingSubscriber struct {
	handlers map[string]func(context.Context, ports.EventEnvelope) error
	groups   map[string]string
}

func newCapturingSubscriber() *capturingSubscriber {
	return &capturingSubscriber{
		handlers: map[string]func(context.Context, ports.EventEnvelope) error{},
		groups:   map[string]string{},
	}
}

func (s *capturingSubscriber) Subscribe(_ context.Context, topic string, group string, handler func(context.Context, ports.EventEnvelope) error) error {
	s.handlers[topic] = handler
	s.groups[topic] = group
	return nil
}

type mapDedup struct{ seen map[string]bool }

func (d *mapDedup) ReserveEvent(_ context.Context, eventID string, _ string, _ time.Time) (bool, error) {
	if d.seen[eventID] {
		return true, nil
	}
	d.seen[eventID] = true
	return false, nil
}

func (d *mapDedup) ReleaseEvent(_ context.Context, eventID string) error {
	delete(d.seen, eventID)
	return nil
}

func envelope(t *testing.T, eventID string, eventType string, data any) ports.EventEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ports.EventEnvelope{EventID: eventID, EventType: eventType, OccurredAt: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), Data: raw}
}

func TestProjectionConsumerAppliesTermsAndOwnership(t *testing.T) {
	store := memory.NewStore()
	subscriber := newCapturingSubscriber()
	consumer := ProjectionConsumer{
		Subscriber: subscriber,
		Service:    application.Service{Repo: store, Tx: store, Clock: store, IDGen: store},
		Dedup:      &mapDedup{seen: map[string]bool{}},
	}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if subscriber.groups[contractsv1.EventLicenseAmended] != "royalty-projections-cg" {
		t.Fatalf("unexpected group %q", subscriber.groups[contractsv1.EventLicenseAmended])
	}

	ctx := context.Background()
	activated := envelope(t, "evt-1", contractsv1.EventLicenseActivated, contractsv1.LicenseData{
		LicenseID: "lic-1", IPAssetID: "asset-1", LicensorID: "alice", RevShareBps: 2000, Version: 1,
	})
	if err := subscriber.handlers[contractsv1.EventLicenseActivated](ctx, activated); err != nil {
		t.Fatalf("activated: %v", err)
	}
	amended := envelope(t, "evt-2", contractsv1.EventLicenseAmended, contractsv1.LicenseData{
		LicenseID: "lic-1", IPAssetID: "asset-1", LicensorID: "alice", RevShareBps: 3500, Version: 2,
	})
	if err := subscriber.handlers[contractsv1.EventLicenseAmended](ctx, amended); err != nil {
		t.Fatalf("amended: %v", err)
	}
	terms, found, _ := store.GetLicenseTerms(ctx, "lic-1")
	if !found || terms.RevShareBps != 3500 || terms.Version != 2 {
		t.Fatalf("unexpected terms %+v", terms)
	}

	ownership := envelope(t, "evt-3", contractsv1.EventIPAssetOwnershipChanged, contractsv1.IPAssetOwnershipChangedData{
		AssetID: "asset-1",
		Owners:  []contractsv1.OwnerShare{{CreatorID: "alice", ShareBps: 7000}, {CreatorID: "bob", ShareBps: 3000}},
		Version: 4,
	})
	if err := subscriber.handlers[contractsv1.EventIPAssetOwnershipChanged](ctx, ownership); err != nil {
		t.Fatalf("ownership: %v", err)
	}
	owners, found, _ := store.GetOwnership(ctx, "asset-1")
	if !found || len(owners.Owners) != 2 || owners.Owners[0].ShareBps != 7000 || owners.Version != 4 {
		t.Fatalf("unexpected ownership %+v", owners)
	}

	bad := ports.EventEnvelope{EventID: "evt-4", EventType: contractsv1.EventLicenseAmended, Data: []byte("not json")}
	if err := subscriber.handlers[contractsv1.EventLicenseAmended](ctx, bad); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPayoutCompletedConsumerMarksStatementsPaid(t *testing.T) {
	store := memory.NewStore()
	svc := application.Service{Repo: store, Tx: store, Clock: store, IDGen: store}
	ctx := context.Background()
	issuedAt := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	if err := store.ReplaceStatements(ctx, "run-1", []entities.Statement{{
		StatementID:     "st-1",
		RunID:           "run-1",
		CreatorID:       "alice",
		Currency:        "usd",
		EarningsCents:   1000,
		FeeCents:        100,
		NetPayableCents: 900,
		Status:          entities.StatementReviewed,
		IssuedAt:        &issuedAt,
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	subscriber := newCapturingSubscriber()
	consumer := PayoutCompletedConsumer{Subscriber: subscriber, Service: svc, Dedup: &mapDedup{seen: map[string]bool{}}}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	event := envelope(t, "evt-9", contractsv1.EventPayoutCompleted, contractsv1.PayoutData{
		PayoutID:     "payout-1",
		UserID:       "alice",
		AmountCents:  900,
		Currency:     "usd",
		StatementIDs: []string{"st-1"},
	})
	for i := 0; i < 2; i++ {
		if err := subscriber.handlers[contractsv1.EventPayoutCompleted](ctx, event); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	statement, err := store.GetStatement(ctx, "st-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if statement.Status != entities.StatementPaid || statement.PayoutID != "payout-1" || statement.PaidAt == nil || !statement.PaidAt.Equal(event.OccurredAt) {
		t.Fatalf("unexpected statement %+v", statement)
	}
}

func TestDisabledConsumersDoNotSubscribe(t *testing.T) {
	subscriber := newCapturingSubscriber()
	if err := (ProjectionConsumer{Subscriber: subscriber, Disabled: true}).Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := (PayoutCompletedConsumer{Subscriber: subscriber, Disabled: true}).Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(subscriber.handlers) != 0 {
		t.Fatalf("expected no subscriptions, got %d", len(subscriber.handlers))
	}
}
