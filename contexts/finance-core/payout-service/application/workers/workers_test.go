package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ygbackend/contexts/finance-core/payout-service/adapters/memory"
	"ygbackend/contexts/finance-core/payout-service/application"
	"ygbackend/contexts/finance-core/payout-service/domain/entities"
	"ygbackend/contexts/finance-core/payout-service/ports"
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

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type constantRetry time.Duration

func (r constantRetry) Delay(int) time.Duration { return time.Duration(r) }

func envelope(t *testing.T, eventID string, data any) ports.EventEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ports.EventEnvelope{EventID: eventID, EventType: contractsv1.EventRoyaltyStatementIssued, Data: raw}
}

func TestStatementIssuedConsumerCreditsLedgerOnce(t *testing.T) {
	store := memory.NewStore()
	subscriber := newCapturingSubscriber()
	consumer := StatementIssuedConsumer{
		Subscriber: subscriber,
		Service:    application.Service{Repo: store, Tx: store, Clock: store, IDGen: store},
		Dedup:      &mapDedup{seen: map[string]bool{}},
	}
	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	handler := subscriber.handlers[contractsv1.EventRoyaltyStatementIssued]
	if handler == nil || subscriber.groups[contractsv1.EventRoyaltyStatementIssued] != "payout-ledger-cg" {
		t.Fatalf("expected statement_issued subscription, got %+v", subscriber.groups)
	}

	event := envelope(t, "evt-1", contractsv1.RoyaltyStatementIssuedData{
		StatementID:     "st-1",
		CreatorID:       "alice",
		NetPayableCents: 4200,
		Currency:        "usd",
	})
	if err := handler(ctx, event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := handler(ctx, event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	entries, _ := store.ListLedgerEntries(ctx, ports.LedgerFilter{UserID: "alice"})
	if len(entries) != 1 || entries[0].AmountCents != 4200 || entries[0].Status != entities.LedgerAvailable {
		t.Fatalf("expected one available entry, got %+v", entries)
	}

	bad := ports.EventEnvelope{EventID: "evt-bad", EventType: contractsv1.EventRoyaltyStatementIssued, Data: []byte("{")}
	if err := handler(ctx, bad); err == nil {
		t.Fatalf("expected malformed payload to fail")
	}
}

// flakyLedger fails the first ledger write to simulate a transient outage.
type flakyLedger struct {
	*memory.Store
	failures int
}

func (f *flakyLedger) SaveLedgerEntry(ctx context.Context, entry entities.LedgerEntry) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("ledger unavailable")
	}
	return f.Store.SaveLedgerEntry(ctx, entry)
}

func TestStatementIssuedConsumerRedeliveryAfterFailureCredits(t *testing.T) {
	store := memory.NewStore()
	repo := &flakyLedger{Store: store, failures: 1}
	subscriber := newCapturingSubscriber()
	dedup := &mapDedup{seen: map[string]bool{}}
	consumer := StatementIssuedConsumer{
		Subscriber: subscriber,
		Service:    application.Service{Repo: repo, Tx: store, Clock: store, IDGen: store},
		Dedup:      dedup,
	}
	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	handler := subscriber.handlers[contractsv1.EventRoyaltyStatementIssued]
	event := envelope(t, "evt-retry", contractsv1.RoyaltyStatementIssuedData{
		StatementID:     "st-retry",
		CreatorID:       "bob",
		NetPayableCents: 1500,
		Currency:        "usd",
	})

	if err := handler(ctx, event); err == nil {
		t.Fatalf("expected first delivery to fail")
	}
	if dedup.seen["evt-retry"] {
		t.Fatalf("failed delivery must not stay reserved")
	}
	if err := handler(ctx, event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	entries, _ := store.ListLedgerEntries(ctx, ports.LedgerFilter{UserID: "bob"})
	if len(entries) != 1 || entries[0].AmountCents != 1500 {
		t.Fatalf("expected redelivery to credit the ledger, got %+v", entries)
	}
}

func TestStatementIssuedConsumerDisabled(t *testing.T) {
	subscriber := newCapturingSubscriber()
	if err := (StatementIssuedConsumer{Subscriber: subscriber, Disabled: true}).Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(subscriber.handlers) != 0 {
		t.Fatalf("expected no subscriptions when disabled")
	}
}

func TestPayoutProcessorRunOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gateway := memory.NewSandboxGateway("whsec_workers")
	clock := &fixedClock{now: time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC)}
	svc := application.Service{
		Repo:        store,
		Gateway:     gateway,
		Idempotency: store,
		Tx:          store,
		Clock:       clock,
		IDGen:       store,
		Retry:       constantRetry(time.Minute),
	}
	for _, user := range []string{"alice", "bob"} {
		actor := ports.Actor{UserID: user}
		started, err := svc.StartOnboarding(ctx, actor, "")
		if err != nil {
			t.Fatalf("onboard %s: %v", user, err)
		}
		gateway.CompleteOnboarding(started.Account.StripeAccountID)
		if _, err := svc.GetAccount(ctx, actor, "", true); err != nil {
			t.Fatalf("sync %s: %v", user, err)
		}
		if _, _, err := svc.CreditStatement(ctx, application.CreditInput{StatementID: "st-" + user, CreatorID: user, NetPayableCents: 2000, Currency: "usd"}); err != nil {
			t.Fatalf("credit %s: %v", user, err)
		}
		if _, err := svc.RequestPayout(ctx, actor, "payout-"+user, application.RequestPayoutInput{}); err != nil {
			t.Fatalf("request %s: %v", user, err)
		}
	}

	processor := PayoutProcessor{Service: svc}
	pending, err := processor.Pending(ctx)
	if err != nil || pending != 2 {
		t.Fatalf("expected two pending payouts, got %d err=%v", pending, err)
	}

	gateway.FailTransfers(1, errors.New("stripe timeout"))
	stats, err := processor.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if stats.Paid != 1 || stats.Retrying != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if pending, _ := processor.Pending(ctx); pending != 0 {
		t.Fatalf("retrying payout should wait for its delay, got %d pending", pending)
	}

	clock.now = clock.now.Add(time.Minute)
	stats, err = processor.RunOnce(ctx)
	if err != nil || stats.Paid != 1 {
		t.Fatalf("expected retry to succeed, got %+v err=%v", stats, err)
	}
	if gateway.TransferCount() != 2 {
		t.Fatalf("expected two transfers, got %d", gateway.TransferCount())
	}
}
