package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"ygbackend/contexts/communications/notification-service/adapters/memory"
	"ygbackend/contexts/communications/notification-service/application"
	"ygbackend/contexts/communications/notification-service/domain/entities"
	"ygbackend/contexts/communications/notification-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type capturingSubscriber struct {
	handlers map[string]func(context.Context, ports.EventEnvelope) error
	group    string
}

func (s *capturingSubscriber) Subscribe(_ context.Context, topic string, group string, handler func(context.Context, ports.EventEnvelope) error) error {
	if s.handlers == nil {
		s.handlers = map[string]func(context.Context, ports.EventEnvelope) error{}
	}
	s.handlers[topic] = handler
	s.group = group
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

type stubMoney struct{}

func (stubMoney) Format(amountCents int64, currency string) string {
	return fmt.Sprintf("<%d %s>", amountCents, currency)
}

type flakySender struct {
	failures int
	sent     []ports.EmailMessage
}

func (s *flakySender) Send(_ context.Context, message ports.EmailMessage) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, message)
	return nil
}

type stepRetry struct{}

func (stepRetry) Delay(attempt int) time.Duration { return time.Duration(attempt) * time.Minute }

func envelope(t *testing.T, eventID string, eventType string, data any) ports.EventEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return ports.EventEnvelope{EventID: eventID, EventType: eventType, Data: raw}
}

func newConsumerHarness(t *testing.T) (*capturingSubscriber, application.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := application.Service{Repo: store, Tx: store, Clock: store, IDGen: store}
	subscriber := &capturingSubscriber{}
	consumer := EventConsumer{
		Subscriber:   subscriber,
		Service:      svc,
		Dedup:        &mapDedup{seen: map[string]bool{}},
		Money:        stubMoney{},
		AdminUserIDs: []string{"admin-1", "admin-1", "admin-2"},
	}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start consumer: %v", err)
	}
	return subscriber, svc, store
}

func listFor(t *testing.T, svc application.Service, userID string) []entities.Notification {
	t.Helper()
	items, _, err := svc.List(context.Background(), ports.Actor{UserID: userID}, ports.NotificationFilter{})
	if err != nil {
		t.Fatalf("list %s: %v", userID, err)
	}
	return items
}

func TestEventConsumerSubscribesEveryTopic(t *testing.T) {
	subscriber, _, _ := newConsumerHarness(t)
	if subscriber.group != defaultConsumerGroup {
		t.Fatalf("expected default group, got %q", subscriber.group)
	}
	for _, topic := range Topics {
		if subscriber.handlers[topic] == nil {
			t.Fatalf("expected handler for %s", topic)
		}
	}
}

func TestLicenseEventNotifiesBothPartiesOnce(t *testing.T) {
	subscriber, svc, _ := newConsumerHarness(t)
	event := envelope(t, "evt-1", contractsv1.EventLicenseTerminated, contractsv1.LicenseData{
		LicenseID:  "lic-1",
		IPAssetID:  "asset-1",
		LicensorID: "owner-1",
		LicenseeID: "buyer-1",
		Reason:     "breach",
	})
	handler := subscriber.handlers[contractsv1.EventLicenseTerminated]
	for i := 0; i < 2; i++ {
		if err := handler(context.Background(), event); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	for _, userID := range []string{"owner-1", "buyer-1"} {
		items := listFor(t, svc, userID)
		if len(items) != 1 {
			t.Fatalf("expected one notification for %s, got %d", userID, len(items))
		}
		if items[0].Priority != entities.PriorityHigh || items[0].ActionURL != "/licenses/lic-1" {
			t.Fatalf("unexpected notification %+v", items[0])
		}
		if items[0].Message != "License lic-1 was terminated: breach" {
			t.Fatalf("unexpected message %q", items[0].Message)
		}
	}
}

func TestMessageSentNotifiesRecipientsOnly(t *testing.T) {
	subscriber, svc, _ := newConsumerHarness(t)
	event := envelope(t, "evt-2", contractsv1.EventMessageSent, contractsv1.MessageSentData{
		ThreadID:     "thread-1",
		MessageID:    "msg-1",
		SenderID:     "alice",
		RecipientIDs: []string{"bob", "carol"},
		Preview:      "hello there",
	})
	if err := subscriber.handlers[contractsv1.EventMessageSent](context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := listFor(t, svc, "alice"); len(got) != 0 {
		t.Fatalf("sender should not be notified, got %d", len(got))
	}
	bobItems := listFor(t, svc, "bob")
	if len(bobItems) != 1 || bobItems[0].Message != "hello there" || bobItems[0].Priority != entities.PriorityLow {
		t.Fatalf("unexpected recipient notification %+v", bobItems)
	}
}

func TestPayoutFailedIsUrgentAndFormatsMoney(t *testing.T) {
	subscriber, svc, store := newConsumerHarness(t)
	event := envelope(t, "evt-3", contractsv1.EventPayoutFailed, contractsv1.PayoutData{
		PayoutID:      "payout-1",
		UserID:        "creator-1",
		AmountCents:   12345,
		Currency:      "USD",
		FailureReason: "account closed",
	})
	if err := subscriber.handlers[contractsv1.EventPayoutFailed](context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	items := listFor(t, svc, "creator-1")
	if len(items) != 1 || items[0].Priority != entities.PriorityUrgent {
		t.Fatalf("unexpected payout notification %+v", items)
	}
	if items[0].Message != "Your payout of <12345 USD> could not be completed: account closed" {
		t.Fatalf("unexpected message %q", items[0].Message)
	}
	if len(store.Deliveries()) != 1 {
		t.Fatalf("expected urgent payout failure to queue an email")
	}
}

func TestQueueCriticalFansOutToAdmins(t *testing.T) {
	subscriber, svc, _ := newConsumerHarness(t)
	event := envelope(t, "evt-4", contractsv1.EventQueueCritical, contractsv1.QueueCriticalData{
		Queue:   "payouts",
		Issues:  []string{"backlog"},
		Waiting: 1200,
	})
	if err := subscriber.handlers[contractsv1.EventQueueCritical](context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	for _, admin := range []string{"admin-1", "admin-2"} {
		items := listFor(t, svc, admin)
		if len(items) != 1 || items[0].Type != entities.TypeSystem {
			t.Fatalf("expected one system notification for %s, got %+v", admin, items)
		}
	}
}

func TestMalformedPayloadReturnsError(t *testing.T) {
	subscriber, _, _ := newConsumerHarness(t)
	event := ports.EventEnvelope{EventID: "evt-5", EventType: contractsv1.EventPayoutCompleted, Data: []byte("{")}
	if err := subscriber.handlers[contractsv1.EventPayoutCompleted](context.Background(), event); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFormatMoneyFallback(t *testing.T) {
	consumer := EventConsumer{}
	if got := consumer.formatMoney(-1505, "eur"); got != "-15.05 EUR" {
		t.Fatalf("unexpected fallback format %q", got)
	}
}

func queueUrgent(t *testing.T, store *memory.Store, userID string, address string) {
	t.Helper()
	svc := application.Service{Repo: store, Tx: store, Clock: store, IDGen: store}
	if address != "" {
		if _, err := svc.UpdatePreferences(context.Background(), ports.Actor{UserID: userID}, application.PreferencesInput{EmailAddress: &address}); err != nil {
			t.Fatalf("preferences: %v", err)
		}
	}
	result, err := svc.Create(context.Background(), application.CreateInput{
		UserID:    userID,
		Type:      entities.TypePayout,
		Title:     "Payout failed",
		Message:   "Your payout could not be completed.",
		ActionURL: "/payouts/p-1",
		Priority:  entities.PriorityUrgent,
	})
	if err != nil || !result.EmailQueued {
		t.Fatalf("expected queued email, got %+v err=%v", result, err)
	}
}

func TestEmailWorkerDeliversWithActionLink(t *testing.T) {
	store := memory.NewStore()
	queueUrgent(t, store, "alice", "alice@example.com")
	sender := &flakySender{}
	worker := EmailDeliveryWorker{Repo: store, Sender: sender, Retry: stepRetry{}, BaseURL: "https://app.test/"}

	stats, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Delivered != 1 || len(sender.sent) != 1 {
		t.Fatalf("expected one delivery, got %+v", stats)
	}
	message := sender.sent[0]
	if message.To != "alice@example.com" || message.Subject != "Payout failed" {
		t.Fatalf("unexpected message %+v", message)
	}
	if message.Body != "Your payout could not be completed.\n\nhttps://app.test/payouts/p-1" {
		t.Fatalf("unexpected body %q", message.Body)
	}
	if delivery := store.Deliveries()[0]; delivery.Status != entities.DeliveryDelivered || delivery.DeliveredAt == nil {
		t.Fatalf("unexpected delivery %+v", delivery)
	}
	pending, err := worker.Pending(context.Background())
	if err != nil || pending != 0 {
		t.Fatalf("expected nothing pending, got %d err=%v", pending, err)
	}
}

func TestEmailWorkerRetriesThenGivesUp(t *testing.T) {
	store := memory.NewStore()
	queueUrgent(t, store, "alice", "alice@example.com")
	clock := &fixedClock{now: time.Now().UTC()}
	sender := &flakySender{failures: entities.MaxDeliveryAttempts}
	worker := EmailDeliveryWorker{Repo: store, Sender: sender, Retry: stepRetry{}, Clock: clock}

	for attempt := 1; attempt < entities.MaxDeliveryAttempts; attempt++ {
		stats, err := worker.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", attempt, err)
		}
		if stats.Retrying != 1 {
			t.Fatalf("attempt %d: expected retry, got %+v", attempt, stats)
		}
		delivery := store.Deliveries()[0]
		if delivery.Attempts != attempt || !delivery.NextAttemptAt.Equal(clock.now.Add(time.Duration(attempt)*time.Minute)) {
			t.Fatalf("attempt %d: unexpected schedule %+v", attempt, delivery)
		}
		idle, err := worker.RunOnce(context.Background())
		if err != nil || idle != (DeliveryStats{}) {
			t.Fatalf("expected nothing due before the retry delay, got %+v err=%v", idle, err)
		}
		clock.now = delivery.NextAttemptAt
	}

	stats, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("final run: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("expected delivery to fail permanently, got %+v", stats)
	}
	delivery := store.Deliveries()[0]
	if delivery.Status != entities.DeliveryFailed || delivery.LastError != "smtp unavailable" {
		t.Fatalf("unexpected final delivery %+v", delivery)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected nothing sent")
	}
}

func TestEmailWorkerWithoutAddressRetries(t *testing.T) {
	store := memory.NewStore()
	queueUrgent(t, store, "bob", "")
	sender := &flakySender{}
	worker := EmailDeliveryWorker{Repo: store, Sender: sender, Retry: stepRetry{}}
	stats, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Retrying != 1 || len(sender.sent) != 0 {
		t.Fatalf("expected retry without a sent email, got %+v", stats)
	}
	if delivery := store.Deliveries()[0]; delivery.LastError != errNoEmailAddress.Error() {
		t.Fatalf("unexpected last error %q", delivery.LastError)
	}
}
