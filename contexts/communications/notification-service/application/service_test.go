package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ygbackend/contexts/communications/notification-service/adapters/memory"
	"ygbackend/contexts/communications/notification-service/domain/entities"
	domainerrors "ygbackend/contexts/communications/notification-service/domain/errors"
	"ygbackend/contexts/communications/notification-service/ports"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type sequenceIDs struct{ next int }

func (s *sequenceIDs) NewID(context.Context) (string, error) {
	s.next++
	return fmt.Sprintf("id-%03d", s.next), nil
}

var (
	alice = ports.Actor{UserID: "alice"}
	bob   = ports.Actor{UserID: "bob"}
)

func newTestService() (Service, *memory.Store, *fixedClock) {
	store := memory.NewStore()
	clock := &fixedClock{now: time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)}
	return Service{
		Repo:  store,
		Tx:    store,
		Clock: clock,
		IDGen: &sequenceIDs{},
	}, store, clock
}

func mustCreate(t *testing.T, svc Service, input CreateInput) CreateResult {
	t.Helper()
	result, err := svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}
	return result
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _, _ := newTestService()
	cases := []CreateInput{
		{UserID: "", Type: entities.TypeLicense, Title: "t", Message: "m"},
		{UserID: "alice", Type: "bogus", Title: "t", Message: "m"},
		{UserID: "alice", Type: entities.TypeLicense, Title: "", Message: "m"},
		{UserID: "alice", Type: entities.TypeLicense, Title: "t", Message: "m", Priority: "extreme"},
	}
	for i, input := range cases {
		if _, err := svc.Create(context.Background(), input); !errors.Is(err, domainerrors.ErrInvalidNotificationInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
}

func TestCreateDedupesByKey(t *testing.T) {
	svc, _, _ := newTestService()
	input := CreateInput{UserID: "alice", Type: entities.TypeMessage, Title: "New message", Message: "hi", DedupeKey: "evt-1"}
	first := mustCreate(t, svc, input)
	second := mustCreate(t, svc, input)
	if !first.Created || second.Created {
		t.Fatalf("expected only the first create to insert, got %v %v", first.Created, second.Created)
	}
	if first.Notification.NotificationID != second.Notification.NotificationID {
		t.Fatalf("expected duplicate to return the original notification")
	}
	count, err := svc.UnreadCount(context.Background(), alice)
	if err != nil || count != 1 {
		t.Fatalf("expected one unread notification, got %d err=%v", count, err)
	}
}

func TestCreateSkipsDisabledTypesUnlessUrgent(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.UpdatePreferences(context.Background(), alice, PreferencesInput{
		EnabledTypes: map[entities.NotificationType]bool{entities.TypePayout: false},
	}); err != nil {
		t.Fatalf("update preferences: %v", err)
	}
	skipped := mustCreate(t, svc, CreateInput{UserID: "alice", Type: entities.TypePayout, Title: "Payout sent", Message: "ok"})
	if !skipped.Skipped || skipped.Created {
		t.Fatalf("expected disabled type to be skipped, got %+v", skipped)
	}
	urgent := mustCreate(t, svc, CreateInput{UserID: "alice", Type: entities.TypePayout, Title: "Payout failed", Message: "no", Priority: entities.PriorityUrgent})
	if urgent.Skipped || !urgent.Created {
		t.Fatalf("expected urgent notification to bypass preferences, got %+v", urgent)
	}
}

func TestCreateQueuesEmailForImmediatePriorities(t *testing.T) {
	svc, store, _ := newTestService()
	low := mustCreate(t, svc, CreateInput{UserID: "alice", Type: entities.TypeMessage, Title: "t", Message: "m", Priority: entities.PriorityLow})
	high := mustCreate(t, svc, CreateInput{UserID: "alice", Type: entities.TypeLicense, Title: "t", Message: "m", Priority: entities.PriorityHigh})
	if low.EmailQueued || !high.EmailQueued {
		t.Fatalf("expected only the high priority notification to queue email")
	}
	deliveries := store.Deliveries()
	if len(deliveries) != 1 || deliveries[0].NotificationID != high.Notification.NotificationID {
		t.Fatalf("unexpected deliveries %+v", deliveries)
	}
	if deliveries[0].Status != entities.DeliveryPending || deliveries[0].Channel != entities.ChannelEmail {
		t.Fatalf("unexpected delivery state %+v", deliveries[0])
	}

	disabled := false
	if _, err := svc.UpdatePreferences(context.Background(), bob, PreferencesInput{EmailEnabled: &disabled}); err != nil {
		t.Fatalf("update preferences: %v", err)
	}
	muted := mustCreate(t, svc, CreateInput{UserID: "bob", Type: entities.TypeLicense, Title: "t", Message: "m", Priority: entities.PriorityUrgent})
	if muted.EmailQueued {
		t.Fatalf("expected no email when the user disabled email")
	}
}

func TestPollIntervals(t *testing.T) {
	svc, _, clock := newTestService()
	ctx := context.Background()

	idle, err := svc.Poll(ctx, alice, time.Time{})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if idle.PollAfterSeconds != entities.PollIdleSeconds || len(idle.Notifications) != 0 {
		t.Fatalf("expected idle poll, got %+v", idle)
	}

	since := clock.now
	clock.now = clock.now.Add(time.Minute)
	mustCreate(t, svc, CreateInput{UserID: "alice", Type: entities.TypeMessage, Title: "t", Message: "m", Priority: entities.PriorityLow})
	fresh, err := svc.Poll(ctx, alice, since)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if fresh.PollAfterSeconds != entities.PollNormalSeconds || len(fresh.Notifications) != 1 || fresh.UnreadCount != 1 {
		t.Fatalf("expected normal poll with one item, got %+v", fresh)
	}
	if !fresh.ServerTime.Equal(clock.now) {
		t.Fatalf("expected server time from clock, got %v", fresh.ServerTime)
	}

	mustCreate(t, svc, CreateInput{UserID: "alice", Type: entities.TypeSystem, Title: "t", Message: "m", Priority: entities.PriorityUrgent})
	urgent, err := svc.Poll(ctx, alice, clock.now.Add(time.Hour))
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if urgent.PollAfterSeconds != entities.PollFastSeconds || len(urgent.Notifications) != 0 {
		t.Fatalf("expected fast poll while urgent items are unread, got %+v", urgent)
	}
}

func TestMarkReadAndDeleteAreOwnerScoped(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	created := mustCreate(t, svc, CreateInput{UserID: "alice", Type: entities.TypeRoyalty, Title: "t", Message: "m"})
	mustCreate(t, svc, CreateInput{UserID: "alice", Type: entities.TypeRoyalty, Title: "t2", Message: "m2"})

	if err := svc.MarkRead(ctx, created.Notification.NotificationID, bob); !errors.Is(err, domainerrors.ErrNotificationNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
	if err := svc.MarkRead(ctx, created.Notification.NotificationID, alice); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, created.Notification.NotificationID, alice); err != nil {
		t.Fatalf("mark read twice: %v", err)
	}
	unread, _, err := svc.List(ctx, alice, ports.NotificationFilter{Read: ports.UnreadOnly})
	if err != nil || len(unread) != 1 {
		t.Fatalf("expected one unread, got %d err=%v", len(unread), err)
	}
	updated, err := svc.MarkAllRead(ctx, alice)
	if err != nil || updated != 1 {
		t.Fatalf("expected mark all to update one, got %d err=%v", updated, err)
	}

	if err := svc.Delete(ctx, created.Notification.NotificationID, bob); !errors.Is(err, domainerrors.ErrNotificationNotFound) {
		t.Fatalf("expected not found on foreign delete, got %v", err)
	}
	if err := svc.Delete(ctx, created.Notification.NotificationID, alice); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, _, err := svc.List(ctx, alice, ports.NotificationFilter{})
	if err != nil || len(all) != 1 {
		t.Fatalf("expected one remaining notification, got %d err=%v", len(all), err)
	}
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, _, clock := newTestService()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		clock.now = clock.now.Add(time.Minute)
		mustCreate(t, svc, CreateInput{UserID: "alice", Type: entities.TypeMedia, Title: fmt.Sprintf("n%d", i), Message: "m"})
	}
	page, hasMore, err := svc.List(ctx, alice, ports.NotificationFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !hasMore || len(page) != 2 || page[0].Title != "n4" || page[1].Title != "n3" {
		t.Fatalf("unexpected first page %+v hasMore=%v", page, hasMore)
	}
	last, hasMore, err := svc.List(ctx, alice, ports.NotificationFilter{Offset: 4, Limit: 2})
	if err != nil || hasMore || len(last) != 1 || last[0].Title != "n0" {
		t.Fatalf("unexpected last page %+v hasMore=%v err=%v", last, hasMore, err)
	}
	if _, _, err := svc.List(ctx, alice, ports.NotificationFilter{Read: "maybe"}); !errors.Is(err, domainerrors.ErrInvalidNotificationInput) {
		t.Fatalf("expected invalid read filter, got %v", err)
	}
}

func TestPreferencesDefaultsAndValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	prefs, err := svc.GetPreferences(ctx, alice)
	if err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	if !prefs.EmailEnabled || prefs.DigestFrequency != entities.DigestImmediate || !prefs.TypeEnabled(entities.TypeLicense) {
		t.Fatalf("unexpected defaults %+v", prefs)
	}

	bad := "not-an-address"
	if _, err := svc.UpdatePreferences(ctx, alice, PreferencesInput{EmailAddress: &bad}); !errors.Is(err, domainerrors.ErrInvalidPreferences) {
		t.Fatalf("expected invalid address, got %v", err)
	}
	if _, err := svc.UpdatePreferences(ctx, alice, PreferencesInput{
		EnabledTypes: map[entities.NotificationType]bool{"bogus": true},
	}); !errors.Is(err, domainerrors.ErrInvalidPreferences) {
		t.Fatalf("expected invalid type, got %v", err)
	}
	frequency := entities.DigestFrequency("hourly-ish")
	if _, err := svc.UpdatePreferences(ctx, alice, PreferencesInput{DigestFrequency: &frequency}); !errors.Is(err, domainerrors.ErrInvalidPreferences) {
		t.Fatalf("expected invalid frequency, got %v", err)
	}

	address := "alice@example.com"
	updated, err := svc.UpdatePreferences(ctx, alice, PreferencesInput{
		EmailAddress: &address,
		EnabledTypes: map[entities.NotificationType]bool{entities.TypeMessage: false},
	})
	if err != nil {
		t.Fatalf("update preferences: %v", err)
	}
	if updated.EmailAddress != address || updated.TypeEnabled(entities.TypeMessage) || !updated.TypeEnabled(entities.TypeLicense) {
		t.Fatalf("unexpected preferences %+v", updated)
	}
	reloaded, err := svc.GetPreferences(ctx, alice)
	if err != nil || reloaded.EmailAddress != address {
		t.Fatalf("expected stored preferences, got %+v err=%v", reloaded, err)
	}
}

func TestAnonymousActorIsForbidden(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.UnreadCount(context.Background(), ports.Actor{}); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Poll(context.Background(), ports.Actor{}, time.Time{}); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
