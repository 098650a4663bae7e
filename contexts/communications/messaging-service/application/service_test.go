package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"ygbackend/contexts/communications/messaging-service/adapters/memory"
	domainerrors "ygbackend/contexts/communications/messaging-service/domain/errors"
	"ygbackend/contexts/communications/messaging-service/ports"
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

type countingLimiter struct {
	limit int
	seen  map[string]int
}

func (l *countingLimiter) Allow(key string) bool {
	l.seen[key]++
	return l.seen[key] <= l.limit
}

var (
	alice = ports.Actor{UserID: "alice"}
	bob   = ports.Actor{UserID: "bob"}
	carol = ports.Actor{UserID: "carol"}
	eve   = ports.Actor{UserID: "eve"}
)

func newTestService() (Service, *fixedClock, *recordingOutbox) {
	store := memory.NewStore()
	clock := &fixedClock{now: time.Date(2026, time.May, 4, 9, 0, 0, 0, time.UTC)}
	outbox := &recordingOutbox{}
	return Service{
		Repo:        store,
		Idempotency: store,
		Outbox:      outbox,
		Tx:          store,
		RateLimiter: &countingLimiter{limit: 30, seen: map[string]int{}},
		Clock:       clock,
		IDGen:       &sequenceIDs{},
	}, clock, outbox
}

func createThread(t *testing.T, svc Service, first string) ThreadResult {
	t.Helper()
	result, err := svc.CreateThread(context.Background(), CreateThreadInput{
		Actor:          alice,
		Subject:        "License terms",
		ParticipantIDs: []string{"bob", "carol", "alice"},
		FirstMessage:   first,
	})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	return result
}

func send(t *testing.T, svc Service, actor ports.Actor, threadID string, key string, body string) MessageResult {
	t.Helper()
	result, err := svc.SendMessage(context.Background(), SendMessageInput{
		IdempotencyKey: key,
		Actor:          actor,
		ThreadID:       threadID,
		Body:           body,
	})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	return result
}

func TestCreateThreadValidatesParticipants(t *testing.T) {
	svc, _, outbox := newTestService()
	ctx := context.Background()

	_, err := svc.CreateThread(ctx, CreateThreadInput{Actor: alice, Subject: "Solo", ParticipantIDs: []string{"alice"}})
	if !errors.Is(err, domainerrors.ErrInvalidThreadInput) {
		t.Fatalf("expected invalid thread input, got %v", err)
	}
	many := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		many = append(many, fmt.Sprintf("user-%d", i))
	}
	_, err = svc.CreateThread(ctx, CreateThreadInput{Actor: alice, Subject: "Crowd", ParticipantIDs: many})
	if !errors.Is(err, domainerrors.ErrInvalidThreadInput) {
		t.Fatalf("expected too many participants rejected, got %v", err)
	}

	result := createThread(t, svc, "Hello both")
	if len(result.Thread.ParticipantIDs) != 3 || result.Thread.ParticipantIDs[0] != "alice" {
		t.Fatalf("unexpected participants %v", result.Thread.ParticipantIDs)
	}
	if result.FirstMessage == nil {
		t.Fatal("expected first message")
	}
	if len(outbox.events) != 1 || outbox.events[0].EventType != contractsv1.EventMessageSent {
		t.Fatalf("expected one message.sent event, got %+v", outbox.events)
	}
	var data contractsv1.MessageSentData
	if err := json.Unmarshal(outbox.events[0].Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.RecipientIDs) != 2 || data.SenderID != "alice" || data.Preview != "Hello both" {
		t.Fatalf("unexpected payload %+v", data)
	}
}

func TestThreadAccessIsParticipantsOnly(t *testing.T) {
	svc, _, _ := newTestService()
	thread := createThread(t, svc, "")
	ctx := context.Background()

	if _, err := svc.GetThread(ctx, thread.Thread.ThreadID, eve); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	_, err := svc.SendMessage(ctx, SendMessageInput{IdempotencyKey: "k", Actor: eve, ThreadID: thread.Thread.ThreadID, Body: "hi"})
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden send, got %v", err)
	}
	if _, _, err := svc.ListMessages(ctx, thread.Thread.ThreadID, eve, "", 10); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden list, got %v", err)
	}
	if _, err := svc.GetThread(ctx, "missing", alice); !errors.Is(err, domainerrors.ErrThreadNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSendMessageIsIdempotent(t *testing.T) {
	svc, _, outbox := newTestService()
	thread := createThread(t, svc, "")

	first := send(t, svc, bob, thread.Thread.ThreadID, "send-1", "Counter offer attached")
	again := send(t, svc, bob, thread.Thread.ThreadID, "send-1", "Counter offer attached")
	if !again.Replayed || again.Message.MessageID != first.Message.MessageID {
		t.Fatalf("expected replay of %s, got %+v", first.Message.MessageID, again)
	}
	if len(outbox.events) != 1 {
		t.Fatalf("expected one event, got %d", len(outbox.events))
	}

	_, err := svc.SendMessage(context.Background(), SendMessageInput{
		IdempotencyKey: "send-1",
		Actor:          bob,
		ThreadID:       thread.Thread.ThreadID,
		Body:           "Different body",
	})
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	_, err = svc.SendMessage(context.Background(), SendMessageInput{Actor: bob, ThreadID: thread.Thread.ThreadID, Body: "x"})
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected key required, got %v", err)
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	svc, _, _ := newTestService()
	svc.RateLimiter = &countingLimiter{limit: 2, seen: map[string]int{}}
	thread := createThread(t, svc, "")

	send(t, svc, bob, thread.Thread.ThreadID, "r-1", "one")
	send(t, svc, bob, thread.Thread.ThreadID, "r-2", "two")
	_, err := svc.SendMessage(context.Background(), SendMessageInput{
		IdempotencyKey: "r-3",
		Actor:          bob,
		ThreadID:       thread.Thread.ThreadID,
		Body:           "three",
	})
	if !errors.Is(err, domainerrors.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	replay := send(t, svc, bob, thread.Thread.ThreadID, "r-1", "one")
	if !replay.Replayed {
		t.Fatal("replays must not consume the send budget")
	}
}

func TestUnreadCountsAndMarkRead(t *testing.T) {
	svc, clock, _ := newTestService()
	ctx := context.Background()
	thread := createThread(t, svc, "opening")

	clock.now = clock.now.Add(time.Minute)
	send(t, svc, bob, thread.Thread.ThreadID, "u-1", "reply one")
	clock.now = clock.now.Add(time.Minute)
	send(t, svc, bob, thread.Thread.ThreadID, "u-2", "reply two")

	aliceCount, err := svc.UnreadCount(ctx, alice)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if aliceCount != 2 {
		t.Fatalf("expected 2 unread for alice, got %d", aliceCount)
	}
	carolCount, _ := svc.UnreadCount(ctx, carol)
	if carolCount != 3 {
		t.Fatalf("expected 3 unread for carol, got %d", carolCount)
	}

	if err := svc.MarkThreadRead(ctx, thread.Thread.ThreadID, alice); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	summary, err := svc.GetThread(ctx, thread.Thread.ThreadID, alice)
	if err != nil {
		t.Fatalf("get thread: %v", err)
	}
	if summary.UnreadCount != 0 {
		t.Fatalf("expected no unread after mark read, got %d", summary.UnreadCount)
	}
}

func TestListThreadsOrdersByActivityAndHidesArchived(t *testing.T) {
	svc, clock, _ := newTestService()
	ctx := context.Background()
	older := createThread(t, svc, "")
	clock.now = clock.now.Add(time.Minute)
	newer := createThread(t, svc, "")
	clock.now = clock.now.Add(time.Minute)
	send(t, svc, bob, older.Thread.ThreadID, "bump", "bump")

	threads, _, err := svc.ListThreads(ctx, alice, false, 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(threads) != 2 || threads[0].Thread.ThreadID != older.Thread.ThreadID {
		t.Fatalf("expected recently active thread first, got %+v", threads)
	}

	if err := svc.ArchiveThread(ctx, newer.Thread.ThreadID, alice); err != nil {
		t.Fatalf("archive: %v", err)
	}
	threads, _, _ = svc.ListThreads(ctx, alice, false, 0, 10)
	if len(threads) != 1 {
		t.Fatalf("archived thread must be hidden, got %d", len(threads))
	}
	all, _, _ := svc.ListThreads(ctx, alice, true, 0, 10)
	if len(all) != 2 {
		t.Fatalf("expected archived thread when asked, got %d", len(all))
	}

	clock.now = clock.now.Add(time.Minute)
	send(t, svc, bob, newer.Thread.ThreadID, "wake", "are you there?")
	threads, _, _ = svc.ListThreads(ctx, alice, false, 0, 10)
	if len(threads) != 2 {
		t.Fatalf("reply should unarchive the thread, got %d", len(threads))
	}
}

func TestEditWindowAndDelete(t *testing.T) {
	svc, clock, _ := newTestService()
	ctx := context.Background()
	thread := createThread(t, svc, "")
	msg := send(t, svc, bob, thread.Thread.ThreadID, "e-1", "typo hre")

	if _, err := svc.EditMessage(ctx, msg.Message.MessageID, alice, "hijack"); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden edit, got %v", err)
	}
	clock.now = clock.now.Add(10 * time.Minute)
	edited, err := svc.EditMessage(ctx, msg.Message.MessageID, bob, "typo here")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Body != "typo here" || edited.EditedAt == nil {
		t.Fatalf("unexpected edited message %+v", edited)
	}
	clock.now = clock.now.Add(6 * time.Minute)
	if _, err := svc.EditMessage(ctx, msg.Message.MessageID, bob, "late"); !errors.Is(err, domainerrors.ErrEditWindowClosed) {
		t.Fatalf("expected edit window closed, got %v", err)
	}

	if err := svc.DeleteMessage(ctx, msg.Message.MessageID, bob); err != nil {
		t.Fatalf("delete: %v", err)
	}
	messages, _, err := svc.ListMessages(ctx, thread.Thread.ThreadID, alice, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(messages) != 1 || !messages[0].Deleted() || messages[0].Body != "" {
		t.Fatalf("expected deleted message without body, got %+v", messages)
	}
}

func TestListMessagesPagesWithBeforeCursor(t *testing.T) {
	svc, clock, _ := newTestService()
	ctx := context.Background()
	thread := createThread(t, svc, "")
	for i := 0; i < 5; i++ {
		clock.now = clock.now.Add(time.Second)
		send(t, svc, bob, thread.Thread.ThreadID, fmt.Sprintf("p-%d", i), fmt.Sprintf("message %d", i))
	}

	page, hasMore, err := svc.ListMessages(ctx, thread.Thread.ThreadID, alice, "", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || !hasMore || page[0].Body != "message 4" {
		t.Fatalf("unexpected first page %+v", page)
	}
	next, hasMore, err := svc.ListMessages(ctx, thread.Thread.ThreadID, alice, page[1].MessageID, 5)
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	if len(next) != 3 || hasMore || next[0].Body != "message 2" {
		t.Fatalf("unexpected second page %+v", next)
	}
}

func TestSearchOnlyCoversOwnThreads(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	thread := createThread(t, svc, "Royalty statement question")
	other, err := svc.CreateThread(ctx, CreateThreadInput{
		Actor:          eve,
		Subject:        "Private",
		ParticipantIDs: []string{"bob"},
		FirstMessage:   "royalty rates for eve",
	})
	if err != nil {
		t.Fatalf("create other: %v", err)
	}

	results, err := svc.SearchMessages(ctx, alice, "ROYALTY", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ThreadID != thread.Thread.ThreadID {
		t.Fatalf("expected only alice's thread, got %+v", results)
	}
	bobResults, _ := svc.SearchMessages(ctx, bob, "royalty", 10)
	if len(bobResults) != 2 {
		t.Fatalf("bob participates in both threads, got %d", len(bobResults))
	}
	if other.Thread.ThreadID == "" {
		t.Fatal("expected other thread id")
	}
	if _, err := svc.SearchMessages(ctx, alice, "r", 10); !errors.Is(err, domainerrors.ErrInvalidMessageInput) {
		t.Fatalf("expected short query rejected, got %v", err)
	}
}
