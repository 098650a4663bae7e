package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/communications/messaging-service/domain/entities"
	domainerrors "ygbackend/contexts/communications/messaging-service/domain/errors"
	"ygbackend/contexts/communications/messaging-service/ports"
)

const (
	module                = "communications/messaging-service"
	defaultIdempotencyTTL = 7 * 24 * time.Hour
	defaultThreadPage     = 20
	defaultMessagePage    = 50
	maxPageSize           = 100
	maxSearchResults      = 50
)

type Service struct {
	Repo           ports.Repository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Tx             ports.Transactor
	RateLimiter    ports.RateLimiter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

type CreateThreadInput struct {
	IdempotencyKey string
	Actor          ports.Actor
	Subject        string
	ParticipantIDs []string
	FirstMessage   string
	AttachmentIDs  []string
}

type ThreadResult struct {
	Thread       entities.Thread   `json:"thread"`
	FirstMessage *entities.Message `json:"first_message,omitempty"`
	Replayed     bool              `json:"-"`
}

type SendMessageInput struct {
	IdempotencyKey string
	Actor          ports.Actor
	ThreadID       string
	Body           string
	AttachmentIDs  []string
}

type MessageResult struct {
	Message  entities.Message
	Replayed bool
}

// ThreadSummary is a thread as one participant sees it in their inbox.
type ThreadSummary struct {
	Thread      entities.Thread
	UnreadCount int
	Archived    bool
}

func (s Service) CreateThread(ctx context.Context, input CreateThreadInput) (ThreadResult, error) {
	creatorID := strings.TrimSpace(input.Actor.UserID)
	if creatorID == "" {
		return ThreadResult{}, domainerrors.ErrForbidden
	}
	subject := strings.TrimSpace(input.Subject)
	if !entities.ValidSubject(subject) {
		return ThreadResult{}, domainerrors.ErrInvalidThreadInput
	}
	participants := entities.NormalizeParticipants(creatorID, input.ParticipantIDs)
	if len(participants) < entities.MinParticipants || len(participants) > entities.MaxParticipants {
		return ThreadResult{}, domainerrors.ErrInvalidThreadInput
	}
	firstBody := strings.TrimSpace(input.FirstMessage)
	attachments := entities.NormalizeAttachments(input.AttachmentIDs)
	if firstBody != "" && !entities.ValidBody(firstBody) {
		return ThreadResult{}, domainerrors.ErrInvalidMessageInput
	}
	if firstBody == "" && len(attachments) > 0 {
		return ThreadResult{}, domainerrors.ErrInvalidMessageInput
	}
	if len(attachments) > entities.MaxAttachments {
		return ThreadResult{}, domainerrors.ErrInvalidMessageInput
	}

	requestHash, err := hashRequest(map[string]any{
		"op":           "create_thread",
		"creator_id":   creatorID,
		"subject":      subject,
		"participants": participants,
		"first":        firstBody,
		"attachments":  attachments,
	})
	if err != nil {
		return ThreadResult{}, err
	}
	var result ThreadResult
	replayed, err := s.replay(ctx, input.IdempotencyKey, requestHash, &result)
	if err != nil {
		return ThreadResult{}, err
	}
	if replayed {
		result.Replayed = true
		return result, nil
	}
	if firstBody != "" && !s.allowSend(creatorID) {
		return ThreadResult{}, domainerrors.ErrRateLimited
	}

	threadID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ThreadResult{}, err
	}
	now := s.now()
	thread := entities.Thread{
		ThreadID:       threadID,
		Subject:        subject,
		ParticipantIDs: participants,
		CreatedBy:      creatorID,
		LastMessageAt:  now,
		CreatedAt:      now,
	}
	err = s.withinTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.CreateThread(ctx, thread); err != nil {
			return err
		}
		if firstBody != "" {
			message, err := s.newMessage(ctx, thread.ThreadID, creatorID, firstBody, attachments, now)
			if err != nil {
				return err
			}
			if err := s.Repo.CreateMessage(ctx, message); err != nil {
				return err
			}
			if err := s.markRead(ctx, creatorID, thread.ThreadID, now); err != nil {
				return err
			}
			if err := s.appendMessageSent(ctx, thread, message); err != nil {
				return err
			}
			result.FirstMessage = &message
		}
		result.Thread = thread
		return s.remember(ctx, input.IdempotencyKey, requestHash, result)
	})
	if err != nil {
		return ThreadResult{}, err
	}
	ResolveLogger(s.Logger).Info("message thread created",
		"event", "messaging_thread_created",
		"module", module,
		"layer", "application",
		"thread_id", thread.ThreadID,
		"participants", len(participants),
	)
	return result, nil
}

func (s Service) GetThread(ctx context.Context, threadID string, actor ports.Actor) (ThreadSummary, error) {
	thread, err := s.participantThread(ctx, threadID, actor)
	if err != nil {
		return ThreadSummary{}, err
	}
	return s.summarize(ctx, thread, actor.UserID)
}

// ListThreads returns the actor's threads by most recent activity.
func (s Service) ListThreads(ctx context.Context, actor ports.Actor, includeArchived bool, offset int, limit int) ([]ThreadSummary, bool, error) {
	userID := strings.TrimSpace(actor.UserID)
	if userID == "" {
		return nil, false, domainerrors.ErrForbidden
	}
	limit = clampLimit(limit, defaultThreadPage)
	if offset < 0 {
		offset = 0
	}
	threads, err := s.Repo.ListThreads(ctx, ports.ThreadFilter{
		UserID:          userID,
		IncludeArchived: includeArchived,
		Offset:          offset,
		Limit:           limit + 1,
	})
	if err != nil {
		return nil, false, err
	}
	hasMore := len(threads) > limit
	if hasMore {
		threads = threads[:limit]
	}
	out := make([]ThreadSummary, 0, len(threads))
	for _, thread := range threads {
		summary, err := s.summarize(ctx, thread, userID)
		if err != nil {
			return nil, false, err
		}
		out = append(out, summary)
	}
	return out, hasMore, nil
}

func (s Service) SendMessage(ctx context.Context, input SendMessageInput) (MessageResult, error) {
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return MessageResult{}, domainerrors.ErrIdempotencyKeyRequired
	}
	senderID := strings.TrimSpace(input.Actor.UserID)
	body := strings.TrimSpace(input.Body)
	if !entities.ValidBody(body) {
		return MessageResult{}, domainerrors.ErrInvalidMessageInput
	}
	attachments := entities.NormalizeAttachments(input.AttachmentIDs)
	if len(attachments) > entities.MaxAttachments {
		return MessageResult{}, domainerrors.ErrInvalidMessageInput
	}
	thread, err := s.participantThread(ctx, input.ThreadID, input.Actor)
	if err != nil {
		return MessageResult{}, err
	}

	requestHash, err := hashRequest(map[string]any{
		"op":          "send_message",
		"thread_id":   thread.ThreadID,
		"sender_id":   senderID,
		"body":        body,
		"attachments": attachments,
	})
	if err != nil {
		return MessageResult{}, err
	}
	var stored entities.Message
	replayed, err := s.replay(ctx, input.IdempotencyKey, requestHash, &stored)
	if err != nil {
		return MessageResult{}, err
	}
	if replayed {
		return MessageResult{Message: stored, Replayed: true}, nil
	}
	if !s.allowSend(senderID) {
		ResolveLogger(s.Logger).Warn("message send rate limited",
			"event", "messaging_send_rate_limited",
			"module", module,
			"layer", "application",
			"sender_id", senderID,
		)
		return MessageResult{}, domainerrors.ErrRateLimited
	}

	now := s.now()
	message, err := s.newMessage(ctx, thread.ThreadID, senderID, body, attachments, now)
	if err != nil {
		return MessageResult{}, err
	}
	err = s.withinTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.CreateMessage(ctx, message); err != nil {
			return err
		}
		if err := s.Repo.TouchThread(ctx, thread.ThreadID, now); err != nil {
			return err
		}
		if err := s.markRead(ctx, senderID, thread.ThreadID, now); err != nil {
			return err
		}
		if err := s.unarchiveRecipients(ctx, thread, senderID); err != nil {
			return err
		}
		if err := s.appendMessageSent(ctx, thread, message); err != nil {
			return err
		}
		return s.remember(ctx, input.IdempotencyKey, requestHash, message)
	})
	if err != nil {
		return MessageResult{}, err
	}
	ResolveLogger(s.Logger).Info("message sent",
		"event", "messaging_message_sent",
		"module", module,
		"layer", "application",
		"thread_id", thread.ThreadID,
		"message_id", message.MessageID,
	)
	return MessageResult{Message: message}, nil
}

// ListMessages pages newest first. beforeID is the oldest message id of the
// previous page.
func (s Service) ListMessages(ctx context.Context, threadID string, actor ports.Actor, beforeID string, limit int) ([]entities.Message, bool, error) {
	thread, err := s.participantThread(ctx, threadID, actor)
	if err != nil {
		return nil, false, err
	}
	limit = clampLimit(limit, defaultMessagePage)
	filter := ports.MessageFilter{ThreadID: thread.ThreadID, Limit: limit + 1}
	if beforeID = strings.TrimSpace(beforeID); beforeID != "" {
		anchor, err := s.Repo.GetMessage(ctx, beforeID)
		if err != nil {
			return nil, false, err
		}
		if anchor.ThreadID != thread.ThreadID {
			return nil, false, domainerrors.ErrInvalidMessageInput
		}
		filter.BeforeAt = anchor.CreatedAt
		filter.BeforeID = anchor.MessageID
	}
	messages, err := s.Repo.ListMessages(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	for i := range messages {
		if messages[i].Deleted() {
			messages[i].Body = ""
			messages[i].AttachmentIDs = nil
		}
	}
	return messages, hasMore, nil
}

func (s Service) EditMessage(ctx context.Context, messageID string, actor ports.Actor, body string) (entities.Message, error) {
	body = strings.TrimSpace(body)
	if !entities.ValidBody(body) {
		return entities.Message{}, domainerrors.ErrInvalidMessageInput
	}
	var updated entities.Message
	err := s.withinTx(ctx, func(ctx context.Context) error {
		message, err := s.Repo.GetMessage(ctx, strings.TrimSpace(messageID))
		if err != nil {
			return err
		}
		if message.SenderID != actor.UserID {
			return domainerrors.ErrForbidden
		}
		if message.Deleted() {
			return domainerrors.ErrMessageDeleted
		}
		now := s.now()
		if !message.EditableAt(now) {
			return domainerrors.ErrEditWindowClosed
		}
		message.Body = body
		message.EditedAt = &now
		updated = message
		return s.Repo.UpdateMessage(ctx, message)
	})
	if err != nil {
		return entities.Message{}, err
	}
	return updated, nil
}

func (s Service) DeleteMessage(ctx context.Context, messageID string, actor ports.Actor) error {
	return s.withinTx(ctx, func(ctx context.Context) error {
		message, err := s.Repo.GetMessage(ctx, strings.TrimSpace(messageID))
		if err != nil {
			return err
		}
		if message.SenderID != actor.UserID && !actor.IsAdmin {
			return domainerrors.ErrForbidden
		}
		if message.Deleted() {
			return nil
		}
		now := s.now()
		message.DeletedAt = &now
		return s.Repo.UpdateMessage(ctx, message)
	})
}

func (s Service) MarkThreadRead(ctx context.Context, threadID string, actor ports.Actor) error {
	thread, err := s.participantThread(ctx, threadID, actor)
	if err != nil {
		return err
	}
	return s.withinTx(ctx, func(ctx context.Context) error {
		return s.markRead(ctx, actor.UserID, thread.ThreadID, s.now())
	})
}

// UnreadCount totals unread messages across the actor's active threads.
func (s Service) UnreadCount(ctx context.Context, actor ports.Actor) (int, error) {
	userID := strings.TrimSpace(actor.UserID)
	if userID == "" {
		return 0, domainerrors.ErrForbidden
	}
	return s.Repo.CountUnread(ctx, userID, "")
}

func (s Service) ArchiveThread(ctx context.Context, threadID string, actor ports.Actor) error {
	return s.setArchived(ctx, threadID, actor, true)
}

func (s Service) UnarchiveThread(ctx context.Context, threadID string, actor ports.Actor) error {
	return s.setArchived(ctx, threadID, actor, false)
}

func (s Service) SearchMessages(ctx context.Context, actor ports.Actor, query string, limit int) ([]entities.Message, error) {
	userID := strings.TrimSpace(actor.UserID)
	if userID == "" {
		return nil, domainerrors.ErrForbidden
	}
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, domainerrors.ErrInvalidMessageInput
	}
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}
	return s.Repo.SearchMessages(ctx, ports.SearchFilter{UserID: userID, Query: query, Limit: limit})
}

func (s Service) setArchived(ctx context.Context, threadID string, actor ports.Actor, archived bool) error {
	thread, err := s.participantThread(ctx, threadID, actor)
	if err != nil {
		return err
	}
	return s.withinTx(ctx, func(ctx context.Context) error {
		state, _, err := s.Repo.GetThreadState(ctx, actor.UserID, thread.ThreadID)
		if err != nil {
			return err
		}
		state.UserID = actor.UserID
		state.ThreadID = thread.ThreadID
		state.Archived = archived
		return s.Repo.PutThreadState(ctx, state)
	})
}

func (s Service) participantThread(ctx context.Context, threadID string, actor ports.Actor) (entities.Thread, error) {
	thread, err := s.Repo.GetThread(ctx, strings.TrimSpace(threadID))
	if err != nil {
		return entities.Thread{}, err
	}
	if !thread.HasParticipant(actor.UserID) {
		return entities.Thread{}, domainerrors.ErrForbidden
	}
	return thread, nil
}

func (s Service) summarize(ctx context.Context, thread entities.Thread, userID string) (ThreadSummary, error) {
	state, _, err := s.Repo.GetThreadState(ctx, userID, thread.ThreadID)
	if err != nil {
		return ThreadSummary{}, err
	}
	unread, err := s.Repo.CountUnread(ctx, userID, thread.ThreadID)
	if err != nil {
		return ThreadSummary{}, err
	}
	return ThreadSummary{Thread: thread, UnreadCount: unread, Archived: state.Archived}, nil
}

func (s Service) markRead(ctx context.Context, userID string, threadID string, at time.Time) error {
	state, _, err := s.Repo.GetThreadState(ctx, userID, threadID)
	if err != nil {
		return err
	}
	state.UserID = userID
	state.ThreadID = threadID
	if at.After(state.LastReadAt) {
		state.LastReadAt = at
	}
	return s.Repo.PutThreadState(ctx, state)
}

// unarchiveRecipients brings an archived thread back when someone replies.
func (s Service) unarchiveRecipients(ctx context.Context, thread entities.Thread, senderID string) error {
	for _, userID := range thread.Recipients(senderID) {
		state, found, err := s.Repo.GetThreadState(ctx, userID, thread.ThreadID)
		if err != nil {
			return err
		}
		if !found || !state.Archived {
			continue
		}
		state.Archived = false
		if err := s.Repo.PutThreadState(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

func (s Service) newMessage(ctx context.Context, threadID string, senderID string, body string, attachments []string, now time.Time) (entities.Message, error) {
	messageID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Message{}, err
	}
	return entities.Message{
		MessageID:     messageID,
		ThreadID:      threadID,
		SenderID:      senderID,
		Body:          body,
		AttachmentIDs: attachments,
		CreatedAt:     now,
	}, nil
}

func (s Service) allowSend(senderID string) bool {
	if s.RateLimiter == nil {
		return true
	}
	return s.RateLimiter.Allow("messages:" + senderID)
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

func clampLimit(limit int, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
