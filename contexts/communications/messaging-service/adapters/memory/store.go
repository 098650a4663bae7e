package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ygbackend/contexts/communications/messaging-service/domain/entities"
	domainerrors "ygbackend/contexts/communications/messaging-service/domain/errors"
	"ygbackend/contexts/communications/messaging-service/ports"

	"github.com/google/uuid"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	threads     map[string]entities.Thread
	messages    map[string]entities.Message
	states      map[string]entities.ThreadState
	idempotency map[string]ports.IdempotencyRecord
}

func NewStore() *Store {
	return &Store{
		threads:     make(map[string]entities.Thread),
		messages:    make(map[string]entities.Message),
		states:      make(map[string]entities.ThreadState),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *Store) CreateThread(_ context.Context, thread entities.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.threads[thread.ThreadID]; exists {
		return domainerrors.ErrInvalidThreadInput
	}
	thread.ParticipantIDs = append([]string(nil), thread.ParticipantIDs...)
	s.threads[thread.ThreadID] = thread
	return nil
}

func (s *Store) GetThread(_ context.Context, threadID string) (entities.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread, ok := s.threads[threadID]
	if !ok {
		return entities.Thread{}, domainerrors.ErrThreadNotFound
	}
	thread.ParticipantIDs = append([]string(nil), thread.ParticipantIDs...)
	return thread, nil
}

func (s *Store) TouchThread(_ context.Context, threadID string, lastMessageAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[threadID]
	if !ok {
		return domainerrors.ErrThreadNotFound
	}
	if lastMessageAt.After(thread.LastMessageAt) {
		thread.LastMessageAt = lastMessageAt
	}
	s.threads[threadID] = thread
	return nil
}

func (s *Store) ListThreads(_ context.Context, filter ports.ThreadFilter) ([]entities.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Thread, 0)
	for _, thread := range s.threads {
		if !thread.HasParticipant(filter.UserID) {
			continue
		}
		if !filter.IncludeArchived && s.states[stateKey(filter.UserID, thread.ThreadID)].Archived {
			continue
		}
		thread.ParticipantIDs = append([]string(nil), thread.ParticipantIDs...)
		items = append(items, thread)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].LastMessageAt.Equal(items[j].LastMessageAt) {
			return items[i].ThreadID > items[j].ThreadID
		}
		return items[i].LastMessageAt.After(items[j].LastMessageAt)
	})
	return page(items, filter.Offset, filter.Limit), nil
}

func (s *Store) CreateMessage(_ context.Context, message entities.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[message.ThreadID]; !ok {
		return domainerrors.ErrThreadNotFound
	}
	s.messages[message.MessageID] = cloneMessage(message)
	return nil
}

func (s *Store) GetMessage(_ context.Context, messageID string) (entities.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	message, ok := s.messages[messageID]
	if !ok {
		return entities.Message{}, domainerrors.ErrMessageNotFound
	}
	return cloneMessage(message), nil
}

func (s *Store) UpdateMessage(_ context.Context, message entities.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[message.MessageID]; !ok {
		return domainerrors.ErrMessageNotFound
	}
	s.messages[message.MessageID] = cloneMessage(message)
	return nil
}

func (s *Store) ListMessages(_ context.Context, filter ports.MessageFilter) ([]entities.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Message, 0)
	for _, message := range s.messages {
		if message.ThreadID != filter.ThreadID {
			continue
		}
		if !filter.BeforeAt.IsZero() && !olderThan(message, filter.BeforeAt, filter.BeforeID) {
			continue
		}
		items = append(items, cloneMessage(message))
	}
	sortNewestFirst(items)
	return page(items, 0, filter.Limit), nil
}

func (s *Store) SearchMessages(_ context.Context, filter ports.SearchFilter) ([]entities.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query := strings.ToLower(filter.Query)
	items := make([]entities.Message, 0)
	for _, message := range s.messages {
		if message.Deleted() || !strings.Contains(strings.ToLower(message.Body), query) {
			continue
		}
		if !s.threads[message.ThreadID].HasParticipant(filter.UserID) {
			continue
		}
		items = append(items, cloneMessage(message))
	}
	sortNewestFirst(items)
	return page(items, 0, filter.Limit), nil
}

func (s *Store) GetThreadState(_ context.Context, userID string, threadID string) (entities.ThreadState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[stateKey(userID, threadID)]
	return state, ok, nil
}

func (s *Store) PutThreadState(_ context.Context, state entities.ThreadState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey(state.UserID, state.ThreadID)] = state
	return nil
}

func (s *Store) CountUnread(_ context.Context, userID string, threadID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, message := range s.messages {
		if message.Deleted() || message.SenderID == userID {
			continue
		}
		if threadID != "" && message.ThreadID != threadID {
			continue
		}
		if !s.threads[message.ThreadID].HasParticipant(userID) {
			continue
		}
		state := s.states[stateKey(userID, message.ThreadID)]
		if threadID == "" && state.Archived {
			continue
		}
		if message.CreatedAt.After(state.LastReadAt) {
			count++
		}
	}
	return count, nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.idempotency[key]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if now.After(record.ExpiresAt) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.idempotency[record.Key]; ok && existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(context.Context) (string, error) {
	return uuid.NewString(), nil
}

func stateKey(userID string, threadID string) string {
	return userID + "|" + threadID
}

func olderThan(message entities.Message, at time.Time, id string) bool {
	if message.CreatedAt.Equal(at) {
		return message.MessageID < id
	}
	return message.CreatedAt.Before(at)
}

func sortNewestFirst(items []entities.Message) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].MessageID > items[j].MessageID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func page[T any](items []T, offset int, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func cloneMessage(message entities.Message) entities.Message {
	message.AttachmentIDs = append([]string(nil), message.AttachmentIDs...)
	if message.EditedAt != nil {
		edited := *message.EditedAt
		message.EditedAt = &edited
	}
	if message.DeletedAt != nil {
		deleted := *message.DeletedAt
		message.DeletedAt = &deleted
	}
	return message
}
