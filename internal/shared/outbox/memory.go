package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Message)}
}

func (s *MemoryStore) AppendOutbox(_ context.Context, envelope contractsv1.Envelope) error {
	if !validEnvelope(envelope) {
		return ErrInvalidEnvelope
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(envelope.EventID)
	if existing, ok := s.rows[id]; ok {
		if !bytes.Equal(existing.Payload, payload) {
			return ErrPayloadConflict
		}
		return nil
	}
	s.rows[id] = Message{
		OutboxID:      id,
		SourceService: envelope.SourceService,
		EventType:     envelope.EventType,
		PartitionKey:  envelope.PartitionKey,
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     envelope.OccurredAt.UTC(),
	}
	return nil
}

func (s *MemoryStore) ListPendingOutbox(_ context.Context, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]Message, 0)
	for _, row := range s.rows {
		if row.Status == StatusPending {
			items = append(items, row)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].OutboxID < items[j].OutboxID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *MemoryStore) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[strings.TrimSpace(outboxID)]
	if !ok {
		return ErrNotFound
	}
	ts := sentAt.UTC()
	row.Status = StatusSent
	row.SentAt = &ts
	s.rows[row.OutboxID] = row
	return nil
}

func (s *MemoryStore) MarkOutboxFailed(_ context.Context, outboxID string, reason string, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[strings.TrimSpace(outboxID)]
	if !ok {
		return ErrNotFound
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	row.Attempts++
	row.LastError = reason
	if row.Attempts >= maxAttempts {
		row.Status = StatusFailed
	}
	s.rows[row.OutboxID] = row
	return nil
}

func (s *MemoryStore) CountPending(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, row := range s.rows {
		if row.Status == StatusPending {
			count++
		}
	}
	return count, nil
}

// Envelopes decodes every stored row regardless of status, oldest first.
func (s *MemoryStore) Envelopes() []contractsv1.Envelope {
	s.mu.RLock()
	rows := make([]Message, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, row)
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].OutboxID < rows[j].OutboxID
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	items := make([]contractsv1.Envelope, 0, len(rows))
	for _, row := range rows {
		var envelope contractsv1.Envelope
		if err := json.Unmarshal(row.Payload, &envelope); err == nil {
			items = append(items, envelope)
		}
	}
	return items
}

// EnvelopesOfType filters Envelopes by event type.
func (s *MemoryStore) EnvelopesOfType(eventType string) []contractsv1.Envelope {
	items := make([]contractsv1.Envelope, 0)
	for _, envelope := range s.Envelopes() {
		if envelope.EventType == eventType {
			items = append(items, envelope)
		}
	}
	return items
}
