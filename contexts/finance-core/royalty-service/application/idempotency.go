package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	domainerrors "ygbackend/contexts/finance-core/royalty-service/domain/errors"
	"ygbackend/contexts/finance-core/royalty-service/ports"
)

func hashRequest(fields map[string]any) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// replay loads a stored response into out. It returns true when the key was
// already used with the same request hash.
func (s Service) replay(ctx context.Context, key string, requestHash string, out any) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || s.Idempotency == nil {
		return false, nil
	}
	record, found, err := s.Idempotency.GetRecord(ctx, key, s.now())
	if err != nil || !found {
		return false, err
	}
	if record.RequestHash != requestHash {
		return false, domainerrors.ErrIdempotencyKeyConflict
	}
	if err := json.Unmarshal(record.ResponsePayload, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s Service) remember(ctx context.Context, key string, requestHash string, response any) error {
	key = strings.TrimSpace(key)
	if key == "" || s.Idempotency == nil {
		return nil
	}
	payload, err := json.Marshal(response)
	if err != nil {
		return err
	}
	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return s.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
		Key:             key,
		RequestHash:     requestHash,
		ResponsePayload: payload,
		ExpiresAt:       s.now().Add(ttl),
	})
}
