package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	domainerrors "ygbackend/contexts/rights-management/license-service/domain/errors"
	"ygbackend/contexts/rights-management/license-service/ports"
)

const DefaultIdempotencyTTL = 7 * 24 * time.Hour

func HashRequest(fields map[string]any) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Replay decodes the stored response for key into out when the same request
// was already executed.
func Replay(ctx context.Context, store ports.IdempotencyStore, key string, requestHash string, now time.Time, out any) (bool, error) {
	record, found, err := store.GetRecord(ctx, strings.TrimSpace(key), now)
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

func Remember(ctx context.Context, store ports.IdempotencyStore, key string, requestHash string, expiresAt time.Time, response any) error {
	payload, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return store.PutRecord(ctx, ports.IdempotencyRecord{
		Key:             strings.TrimSpace(key),
		RequestHash:     requestHash,
		ResponsePayload: payload,
		ExpiresAt:       expiresAt,
	})
}
