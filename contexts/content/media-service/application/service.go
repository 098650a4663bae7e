package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/content/media-service/domain/entities"
	domainerrors "ygbackend/contexts/content/media-service/domain/errors"
	"ygbackend/contexts/content/media-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

const (
	module                = "content/media-service"
	defaultIdempotencyTTL = 7 * 24 * time.Hour
	defaultQuotaBytes     = 10 * 1024 * entities.MB
	defaultUploadTTL      = time.Hour
	defaultDownloadTTL    = 15 * time.Minute
	defaultPageSize       = 20
	maxPageSize           = 100
)

type Service struct {
	Repo           ports.Repository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Tx             ports.Transactor
	Signer         ports.URLSigner
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	QuotaBytes     int64
	UploadTTL      time.Duration
	DownloadTTL    time.Duration
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

type InitiateUploadInput struct {
	IdempotencyKey string
	OwnerID        string
	Filename       string
	Title          string
	MimeType       string
	SizeBytes      int64
	Tags           []string
}

type UploadTicket struct {
	Media     entities.MediaItem
	UploadURL string
	ExpiresAt time.Time
	Replayed  bool
}

type MetadataInput struct {
	MediaID string
	Actor   ports.Actor
	Title   *string
	AltText *string
	Tags    *[]string
}

type BulkDeleteResult struct {
	MediaID string
	Deleted bool
	Error   error
}

type DownloadLink struct {
	URL       string
	ExpiresAt time.Time
}

// InitiateUpload reserves quota for a new item and returns where to PUT it.
func (s Service) InitiateUpload(ctx context.Context, input InitiateUploadInput) (UploadTicket, error) {
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return UploadTicket{}, domainerrors.ErrIdempotencyKeyRequired
	}
	ownerID := strings.TrimSpace(input.OwnerID)
	filename := entities.SanitizeFilename(input.Filename)
	title := strings.TrimSpace(input.Title)
	if ownerID == "" || filename == "" || input.SizeBytes <= 0 || !entities.ValidTitle(title) {
		return UploadTicket{}, domainerrors.ErrInvalidMediaInput
	}
	mediaType, ok := entities.TypeForMime(input.MimeType)
	if !ok {
		return UploadTicket{}, domainerrors.ErrUnsupportedMimeType
	}
	if input.SizeBytes > entities.MaxSize(mediaType) {
		return UploadTicket{}, domainerrors.ErrFileTooLarge
	}
	tags := entities.NormalizeTags(input.Tags)
	if len(tags) > entities.MaxTags {
		return UploadTicket{}, domainerrors.ErrInvalidMediaInput
	}

	requestHash, err := hashRequest(map[string]any{
		"owner_id":   ownerID,
		"filename":   filename,
		"title":      title,
		"mime_type":  strings.ToLower(strings.TrimSpace(input.MimeType)),
		"size_bytes": input.SizeBytes,
		"tags":       tags,
	})
	if err != nil {
		return UploadTicket{}, err
	}
	now := s.now()
	record, found, err := s.Idempotency.GetRecord(ctx, input.IdempotencyKey, now)
	if err != nil {
		return UploadTicket{}, err
	}
	if found {
		if record.RequestHash != requestHash {
			return UploadTicket{}, domainerrors.ErrIdempotencyKeyConflict
		}
		var item entities.MediaItem
		if err := json.Unmarshal(record.ResponsePayload, &item); err != nil {
			return UploadTicket{}, err
		}
		expiresAt := item.CreatedAt.Add(s.uploadTTL())
		return UploadTicket{
			Media:     item,
			UploadURL: s.Signer.SignURL("PUT", item.StorageKey, expiresAt),
			ExpiresAt: expiresAt,
			Replayed:  true,
		}, nil
	}

	mediaID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return UploadTicket{}, err
	}
	item := entities.MediaItem{
		MediaID:    mediaID,
		OwnerID:    ownerID,
		Filename:   filename,
		Title:      title,
		MimeType:   strings.ToLower(strings.TrimSpace(input.MimeType)),
		Type:       mediaType,
		SizeBytes:  input.SizeBytes,
		Status:     entities.StatusPendingUpload,
		StorageKey: entities.StorageKeyFor(ownerID, mediaID, filename),
		Tags:       tags,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.withinTx(ctx, func(ctx context.Context) error {
		used, err := s.Repo.UsageBytes(ctx, ownerID)
		if err != nil {
			return err
		}
		if used+item.SizeBytes > s.quota() {
			return domainerrors.ErrQuotaExceeded
		}
		if err := s.Repo.CreateMedia(ctx, item); err != nil {
			return err
		}
		payload, err := json.Marshal(item)
		if err != nil {
			return err
		}
		return s.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
			Key:             strings.TrimSpace(input.IdempotencyKey),
			RequestHash:     requestHash,
			ResponsePayload: payload,
			ExpiresAt:       now.Add(s.idempotencyTTL()),
		})
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrQuotaExceeded) {
			ResolveLogger(s.Logger).Warn("media quota exceeded",
				"event", "media_quota_exceeded",
				"module", module,
				"layer", "application",
				"owner_id", ownerID,
				"size_bytes", item.SizeBytes,
			)
		}
		return UploadTicket{}, err
	}

	expiresAt := now.Add(s.uploadTTL())
	ResolveLogger(s.Logger).Info("media upload initiated",
		"event", "media_upload_initiated",
		"module", module,
		"layer", "application",
		"media_id", item.MediaID,
		"owner_id", item.OwnerID,
		"media_type", item.Type,
		"size_bytes", item.SizeBytes,
	)
	return UploadTicket{
		Media:     item,
		UploadURL: s.Signer.SignURL("PUT", item.StorageKey, expiresAt),
		ExpiresAt: expiresAt,
	}, nil
}

// ConfirmUpload records the client's checksum and hands the item to the
// processing pipeline through media.uploaded.
func (s Service) ConfirmUpload(ctx context.Context, mediaID string, actor ports.Actor, checksum string) (entities.MediaItem, error) {
	checksum = strings.ToLower(strings.TrimSpace(checksum))
	if !entities.ValidChecksum(checksum) {
		return entities.MediaItem{}, domainerrors.ErrInvalidMediaInput
	}
	return s.transition(ctx, mediaID, &actor, entities.StatusUploaded, func(item *entities.MediaItem) {
		item.Checksum = checksum
	}, contractsv1.EventMediaUploaded)
}

func (s Service) StartProcessing(ctx context.Context, mediaID string) (entities.MediaItem, error) {
	return s.transition(ctx, mediaID, nil, entities.StatusProcessing, nil, "")
}

func (s Service) CompleteProcessing(ctx context.Context, mediaID string) (entities.MediaItem, error) {
	return s.transition(ctx, mediaID, nil, entities.StatusReady, func(item *entities.MediaItem) {
		item.FailureReason = ""
	}, contractsv1.EventMediaReady)
}

func (s Service) FailProcessing(ctx context.Context, mediaID string, reason string) (entities.MediaItem, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "processing failed"
	}
	return s.transition(ctx, mediaID, nil, entities.StatusFailed, func(item *entities.MediaItem) {
		item.FailureReason = reason
	}, contractsv1.EventMediaFailed)
}

func (s Service) transition(
	ctx context.Context,
	mediaID string,
	actor *ports.Actor,
	target entities.MediaStatus,
	mutate func(*entities.MediaItem),
	eventType string,
) (entities.MediaItem, error) {
	var updated entities.MediaItem
	err := s.withinTx(ctx, func(ctx context.Context) error {
		item, err := s.Repo.GetMedia(ctx, strings.TrimSpace(mediaID))
		if err != nil {
			return err
		}
		if actor != nil && !canAccess(item, *actor) {
			return domainerrors.ErrForbidden
		}
		if !entities.CanTransition(item.Status, target) {
			return domainerrors.ErrInvalidStateTransition
		}
		now := s.now()
		item.Status = target
		item.UpdatedAt = now
		if mutate != nil {
			mutate(&item)
		}
		if err := s.Repo.UpdateMedia(ctx, item); err != nil {
			return err
		}
		updated = item
		if eventType == "" {
			return nil
		}
		return s.appendMediaEvent(ctx, eventType, item, now)
	})
	if err != nil {
		return entities.MediaItem{}, err
	}
	ResolveLogger(s.Logger).Info("media status changed",
		"event", "media_status_changed",
		"module", module,
		"layer", "application",
		"media_id", updated.MediaID,
		"status", updated.Status,
	)
	return updated, nil
}

func (s Service) GetMedia(ctx context.Context, mediaID string, actor ports.Actor) (entities.MediaItem, error) {
	item, err := s.Repo.GetMedia(ctx, strings.TrimSpace(mediaID))
	if err != nil {
		return entities.MediaItem{}, err
	}
	if !item.CountsTowardQuota() {
		return entities.MediaItem{}, domainerrors.ErrMediaNotFound
	}
	if !canAccess(item, actor) {
		return entities.MediaItem{}, domainerrors.ErrForbidden
	}
	return item, nil
}

// ListMedia pages the caller's library newest first.
func (s Service) ListMedia(ctx context.Context, actor ports.Actor, filter ports.MediaFilter) ([]entities.MediaItem, bool, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, false, domainerrors.ErrInvalidMediaInput
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, false, domainerrors.ErrInvalidMediaInput
	}
	if !actor.IsAdmin || strings.TrimSpace(filter.OwnerID) == "" {
		filter.OwnerID = strings.TrimSpace(actor.UserID)
	}
	if filter.OwnerID == "" {
		return nil, false, domainerrors.ErrForbidden
	}
	filter.Tag = strings.ToLower(strings.TrimSpace(filter.Tag))
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	limit := filter.Limit
	filter.Limit++
	items, err := s.Repo.ListMedia(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if len(items) > limit {
		return items[:limit], true, nil
	}
	return items, false, nil
}

func (s Service) UpdateMetadata(ctx context.Context, input MetadataInput) (entities.MediaItem, error) {
	var updated entities.MediaItem
	err := s.withinTx(ctx, func(ctx context.Context) error {
		item, err := s.GetMedia(ctx, input.MediaID, input.Actor)
		if err != nil {
			return err
		}
		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if !entities.ValidTitle(title) {
				return domainerrors.ErrInvalidMediaInput
			}
			item.Title = title
		}
		if input.AltText != nil {
			alt := strings.TrimSpace(*input.AltText)
			if !entities.ValidAltText(alt) {
				return domainerrors.ErrInvalidMediaInput
			}
			item.AltText = alt
		}
		if input.Tags != nil {
			tags := entities.NormalizeTags(*input.Tags)
			if len(tags) > entities.MaxTags {
				return domainerrors.ErrInvalidMediaInput
			}
			item.Tags = tags
		}
		item.UpdatedAt = s.now()
		updated = item
		return s.Repo.UpdateMedia(ctx, item)
	})
	if err != nil {
		return entities.MediaItem{}, err
	}
	return updated, nil
}

// DeleteMedia soft deletes the item and releases its quota.
func (s Service) DeleteMedia(ctx context.Context, mediaID string, actor ports.Actor) error {
	_, err := s.transition(ctx, mediaID, &actor, entities.StatusDeleted, func(item *entities.MediaItem) {
		deletedAt := item.UpdatedAt
		item.DeletedAt = &deletedAt
	}, "")
	return err
}

// BulkDelete reports a result per id; one failure does not stop the batch.
func (s Service) BulkDelete(ctx context.Context, mediaIDs []string, actor ports.Actor) ([]BulkDeleteResult, error) {
	if len(mediaIDs) == 0 {
		return nil, domainerrors.ErrInvalidMediaInput
	}
	if len(mediaIDs) > entities.MaxBulkItems {
		return nil, domainerrors.ErrTooManyItems
	}
	seen := make(map[string]struct{}, len(mediaIDs))
	results := make([]BulkDeleteResult, 0, len(mediaIDs))
	for _, mediaID := range mediaIDs {
		mediaID = strings.TrimSpace(mediaID)
		if _, dup := seen[mediaID]; dup {
			continue
		}
		seen[mediaID] = struct{}{}
		err := s.DeleteMedia(ctx, mediaID, actor)
		results = append(results, BulkDeleteResult{MediaID: mediaID, Deleted: err == nil, Error: err})
	}
	return results, nil
}

func (s Service) DownloadURL(ctx context.Context, mediaID string, actor ports.Actor) (DownloadLink, error) {
	item, err := s.GetMedia(ctx, mediaID, actor)
	if err != nil {
		return DownloadLink{}, err
	}
	if item.Status != entities.StatusReady {
		return DownloadLink{}, domainerrors.ErrMediaNotReady
	}
	ttl := s.DownloadTTL
	if ttl <= 0 {
		ttl = defaultDownloadTTL
	}
	expiresAt := s.now().Add(ttl)
	return DownloadLink{URL: s.Signer.SignURL("GET", item.StorageKey, expiresAt), ExpiresAt: expiresAt}, nil
}

// ExpireStaleUploads fails uploads that never completed within UploadTTL.
func (s Service) ExpireStaleUploads(ctx context.Context, limit int) (int, error) {
	cutoff := s.now().Add(-s.uploadTTL())
	stale, err := s.Repo.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, item := range stale {
		if _, err := s.expireUpload(ctx, item.MediaID); err != nil {
			if errors.Is(err, domainerrors.ErrInvalidStateTransition) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s Service) expireUpload(ctx context.Context, mediaID string) (entities.MediaItem, error) {
	return s.transition(ctx, mediaID, nil, entities.StatusFailed, func(item *entities.MediaItem) {
		item.FailureReason = "upload was not completed in time"
	}, contractsv1.EventMediaFailed)
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

func (s Service) quota() int64 {
	if s.QuotaBytes <= 0 {
		return defaultQuotaBytes
	}
	return s.QuotaBytes
}

func (s Service) uploadTTL() time.Duration {
	if s.UploadTTL <= 0 {
		return defaultUploadTTL
	}
	return s.UploadTTL
}

func (s Service) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return defaultIdempotencyTTL
	}
	return s.IdempotencyTTL
}

func canAccess(item entities.MediaItem, actor ports.Actor) bool {
	return actor.IsAdmin || (strings.TrimSpace(actor.UserID) != "" && actor.UserID == item.OwnerID)
}

func hashRequest(fields map[string]any) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
