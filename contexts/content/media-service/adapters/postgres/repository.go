package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/content/media-service/application"
	"ygbackend/contexts/content/media-service/domain/entities"
	domainerrors "ygbackend/contexts/content/media-service/domain/errors"
	"ygbackend/contexts/content/media-service/ports"
	"ygbackend/internal/platform/db"
	"ygbackend/internal/shared/idempotency"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Repository struct {
	db          *gorm.DB
	idempotency *idempotency.GormStore
	logger      *slog.Logger
}

func NewRepository(conn *gorm.DB, logger *slog.Logger) *Repository {
	return &Repository{
		db:          conn,
		idempotency: idempotency.NewGormStore(conn, "media-service"),
		logger:      application.ResolveLogger(logger),
	}
}

type mediaModel struct {
	MediaID       string         `gorm:"column:media_id;primaryKey"`
	OwnerID       string         `gorm:"column:owner_id"`
	Filename      string         `gorm:"column:filename"`
	Title         string         `gorm:"column:title"`
	MimeType      string         `gorm:"column:mime_type"`
	MediaType     string         `gorm:"column:media_type"`
	SizeBytes     int64          `gorm:"column:size_bytes"`
	Status        string         `gorm:"column:status"`
	StorageKey    string         `gorm:"column:storage_key"`
	Checksum      string         `gorm:"column:checksum"`
	AltText       string         `gorm:"column:alt_text"`
	Tags          pq.StringArray `gorm:"column:tags;type:text[]"`
	FailureReason string         `gorm:"column:failure_reason"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at"`
	DeletedAt     *time.Time     `gorm:"column:deleted_at"`
}

func (mediaModel) TableName() string { return "media_items" }

func (r *Repository) CreateMedia(ctx context.Context, item entities.MediaItem) error {
	row := mediaModelFromEntity(item)
	return db.Conn(ctx, r.db).Create(&row).Error
}

func (r *Repository) GetMedia(ctx context.Context, mediaID string) (entities.MediaItem, error) {
	var row mediaModel
	err := db.Conn(ctx, r.db).Where("media_id = ?", mediaID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.MediaItem{}, domainerrors.ErrMediaNotFound
		}
		return entities.MediaItem{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdateMedia(ctx context.Context, item entities.MediaItem) error {
	row := mediaModelFromEntity(item)
	result := db.Conn(ctx, r.db).Model(&mediaModel{}).
		Where("media_id = ?", item.MediaID).
		Select("*").
		Omit("media_id", "created_at").
		Updates(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrMediaNotFound
	}
	return nil
}

func (r *Repository) ListMedia(ctx context.Context, filter ports.MediaFilter) ([]entities.MediaItem, error) {
	query := db.Conn(ctx, r.db).Model(&mediaModel{}).
		Where("owner_id = ? AND deleted_at IS NULL AND status <> ?", filter.OwnerID, string(entities.StatusDeleted))
	if filter.Type != "" {
		query = query.Where("media_type = ?", string(filter.Type))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Tag != "" {
		query = query.Where("? = ANY(tags)", filter.Tag)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("(LOWER(title) LIKE ? OR LOWER(filename) LIKE ?)", pattern, pattern)
	}
	query = query.Order("created_at DESC").Order("media_id DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return findMedia(query)
}

// UsageBytes takes a per-owner advisory lock for the surrounding transaction
// so concurrent uploads cannot overrun the quota together.
func (r *Repository) UsageBytes(ctx context.Context, ownerID string) (int64, error) {
	conn := db.Conn(ctx, r.db)
	if err := conn.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "media-quota:"+ownerID).Error; err != nil {
		return 0, err
	}
	var total int64
	err := conn.Model(&mediaModel{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Where("owner_id = ? AND deleted_at IS NULL AND status <> ?", ownerID, string(entities.StatusDeleted)).
		Scan(&total).Error
	return total, err
}

func (r *Repository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]entities.MediaItem, error) {
	query := db.Conn(ctx, r.db).
		Where("status = ? AND created_at < ?", string(entities.StatusPendingUpload), createdBefore.UTC()).
		Order("created_at ASC").
		Limit(limit)
	return findMedia(query)
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	record, found, err := r.idempotency.Lookup(ctx, key, now)
	if err != nil || !found {
		return ports.IdempotencyRecord{}, false, err
	}
	return ports.IdempotencyRecord{
		Key:             record.Key,
		RequestHash:     record.RequestHash,
		ResponsePayload: record.Payload,
		ExpiresAt:       record.ExpiresAt,
	}, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	err := r.idempotency.Save(ctx, idempotency.Record{
		Key:         record.Key,
		RequestHash: record.RequestHash,
		Payload:     record.ResponsePayload,
		ExpiresAt:   record.ExpiresAt,
	})
	if errors.Is(err, idempotency.ErrConflict) {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return err
}

func findMedia(query *gorm.DB) ([]entities.MediaItem, error) {
	var rows []mediaModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.MediaItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func mediaModelFromEntity(item entities.MediaItem) mediaModel {
	return mediaModel{
		MediaID:       item.MediaID,
		OwnerID:       item.OwnerID,
		Filename:      item.Filename,
		Title:         item.Title,
		MimeType:      item.MimeType,
		MediaType:     string(item.Type),
		SizeBytes:     item.SizeBytes,
		Status:        string(item.Status),
		StorageKey:    item.StorageKey,
		Checksum:      item.Checksum,
		AltText:       item.AltText,
		Tags:          pq.StringArray(item.Tags),
		FailureReason: item.FailureReason,
		CreatedAt:     item.CreatedAt.UTC(),
		UpdatedAt:     item.UpdatedAt.UTC(),
		DeletedAt:     item.DeletedAt,
	}
}

func (m mediaModel) toEntity() entities.MediaItem {
	return entities.MediaItem{
		MediaID:       m.MediaID,
		OwnerID:       m.OwnerID,
		Filename:      m.Filename,
		Title:         m.Title,
		MimeType:      m.MimeType,
		Type:          entities.MediaType(m.MediaType),
		SizeBytes:     m.SizeBytes,
		Status:        entities.MediaStatus(m.Status),
		StorageKey:    m.StorageKey,
		Checksum:      m.Checksum,
		AltText:       m.AltText,
		Tags:          append([]string(nil), m.Tags...),
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
		DeletedAt:     m.DeletedAt,
	}
}
