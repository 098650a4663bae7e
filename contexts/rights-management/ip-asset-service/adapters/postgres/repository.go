package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/rights-management/ip-asset-service/application"
	"ygbackend/contexts/rights-management/ip-asset-service/domain/entities"
	domainerrors "ygbackend/contexts/rights-management/ip-asset-service/domain/errors"
	"ygbackend/contexts/rights-management/ip-asset-service/ports"
	"ygbackend/internal/platform/db"
	"ygbackend/internal/shared/idempotency"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db          *gorm.DB
	idempotency *idempotency.GormStore
	logger      *slog.Logger
}

func NewRepository(conn *gorm.DB, logger *slog.Logger) *Repository {
	return &Repository{
		db:          conn,
		idempotency: idempotency.NewGormStore(conn, "ip-asset-service"),
		logger:      application.ResolveLogger(logger),
	}
}

type assetModel struct {
	AssetID     string         `gorm:"column:asset_id;primaryKey"`
	Title       string         `gorm:"column:title"`
	Description string         `gorm:"column:description"`
	Type        string         `gorm:"column:asset_type"`
	Status      string         `gorm:"column:status"`
	CreatedBy   string         `gorm:"column:created_by"`
	MediaID     string         `gorm:"column:media_id"`
	Tags        pq.StringArray `gorm:"column:tags;type:text[]"`
	Version     int            `gorm:"column:version"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
	DeletedAt   *time.Time     `gorm:"column:deleted_at"`
}

func (assetModel) TableName() string { return "ip_assets" }

type ownerModel struct {
	AssetID       string     `gorm:"column:asset_id;primaryKey"`
	CreatorID     string     `gorm:"column:creator_id;primaryKey"`
	ShareBps      int        `gorm:"column:share_bps"`
	OwnershipType string     `gorm:"column:ownership_type"`
	StartDate     time.Time  `gorm:"column:start_date"`
	EndDate       *time.Time `gorm:"column:end_date"`
}

func (ownerModel) TableName() string { return "ip_asset_owners" }

func (r *Repository) CreateAsset(ctx context.Context, asset entities.IPAsset) error {
	return db.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		row := assetModelFromEntity(asset)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrVersionConflict
			}
			return err
		}
		return replaceOwners(tx, asset)
	})
}

func (r *Repository) GetAsset(ctx context.Context, assetID string) (entities.IPAsset, error) {
	var row assetModel
	err := db.Conn(ctx, r.db).Where("asset_id = ?", assetID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.IPAsset{}, domainerrors.ErrAssetNotFound
		}
		return entities.IPAsset{}, err
	}
	owners, err := r.loadOwners(ctx, []string{row.AssetID})
	if err != nil {
		return entities.IPAsset{}, err
	}
	return row.toEntity(owners[row.AssetID]), nil
}

func (r *Repository) UpdateAsset(ctx context.Context, asset entities.IPAsset, expectedVersion int) error {
	return db.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&assetModel{}).
			Where("asset_id = ? AND version = ?", asset.AssetID, expectedVersion).
			Updates(map[string]any{
				"title":       asset.Title,
				"description": asset.Description,
				"status":      string(asset.Status),
				"media_id":    asset.MediaID,
				"tags":        pq.StringArray(asset.Tags),
				"version":     asset.Version,
				"updated_at":  asset.UpdatedAt.UTC(),
				"deleted_at":  asset.DeletedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&assetModel{}).Where("asset_id = ?", asset.AssetID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domainerrors.ErrAssetNotFound
			}
			return domainerrors.ErrVersionConflict
		}
		return replaceOwners(tx, asset)
	})
}

func (r *Repository) ListAssets(ctx context.Context, filter ports.AssetFilter) ([]entities.IPAsset, error) {
	query := db.Conn(ctx, r.db).Model(&assetModel{}).Where("deleted_at IS NULL")
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Type != "" {
		query = query.Where("asset_type = ?", string(filter.Type))
	}
	if filter.CreatorID != "" {
		query = query.Where("created_by = ?", filter.CreatorID)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", pattern, pattern)
	}
	query = query.Order("created_at DESC").Order("asset_id DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []assetModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.AssetID)
	}
	owners, err := r.loadOwners(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]entities.IPAsset, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity(owners[row.AssetID]))
	}
	return items, nil
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

func (r *Repository) loadOwners(ctx context.Context, assetIDs []string) (map[string][]entities.Ownership, error) {
	out := make(map[string][]entities.Ownership, len(assetIDs))
	if len(assetIDs) == 0 {
		return out, nil
	}
	var rows []ownerModel
	if err := db.Conn(ctx, r.db).
		Where("asset_id IN ?", assetIDs).
		Order("share_bps DESC").
		Order("creator_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.AssetID] = append(out[row.AssetID], entities.Ownership{
			CreatorID: row.CreatorID,
			ShareBps:  row.ShareBps,
			Type:      entities.OwnershipType(row.OwnershipType),
			StartDate: row.StartDate.UTC(),
			EndDate:   utcPtr(row.EndDate),
		})
	}
	return out, nil
}

func replaceOwners(tx *gorm.DB, asset entities.IPAsset) error {
	if err := tx.Where("asset_id = ?", asset.AssetID).Delete(&ownerModel{}).Error; err != nil {
		return err
	}
	if len(asset.Owners) == 0 {
		return nil
	}
	rows := make([]ownerModel, 0, len(asset.Owners))
	for _, owner := range asset.Owners {
		rows = append(rows, ownerModel{
			AssetID:       asset.AssetID,
			CreatorID:     owner.CreatorID,
			ShareBps:      owner.ShareBps,
			OwnershipType: string(owner.Type),
			StartDate:     owner.StartDate.UTC(),
			EndDate:       utcPtr(owner.EndDate),
		})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func assetModelFromEntity(asset entities.IPAsset) assetModel {
	return assetModel{
		AssetID:     asset.AssetID,
		Title:       asset.Title,
		Description: asset.Description,
		Type:        string(asset.Type),
		Status:      string(asset.Status),
		CreatedBy:   asset.CreatedBy,
		MediaID:     asset.MediaID,
		Tags:        pq.StringArray(asset.Tags),
		Version:     asset.Version,
		CreatedAt:   asset.CreatedAt.UTC(),
		UpdatedAt:   asset.UpdatedAt.UTC(),
		DeletedAt:   utcPtr(asset.DeletedAt),
	}
}

func (m assetModel) toEntity(owners []entities.Ownership) entities.IPAsset {
	return entities.IPAsset{
		AssetID:     m.AssetID,
		Title:       m.Title,
		Description: m.Description,
		Type:        entities.AssetType(m.Type),
		Status:      entities.AssetStatus(m.Status),
		CreatedBy:   m.CreatedBy,
		MediaID:     m.MediaID,
		Tags:        append([]string(nil), m.Tags...),
		Owners:      owners,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
		DeletedAt:   utcPtr(m.DeletedAt),
	}
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
