package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"ygbackend/contexts/rights-management/license-service/application"
	"ygbackend/contexts/rights-management/license-service/domain/entities"
	domainerrors "ygbackend/contexts/rights-management/license-service/domain/errors"
	"ygbackend/contexts/rights-management/license-service/ports"
	"ygbackend/internal/platform/db"
	"ygbackend/internal/shared/idempotency"

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
		idempotency: idempotency.NewGormStore(conn, "license-service"),
		logger:      application.ResolveLogger(logger),
	}
}

type licenseModel struct {
	LicenseID          string         `gorm:"column:license_id;primaryKey"`
	IPAssetID          string         `gorm:"column:ip_asset_id"`
	LicensorID         string         `gorm:"column:licensor_id"`
	LicenseeID         string         `gorm:"column:licensee_id"`
	Status             string         `gorm:"column:status"`
	Media              pq.StringArray `gorm:"column:media;type:text[]"`
	Placements         pq.StringArray `gorm:"column:placements;type:text[]"`
	Territories        pq.StringArray `gorm:"column:territories;type:text[]"`
	Exclusive          bool           `gorm:"column:exclusive"`
	StartDate          time.Time      `gorm:"column:start_date"`
	EndDate            time.Time      `gorm:"column:end_date"`
	FeeCents           int64          `gorm:"column:fee_cents"`
	Currency           string         `gorm:"column:currency"`
	RevShareBps        int            `gorm:"column:rev_share_bps"`
	ParentLicenseID    string         `gorm:"column:parent_license_id"`
	Version            int            `gorm:"column:version"`
	SignedAt           *time.Time     `gorm:"column:signed_at"`
	TerminatedAt       *time.Time     `gorm:"column:terminated_at"`
	TerminationReason  string         `gorm:"column:termination_reason"`
	ExpiryNoticeSentAt *time.Time     `gorm:"column:expiry_notice_sent_at"`
	CreatedAt          time.Time      `gorm:"column:created_at"`
	UpdatedAt          time.Time      `gorm:"column:updated_at"`
}

func (licenseModel) TableName() string { return "licenses" }

type amendmentModel struct {
	AmendmentID string     `gorm:"column:amendment_id;primaryKey"`
	LicenseID   string     `gorm:"column:license_id"`
	ProposedBy  string     `gorm:"column:proposed_by"`
	BaseVersion int        `gorm:"column:base_version"`
	Changes     []byte     `gorm:"column:changes;type:jsonb"`
	Reason      string     `gorm:"column:reason"`
	Status      string     `gorm:"column:status"`
	DecidedBy   string     `gorm:"column:decided_by"`
	DecidedAt   *time.Time `gorm:"column:decided_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
}

func (amendmentModel) TableName() string { return "license_amendments" }

func (r *Repository) CreateLicense(ctx context.Context, license entities.License) error {
	row := licenseModelFromEntity(license)
	return db.Conn(ctx, r.db).Create(&row).Error
}

func (r *Repository) GetLicense(ctx context.Context, licenseID string) (entities.License, error) {
	return r.getLicense(db.Conn(ctx, r.db), licenseID)
}

func (r *Repository) GetLicenseForUpdate(ctx context.Context, licenseID string) (entities.License, error) {
	return r.getLicense(db.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), licenseID)
}

func (r *Repository) getLicense(query *gorm.DB, licenseID string) (entities.License, error) {
	var row licenseModel
	if err := query.Where("license_id = ?", licenseID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.License{}, domainerrors.ErrLicenseNotFound
		}
		return entities.License{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdateLicense(ctx context.Context, license entities.License) error {
	row := licenseModelFromEntity(license)
	result := db.Conn(ctx, r.db).Model(&licenseModel{}).
		Where("license_id = ?", license.LicenseID).
		Select("*").
		Omit("license_id", "created_at").
		Updates(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrLicenseNotFound
	}
	return nil
}

func (r *Repository) ListLicenses(ctx context.Context, filter ports.LicenseFilter) ([]entities.License, error) {
	query := db.Conn(ctx, r.db).Model(&licenseModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.IPAssetID != "" {
		query = query.Where("ip_asset_id = ?", filter.IPAssetID)
	}
	if filter.LicenseeID != "" {
		query = query.Where("licensee_id = ?", filter.LicenseeID)
	}
	if filter.LicensorID != "" {
		query = query.Where("licensor_id = ?", filter.LicensorID)
	}
	if filter.PartyID != "" {
		query = query.Where("(licensor_id = ? OR licensee_id = ?)", filter.PartyID, filter.PartyID)
	}
	if filter.EndingAfter != nil {
		query = query.Where("end_date > ?", filter.EndingAfter.UTC())
	}
	if filter.EndingBefore != nil {
		query = query.Where("end_date <= ?", filter.EndingBefore.UTC())
	}
	query = query.Order("created_at DESC").Order("license_id DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return findLicenses(query)
}

func (r *Repository) ListBlockingLicenses(ctx context.Context, ipAssetID string) ([]entities.License, error) {
	query := db.Conn(ctx, r.db).
		Where("ip_asset_id = ? AND status IN ?", ipAssetID, []string{
			string(entities.LicenseStatusPendingApproval),
			string(entities.LicenseStatusActive),
		})
	return findLicenses(query)
}

func (r *Repository) ListEndedActive(ctx context.Context, now time.Time, limit int) ([]entities.License, error) {
	query := db.Conn(ctx, r.db).
		Where("status = ? AND end_date <= ?", string(entities.LicenseStatusActive), now.UTC()).
		Order("end_date ASC").
		Limit(limit)
	return findLicenses(query)
}

func (r *Repository) ListExpiringUnnoticed(ctx context.Context, now time.Time, until time.Time, limit int) ([]entities.License, error) {
	query := db.Conn(ctx, r.db).
		Where("status = ? AND expiry_notice_sent_at IS NULL AND end_date > ? AND end_date <= ?",
			string(entities.LicenseStatusActive), now.UTC(), until.UTC()).
		Order("end_date ASC").
		Limit(limit)
	return findLicenses(query)
}

func (r *Repository) CreateAmendment(ctx context.Context, amendment entities.Amendment) error {
	row, err := amendmentModelFromEntity(amendment)
	if err != nil {
		return err
	}
	return db.Conn(ctx, r.db).Create(&row).Error
}

func (r *Repository) GetAmendmentForUpdate(ctx context.Context, amendmentID string) (entities.Amendment, error) {
	var row amendmentModel
	err := db.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("amendment_id = ?", amendmentID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Amendment{}, domainerrors.ErrAmendmentNotFound
		}
		return entities.Amendment{}, err
	}
	return row.toEntity()
}

func (r *Repository) UpdateAmendment(ctx context.Context, amendment entities.Amendment) error {
	result := db.Conn(ctx, r.db).Model(&amendmentModel{}).
		Where("amendment_id = ?", amendment.AmendmentID).
		Updates(map[string]any{
			"status":     string(amendment.Status),
			"decided_by": amendment.DecidedBy,
			"decided_at": amendment.DecidedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAmendmentNotFound
	}
	return nil
}

func (r *Repository) ListAmendments(ctx context.Context, licenseID string) ([]entities.Amendment, error) {
	var rows []amendmentModel
	if err := db.Conn(ctx, r.db).
		Where("license_id = ?", licenseID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Amendment, 0, len(rows))
	for _, row := range rows {
		item, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
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

func findLicenses(query *gorm.DB) ([]entities.License, error) {
	var rows []licenseModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.License, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func licenseModelFromEntity(license entities.License) licenseModel {
	return licenseModel{
		LicenseID:          license.LicenseID,
		IPAssetID:          license.IPAssetID,
		LicensorID:         license.LicensorID,
		LicenseeID:         license.LicenseeID,
		Status:             string(license.Status),
		Media:              pq.StringArray(license.Scope.Media),
		Placements:         pq.StringArray(license.Scope.Placements),
		Territories:        pq.StringArray(license.Scope.Territories),
		Exclusive:          license.Scope.Exclusive,
		StartDate:          license.StartDate.UTC(),
		EndDate:            license.EndDate.UTC(),
		FeeCents:           license.FeeCents,
		Currency:           license.Currency,
		RevShareBps:        license.RevShareBps,
		ParentLicenseID:    license.ParentLicenseID,
		Version:            license.Version,
		SignedAt:           license.SignedAt,
		TerminatedAt:       license.TerminatedAt,
		TerminationReason:  license.TerminationReason,
		ExpiryNoticeSentAt: license.ExpiryNoticeSentAt,
		CreatedAt:          license.CreatedAt.UTC(),
		UpdatedAt:          license.UpdatedAt.UTC(),
	}
}

func (m licenseModel) toEntity() entities.License {
	return entities.License{
		LicenseID:  m.LicenseID,
		IPAssetID:  m.IPAssetID,
		LicensorID: m.LicensorID,
		LicenseeID: m.LicenseeID,
		Status:     entities.LicenseStatus(m.Status),
		Scope: entities.Scope{
			Media:       append([]string(nil), m.Media...),
			Placements:  append([]string(nil), m.Placements...),
			Territories: append([]string(nil), m.Territories...),
			Exclusive:   m.Exclusive,
		},
		StartDate:          m.StartDate.UTC(),
		EndDate:            m.EndDate.UTC(),
		FeeCents:           m.FeeCents,
		Currency:           m.Currency,
		RevShareBps:        m.RevShareBps,
		ParentLicenseID:    m.ParentLicenseID,
		Version:            m.Version,
		SignedAt:           m.SignedAt,
		TerminatedAt:       m.TerminatedAt,
		TerminationReason:  m.TerminationReason,
		ExpiryNoticeSentAt: m.ExpiryNoticeSentAt,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
}

func amendmentModelFromEntity(amendment entities.Amendment) (amendmentModel, error) {
	changes, err := json.Marshal(amendment.Changes)
	if err != nil {
		return amendmentModel{}, err
	}
	return amendmentModel{
		AmendmentID: amendment.AmendmentID,
		LicenseID:   amendment.LicenseID,
		ProposedBy:  amendment.ProposedBy,
		BaseVersion: amendment.BaseVersion,
		Changes:     changes,
		Reason:      amendment.Reason,
		Status:      string(amendment.Status),
		DecidedBy:   amendment.DecidedBy,
		DecidedAt:   amendment.DecidedAt,
		CreatedAt:   amendment.CreatedAt.UTC(),
	}, nil
}

func (m amendmentModel) toEntity() (entities.Amendment, error) {
	var changes entities.AmendmentChanges
	if len(m.Changes) > 0 {
		if err := json.Unmarshal(m.Changes, &changes); err != nil {
			return entities.Amendment{}, err
		}
	}
	return entities.Amendment{
		AmendmentID: m.AmendmentID,
		LicenseID:   m.LicenseID,
		ProposedBy:  m.ProposedBy,
		BaseVersion: m.BaseVersion,
		Changes:     changes,
		Reason:      m.Reason,
		Status:      entities.AmendmentStatus(m.Status),
		DecidedBy:   m.DecidedBy,
		DecidedAt:   m.DecidedAt,
		CreatedAt:   m.CreatedAt.UTC(),
	}, nil
}
