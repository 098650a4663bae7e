package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"ygbackend/contexts/finance-core/royalty-service/application"
	"ygbackend/contexts/finance-core/royalty-service/domain/entities"
	domainerrors "ygbackend/contexts/finance-core/royalty-service/domain/errors"
	"ygbackend/contexts/finance-core/royalty-service/ports"
	"ygbackend/internal/platform/db"
	"ygbackend/internal/shared/idempotency"

	"github.com/jackc/pgx/v5/pgconn"
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
		idempotency: idempotency.NewGormStore(conn, "royalty-service"),
		logger:      application.ResolveLogger(logger),
	}
}

type revenueModel struct {
	EntryID    string    `gorm:"column:entry_id;primaryKey"`
	LicenseID  string    `gorm:"column:license_id"`
	IPAssetID  string    `gorm:"column:ip_asset_id"`
	GrossCents int64     `gorm:"column:gross_cents"`
	Currency   string    `gorm:"column:currency"`
	OccurredAt time.Time `gorm:"column:occurred_at"`
	Source     string    `gorm:"column:source"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (revenueModel) TableName() string { return "royalty_revenue_entries" }

type runModel struct {
	RunID             string     `gorm:"column:run_id;primaryKey"`
	PeriodStart       time.Time  `gorm:"column:period_start"`
	PeriodEnd         time.Time  `gorm:"column:period_end"`
	Status            string     `gorm:"column:status"`
	TotalRevenueCents int64      `gorm:"column:total_revenue_cents"`
	TotalRoyaltyCents int64      `gorm:"column:total_royalty_cents"`
	TotalFeeCents     int64      `gorm:"column:total_fee_cents"`
	StatementCount    int        `gorm:"column:statement_count"`
	Skipped           []byte     `gorm:"column:skipped;type:jsonb"`
	CreatedBy         string     `gorm:"column:created_by"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	CalculatedAt      *time.Time `gorm:"column:calculated_at"`
	LockedAt          *time.Time `gorm:"column:locked_at"`
}

func (runModel) TableName() string { return "royalty_runs" }

type statementModel struct {
	StatementID     string     `gorm:"column:statement_id;primaryKey"`
	RunID           string     `gorm:"column:run_id"`
	CreatorID       string     `gorm:"column:creator_id"`
	Currency        string     `gorm:"column:currency"`
	PeriodStart     time.Time  `gorm:"column:period_start"`
	PeriodEnd       time.Time  `gorm:"column:period_end"`
	EarningsCents   int64      `gorm:"column:earnings_cents"`
	FeeCents        int64      `gorm:"column:fee_cents"`
	AdjustmentCents int64      `gorm:"column:adjustment_cents"`
	NetPayableCents int64      `gorm:"column:net_payable_cents"`
	Status          string     `gorm:"column:status"`
	Lines           []byte     `gorm:"column:lines;type:jsonb"`
	DisputeReason   string     `gorm:"column:dispute_reason"`
	ResolutionNote  string     `gorm:"column:resolution_note"`
	PayoutID        string     `gorm:"column:payout_id"`
	IssuedAt        *time.Time `gorm:"column:issued_at"`
	PaidAt          *time.Time `gorm:"column:paid_at"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (statementModel) TableName() string { return "royalty_statements" }

type termsModel struct {
	LicenseID   string    `gorm:"column:license_id;primaryKey"`
	IPAssetID   string    `gorm:"column:ip_asset_id"`
	LicensorID  string    `gorm:"column:licensor_id"`
	RevShareBps int       `gorm:"column:rev_share_bps"`
	Version     int       `gorm:"column:version"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (termsModel) TableName() string { return "royalty_license_terms" }

type ownershipModel struct {
	IPAssetID string    `gorm:"column:ip_asset_id;primaryKey"`
	Owners    []byte    `gorm:"column:owners;type:jsonb"`
	Version   int       `gorm:"column:version"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (ownershipModel) TableName() string { return "royalty_asset_ownership" }

func (r *Repository) CreateRevenue(ctx context.Context, entry entities.RevenueEntry) error {
	row := revenueModel{
		EntryID:    entry.EntryID,
		LicenseID:  entry.LicenseID,
		IPAssetID:  entry.IPAssetID,
		GrossCents: entry.GrossCents,
		Currency:   entry.Currency,
		OccurredAt: entry.OccurredAt.UTC(),
		Source:     entry.Source,
		CreatedAt:  entry.CreatedAt.UTC(),
	}
	if err := db.Conn(ctx, r.db).Create(&row).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainerrors.ErrRevenueConflict
		}
		return err
	}
	return nil
}

func (r *Repository) GetRevenue(ctx context.Context, entryID string) (entities.RevenueEntry, bool, error) {
	var row revenueModel
	err := db.Conn(ctx, r.db).Where("entry_id = ?", entryID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.RevenueEntry{}, false, nil
	}
	if err != nil {
		return entities.RevenueEntry{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListRevenue(ctx context.Context, start time.Time, end time.Time) ([]entities.RevenueEntry, error) {
	var rows []revenueModel
	err := db.Conn(ctx, r.db).
		Where("occurred_at >= ? AND occurred_at < ?", start.UTC(), end.UTC()).
		Order("entry_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entities.RevenueEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) CreateRun(ctx context.Context, run entities.RoyaltyRun) error {
	row, err := runModelFromEntity(run)
	if err != nil {
		return err
	}
	return db.Conn(ctx, r.db).Create(&row).Error
}

func (r *Repository) GetRun(ctx context.Context, runID string) (entities.RoyaltyRun, error) {
	return r.getRun(db.Conn(ctx, r.db), runID)
}

func (r *Repository) GetRunForUpdate(ctx context.Context, runID string) (entities.RoyaltyRun, error) {
	return r.getRun(db.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), runID)
}

func (r *Repository) getRun(query *gorm.DB, runID string) (entities.RoyaltyRun, error) {
	var row runModel
	if err := query.Where("run_id = ?", runID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.RoyaltyRun{}, domainerrors.ErrRunNotFound
		}
		return entities.RoyaltyRun{}, err
	}
	return row.toEntity()
}

func (r *Repository) UpdateRun(ctx context.Context, run entities.RoyaltyRun) error {
	row, err := runModelFromEntity(run)
	if err != nil {
		return err
	}
	result := db.Conn(ctx, r.db).Model(&runModel{}).
		Where("run_id = ?", run.RunID).
		Select("*").
		Omit("run_id", "created_at", "created_by").
		Updates(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRunNotFound
	}
	return nil
}

func (r *Repository) ListRuns(ctx context.Context, filter ports.RunFilter) ([]entities.RoyaltyRun, error) {
	query := db.Conn(ctx, r.db).Model(&runModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	query = query.Order("period_start DESC").Order("run_id DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []runModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.RoyaltyRun, 0, len(rows))
	for _, row := range rows {
		run, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func (r *Repository) HasOverlappingLockedRun(ctx context.Context, start time.Time, end time.Time, excludeRunID string) (bool, error) {
	var count int64
	err := db.Conn(ctx, r.db).Model(&runModel{}).
		Where("status = ? AND period_start < ? AND period_end > ? AND run_id <> ?",
			string(entities.RunLocked), end.UTC(), start.UTC(), excludeRunID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) ReplaceStatements(ctx context.Context, runID string, statements []entities.Statement) error {
	conn := db.Conn(ctx, r.db)
	if err := conn.Where("run_id = ?", runID).Delete(&statementModel{}).Error; err != nil {
		return err
	}
	if len(statements) == 0 {
		return nil
	}
	rows := make([]statementModel, 0, len(statements))
	for _, statement := range statements {
		row, err := statementModelFromEntity(statement)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return conn.CreateInBatches(&rows, 200).Error
}

func (r *Repository) GetStatement(ctx context.Context, statementID string) (entities.Statement, error) {
	var row statementModel
	if err := db.Conn(ctx, r.db).Where("statement_id = ?", statementID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Statement{}, domainerrors.ErrStatementNotFound
		}
		return entities.Statement{}, err
	}
	return row.toEntity()
}

func (r *Repository) UpdateStatement(ctx context.Context, statement entities.Statement) error {
	row, err := statementModelFromEntity(statement)
	if err != nil {
		return err
	}
	result := db.Conn(ctx, r.db).Model(&statementModel{}).
		Where("statement_id = ?", statement.StatementID).
		Select("*").
		Omit("statement_id", "run_id", "creator_id", "created_at").
		Updates(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrStatementNotFound
	}
	return nil
}

func (r *Repository) ListStatements(ctx context.Context, filter ports.StatementFilter) ([]entities.Statement, error) {
	query := db.Conn(ctx, r.db).Model(&statementModel{})
	if filter.CreatorID != "" {
		query = query.Where("creator_id = ?", filter.CreatorID)
	}
	if filter.RunID != "" {
		query = query.Where("run_id = ?", filter.RunID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.IssuedOnly {
		query = query.Where("issued_at IS NOT NULL")
	}
	query = query.Order("period_start DESC").Order("creator_id ASC").Order("statement_id ASC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []statementModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.Statement, 0, len(rows))
	for _, row := range rows {
		statement, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, statement)
	}
	return out, nil
}

func (r *Repository) GetLicenseTerms(ctx context.Context, licenseID string) (entities.LicenseTerms, bool, error) {
	var row termsModel
	err := db.Conn(ctx, r.db).Where("license_id = ?", licenseID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.LicenseTerms{}, false, nil
	}
	if err != nil {
		return entities.LicenseTerms{}, false, err
	}
	return entities.LicenseTerms{
		LicenseID:   row.LicenseID,
		IPAssetID:   row.IPAssetID,
		LicensorID:  row.LicensorID,
		RevShareBps: row.RevShareBps,
		Version:     row.Version,
		UpdatedAt:   row.UpdatedAt.UTC(),
	}, true, nil
}

func (r *Repository) PutLicenseTerms(ctx context.Context, terms entities.LicenseTerms) error {
	row := termsModel{
		LicenseID:   terms.LicenseID,
		IPAssetID:   terms.IPAssetID,
		LicensorID:  terms.LicensorID,
		RevShareBps: terms.RevShareBps,
		Version:     terms.Version,
		UpdatedAt:   terms.UpdatedAt.UTC(),
	}
	return db.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "license_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"ip_asset_id", "licensor_id", "rev_share_bps", "version", "updated_at"}),
	}).Create(&row).Error
}

func (r *Repository) GetOwnership(ctx context.Context, ipAssetID string) (entities.Ownership, bool, error) {
	var row ownershipModel
	err := db.Conn(ctx, r.db).Where("ip_asset_id = ?", ipAssetID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Ownership{}, false, nil
	}
	if err != nil {
		return entities.Ownership{}, false, err
	}
	var owners []entities.OwnerShare
	if err := json.Unmarshal(row.Owners, &owners); err != nil {
		return entities.Ownership{}, false, err
	}
	return entities.Ownership{
		IPAssetID: row.IPAssetID,
		Owners:    owners,
		Version:   row.Version,
		UpdatedAt: row.UpdatedAt.UTC(),
	}, true, nil
}

func (r *Repository) PutOwnership(ctx context.Context, ownership entities.Ownership) error {
	owners, err := json.Marshal(ownership.Owners)
	if err != nil {
		return err
	}
	row := ownershipModel{
		IPAssetID: ownership.IPAssetID,
		Owners:    owners,
		Version:   ownership.Version,
		UpdatedAt: ownership.UpdatedAt.UTC(),
	}
	return db.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip_asset_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owners", "version", "updated_at"}),
	}).Create(&row).Error
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

func (m revenueModel) toEntity() entities.RevenueEntry {
	return entities.RevenueEntry{
		EntryID:    m.EntryID,
		LicenseID:  m.LicenseID,
		IPAssetID:  m.IPAssetID,
		GrossCents: m.GrossCents,
		Currency:   m.Currency,
		OccurredAt: m.OccurredAt.UTC(),
		Source:     m.Source,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

func runModelFromEntity(run entities.RoyaltyRun) (runModel, error) {
	skipped, err := json.Marshal(run.Skipped)
	if err != nil {
		return runModel{}, err
	}
	return runModel{
		RunID:             run.RunID,
		PeriodStart:       run.PeriodStart.UTC(),
		PeriodEnd:         run.PeriodEnd.UTC(),
		Status:            string(run.Status),
		TotalRevenueCents: run.TotalRevenueCents,
		TotalRoyaltyCents: run.TotalRoyaltyCents,
		TotalFeeCents:     run.TotalFeeCents,
		StatementCount:    run.StatementCount,
		Skipped:           skipped,
		CreatedBy:         run.CreatedBy,
		CreatedAt:         run.CreatedAt.UTC(),
		CalculatedAt:      run.CalculatedAt,
		LockedAt:          run.LockedAt,
	}, nil
}

func (m runModel) toEntity() (entities.RoyaltyRun, error) {
	var skipped []entities.SkippedEntry
	if len(m.Skipped) > 0 {
		if err := json.Unmarshal(m.Skipped, &skipped); err != nil {
			return entities.RoyaltyRun{}, err
		}
	}
	return entities.RoyaltyRun{
		RunID:             m.RunID,
		PeriodStart:       m.PeriodStart.UTC(),
		PeriodEnd:         m.PeriodEnd.UTC(),
		Status:            entities.RunStatus(m.Status),
		TotalRevenueCents: m.TotalRevenueCents,
		TotalRoyaltyCents: m.TotalRoyaltyCents,
		TotalFeeCents:     m.TotalFeeCents,
		StatementCount:    m.StatementCount,
		Skipped:           skipped,
		CreatedBy:         m.CreatedBy,
		CreatedAt:         m.CreatedAt.UTC(),
		CalculatedAt:      m.CalculatedAt,
		LockedAt:          m.LockedAt,
	}, nil
}

func statementModelFromEntity(statement entities.Statement) (statementModel, error) {
	lines, err := json.Marshal(statement.Lines)
	if err != nil {
		return statementModel{}, err
	}
	return statementModel{
		StatementID:     statement.StatementID,
		RunID:           statement.RunID,
		CreatorID:       statement.CreatorID,
		Currency:        statement.Currency,
		PeriodStart:     statement.PeriodStart.UTC(),
		PeriodEnd:       statement.PeriodEnd.UTC(),
		EarningsCents:   statement.EarningsCents,
		FeeCents:        statement.FeeCents,
		AdjustmentCents: statement.AdjustmentCents,
		NetPayableCents: statement.NetPayableCents,
		Status:          string(statement.Status),
		Lines:           lines,
		DisputeReason:   statement.DisputeReason,
		ResolutionNote:  statement.ResolutionNote,
		PayoutID:        statement.PayoutID,
		IssuedAt:        statement.IssuedAt,
		PaidAt:          statement.PaidAt,
		CreatedAt:       statement.CreatedAt.UTC(),
		UpdatedAt:       statement.UpdatedAt.UTC(),
	}, nil
}

func (m statementModel) toEntity() (entities.Statement, error) {
	var lines []entities.Line
	if len(m.Lines) > 0 {
		if err := json.Unmarshal(m.Lines, &lines); err != nil {
			return entities.Statement{}, err
		}
	}
	return entities.Statement{
		StatementID:     m.StatementID,
		RunID:           m.RunID,
		CreatorID:       m.CreatorID,
		Currency:        m.Currency,
		PeriodStart:     m.PeriodStart.UTC(),
		PeriodEnd:       m.PeriodEnd.UTC(),
		EarningsCents:   m.EarningsCents,
		FeeCents:        m.FeeCents,
		AdjustmentCents: m.AdjustmentCents,
		NetPayableCents: m.NetPayableCents,
		Status:          entities.StatementStatus(m.Status),
		Lines:           lines,
		DisputeReason:   m.DisputeReason,
		ResolutionNote:  m.ResolutionNote,
		PayoutID:        m.PayoutID,
		IssuedAt:        m.IssuedAt,
		PaidAt:          m.PaidAt,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}, nil
}
