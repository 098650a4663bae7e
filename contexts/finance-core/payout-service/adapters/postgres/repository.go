package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ygbackend/contexts/finance-core/payout-service/application"
	"ygbackend/contexts/finance-core/payout-service/domain/entities"
	domainerrors "ygbackend/contexts/finance-core/payout-service/domain/errors"
	"ygbackend/contexts/finance-core/payout-service/ports"
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
		idempotency: idempotency.NewGormStore(conn, "payout-service"),
		logger:      application.ResolveLogger(logger),
	}
}

type accountModel struct {
	UserID           string         `gorm:"column:user_id;primaryKey"`
	StripeAccountID  string         `gorm:"column:stripe_account_id"`
	Status           string         `gorm:"column:status"`
	ChargesEnabled   bool           `gorm:"column:charges_enabled"`
	PayoutsEnabled   bool           `gorm:"column:payouts_enabled"`
	DetailsSubmitted bool           `gorm:"column:details_submitted"`
	RequirementsDue  pq.StringArray `gorm:"column:requirements_due;type:text[]"`
	DisabledReason   string         `gorm:"column:disabled_reason"`
	Country          string         `gorm:"column:country"`
	Email            string         `gorm:"column:email"`
	CreatedAt        time.Time      `gorm:"column:created_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at"`
}

func (accountModel) TableName() string { return "payout_connected_accounts" }

type ledgerModel struct {
	EntryID     string    `gorm:"column:entry_id;primaryKey"`
	UserID      string    `gorm:"column:user_id"`
	StatementID string    `gorm:"column:statement_id"`
	AmountCents int64     `gorm:"column:amount_cents"`
	Currency    string    `gorm:"column:currency"`
	Status      string    `gorm:"column:status"`
	PayoutID    string    `gorm:"column:payout_id"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (ledgerModel) TableName() string { return "payout_ledger_entries" }

type payoutModel struct {
	PayoutID         string         `gorm:"column:payout_id;primaryKey"`
	UserID           string         `gorm:"column:user_id"`
	StripeAccountID  string         `gorm:"column:stripe_account_id"`
	AmountCents      int64          `gorm:"column:amount_cents"`
	Currency         string         `gorm:"column:currency"`
	Status           string         `gorm:"column:status"`
	StripeTransferID string         `gorm:"column:stripe_transfer_id"`
	StatementIDs     pq.StringArray `gorm:"column:statement_ids;type:text[]"`
	Attempts         int            `gorm:"column:attempts"`
	NextAttemptAt    time.Time      `gorm:"column:next_attempt_at"`
	FailureReason    string         `gorm:"column:failure_reason"`
	RequestedAt      time.Time      `gorm:"column:requested_at"`
	CompletedAt      *time.Time     `gorm:"column:completed_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at"`
}

func (payoutModel) TableName() string { return "payouts" }

type webhookModel struct {
	EventID    string    `gorm:"column:event_id;primaryKey"`
	EventType  string    `gorm:"column:event_type"`
	ReceivedAt time.Time `gorm:"column:received_at"`
}

func (webhookModel) TableName() string { return "payout_webhook_events" }

func (r *Repository) GetAccountByUser(ctx context.Context, userID string) (entities.ConnectedAccount, bool, error) {
	return r.findAccount(db.Conn(ctx, r.db).Where("user_id = ?", userID))
}

func (r *Repository) GetAccountByStripeID(ctx context.Context, stripeAccountID string) (entities.ConnectedAccount, bool, error) {
	return r.findAccount(db.Conn(ctx, r.db).Where("stripe_account_id = ?", stripeAccountID))
}

func (r *Repository) findAccount(query *gorm.DB) (entities.ConnectedAccount, bool, error) {
	var row accountModel
	err := query.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.ConnectedAccount{}, false, nil
	}
	if err != nil {
		return entities.ConnectedAccount{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SaveAccount(ctx context.Context, account entities.ConnectedAccount) error {
	row := accountModel{
		UserID:           account.UserID,
		StripeAccountID:  account.StripeAccountID,
		Status:           string(account.Status),
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
		RequirementsDue:  pq.StringArray(account.RequirementsDue),
		DisabledReason:   account.DisabledReason,
		Country:          account.Country,
		Email:            account.Email,
		CreatedAt:        account.CreatedAt.UTC(),
		UpdatedAt:        account.UpdatedAt.UTC(),
	}
	return db.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stripe_account_id", "status", "charges_enabled", "payouts_enabled", "details_submitted",
			"requirements_due", "disabled_reason", "country", "email", "updated_at",
		}),
	}).Create(&row).Error
}

func (r *Repository) GetLedgerEntryByStatement(ctx context.Context, statementID string) (entities.LedgerEntry, bool, error) {
	var row ledgerModel
	err := db.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("statement_id = ?", statementID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.LedgerEntry{}, false, nil
	}
	if err != nil {
		return entities.LedgerEntry{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SaveLedgerEntry(ctx context.Context, entry entities.LedgerEntry) error {
	row := ledgerModel{
		EntryID:     entry.EntryID,
		UserID:      entry.UserID,
		StatementID: entry.StatementID,
		AmountCents: entry.AmountCents,
		Currency:    entry.Currency,
		Status:      string(entry.Status),
		PayoutID:    entry.PayoutID,
		CreatedAt:   entry.CreatedAt.UTC(),
		UpdatedAt:   entry.UpdatedAt.UTC(),
	}
	return db.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount_cents", "currency", "status", "payout_id", "updated_at"}),
	}).Create(&row).Error
}

func (r *Repository) ListLedgerEntries(ctx context.Context, filter ports.LedgerFilter) ([]entities.LedgerEntry, error) {
	query := db.Conn(ctx, r.db).Model(&ledgerModel{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.PayoutID != "" {
		query = query.Where("payout_id = ?", filter.PayoutID)
	}
	var rows []ledgerModel
	err := query.Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("created_at ASC").Order("entry_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entities.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) CreatePayout(ctx context.Context, payout entities.Payout) error {
	row := payoutModelFromEntity(payout)
	return db.Conn(ctx, r.db).Create(&row).Error
}

func (r *Repository) GetPayout(ctx context.Context, payoutID string) (entities.Payout, error) {
	return r.getPayout(db.Conn(ctx, r.db), payoutID)
}

func (r *Repository) GetPayoutForUpdate(ctx context.Context, payoutID string) (entities.Payout, error) {
	return r.getPayout(db.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), payoutID)
}

func (r *Repository) getPayout(query *gorm.DB, payoutID string) (entities.Payout, error) {
	var row payoutModel
	if err := query.Where("payout_id = ?", payoutID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Payout{}, domainerrors.ErrPayoutNotFound
		}
		return entities.Payout{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetPayoutByTransferID(ctx context.Context, transferID string) (entities.Payout, bool, error) {
	var row payoutModel
	err := db.Conn(ctx, r.db).Where("stripe_transfer_id = ?", transferID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Payout{}, false, nil
	}
	if err != nil {
		return entities.Payout{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) UpdatePayout(ctx context.Context, payout entities.Payout) error {
	row := payoutModelFromEntity(payout)
	result := db.Conn(ctx, r.db).Model(&payoutModel{}).
		Where("payout_id = ?", payout.PayoutID).
		Select("*").
		Omit("payout_id", "user_id", "requested_at").
		Updates(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrPayoutNotFound
	}
	return nil
}

func (r *Repository) ListPayouts(ctx context.Context, filter ports.PayoutFilter) ([]entities.Payout, error) {
	query := db.Conn(ctx, r.db).Model(&payoutModel{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	query = query.Order("requested_at DESC").Order("payout_id DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []payoutModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.Payout, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) ListDuePayouts(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := db.Conn(ctx, r.db).Model(&payoutModel{}).
		Where("status IN ? AND next_attempt_at <= ?",
			[]string{string(entities.PayoutPending), string(entities.PayoutProcessing)}, now.UTC()).
		Order("next_attempt_at ASC").Order("payout_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []string
	if err := query.Pluck("payout_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Repository) WebhookProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := db.Conn(ctx, r.db).Model(&webhookModel{}).Where("event_id = ?", eventID).Count(&count).Error
	return count > 0, err
}

func (r *Repository) RecordWebhook(ctx context.Context, eventID string, eventType string, receivedAt time.Time) error {
	row := webhookModel{EventID: eventID, EventType: eventType, ReceivedAt: receivedAt.UTC()}
	return db.Conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
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

func (m accountModel) toEntity() entities.ConnectedAccount {
	return entities.ConnectedAccount{
		UserID:           m.UserID,
		StripeAccountID:  m.StripeAccountID,
		Status:           entities.AccountStatus(m.Status),
		ChargesEnabled:   m.ChargesEnabled,
		PayoutsEnabled:   m.PayoutsEnabled,
		DetailsSubmitted: m.DetailsSubmitted,
		RequirementsDue:  []string(m.RequirementsDue),
		DisabledReason:   m.DisabledReason,
		Country:          m.Country,
		Email:            m.Email,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

func (m ledgerModel) toEntity() entities.LedgerEntry {
	return entities.LedgerEntry{
		EntryID:     m.EntryID,
		UserID:      m.UserID,
		StatementID: m.StatementID,
		AmountCents: m.AmountCents,
		Currency:    m.Currency,
		Status:      entities.LedgerStatus(m.Status),
		PayoutID:    m.PayoutID,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func payoutModelFromEntity(payout entities.Payout) payoutModel {
	return payoutModel{
		PayoutID:         payout.PayoutID,
		UserID:           payout.UserID,
		StripeAccountID:  payout.StripeAccountID,
		AmountCents:      payout.AmountCents,
		Currency:         payout.Currency,
		Status:           string(payout.Status),
		StripeTransferID: payout.StripeTransferID,
		StatementIDs:     pq.StringArray(payout.StatementIDs),
		Attempts:         payout.Attempts,
		NextAttemptAt:    payout.NextAttemptAt.UTC(),
		FailureReason:    payout.FailureReason,
		RequestedAt:      payout.RequestedAt.UTC(),
		CompletedAt:      payout.CompletedAt,
		UpdatedAt:        payout.UpdatedAt.UTC(),
	}
}

func (m payoutModel) toEntity() entities.Payout {
	payout := entities.Payout{
		PayoutID:         m.PayoutID,
		UserID:           m.UserID,
		StripeAccountID:  m.StripeAccountID,
		AmountCents:      m.AmountCents,
		Currency:         m.Currency,
		Status:           entities.PayoutStatus(m.Status),
		StripeTransferID: m.StripeTransferID,
		StatementIDs:     []string(m.StatementIDs),
		Attempts:         m.Attempts,
		NextAttemptAt:    m.NextAttemptAt.UTC(),
		FailureReason:    m.FailureReason,
		RequestedAt:      m.RequestedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
	if m.CompletedAt != nil {
		completedAt := m.CompletedAt.UTC()
		payout.CompletedAt = &completedAt
	}
	return payout
}
