package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ygbackend/contexts/communications/messaging-service/application"
	"ygbackend/contexts/communications/messaging-service/domain/entities"
	domainerrors "ygbackend/contexts/communications/messaging-service/domain/errors"
	"ygbackend/contexts/communications/messaging-service/ports"
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
		idempotency: idempotency.NewGormStore(conn, "messaging-service"),
		logger:      application.ResolveLogger(logger),
	}
}

type threadModel struct {
	ThreadID       string         `gorm:"column:thread_id;primaryKey"`
	Subject        string         `gorm:"column:subject"`
	ParticipantIDs pq.StringArray `gorm:"column:participant_ids;type:text[]"`
	CreatedBy      string         `gorm:"column:created_by"`
	LastMessageAt  time.Time      `gorm:"column:last_message_at"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
}

func (threadModel) TableName() string { return "message_threads" }

type messageModel struct {
	MessageID     string         `gorm:"column:message_id;primaryKey"`
	ThreadID      string         `gorm:"column:thread_id"`
	SenderID      string         `gorm:"column:sender_id"`
	Body          string         `gorm:"column:body"`
	AttachmentIDs pq.StringArray `gorm:"column:attachment_ids;type:text[]"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
	EditedAt      *time.Time     `gorm:"column:edited_at"`
	DeletedAt     *time.Time     `gorm:"column:deleted_at"`
}

func (messageModel) TableName() string { return "messages" }

type threadStateModel struct {
	UserID     string    `gorm:"column:user_id;primaryKey"`
	ThreadID   string    `gorm:"column:thread_id;primaryKey"`
	LastReadAt time.Time `gorm:"column:last_read_at"`
	Archived   bool      `gorm:"column:archived"`
}

func (threadStateModel) TableName() string { return "message_thread_states" }

func (r *Repository) CreateThread(ctx context.Context, thread entities.Thread) error {
	row := threadModel{
		ThreadID:       thread.ThreadID,
		Subject:        thread.Subject,
		ParticipantIDs: pq.StringArray(thread.ParticipantIDs),
		CreatedBy:      thread.CreatedBy,
		LastMessageAt:  thread.LastMessageAt.UTC(),
		CreatedAt:      thread.CreatedAt.UTC(),
	}
	if err := db.Conn(ctx, r.db).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidThreadInput
		}
		return err
	}
	return nil
}

func (r *Repository) GetThread(ctx context.Context, threadID string) (entities.Thread, error) {
	var row threadModel
	if err := db.Conn(ctx, r.db).Where("thread_id = ?", threadID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Thread{}, domainerrors.ErrThreadNotFound
		}
		return entities.Thread{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) TouchThread(ctx context.Context, threadID string, lastMessageAt time.Time) error {
	result := db.Conn(ctx, r.db).Model(&threadModel{}).
		Where("thread_id = ?", threadID).
		Update("last_message_at", gorm.Expr("GREATEST(last_message_at, ?)", lastMessageAt.UTC()))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrThreadNotFound
	}
	return nil
}

func (r *Repository) ListThreads(ctx context.Context, filter ports.ThreadFilter) ([]entities.Thread, error) {
	query := db.Conn(ctx, r.db).Model(&threadModel{}).Where("? = ANY(participant_ids)", filter.UserID)
	if !filter.IncludeArchived {
		query = query.Where(`NOT EXISTS (
			SELECT 1 FROM message_thread_states s
			WHERE s.thread_id = message_threads.thread_id AND s.user_id = ? AND s.archived
		)`, filter.UserID)
	}
	var rows []threadModel
	if err := query.
		Order("last_message_at DESC").
		Order("thread_id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.Thread, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) CreateMessage(ctx context.Context, message entities.Message) error {
	row := messageModelFromEntity(message)
	return db.Conn(ctx, r.db).Create(&row).Error
}

func (r *Repository) GetMessage(ctx context.Context, messageID string) (entities.Message, error) {
	var row messageModel
	err := db.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("message_id = ?", messageID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Message{}, domainerrors.ErrMessageNotFound
		}
		return entities.Message{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdateMessage(ctx context.Context, message entities.Message) error {
	result := db.Conn(ctx, r.db).Model(&messageModel{}).
		Where("message_id = ?", message.MessageID).
		Updates(map[string]any{
			"body":           message.Body,
			"attachment_ids": pq.StringArray(message.AttachmentIDs),
			"edited_at":      utcPtr(message.EditedAt),
			"deleted_at":     utcPtr(message.DeletedAt),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrMessageNotFound
	}
	return nil
}

func (r *Repository) ListMessages(ctx context.Context, filter ports.MessageFilter) ([]entities.Message, error) {
	query := db.Conn(ctx, r.db).Where("thread_id = ?", filter.ThreadID)
	if !filter.BeforeAt.IsZero() {
		query = query.Where("(created_at, message_id) < (?, ?)", filter.BeforeAt.UTC(), filter.BeforeID)
	}
	var rows []messageModel
	if err := query.
		Order("created_at DESC").
		Order("message_id DESC").
		Limit(filter.Limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toMessages(rows), nil
}

func (r *Repository) SearchMessages(ctx context.Context, filter ports.SearchFilter) ([]entities.Message, error) {
	var rows []messageModel
	err := db.Conn(ctx, r.db).
		Table("messages AS m").
		Select("m.*").
		Joins("JOIN message_threads t ON t.thread_id = m.thread_id").
		Where("? = ANY(t.participant_ids)", filter.UserID).
		Where("m.deleted_at IS NULL").
		Where("m.body ILIKE ?", "%"+escapeLike(filter.Query)+"%").
		Order("m.created_at DESC").
		Order("m.message_id DESC").
		Limit(filter.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toMessages(rows), nil
}

func (r *Repository) GetThreadState(ctx context.Context, userID string, threadID string) (entities.ThreadState, bool, error) {
	var row threadStateModel
	err := db.Conn(ctx, r.db).Where("user_id = ? AND thread_id = ?", userID, threadID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ThreadState{}, false, nil
		}
		return entities.ThreadState{}, false, err
	}
	return entities.ThreadState{
		UserID:     row.UserID,
		ThreadID:   row.ThreadID,
		LastReadAt: row.LastReadAt.UTC(),
		Archived:   row.Archived,
	}, true, nil
}

func (r *Repository) PutThreadState(ctx context.Context, state entities.ThreadState) error {
	row := threadStateModel{
		UserID:     state.UserID,
		ThreadID:   state.ThreadID,
		LastReadAt: state.LastReadAt.UTC(),
		Archived:   state.Archived,
	}
	return db.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "thread_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read_at", "archived"}),
	}).Create(&row).Error
}

func (r *Repository) CountUnread(ctx context.Context, userID string, threadID string) (int, error) {
	query := db.Conn(ctx, r.db).
		Table("messages AS m").
		Joins("JOIN message_threads t ON t.thread_id = m.thread_id").
		Joins("LEFT JOIN message_thread_states s ON s.thread_id = m.thread_id AND s.user_id = ?", userID).
		Where("? = ANY(t.participant_ids)", userID).
		Where("m.sender_id <> ?", userID).
		Where("m.deleted_at IS NULL").
		Where("m.created_at > COALESCE(s.last_read_at, 'epoch'::timestamptz)")
	if threadID != "" {
		query = query.Where("m.thread_id = ?", threadID)
	} else {
		query = query.Where("NOT COALESCE(s.archived, false)")
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
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

func (row threadModel) toEntity() entities.Thread {
	return entities.Thread{
		ThreadID:       row.ThreadID,
		Subject:        row.Subject,
		ParticipantIDs: append([]string(nil), row.ParticipantIDs...),
		CreatedBy:      row.CreatedBy,
		LastMessageAt:  row.LastMessageAt.UTC(),
		CreatedAt:      row.CreatedAt.UTC(),
	}
}

func messageModelFromEntity(message entities.Message) messageModel {
	return messageModel{
		MessageID:     message.MessageID,
		ThreadID:      message.ThreadID,
		SenderID:      message.SenderID,
		Body:          message.Body,
		AttachmentIDs: pq.StringArray(message.AttachmentIDs),
		CreatedAt:     message.CreatedAt.UTC(),
		EditedAt:      utcPtr(message.EditedAt),
		DeletedAt:     utcPtr(message.DeletedAt),
	}
}

func (row messageModel) toEntity() entities.Message {
	return entities.Message{
		MessageID:     row.MessageID,
		ThreadID:      row.ThreadID,
		SenderID:      row.SenderID,
		Body:          row.Body,
		AttachmentIDs: append([]string(nil), row.AttachmentIDs...),
		CreatedAt:     row.CreatedAt.UTC(),
		EditedAt:      utcPtr(row.EditedAt),
		DeletedAt:     utcPtr(row.DeletedAt),
	}
}

func toMessages(rows []messageModel) []entities.Message {
	out := make([]entities.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
