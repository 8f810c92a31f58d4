package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chorus/contexts/moderation-core/consensus-engine/domain/entities"
	domainerrors "chorus/contexts/moderation-core/consensus-engine/domain/errors"
	"chorus/contexts/moderation-core/consensus-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type txKey struct{}

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// InTx opens one database transaction and threads it through the context so
// every repository call inside fn participates in it.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *Repository) GetItem(ctx context.Context, itemID string) (entities.Validatable, error) {
	var row itemModel
	err := r.conn(ctx).
		Where("id = ?", strings.TrimSpace(itemID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Validatable{}, domainerrors.ErrItemNotFound
		}
		return entities.Validatable{}, r.logError("consensus_repo_get_item_failed", err,
			"item_id", strings.TrimSpace(itemID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetItemForUpdate(ctx context.Context, itemID string) (entities.Validatable, error) {
	var row itemModel
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", strings.TrimSpace(itemID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Validatable{}, domainerrors.ErrItemNotFound
		}
		return entities.Validatable{}, r.logError("consensus_repo_get_item_for_update_failed", err,
			"item_id", strings.TrimSpace(itemID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveItem(ctx context.Context, item entities.Validatable) error {
	row := itemModelFromEntity(item)
	create := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":               row.Status,
			"active_vote_count":    row.ActiveVoteCount,
			"text":                 row.Text,
			"category":             row.Category,
			"corrected_value":      row.CorrectedValue,
			"conflict_resolved_by": row.ConflictResolvedBy,
			"deleted":              row.Deleted,
			"updated_at":           row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("consensus_repo_save_item_failed", create.Error,
			"item_id", strings.TrimSpace(item.ItemID),
		)
	}
	return nil
}

func (r *Repository) ListPendingItems(
	ctx context.Context,
	kind entities.ItemKind,
	locale string,
	limit int,
) ([]entities.Validatable, error) {
	if limit <= 0 {
		limit = 50
	}
	tx := r.conn(ctx).Model(&itemModel{}).
		Where("kind = ?", string(kind)).
		Where("status IN ?", []string{
			string(entities.ItemStatusPending),
			string(entities.ItemStatusInReview),
		}).
		Where("deleted = ?", false)
	if strings.TrimSpace(locale) != "" {
		tx = tx.Where("locale = ?", strings.TrimSpace(locale))
	}
	var rows []itemModel
	if err := tx.Order("created_at ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, r.logError("consensus_repo_list_pending_items_failed", err,
			"kind", string(kind),
			"locale", strings.TrimSpace(locale),
		)
	}
	items := make([]entities.Validatable, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) SaveValidation(ctx context.Context, row entities.Validation) error {
	model := validationModelFromEntity(row)
	create := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"is_valid":   model.IsValid,
			"archived":   model.Archived,
			"updated_at": model.UpdatedAt,
		}),
	}).Create(&model)
	if create.Error != nil {
		// The partial unique index on active (item_id, validator_id) turns a
		// racing duplicate into a domain error instead of a second row.
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrDuplicateVote
		}
		return r.logError("consensus_repo_save_validation_failed", create.Error,
			"validation_id", strings.TrimSpace(row.ValidationID),
			"item_id", strings.TrimSpace(row.ItemID),
			"validator_id", strings.TrimSpace(row.ValidatorID),
		)
	}
	return nil
}

func (r *Repository) GetActiveValidation(
	ctx context.Context,
	itemID string,
	validatorID string,
) (entities.Validation, bool, error) {
	var row validationModel
	err := r.conn(ctx).
		Where("item_id = ?", strings.TrimSpace(itemID)).
		Where("LOWER(validator_id) = LOWER(?)", strings.TrimSpace(validatorID)).
		Where("archived = ?", false).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Validation{}, false, nil
		}
		return entities.Validation{}, false, r.logError("consensus_repo_get_active_validation_failed", err,
			"item_id", strings.TrimSpace(itemID),
			"validator_id", strings.TrimSpace(validatorID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListActiveValidations(ctx context.Context, itemID string) ([]entities.Validation, error) {
	var rows []validationModel
	if err := r.conn(ctx).
		Where("item_id = ?", strings.TrimSpace(itemID)).
		Where("archived = ?", false).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("consensus_repo_list_active_validations_failed", err,
			"item_id", strings.TrimSpace(itemID),
		)
	}
	items := make([]entities.Validation, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ArchiveValidations(ctx context.Context, itemID string, archivedAt time.Time) (int, error) {
	result := r.conn(ctx).
		Model(&validationModel{}).
		Where("item_id = ?", strings.TrimSpace(itemID)).
		Where("archived = ?", false).
		Updates(map[string]any{
			"archived":   true,
			"updated_at": archivedAt.UTC(),
		})
	if result.Error != nil {
		return 0, r.logError("consensus_repo_archive_validations_failed", result.Error,
			"item_id", strings.TrimSpace(itemID),
		)
	}
	return int(result.RowsAffected), nil
}

func (r *Repository) CountActiveByValidator(ctx context.Context, validatorID string) (int, error) {
	var count int64
	if err := r.conn(ctx).
		Model(&validationModel{}).
		Where("LOWER(validator_id) = LOWER(?)", strings.TrimSpace(validatorID)).
		Where("archived = ?", false).
		Count(&count).Error; err != nil {
		return 0, r.logError("consensus_repo_count_active_by_validator_failed", err,
			"validator_id", strings.TrimSpace(validatorID),
		)
	}
	return int(count), nil
}

func (r *Repository) ListVotedItemIDs(ctx context.Context, validatorID string) ([]string, error) {
	var ids []string
	if err := r.conn(ctx).
		Model(&validationModel{}).
		Distinct("item_id").
		Where("LOWER(validator_id) = LOWER(?)", strings.TrimSpace(validatorID)).
		Where("archived = ?", false).
		Pluck("item_id", &ids).Error; err != nil {
		return nil, r.logError("consensus_repo_list_voted_item_ids_failed", err,
			"validator_id", strings.TrimSpace(validatorID),
		)
	}
	return ids, nil
}

func (r *Repository) ListTranscriptionTexts(ctx context.Context, itemID string) ([]string, error) {
	var item itemModel
	err := r.conn(ctx).
		Where("id = ?", strings.TrimSpace(itemID)).
		First(&item).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrItemNotFound
		}
		return nil, r.logError("consensus_repo_list_transcription_texts_failed", err,
			"item_id", strings.TrimSpace(itemID),
		)
	}

	tx := r.conn(ctx).Model(&itemModel{}).
		Where("kind = ?", string(entities.ItemKindTranscription)).
		Where("deleted = ?", false)
	if strings.TrimSpace(item.ParentItemID) != "" {
		tx = tx.Where("parent_item_id = ?", strings.TrimSpace(item.ParentItemID))
	} else {
		tx = tx.Where("id = ?", item.ID)
	}
	var texts []string
	if err := tx.Order("created_at ASC").Pluck("text", &texts).Error; err != nil {
		return nil, r.logError("consensus_repo_list_transcription_texts_failed", err,
			"item_id", strings.TrimSpace(itemID),
		)
	}
	return texts, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      append([]byte(nil), envelope.Data...),
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("consensus_repo_append_outbox_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.conn(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("consensus_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	messages := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return messages, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.conn(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("consensus_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "moderation-core/consensus-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("consensus repository operation failed", fields...)
	return err
}

type itemModel struct {
	ID                 string    `gorm:"column:id;primaryKey"`
	Kind               string    `gorm:"column:kind"`
	Locale             string    `gorm:"column:locale"`
	SubmitterID        string    `gorm:"column:submitter_id"`
	ParentItemID       string    `gorm:"column:parent_item_id"`
	Status             string    `gorm:"column:status"`
	ActiveVoteCount    int       `gorm:"column:active_vote_count"`
	Text               string    `gorm:"column:text"`
	Category           string    `gorm:"column:category"`
	CorrectedValue     string    `gorm:"column:corrected_value"`
	ConflictResolvedBy string    `gorm:"column:conflict_resolved_by"`
	Deleted            bool      `gorm:"column:deleted"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (itemModel) TableName() string {
	return "validatable_items"
}

func itemModelFromEntity(item entities.Validatable) itemModel {
	row := itemModel{
		ID:                 strings.TrimSpace(item.ItemID),
		Kind:               string(item.Kind),
		Locale:             strings.TrimSpace(item.Locale),
		SubmitterID:        strings.TrimSpace(item.SubmitterID),
		ParentItemID:       strings.TrimSpace(item.ParentItemID),
		Status:             string(item.Status),
		ActiveVoteCount:    item.ActiveVoteCount,
		Text:               item.Text,
		Category:           strings.TrimSpace(item.Category),
		CorrectedValue:     item.CorrectedValue,
		ConflictResolvedBy: strings.TrimSpace(item.ConflictResolvedBy),
		Deleted:            item.Deleted,
		CreatedAt:          item.CreatedAt.UTC(),
		UpdatedAt:          item.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m itemModel) toEntity() entities.Validatable {
	return entities.Validatable{
		ItemID:             m.ID,
		Kind:               entities.ItemKind(m.Kind),
		Locale:             m.Locale,
		SubmitterID:        m.SubmitterID,
		ParentItemID:       m.ParentItemID,
		Status:             entities.ItemStatus(m.Status),
		ActiveVoteCount:    m.ActiveVoteCount,
		Text:               m.Text,
		Category:           m.Category,
		CorrectedValue:     m.CorrectedValue,
		ConflictResolvedBy: m.ConflictResolvedBy,
		Deleted:            m.Deleted,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
}

type validationModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	ItemID      string    `gorm:"column:item_id"`
	ValidatorID string    `gorm:"column:validator_id"`
	IsValid     bool      `gorm:"column:is_valid"`
	Archived    bool      `gorm:"column:archived"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (validationModel) TableName() string {
	return "item_validations"
}

func validationModelFromEntity(row entities.Validation) validationModel {
	model := validationModel{
		ID:          strings.TrimSpace(row.ValidationID),
		ItemID:      strings.TrimSpace(row.ItemID),
		ValidatorID: strings.TrimSpace(row.ValidatorID),
		IsValid:     row.IsValid,
		Archived:    row.Archived,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if model.UpdatedAt.IsZero() {
		model.UpdatedAt = model.CreatedAt
	}
	return model
}

func (m validationModel) toEntity() entities.Validation {
	return entities.Validation{
		ValidationID: m.ID,
		ItemID:       m.ItemID,
		ValidatorID:  m.ValidatorID,
		IsValid:      m.IsValid,
		Archived:     m.Archived,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "consensus_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ItemRepository = (*Repository)(nil)
var _ ports.ValidationRepository = (*Repository)(nil)
var _ ports.TranscriptionRepository = (*Repository)(nil)
var _ ports.TxRunner = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
