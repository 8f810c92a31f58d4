package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chorus/contexts/moderation-core/assignment-service/domain/entities"
	domainerrors "chorus/contexts/moderation-core/assignment-service/domain/errors"
	"chorus/contexts/moderation-core/assignment-service/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func (r *Repository) GetLiveAssignment(
	ctx context.Context,
	userID string,
	workType entities.WorkType,
) (entities.Assignment, bool, error) {
	var row assignmentModel
	err := r.conn(ctx).
		Where("LOWER(user_id) = LOWER(?)", strings.TrimSpace(userID)).
		Where("work_type = ?", string(workType)).
		Order("created_at DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Assignment{}, false, nil
		}
		return entities.Assignment{}, false, r.logError("assignment_repo_get_live_failed", err,
			"user_id", strings.TrimSpace(userID),
			"work_type", string(workType),
		)
	}
	assignment, err := row.toEntity()
	if err != nil {
		return entities.Assignment{}, false, r.logError("assignment_repo_decode_failed", err,
			"assignment_id", row.ID,
		)
	}
	return assignment, true, nil
}

func (r *Repository) SaveAssignment(ctx context.Context, assignment entities.Assignment) error {
	row, err := assignmentModelFromEntity(assignment)
	if err != nil {
		return r.logError("assignment_repo_encode_failed", err,
			"assignment_id", strings.TrimSpace(assignment.AssignmentID),
		)
	}
	create := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"item_ids":   row.ItemIDs,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("assignment_repo_save_failed", create.Error,
			"assignment_id", strings.TrimSpace(assignment.AssignmentID),
		)
	}
	return nil
}

func (r *Repository) DeleteAssignment(ctx context.Context, assignmentID string) error {
	result := r.conn(ctx).
		Where("id = ?", strings.TrimSpace(assignmentID)).
		Delete(&assignmentModel{})
	if result.Error != nil {
		return r.logError("assignment_repo_delete_failed", result.Error,
			"assignment_id", strings.TrimSpace(assignmentID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAssignmentNotFound
	}
	return nil
}

func (r *Repository) ListAssignmentsCreatedBefore(
	ctx context.Context,
	workType entities.WorkType,
	before time.Time,
	limit int,
) ([]entities.Assignment, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []assignmentModel
	if err := r.conn(ctx).
		Where("work_type = ?", string(workType)).
		Where("created_at < ?", before.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("assignment_repo_list_created_before_failed", err,
			"work_type", string(workType),
		)
	}
	assignments := make([]entities.Assignment, 0, len(rows))
	for _, row := range rows {
		assignment, err := row.toEntity()
		if err != nil {
			return nil, r.logError("assignment_repo_decode_failed", err, "assignment_id", row.ID)
		}
		assignments = append(assignments, assignment)
	}
	return assignments, nil
}

func (r *Repository) ListHeldItemIDs(ctx context.Context, workType entities.WorkType) ([]string, error) {
	var rows []assignmentModel
	if err := r.conn(ctx).
		Select("item_ids").
		Where("work_type = ?", string(workType)).
		Find(&rows).Error; err != nil {
		return nil, r.logError("assignment_repo_list_held_failed", err,
			"work_type", string(workType),
		)
	}
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, row := range rows {
		var itemIDs []string
		if err := json.Unmarshal(row.ItemIDs, &itemIDs); err != nil {
			return nil, r.logError("assignment_repo_decode_failed", err, "assignment_id", row.ID)
		}
		for _, id := range itemIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *Repository) ListEligibleItems(
	ctx context.Context,
	kind string,
	locale string,
	excludeSubmitterID string,
	excludeItemIDs []string,
	limit int,
) ([]ports.CatalogItem, error) {
	if limit <= 0 {
		limit = 50
	}
	// SKIP LOCKED keeps two overlapping lease transactions from selecting the
	// same rows; a selector that lost the race simply sees a smaller pool.
	tx := r.conn(ctx).Model(&catalogItemModel{}).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("kind = ?", strings.TrimSpace(kind)).
		Where("status = ?", "pending").
		Where("deleted = ?", false).
		Where("locale = ?", strings.TrimSpace(locale)).
		Where("LOWER(submitter_id) <> LOWER(?)", strings.TrimSpace(excludeSubmitterID))
	if len(excludeItemIDs) > 0 {
		tx = tx.Where("id NOT IN ?", excludeItemIDs)
	}
	var rows []catalogItemModel
	if err := tx.Order("created_at ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, r.logError("assignment_repo_list_eligible_failed", err,
			"kind", strings.TrimSpace(kind),
			"locale", strings.TrimSpace(locale),
		)
	}
	return toCatalogItems(rows), nil
}

func (r *Repository) GetItemsByIDs(ctx context.Context, itemIDs []string) ([]ports.CatalogItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var rows []catalogItemModel
	if err := r.conn(ctx).
		Where("id IN ?", itemIDs).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("assignment_repo_get_items_by_ids_failed", err)
	}
	return toCatalogItems(rows), nil
}

func (r *Repository) MarkInReview(ctx context.Context, itemIDs []string, at time.Time) error {
	if len(itemIDs) == 0 {
		return nil
	}
	result := r.conn(ctx).
		Model(&catalogItemModel{}).
		Where("id IN ?", itemIDs).
		Where("status = ?", "pending").
		Updates(map[string]any{
			"status":     "in_review",
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return r.logError("assignment_repo_mark_in_review_failed", result.Error)
	}
	// Fewer rows than items means another transaction claimed part of the
	// batch between selection and update. Abort so nothing is handed out twice.
	if result.RowsAffected < int64(len(itemIDs)) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ReleaseToPending(ctx context.Context, itemIDs []string, at time.Time) error {
	if len(itemIDs) == 0 {
		return nil
	}
	if err := r.conn(ctx).
		Model(&catalogItemModel{}).
		Where("id IN ?", itemIDs).
		Where("status = ?", "in_review").
		Updates(map[string]any{
			"status":     "pending",
			"updated_at": at.UTC(),
		}).Error; err != nil {
		return r.logError("assignment_repo_release_to_pending_failed", err)
	}
	return nil
}

func (r *Repository) ListVotedItemIDs(ctx context.Context, validatorID string) ([]string, error) {
	var ids []string
	if err := r.conn(ctx).
		Table("item_validations").
		Distinct("item_id").
		Where("LOWER(validator_id) = LOWER(?)", strings.TrimSpace(validatorID)).
		Where("archived = ?", false).
		Pluck("item_id", &ids).Error; err != nil {
		return nil, r.logError("assignment_repo_list_voted_failed", err,
			"validator_id", strings.TrimSpace(validatorID),
		)
	}
	return ids, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "moderation-core/assignment-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("assignment repository operation failed", fields...)
	return err
}

type assignmentModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UserID    string    `gorm:"column:user_id"`
	WorkType  string    `gorm:"column:work_type"`
	ItemKind  string    `gorm:"column:item_kind"`
	Locale    string    `gorm:"column:locale"`
	ItemIDs   []byte    `gorm:"column:item_ids"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (assignmentModel) TableName() string {
	return "work_assignments"
}

func assignmentModelFromEntity(assignment entities.Assignment) (assignmentModel, error) {
	itemIDs, err := json.Marshal(assignment.ItemIDs)
	if err != nil {
		return assignmentModel{}, err
	}
	row := assignmentModel{
		ID:        strings.TrimSpace(assignment.AssignmentID),
		UserID:    strings.TrimSpace(assignment.UserID),
		WorkType:  string(assignment.WorkType),
		ItemKind:  strings.TrimSpace(assignment.ItemKind),
		Locale:    strings.TrimSpace(assignment.Locale),
		ItemIDs:   itemIDs,
		CreatedAt: assignment.CreatedAt.UTC(),
		UpdatedAt: assignment.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row, nil
}

func (m assignmentModel) toEntity() (entities.Assignment, error) {
	var itemIDs []string
	if len(m.ItemIDs) > 0 {
		if err := json.Unmarshal(m.ItemIDs, &itemIDs); err != nil {
			return entities.Assignment{}, err
		}
	}
	return entities.Assignment{
		AssignmentID: m.ID,
		UserID:       m.UserID,
		WorkType:     entities.WorkType(m.WorkType),
		ItemKind:     m.ItemKind,
		Locale:       m.Locale,
		ItemIDs:      itemIDs,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}, nil
}

type catalogItemModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Kind        string    `gorm:"column:kind"`
	Locale      string    `gorm:"column:locale"`
	SubmitterID string    `gorm:"column:submitter_id"`
	Status      string    `gorm:"column:status"`
	Text        string    `gorm:"column:text"`
	Category    string    `gorm:"column:category"`
	Deleted     bool      `gorm:"column:deleted"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (catalogItemModel) TableName() string {
	return "validatable_items"
}

func toCatalogItems(rows []catalogItemModel) []ports.CatalogItem {
	items := make([]ports.CatalogItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.CatalogItem{
			ItemID:      row.ID,
			Kind:        row.Kind,
			Locale:      row.Locale,
			SubmitterID: row.SubmitterID,
			Status:      row.Status,
			Text:        row.Text,
			Category:    row.Category,
		})
	}
	return items
}

var _ ports.AssignmentRepository = (*Repository)(nil)
var _ ports.ItemCatalog = (*Repository)(nil)
var _ ports.VotedItemsSource = (*Repository)(nil)
var _ ports.TxRunner = (*Repository)(nil)
