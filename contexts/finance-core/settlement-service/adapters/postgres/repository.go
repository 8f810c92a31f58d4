package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chorus/contexts/finance-core/settlement-service/domain/entities"
	domainerrors "chorus/contexts/finance-core/settlement-service/domain/errors"
	"chorus/contexts/finance-core/settlement-service/ports"

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

func (r *Repository) GetTransaction(ctx context.Context, transactionID string) (entities.Transaction, error) {
	var row transactionModel
	err := r.conn(ctx).
		Where("id = ?", strings.TrimSpace(transactionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Transaction{}, domainerrors.ErrTransactionNotFound
		}
		return entities.Transaction{}, r.logError("settlement_repo_get_transaction_failed", err,
			"transaction_id", strings.TrimSpace(transactionID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetTransactionForUpdate(ctx context.Context, transactionID string) (entities.Transaction, error) {
	var row transactionModel
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", strings.TrimSpace(transactionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Transaction{}, domainerrors.ErrTransactionNotFound
		}
		return entities.Transaction{}, r.logError("settlement_repo_get_transaction_for_update_failed", err,
			"transaction_id", strings.TrimSpace(transactionID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveTransaction(ctx context.Context, transaction entities.Transaction) error {
	row := transactionModelFromEntity(transaction)
	create := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":               row.Status,
			"accepted_by_provider": row.AcceptedByProvider,
			"wallet_updated":       row.WalletUpdated,
			"status_message":       row.StatusMessage,
			"response_data":        row.ResponseData,
			"updated_at":           row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("settlement_repo_save_transaction_failed", create.Error,
			"transaction_id", strings.TrimSpace(transaction.TransactionID),
		)
	}
	return nil
}

func (r *Repository) ListTransactionsByUser(ctx context.Context, userID string, limit int) ([]entities.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []transactionModel
	if err := r.conn(ctx).
		Where("LOWER(user_id) = LOWER(?)", strings.TrimSpace(userID)).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("settlement_repo_list_transactions_failed", err,
			"user_id", strings.TrimSpace(userID),
		)
	}
	transactions := make([]entities.Transaction, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, row.toEntity())
	}
	return transactions, nil
}

func (r *Repository) GetWallet(ctx context.Context, userID string) (entities.Wallet, error) {
	var row walletModel
	err := r.conn(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Wallet{}, domainerrors.ErrWalletNotFound
		}
		return entities.Wallet{}, r.logError("settlement_repo_get_wallet_failed", err,
			"user_id", strings.TrimSpace(userID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetWalletForUpdate(ctx context.Context, userID string) (entities.Wallet, error) {
	var row walletModel
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", strings.TrimSpace(userID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Wallet{}, domainerrors.ErrWalletNotFound
		}
		return entities.Wallet{}, r.logError("settlement_repo_get_wallet_for_update_failed", err,
			"user_id", strings.TrimSpace(userID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveWallet(ctx context.Context, wallet entities.Wallet) error {
	row := walletModelFromEntity(wallet)
	create := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"accrued_minor":               row.AccruedMinor,
			"audio_benefit_minor":         row.AudioBenefitMinor,
			"image_benefit_minor":         row.ImageBenefitMinor,
			"transcription_benefit_minor": row.TranscriptionBenefitMinor,
			"deposit_minor":               row.DepositMinor,
			"total_payout_minor":          row.TotalPayoutMinor,
			"updated_at":                  row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("settlement_repo_save_wallet_failed", create.Error,
			"user_id", strings.TrimSpace(wallet.UserID),
		)
	}
	return nil
}

// ListAcceptedWorkCounts aggregates accepted items per submitter and kind
// from the consensus engine's table.
func (r *Repository) ListAcceptedWorkCounts(ctx context.Context) ([]ports.WorkCounts, error) {
	type countRow struct {
		SubmitterID string `gorm:"column:submitter_id"`
		Kind        string `gorm:"column:kind"`
		Total       int    `gorm:"column:total"`
	}
	var rows []countRow
	err := r.conn(ctx).
		Table("validatable_items").
		Select("submitter_id, kind, COUNT(*) AS total").
		Where("status = ?", "accepted").
		Where("deleted = ?", false).
		Group("submitter_id, kind").
		Scan(&rows).
		Error
	if err != nil {
		if isUndefinedTable(err) {
			// Consensus schema is optional in isolated deployments.
			return nil, nil
		}
		return nil, r.logError("settlement_repo_list_accepted_counts_failed", err)
	}
	byUser := make(map[string]*ports.WorkCounts)
	order := make([]string, 0)
	for _, row := range rows {
		counts, ok := byUser[row.SubmitterID]
		if !ok {
			counts = &ports.WorkCounts{UserID: row.SubmitterID, ByKind: make(map[string]int)}
			byUser[row.SubmitterID] = counts
			order = append(order, row.SubmitterID)
		}
		counts.ByKind[row.Kind] = row.Total
	}
	result := make([]ports.WorkCounts, 0, len(order))
	for _, userID := range order {
		result = append(result, *byUser[userID])
	}
	return result, nil
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
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("settlement_repo_append_outbox_failed", create.Error,
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
		return nil, r.logError("settlement_repo_list_pending_outbox_failed", err, "limit", limit)
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
		return r.logError("settlement_repo_mark_outbox_published_failed", result.Error,
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
		"module", "finance-core/settlement-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("settlement repository operation failed", fields...)
	return err
}

type transactionModel struct {
	ID                 string    `gorm:"column:id;primaryKey"`
	UserID             string    `gorm:"column:user_id"`
	Direction          string    `gorm:"column:direction"`
	AmountMinor        int64     `gorm:"column:amount_minor"`
	PhoneNumber        string    `gorm:"column:phone_number"`
	Network            string    `gorm:"column:network"`
	Note               string    `gorm:"column:note"`
	Status             string    `gorm:"column:status"`
	AcceptedByProvider bool      `gorm:"column:accepted_by_provider"`
	WalletUpdated      bool      `gorm:"column:wallet_updated"`
	StatusMessage      string    `gorm:"column:status_message"`
	ResponseData       string    `gorm:"column:response_data"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (transactionModel) TableName() string {
	return "settlement_transactions"
}

func transactionModelFromEntity(transaction entities.Transaction) transactionModel {
	row := transactionModel{
		ID:                 strings.TrimSpace(transaction.TransactionID),
		UserID:             strings.TrimSpace(transaction.UserID),
		Direction:          string(transaction.Direction),
		AmountMinor:        transaction.AmountMinor,
		PhoneNumber:        strings.TrimSpace(transaction.PhoneNumber),
		Network:            strings.TrimSpace(transaction.Network),
		Note:               strings.TrimSpace(transaction.Note),
		Status:             string(transaction.Status),
		AcceptedByProvider: transaction.AcceptedByProvider,
		WalletUpdated:      transaction.WalletUpdated,
		StatusMessage:      transaction.StatusMessage,
		ResponseData:       transaction.ResponseData,
		CreatedAt:          transaction.CreatedAt.UTC(),
		UpdatedAt:          transaction.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m transactionModel) toEntity() entities.Transaction {
	return entities.Transaction{
		TransactionID:      m.ID,
		UserID:             m.UserID,
		Direction:          entities.Direction(m.Direction),
		AmountMinor:        m.AmountMinor,
		PhoneNumber:        m.PhoneNumber,
		Network:            m.Network,
		Note:               m.Note,
		Status:             entities.TransactionStatus(m.Status),
		AcceptedByProvider: m.AcceptedByProvider,
		WalletUpdated:      m.WalletUpdated,
		StatusMessage:      m.StatusMessage,
		ResponseData:       m.ResponseData,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
}

type walletModel struct {
	UserID                    string    `gorm:"column:user_id;primaryKey"`
	AccruedMinor              int64     `gorm:"column:accrued_minor"`
	AudioBenefitMinor         int64     `gorm:"column:audio_benefit_minor"`
	ImageBenefitMinor         int64     `gorm:"column:image_benefit_minor"`
	TranscriptionBenefitMinor int64     `gorm:"column:transcription_benefit_minor"`
	DepositMinor              int64     `gorm:"column:deposit_minor"`
	TotalPayoutMinor          int64     `gorm:"column:total_payout_minor"`
	UpdatedAt                 time.Time `gorm:"column:updated_at"`
}

func (walletModel) TableName() string {
	return "wallets"
}

func walletModelFromEntity(wallet entities.Wallet) walletModel {
	row := walletModel{
		UserID:                    strings.TrimSpace(wallet.UserID),
		AccruedMinor:              wallet.AccruedMinor,
		AudioBenefitMinor:         wallet.AudioBenefitMinor,
		ImageBenefitMinor:         wallet.ImageBenefitMinor,
		TranscriptionBenefitMinor: wallet.TranscriptionBenefitMinor,
		DepositMinor:              wallet.DepositMinor,
		TotalPayoutMinor:          wallet.TotalPayoutMinor,
		UpdatedAt:                 wallet.UpdatedAt.UTC(),
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	return row
}

func (m walletModel) toEntity() entities.Wallet {
	return entities.Wallet{
		UserID:                    m.UserID,
		AccruedMinor:              m.AccruedMinor,
		AudioBenefitMinor:         m.AudioBenefitMinor,
		ImageBenefitMinor:         m.ImageBenefitMinor,
		TranscriptionBenefitMinor: m.TranscriptionBenefitMinor,
		DepositMinor:              m.DepositMinor,
		TotalPayoutMinor:          m.TotalPayoutMinor,
		UpdatedAt:                 m.UpdatedAt.UTC(),
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
	return "settlement_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

var _ ports.TransactionRepository = (*Repository)(nil)
var _ ports.WalletRepository = (*Repository)(nil)
var _ ports.ContributorStats = (*Repository)(nil)
var _ ports.TxRunner = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
