package mysql

import (
	"context"
	"time"

	mpesaDomain "chama-backend/internal/domain/mpesa"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionRepository struct{ db *gorm.DB }

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, t *mpesaDomain.Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TransactionRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*mpesaDomain.Transaction, error) {
	var out mpesaDomain.Transaction
	res := r.db.WithContext(ctx).Where("checkout_request_id = ?", checkoutRequestID).First(&out)
	return &out, res.Error
}

func (r *TransactionRepository) GetByCheckoutRequestIDForUpdate(ctx context.Context, checkoutRequestID string) (*mpesaDomain.Transaction, error) {
	var out mpesaDomain.Transaction
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&out)
	return &out, res.Error
}

// Resolve is a compare-and-set on status; a second writer affects no rows.
func (r *TransactionRepository) Resolve(ctx context.Context, id uint64, res mpesaDomain.Resolution) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&mpesaDomain.Transaction{}).
		Where("id = ? AND status = ?", id, mpesaDomain.StatusPending).
		Updates(map[string]any{
			"status":           res.Status,
			"result_code":      res.ResultCode,
			"result_desc":      res.ResultDesc,
			"receipt_number":   res.ReceiptNumber,
			"transaction_date": res.TransactionDate,
			"updated_at":       res.At,
		})
	return q.RowsAffected == 1, q.Error
}

func (r *TransactionRepository) MarkSettled(ctx context.Context, id uint64, settledAt *time.Time, note string) error {
	return r.db.WithContext(ctx).
		Model(&mpesaDomain.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]any{"settled_at": settledAt, "settlement_note": note}).Error
}

func (r *TransactionRepository) LogCallback(ctx context.Context, l *mpesaDomain.CallbackLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}
