package mysql

import (
	"context"

	auditDomain "chama-backend/internal/domain/audit"

	"gorm.io/gorm"
)

type AuditRepository struct{ db *gorm.DB }

func NewAuditRepository(db *gorm.DB) *AuditRepository { return &AuditRepository{db: db} }

func (r *AuditRepository) Record(ctx context.Context, t *auditDomain.Transition) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *AuditRepository) ListByLoanID(ctx context.Context, loanID uint64) ([]auditDomain.Transition, error) {
	var out []auditDomain.Transition
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("at ASC, id ASC").
		Find(&out)
	return out, res.Error
}
