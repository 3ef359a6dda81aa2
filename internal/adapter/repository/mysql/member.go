package mysql

import (
	"context"

	memberDomain "chama-backend/internal/domain/member"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MemberRepository struct{ db *gorm.DB }

func NewMemberRepository(db *gorm.DB) *MemberRepository { return &MemberRepository{db: db} }

func (r *MemberRepository) Create(ctx context.Context, m *memberDomain.Member) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MemberRepository) GetByID(ctx context.Context, id uint64) (*memberDomain.Member, error) {
	var out memberDomain.Member
	res := r.db.WithContext(ctx).Where("id = ?", id).First(&out)
	return &out, res.Error
}

func (r *MemberRepository) GetByIDForUpdate(ctx context.Context, id uint64) (*memberDomain.Member, error) {
	var out memberDomain.Member
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&out)
	return &out, res.Error
}

func (r *MemberRepository) AddOutstandingLoan(ctx context.Context, id uint64, delta decimal.Decimal) error {
	return r.addTo(ctx, id, "outstanding_loan", delta)
}

func (r *MemberRepository) AddContributions(ctx context.Context, id uint64, delta decimal.Decimal) error {
	return r.addTo(ctx, id, "total_contributions", delta)
}

// addTo increments column in place; the CAST keeps MySQL in DECIMAL
// arithmetic instead of coercing the bound string to DOUBLE.
func (r *MemberRepository) addTo(ctx context.Context, id uint64, column string, delta decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&memberDomain.Member{}).
		Where("id = ?", id).
		Update(column, gorm.Expr(column+" + CAST(? AS DECIMAL(19,2))", delta.StringFixed(2)))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
