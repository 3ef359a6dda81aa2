package mysql

import (
	"context"

	"chama-backend/internal/domain/loan"
	"chama-backend/internal/domain/member"
	"chama-backend/internal/domain/mpesa"
	"chama-backend/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func reposFor(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		Loans:         &LoanRepository{db: tx},
		Payments:      &PaymentRepository{db: tx},
		Members:       &MemberRepository{db: tx},
		Contributions: &ContributionRepository{db: tx},
		Transactions:  &TransactionRepository{db: tx},
		Audit:         &AuditRepository{db: tx},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposFor(tx))
	})
}

func (u *GormUoW) WithinLoanTx(ctx context.Context, loanNumber string, fn func(r uow.Repos, l *loan.Loan) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		// lock the loan row up-front to prevent races
		l, err := r.Loans.GetByLoanNumberForUpdate(ctx, loanNumber)
		if err != nil {
			return err
		}
		return fn(r, l)
	})
}

func (u *GormUoW) WithinMemberTx(ctx context.Context, memberID uint64, fn func(r uow.Repos, m *member.Member) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		m, err := r.Members.GetByIDForUpdate(ctx, memberID)
		if err != nil {
			return err
		}
		return fn(r, m)
	})
}

func (u *GormUoW) WithinCheckoutTx(ctx context.Context, checkoutRequestID string, fn func(r uow.Repos, t *mpesa.Transaction) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		t, err := r.Transactions.GetByCheckoutRequestIDForUpdate(ctx, checkoutRequestID)
		if err != nil {
			return err
		}
		return fn(r, t)
	})
}
