package loanmock

import (
	"context"

	domain "chama-backend/internal/domain/loan"
)

var (
	_ domain.Repository        = (*Repo)(nil)
	_ domain.PaymentRepository = (*PaymentRepo)(nil)
)

// Repo is a function-backed mock that satisfies domain.Repository.
// Writes default to a no-op; reads default to context.Canceled.
type Repo struct {
	CreateFn                        func(ctx context.Context, l *domain.Loan) error
	SaveFn                          func(ctx context.Context, l *domain.Loan) error
	GetByLoanNumberFn               func(ctx context.Context, loanNumber string) (*domain.Loan, error)
	GetByLoanNumberForUpdateFn      func(ctx context.Context, loanNumber string) (*domain.Loan, error)
	GetActiveByMemberIDFn           func(ctx context.Context, memberID uint64) (*domain.Loan, error)
	GetPayableByMemberIDForUpdateFn func(ctx context.Context, memberID uint64) (*domain.Loan, error)
	ListByMemberIDFn                func(ctx context.Context, memberID uint64) ([]domain.Loan, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, l *domain.Loan) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetByLoanNumber(ctx context.Context, loanNumber string) (*domain.Loan, error) {
	if m.GetByLoanNumberFn != nil {
		return m.GetByLoanNumberFn(ctx, loanNumber)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByLoanNumberForUpdate(ctx context.Context, loanNumber string) (*domain.Loan, error) {
	if m.GetByLoanNumberForUpdateFn != nil {
		return m.GetByLoanNumberForUpdateFn(ctx, loanNumber)
	}
	return nil, context.Canceled
}

func (m *Repo) GetActiveByMemberID(ctx context.Context, memberID uint64) (*domain.Loan, error) {
	if m.GetActiveByMemberIDFn != nil {
		return m.GetActiveByMemberIDFn(ctx, memberID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetPayableByMemberIDForUpdate(ctx context.Context, memberID uint64) (*domain.Loan, error) {
	if m.GetPayableByMemberIDForUpdateFn != nil {
		return m.GetPayableByMemberIDForUpdateFn(ctx, memberID)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByMemberID(ctx context.Context, memberID uint64) ([]domain.Loan, error) {
	if m.ListByMemberIDFn != nil {
		return m.ListByMemberIDFn(ctx, memberID)
	}
	return nil, context.Canceled
}

type PaymentRepo struct {
	CreateFn       func(ctx context.Context, p *domain.Payment) error
	ListByLoanIDFn func(ctx context.Context, loanID uint64) ([]domain.Payment, error)
}

func (m *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, p)
	}
	return nil
}

func (m *PaymentRepo) ListByLoanID(ctx context.Context, loanID uint64) ([]domain.Payment, error) {
	if m.ListByLoanIDFn != nil {
		return m.ListByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}
