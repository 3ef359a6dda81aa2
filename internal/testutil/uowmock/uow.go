package uowmock

import (
	"context"
	"errors"

	"chama-backend/internal/domain/loan"
	"chama-backend/internal/domain/member"
	"chama-backend/internal/domain/mpesa"
	"chama-backend/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinTxFn         func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinLoanTxFn     func(ctx context.Context, loanNumber string, fn func(r uow.Repos, l *loan.Loan) error) error
	WithinMemberTxFn   func(ctx context.Context, memberID uint64, fn func(r uow.Repos, m *member.Member) error) error
	WithinCheckoutTxFn func(ctx context.Context, checkoutRequestID string, fn func(r uow.Repos, t *mpesa.Transaction) error) error
}

func New() *UoW { return &UoW{} }

// WithLoan makes WithinLoanTx hand l and repos to the callback.
func (m *UoW) WithLoan(r uow.Repos, l *loan.Loan) *UoW {
	m.WithinLoanTxFn = func(_ context.Context, _ string, fn func(uow.Repos, *loan.Loan) error) error {
		return fn(r, l)
	}
	return m
}

// WithMember makes WithinMemberTx hand mem and repos to the callback.
func (m *UoW) WithMember(r uow.Repos, mem *member.Member) *UoW {
	m.WithinMemberTxFn = func(_ context.Context, _ uint64, fn func(uow.Repos, *member.Member) error) error {
		return fn(r, mem)
	}
	return m
}

// Failing makes every method return err without running the callback.
func (m *UoW) Failing(err error) *UoW {
	m.WithinTxFn = func(context.Context, func(uow.Repos) error) error { return err }
	m.WithinLoanTxFn = func(context.Context, string, func(uow.Repos, *loan.Loan) error) error { return err }
	m.WithinMemberTxFn = func(context.Context, uint64, func(uow.Repos, *member.Member) error) error { return err }
	m.WithinCheckoutTxFn = func(context.Context, string, func(uow.Repos, *mpesa.Transaction) error) error { return err }
	return m
}

func (m *UoW) Reset() { *m = UoW{} }

func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}

func (m *UoW) WithinLoanTx(ctx context.Context, loanNumber string, fn func(r uow.Repos, l *loan.Loan) error) error {
	if m.WithinLoanTxFn != nil {
		return m.WithinLoanTxFn(ctx, loanNumber, fn)
	}
	return errUnimplemented
}

func (m *UoW) WithinMemberTx(ctx context.Context, memberID uint64, fn func(r uow.Repos, mem *member.Member) error) error {
	if m.WithinMemberTxFn != nil {
		return m.WithinMemberTxFn(ctx, memberID, fn)
	}
	return errUnimplemented
}

func (m *UoW) WithinCheckoutTx(ctx context.Context, checkoutRequestID string, fn func(r uow.Repos, t *mpesa.Transaction) error) error {
	if m.WithinCheckoutTxFn != nil {
		return m.WithinCheckoutTxFn(ctx, checkoutRequestID, fn)
	}
	return errUnimplemented
}
