package uow

import (
	"context"

	"chama-backend/internal/domain/audit"
	"chama-backend/internal/domain/contribution"
	"chama-backend/internal/domain/loan"
	"chama-backend/internal/domain/member"
	"chama-backend/internal/domain/mpesa"
)

// Repos are bound to one transaction.
type Repos struct {
	Loans         loan.Repository
	Payments      loan.PaymentRepository
	Members       member.Repository
	Contributions contribution.Repository
	Transactions  mpesa.Repository
	Audit         audit.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock the loan row first, then pass it in
	WithinLoanTx(ctx context.Context, loanNumber string, fn func(r Repos, l *loan.Loan) error) error
	// lock the member row first; serializes applications per member
	WithinMemberTx(ctx context.Context, memberID uint64, fn func(r Repos, m *member.Member) error) error
	// lock the pending transaction row; serializes callbacks per correlation id
	WithinCheckoutTx(ctx context.Context, checkoutRequestID string, fn func(r Repos, t *mpesa.Transaction) error) error
}
