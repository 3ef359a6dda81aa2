package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	Save(ctx context.Context, l *Loan) error
	GetByLoanNumber(ctx context.Context, loanNumber string) (*Loan, error)
	// GetByLoanNumberForUpdate row-locks the loan; call inside a transaction.
	GetByLoanNumberForUpdate(ctx context.Context, loanNumber string) (*Loan, error)
	// GetActiveByMemberID returns the member's newest loan in ActiveStatuses.
	GetActiveByMemberID(ctx context.Context, memberID uint64) (*Loan, error)
	// GetPayableByMemberIDForUpdate row-locks the member's APPROVED/DISBURSED loan.
	GetPayableByMemberIDForUpdate(ctx context.Context, memberID uint64) (*Loan, error)
	ListByMemberID(ctx context.Context, memberID uint64) ([]Loan, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	// ListByLoanID returns payments ordered by payment time.
	ListByLoanID(ctx context.Context, loanID uint64) ([]Payment, error)
}
