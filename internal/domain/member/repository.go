package member

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id uint64) (*Member, error)
	// GetByIDForUpdate row-locks the member; call inside a transaction.
	GetByIDForUpdate(ctx context.Context, id uint64) (*Member, error)
	// AddOutstandingLoan and AddContributions apply delta in SQL, never by
	// reading and re-writing the aggregate.
	AddOutstandingLoan(ctx context.Context, id uint64, delta decimal.Decimal) error
	AddContributions(ctx context.Context, id uint64, delta decimal.Decimal) error
}
