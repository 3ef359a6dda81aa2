package mpesa

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*Transaction, error)
	// GetByCheckoutRequestIDForUpdate row-locks the record; call inside a transaction.
	GetByCheckoutRequestIDForUpdate(ctx context.Context, checkoutRequestID string) (*Transaction, error)
	// Resolve moves a PENDING record to a terminal status. It reports false
	// when the record was no longer PENDING.
	Resolve(ctx context.Context, id uint64, r Resolution) (bool, error)
	// MarkSettled records whether the downstream ledger effect was applied.
	// A nil settledAt with a note means the money is held for review.
	MarkSettled(ctx context.Context, id uint64, settledAt *time.Time, note string) error
	LogCallback(ctx context.Context, l *CallbackLog) error
}
