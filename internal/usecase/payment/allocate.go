package payment

import (
	"chama-backend/internal/apperr"
	"chama-backend/internal/domain/loan"
	"chama-backend/pkg/amortization"

	"github.com/shopspring/decimal"
)

type Allocation struct {
	Amount    decimal.Decimal
	Principal decimal.Decimal
	Interest  decimal.Decimal
}

// Allocate splits amount into one period's interest on the current balance
// and principal. When the payment is smaller than the accrued interest the
// whole amount goes to principal, so principal is never negative.
func Allocate(l *loan.Loan, amount decimal.Decimal) (Allocation, error) {
	const op = "payment.Allocate"
	switch {
	case !l.IsPayable():
		return Allocation{}, apperr.Validation(op, "loan %s is %s; payments are accepted only on APPROVED or DISBURSED loans", l.LoanNumber, l.Status)
	case !amount.IsPositive():
		return Allocation{}, apperr.Validation(op, "payment amount must be positive")
	case !amount.Equal(amount.Round(2)):
		return Allocation{}, apperr.Validation(op, "payment amount must have at most 2 decimal places")
	case amount.GreaterThan(l.Balance):
		return Allocation{}, apperr.Validation(op, "payment %s exceeds outstanding balance %s", amount.StringFixed(2), l.Balance.StringFixed(2))
	}

	interest := l.Balance.Mul(amortization.MonthlyRate(l.InterestRate)).Round(2)
	principal := amount.Sub(interest)
	if principal.IsNegative() {
		principal, interest = amount, decimal.Zero
	}
	return Allocation{Amount: amount, Principal: principal, Interest: interest}, nil
}
