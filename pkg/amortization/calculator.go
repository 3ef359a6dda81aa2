// Package amortization computes fixed monthly repayment figures for a loan.
//
// All money values are rounded to 2 decimal places, half away from zero
// (half-up for the positive amounts handled here).
package amortization

import (
	"errors"

	"github.com/shopspring/decimal"
)

const (
	moneyPlaces = 2
	ratePlaces  = 6
)

var (
	ErrInvalidDuration  = errors.New("duration must be at least one month")
	ErrInvalidPrincipal = errors.New("principal must be positive")
	ErrNegativeRate     = errors.New("interest rate must not be negative")

	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

type Result struct {
	MonthlyPayment decimal.Decimal
	TotalAmount    decimal.Decimal
	TotalInterest  decimal.Decimal
}

// MonthlyRate converts an annual percentage rate (12 = 12%) into the
// per-month fraction used by the formula, rounded to 6 places at each step.
func MonthlyRate(annualRatePct decimal.Decimal) decimal.Decimal {
	return annualRatePct.DivRound(hundred, ratePlaces).DivRound(twelve, ratePlaces)
}

// Calculate applies M = P·r·(1+r)^n / ((1+r)^n − 1). A zero monthly rate
// falls back to M = P/n. The total M×n is never below the principal.
func Calculate(principal, annualRatePct decimal.Decimal, months int) (Result, error) {
	if months < 1 {
		return Result{}, ErrInvalidDuration
	}
	if !principal.IsPositive() {
		return Result{}, ErrInvalidPrincipal
	}
	if annualRatePct.IsNegative() {
		return Result{}, ErrNegativeRate
	}

	n := decimal.NewFromInt(int64(months))
	r := MonthlyRate(annualRatePct)

	var monthly decimal.Decimal
	if r.IsZero() {
		monthly = principal.DivRound(n, moneyPlaces)
	} else {
		growth := pow(decimal.NewFromInt(1).Add(r), months)
		num := principal.Mul(r).Mul(growth)
		den := growth.Sub(decimal.NewFromInt(1))
		monthly = num.DivRound(den, moneyPlaces)
	}
	// half-up can leave M×n a few cents below P; M never drops under P/n
	// rounded up to the cent, so the total always covers the principal
	if floor := principal.Div(n).RoundCeil(moneyPlaces); monthly.LessThan(floor) {
		monthly = floor
	}

	total := monthly.Mul(n).Round(moneyPlaces)
	return Result{
		MonthlyPayment: monthly,
		TotalAmount:    total,
		TotalInterest:  total.Sub(principal).Round(moneyPlaces),
	}, nil
}

// pow is exact: the base carries at most 6 fractional digits and n is
// bounded by the loan term, so the product stays small.
func pow(base decimal.Decimal, n int) decimal.Decimal {
	out := decimal.NewFromInt(1)
	for i := 0; i < n; i++ {
		out = out.Mul(base)
	}
	return out
}
