package loan

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusDisbursed, StatusPaid},
	StatusDisbursed: {StatusPaid},
}

// CanTransition reports whether from → to is an edge of the lifecycle.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool { return s == StatusRejected || s == StatusPaid }

func (l *Loan) IsActive() bool {
	for _, s := range ActiveStatuses {
		if l.Status == s {
			return true
		}
	}
	return false
}

// IsPayable: payments are accepted only once funds have been approved.
func (l *Loan) IsPayable() bool {
	return l.Status == StatusApproved || l.Status == StatusDisbursed
}

func (l *Loan) transition(to Status, at time.Time) error {
	if !CanTransition(l.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, to)
	}
	l.Status = to
	l.StatusUpdatedAt = at
	return nil
}

func (l *Loan) Approve(approver string, at time.Time) error {
	if err := l.transition(StatusApproved, at); err != nil {
		return err
	}
	l.ApprovedBy = approver
	l.ApprovedAt = &at
	return nil
}

func (l *Loan) Reject(reason string, at time.Time) error {
	if err := l.transition(StatusRejected, at); err != nil {
		return err
	}
	l.RejectionReason = reason
	return nil
}

func (l *Loan) Disburse(at time.Time) error {
	if err := l.transition(StatusDisbursed, at); err != nil {
		return err
	}
	l.DisbursedAt = &at
	return nil
}

// Credit books a payment amount against the loan. When the balance reaches
// zero the loan moves to PAID and the balance is pinned to exactly zero.
func (l *Loan) Credit(amount decimal.Decimal, at time.Time) error {
	l.AmountPaid = l.AmountPaid.Add(amount)
	l.Balance = l.Balance.Sub(amount)
	if l.Balance.Sign() <= 0 {
		if err := l.transition(StatusPaid, at); err != nil {
			return err
		}
		l.Balance = decimal.Zero
	}
	return l.CheckInvariant()
}

// CheckInvariant verifies amountPaid + balance == totalAmount and balance >= 0.
func (l *Loan) CheckInvariant() error {
	switch {
	case l.Balance.IsNegative():
		return fmt.Errorf("%w: negative balance %s", ErrInvariant, l.Balance)
	case !l.AmountPaid.Add(l.Balance).Equal(l.TotalAmount):
		return fmt.Errorf("%w: paid %s + balance %s != total %s", ErrInvariant, l.AmountPaid, l.Balance, l.TotalAmount)
	}
	return nil
}
