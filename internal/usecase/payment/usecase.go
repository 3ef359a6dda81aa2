package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chama-backend/internal/apperr"
	"chama-backend/internal/domain/audit"
	"chama-backend/internal/domain/loan"
	"chama-backend/internal/domain/member"
	"chama-backend/internal/domain/uow"
	"chama-backend/internal/infrastructure/metrics"
	loanuc "chama-backend/internal/usecase/loan"
	"chama-backend/pkg/id"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const referencePrefix = "PAY"

type Usecase struct {
	uow     uow.UnitOfWork
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewUsecase(tx uow.UnitOfWork, log *slog.Logger, m *metrics.Metrics) *Usecase {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Usecase{uow: tx, log: log, metrics: m, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock is for tests.
func (u *Usecase) SetClock(now func() time.Time) { u.now = now }

// Posting is one payment to book against a loan. An empty Reference gets a
// generated PAY- reference. At is when the ledger books it and stamps any
// transition; PaidAt is when the money moved and defaults to At.
type Posting struct {
	Amount    decimal.Decimal
	Reference string
	Receipt   string
	At        time.Time
	PaidAt    time.Time
	Actor     member.Actor
}

// Applied is what ApplyInTx wrote. Closed is set when the payment retired
// the loan.
type Applied struct {
	Loan    *loan.Loan
	Payment *loan.Payment
	Closed  bool
}

// ApplyInTx books p against l using repos bound to the caller's transaction:
// it appends the payment, credits the loan (closing it at zero), and reduces
// the member's outstanding aggregate. l must already be row-locked. Every
// validation happens before the first write.
func (u *Usecase) ApplyInTx(ctx context.Context, r uow.Repos, l *loan.Loan, p Posting) (*Applied, error) {
	alloc, err := Allocate(l, p.Amount)
	if err != nil {
		return nil, err
	}
	if p.Reference == "" {
		p.Reference = id.NewReference(referencePrefix)
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = p.At
	}

	from := l.Status
	if err := l.Credit(alloc.Amount, p.At); err != nil {
		return nil, err
	}

	pay := &loan.Payment{
		LoanID:               l.ID,
		Amount:               alloc.Amount,
		PrincipalPortion:     alloc.Principal,
		InterestPortion:      alloc.Interest,
		TransactionReference: p.Reference,
		ReceiptNumber:        p.Receipt,
		PaidAt:               p.PaidAt,
	}
	if err := r.Payments.Create(ctx, pay); err != nil {
		return nil, err
	}
	if err := r.Loans.Save(ctx, l); err != nil {
		return nil, err
	}
	if err := r.Members.AddOutstandingLoan(ctx, l.MemberID, alloc.Amount.Neg()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("payment.Apply", "member %d of loan %s not found", l.MemberID, l.LoanNumber)
		}
		return nil, err
	}

	closed := from != l.Status && l.Status == loan.StatusPaid
	if closed {
		if err := r.Audit.Record(ctx, &audit.Transition{
			LoanID:     l.ID,
			FromStatus: string(from),
			ToStatus:   string(l.Status),
			Actor:      p.Actor.String(),
			ActorID:    p.Actor.MemberID,
			Reason:     "balance settled by " + p.Reference,
			At:         p.At,
		}); err != nil {
			return nil, err
		}
	}
	return &Applied{Loan: l, Payment: pay, Closed: closed}, nil
}

// Committed logs and counts a payment once its transaction has committed.
func (u *Usecase) Committed(ctx context.Context, a *Applied, actor member.Actor) {
	u.log.InfoContext(ctx, "loan payment applied",
		"loan_number", a.Loan.LoanNumber,
		"reference", a.Payment.TransactionReference,
		"amount", a.Payment.Amount.StringFixed(2),
		"principal", a.Payment.PrincipalPortion.StringFixed(2),
		"interest", a.Payment.InterestPortion.StringFixed(2),
		"balance", a.Loan.Balance.StringFixed(2),
		"actor", actor.String(),
	)
	if a.Closed {
		u.metrics.Transition(string(loan.StatusPaid))
		u.log.InfoContext(ctx, "loan transition",
			"loan_number", a.Loan.LoanNumber,
			"to", string(loan.StatusPaid),
			"actor", actor.String(),
			"at", a.Loan.StatusUpdatedAt,
		)
	}
}

type PayResult struct {
	Loan    *loanuc.LoanDTO   `json:"loan"`
	Payment loanuc.PaymentDTO `json:"payment"`
}

// Pay posts a manual payment. The borrower may pay their own loan; the
// treasurer or chairperson may record one on a member's behalf.
func (u *Usecase) Pay(ctx context.Context, actor member.Actor, loanNumber string, amount decimal.Decimal) (*PayResult, error) {
	const op = "payment.Pay"
	var applied *Applied
	err := u.uow.WithinLoanTx(ctx, loanNumber, func(r uow.Repos, l *loan.Loan) error {
		if l.MemberID != actor.MemberID && !actor.CanApprove() {
			return apperr.Forbidden(op, "only the borrower or a treasurer may pay loan %s", l.LoanNumber)
		}
		a, err := u.ApplyInTx(ctx, r, l, Posting{Amount: amount, At: u.now(), Actor: actor})
		if err != nil {
			return err
		}
		applied = a
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "loan %s not found", loanNumber)
		}
		return nil, err
	}
	u.Committed(ctx, applied, actor)
	return &PayResult{Loan: loanuc.ToDTO(applied.Loan), Payment: loanuc.PaymentToDTO(applied.Payment)}, nil
}
