package loan

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chama-backend/internal/apperr"
	"chama-backend/internal/domain/audit"
	"chama-backend/internal/domain/loan"
	"chama-backend/internal/domain/member"
	"chama-backend/internal/domain/uow"
	"chama-backend/internal/infrastructure/metrics"
	"chama-backend/pkg/amortization"
	"chama-backend/pkg/id"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	minPrincipal = decimal.NewFromInt(1_000)
	maxPrincipal = decimal.NewFromInt(1_000_000)
	minRate      = decimal.RequireFromString("0.01")
	maxRate      = decimal.NewFromInt(50)
)

const (
	maxMonths       = 60
	maxPurposeLen   = 500
	loanNumberTries = 5
)

type Usecase struct {
	uow      uow.UnitOfWork
	loans    loan.Repository
	payments loan.PaymentRepository
	audit    audit.Repository
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	// newNumber draws a loan number; uniqueness is enforced by the index
	newNumber func(time.Time) string
}

type Option func(*Usecase)

func WithLogger(l *slog.Logger) Option { return func(u *Usecase) { u.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(u *Usecase) { u.metrics = m } }

func WithClock(now func() time.Time) Option { return func(u *Usecase) { u.now = now } }

func NewUsecase(tx uow.UnitOfWork, loans loan.Repository, payments loan.PaymentRepository, trail audit.Repository, opts ...Option) *Usecase {
	u := &Usecase{
		uow:       tx,
		loans:     loans,
		payments:  payments,
		audit:     trail,
		log:       slog.Default(),
		metrics:   metrics.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
		newNumber: id.NewLoanNumber,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

func validateApply(in ApplyInput) error {
	const op = "loan.Apply"
	switch {
	case in.Principal.LessThan(minPrincipal) || in.Principal.GreaterThan(maxPrincipal):
		return apperr.Validation(op, "principal must be between %s and %s", minPrincipal, maxPrincipal)
	case !in.Principal.Equal(in.Principal.Round(2)):
		return apperr.Validation(op, "principal must have at most 2 decimal places")
	case in.InterestRate.LessThan(minRate) || in.InterestRate.GreaterThan(maxRate):
		return apperr.Validation(op, "interest rate must be between %s and %s percent", minRate, maxRate)
	case !in.InterestRate.Equal(in.InterestRate.Round(2)):
		return apperr.Validation(op, "interest rate must have at most 2 decimal places")
	case in.DurationMonths < 1 || in.DurationMonths > maxMonths:
		return apperr.Validation(op, "duration must be between 1 and %d months", maxMonths)
	case strings.TrimSpace(in.Purpose) == "":
		return apperr.Validation(op, "purpose is required")
	case len(in.Purpose) > maxPurposeLen:
		return apperr.Validation(op, "purpose must be at most %d characters", maxPurposeLen)
	}
	return nil
}

// Apply opens a PENDING loan for the acting member. The member row is locked
// for the duration so two concurrent applications cannot both pass the
// one-active-loan check.
func (u *Usecase) Apply(ctx context.Context, actor member.Actor, in ApplyInput) (*LoanDTO, error) {
	const op = "loan.Apply"
	if actor.MemberID == 0 {
		return nil, apperr.Forbidden(op, "only members can apply for loans")
	}
	if err := validateApply(in); err != nil {
		return nil, err
	}

	sched, err := amortization.Calculate(in.Principal, in.InterestRate, in.DurationMonths)
	if err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}

	now := u.now()
	var created *loan.Loan
	err = u.uow.WithinMemberTx(ctx, actor.MemberID, func(r uow.Repos, m *member.Member) error {
		active, err := r.Loans.GetActiveByMemberID(ctx, m.ID)
		switch {
		case err == nil:
			return apperr.Conflict(op, "member %s already has an active loan %s (%s)", m.MemberNumber, active.LoanNumber, active.Status)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		l := &loan.Loan{
			MemberID:        m.ID,
			Principal:       in.Principal,
			InterestRate:    in.InterestRate,
			DurationMonths:  in.DurationMonths,
			MonthlyPayment:  sched.MonthlyPayment,
			TotalAmount:     sched.TotalAmount,
			AmountPaid:      decimal.Zero,
			Balance:         sched.TotalAmount,
			Status:          loan.StatusPending,
			Purpose:         strings.TrimSpace(in.Purpose),
			StatusUpdatedAt: now,
		}
		if err := l.CheckInvariant(); err != nil {
			return err
		}
		if err := u.insertNumbered(ctx, r.Loans, l, now); err != nil {
			return err
		}
		if err := record(ctx, r, l, "", actor, "", now); err != nil {
			return err
		}
		created = l
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "member %d not found", actor.MemberID)
		}
		return nil, err
	}

	u.transitioned(ctx, created, "", actor, now)
	return ToDTO(created), nil
}

// insertNumbered stores l under a fresh loan number, drawing again when the
// number is already taken by any member's loan. A rejected insert leaves the
// surrounding transaction usable.
func (u *Usecase) insertNumbered(ctx context.Context, loans loan.Repository, l *loan.Loan, at time.Time) error {
	for i := 0; i < loanNumberTries; i++ {
		l.LoanNumber = u.newNumber(at)
		err := loans.Create(ctx, l)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		u.log.WarnContext(ctx, "loan number taken, drawing again", "loan_number", l.LoanNumber)
	}
	return apperr.Conflict("loan.Apply", "could not allocate a loan number, retry")
}

func (u *Usecase) Approve(ctx context.Context, actor member.Actor, loanNumber string) (*LoanDTO, error) {
	const op = "loan.Approve"
	if !actor.CanApprove() {
		return nil, apperr.Forbidden(op, "%s may not approve loans", actor.Role)
	}
	return u.move(ctx, op, actor, loanNumber, "", func(r uow.Repos, l *loan.Loan, now time.Time) error {
		if err := l.Approve(actor.String(), now); err != nil {
			return apperr.Conflict(op, "loan %s is %s; only PENDING loans can be approved", l.LoanNumber, l.Status)
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		err := r.Members.AddOutstandingLoan(ctx, l.MemberID, l.Principal)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(op, "member %d of loan %s not found", l.MemberID, l.LoanNumber)
		}
		return err
	})
}

func (u *Usecase) Reject(ctx context.Context, actor member.Actor, loanNumber, reason string) (*LoanDTO, error) {
	const op = "loan.Reject"
	if !actor.CanApprove() {
		return nil, apperr.Forbidden(op, "%s may not reject loans", actor.Role)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation(op, "a rejection reason is required")
	}
	return u.move(ctx, op, actor, loanNumber, reason, func(r uow.Repos, l *loan.Loan, now time.Time) error {
		if err := l.Reject(reason, now); err != nil {
			return apperr.Conflict(op, "loan %s is %s; only PENDING loans can be rejected", l.LoanNumber, l.Status)
		}
		return r.Loans.Save(ctx, l)
	})
}

// Disburse records that approved funds left the group account.
func (u *Usecase) Disburse(ctx context.Context, actor member.Actor, loanNumber string) (*LoanDTO, error) {
	const op = "loan.Disburse"
	if !actor.CanApprove() {
		return nil, apperr.Forbidden(op, "%s may not disburse loans", actor.Role)
	}
	return u.move(ctx, op, actor, loanNumber, "", func(r uow.Repos, l *loan.Loan, now time.Time) error {
		if err := l.Disburse(now); err != nil {
			return apperr.Conflict(op, "loan %s is %s; only APPROVED loans can be disbursed", l.LoanNumber, l.Status)
		}
		return r.Loans.Save(ctx, l)
	})
}

// move runs one state change under the loan row lock and audits it in the
// same transaction.
func (u *Usecase) move(ctx context.Context, op string, actor member.Actor, loanNumber, reason string,
	apply func(r uow.Repos, l *loan.Loan, now time.Time) error) (*LoanDTO, error) {
	now := u.now()
	var (
		moved *loan.Loan
		from  loan.Status
	)
	err := u.uow.WithinLoanTx(ctx, loanNumber, func(r uow.Repos, l *loan.Loan) error {
		from = l.Status
		if err := apply(r, l, now); err != nil {
			return err
		}
		if err := record(ctx, r, l, from, actor, reason, now); err != nil {
			return err
		}
		moved = l
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "loan %s not found", loanNumber)
		}
		return nil, err
	}
	u.transitioned(ctx, moved, from, actor, now)
	return ToDTO(moved), nil
}

func record(ctx context.Context, r uow.Repos, l *loan.Loan, from loan.Status, actor member.Actor, reason string, at time.Time) error {
	return r.Audit.Record(ctx, &audit.Transition{
		LoanID:     l.ID,
		FromStatus: string(from),
		ToStatus:   string(l.Status),
		Actor:      actor.String(),
		ActorID:    actor.MemberID,
		Reason:     reason,
		At:         at,
	})
}

func (u *Usecase) transitioned(ctx context.Context, l *loan.Loan, from loan.Status, actor member.Actor, at time.Time) {
	u.metrics.Transition(string(l.Status))
	u.log.InfoContext(ctx, "loan transition",
		"loan_number", l.LoanNumber,
		"from", string(from),
		"to", string(l.Status),
		"actor", actor.String(),
		"at", at,
	)
}

func (u *Usecase) Get(ctx context.Context, loanNumber string) (*LoanDTO, error) {
	l, err := u.find(ctx, "loan.Get", loanNumber)
	if err != nil {
		return nil, err
	}
	return ToDTO(l), nil
}

func (u *Usecase) ListPayments(ctx context.Context, loanNumber string) ([]PaymentDTO, error) {
	l, err := u.find(ctx, "loan.ListPayments", loanNumber)
	if err != nil {
		return nil, err
	}
	rows, err := u.payments.ListByLoanID(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentDTO, 0, len(rows))
	for i := range rows {
		out = append(out, PaymentToDTO(&rows[i]))
	}
	return out, nil
}

func (u *Usecase) History(ctx context.Context, loanNumber string) ([]TransitionDTO, error) {
	l, err := u.find(ctx, "loan.History", loanNumber)
	if err != nil {
		return nil, err
	}
	rows, err := u.audit.ListByLoanID(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	out := make([]TransitionDTO, 0, len(rows))
	for _, t := range rows {
		out = append(out, transitionToDTO(t))
	}
	return out, nil
}

func (u *Usecase) ListByMember(ctx context.Context, memberID uint64) ([]LoanDTO, error) {
	rows, err := u.loans.ListByMemberID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	out := make([]LoanDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *ToDTO(&rows[i]))
	}
	return out, nil
}

func (u *Usecase) find(ctx context.Context, op, loanNumber string) (*loan.Loan, error) {
	l, err := u.loans.GetByLoanNumber(ctx, loanNumber)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(op, "loan %s not found", loanNumber)
	}
	return l, err
}
