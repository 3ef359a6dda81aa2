package payment

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"chama-backend/internal/adapter/repository/mysql"
	"chama-backend/internal/apperr"
	"chama-backend/internal/domain/loan"
	"chama-backend/internal/domain/member"
	"chama-backend/internal/infrastructure/metrics"
	"chama-backend/internal/testutil/dbtest"
	loanuc "chama-backend/internal/usecase/loan"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	chair    = member.Actor{MemberID: 99, Name: "Jane Chair", Role: member.RoleChairperson}
)

type fixture struct {
	db      *gorm.DB
	loans   *loanuc.Usecase
	pay     *Usecase
	metrics *metrics.Metrics
	member  *member.Member
	actor   member.Actor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	mem := dbtest.SeedMember(t, db, "M-001", "Wanjiku")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	tx := mysql.NewGormUoW(db)

	loans := loanuc.NewUsecase(tx, mysql.NewLoanRepository(db), mysql.NewPaymentRepository(db), mysql.NewAuditRepository(db),
		loanuc.WithLogger(log), loanuc.WithMetrics(m), loanuc.WithClock(func() time.Time { return fixedNow }))
	pay := NewUsecase(tx, log, m)
	pay.SetClock(func() time.Time { return fixedNow })

	return &fixture{
		db: db, loans: loans, pay: pay, metrics: m, member: mem,
		actor: member.Actor{MemberID: mem.ID, Name: mem.Name, Role: member.RoleMember},
	}
}

// approvedLoan applies for 12,000 at 12% over 12 months and approves it.
func (f *fixture) approvedLoan(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dto, err := f.loans.Apply(ctx, f.actor, loanuc.ApplyInput{
		Principal: d("12000"), InterestRate: d("12"), DurationMonths: 12, Purpose: "dairy cow",
	})
	require.NoError(t, err)
	_, err = f.loans.Approve(ctx, chair, dto.LoanNumber)
	require.NoError(t, err)
	return dto.LoanNumber
}

func TestPay_TwelveInstalmentsRetireTheLoan(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	number := f.approvedLoan(t)

	first, err := f.pay.Pay(ctx, f.actor, number, d("1066.19"))
	require.NoError(t, err)
	require.True(t, first.Payment.InterestPortion.Equal(d("127.94")), first.Payment.InterestPortion.String())
	require.True(t, first.Payment.PrincipalPortion.Equal(d("938.25")), first.Payment.PrincipalPortion.String())
	require.True(t, first.Loan.Balance.Equal(d("11728.09")), first.Loan.Balance.String())

	var last *PayResult
	for i := 2; i <= 12; i++ {
		last, err = f.pay.Pay(ctx, f.actor, number, d("1066.19"))
		require.NoError(t, err, "payment %d", i)
	}
	require.Equal(t, "PAID", last.Loan.Status)
	require.True(t, last.Loan.Balance.IsZero())
	require.True(t, last.Loan.AmountPaid.Equal(d("12794.28")))

	got, err := f.loans.Get(ctx, number)
	require.NoError(t, err)
	require.Equal(t, "PAID", got.Status)
	require.True(t, got.Balance.IsZero())

	payments, err := f.loans.ListPayments(ctx, number)
	require.NoError(t, err)
	require.Len(t, payments, 12)
	for _, p := range payments {
		require.True(t, p.PrincipalPortion.Add(p.InterestPortion).Equal(p.Amount))
		require.False(t, p.PrincipalPortion.IsNegative())
	}

	// approval added the principal; every payment subtracts its full amount
	require.True(t, dbtest.ReloadMember(t, f.db, f.member.ID).OutstandingLoan.Equal(d("-794.28")))

	history, err := f.loans.History(ctx, number)
	require.NoError(t, err)
	require.Equal(t, "PAID", history[len(history)-1].To)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoanTransitions.WithLabelValues("PAID")))

	// PAID is terminal
	_, err = f.pay.Pay(ctx, f.actor, number, d("1"))
	require.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
}

func TestPay_BalanceTracksSumOfPayments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	number := f.approvedLoan(t)

	total := d("0")
	for _, a := range []string{"5000", "0.01", "100", "2500.50"} {
		_, err := f.pay.Pay(ctx, f.actor, number, d(a))
		require.NoError(t, err)
		total = total.Add(d(a))
	}
	got, err := f.loans.Get(ctx, number)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(d("12794.28").Sub(total)), got.Balance.String())
	require.True(t, got.AmountPaid.Equal(total))

	// settle the remainder in one go
	res, err := f.pay.Pay(ctx, f.actor, number, got.Balance)
	require.NoError(t, err)
	require.Equal(t, "PAID", res.Loan.Status)
}

func TestPay_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	number := f.approvedLoan(t)

	_, err := f.pay.Pay(ctx, f.actor, number, d("12794.29"))
	require.True(t, apperr.Is(err, apperr.KindValidation), "overpay: %v", err)

	_, err = f.pay.Pay(ctx, f.actor, number, d("0"))
	require.True(t, apperr.Is(err, apperr.KindValidation), "zero: %v", err)

	stranger := member.Actor{MemberID: f.member.ID + 100, Name: "Stranger", Role: member.RoleMember}
	_, err = f.pay.Pay(ctx, stranger, number, d("10"))
	require.True(t, apperr.Is(err, apperr.KindForbidden), "stranger: %v", err)

	_, err = f.pay.Pay(ctx, f.actor, "LN-20240101-0000", d("10"))
	require.True(t, apperr.Is(err, apperr.KindNotFound), "unknown loan: %v", err)

	// none of the above wrote anything
	got, err := f.loans.ListPayments(ctx, number)
	require.NoError(t, err)
	require.Empty(t, got)
	require.True(t, dbtest.ReloadMember(t, f.db, f.member.ID).OutstandingLoan.Equal(d("12000")))

	// a treasurer may record a payment on the member's behalf
	_, err = f.pay.Pay(ctx, chair, number, d("10"))
	require.NoError(t, err)
}

func TestPay_PendingLoanNotPayable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	dto, err := f.loans.Apply(ctx, f.actor, loanuc.ApplyInput{
		Principal: d("5000"), InterestRate: d("10"), DurationMonths: 6, Purpose: "rent",
	})
	require.NoError(t, err)

	_, err = f.pay.Pay(ctx, f.actor, dto.LoanNumber, d("100"))
	require.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
}

func TestPay_RollsBackEveryEffectOnFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// an approved loan whose member row is gone: the aggregate update fails last
	orphan := &loan.Loan{
		LoanNumber: "LN-20240315-7777", MemberID: 4242,
		Principal: d("1000"), InterestRate: d("12"), DurationMonths: 1,
		MonthlyPayment: d("1010"), TotalAmount: d("1010"), AmountPaid: d("0"), Balance: d("1010"),
		Status: loan.StatusApproved, Purpose: "x", StatusUpdatedAt: fixedNow,
	}
	require.NoError(t, f.db.Create(orphan).Error)

	_, err := f.pay.Pay(ctx, chair, orphan.LoanNumber, d("1010"))
	require.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	var reloaded loan.Loan
	require.NoError(t, f.db.First(&reloaded, orphan.ID).Error)
	require.Equal(t, loan.StatusApproved, reloaded.Status)
	require.True(t, reloaded.Balance.Equal(d("1010")))
	require.True(t, reloaded.AmountPaid.IsZero())

	var n int64
	require.NoError(t, f.db.Model(&loan.Payment{}).Where("loan_id = ?", orphan.ID).Count(&n).Error)
	require.Zero(t, n)
}
