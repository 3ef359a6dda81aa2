package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	auditDomain "chama-backend/internal/domain/audit"
	contributionDomain "chama-backend/internal/domain/contribution"
	loanDomain "chama-backend/internal/domain/loan"
	memberDomain "chama-backend/internal/domain/member"
	mpesaDomain "chama-backend/internal/domain/mpesa"
	"chama-backend/internal/domain/uow"
	"chama-backend/internal/testutil/dbtest"

	"gorm.io/gorm"
)

func TestGormUoW_WithinTx_Commit(t *testing.T) {
	db := dbtest.Open(t)
	u := NewGormUoW(db)
	ctx := context.Background()
	now := time.Now().UTC()

	l := makeLoan(1, loanDomain.StatusPending, now)
	err := u.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Loans.Create(ctx, l); err != nil {
			return err
		}
		return r.Audit.Record(ctx, &auditDomain.Transition{
			LoanID: l.ID, ToStatus: string(loanDomain.StatusPending), Actor: "Wanjiku", At: now,
		})
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	rows, err := NewAuditRepository(db).ListByLoanID(ctx, l.ID)
	if err != nil {
		t.Fatalf("ListByLoanID: %v", err)
	}
	if len(rows) != 1 || rows[0].ToStatus != "PENDING" {
		t.Fatalf("audit rows = %+v", rows)
	}
}

func TestGormUoW_WithinTx_Rollback(t *testing.T) {
	db := dbtest.Open(t)
	u := NewGormUoW(db)
	ctx := context.Background()

	m := dbtest.SeedMember(t, db, "M-010", "Achieng")
	boom := errors.New("boom")
	err := u.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Contributions.Create(ctx, &contributionDomain.Contribution{
			MemberID: m.ID, Amount: dec("100"), TransactionReference: "CON-1", ContributedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := r.Members.AddContributions(ctx, m.ID, dec("100")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	got := dbtest.ReloadMember(t, db, m.ID)
	if !got.TotalContributions.IsZero() {
		t.Errorf("aggregate survived rollback: %s", got.TotalContributions)
	}
	list, _ := NewContributionRepository(db).ListByMemberID(ctx, m.ID)
	if len(list) != 0 {
		t.Errorf("contribution survived rollback: %+v", list)
	}
}

func TestGormUoW_WithinLoanTx(t *testing.T) {
	db := dbtest.Open(t)
	u := NewGormUoW(db)
	ctx := context.Background()
	now := time.Now().UTC()

	l := makeLoan(2, loanDomain.StatusPending, now)
	if err := NewLoanRepository(db).Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := u.WithinLoanTx(ctx, l.LoanNumber, func(r uow.Repos, locked *loanDomain.Loan) error {
		if err := locked.Approve("Treasurer", now); err != nil {
			return err
		}
		return r.Loans.Save(ctx, locked)
	})
	if err != nil {
		t.Fatalf("WithinLoanTx: %v", err)
	}
	got, _ := NewLoanRepository(db).GetByLoanNumber(ctx, l.LoanNumber)
	if got.Status != loanDomain.StatusApproved {
		t.Fatalf("status = %s, want APPROVED", got.Status)
	}

	err = u.WithinLoanTx(ctx, "LN-19990101-0001", func(uow.Repos, *loanDomain.Loan) error {
		t.Fatal("callback must not run for an unknown loan")
		return nil
	})
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("want ErrRecordNotFound, got %v", err)
	}
}

func TestGormUoW_WithinMemberTx(t *testing.T) {
	db := dbtest.Open(t)
	u := NewGormUoW(db)
	ctx := context.Background()

	m := dbtest.SeedMember(t, db, "M-011", "Kamau")
	err := u.WithinMemberTx(ctx, m.ID, func(r uow.Repos, locked *memberDomain.Member) error {
		if locked.ID != m.ID {
			t.Fatalf("locked member %d, want %d", locked.ID, m.ID)
		}
		return r.Members.AddOutstandingLoan(ctx, locked.ID, dec("500"))
	})
	if err != nil {
		t.Fatalf("WithinMemberTx: %v", err)
	}
	if got := dbtest.ReloadMember(t, db, m.ID); !got.OutstandingLoan.Equal(dec("500")) {
		t.Fatalf("outstanding = %s", got.OutstandingLoan)
	}
}

func TestGormUoW_WithinCheckoutTx(t *testing.T) {
	db := dbtest.Open(t)
	u := NewGormUoW(db)
	ctx := context.Background()

	if err := NewTransactionRepository(db).Create(ctx, makePending("ws_CO_9")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var seen mpesaDomain.Status
	err := u.WithinCheckoutTx(ctx, "ws_CO_9", func(_ uow.Repos, tx *mpesaDomain.Transaction) error {
		seen = tx.Status
		return nil
	})
	if err != nil {
		t.Fatalf("WithinCheckoutTx: %v", err)
	}
	if seen != mpesaDomain.StatusPending {
		t.Fatalf("status = %s", seen)
	}

	err = u.WithinCheckoutTx(ctx, "ws_CO_unknown", func(uow.Repos, *mpesaDomain.Transaction) error { return nil })
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("want ErrRecordNotFound, got %v", err)
	}
}
