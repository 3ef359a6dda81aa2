package mysql

import (
	"context"
	"errors"
	"testing"

	"chama-backend/internal/testutil/dbtest"

	"gorm.io/gorm"
)

func TestMemberRepository_AddAggregates(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	m := dbtest.SeedMember(t, db, "M-001", "Wanjiku")

	if err := repo.AddOutstandingLoan(ctx, m.ID, dec("12794.28")); err != nil {
		t.Fatalf("AddOutstandingLoan: %v", err)
	}
	if err := repo.AddOutstandingLoan(ctx, m.ID, dec("-1066.19")); err != nil {
		t.Fatalf("AddOutstandingLoan negative: %v", err)
	}
	if err := repo.AddContributions(ctx, m.ID, dec("500")); err != nil {
		t.Fatalf("AddContributions: %v", err)
	}
	if err := repo.AddContributions(ctx, m.ID, dec("250.50")); err != nil {
		t.Fatalf("AddContributions: %v", err)
	}

	got := dbtest.ReloadMember(t, db, m.ID)
	if !got.OutstandingLoan.Equal(dec("11728.09")) {
		t.Errorf("outstanding = %s, want 11728.09", got.OutstandingLoan)
	}
	if !got.TotalContributions.Equal(dec("750.5")) {
		t.Errorf("contributions = %s, want 750.50", got.TotalContributions)
	}
}

func TestMemberRepository_AddToUnknownMember(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewMemberRepository(db)

	err := repo.AddContributions(context.Background(), 404, dec("1"))
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("want ErrRecordNotFound, got %v", err)
	}
}

func TestMemberRepository_GetByIDForUpdate(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	m := dbtest.SeedMember(t, db, "M-002", "Otieno")
	got, err := repo.GetByIDForUpdate(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByIDForUpdate: %v", err)
	}
	if got.Name != "Otieno" {
		t.Errorf("name = %q", got.Name)
	}
	if _, err := repo.GetByID(ctx, m.ID+1); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("want ErrRecordNotFound, got %v", err)
	}
}
