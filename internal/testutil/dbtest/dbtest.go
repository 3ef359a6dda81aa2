// Package dbtest opens a migrated in-memory SQLite database for tests.
package dbtest

import (
	"testing"

	"chama-backend/internal/domain/member"
	infradb "chama-backend/internal/infrastructure/db"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh schema. The pool is pinned to one connection: every
// ":memory:" connection would otherwise see its own empty database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := infradb.AutoMigrate(db); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func SeedMember(t testing.TB, db *gorm.DB, number, name string) *member.Member {
	t.Helper()
	m := &member.Member{
		MemberNumber:       number,
		Name:               name,
		Phone:              "254712345678",
		TotalContributions: decimal.Zero,
		OutstandingLoan:    decimal.Zero,
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return m
}

// ReloadMember reads the member back with both aggregates rounded to cents;
// SQLite keeps DECIMAL columns as REAL.
func ReloadMember(t testing.TB, db *gorm.DB, id uint64) *member.Member {
	t.Helper()
	var m member.Member
	if err := db.First(&m, id).Error; err != nil {
		t.Fatalf("reload member %d: %v", id, err)
	}
	m.TotalContributions = m.TotalContributions.Round(2)
	m.OutstandingLoan = m.OutstandingLoan.Round(2)
	return &m
}
