package db

import (
	"errors"
	"testing"
	"time"

	"chama-backend/internal/domain/member"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func mockedMySQL(t *testing.T) (gorm.Dialector, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), mock
}

func TestOpenGormWithDialector_PingsAndSizesPool(t *testing.T) {
	dial, mock := mockedMySQL(t)
	mock.ExpectPing()

	gdb, err := OpenGormWithDialector(dial)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.Equal(t, 30, sqlDB.Stats().MaxOpenConnections)
	require.Equal(t, time.UTC, gdb.Config.NowFunc().Location())
	require.True(t, gdb.Config.TranslateError)
}

func TestOpenGormWithDialector_PingFails(t *testing.T) {
	dial, mock := mockedMySQL(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	gdb, err := OpenGormWithDialector(dial)
	require.Error(t, err)
	require.Nil(t, gdb)
	require.NoError(t, mock.ExpectationsWereMet())
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

func TestAutoMigrate_CreatesLedgerTables(t *testing.T) {
	gdb := openSQLite(t)
	require.NoError(t, AutoMigrate(gdb))
	require.Len(t, Models(), 7)
	for _, table := range []string{"members", "loans", "loan_payments", "loan_transitions", "contributions", "mpesa_transactions", "mpesa_callbacks"} {
		require.True(t, gdb.Migrator().HasTable(table), "table %s not created", table)
	}
	require.True(t, gdb.Migrator().HasIndex("loans", "ux_loans_loan_number"))
}

func TestAutoMigrate_IsRepeatable(t *testing.T) {
	gdb := openSQLite(t)
	require.NoError(t, AutoMigrate(gdb))
	require.NoError(t, gdb.Create(&member.Member{
		MemberNumber: "M-001", Name: "Wanjiku", Phone: "254712345678",
		TotalContributions: decimal.Zero, OutstandingLoan: decimal.Zero,
	}).Error)

	require.NoError(t, AutoMigrate(gdb))
	var n int64
	require.NoError(t, gdb.Model(&member.Member{}).Count(&n).Error)
	require.EqualValues(t, 1, n)
}
