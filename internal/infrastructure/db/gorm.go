package db

import (
	"log/slog"
	"time"

	"chama-backend/internal/domain/audit"
	"chama-backend/internal/domain/contribution"
	"chama-backend/internal/domain/loan"
	"chama-backend/internal/domain/member"
	"chama-backend/internal/domain/mpesa"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func OpenGorm(dsn string, logSQL bool) (*gorm.DB, error) {
	return openGorm(mysql.Open(dsn), logSQL)
}

// OpenGormWithDialector lets tests hand in a dialector over a mocked *sql.DB.
func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	return openGorm(dial, false)
}

func openGorm(dial gorm.Dialector, logSQL bool) (*gorm.DB, error) {
	level := logger.Warn
	if logSQL {
		level = logger.Info
	}
	// pinged once below, after the pool is sized
	cfg := &gorm.Config{
		Logger:               logger.Default.LogMode(level),
		NowFunc:              func() time.Time { return time.Now().UTC() },
		TranslateError:       true,
		DisableAutomaticPing: true,
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	slog.Info("gorm: connected", "dialect", dial.Name())
	return db, nil
}

// Models lists every table the ledger owns, in dependency order.
func Models() []any {
	return []any{
		&member.Member{},
		&loan.Loan{},
		&loan.Payment{},
		&audit.Transition{},
		&contribution.Contribution{},
		&mpesa.Transaction{},
		&mpesa.CallbackLog{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
