package main

import (
	"fmt"

	"chama-backend/internal/infrastructure/db"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			gdb, err := db.OpenGorm(cfg.MySQLDSN(), cfg.LogSQL)
			if err != nil {
				return fmt.Errorf("open mysql: %w", err)
			}
			if sqlDB, err := gdb.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := db.AutoMigrate(gdb); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("schema migrated", "tables", len(db.Models()))
			return nil
		},
	}
}
