package database

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
)

// Migrate brings the schema up to date. It runs on PostgreSQL in production
// and on SQLite in tests, so raw SQL here sticks to what both accept.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: customers, menus, orders
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&models.Customer{},
					&models.Menu{},
					&models.MenuItem{},
					&models.Order{},
					&models.OrderItem{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("order_items", "orders", "menu_items", "menus", "customers")
			},
		},

		// Migration 002: SMS log
		{
			ID: "002_sms_logs",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.SMSLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("sms_logs")
			},
		},

		// Migration 003: duplicate webhook guard. Outbound rows have no SID.
		{
			ID: "003_sms_logs_message_sid_unique",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_sms_logs_message_sid
					ON sms_logs (message_sid) WHERE message_sid <> ''`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_sms_logs_message_sid").Error
			},
		},

		// Migration 004: menu lookup by date
		{
			ID: "004_menus_date_active_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_menus_date_active
					ON menus (menu_date, active)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_menus_date_active").Error
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
