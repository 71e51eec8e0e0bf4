package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addNotificationsStaleScanIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_add_notifications_stale_scan_index",
		Migrate: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_notifications_non_terminal_updated ON notifications (status, updated_at) WHERE status IN ('pending', 'in_progress')`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`DROP INDEX IF EXISTS idx_notifications_non_terminal_updated`,
			})
		},
	}
}
