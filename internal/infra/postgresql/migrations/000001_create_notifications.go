package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/fallback-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createNotificationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_notifications",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				// The idempotency gate relies on this constraint to resolve concurrent duplicate inserts.
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_request_id ON notifications (request_id) WHERE request_id IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications (status)`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications (created_at)`,
				`ALTER TABLE notifications ADD CONSTRAINT chk_notifications_used_channel CHECK ((status = 'delivered') = (used_channel IS NOT NULL))`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationModel{})
		},
	}
}
