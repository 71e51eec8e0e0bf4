package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/fallback-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createDeliveryAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_delivery_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryAttemptModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`ALTER TABLE delivery_attempts ADD CONSTRAINT fk_delivery_attempts_notification FOREIGN KEY (notification_id) REFERENCES notifications (id) ON DELETE CASCADE`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_notification_sequence ON delivery_attempts (notification_id, sequence)`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_channel_status ON delivery_attempts (channel, status)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryAttemptModel{})
		},
	}
}
