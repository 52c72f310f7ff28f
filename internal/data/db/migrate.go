package db

import (
	"fmt"

	types "github.com/yungbote/medquiz-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.All()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return EnsureCalibrationIndexes(db)
}

// EnsureCalibrationIndexes adds the partial unique index that allows at most one
// is_latest row per item. Both Postgres and SQLite accept this form.
func EnsureCalibrationIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_item_calibration_latest
		ON item_calibration (item_id)
		WHERE is_latest;
	`).Error; err != nil {
		return fmt.Errorf("create idx_item_calibration_latest: %w", err)
	}
	return nil
}
