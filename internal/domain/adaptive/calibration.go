package adaptive

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	CalibrationSourceSeed    = "seed"
	CalibrationSourceRefresh = "refresh"
	CalibrationSourceManual  = "manual"
)

// ItemCalibration is one immutable 3PL parameter version of an item. Exactly one version per
// item carries IsLatest; a partial unique index (see data/db) enforces it.
type ItemCalibration struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID         string         `gorm:"column:item_id;not null;uniqueIndex:idx_item_calibration_version,priority:1" json:"item_id"`
	Version        int            `gorm:"column:version;not null;uniqueIndex:idx_item_calibration_version,priority:2" json:"version"`
	Discrimination float64        `gorm:"column:discrimination;not null" json:"discrimination"`
	Difficulty     float64        `gorm:"column:difficulty;not null" json:"difficulty"`
	Guessing       float64        `gorm:"column:guessing;not null" json:"guessing"`
	Source         string         `gorm:"column:source" json:"source,omitempty"`
	IsLatest       bool           `gorm:"column:is_latest;not null" json:"is_latest"`
	SampleCount    int            `gorm:"column:sample_count;not null" json:"sample_count"`
	FitStats       datatypes.JSON `gorm:"column:fit_stats" json:"fit_stats,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

func (ItemCalibration) TableName() string { return "item_calibration" }
