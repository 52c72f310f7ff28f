package repos

import (
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/medquiz-backend/internal/data/repos/adaptive"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type CourseMasteryRepo = adaptive.CourseMasteryRepo
type KCMasteryRepo = adaptive.KCMasteryRepo
type ItemCalibrationRepo = adaptive.ItemCalibrationRepo
type AdaptiveConfigRepo = adaptive.AdaptiveConfigRepo
type ItemRepo = adaptive.ItemRepo
type ExposureLog = adaptive.ExposureLog
type AnswerEventRepo = adaptive.AnswerEventRepo

var (
	ErrStaleVersion         = adaptive.ErrStaleVersion
	ErrCalibrationIntegrity = adaptive.ErrCalibrationIntegrity
)

func NewCourseMasteryRepo(db *gorm.DB, baseLog *logger.Logger) CourseMasteryRepo {
	return adaptive.NewCourseMasteryRepo(db, baseLog)
}
func NewKCMasteryRepo(db *gorm.DB, baseLog *logger.Logger) KCMasteryRepo {
	return adaptive.NewKCMasteryRepo(db, baseLog)
}
func NewItemCalibrationRepo(db *gorm.DB, baseLog *logger.Logger) ItemCalibrationRepo {
	return adaptive.NewItemCalibrationRepo(db, baseLog)
}
func NewAdaptiveConfigRepo(db *gorm.DB, baseLog *logger.Logger) AdaptiveConfigRepo {
	return adaptive.NewAdaptiveConfigRepo(db, baseLog)
}
func NewItemRepo(db *gorm.DB, baseLog *logger.Logger) ItemRepo {
	return adaptive.NewItemRepo(db, baseLog)
}
func NewAnswerEventRepo(db *gorm.DB, baseLog *logger.Logger) AnswerEventRepo {
	return adaptive.NewAnswerEventRepo(db, baseLog)
}
func NewExposureRepo(db *gorm.DB, baseLog *logger.Logger) ExposureLog {
	return adaptive.NewExposureRepo(db, baseLog)
}
func NewRedisExposureLog(rdb goredis.UniversalClient, prefix string, retention time.Duration, baseLog *logger.Logger) ExposureLog {
	return adaptive.NewRedisExposureLog(rdb, prefix, retention, baseLog)
}

// Set bundles every repo the services need.
type Set struct {
	CourseMastery   CourseMasteryRepo
	KCMastery       KCMasteryRepo
	ItemCalibration ItemCalibrationRepo
	AdaptiveConfig  AdaptiveConfigRepo
	Item            ItemRepo
	Exposure        ExposureLog
	AnswerEvent     AnswerEventRepo
}

// NewSet wires the gorm repos. A nil exposure falls back to the database-backed log.
func NewSet(db *gorm.DB, baseLog *logger.Logger, exposure ExposureLog) Set {
	if exposure == nil {
		exposure = NewExposureRepo(db, baseLog)
	}
	return Set{
		CourseMastery:   NewCourseMasteryRepo(db, baseLog),
		KCMastery:       NewKCMasteryRepo(db, baseLog),
		ItemCalibration: NewItemCalibrationRepo(db, baseLog),
		AdaptiveConfig:  NewAdaptiveConfigRepo(db, baseLog),
		Item:            NewItemRepo(db, baseLog),
		Exposure:        exposure,
		AnswerEvent:     NewAnswerEventRepo(db, baseLog),
	}
}
