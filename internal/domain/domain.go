package domain

import "github.com/yungbote/medquiz-backend/internal/domain/adaptive"

const (
	CalibrationSourceSeed    = adaptive.CalibrationSourceSeed
	CalibrationSourceRefresh = adaptive.CalibrationSourceRefresh
	CalibrationSourceManual  = adaptive.CalibrationSourceManual
)

type LearnerCourseMastery = adaptive.LearnerCourseMastery
type LearnerKCMastery = adaptive.LearnerKCMastery
type ItemCalibration = adaptive.ItemCalibration
type CourseAdaptiveConfig = adaptive.CourseAdaptiveConfig
type KCBKTParams = adaptive.KCBKTParams
type AdaptiveItem = adaptive.AdaptiveItem
type ItemExposure = adaptive.ItemExposure
type AnswerEvent = adaptive.AnswerEvent

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&CourseAdaptiveConfig{},
		&KCBKTParams{},
		&AdaptiveItem{},
		&ItemCalibration{},
		&LearnerCourseMastery{},
		&LearnerKCMastery{},
		&ItemExposure{},
		&AnswerEvent{},
	}
}
