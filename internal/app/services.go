package app

import (
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/yungbote/medquiz-backend/internal/data/repos"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/irt"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/selection"
	"github.com/yungbote/medquiz-backend/internal/observability"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
	"github.com/yungbote/medquiz-backend/internal/services"
	"github.com/yungbote/medquiz-backend/internal/temporalx/calibration"
)

type Services struct {
	Adaptive    services.AdaptiveService
	CourseSetup services.CourseSetupService
	Calibration services.CalibrationService
}

func wireServices(theDB *gorm.DB, log *logger.Logger, cfg Config, reposet repos.Set, metrics *observability.Metrics, tc temporalsdkclient.Client) Services {
	log.Info("Wiring services...")

	ability := irt.DefaultAbilityUpdater()
	if cfg.AbilityLearningRate > 0 {
		ability.LearningRate = cfg.AbilityLearningRate
	}
	seed := cfg.SelectionSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	calibrator := irt.DefaultCalibrator()
	calibrator.MinSamples = cfg.CalibrationMinSamples
	if cfg.CalibrationLearningRate > 0 {
		calibrator.LearningRate = cfg.CalibrationLearningRate
	}
	calibrator.Epochs = cfg.CalibrationEpochs

	// Without a Temporal client refreshes run inline in the request.
	var starter services.CalibrationStarter
	if tc != nil {
		starter = &calibration.Starter{Client: tc, TaskQueue: cfg.Temporal.TaskQueue}
	}

	return Services{
		Adaptive: services.NewAdaptiveService(theDB, log, reposet, metrics, services.AdaptiveOptions{
			MaxAttempts: cfg.UpdateMaxRetries,
			Ability:     ability,
			Rand:        selection.NewSeededRand(uint64(seed)),
		}),
		CourseSetup: services.NewCourseSetupService(theDB, log, reposet),
		Calibration: services.NewCalibrationService(log, reposet, metrics, starter, services.CalibrationOptions{
			Calibrator:   calibrator,
			MaxResponses: cfg.CalibrationMaxResponses,
			Concurrency:  cfg.CalibrationConcurrency,
			Lookback:     cfg.CalibrationLookback,
		}),
	}
}
