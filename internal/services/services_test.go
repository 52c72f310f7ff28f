package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/medquiz-backend/internal/data/repos"
	"github.com/yungbote/medquiz-backend/internal/data/repos/testutil"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/config"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/selection"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type fixedRand struct{ f float64 }

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(n int) int    { return n - 1 }

type harness struct {
	db          *gorm.DB
	set         repos.Set
	adaptive    AdaptiveService
	setup       CourseSetupService
	calibration CalibrationService
	now         time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log, nil)
	h := &harness{db: db, set: set, now: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}
	h.adaptive = NewAdaptiveService(db, log, set, nil, AdaptiveOptions{
		Rand: fixedRand{f: 0.99},
		Now:  func() time.Time { return h.now },
	})
	h.setup = NewCourseSetupService(db, log, set)
	h.calibration = NewCalibrationService(log, set, nil, nil, CalibrationOptions{})
	return h
}

func testLogger(t *testing.T) *logger.Logger { return testutil.Logger(t) }

func fp(v float64) *float64 { return &v }
func bp(v bool) *bool       { return &v }

func paramSet(learn, guess, slip float64) *config.ParamSet {
	return &config.ParamSet{LearningRate: fp(learn), GuessingProbability: fp(guess), SlippingProbability: fp(slip)}
}

// configuredCourse creates a course with epsilon 0 and the reference BKT defaults.
func (h *harness) configuredCourse(t *testing.T) uuid.UUID {
	t.Helper()
	courseID := uuid.New()
	policy := selection.Config{Epsilon: 0, MinDifficulty: selection.BandEasy, MaxDifficulty: selection.BandHard, AvoidRepeatMinutes: 30}
	if _, err := h.setup.ConfigureCourse(context.Background(), CourseSetup{
		CourseID: courseID,
		BKT:      paramSet(0.3, 0.2, 0.1),
		Policy:   &policy,
	}); err != nil {
		t.Fatalf("ConfigureCourse: %v", err)
	}
	return courseID
}

func (h *harness) syncItems(t *testing.T, items ...ItemInput) {
	t.Helper()
	if _, err := h.setup.SyncItems(context.Background(), items); err != nil {
		t.Fatalf("SyncItems: %v", err)
	}
}
