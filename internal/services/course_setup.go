package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/medquiz-backend/internal/data/repos"
	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/config"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/irt"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/selection"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type CourseSetup struct {
	CourseID uuid.UUID         `json:"course_id"`
	BKT      *config.ParamSet  `json:"bkt"`
	Policy   *selection.Config `json:"policy,omitempty"`
}

type ItemInput struct {
	ItemID     string      `json:"item_id"`
	CourseID   uuid.UUID   `json:"course_id"`
	Difficulty string      `json:"difficulty"`
	Type       string      `json:"type"`
	KCIDs      []uuid.UUID `json:"kc_ids"`
	Active     *bool       `json:"active,omitempty"`
}

type SyncResult struct {
	Upserted int `json:"upserted"`
	// Seeded counts items that got their first calibration version in this call.
	Seeded int `json:"seeded"`
}

type CourseSetupService interface {
	ConfigureCourse(ctx context.Context, in CourseSetup) (*types.CourseAdaptiveConfig, error)
	ConfigureKC(ctx context.Context, courseID, kcID uuid.UUID, params *config.ParamSet) (*types.KCBKTParams, error)
	SyncItems(ctx context.Context, items []ItemInput) (*SyncResult, error)
	SeedFromFile(ctx context.Context, path string) (int, error)
}

type courseSetupService struct {
	db    *gorm.DB
	log   *logger.Logger
	repos repos.Set
}

func NewCourseSetupService(db *gorm.DB, baseLog *logger.Logger, set repos.Set) CourseSetupService {
	return &courseSetupService{
		db:    db,
		log:   baseLog.With("service", "CourseSetupService"),
		repos: set,
	}
}

// ConfigureCourse stores BKT defaults and the selection policy. All three BKT parameters are
// required; a course is never stored with partial defaults.
func (s *courseSetupService) ConfigureCourse(ctx context.Context, in CourseSetup) (*types.CourseAdaptiveConfig, error) {
	if in.CourseID == uuid.Nil {
		return nil, invalidParams("missing course_id")
	}
	if err := in.BKT.Validate(); err != nil {
		return nil, invalidParams("course %s: %v", in.CourseID, err)
	}
	policy := selection.DefaultConfig()
	if in.Policy != nil {
		policy = *in.Policy
	}
	if err := policy.Validate(); err != nil {
		return nil, invalidParams("course %s: %v", in.CourseID, err)
	}
	p := in.BKT.Params()
	row := &types.CourseAdaptiveConfig{
		CourseID:            in.CourseID,
		LearningRate:        p.LearningRate,
		GuessingProbability: p.GuessingProbability,
		SlippingProbability: p.SlippingProbability,
		Epsilon:             policy.Epsilon,
		MinDifficulty:       string(policy.MinDifficulty),
		MaxDifficulty:       string(policy.MaxDifficulty),
		AvoidRepeatMinutes:  policy.AvoidRepeatMinutes,
	}
	if err := s.repos.AdaptiveConfig.UpsertCourse(dbctx.Context{Ctx: ctx}, row); err != nil {
		return nil, err
	}
	s.log.Info("course configured", "course_id", in.CourseID, "epsilon", policy.Epsilon, "min", policy.MinDifficulty, "max", policy.MaxDifficulty)
	return row, nil
}

func (s *courseSetupService) ConfigureKC(ctx context.Context, courseID, kcID uuid.UUID, params *config.ParamSet) (*types.KCBKTParams, error) {
	if courseID == uuid.Nil || kcID == uuid.Nil {
		return nil, invalidParams("missing course_id or kc_id")
	}
	if err := params.Validate(); err != nil {
		return nil, invalidParams("kc %s: %v", kcID, err)
	}
	dbc := dbctx.Context{Ctx: ctx}
	cfg, err := s.repos.AdaptiveConfig.GetCourse(dbc, courseID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, courseNotConfigured(courseID)
	}
	p := params.Params()
	row := &types.KCBKTParams{
		KCID:                kcID,
		CourseID:            courseID,
		LearningRate:        p.LearningRate,
		GuessingProbability: p.GuessingProbability,
		SlippingProbability: p.SlippingProbability,
	}
	if err := s.repos.AdaptiveConfig.UpsertKC(dbc, row); err != nil {
		return nil, err
	}
	return row, nil
}

// SyncItems upserts the item projection and gives every new item a version 1 calibration
// derived from its difficulty band. Existing calibration history is left alone.
func (s *courseSetupService) SyncItems(ctx context.Context, in []ItemInput) (*SyncResult, error) {
	rows := make([]*types.AdaptiveItem, 0, len(in))
	for i, it := range in {
		id := strings.TrimSpace(it.ItemID)
		if id == "" {
			return nil, invalidParams("items[%d]: missing item_id", i)
		}
		if it.CourseID == uuid.Nil {
			return nil, invalidParams("items[%d]: missing course_id", i)
		}
		band, err := selection.ParseBand(it.Difficulty)
		if err != nil {
			return nil, invalidParams("items[%d]: %v", i, err)
		}
		active := true
		if it.Active != nil {
			active = *it.Active
		}
		row := &types.AdaptiveItem{
			ItemID:     id,
			CourseID:   it.CourseID,
			Difficulty: string(band),
			ItemType:   strings.TrimSpace(it.Type),
			Active:     active,
		}
		row.SetKnowledgeComponents(uniqueSorted(it.KCIDs))
		rows = append(rows, row)
	}
	out := &SyncResult{}
	if len(rows) == 0 {
		return out, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.repos.Item.Upsert(dbc, rows); err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, row := range rows {
			prior := irt.DefaultForBand(row.Difficulty)
			seeded, err := s.repos.ItemCalibration.SeedIfMissing(dbc, &types.ItemCalibration{
				ItemID:         row.ItemID,
				Discrimination: prior.Discrimination,
				Difficulty:     prior.Difficulty,
				Guessing:       prior.Guessing,
				Source:         types.CalibrationSourceSeed,
				CreatedAt:      now,
			})
			if err != nil {
				return fmt.Errorf("seed calibration %s: %w", row.ItemID, err)
			}
			if seeded {
				out.Seeded++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Upserted = len(rows)
	s.log.Info("items synced", "upserted", out.Upserted, "seeded", out.Seeded)
	return out, nil
}

// SeedFromFile applies a YAML seed file. The whole file is validated before anything is written.
func (s *courseSetupService) SeedFromFile(ctx context.Context, path string) (int, error) {
	f, err := config.LoadFile(path)
	if err != nil {
		return 0, err
	}
	for _, c := range f.Courses {
		policy := c.PolicyOrDefault()
		if _, err := s.ConfigureCourse(ctx, CourseSetup{CourseID: c.CourseID, BKT: c.BKT, Policy: &policy}); err != nil {
			return 0, err
		}
		for _, kc := range c.KnowledgeComponents {
			if _, err := s.ConfigureKC(ctx, c.CourseID, kc.KCID, kc.BKT); err != nil {
				return 0, err
			}
		}
	}
	s.log.Info("adaptive config seeded", "path", path, "courses", len(f.Courses))
	return len(f.Courses), nil
}

