package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/medquiz-backend/internal/data/repos"
	adaptiverepo "github.com/yungbote/medquiz-backend/internal/data/repos/adaptive"
	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/bkt"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/irt"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/mastery"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/selection"
	"github.com/yungbote/medquiz-backend/internal/observability"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type AnswerInput struct {
	LearnerID  uuid.UUID
	CourseID   uuid.UUID
	ItemID     string
	Correct    *bool
	AnsweredAt time.Time
}

type KCMastery struct {
	KCID     uuid.UUID `json:"kc_id"`
	Mastery  float64   `json:"mastery"`
	Attempts int       `json:"attempts"`
}

type AnswerResult struct {
	CourseID      uuid.UUID   `json:"course_id"`
	ItemID        string      `json:"item_id"`
	Graded        bool        `json:"graded"`
	CourseMastery float64     `json:"course_mastery"`
	Ability       float64     `json:"ability"`
	Attempts      int         `json:"attempts"`
	KCs           []KCMastery `json:"kcs"`
	Retries       int         `json:"-"`
}

type Recommendation struct {
	CourseID uuid.UUID             `json:"course_id"`
	Target   selection.Band        `json:"target"`
	Mode     selection.Mode        `json:"mode"`
	Items    []selection.Candidate `json:"items"`
	// Exhausted is set when nothing is left to serve after the anti-repeat filter.
	Exhausted bool `json:"exhausted"`
	Filtered  int  `json:"filtered"`
}

type MasterySummary struct {
	CourseID       uuid.UUID   `json:"course_id"`
	Mastery        float64     `json:"mastery"`
	Ability        float64     `json:"ability"`
	Attempts       int         `json:"attempts"`
	LastAnsweredAt *time.Time  `json:"last_answered_at,omitempty"`
	KCs            []KCMastery `json:"kcs"`
}

type AdaptiveService interface {
	SubmitAnswer(ctx context.Context, in AnswerInput) (*AnswerResult, error)
	NextItems(ctx context.Context, learnerID, courseID uuid.UUID, limit int) (*Recommendation, error)
	RecordExposure(ctx context.Context, learnerID uuid.UUID, itemID string, at time.Time) error
	GetMastery(ctx context.Context, learnerID, courseID uuid.UUID) (*MasterySummary, error)
}

type AdaptiveOptions struct {
	// MaxAttempts bounds how often one answer's transaction is tried on version conflicts.
	MaxAttempts int
	Ability     irt.AbilityUpdater
	Rand        selection.Rand
	Now         func() time.Time
}

type adaptiveService struct {
	db      *gorm.DB
	log     *logger.Logger
	repos   repos.Set
	metrics *observability.Metrics
	opts    AdaptiveOptions
}

func NewAdaptiveService(db *gorm.DB, baseLog *logger.Logger, set repos.Set, metrics *observability.Metrics, opts AdaptiveOptions) AdaptiveService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 5
	}
	if opts.Ability.LearningRate <= 0 {
		opts.Ability = irt.DefaultAbilityUpdater()
	}
	if opts.Rand == nil {
		opts.Rand = selection.NewSeededRand(uint64(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &adaptiveService{
		db:      db,
		log:     baseLog.With("service", "AdaptiveService"),
		repos:   set,
		metrics: metrics,
		opts:    opts,
	}
}

// answerContext is everything SubmitAnswer reads before taking row locks.
type answerContext struct {
	item         *types.AdaptiveItem
	kcIDs        []uuid.UUID
	courseParams bkt.Params
	kcParams     map[uuid.UUID]bkt.Params
	calibration  irt.ItemParams
}

func (s *adaptiveService) SubmitAnswer(ctx context.Context, in AnswerInput) (*AnswerResult, error) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "AdaptiveService.SubmitAnswer", trace.WithAttributes(
		attribute.String("course_id", in.CourseID.String()),
		attribute.String("item_id", in.ItemID),
		attribute.Bool("graded", in.Correct != nil),
	))
	defer span.End()

	res, err := s.submitAnswer(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("retries", res.Retries))
		s.metrics.AddMasteryRetries(res.Retries)
	}
	s.metrics.ObserveAnswer(in.Correct, err, time.Since(start))
	return res, err
}

func (s *adaptiveService) submitAnswer(ctx context.Context, in AnswerInput) (*AnswerResult, error) {
	in.ItemID = strings.TrimSpace(in.ItemID)
	if in.LearnerID == uuid.Nil {
		return nil, invalidParams("missing learner_id")
	}
	if in.CourseID == uuid.Nil {
		return nil, invalidParams("missing course_id")
	}
	if in.ItemID == "" {
		return nil, invalidParams("missing item_id")
	}
	if in.AnsweredAt.IsZero() {
		in.AnsweredAt = s.opts.Now()
	}
	in.AnsweredAt = in.AnsweredAt.UTC()

	ac, err := s.loadAnswerContext(ctx, in.CourseID, in.ItemID)
	if err != nil {
		return nil, err
	}

	if in.Correct == nil {
		if err := s.touchExposure(ctx, in.LearnerID, in.ItemID, in.AnsweredAt); err != nil {
			return nil, err
		}
		sum, err := s.GetMastery(ctx, in.LearnerID, in.CourseID)
		if err != nil {
			return nil, err
		}
		return &AnswerResult{
			CourseID:      in.CourseID,
			ItemID:        in.ItemID,
			CourseMastery: sum.Mastery,
			Ability:       sum.Ability,
			Attempts:      sum.Attempts,
			KCs:           filterKCs(sum.KCs, ac.kcIDs),
		}, nil
	}

	var out *AnswerResult
	retries, err := adaptiverepo.WithRetry(ctx, s.opts.MaxAttempts, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			r, err := s.applyAnswer(dbctx.Context{Ctx: ctx, Tx: tx}, in, ac)
			if err != nil {
				return err
			}
			out = r
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, repos.ErrStaleVersion) {
			s.log.Warn("answer dropped after retries", "learner_id", in.LearnerID, "course_id", in.CourseID, "item_id", in.ItemID, "retries", retries)
		}
		return nil, fmt.Errorf("apply answer: %w", err)
	}
	out.Retries = retries

	if err := s.touchExposure(ctx, in.LearnerID, in.ItemID, in.AnsweredAt); err != nil {
		// Mastery is already committed; a missed exposure only weakens the anti-repeat filter.
		s.log.Warn("record exposure failed", "learner_id", in.LearnerID, "item_id", in.ItemID, "error", err)
	}
	return out, nil
}

func (s *adaptiveService) loadAnswerContext(ctx context.Context, courseID uuid.UUID, itemID string) (*answerContext, error) {
	dbc := dbctx.Context{Ctx: ctx}
	item, err := s.repos.Item.Get(dbc, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.CourseID != courseID {
		return nil, itemNotFound(itemID)
	}
	cfg, err := s.repos.AdaptiveConfig.GetCourse(dbc, courseID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, courseNotConfigured(courseID)
	}
	kcIDs, err := item.KnowledgeComponents()
	if err != nil {
		return nil, fmt.Errorf("item %s kc_ids: %w", itemID, err)
	}
	kcIDs = uniqueSorted(kcIDs)

	ac := &answerContext{
		item:         item,
		kcIDs:        kcIDs,
		courseParams: courseParams(cfg),
		kcParams:     map[uuid.UUID]bkt.Params{},
	}
	if len(kcIDs) > 0 {
		overrides, err := s.repos.AdaptiveConfig.ListKC(dbc, courseID, kcIDs)
		if err != nil {
			return nil, err
		}
		for _, o := range overrides {
			ac.kcParams[o.KCID] = bkt.Params{
				LearningRate:        o.LearningRate,
				GuessingProbability: o.GuessingProbability,
				SlippingProbability: o.SlippingProbability,
			}
		}
	}

	latest, err := s.repos.ItemCalibration.Latest(dbc, []string{itemID})
	if err != nil {
		if errors.Is(err, repos.ErrCalibrationIntegrity) {
			s.metrics.IncIntegrityError()
			s.log.Error("calibration integrity violation", "item_id", itemID, "error", err)
			return nil, integrityError(err)
		}
		return nil, err
	}
	if row := latest[itemID]; row != nil {
		ac.calibration = irt.ItemParams{Discrimination: row.Discrimination, Difficulty: row.Difficulty, Guessing: row.Guessing}
	} else {
		ac.calibration = irt.DefaultForBand(item.Difficulty)
	}
	return ac, nil
}

// applyAnswer runs inside one transaction. The course row is locked before the KC rows,
// and KC rows in kc_id order, so concurrent answers for a learner never deadlock.
func (s *adaptiveService) applyAnswer(dbc dbctx.Context, in AnswerInput, ac *answerContext) (*AnswerResult, error) {
	course, err := s.repos.CourseMastery.GetOrCreateForUpdate(dbc, in.LearnerID, in.CourseID)
	if err != nil {
		return nil, err
	}
	kcRows, err := s.repos.KCMastery.GetOrCreateForUpdate(dbc, in.LearnerID, in.CourseID, ac.kcIDs)
	if err != nil {
		return nil, err
	}

	states := make([]mastery.KCState, 0, len(kcRows))
	for _, row := range kcRows {
		var override *bkt.Params
		if p, ok := ac.kcParams[row.KCID]; ok {
			override = &p
		}
		params, err := bkt.Resolve(&ac.courseParams, override)
		if err != nil {
			return nil, err
		}
		states = append(states, mastery.KCState{KCID: row.KCID, Prior: row.Mastery, Params: params})
	}

	step := mastery.Step(mastery.StepInput{
		Correct:       in.Correct,
		CourseMastery: course.Mastery,
		Ability:       course.Ability,
		Attempts:      course.Attempts,
		CourseParams:  ac.courseParams,
		KCs:           states,
		Item:          ac.calibration,
		Updater:       s.opts.Ability,
	})

	out := &AnswerResult{
		CourseID: in.CourseID,
		ItemID:   in.ItemID,
		Graded:   true,
		KCs:      make([]KCMastery, 0, len(kcRows)),
	}
	for i, row := range kcRows {
		row.Mastery = step.KCs[i].Posterior
		row.Attempts++
		if err := s.repos.KCMastery.Save(dbc, row); err != nil {
			return nil, err
		}
		out.KCs = append(out.KCs, KCMastery{KCID: row.KCID, Mastery: row.Mastery, Attempts: row.Attempts})
	}

	abilityBefore := course.Ability
	answeredAt := in.AnsweredAt
	course.Mastery = step.CourseMastery
	course.Ability = step.Ability
	course.Attempts++
	course.LastAnsweredAt = &answeredAt
	if err := s.repos.CourseMastery.Save(dbc, course); err != nil {
		return nil, err
	}

	ev := &types.AnswerEvent{
		LearnerID:     in.LearnerID,
		CourseID:      in.CourseID,
		ItemID:        in.ItemID,
		KCIDs:         ac.item.KCIDs,
		Correct:       *in.Correct,
		AbilityBefore: abilityBefore,
		AnsweredAt:    answeredAt,
	}
	if err := s.repos.AnswerEvent.Create(dbc, ev); err != nil {
		return nil, err
	}

	out.CourseMastery = course.Mastery
	out.Ability = course.Ability
	out.Attempts = course.Attempts
	return out, nil
}

func (s *adaptiveService) NextItems(ctx context.Context, learnerID, courseID uuid.UUID, limit int) (*Recommendation, error) {
	ctx, span := observability.Tracer().Start(ctx, "AdaptiveService.NextItems", trace.WithAttributes(
		attribute.String("course_id", courseID.String()),
		attribute.Int("limit", limit),
	))
	defer span.End()

	if learnerID == uuid.Nil {
		return nil, invalidParams("missing learner_id")
	}
	if courseID == uuid.Nil {
		return nil, invalidParams("missing course_id")
	}
	dbc := dbctx.Context{Ctx: ctx}
	cfg, err := s.repos.AdaptiveConfig.GetCourse(dbc, courseID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, courseNotConfigured(courseID)
	}

	var (
		items []*types.AdaptiveItem
		row   *types.LearnerCourseMastery
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.repos.Item.ListActiveByCourse(dbctx.Context{Ctx: gctx}, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		row, err = s.repos.CourseMastery.Get(dbctx.Context{Ctx: gctx}, learnerID, courseID)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	ability := mastery.DefaultAbility
	if row != nil {
		ability = row.Ability
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ItemID)
	}
	seen, err := s.repos.Exposure.LastSeen(dbc, learnerID, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	candidates := make([]selection.Candidate, 0, len(items))
	for _, it := range items {
		c := selection.Candidate{
			ItemID:     it.ItemID,
			Difficulty: selection.Band(strings.ToLower(strings.TrimSpace(it.Difficulty))),
			Type:       it.ItemType,
		}
		if at, ok := seen[it.ItemID]; ok {
			at := at
			c.LastSeenAt = &at
		}
		candidates = append(candidates, c)
	}

	policy := &selection.Policy{Config: policyConfig(cfg), Rand: s.opts.Rand, Now: s.opts.Now}
	res := policy.Select(ability, candidates)
	if limit > 0 && len(res.Items) > limit {
		res.Items = res.Items[:limit]
	}

	rec := &Recommendation{
		CourseID:  courseID,
		Target:    res.Target,
		Mode:      res.Mode,
		Items:     res.Items,
		Exhausted: len(res.Items) == 0,
		Filtered:  res.Filtered,
	}
	if rec.Exhausted {
		s.metrics.IncSelection("empty", string(res.Target))
	} else {
		s.metrics.IncSelection(string(res.Mode), string(res.Target))
	}
	span.SetAttributes(
		attribute.String("target", string(res.Target)),
		attribute.String("mode", string(res.Mode)),
		attribute.Int("candidates", len(candidates)),
		attribute.Int("returned", len(rec.Items)),
	)
	return rec, nil
}

func (s *adaptiveService) RecordExposure(ctx context.Context, learnerID uuid.UUID, itemID string, at time.Time) error {
	itemID = strings.TrimSpace(itemID)
	if learnerID == uuid.Nil {
		return invalidParams("missing learner_id")
	}
	if itemID == "" {
		return invalidParams("missing item_id")
	}
	item, err := s.repos.Item.Get(dbctx.Context{Ctx: ctx}, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return itemNotFound(itemID)
	}
	if at.IsZero() {
		at = s.opts.Now()
	}
	return s.touchExposure(ctx, learnerID, itemID, at)
}

func (s *adaptiveService) GetMastery(ctx context.Context, learnerID, courseID uuid.UUID) (*MasterySummary, error) {
	if learnerID == uuid.Nil {
		return nil, invalidParams("missing learner_id")
	}
	if courseID == uuid.Nil {
		return nil, invalidParams("missing course_id")
	}
	dbc := dbctx.Context{Ctx: ctx}
	out := &MasterySummary{
		CourseID: courseID,
		Mastery:  mastery.DefaultMastery,
		Ability:  mastery.DefaultAbility,
		KCs:      []KCMastery{},
	}
	row, err := s.repos.CourseMastery.Get(dbc, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		out.Mastery = row.Mastery
		out.Ability = row.Ability
		out.Attempts = row.Attempts
		out.LastAnsweredAt = row.LastAnsweredAt
	}
	kcs, err := s.repos.KCMastery.ListByLearnerCourse(dbc, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	for _, kc := range kcs {
		out.KCs = append(out.KCs, KCMastery{KCID: kc.KCID, Mastery: kc.Mastery, Attempts: kc.Attempts})
	}
	return out, nil
}

func (s *adaptiveService) touchExposure(ctx context.Context, learnerID uuid.UUID, itemID string, at time.Time) error {
	return s.repos.Exposure.Touch(dbctx.Context{Ctx: ctx}, learnerID, itemID, at)
}

func courseParams(cfg *types.CourseAdaptiveConfig) bkt.Params {
	return bkt.Params{
		LearningRate:        cfg.LearningRate,
		GuessingProbability: cfg.GuessingProbability,
		SlippingProbability: cfg.SlippingProbability,
	}
}

func policyConfig(cfg *types.CourseAdaptiveConfig) selection.Config {
	return selection.Config{
		Epsilon:            cfg.Epsilon,
		MinDifficulty:      selection.Band(cfg.MinDifficulty),
		MaxDifficulty:      selection.Band(cfg.MaxDifficulty),
		AvoidRepeatMinutes: cfg.AvoidRepeatMinutes,
	}
}

func uniqueSorted(ids []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func filterKCs(all []KCMastery, keep []uuid.UUID) []KCMastery {
	want := map[uuid.UUID]bool{}
	for _, id := range keep {
		want[id] = true
	}
	out := make([]KCMastery, 0, len(keep))
	for _, kc := range all {
		if want[kc.KCID] {
			out = append(out, kc)
		}
	}
	return out
}
