// Package mastery combines the BKT and IRT steps applied to a learner for one graded answer.
package mastery

import (
	"github.com/google/uuid"

	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/bkt"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/irt"
)

const (
	DefaultMastery = bkt.DefaultMastery
	DefaultAbility = irt.DefaultAbility
)

type KCState struct {
	KCID   uuid.UUID
	Prior  float64
	Params bkt.Params
}

type StepInput struct {
	Correct *bool

	CourseMastery float64
	Ability       float64
	// Attempts is the number of graded answers already folded into Ability.
	Attempts int

	// CourseParams are used for the course rollup when the item touches no KC.
	CourseParams bkt.Params
	KCs          []KCState

	Item    irt.ItemParams
	Updater irt.AbilityUpdater
}

type KCResult struct {
	KCID      uuid.UUID `json:"kc_id"`
	Prior     float64   `json:"prior"`
	Posterior float64   `json:"posterior"`
}

type StepOutput struct {
	KCs           []KCResult `json:"kcs"`
	CourseMastery float64    `json:"course_mastery"`
	Ability       float64    `json:"ability"`
	RollupParams  bkt.Params `json:"rollup_params"`
}

// Step applies one answer. Each touched KC gets its own BKT step with its resolved params.
// Course mastery takes one BKT step with the unweighted mean of those params, and ability
// takes one 3PL gradient step against the item's latest calibration.
func Step(in StepInput) StepOutput {
	out := StepOutput{
		KCs:           make([]KCResult, 0, len(in.KCs)),
		CourseMastery: in.CourseMastery,
		Ability:       in.Ability,
		RollupParams:  RollupParams(in.CourseParams, in.KCs),
	}
	for _, kc := range in.KCs {
		out.KCs = append(out.KCs, KCResult{
			KCID:      kc.KCID,
			Prior:     kc.Prior,
			Posterior: bkt.UpdateWith(kc.Prior, in.Correct, kc.Params),
		})
	}
	if in.Correct == nil {
		return out
	}
	out.CourseMastery = bkt.UpdateWith(in.CourseMastery, in.Correct, out.RollupParams)
	out.Ability = in.Updater.UpdateAbility(in.Ability, in.Item, in.Correct, in.Attempts)
	return out
}

func RollupParams(course bkt.Params, kcs []KCState) bkt.Params {
	if len(kcs) == 0 {
		return course.Clamped()
	}
	ps := make([]bkt.Params, 0, len(kcs))
	for _, kc := range kcs {
		ps = append(ps, kc.Params)
	}
	return bkt.Mean(ps...)
}
