// Package irt holds the three-parameter logistic item response model: the probability of a
// correct response, the per-answer learner ability step, and the offline item calibrator.
package irt

import (
	"math"
	"strings"
)

const (
	ThetaMin = -3.0
	ThetaMax = 3.0

	DiscriminationMin = 0.2
	DiscriminationMax = 3.0
	DifficultyMin     = -3.0
	DifficultyMax     = 3.0
	GuessingMax       = 0.5

	// DefaultAbility is the ability proxy of a learner with no history.
	DefaultAbility = 0.0
)

// ItemParams are the 3PL parameters of one calibration version.
type ItemParams struct {
	Discrimination float64 `json:"discrimination"`
	Difficulty     float64 `json:"difficulty"`
	Guessing       float64 `json:"guessing"`
}

func (p ItemParams) Clamped() ItemParams {
	disc := p.Discrimination
	if disc <= 0 || math.IsNaN(disc) {
		disc = 1.0
	}
	return ItemParams{
		Discrimination: clampRange(disc, DiscriminationMin, DiscriminationMax),
		Difficulty:     clampRange(p.Difficulty, DifficultyMin, DifficultyMax),
		Guessing:       clampRange(p.Guessing, 0, GuessingMax),
	}
}

// DefaultForBand is the prior used for items that have never been calibrated.
func DefaultForBand(band string) ItemParams {
	p := ItemParams{Discrimination: 1.0}
	switch strings.ToLower(strings.TrimSpace(band)) {
	case "easy":
		p.Difficulty = -1.0
	case "hard":
		p.Difficulty = 1.0
	default:
		p.Difficulty = 0
	}
	return p
}

// PCorrect is c + (1-c)/(1+exp(-a*(theta-b))). Parameters are used as given; only the
// result is clamped into [0,1].
func PCorrect(theta, a, b, c float64) float64 {
	return clamp01(c + (1.0-c)*sigmoid(a*(theta-b)))
}

func (p ItemParams) PCorrect(theta float64) float64 {
	return PCorrect(theta, p.Discrimination, p.Difficulty, p.Guessing)
}

// AbilityToTheta maps the stored [0,1] ability proxy onto the [-3,3] latent scale.
func AbilityToTheta(ability float64) float64 {
	return (clamp01(ability) - 0.5) * (ThetaMax - ThetaMin)
}

func ThetaToAbility(theta float64) float64 {
	return clamp01(clampRange(theta, ThetaMin, ThetaMax)/(ThetaMax-ThetaMin) + 0.5)
}

// AbilityUpdater moves ability by lr_eff*(y - P) where P is a unit-slope, no-guessing logistic
// in the item's difficulty. Discrimination and guessing do not scale the step.
// The rate shrinks as lr/sqrt(1+attempts/Decay).
type AbilityUpdater struct {
	LearningRate float64
	Decay        float64
}

func DefaultAbilityUpdater() AbilityUpdater {
	return AbilityUpdater{LearningRate: 0.3, Decay: 10}
}

// UpdateAbility returns the new ability in [0,1]. A correct answer on a harder item gains at
// least as much as on an easier one; a wrong answer on an easier item loses at least as much.
// A nil correct returns ability unchanged.
func (u AbilityUpdater) UpdateAbility(ability float64, item ItemParams, correct *bool, attempts int) float64 {
	if correct == nil {
		return ability
	}
	b := item.Clamped().Difficulty
	theta := AbilityToTheta(ability)
	y := 0.0
	if *correct {
		y = 1.0
	}
	p := PCorrect(theta, 1, b, 0)
	theta += u.effectiveRate(attempts) * (y - p)
	return ThetaToAbility(theta)
}

func (u AbilityUpdater) effectiveRate(attempts int) float64 {
	lr := u.LearningRate
	if lr <= 0 || math.IsNaN(lr) {
		lr = DefaultAbilityUpdater().LearningRate
	}
	decay := u.Decay
	if decay <= 0 {
		decay = DefaultAbilityUpdater().Decay
	}
	if attempts < 0 {
		attempts = 0
	}
	return lr / math.Sqrt(1.0+float64(attempts)/decay)
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		z := math.Exp(-x)
		return 1.0 / (1.0 + z)
	}
	z := math.Exp(x)
	return z / (1.0 + z)
}

func clamp01(x float64) float64 {
	return clampRange(x, 0, 1)
}

func clampRange(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
