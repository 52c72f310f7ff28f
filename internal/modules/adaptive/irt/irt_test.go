package irt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func TestPCorrect(t *testing.T) {
	assert.InDelta(t, 0.5, PCorrect(0, 1, 0, 0), 1e-12)
	assert.InDelta(t, 0.2+0.8*0.5, PCorrect(1, 1.5, 1, 0.2), 1e-12)

	for _, theta := range []float64{-10, -3, -1, 0, 1, 3, 10} {
		p := PCorrect(theta, 1.2, 0.5, 0.25)
		if p < 0.25 || p > 1 {
			t.Fatalf("theta=%v: p=%v outside [c,1]", theta, p)
		}
	}
	assert.Greater(t, PCorrect(1, 1, 0, 0), PCorrect(-1, 1, 0, 0))
}

func TestPCorrectUsesParametersAsGiven(t *testing.T) {
	assert.InDelta(t, 0.6, PCorrect(0, 4, 3.5, 0.6), 1e-6)
	assert.InDelta(t, 1.0/(1.0+math.Exp(2)), PCorrect(1, -2, 0, 0), 1e-12)
	assert.InDelta(t, 1.0/(1.0+math.Exp(-0.1*4.5)), PCorrect(0, 0.1, -4.5, 0), 1e-12)
	assert.Equal(t, 1.0, PCorrect(0, 1, 0, 1.5))

	p := ItemParams{Discrimination: 4, Difficulty: 3.5, Guessing: 0.6}
	assert.Equal(t, PCorrect(0.3, 4, 3.5, 0.6), p.PCorrect(0.3))
}

func TestAbilityThetaMapping(t *testing.T) {
	assert.InDelta(t, -3.0, AbilityToTheta(0), 1e-12)
	assert.InDelta(t, 0.0, AbilityToTheta(0.5), 1e-12)
	assert.InDelta(t, 3.0, AbilityToTheta(1), 1e-12)
	for _, a := range []float64{0, 0.1, 0.5, 0.77, 1} {
		assert.InDelta(t, a, ThetaToAbility(AbilityToTheta(a)), 1e-12)
	}
	assert.Equal(t, 1.0, ThetaToAbility(9))
	assert.Equal(t, 0.0, ThetaToAbility(-9))
}

func TestUpdateAbilityMonotoneInDifficulty(t *testing.T) {
	u := DefaultAbilityUpdater()
	diffs := []float64{-2, -1, 0, 1, 2}

	prevGain := -1.0
	for _, b := range diffs {
		item := ItemParams{Discrimination: 1.2, Difficulty: b, Guessing: 0.2}
		gain := u.UpdateAbility(0.5, item, boolPtr(true), 3) - 0.5
		if gain < prevGain {
			t.Fatalf("correct on harder item b=%v gained %v < %v", b, gain, prevGain)
		}
		prevGain = gain
	}

	prevLoss := math.Inf(1)
	for _, b := range diffs {
		item := ItemParams{Discrimination: 1.2, Difficulty: b, Guessing: 0.2}
		loss := 0.5 - u.UpdateAbility(0.5, item, boolPtr(false), 3)
		if loss > prevLoss {
			t.Fatalf("wrong on harder item b=%v lost %v > %v", b, loss, prevLoss)
		}
		prevLoss = loss
	}
}

func TestUpdateAbilityMonotoneAcrossDiscrimination(t *testing.T) {
	u := DefaultAbilityUpdater()
	hard := ItemParams{Discrimination: 0.3, Difficulty: 1.5}
	easy := ItemParams{Discrimination: 2.5, Difficulty: -0.2}

	hardGain := u.UpdateAbility(0.5, hard, boolPtr(true), 0) - 0.5
	easyGain := u.UpdateAbility(0.5, easy, boolPtr(true), 0) - 0.5
	require.GreaterOrEqual(t, hardGain, easyGain)

	hardLoss := 0.5 - u.UpdateAbility(0.5, hard, boolPtr(false), 0)
	easyLoss := 0.5 - u.UpdateAbility(0.5, easy, boolPtr(false), 0)
	require.GreaterOrEqual(t, easyLoss, hardLoss)

	type item struct{ a, b, c float64 }
	var items []item
	for _, a := range []float64{0.2, 0.7, 1.5, 3} {
		for _, b := range []float64{-2, -0.5, 0.4, 2.5} {
			for _, c := range []float64{0, 0.3} {
				items = append(items, item{a, b, c})
			}
		}
	}
	for _, ability := range []float64{0.2, 0.5, 0.8} {
		for _, hi := range items {
			for _, lo := range items {
				if hi.b <= lo.b {
					continue
				}
				hp := ItemParams{Discrimination: hi.a, Difficulty: hi.b, Guessing: hi.c}
				lp := ItemParams{Discrimination: lo.a, Difficulty: lo.b, Guessing: lo.c}
				if g, e := u.UpdateAbility(ability, hp, boolPtr(true), 2), u.UpdateAbility(ability, lp, boolPtr(true), 2); g < e {
					t.Fatalf("ability=%v correct: harder %+v -> %v below easier %+v -> %v", ability, hp, g, lp, e)
				}
				if g, e := u.UpdateAbility(ability, hp, boolPtr(false), 2), u.UpdateAbility(ability, lp, boolPtr(false), 2); g < e {
					t.Fatalf("ability=%v wrong: harder %+v -> %v below easier %+v -> %v", ability, hp, g, lp, e)
				}
			}
		}
	}
}

func TestCalibratorFitKeepsBoundsFromOutOfRangeStart(t *testing.T) {
	start := ItemParams{Discrimination: 9, Difficulty: -7, Guessing: 0.9}
	got, _, err := DefaultCalibrator().Fit(start, syntheticObservations(0.5))
	require.NoError(t, err)
	assert.Equal(t, got, got.Clamped())
}

func TestUpdateAbilityBoundsAndNil(t *testing.T) {
	u := AbilityUpdater{LearningRate: 5, Decay: 10}
	item := ItemParams{Discrimination: 3, Difficulty: 3, Guessing: 0}

	up := u.UpdateAbility(0.99, item, boolPtr(true), 0)
	require.LessOrEqual(t, up, 1.0)
	down := u.UpdateAbility(0.01, ItemParams{Discrimination: 3, Difficulty: -3}, boolPtr(false), 0)
	require.GreaterOrEqual(t, down, 0.0)

	assert.Equal(t, 0.42, u.UpdateAbility(0.42, item, nil, 7))
}

func TestUpdateAbilityStepShrinksWithAttempts(t *testing.T) {
	u := DefaultAbilityUpdater()
	item := DefaultForBand("medium")
	early := u.UpdateAbility(0.5, item, boolPtr(true), 0) - 0.5
	late := u.UpdateAbility(0.5, item, boolPtr(true), 200) - 0.5
	assert.Greater(t, early, late)
	assert.Greater(t, late, 0.0)
}

func TestDefaultForBand(t *testing.T) {
	assert.Less(t, DefaultForBand("easy").Difficulty, DefaultForBand("medium").Difficulty)
	assert.Less(t, DefaultForBand("medium").Difficulty, DefaultForBand("hard").Difficulty)
	assert.Equal(t, DefaultForBand("medium"), DefaultForBand("unknown"))
}

func syntheticObservations(threshold float64) []Observation {
	out := make([]Observation, 0, 21)
	for i := 0; i <= 20; i++ {
		a := float64(i) / 20
		out = append(out, Observation{Ability: a, Correct: a > threshold})
	}
	return out
}

func TestCalibratorFitMovesDifficulty(t *testing.T) {
	c := DefaultCalibrator()
	start := ItemParams{Discrimination: 1, Difficulty: 0, Guessing: 0}

	hard, stats, err := c.Fit(start, syntheticObservations(0.7))
	require.NoError(t, err)
	assert.Greater(t, hard.Difficulty, start.Difficulty)
	assert.Equal(t, 21, stats.Samples)
	assert.Equal(t, c.Epochs, stats.Epochs)
	assert.Less(t, stats.LogLikelihood, 0.0)

	easy, _, err := c.Fit(start, syntheticObservations(0.2))
	require.NoError(t, err)
	assert.Less(t, easy.Difficulty, start.Difficulty)

	for _, p := range []ItemParams{hard, easy} {
		assert.GreaterOrEqual(t, p.Discrimination, DiscriminationMin)
		assert.LessOrEqual(t, p.Discrimination, DiscriminationMax)
		assert.GreaterOrEqual(t, p.Guessing, 0.0)
		assert.LessOrEqual(t, p.Guessing, GuessingMax)
	}
}

func TestCalibratorInsufficientSamples(t *testing.T) {
	c := Calibrator{MinSamples: 30}
	start := DefaultForBand("easy")
	got, stats, err := c.Fit(start, syntheticObservations(0.5))
	require.ErrorIs(t, err, ErrInsufficientSamples)
	assert.Equal(t, start, got)
	assert.Equal(t, 21, stats.Samples)
}
