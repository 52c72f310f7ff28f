package irt

import (
	"errors"
	"math"
)

const gradFloor = 1e-4

var ErrInsufficientSamples = errors.New("irt: not enough responses to calibrate item")

// Observation is one graded response with the learner's ability at answer time.
type Observation struct {
	Ability float64
	Correct bool
}

type FitStats struct {
	Samples       int     `json:"samples"`
	Epochs        int     `json:"epochs"`
	CorrectRate   float64 `json:"correct_rate"`
	LogLikelihood float64 `json:"log_likelihood"`
}

// Calibrator refits item parameters from logged responses. It only runs on the refresh path.
type Calibrator struct {
	LearningRate float64
	MinSamples   int
	Epochs       int
}

func DefaultCalibrator() Calibrator {
	return Calibrator{LearningRate: 0.05, MinSamples: 8, Epochs: 25}
}

// Fit runs stochastic gradient ascent on the 3PL log-likelihood starting from start.
// Parameters are clamped to their bounds after every step.
// Observations are visited in the given order so the result is deterministic.
func (c Calibrator) Fit(start ItemParams, obs []Observation) (ItemParams, FitStats, error) {
	def := DefaultCalibrator()
	if c.LearningRate <= 0 {
		c.LearningRate = def.LearningRate
	}
	if c.MinSamples <= 0 {
		c.MinSamples = def.MinSamples
	}
	if c.Epochs <= 0 {
		c.Epochs = def.Epochs
	}

	stats := FitStats{Samples: len(obs)}
	if len(obs) < c.MinSamples {
		return start, stats, ErrInsufficientSamples
	}

	correct := 0
	for _, o := range obs {
		if o.Correct {
			correct++
		}
	}
	stats.CorrectRate = float64(correct) / float64(len(obs))

	p := start.Clamped()
	step := 0
	for epoch := 0; epoch < c.Epochs; epoch++ {
		for _, o := range obs {
			step++
			lr := c.LearningRate / math.Sqrt(1.0+float64(step)/float64(len(obs)*2))
			theta := AbilityToTheta(o.Ability)
			y := 0.0
			if o.Correct {
				y = 1.0
			}
			s := sigmoid(p.Discrimination * (theta - p.Difficulty))
			prob := p.Guessing + (1.0-p.Guessing)*s
			// d logL / dP
			w := (y - prob) / math.Max(prob*(1.0-prob), gradFloor)

			grad := w * s * (1.0 - s) * (1.0 - p.Guessing)
			diff0 := p.Difficulty
			p.Difficulty += lr * (-p.Discrimination) * grad
			p.Discrimination += lr * (theta - diff0) * grad
			p.Guessing += 0.25 * lr * w * (1.0 - s)
			p = p.Clamped()
		}
		stats.Epochs = epoch + 1
	}
	stats.LogLikelihood = logLikelihood(p, obs)
	return p, stats, nil
}

func logLikelihood(p ItemParams, obs []Observation) float64 {
	const floor = 1e-9
	ll := 0.0
	for _, o := range obs {
		prob := clampRange(p.PCorrect(AbilityToTheta(o.Ability)), floor, 1-floor)
		if o.Correct {
			ll += math.Log(prob)
		} else {
			ll += math.Log(1 - prob)
		}
	}
	return ll
}
