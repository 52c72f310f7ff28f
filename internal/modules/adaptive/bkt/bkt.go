// Package bkt implements the Bayesian Knowledge Tracing posterior update used on every
// graded answer. The update applies the Bayesian evidence step first and the learning
// transition second.
package bkt

import (
	"errors"
	"math"
)

// DefaultMastery is the prior assigned to a learner the first time a KC or course is exercised.
const DefaultMastery = 0.2

const evidenceFloor = 1e-12

var ErrNoParams = errors.New("bkt: no parameters configured")

type Params struct {
	LearningRate        float64 `json:"learning_rate" yaml:"learning_rate" validate:"gte=0,lte=1"`
	GuessingProbability float64 `json:"guessing_probability" yaml:"guessing_probability" validate:"gte=0,lte=1"`
	SlippingProbability float64 `json:"slipping_probability" yaml:"slipping_probability" validate:"gte=0,lte=1"`
}

func (p Params) Clamped() Params {
	return Params{
		LearningRate:        Clamp01(p.LearningRate),
		GuessingProbability: Clamp01(p.GuessingProbability),
		SlippingProbability: Clamp01(p.SlippingProbability),
	}
}

// Update returns the posterior mastery after one observation.
// A nil correct leaves prior untouched; no clamping is applied on that path.
func Update(prior float64, correct *bool, slip, guess, learn float64) float64 {
	if correct == nil {
		return prior
	}
	p := Clamp01(prior)
	s := Clamp01(slip)
	g := Clamp01(guess)
	l := Clamp01(learn)

	var post float64
	if *correct {
		pC := p*(1-s) + (1-p)*g
		post = p * (1 - s) / math.Max(evidenceFloor, pC)
	} else {
		pI := p*s + (1-p)*(1-g)
		post = p * s / math.Max(evidenceFloor, pI)
	}
	post = Clamp01(post)
	return Clamp01(post + (1-post)*l)
}

func UpdateWith(prior float64, correct *bool, p Params) float64 {
	return Update(prior, correct, p.SlippingProbability, p.GuessingProbability, p.LearningRate)
}

// Resolve picks the KC override when present and the course default otherwise.
func Resolve(course *Params, kc *Params) (Params, error) {
	if kc != nil {
		return kc.Clamped(), nil
	}
	if course != nil {
		return course.Clamped(), nil
	}
	return Params{}, ErrNoParams
}

// Mean is the unweighted per-field average. It returns the zero Params for no input.
func Mean(ps ...Params) Params {
	if len(ps) == 0 {
		return Params{}
	}
	var out Params
	for _, p := range ps {
		p = p.Clamped()
		out.LearningRate += p.LearningRate
		out.GuessingProbability += p.GuessingProbability
		out.SlippingProbability += p.SlippingProbability
	}
	n := float64(len(ps))
	out.LearningRate /= n
	out.GuessingProbability /= n
	out.SlippingProbability /= n
	return out
}

func Clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
