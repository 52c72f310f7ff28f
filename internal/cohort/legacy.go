// Package cohort is offline tooling for comparing the live BKT update against the legacy
// formula earlier cohorts were scored with. Nothing in the answer path may import it.
package cohort

import (
	"math"

	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/bkt"
)

// LegacyUpdate is the retired BKT order: learning transition first, evidence second.
// Only used to reproduce historical cohort numbers.
func LegacyUpdate(prior float64, correct *bool, slip, guess, learn float64) float64 {
	if correct == nil {
		return prior
	}
	p := bkt.Clamp01(prior)
	s := bkt.Clamp01(slip)
	g := bkt.Clamp01(guess)
	l := bkt.Clamp01(learn)

	p = p + (1-p)*l
	if *correct {
		pC := p*(1-s) + (1-p)*g
		return bkt.Clamp01(p * (1 - s) / math.Max(1e-12, pC))
	}
	pI := p*s + (1-p)*(1-g)
	return bkt.Clamp01(p * s / math.Max(1e-12, pI))
}
